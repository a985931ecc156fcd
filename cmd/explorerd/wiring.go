package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/explorerd/explorerd/internal/agentproc"
	"github.com/explorerd/explorerd/internal/authstore"
	"github.com/explorerd/explorerd/internal/config"
	"github.com/explorerd/explorerd/internal/engine"
	"github.com/explorerd/explorerd/internal/mermaidcheck"
	"github.com/explorerd/explorerd/internal/models"
	"github.com/explorerd/explorerd/internal/render"
	"github.com/explorerd/explorerd/internal/server"
)

// buildEngine loads config.yaml/models.yaml from configDir, resolves
// modelID to a concrete model+provider (falling back to the registry
// default, same rule Engine.resolveModel applies internally), resolves
// that provider's API key, and assembles an Engine wired with this
// binary's concrete collaborators: the subprocess agent runtime
// (internal/agentproc), the goldmark renderer (internal/render), the
// mermaid structural checker (internal/mermaidcheck), and the HTTP
// listener (internal/server). The resolved model id is returned so the
// caller can pass it straight through to StartParams/Resume without a
// second guess at disambiguation.
func buildEngine(modelID string) (*engine.Engine, string, error) {
	cfg, err := config.Load(filepath.Join(configDir, "config.yaml"))
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}

	reg, err := models.Load(filepath.Join(configDir, "models.yaml"))
	if err != nil {
		return nil, "", fmt.Errorf("loading model registry: %w", err)
	}

	var resolved models.Model
	if modelID == "" {
		m, ok := reg.Default()
		if !ok {
			return nil, "", fmt.Errorf("no models configured in %s", filepath.Join(configDir, "models.yaml"))
		}
		resolved = m
	} else {
		m, ok := reg.Lookup(modelID, "")
		if !ok {
			return nil, "", fmt.Errorf("unknown model %q", modelID)
		}
		resolved = m
	}

	apiKey, err := resolveAPIKey(resolved.Provider)
	if err != nil {
		return nil, "", err
	}

	logger := slog.Default()

	agentCmd := os.Getenv("EXPLORERD_AGENT_COMMAND")
	if agentCmd == "" {
		agentCmd = "explorerd-agent"
	}

	factory := agentproc.NewFactory(agentproc.Config{
		Command: agentCmd,
		Env:     []string{fmt.Sprintf("EXPLORERD_%s_API_KEY=%s", strings.ToUpper(resolved.Provider), apiKey)},
	}, logger.With("component", "agentproc"))

	eng := engine.New(engine.Options{
		RuntimeFactory: factory,
		Config:         cfg,
		Models:         reg,
		Validator:      mermaidcheck.Validate,
		Renderer:       render.ToHTML,
		NewServer: func(eng *engine.Engine, host string, basePort int) (engine.HTTPServer, int, error) {
			return server.NewWithLogger(eng, host, basePort, logger.With("component", "server"))
		},
	})
	return eng, resolved.ID, nil
}

// resolveAPIKey checks EXPLORERD_<PROVIDER>_API_KEY, then the provider's
// standard env var fallback (e.g. ANTHROPIC_API_KEY), then auth.yaml
// (SPEC_FULL.md §4.10). Returns an error — not a zero-value key — so
// `start` can exit non-zero on auth failure per spec.md §6.
func resolveAPIKey(provider string) (string, error) {
	upper := strings.ToUpper(provider)
	if v := os.Getenv("EXPLORERD_" + upper + "_API_KEY"); v != "" {
		return v, nil
	}
	if v := os.Getenv(upper + "_API_KEY"); v != "" {
		return v, nil
	}

	store, err := authstore.Load(filepath.Join(configDir, authstore.FileName))
	if err != nil {
		return "", fmt.Errorf("loading auth store: %w", err)
	}
	if key, ok := store.Keys[provider]; ok && key != "" {
		return key, nil
	}

	return "", fmt.Errorf("no API key for provider %q: set one with `explorerd auth set %s <key>` or %s_API_KEY", provider, provider, upper)
}
