package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/explorerd/explorerd/internal/config"
	"github.com/explorerd/explorerd/internal/engine"
	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/models"
	"github.com/explorerd/explorerd/internal/runtime"
	"github.com/explorerd/explorerd/internal/session"
)

// fakeRuntime satisfies runtime.AgentRuntime with no-op behavior, enough
// to bring an Engine up to PhaseStarting for route testing.
type fakeRuntime struct{}

func (fakeRuntime) Prompt(ctx context.Context, text string, steer bool) error    { return nil }
func (fakeRuntime) Abort(ctx context.Context) error                             { return nil }
func (fakeRuntime) SetModel(ctx context.Context, modelID, provider string) error { return nil }
func (fakeRuntime) Subscribe(sink func(events.AgentEvent)) func()                { return func() {} }
func (fakeRuntime) Messages() []events.Message                                  { return nil }

type fakeHTTPServer struct{}

func (fakeHTTPServer) Addr() string { return "127.0.0.1:0" }
func (fakeHTTPServer) Close() error { return nil }

func newTestEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return newTestEngineWithRegistry(t, &models.Registry{Models: []models.Model{{ID: "m", Provider: "p"}}})
}

// newTestEngineWithRegistry is newTestEngine with a caller-supplied model
// registry, for tests (e.g. change_model dispatch) that need more than one
// model to switch between.
func newTestEngineWithRegistry(t *testing.T, reg *models.Registry) *engine.Engine {
	t.Helper()
	cfg := &config.Config{
		Server:     config.ServerConfig{Host: "127.0.0.1", BasePort: 4173},
		Backoff:    config.BackoffConfig{BaseMs: 100, MaxMs: 1000, MaxCrashRestarts: 2},
		Health:     config.HealthConfig{IntervalMs: 15000, TimeoutMs: 10000},
		Validation: config.ValidationConfig{MaxAttempts: 2},
	}
	eng := engine.New(engine.Options{
		RuntimeFactory: func(ctx context.Context, sc runtime.SessionConfig) (runtime.AgentRuntime, error) {
			return fakeRuntime{}, nil
		},
		Config:    cfg,
		Models:    reg,
		Validator: func(source string) (bool, string) { return true, "" },
		Renderer:  func(markdownPath string) (string, error) { return markdownPath + ".html", nil },
		NewServer: func(eng *engine.Engine, host string, basePort int) (engine.HTTPServer, int, error) {
			return fakeHTTPServer{}, basePort, nil
		},
	})

	_, err := eng.Start(context.Background(), engine.StartParams{
		Cwd:   t.TempDir(),
		Depth: session.DepthMedium,
		Model: reg.Models[0].ID,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	return eng
}

func TestRequireToken_RejectsMissingOrWrongToken(t *testing.T) {
	eng := newTestEngine(t)
	mux := newMux(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with no token, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/status?token=wrong")
	if err != nil {
		t.Fatalf("GET /status?token=wrong: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 with wrong token, got %d", resp.StatusCode)
	}
}

func TestHandleStatus_WithValidToken(t *testing.T) {
	eng := newTestEngine(t)
	mux := newMux(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status?token=" + eng.Secret())
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var status map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	if _, ok := status["targetPath"]; !ok {
		t.Fatalf("expected targetPath field, got %v", status)
	}
}

func TestHandleModels_ListsRegistryWithActiveFlag(t *testing.T) {
	eng := newTestEngine(t)
	mux := newMux(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/models?token=" + eng.Secret())
	if err != nil {
		t.Fatalf("GET /models: %v", err)
	}
	defer resp.Body.Close()

	var listed []models.ListedModel
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		t.Fatalf("decoding models: %v", err)
	}
	if len(listed) != 1 || !listed[0].Active {
		t.Fatalf("expected one active model, got %+v", listed)
	}
}

func TestHandleIndex_NoTokenRequired(t *testing.T) {
	eng := newTestEngine(t)
	mux := newMux(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with no token, got %d", resp.StatusCode)
	}
}

func TestHandleDoc_LoadingPageBeforeDocumentExists(t *testing.T) {
	eng := newTestEngine(t)
	mux := newMux(eng, slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/doc?token=" + eng.Secret())
	if err != nil {
		t.Fatalf("GET /doc: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !contains(string(body), "Waiting for the agent") {
		t.Fatalf("expected loading page, got: %s", body)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && (func() bool {
		for i := 0; i+len(needle) <= len(haystack); i++ {
			if haystack[i:i+len(needle)] == needle {
				return true
			}
		}
		return false
	})()
}
