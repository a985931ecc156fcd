// Package models loads the model registry consulted by the engine's
// `/models` route and `change_model` handler (spec.md §4.4/§4.6).
//
// Grounded on the teacher's internal/config.Load: same
// missing-file-is-defaults tolerance, same yaml.v3-backed struct, same
// validate-after-parse shape.
package models

import (
	"fmt"
	"os"

	"github.com/explorerd/explorerd/internal/cost"
	"gopkg.in/yaml.v3"
)

// Model is one entry in the registry.
type Model struct {
	ID             string    `yaml:"id" json:"id"`
	Provider       string    `yaml:"provider" json:"provider"`
	IsSubscription bool      `yaml:"isSubscription" json:"isSubscription"`
	Rate           cost.Rate `yaml:"rate" json:"-"`
}

// Registry is the immutable set of models a session can be started or
// switched to, plus which one is currently active.
type Registry struct {
	Models       []Model `yaml:"models"`
	ActiveModel  string  `yaml:"-"`
}

// registryFile is the on-disk YAML envelope.
type registryFile struct {
	Models []Model `yaml:"models"`
}

func defaultModels() []Model {
	return []Model{
		{ID: "claude-opus-4", Provider: "anthropic", Rate: cost.Rate{InputPerMTok: 15, OutputPerMTok: 75, CacheReadPerMTok: 1.5, CacheWritePerMTok: 18.75}},
		{ID: "claude-sonnet-4", Provider: "anthropic", Rate: cost.Rate{InputPerMTok: 3, OutputPerMTok: 15, CacheReadPerMTok: 0.3, CacheWritePerMTok: 3.75}},
		{ID: "gpt-4.1", Provider: "openai", Rate: cost.Rate{InputPerMTok: 2, OutputPerMTok: 8}},
		{ID: "gpt-4.1-mini", Provider: "openai", Rate: cost.Rate{InputPerMTok: 0.4, OutputPerMTok: 1.6}},
	}
}

// Load reads the model registry YAML at path. A missing file yields the
// built-in default model list, not an error — mirroring config.Load.
func Load(path string) (*Registry, error) {
	reg := &Registry{Models: defaultModels()}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return nil, fmt.Errorf("reading model registry %s: %w", path, err)
	}

	var rf registryFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing model registry %s: %w", path, err)
	}
	if len(rf.Models) == 0 {
		return reg, nil
	}
	reg.Models = rf.Models
	if err := validate(reg); err != nil {
		return nil, fmt.Errorf("invalid model registry: %w", err)
	}
	return reg, nil
}

func validate(reg *Registry) error {
	seen := map[string]bool{}
	for _, m := range reg.Models {
		if m.ID == "" {
			return fmt.Errorf("model entry missing id")
		}
		if m.Provider == "" {
			return fmt.Errorf("model %q: provider is required", m.ID)
		}
		if seen[m.ID] {
			return fmt.Errorf("duplicate model id %q", m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// Lookup finds a model by id, optionally constrained to a provider (empty
// provider matches any). Returns false if not found.
func (r *Registry) Lookup(id, provider string) (Model, bool) {
	for _, m := range r.Models {
		if m.ID != id {
			continue
		}
		if provider != "" && m.Provider != provider {
			continue
		}
		return m, true
	}
	return Model{}, false
}

// ListedModel is a registry entry annotated with whether it is the active
// model, as returned by List for the /models route (spec.md §4.6).
type ListedModel struct {
	Model  `yaml:",inline"`
	Active bool `json:"active" yaml:"-"`
}

// List returns every model with Active set for the one matching activeID.
func (r *Registry) List(activeID string) []ListedModel {
	out := make([]ListedModel, 0, len(r.Models))
	for _, m := range r.Models {
		out = append(out, ListedModel{Model: m, Active: m.ID == activeID})
	}
	return out
}

// Default picks the first model in the registry, used when start() is
// called without an explicit --model (spec.md §6).
func (r *Registry) Default() (Model, bool) {
	if len(r.Models) == 0 {
		return Model{}, false
	}
	return r.Models[0], true
}
