// Package authstore persists provider API keys for the `explorerd auth`
// subcommand at ~/.explorerd/auth.yaml (SPEC_FULL.md §4.10).
//
// Grounded on internal/config's yaml.v3, missing-file-tolerant Load
// pattern, itself grounded on the teacher's internal/config.Load. Unlike
// config.yaml, auth.yaml is written with 0600 permissions since it holds
// secrets; the engine never reads this file directly — cmd/explorerd
// resolves the key and hands it to the agent-runtime factory before
// calling engine.Start.
package authstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileName is the file name under the local directory (default
// ~/.explorerd/auth.yaml).
const FileName = "auth.yaml"

// Store is the on-disk set of provider API keys, keyed by provider name.
type Store struct {
	Keys map[string]string `yaml:"keys"`
}

// Load reads auth.yaml at path. A missing file yields an empty Store, not
// an error, mirroring config.Load and models.Load.
func Load(path string) (*Store, error) {
	s := &Store{Keys: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading auth store %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing auth store %s: %w", path, err)
	}
	if s.Keys == nil {
		s.Keys = make(map[string]string)
	}
	return s, nil
}

// Save writes the store back to path with 0600 permissions.
func (s *Store) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling auth store: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing auth store %s: %w", path, err)
	}
	return nil
}

// Set stores provider's key and persists the store.
func (s *Store) Set(path, provider, key string) error {
	s.Keys[provider] = key
	return s.Save(path)
}

// Logout removes provider's key, if present, and persists the store.
func (s *Store) Logout(path, provider string) error {
	delete(s.Keys, provider)
	return s.Save(path)
}

// Mask returns key with all but the last 4 characters replaced by "*", for
// display in `auth list`. Keys of length <= 4 are fully masked.
func Mask(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	tail := key[len(key)-4:]
	masked := make([]byte, len(key)-4)
	for i := range masked {
		masked[i] = '*'
	}
	return string(masked) + tail
}
