// Package session persists per-session metadata and the process pid file,
// and implements external stop via OS signal.
//
// Grounded on the teacher's agent registry (internal/agent/registry.go):
// same load-or-empty-on-missing-file pattern, same mutex-guarded in-memory
// map backed by a single file on disk. spec.md §3/§6 specify JSON, not
// YAML, so persistence here uses encoding/json instead of the teacher's
// yaml.v3 — yaml.v3 still does the heavy lifting for the engine config and
// model registry (see internal/config and internal/models).
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// LocalDirName is the directory name created under targetPath to hold
// session subdirectories, e.g. "<targetPath>/.explorerd/<id>/meta.json".
const LocalDirName = ".explorerd"

// Depth is the exploration depth requested at start.
type Depth string

const (
	DepthShallow Depth = "shallow"
	DepthMedium  Depth = "medium"
	DepthDeep    Depth = "deep"
)

// Meta is the persisted session record, matching spec.md §3/§6's meta.json
// shape exactly.
type Meta struct {
	ID          string    `json:"id"`
	Cwd         string    `json:"cwd"`
	TargetPath  string    `json:"targetPath"`
	Prompt      string    `json:"prompt,omitempty"`
	Focus       string    `json:"focus,omitempty"`
	Scope       []string  `json:"scope,omitempty"`
	Depth       Depth     `json:"depth"`
	Model       string    `json:"model"`
	Provider    string    `json:"provider"`
	HTMLPath    string    `json:"htmlPath,omitempty"`
	SessionFile string    `json:"sessionFile,omitempty"`
	Port        int       `json:"port,omitempty"`
	Secret      string    `json:"secret,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewID generates an 8 hex char session id (spec.md §3), drawn from a
// random UUID rather than a hand-rolled RNG — the teacher's client/agent ids
// use google/uuid elsewhere in the pack for the same purpose.
func NewID() string {
	return uuid.New().String()[:8]
}

// Dir returns the session's directory: <targetPath>/<LocalDirName>/<id>.
func Dir(targetPath, id string) string {
	return filepath.Join(targetPath, LocalDirName, id)
}

// MetaPath returns the path to a session's meta.json.
func MetaPath(targetPath, id string) string {
	return filepath.Join(Dir(targetPath, id), "meta.json")
}

// LogPath returns the path to a session's agent.log.
func LogPath(targetPath, id string) string {
	return filepath.Join(Dir(targetPath, id), "agent.log")
}

// Save writes m to its meta.json, creating the session directory if needed.
// Mirrors the teacher's Registry.Save: whole-file overwrite, no partial
// update.
func Save(m Meta) error {
	dir := Dir(m.TargetPath, m.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session meta: %w", err)
	}
	if err := os.WriteFile(MetaPath(m.TargetPath, m.ID), data, 0o644); err != nil {
		return fmt.Errorf("writing session meta: %w", err)
	}
	return nil
}

// Load reads a session's meta.json. Returns an error if the file doesn't
// exist — unlike NewRegistry, a specific session is expected to exist when
// Load is called (by resume), so a missing file is a real error.
func Load(targetPath, id string) (Meta, error) {
	data, err := os.ReadFile(MetaPath(targetPath, id))
	if err != nil {
		return Meta{}, fmt.Errorf("reading session meta for %s: %w", id, err)
	}
	var m Meta
	if err := json.Unmarshal(data, &m); err != nil {
		return Meta{}, fmt.Errorf("parsing session meta for %s: %w", id, err)
	}
	return m, nil
}

// List returns every local session under targetPath's LocalDirName, most
// recently started first. A missing local directory yields an empty list,
// not an error — mirroring NewRegistry's missing-file tolerance. Used by
// `resume` with no explicit id and by the CLI's `sessions` helper.
func List(targetPath string) ([]Meta, error) {
	base := filepath.Join(targetPath, LocalDirName)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing sessions under %s: %w", base, err)
	}

	var metas []Meta
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		m, err := Load(targetPath, e.Name())
		if err != nil {
			continue
		}
		metas = append(metas, m)
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Timestamp.After(metas[j].Timestamp) })
	return metas, nil
}
