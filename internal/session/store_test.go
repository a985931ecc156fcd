package session

import (
	"testing"
	"time"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	id := NewID()
	m := Meta{
		ID:         id,
		Cwd:        dir,
		TargetPath: dir,
		Prompt:     "explore the auth package",
		Depth:      DepthMedium,
		Model:      "claude-x",
		Provider:   "anthropic",
		Port:       4173,
		Timestamp:  time.Now().Truncate(time.Second),
	}

	if err := Save(m); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(dir, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != m.ID || got.Prompt != m.Prompt || got.Model != m.Model || got.Port != m.Port {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, m)
	}
	if !got.Timestamp.Equal(m.Timestamp) {
		t.Fatalf("timestamp mismatch: got %v, want %v", got.Timestamp, m.Timestamp)
	}
}

func TestList_EmptyWhenNoLocalDir(t *testing.T) {
	dir := t.TempDir()
	metas, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 0 {
		t.Fatalf("expected no sessions, got %d", len(metas))
	}
}

func TestList_ReturnsSavedSessionsNewestFirst(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Truncate(time.Second)
	older := Meta{ID: "aaaaaaaa", Cwd: dir, TargetPath: dir, Depth: DepthShallow, Timestamp: base}
	newer := Meta{ID: "bbbbbbbb", Cwd: dir, TargetPath: dir, Depth: DepthShallow, Timestamp: base.Add(time.Minute)}
	if err := Save(older); err != nil {
		t.Fatalf("Save(%s): %v", older.ID, err)
	}
	if err := Save(newer); err != nil {
		t.Fatalf("Save(%s): %v", newer.ID, err)
	}

	metas, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(metas))
	}
	if metas[0].ID != "bbbbbbbb" || metas[1].ID != "aaaaaaaa" {
		t.Fatalf("expected newest-first order, got %q, %q", metas[0].ID, metas[1].ID)
	}
}

func TestNewID_Length(t *testing.T) {
	id := NewID()
	if len(id) != 8 {
		t.Fatalf("expected 8 char id, got %q (%d chars)", id, len(id))
	}
}
