package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDocWatcher_FiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(docPath, []byte("# initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := NewDocWatcher(docPath, DocWatchTarget{
		OnDocChange: func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("NewDocWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(docPath, []byte("# changed"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("OnDocChange was not called after write")
	}
}

func TestDocWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	otherPath := filepath.Join(dir, "other.md")
	if err := os.WriteFile(docPath, []byte("# initial"), 0o644); err != nil {
		t.Fatal(err)
	}

	fired := make(chan struct{}, 1)
	w, err := NewDocWatcher(docPath, DocWatchTarget{
		OnDocChange: func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("NewDocWatcher: %v", err)
	}
	defer w.Close()

	if err := os.WriteFile(otherPath, []byte("# unrelated"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case <-fired:
		t.Fatal("OnDocChange fired for an unrelated file")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "doc.md")
	if err := os.WriteFile(docPath, []byte("# x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w, err := NewDocWatcher(docPath, DocWatchTarget{})
	if err != nil {
		t.Fatalf("NewDocWatcher: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}
