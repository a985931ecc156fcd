package config

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// DocWatchTarget fires when the session's markdown document changes on
// disk by any means other than an observed tool call — an edit the
// matcher missed, or one made outside the agent's own tool-call stream.
// It is the supplementary path to doc_ready; the primary path is the
// supervisor noticing a write-shaped tool call directly.
type DocWatchTarget struct {
	// OnDocChange fires when the watched markdown file is written or
	// created. Typically triggers a re-render and a fresh doc_ready.
	OnDocChange func()
}

// Watcher monitors a single markdown document path for changes using
// fsnotify, firing OnDocChange when the file is written or created.
//
// The watcher runs a background goroutine that processes fsnotify events.
// Call Close() to stop the watcher and release resources.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	done      chan struct{}
}

// NewDocWatcher creates a file watcher on the directory containing
// docPath, filtering events down to that single file.
//
// fsnotify watches directories rather than individual files so that
// editors which write via rename-over-original (atomic save) still
// produce a visible create event for the final path.
func NewDocWatcher(docPath string, target DocWatchTarget) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	dir := filepath.Dir(docPath)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	w := &Watcher{
		fsWatcher: fw,
		done:      make(chan struct{}),
	}

	go w.processEvents(filepath.Base(docPath), target)

	slog.Info("document watcher started", "path", docPath)
	return w, nil
}

// processEvents reads fsnotify events and fires OnDocChange when the
// watched filename is written or created. Runs until Close() is called.
func (w *Watcher) processEvents(name string, target DocWatchTarget) {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			slog.Info("document changed on disk, triggering re-render", "path", event.Name)
			if target.OnDocChange != nil {
				target.OnDocChange()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			slog.Error("document watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

// Close stops the watcher goroutine and releases the underlying fsnotify
// watcher. Safe to call multiple times.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
		close(w.done)
	}
	return w.fsWatcher.Close()
}
