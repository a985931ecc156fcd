package engine

import (
	"fmt"
	"os"

	"github.com/explorerd/explorerd/internal/config"
	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/validation"
)

// onDocWrittenLocked handles a markdown document write detected by the
// matcher (tool-call observation, spec.md §2 step 6) or by the
// supplementary fsnotify watcher. Caller must hold mu.
//
// At most one validation runs at a time (spec.md §4.3): a write that
// arrives mid-run sets validationQueued and is picked up as soon as the
// current run finishes.
func (e *Engine) onDocWrittenLocked(path string) {
	if e.docPath != path {
		e.docPath = path
		e.rearmDocWatcherLocked(path)
	}

	if e.validationRunning {
		e.validationQueued = true
		return
	}
	e.runValidationLocked()
}

// rearmDocWatcherLocked (re)points the supplementary fsnotify watcher at
// the document path once it's known — the watcher can't be created before
// the first write reveals which file the agent chose (spec.md §3's
// pending-tool-write map has no fixed document name).
func (e *Engine) rearmDocWatcherLocked(path string) {
	if e.docWatcher != nil {
		_ = e.docWatcher.Close()
		e.docWatcher = nil
	}
	w, err := config.NewDocWatcher(path, config.DocWatchTarget{OnDocChange: func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.intentionalStop {
			return
		}
		if e.validationRunning {
			e.validationQueued = true
			return
		}
		e.runValidationLocked()
	}})
	if err != nil {
		return
	}
	e.docWatcher = w
}

// runValidationLocked renders the document, runs the fix-loop, broadcasts
// its events, and dispatches any synthesized fix prompt. Re-enters itself
// once more per queued write, per spec.md §4.3's validationQueued rule.
// Caller must hold mu.
func (e *Engine) runValidationLocked() {
	e.validationRunning = true
	defer func() { e.validationRunning = false }()

	for {
		path := e.docPath
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind:    events.ClientDocReady,
			Payload: events.DocReadyPayload{Path: path},
		})

		htmlPath, err := e.opts.Renderer(path)
		if err != nil {
			_ = e.hub.Broadcast(events.ClientMessage{
				Kind:    events.ClientRenderError,
				Payload: events.RenderErrorPayload{Error: err.Error()},
			})
		} else {
			e.htmlPath = htmlPath
			e.meta.HTMLPath = htmlPath
			e.runValidationPassLocked(htmlPath, path)
		}

		if !e.validationQueued {
			return
		}
		e.validationQueued = false
	}
}

func (e *Engine) runValidationPassLocked(htmlPath, markdownPath string) {
	data, err := os.ReadFile(htmlPath)
	if err != nil {
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind:    events.ClientRenderError,
			Payload: events.RenderErrorPayload{Error: fmt.Sprintf("reading rendered document: %v", err)},
		})
		return
	}

	e.validation.OnDocReady()
	if e.validation.State == validation.StateGaveUp {
		return
	}

	outcome := e.validation.Run(string(data), markdownPath)
	for _, m := range outcome.Messages {
		_ = e.hub.Broadcast(m)
	}
	if outcome.FixPrompt != "" {
		e.promptLocked(outcome.FixPrompt, true)
	}
}
