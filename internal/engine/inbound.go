package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/hub"
	"github.com/explorerd/explorerd/internal/session"
)

// formattingSuffix is appended to every user-typed message before it
// reaches the agent (spec.md §4.4) and stripped back off on the chat
// history display path (spec.md §4.5).
const formattingSuffix = "\n\n(Format your response in Markdown with clear headings and bullet points.)"

// Prompt implements hub.Dispatcher. In phase=streaming the message is
// delivered as mid-turn steering; in phase=waiting it starts a new turn;
// otherwise it is rejected (spec.md §4.4).
func (e *Engine) Prompt(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.promptLocked(text, false)
}

// promptLocked sends text (optionally already-synthesized, e.g. a
// validation fix prompt) to the agent. raw=true skips the formatting
// suffix, used for fix prompts which are not user-typed.
func (e *Engine) promptLocked(text string, raw bool) {
	if e.agent == nil || (e.phase != PhaseStreaming && e.phase != PhaseWaiting) {
		return
	}

	steer := e.phase == PhaseStreaming
	full := text
	if !raw {
		full = text + formattingSuffix
	}

	if err := e.agent.Prompt(context.Background(), full, steer); err != nil {
		e.handleCrashLocked(err)
		return
	}

	if !steer {
		e.phase = PhaseStreaming
	}
}

// Abort implements hub.Dispatcher. While streaming, instructs the agent
// to abort, flips to waiting, and broadcasts agent_end; a no-op otherwise
// (spec.md §4.4).
func (e *Engine) Abort() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseStreaming {
		return
	}
	if e.agent != nil {
		_ = e.agent.Abort(context.Background())
	}
	e.emitAgentEndLocked()
}

// ChangeModel implements hub.Dispatcher (spec.md §4.4).
func (e *Engine) ChangeModel(modelID, provider string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.opts.Models.Lookup(modelID, provider)
	if !ok {
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind:    events.ClientModelChangeError,
			Payload: events.ModelChangeErrorPayload{Error: fmt.Sprintf("unknown model %q", modelID)},
		})
		return
	}

	if e.agent != nil {
		if err := e.agent.SetModel(context.Background(), m.ID, m.Provider); err != nil {
			_ = e.hub.Broadcast(events.ClientMessage{
				Kind:    events.ClientModelChangeError,
				Payload: events.ModelChangeErrorPayload{Error: err.Error()},
			})
			return
		}
	}

	e.meta.Model = m.ID
	e.meta.Provider = m.Provider
	_ = session.Save(e.meta)

	_ = e.hub.Broadcast(events.ClientMessage{
		Kind: events.ClientModelChanged,
		Payload: events.ModelChangedPayload{
			Model: m.ID, Provider: m.Provider, IsSubscription: m.IsSubscription,
		},
	})
}

// LoadHistory implements hub.Dispatcher: sends the full chat history to
// the requesting client only (spec.md §4.2, §4.4).
func (e *Engine) LoadHistory(client *hub.Client) {
	e.mu.Lock()
	full := e.extractHistoryLocked(0)
	e.mu.Unlock()

	_ = e.hub.SendTo(client, events.ClientMessage{
		Kind:    events.ClientChatHistory,
		Payload: events.ChatHistoryPayload{Messages: full, IsFullHistory: true},
	})
}

func stripFormattingSuffix(text string) string {
	return strings.TrimSuffix(text, formattingSuffix)
}
