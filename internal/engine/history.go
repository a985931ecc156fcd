package engine

import "github.com/explorerd/explorerd/internal/events"

// recentChatLimit bounds the chat_history frame sent synchronously on
// connect; load_history returns everything (spec.md §4.2, §8).
const recentChatLimit = 20

// extractHistoryLocked implements spec.md §4.5's chat history extraction
// rules over the agent's full message log. limit <= 0 means no limit.
// Caller must hold mu.
func (e *Engine) extractHistoryLocked(limit int) []events.ChatMessage {
	if e.agent == nil {
		return nil
	}

	var out []events.ChatMessage
	seenFirstUser := false

	for _, m := range e.agent.Messages() {
		switch m.Role {
		case events.RoleUser:
			if !seenFirstUser {
				seenFirstUser = true
				continue
			}
			out = append(out, events.ChatMessage{Role: events.RoleUser, Text: stripFormattingSuffix(m.Text)})

		case events.RoleAssistant:
			if !m.HasText() {
				continue
			}
			if len(out) == 0 || out[len(out)-1].Role != events.RoleUser {
				continue
			}
			out = append(out, events.ChatMessage{Role: events.RoleAssistant, Text: m.Text})
		}
	}

	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
