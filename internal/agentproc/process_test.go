package agentproc

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/runtime"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPrompt_AppendsUserMessageBeforeSending(t *testing.T) {
	p, err := start(context.Background(), Config{Command: "cat"}, runtime.SessionConfig{Cwd: t.TempDir(), Model: "m"}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.cmd.Process.Kill()

	if err := p.Prompt(context.Background(), "explore the auth package", false); err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	msgs := p.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Messages() = %d entries, want 1: %+v", len(msgs), msgs)
	}
	if msgs[0].Role != events.RoleUser || msgs[0].Text != "explore the auth package" {
		t.Fatalf("Messages()[0] = %+v, want RoleUser %q", msgs[0], "explore the auth package")
	}
}

// TestMessages_OrdersUserPromptBeforeAssistantReply exercises the full
// path extractHistoryLocked (internal/engine/history.go, spec.md §4.5)
// depends on: a RoleUser entry from Prompt must precede the RoleAssistant
// entry decode appends from a message_end wire line.
func TestMessages_OrdersUserPromptBeforeAssistantReply(t *testing.T) {
	script := `read line; printf '%s\n' '{"type":"message_end","role":"assistant","content":[{"type":"text","text":"done exploring"}]}'`
	p, err := start(context.Background(), Config{Command: "sh", Args: []string{"-c", script}}, runtime.SessionConfig{Cwd: t.TempDir(), Model: "m"}, testLogger())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	defer p.cmd.Wait()

	done := make(chan struct{})
	unsub := p.Subscribe(func(ev events.AgentEvent) {
		if ev.Kind == events.MessageEnd {
			close(done)
		}
	})
	defer unsub()

	if err := p.Prompt(context.Background(), "explore the auth package", false); err != nil {
		t.Fatalf("Prompt: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message_end")
	}

	msgs := p.Messages()
	if len(msgs) != 2 {
		t.Fatalf("Messages() = %d entries, want 2 (user, assistant): %+v", len(msgs), msgs)
	}
	if msgs[0].Role != events.RoleUser || msgs[0].Text != "explore the auth package" {
		t.Fatalf("Messages()[0] = %+v, want the user prompt", msgs[0])
	}
	if msgs[1].Role != events.RoleAssistant || msgs[1].Text != "done exploring" {
		t.Fatalf("Messages()[1] = %+v, want the assistant reply", msgs[1])
	}
}
