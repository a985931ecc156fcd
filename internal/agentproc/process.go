// Package agentproc implements runtime.Factory by spawning the configured
// coding-agent binary as a subprocess and speaking a line-delimited JSON
// protocol over its stdin/stdout.
//
// spec.md §1 treats the agent runtime as an out-of-scope external
// collaborator ("an AI coding agent... exposing... events"); the teacher
// has no analogue to ground this on directly, since its internal/proxy
// forwards requests to a remote LLM provider rather than driving a local
// agent process. This package exists only so cmd/explorerd has a concrete,
// runnable runtime.Factory to wire into engine.Options — its shape follows
// the rest of the codebase's conventions (context-scoped goroutines,
// slog field-key logging, typed runtime.RuntimeError classification)
// rather than any single teacher file.
package agentproc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/runtime"
)

// wireEvent is the subprocess's line-delimited event schema: one JSON
// object per line on stdout, tagged by "type".
type wireEvent struct {
	Type       string              `json:"type"`
	Role       events.Role         `json:"role,omitempty"`
	Delta      string              `json:"delta,omitempty"`
	UpdateKind events.UpdateKind   `json:"updateKind,omitempty"`
	Content    []events.ContentBlock `json:"content,omitempty"`
	Text       string              `json:"text,omitempty"`
	Usage      *events.Usage       `json:"usage,omitempty"`
	ToolCallID string              `json:"toolCallId,omitempty"`
	ToolName   string              `json:"toolName,omitempty"`
	Args       map[string]any      `json:"args,omitempty"`
	Result     string              `json:"result,omitempty"`
	IsError    bool                `json:"isError,omitempty"`
	Error      string              `json:"error,omitempty"`
	ErrorClass string              `json:"errorClass,omitempty"` // "auth" | "transient" | ""
}

// wireCommand is one line written to the subprocess's stdin.
type wireCommand struct {
	Type     string `json:"type"` // "prompt" | "abort" | "set_model"
	Text     string `json:"text,omitempty"`
	Steer    bool   `json:"steer,omitempty"`
	ModelID  string `json:"modelId,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// Config describes how to launch the agent subprocess.
type Config struct {
	// Command is the binary to exec, e.g. "explorerd-agent", with Args as
	// its arguments. It runs in the session's Cwd; model and prompt are
	// passed as the EXPLORERD_MODEL and EXPLORERD_PROMPT environment variables.
	Command string
	Args     []string
	Env      []string // extra entries appended to the child's environment, e.g. API keys
}

// NewFactory returns a runtime.Factory that launches cfg.Command as a
// subprocess per session.
func NewFactory(cfg Config, logger *slog.Logger) runtime.Factory {
	return func(ctx context.Context, sc runtime.SessionConfig) (runtime.AgentRuntime, error) {
		return start(ctx, cfg, sc, logger)
	}
}

// process is a runtime.AgentRuntime backed by one subprocess.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	logger *slog.Logger

	mu        sync.Mutex
	sinks     map[int]func(events.AgentEvent)
	nextSink  int
	messages  []events.Message
}

func start(ctx context.Context, cfg Config, sc runtime.SessionConfig, logger *slog.Logger) (*process, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = sc.Cwd
	cmd.Env = append(os.Environ(), cfg.Env...)
	cmd.Env = append(cmd.Env,
		fmt.Sprintf("EXPLORERD_MODEL=%s", sc.Model),
		fmt.Sprintf("EXPLORERD_PROMPT=%s", sc.Prompt),
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, runtime.NewTransientError("opening agent stdin", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, runtime.NewTransientError("opening agent stdout", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, runtime.NewAuthError("starting agent process", err)
	}

	p := &process{
		cmd:    cmd,
		stdin:  stdin,
		logger: logger,
		sinks:  make(map[int]func(events.AgentEvent)),
	}

	go p.readLoop(stdout)

	return p, nil
}

func (p *process) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var w wireEvent
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, &w); err != nil {
			p.logger.Warn("dropping malformed agent event line", "error", err)
			continue
		}
		ev, message, ok := decode(w)
		if !ok {
			continue
		}
		if message != nil {
			p.mu.Lock()
			p.messages = append(p.messages, *message)
			p.mu.Unlock()
		}
		p.dispatch(ev)
	}
	p.dispatch(events.NewAgentEnd())
}

// decode translates one wire line into the in-process AgentEvent plus, for
// message_end lines, the Message to append to history.
func decode(w wireEvent) (events.AgentEvent, *events.Message, bool) {
	switch w.Type {
	case "agent_start":
		return events.NewAgentStart(), nil, true
	case "agent_end":
		return events.NewAgentEnd(), nil, true
	case "message_start":
		return events.NewMessageStart(w.Role), nil, true
	case "message_update":
		return events.AgentEvent{Kind: events.MessageUpdate, Update: &events.MessageUpdateEvent{
			Kind: w.UpdateKind, Delta: w.Delta, Content: w.Text,
		}}, nil, true
	case "message_end":
		ev := events.NewMessageEnd(w.Role, w.Content, w.Usage)
		msg := events.Message{Role: w.Role, Text: ev.MessageEnd.Text, Content: w.Content, Usage: w.Usage}
		return ev, &msg, true
	case "tool_execution_start":
		return events.NewToolExecutionStart(w.ToolCallID, w.ToolName, w.Args), nil, true
	case "tool_execution_end":
		return events.NewToolExecutionEnd(w.ToolCallID, w.ToolName, w.Result, w.IsError), nil, true
	default:
		return events.AgentEvent{}, nil, false
	}
}

func (p *process) dispatch(ev events.AgentEvent) {
	p.mu.Lock()
	sinks := make([]func(events.AgentEvent), 0, len(p.sinks))
	for _, s := range p.sinks {
		sinks = append(sinks, s)
	}
	p.mu.Unlock()
	for _, s := range sinks {
		s(ev)
	}
}

func (p *process) Subscribe(sink func(events.AgentEvent)) func() {
	p.mu.Lock()
	id := p.nextSink
	p.nextSink++
	p.sinks[id] = sink
	p.mu.Unlock()
	return func() {
		p.mu.Lock()
		delete(p.sinks, id)
		p.mu.Unlock()
	}
}

func (p *process) Messages() []events.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Message, len(p.messages))
	copy(out, p.messages)
	return out
}

// Prompt records text as a RoleUser turn in the message log before sending
// it on, so extractHistoryLocked (internal/engine/history.go, spec.md §4.5)
// has the preceding user entry its inclusion rule depends on — the wire
// protocol only ever reports the agent's own message_start/message_end
// lines, never echoes the prompt back.
func (p *process) Prompt(ctx context.Context, text string, steer bool) error {
	p.mu.Lock()
	p.messages = append(p.messages, events.Message{Role: events.RoleUser, Text: text})
	p.mu.Unlock()
	return p.send(wireCommand{Type: "prompt", Text: text, Steer: steer})
}

func (p *process) Abort(ctx context.Context) error {
	return p.send(wireCommand{Type: "abort"})
}

func (p *process) SetModel(ctx context.Context, modelID, provider string) error {
	return p.send(wireCommand{Type: "set_model", ModelID: modelID, Provider: provider})
}

func (p *process) send(cmd wireCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return runtime.NewTransientError("encoding agent command", err)
	}
	data = append(data, '\n')
	if _, err := p.stdin.Write(data); err != nil {
		return runtime.NewTransientError("writing to agent stdin", err)
	}
	return nil
}
