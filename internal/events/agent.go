// Package events defines the tagged-union event shapes that cross the two
// boundaries the engine owns: inbound events from the agent runtime, and
// outbound messages broadcast to browser clients over the WebSocket hub.
// Keeping them as separate sums (spec.md §9, "variadic event shapes") keeps
// the wire surface narrow and stops agent-runtime internals from leaking
// into the browser protocol.
package events

import "encoding/json"

// AgentKind tags the variant of an AgentEvent.
type AgentKind string

const (
	AgentStart             AgentKind = "agent_start"
	AgentEnd               AgentKind = "agent_end"
	MessageStart           AgentKind = "message_start"
	MessageUpdate          AgentKind = "message_update"
	MessageEnd             AgentKind = "message_end"
	ToolExecutionStart     AgentKind = "tool_execution_start"
	ToolExecutionUpdate    AgentKind = "tool_execution_update"
	ToolExecutionEnd       AgentKind = "tool_execution_end"
	AutoCompactionStart    AgentKind = "auto_compaction_start"
	AutoCompactionEnd      AgentKind = "auto_compaction_end"
	AutoRetryStart         AgentKind = "auto_retry_start"
	AutoRetryEnd           AgentKind = "auto_retry_end"
)

// UpdateKind tags the variant of a message_update event.
type UpdateKind string

const (
	TextStart     UpdateKind = "text_start"
	TextDelta     UpdateKind = "text_delta"
	TextEnd       UpdateKind = "text_end"
	ThinkingStart UpdateKind = "thinking_start"
	ThinkingDelta UpdateKind = "thinking_delta"
	ThinkingEnd   UpdateKind = "thinking_end"
)

// Role identifies the speaker of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ContentBlock is one block of a message's content array. Only the fields
// relevant to a given Type are populated.
type ContentBlock struct {
	Type      string          `json:"type"` // "text" | "tool_use" | "tool_result"
	Text      string          `json:"text,omitempty"`
	ToolCallID string         `json:"toolCallId,omitempty"`
	ToolName  string          `json:"toolName,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
}

// Usage is a single request's token accounting, matching spec.md §3's cost
// ledger entry shape.
type Usage struct {
	InputTokens      int64 `json:"inputTokens"`
	OutputTokens     int64 `json:"outputTokens"`
	CacheReadTokens  int64 `json:"cacheReadTokens"`
	CacheWriteTokens int64 `json:"cacheWriteTokens"`
}

// Message is a logged turn in the agent's full conversation history
// (system + user + assistant + tool), as exposed by AgentRuntime.Messages().
type Message struct {
	Role    Role           `json:"role"`
	Text    string         `json:"text,omitempty"`
	Content []ContentBlock `json:"content,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`
}

// HasToolCalls reports whether any content block is a tool_use invocation.
func (m Message) HasToolCalls() bool {
	for _, b := range m.Content {
		if b.Type == "tool_use" {
			return true
		}
	}
	return false
}

// HasText reports whether the message carries any non-empty text content.
func (m Message) HasText() bool {
	if m.Text != "" {
		return true
	}
	for _, b := range m.Content {
		if b.Type == "text" && b.Text != "" {
			return true
		}
	}
	return false
}

// AgentEvent is the tagged sum of everything the agent runtime can emit.
// Exactly one of the typed fields is populated, matching Kind.
type AgentEvent struct {
	Kind AgentKind

	MessageStart *MessageStartEvent
	Update       *MessageUpdateEvent
	MessageEnd   *MessageEndEvent
	ToolStart    *ToolExecutionStartEvent
	ToolUpdate   *ToolExecutionUpdateEvent
	ToolEnd      *ToolExecutionEndEvent
}

type MessageStartEvent struct {
	Role Role `json:"role"`
}

type MessageUpdateEvent struct {
	Kind         UpdateKind `json:"type"`
	Delta        string     `json:"delta,omitempty"`
	ContentIndex int        `json:"contentIndex,omitempty"`
	Content      string     `json:"content,omitempty"`
}

type MessageEndEvent struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Usage   *Usage         `json:"usage,omitempty"`
}

type ToolExecutionStartEvent struct {
	ToolCallID string         `json:"toolCallId"`
	ToolName   string         `json:"toolName"`
	Args       map[string]any `json:"args,omitempty"`
}

type ToolExecutionUpdateEvent struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
}

type ToolExecutionEndEvent struct {
	ToolCallID string `json:"toolCallId"`
	ToolName   string `json:"toolName"`
	Result     string `json:"result,omitempty"`
	IsError    bool   `json:"isError,omitempty"`
}

// Convenience constructors, matching the terse one-liner constructor style
// the pack's events packages use for building test fixtures.

func NewAgentStart() AgentEvent { return AgentEvent{Kind: AgentStart} }
func NewAgentEnd() AgentEvent   { return AgentEvent{Kind: AgentEnd} }

func NewMessageStart(role Role) AgentEvent {
	return AgentEvent{Kind: MessageStart, MessageStart: &MessageStartEvent{Role: role}}
}

func NewTextDelta(delta string) AgentEvent {
	return AgentEvent{Kind: MessageUpdate, Update: &MessageUpdateEvent{Kind: TextDelta, Delta: delta}}
}

func NewMessageEnd(role Role, content []ContentBlock, usage *Usage) AgentEvent {
	ev := &MessageEndEvent{Role: role, Content: content, Usage: usage}
	for _, b := range content {
		if b.Type == "text" {
			ev.Text += b.Text
		}
	}
	return AgentEvent{Kind: MessageEnd, MessageEnd: ev}
}

func NewToolExecutionStart(id, name string, args map[string]any) AgentEvent {
	return AgentEvent{Kind: ToolExecutionStart, ToolStart: &ToolExecutionStartEvent{ToolCallID: id, ToolName: name, Args: args}}
}

func NewToolExecutionEnd(id, name, result string, isError bool) AgentEvent {
	return AgentEvent{Kind: ToolExecutionEnd, ToolEnd: &ToolExecutionEndEvent{ToolCallID: id, ToolName: name, Result: result, IsError: isError}}
}
