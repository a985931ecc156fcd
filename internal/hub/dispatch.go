package hub

import "encoding/json"

// Dispatcher routes a parsed inbound WebSocket message to the engine.
// spec.md §4.2: "the hub invokes a registered dispatcher that routes
// prompt → chat, abort → abort, stop → stop, change_model → changeModel,
// load_history → send the full chat history".
type Dispatcher interface {
	Prompt(text string)
	Abort()
	Stop()
	ChangeModel(modelID, provider string)
	LoadHistory(client *Client)
}

// inboundMessage is the union of all client → engine message shapes
// (spec.md §6): {type, text?, modelId?, provider?}.
type inboundMessage struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ModelID  string `json:"modelId,omitempty"`
	Provider string `json:"provider,omitempty"`
}

// HandleInbound parses raw (one WebSocket text frame's payload) and routes
// it to d. Per spec.md §4.7, a parse error or unrecognized shape is dropped
// silently rather than surfaced as an error.
func (h *Hub) HandleInbound(client *Client, raw []byte, d Dispatcher) {
	var m inboundMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return
	}
	switch m.Type {
	case "prompt":
		d.Prompt(m.Text)
	case "abort":
		d.Abort()
	case "stop":
		d.Stop()
	case "change_model":
		d.ChangeModel(m.ModelID, m.Provider)
	case "load_history":
		d.LoadHistory(client)
	}
}
