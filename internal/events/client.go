package events

import "encoding/json"

// ClientKind tags the outbound message types the hub broadcasts to browsers,
// per spec.md §6.
type ClientKind string

const (
	ClientInit                ClientKind = "init"
	ClientRPCEvent            ClientKind = "rpc_event"
	ClientDocReady            ClientKind = "doc_ready"
	ClientDocValidated        ClientKind = "doc_validated"
	ClientRenderError         ClientKind = "render_error"
	ClientValidationStart     ClientKind = "validation_start"
	ClientValidationBlock     ClientKind = "validation_block"
	ClientValidationEnd       ClientKind = "validation_end"
	ClientValidationFixReq    ClientKind = "validation_fix_request"
	ClientValidationGaveUp    ClientKind = "validation_gave_up"
	ClientAgentExit           ClientKind = "agent_exit"
	ClientAgentRestarting     ClientKind = "agent_restarting"
	ClientAgentStopped        ClientKind = "agent_stopped"
	ClientAgentHealth         ClientKind = "agent_health"
	ClientHeartbeat           ClientKind = "heartbeat"
	ClientCostUpdate          ClientKind = "cost_update"
	ClientStatusUpdate        ClientKind = "status_update"
	ClientChatHistory         ClientKind = "chat_history"
	ClientModelChanged        ClientKind = "model_changed"
	ClientModelChangeError    ClientKind = "model_change_error"
)

// ClientMessage is one outbound frame, serialized to JSON as
// {"type": "<kind>", ...payload fields flattened}. Envelope marshaling is
// handled by MarshalJSON so every call site builds a typed payload struct
// instead of hand-assembling maps.
type ClientMessage struct {
	Kind    ClientKind
	Payload any
}

func (m ClientMessage) MarshalJSON() ([]byte, error) {
	payload, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, err
	}
	// Flatten payload fields alongside "type". Payload must marshal to a
	// JSON object (or null, for typeless events like agent_stopped).
	if string(payload) == "null" {
		return json.Marshal(map[string]string{"type": string(m.Kind)})
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	for k, v := range fields {
		out[k] = v
	}
	typeJSON, _ := json.Marshal(string(m.Kind))
	out["type"] = typeJSON
	return json.Marshal(out)
}

// InitPayload is the snapshot sent synchronously on every new connection.
type InitPayload struct {
	AgentRunning  bool    `json:"agentRunning"`
	IsStreaming   bool    `json:"isStreaming"`
	HTMLPath      string  `json:"htmlPath,omitempty"`
	TargetPath    string  `json:"targetPath"`
	Prompt        string  `json:"prompt,omitempty"`
	Validating    bool    `json:"validating"`
	LastActivity  int64   `json:"lastActivityTs"`
	Model         string  `json:"model"`
	Provider      string  `json:"provider"`
	IsSubscription bool   `json:"isSubscription"`
	Depth         string  `json:"depth"`
	Usage         UsageTotals `json:"usage"`
}

// UsageTotals mirrors the cost ledger's running totals.
type UsageTotals struct {
	InputTokens      int64   `json:"inputTokens"`
	OutputTokens     int64   `json:"outputTokens"`
	CacheReadTokens  int64   `json:"cacheReadTokens"`
	CacheWriteTokens int64   `json:"cacheWriteTokens"`
	CostUSD          float64 `json:"costUsd"`
}

type RPCEventPayload struct {
	Event any `json:"event"`
}

type DocReadyPayload struct {
	Path string `json:"path"`
}

type RenderErrorPayload struct {
	Error string `json:"error"`
}

type ValidationStartPayload struct {
	Total int `json:"total"`
}

type ValidationBlockPayload struct {
	Index  int    `json:"index"`
	Total  int    `json:"total"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type ValidationEndPayload struct {
	OK         bool `json:"ok"`
	ErrorCount int  `json:"errorCount"`
	Total      int  `json:"total"`
}

type ValidationFixRequestPayload struct {
	Attempt      int `json:"attempt"`
	MaxAttempts  int `json:"maxAttempts"`
}

type ValidationGaveUpPayload struct {
	Attempt int `json:"attempt"`
}

type AgentExitPayload struct {
	Error       string `json:"error"`
	CrashCount  int    `json:"crashCount"`
	WillRestart bool   `json:"willRestart"`
	RestartInMs int64  `json:"restartIn"`
}

type AgentRestartingPayload struct {
	Attempt     int   `json:"attempt"`
	MaxAttempts int   `json:"maxAttempts"`
	RestartInMs int64 `json:"restartIn"`
}

type AgentHealthPayload struct {
	Healthy   bool `json:"healthy"`
	Failures  int  `json:"failures,omitempty"`
	SilentMin int  `json:"silentMin,omitempty"`
	Restored  bool `json:"restored,omitempty"`
}

type HeartbeatPayload struct {
	AgentRunning             bool        `json:"agentRunning"`
	IsStreaming              bool        `json:"isStreaming"`
	HTMLPath                 string      `json:"htmlPath,omitempty"`
	Validating               bool        `json:"validating"`
	LastActivity             int64       `json:"lastActivityTs"`
	Healthy                  bool        `json:"healthy"`
	ConsecutiveHealthFailures int        `json:"consecutiveHealthFailures"`
	Ts                       int64       `json:"ts"`
	Usage                    UsageTotals `json:"usage"`
	Model                    string      `json:"model"`
	Provider                 string      `json:"provider"`
	IsSubscription           bool        `json:"isSubscription"`
}

type CostUpdatePayload struct {
	Latest         UsageTotals `json:"latest"`
	Session        UsageTotals `json:"session"`
	Model          string      `json:"model"`
	Provider       string      `json:"provider"`
	IsSubscription bool        `json:"isSubscription"`
}

type StatusUpdatePayload struct {
	Usage          UsageTotals `json:"usage"`
	Model          string      `json:"model"`
	Provider       string      `json:"provider"`
	IsSubscription bool        `json:"isSubscription"`
}

type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

type ChatHistoryPayload struct {
	Messages      []ChatMessage `json:"messages"`
	IsFullHistory bool          `json:"isFullHistory"`
}

type ModelChangedPayload struct {
	Model          string `json:"model"`
	Provider       string `json:"provider"`
	IsSubscription bool   `json:"isSubscription"`
}

type ModelChangeErrorPayload struct {
	Error string `json:"error"`
}
