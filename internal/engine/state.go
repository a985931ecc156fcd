package engine

import (
	"github.com/explorerd/explorerd/internal/cost"
	"github.com/explorerd/explorerd/internal/validation"
)

// Phase is the engine's process-wide lifecycle phase, per spec.md §3/§4.1.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseStarting   Phase = "starting"
	PhaseStreaming  Phase = "streaming"
	PhaseWaiting    Phase = "waiting"
	PhaseRestarting Phase = "restarting"
	PhaseStopped    Phase = "stopped"
	PhaseFailed     Phase = "failed"
)

// PublicState is the read-only snapshot returned by GetState, spec.md §4.8:
// every engine state field plus clientCount, eventHistoryLength, and cost
// totals. It is the only supported read surface for the CLI and the
// `/state` HTTP route.
type PublicState struct {
	Phase                     Phase             `json:"phase"`
	AgentReady                bool              `json:"agentReady"`
	IntentionalStop           bool              `json:"intentionalStop"`
	ReadyFired                bool              `json:"readyFired"`
	Validation                validation.State  `json:"validation"`
	ValidationAttempt         int               `json:"validationAttempt"`
	CrashCount                int               `json:"crashCount"`
	ConsecutiveHealthFailures int               `json:"consecutiveHealthFailures"`
	LastActivityTs            int64             `json:"lastActivityTs"`

	SessionID  string `json:"sessionId"`
	Cwd        string `json:"cwd"`
	TargetPath string `json:"targetPath"`
	Prompt     string `json:"prompt,omitempty"`
	Depth      string `json:"depth"`
	Model      string `json:"model"`
	Provider   string `json:"provider"`
	HTMLPath   string `json:"htmlPath,omitempty"`

	ClientCount        int          `json:"clientCount"`
	EventHistoryLength int          `json:"eventHistoryLength"`
	CostTotals         cost.Totals  `json:"costTotals"`

	IsStreaming bool `json:"isStreaming"`
}
