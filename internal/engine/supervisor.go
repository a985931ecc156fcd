package engine

import (
	"context"
	"time"

	"github.com/explorerd/explorerd/internal/clock"
	"github.com/explorerd/explorerd/internal/cost"
	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/runtime"
	"github.com/explorerd/explorerd/internal/validation"
)

const maxToolResultLen = 10000

// onAgentEvent is the sink registered with the agent runtime's Subscribe.
// It is the sole entry point for inbound agent events: translate,
// forward, and update supervisor state, all under the engine's single
// mutex (spec.md §5).
func (e *Engine) onAgentEvent(ev events.AgentEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.intentionalStop {
		return
	}

	e.lastActivity = e.opts.Clock.Now()
	if e.healthFailures > 0 {
		e.healthFailures = 0
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind:    events.ClientAgentHealth,
			Payload: events.AgentHealthPayload{Healthy: true, Restored: true},
		})
	}

	// alreadyEnded captures whether some earlier event this turn already
	// flipped the phase to waiting, before this event's own case mutates it
	// — used below to suppress a redundant native agent_end forward when
	// the text-only heuristic already ended the turn first.
	alreadyEnded := e.turnEnded

	switch ev.Kind {
	case events.AgentStart:
		e.crashCount = 0
		e.turnEnded = false
		e.phase = PhaseStreaming
		e.fireReadyLocked()

	case events.AgentEnd:
		// The generic forward below relays this native agent_end to
		// clients when it's the first source to end the turn; calling
		// emitAgentEndLocked here too would broadcast a second, synthetic
		// agent_end on top of it.
		if !alreadyEnded {
			e.turnEnded = true
			e.phase = PhaseWaiting
		}

	case events.MessageEnd:
		if ev.MessageEnd != nil {
			if ev.MessageEnd.Usage != nil {
				e.recordUsageLocked(*ev.MessageEnd.Usage)
			}
			if ev.MessageEnd.Role == events.RoleAssistant && !hasToolCalls(ev.MessageEnd.Content) {
				e.emitAgentEndLocked()
			}
		}
	}

	// A native agent_end arriving after the heuristic already ended the
	// turn is a duplicate signal, not new information — drop it instead of
	// forwarding a second outbound agent_end.
	if ev.Kind == events.AgentEnd && alreadyEnded {
		return
	}

	_ = e.hub.Broadcast(events.ClientMessage{
		Kind:    events.ClientRPCEvent,
		Payload: events.RPCEventPayload{Event: toWireEvent(ev)},
	})

	if ev.Kind == events.ToolExecutionStart && ev.ToolStart != nil {
		if path, ok := e.matcher.MarkdownTarget(ev.ToolStart.ToolName, ev.ToolStart.Args); ok {
			e.pendingWrites[ev.ToolStart.ToolCallID] = path
		}
	}
	if ev.Kind == events.ToolExecutionEnd && ev.ToolEnd != nil {
		if path, ok := e.pendingWrites[ev.ToolEnd.ToolCallID]; ok {
			delete(e.pendingWrites, ev.ToolEnd.ToolCallID)
			if !ev.ToolEnd.IsError {
				e.onDocWrittenLocked(path)
			}
		}
	}
}

func hasToolCalls(content []events.ContentBlock) bool {
	for _, b := range content {
		if b.Type == "tool_use" {
			return true
		}
	}
	return false
}

// emitAgentEndLocked flips the phase to waiting and broadcasts a synthetic
// outbound agent_end exactly once per turn, idempotent whether the native
// agent_end or the text-only heuristic fires first (spec.md §4.1).
func (e *Engine) emitAgentEndLocked() {
	if e.turnEnded {
		return
	}
	e.turnEnded = true
	e.phase = PhaseWaiting
	_ = e.hub.Broadcast(events.ClientMessage{
		Kind:    events.ClientRPCEvent,
		Payload: events.RPCEventPayload{Event: map[string]any{"type": string(events.AgentEnd)}},
	})
}

func (e *Engine) recordUsageLocked(u events.Usage) {
	if e.ledger == nil {
		return
	}
	model, _ := e.opts.Models.Lookup(e.meta.Model, e.meta.Provider)
	usage := toLedgerUsage(u)
	entry, err := e.ledger.Append(cost.Entry{
		Timestamp: e.opts.Clock.Now(),
		Model:     e.meta.Model,
		Provider:  e.meta.Provider,
		Usage:     usage,
		CostUSD:   cost.Estimate(usage, model.Rate),
	})
	if err != nil {
		return
	}
	totals, err := e.ledger.Totals()
	if err != nil {
		return
	}
	_ = e.hub.Broadcast(events.ClientMessage{
		Kind: events.ClientCostUpdate,
		Payload: events.CostUpdatePayload{
			Latest:         usageTotals(cost.Totals{Usage: entry.Usage, CostUSD: entry.CostUSD}),
			Session:        usageTotals(totals),
			Model:          e.meta.Model,
			Provider:       e.meta.Provider,
			IsSubscription: model.IsSubscription,
		},
	})
	_ = e.hub.Broadcast(events.ClientMessage{
		Kind: events.ClientStatusUpdate,
		Payload: events.StatusUpdatePayload{
			Usage:          usageTotals(totals),
			Model:          e.meta.Model,
			Provider:       e.meta.Provider,
			IsSubscription: model.IsSubscription,
		},
	})
}

func toLedgerUsage(u events.Usage) cost.Usage {
	return cost.Usage{
		InputTokens:      u.InputTokens,
		OutputTokens:     u.OutputTokens,
		CacheReadTokens:  u.CacheReadTokens,
		CacheWriteTokens: u.CacheWriteTokens,
	}
}

// toWireEvent flattens an AgentEvent into the {type, ...fields} shape
// spec.md §6 documents for rpc_event's payload, truncating oversized tool
// results along the way.
func toWireEvent(ev events.AgentEvent) map[string]any {
	out := map[string]any{"type": string(ev.Kind)}
	switch ev.Kind {
	case events.MessageStart:
		if ev.MessageStart != nil {
			out["message"] = map[string]any{"role": ev.MessageStart.Role}
		}
	case events.MessageUpdate:
		if ev.Update != nil {
			out["assistantMessageEvent"] = map[string]any{
				"type":         string(ev.Update.Kind),
				"delta":        ev.Update.Delta,
				"contentIndex": ev.Update.ContentIndex,
				"content":      ev.Update.Content,
			}
		}
	case events.MessageEnd:
		if ev.MessageEnd != nil {
			out["message"] = map[string]any{
				"role":  ev.MessageEnd.Role,
				"text":  ev.MessageEnd.Text,
				"usage": ev.MessageEnd.Usage,
			}
		}
	case events.ToolExecutionStart:
		if ev.ToolStart != nil {
			out["toolCallId"] = ev.ToolStart.ToolCallID
			out["toolName"] = ev.ToolStart.ToolName
			out["args"] = ev.ToolStart.Args
		}
	case events.ToolExecutionUpdate:
		if ev.ToolUpdate != nil {
			out["toolCallId"] = ev.ToolUpdate.ToolCallID
			out["toolName"] = ev.ToolUpdate.ToolName
		}
	case events.ToolExecutionEnd:
		if ev.ToolEnd != nil {
			out["toolCallId"] = ev.ToolEnd.ToolCallID
			out["toolName"] = ev.ToolEnd.ToolName
			out["result"] = truncateResult(ev.ToolEnd.Result)
			out["isError"] = ev.ToolEnd.IsError
		}
	}
	return out
}

func truncateResult(s string) string {
	if len(s) <= maxToolResultLen {
		return s
	}
	return s[:maxToolResultLen] + "...[truncated]"
}

// handleCrashLocked implements spec.md §4.1's crash-handling algorithm.
// Caller must hold mu.
func (e *Engine) handleCrashLocked(err error) {
	if e.intentionalStop || e.phase == PhaseStopped {
		return
	}

	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	e.agent = nil

	class := runtime.ClassifyError(err)
	if class == runtime.ErrClassAuth {
		e.phase = PhaseFailed
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind: events.ClientAgentExit,
			Payload: events.AgentExitPayload{
				Error: err.Error(), CrashCount: e.crashCount, WillRestart: false,
			},
		})
		return
	}

	e.crashCount++
	backoff := clock.Backoff{Base: e.opts.Config.Backoff.Base(), Max: e.opts.Config.Backoff.Max()}
	maxRestarts := e.opts.Config.Backoff.MaxCrashRestarts
	willRestart := e.crashCount <= maxRestarts
	var restartIn time.Duration
	if willRestart {
		restartIn = backoff.Delay(e.crashCount)
	}

	e.phase = PhaseRestarting
	_ = e.hub.Broadcast(events.ClientMessage{
		Kind: events.ClientAgentExit,
		Payload: events.AgentExitPayload{
			Error: err.Error(), CrashCount: e.crashCount,
			WillRestart: willRestart, RestartInMs: restartIn.Milliseconds(),
		},
	})

	if !willRestart {
		e.phase = PhaseFailed
		return
	}

	_ = e.hub.Broadcast(events.ClientMessage{
		Kind: events.ClientAgentRestarting,
		Payload: events.AgentRestartingPayload{
			Attempt: e.crashCount, MaxAttempts: maxRestarts, RestartInMs: restartIn.Milliseconds(),
		},
	})

	e.restartTimer = e.opts.Clock.AfterFunc(restartIn, e.attemptRestart)
}

// attemptRestart asks the session factory for a new agent handle. Factory
// failure recurses into handleCrashLocked (spec.md §4.1 step 4).
func (e *Engine) attemptRestart() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.intentionalStop || e.phase != PhaseRestarting || e.agent != nil {
		return
	}

	rt, err := e.opts.RuntimeFactory(context.Background(), runtime.SessionConfig{
		Cwd:    e.meta.Cwd,
		Model:  e.meta.Model,
		Prompt: buildInitialPrompt(e.meta),
	})
	if err != nil {
		e.handleCrashLocked(err)
		return
	}

	e.agent = rt
	e.unsubscribe = rt.Subscribe(e.onAgentEvent)
}

// scheduleHealthCheckLocked arms the recurring watchdog tick. Caller must
// hold mu.
func (e *Engine) scheduleHealthCheckLocked() {
	e.healthTimer = e.opts.Clock.AfterFunc(e.opts.Config.Health.Interval(), e.onHealthTick)
}

func (e *Engine) onHealthTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseStopped {
		return
	}

	if e.phase == PhaseStreaming && e.opts.Clock.Now().Sub(e.lastActivity) > e.opts.Config.Health.Timeout() {
		e.healthFailures++
		silentMin := int(e.opts.Clock.Now().Sub(e.lastActivity) / time.Minute)
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind:    events.ClientAgentHealth,
			Payload: events.AgentHealthPayload{Healthy: false, Failures: e.healthFailures, SilentMin: silentMin},
		})
	}

	e.scheduleHealthCheckLocked()
}

// scheduleHeartbeatLocked arms the next heartbeat tick. Caller must hold
// mu. Heartbeats are only broadcast while clients are connected (spec.md
// §6), but the timer itself always reschedules so a client connecting
// between ticks doesn't wait a full interval.
func (e *Engine) scheduleHeartbeatLocked() {
	e.heartbeatTimer = e.opts.Clock.AfterFunc(15*time.Second, e.onHeartbeatTick)
}

func (e *Engine) onHeartbeatTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase == PhaseStopped {
		return
	}

	if e.hub.ClientCount() > 0 {
		var totals cost.Totals
		if e.ledger != nil {
			totals, _ = e.ledger.Totals()
		}
		model, _ := e.opts.Models.Lookup(e.meta.Model, e.meta.Provider)
		_ = e.hub.Broadcast(events.ClientMessage{
			Kind: events.ClientHeartbeat,
			Payload: events.HeartbeatPayload{
				AgentRunning:              e.agent != nil,
				IsStreaming:               e.phase == PhaseStreaming,
				HTMLPath:                  e.htmlPath,
				Validating:                e.validation.State == validation.StateValidating,
				LastActivity:              e.lastActivity.UnixMilli(),
				Healthy:                   e.healthFailures == 0,
				ConsecutiveHealthFailures: e.healthFailures,
				Ts:                        e.opts.Clock.Now().UnixMilli(),
				Usage:                     usageTotals(totals),
				Model:                     e.meta.Model,
				Provider:                  e.meta.Provider,
				IsSubscription:            model.IsSubscription,
			},
		})
	}

	e.scheduleHeartbeatLocked()
}
