// Package engine implements the event-driven orchestrator that owns the
// agent lifecycle, multiplexes its event stream to browser clients, runs
// the diagram validation fix-loop, persists session state, and enforces
// the access-token boundary (spec.md §1).
//
// Grounded on the teacher's internal/engine.Engine: a single
// sync-Mutex-guarded struct whose public methods lock, mutate, and
// delegate to unexported *Locked helpers, mirroring the teacher's
// load/loadUnlocked split (internal/engine/engine.go). Unlike the
// teacher's rule engine, this Engine is also the hub.Dispatcher the
// WebSocket layer routes inbound browser messages into.
package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/explorerd/explorerd/internal/config"
	"github.com/explorerd/explorerd/internal/cost"
	"github.com/explorerd/explorerd/internal/events"
	"github.com/explorerd/explorerd/internal/hub"
	"github.com/explorerd/explorerd/internal/matcher"
	"github.com/explorerd/explorerd/internal/models"
	"github.com/explorerd/explorerd/internal/runtime"
	"github.com/explorerd/explorerd/internal/session"
	"github.com/explorerd/explorerd/internal/validation"

	"github.com/explorerd/explorerd/internal/clock"
)

// HTTPServer is the narrow surface the engine needs from its own HTTP+WS
// listener. internal/server implements this; engine never imports server
// (server imports engine) so the dependency arrow stays one-directional.
type HTTPServer interface {
	Addr() string
	Close() error
}

// ServerFactory builds and starts the HTTP server that will route requests
// into eng. Returns the running server and the port it bound to.
type ServerFactory func(eng *Engine, host string, basePort int) (HTTPServer, int, error)

// Renderer turns the agent's markdown document into an HTML artifact on
// disk, treated by spec.md §1 as a pure out-of-scope function.
type Renderer func(markdownPath string) (htmlPath string, err error)

// Options configures a new Engine. All fields are required except Clock,
// which defaults to clock.Real{}.
type Options struct {
	RuntimeFactory runtime.Factory
	Config         *config.Config
	Models         *models.Registry
	Validator      validation.ValidatorFunc
	Renderer       Renderer
	NewServer      ServerFactory
	Clock          clock.Clock
}

// StartParams carries the operator-supplied inputs to Start, per spec.md
// §2 step 1 (`start(cwd, prompt, depth, model, onReady)`) and §3's session
// fields.
type StartParams struct {
	Cwd      string
	Prompt   string
	Focus    string
	Scope    []string
	Depth    session.Depth
	Model    string
	Provider string
	// OnReady fires exactly once, the first time the agent emits
	// agent_start — the gate the CLI waits on before printing the URL.
	OnReady func(meta session.Meta)
}

// Engine is the process-wide, single-session orchestrator. All shared
// mutable state — phase, validation, crash/health counters, the agent
// handle, the pending-tool-write map — is guarded by mu, per spec.md §5's
// single logical mutex.
type Engine struct {
	mu   sync.Mutex
	opts Options

	phase           Phase
	intentionalStop bool
	readyFired      bool
	turnEnded       bool
	crashCount      int
	healthFailures  int
	lastActivity    time.Time

	meta     session.Meta
	htmlPath string
	docPath  string

	agent       runtime.AgentRuntime
	unsubscribe func()

	pendingWrites map[string]string // toolCallID -> markdown path

	hub        *hub.Hub
	ledger     *cost.Ledger
	matcher    *matcher.Matcher
	validation *validation.Loop
	docWatcher *config.Watcher
	httpServer HTTPServer

	validationRunning bool
	validationQueued  bool

	restartTimer   clock.Timer
	healthTimer    clock.Timer
	heartbeatTimer clock.Timer

	onReady func(session.Meta)
}

// New constructs an idle Engine. Call Start or Resume to bring it up.
func New(opts Options) *Engine {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	return &Engine{
		opts:          opts,
		phase:         PhaseIdle,
		hub:           hub.New(),
		matcher:       matcher.New(),
		validation:    validation.New(opts.Validator),
		pendingWrites: make(map[string]string),
	}
}

// Hub returns the event fan-out hub, for internal/server to register and
// drop WebSocket clients against.
func (e *Engine) Hub() *hub.Hub { return e.hub }

// Models returns the model registry, for internal/server's /models route.
func (e *Engine) Models() *models.Registry { return e.opts.Models }

// GetState returns a read-only snapshot of every engine field named in
// spec.md §3, plus client count, history length, and cost totals — the
// only supported read surface for the CLI (spec.md §4.8).
func (e *Engine) GetState() PublicState {
	e.mu.Lock()
	defer e.mu.Unlock()

	var totals cost.Totals
	if e.ledger != nil {
		totals, _ = e.ledger.Totals()
	}

	return PublicState{
		Phase:                     e.phase,
		AgentReady:                e.readyFired,
		IntentionalStop:           e.intentionalStop,
		ReadyFired:                e.readyFired,
		Validation:                e.validation.State,
		ValidationAttempt:         e.validation.Attempt,
		CrashCount:                e.crashCount,
		ConsecutiveHealthFailures: e.healthFailures,
		LastActivityTs:            e.lastActivity.UnixMilli(),
		SessionID:                 e.meta.ID,
		Cwd:                       e.meta.Cwd,
		TargetPath:                e.meta.TargetPath,
		Prompt:                    e.meta.Prompt,
		Depth:                     string(e.meta.Depth),
		Model:                     e.meta.Model,
		Provider:                  e.meta.Provider,
		HTMLPath:                  e.htmlPath,
		ClientCount:               e.hub.ClientCount(),
		EventHistoryLength:        e.hub.HistoryLength(),
		CostTotals:                totals,
		IsStreaming:               e.phase == PhaseStreaming,
	}
}

// Start resolves a new session id, brings up the HTTP server, writes the
// pid file, and dispatches the initial exploration prompt to a freshly
// constructed agent handle (spec.md §2 steps 1-4).
func (e *Engine) Start(ctx context.Context, p StartParams) (session.Meta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id := session.NewID()
	model, provider, err := e.resolveModel(p.Model, p.Provider)
	if err != nil {
		return session.Meta{}, err
	}

	meta := session.Meta{
		ID:         id,
		Cwd:        p.Cwd,
		TargetPath: p.Cwd,
		Prompt:     p.Prompt,
		Focus:      p.Focus,
		Scope:      p.Scope,
		Depth:      p.Depth,
		Model:      model,
		Provider:   provider,
		Timestamp:  e.opts.Clock.Now(),
	}

	return e.bootstrapLocked(ctx, meta, p.OnReady)
}

// Resume recovers a previously persisted session and reattaches a fresh
// agent handle to it, per spec.md §2's data flow ("Engine resolves
// session id... or recovered from disk by resume", §3).
func (e *Engine) Resume(ctx context.Context, cwd, id string, onReady func(session.Meta)) (session.Meta, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	meta, err := session.Load(cwd, id)
	if err != nil {
		return session.Meta{}, fmt.Errorf("resuming session %s: %w", id, err)
	}
	meta.Timestamp = e.opts.Clock.Now()

	return e.bootstrapLocked(ctx, meta, onReady)
}

// bootstrapLocked does the shared work of Start and Resume: open the cost
// ledger, bring up the HTTP server, write the pid file, persist meta.json,
// and dispatch the initial prompt. Caller must hold mu.
func (e *Engine) bootstrapLocked(ctx context.Context, meta session.Meta, onReady func(session.Meta)) (session.Meta, error) {
	e.phase = PhaseStarting
	e.intentionalStop = false
	e.readyFired = false
	e.turnEnded = false
	e.crashCount = 0
	e.healthFailures = 0
	e.htmlPath = meta.HTMLPath
	e.docPath = ""
	e.pendingWrites = make(map[string]string)
	e.validation.Reset()
	e.hub.ResetHistory()
	e.onReady = onReady

	sessionDir := session.Dir(meta.TargetPath, meta.ID)
	if err := os.MkdirAll(sessionDir, 0o755); err != nil {
		e.phase = PhaseFailed
		return session.Meta{}, fmt.Errorf("creating session dir: %w", err)
	}

	ledger, err := cost.Open(filepath.Join(sessionDir, "cost.db"))
	if err != nil {
		e.phase = PhaseFailed
		return session.Meta{}, fmt.Errorf("opening cost ledger: %w", err)
	}
	e.ledger = ledger

	srv, port, err := e.opts.NewServer(e, e.opts.Config.Server.Host, e.opts.Config.Server.BasePort)
	if err != nil {
		e.phase = PhaseFailed
		_ = e.ledger.Close()
		return session.Meta{}, fmt.Errorf("starting http server: %w", err)
	}
	e.httpServer = srv
	meta.Port = port

	secret, err := newSecret()
	if err != nil {
		e.phase = PhaseFailed
		_ = e.httpServer.Close()
		_ = e.ledger.Close()
		return session.Meta{}, fmt.Errorf("generating session secret: %w", err)
	}
	meta.Secret = secret

	if err := session.WritePidFile(meta.Cwd, port); err != nil {
		e.phase = PhaseFailed
		_ = e.httpServer.Close()
		_ = e.ledger.Close()
		return session.Meta{}, fmt.Errorf("writing pid file: %w", err)
	}

	e.meta = meta
	if err := session.Save(e.meta); err != nil {
		e.phase = PhaseFailed
		return session.Meta{}, fmt.Errorf("saving session meta: %w", err)
	}

	rt, err := e.opts.RuntimeFactory(ctx, runtime.SessionConfig{
		Cwd:    meta.Cwd,
		Model:  meta.Model,
		Prompt: buildInitialPrompt(meta),
	})
	if err != nil {
		e.handleCrashLocked(err)
		return e.meta, nil
	}

	e.agent = rt
	e.unsubscribe = rt.Subscribe(e.onAgentEvent)

	if err := rt.Prompt(ctx, buildInitialPrompt(meta), false); err != nil {
		e.handleCrashLocked(err)
		return e.meta, nil
	}

	e.scheduleHealthCheckLocked()
	e.scheduleHeartbeatLocked()

	return e.meta, nil
}

// onReady is invoked at most once, the first time the agent emits
// agent_start (spec.md §2 step 4, §3's onReady invariant).
func (e *Engine) fireReadyLocked() {
	if e.readyFired {
		return
	}
	e.readyFired = true
	if e.onReady != nil {
		go e.onReady(e.meta)
	}
}

func (e *Engine) resolveModel(id, provider string) (string, string, error) {
	if id == "" {
		m, ok := e.opts.Models.Default()
		if !ok {
			return "", "", fmt.Errorf("no models configured")
		}
		return m.ID, m.Provider, nil
	}
	m, ok := e.opts.Models.Lookup(id, provider)
	if !ok {
		return "", "", fmt.Errorf("unknown model %q", id)
	}
	return m.ID, m.Provider, nil
}

func newSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Connect registers a new WebSocket client and returns the frames to send
// synchronously: init, full history replay, and (if any) a capped
// chat_history frame (spec.md §4.2).
func (e *Engine) Connect(client *hub.Client) ([][]byte, error) {
	e.mu.Lock()
	init := e.buildInitPayloadLocked()
	recent := e.extractHistoryLocked(recentChatLimit)
	e.mu.Unlock()

	var chatMsg *events.ClientMessage
	if len(recent) > 0 {
		m := events.ClientMessage{
			Kind:    events.ClientChatHistory,
			Payload: events.ChatHistoryPayload{Messages: recent, IsFullHistory: false},
		}
		chatMsg = &m
	}

	return e.hub.Connect(client, events.ClientMessage{Kind: events.ClientInit, Payload: init}, chatMsg)
}

// Disconnect removes a client from the hub.
func (e *Engine) Disconnect(client *hub.Client) { e.hub.Disconnect(client) }

// Secret returns the current session's access token, the credential gating
// every HTTP route except "/" and the WebSocket upgrade (spec.md §4.6). It
// is generated fresh by bootstrapLocked, after the HTTP server is already
// listening, so callers must read it per-request rather than caching it at
// server-construction time.
func (e *Engine) Secret() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta.Secret
}

// DocFragment returns the rendered HTML fragment path and a display title
// for the "/doc" route (spec.md §4.6). The title is the target directory's
// base name, since the renderer's output is a bare body fragment with no
// document-level metadata to draw one from.
func (e *Engine) DocFragment() (htmlPath, title string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.htmlPath, filepath.Base(e.meta.TargetPath)
}

func (e *Engine) buildInitPayloadLocked() events.InitPayload {
	var totals cost.Totals
	if e.ledger != nil {
		totals, _ = e.ledger.Totals()
	}
	active, _ := e.opts.Models.Lookup(e.meta.Model, e.meta.Provider)
	return events.InitPayload{
		AgentRunning:   e.agent != nil,
		IsStreaming:    e.phase == PhaseStreaming,
		HTMLPath:       e.htmlPath,
		TargetPath:     e.meta.TargetPath,
		Prompt:         e.meta.Prompt,
		Validating:     e.validation.State == validation.StateValidating,
		LastActivity:   e.lastActivity.UnixMilli(),
		Model:          e.meta.Model,
		Provider:       e.meta.Provider,
		IsSubscription: active.IsSubscription,
		Depth:          string(e.meta.Depth),
		Usage:          usageTotals(totals),
	}
}

func usageTotals(t cost.Totals) events.UsageTotals {
	return events.UsageTotals{
		InputTokens:      t.Usage.InputTokens,
		OutputTokens:     t.Usage.OutputTokens,
		CacheReadTokens:  t.Usage.CacheReadTokens,
		CacheWriteTokens: t.Usage.CacheWriteTokens,
		CostUSD:          t.CostUSD,
	}
}

// Stop marks intentionalStop, cancels pending timers, instructs the agent
// to abort, and broadcasts agent_stopped. Idempotent (spec.md §4.1, §8).
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() {
	if e.phase == PhaseStopped {
		return
	}
	e.intentionalStop = true

	stopTimer(e.restartTimer)
	stopTimer(e.healthTimer)
	stopTimer(e.heartbeatTimer)

	if e.unsubscribe != nil {
		e.unsubscribe()
		e.unsubscribe = nil
	}
	if e.agent != nil {
		_ = e.agent.Abort(context.Background())
		e.agent = nil
	}
	e.pendingWrites = make(map[string]string)
	e.validation.Reset()
	e.phase = PhaseStopped

	_ = e.hub.Broadcast(events.ClientMessage{Kind: events.ClientAgentStopped})
}

// StopAll performs Stop and additionally tears down the HTTP server, the
// document watcher and the cost ledger, and removes the pid file. There is
// no port-probe state to reset: every start probes from the configured base
// port.
func (e *Engine) StopAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked()

	if e.httpServer != nil {
		_ = e.httpServer.Close()
		e.httpServer = nil
	}
	if e.docWatcher != nil {
		_ = e.docWatcher.Close()
		e.docWatcher = nil
	}
	if e.ledger != nil {
		_ = e.ledger.Close()
		e.ledger = nil
	}
	_ = session.RemovePidFile(e.meta.Cwd)
}

func stopTimer(t clock.Timer) {
	if t != nil {
		t.Stop()
	}
}
