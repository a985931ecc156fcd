package validation

import (
	"fmt"
	"strings"

	"github.com/explorerd/explorerd/internal/events"
)

// ValidatorFunc is the external diagram validator, treated per spec.md §1 as
// a pure function `(diagram source) → ok | error_text`.
type ValidatorFunc func(source string) (ok bool, errText string)

// State is the validation fix-loop's state, per spec.md §4.3's table.
type State string

const (
	StateNone       State = "none"
	StateValidating State = "validating"
	StateFixSent    State = "fix_sent"
	StateValidated  State = "validated"
	StateGaveUp     State = "gave_up"
)

const (
	defaultMaxAttempts = 3
	excerptLen         = 300
)

// Failure describes one diagram block that failed validation.
type Failure struct {
	Index   int
	Error   string
	Excerpt string
}

// Result is the outcome of one validation pass over a document.
type Result struct {
	OK         bool
	Total      int
	ErrorCount int
	Failures   []Failure
}

// RunOutcome bundles everything a single Run call produces: the raw result,
// the client-facing events to broadcast in order, and (if any blocks
// failed) the fix prompt to dispatch to the agent.
type RunOutcome struct {
	Result    Result
	Messages  []events.ClientMessage
	FixPrompt string
	NextState State
}

// Loop drives the validation fix-loop state machine for one session. It is
// not safe for concurrent use: spec.md §4.3 requires the caller (the
// supervisor) to serialize validation runs and queue a re-entry if a new
// doc_ready arrives mid-run.
type Loop struct {
	Validate    ValidatorFunc
	MaxAttempts int

	State   State
	Attempt int
}

// New creates a Loop with spec.md's default max attempts (3).
func New(validate ValidatorFunc) *Loop {
	return &Loop{Validate: validate, MaxAttempts: defaultMaxAttempts, State: StateNone}
}

// Reset returns the loop to its initial state, used on stop().
func (l *Loop) Reset() {
	l.State = StateNone
	l.Attempt = 0
}

func (l *Loop) maxAttempts() int {
	if l.MaxAttempts <= 0 {
		return defaultMaxAttempts
	}
	return l.MaxAttempts
}

// OnDocReady transitions the loop back to validating when a new document
// arrives, per the state table's "any state → validating on doc_ready" rule
// (gave_up only clears on stop(), handled by Reset).
func (l *Loop) OnDocReady() {
	if l.State != StateGaveUp {
		l.State = StateValidating
	}
}

// Run extracts every diagram block from html, validates each in order, and
// advances the loop's state. markdownPath is the document the agent wrote,
// named in broadcast events and any synthesized fix prompt.
func (l *Loop) Run(html, markdownPath string) RunOutcome {
	blocks := Extract(html)
	total := len(blocks)

	l.State = StateValidating
	var msgs []events.ClientMessage
	msgs = append(msgs, events.ClientMessage{
		Kind:    events.ClientValidationStart,
		Payload: events.ValidationStartPayload{Total: total},
	})

	var failures []Failure
	for _, b := range blocks {
		ok, errText := l.Validate(b.Source)
		status := "ok"
		if !ok {
			status = "error"
			failures = append(failures, Failure{Index: b.Index, Error: errText, Excerpt: excerpt(b.Source)})
		}
		msgs = append(msgs, events.ClientMessage{
			Kind:    events.ClientValidationBlock,
			Payload: events.ValidationBlockPayload{Index: b.Index, Total: total, Status: status, Error: errText},
		})
	}

	result := Result{OK: len(failures) == 0, Total: total, ErrorCount: len(failures), Failures: failures}
	msgs = append(msgs, events.ClientMessage{
		Kind:    events.ClientValidationEnd,
		Payload: events.ValidationEndPayload{OK: result.OK, ErrorCount: result.ErrorCount, Total: result.Total},
	})

	if result.OK {
		l.State = StateValidated
		l.Attempt = 0
		msgs = append(msgs, events.ClientMessage{
			Kind:    events.ClientDocValidated,
			Payload: events.DocReadyPayload{Path: markdownPath},
		})
		return RunOutcome{Result: result, Messages: msgs, NextState: l.State}
	}

	l.Attempt++
	if l.Attempt > l.maxAttempts() {
		l.State = StateGaveUp
		msgs = append(msgs, events.ClientMessage{
			Kind:    events.ClientValidationGaveUp,
			Payload: events.ValidationGaveUpPayload{Attempt: l.Attempt},
		})
		return RunOutcome{Result: result, Messages: msgs, NextState: l.State}
	}

	l.State = StateFixSent
	msgs = append(msgs, events.ClientMessage{
		Kind:    events.ClientValidationFixReq,
		Payload: events.ValidationFixRequestPayload{Attempt: l.Attempt, MaxAttempts: l.maxAttempts()},
	})
	return RunOutcome{
		Result:    result,
		Messages:  msgs,
		FixPrompt: synthesizeFixPrompt(markdownPath, failures),
		NextState: l.State,
	}
}

func excerpt(source string) string {
	if len(source) > excerptLen {
		return source[:excerptLen]
	}
	return source
}

var remediationHints = []string{
	"escape HTML entities in diagram text",
	"prefer parentheses over square brackets in sequence-diagram messages",
	"avoid backticks inside mermaid diagram source",
	"keep node ids alphanumeric",
}

// synthesizeFixPrompt builds the user-role message sent back to the agent,
// per spec.md §4.3: names the markdown path, enumerates failures with
// source excerpts, and appends the fixed remediation hint list.
func synthesizeFixPrompt(markdownPath string, failures []Failure) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The mermaid diagrams in %s failed to render. Edit that file with the same write tool you used to create it.\n\n", markdownPath)
	for _, f := range failures {
		fmt.Fprintf(&b, "- block %d: %s\n  excerpt: %s\n", f.Index, f.Error, f.Excerpt)
	}
	b.WriteString("\nWhen fixing: ")
	b.WriteString(strings.Join(remediationHints, "; "))
	b.WriteString(".\n")
	return b.String()
}
