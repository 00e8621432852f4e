// Package domain defines the core types shared by the UI automation engine.
package domain

import (
	"fmt"
	"strings"
)

// Endpoint names used for run records, metrics and the HTTP contract.
const (
	EndpointOpen      = "/ui/open"
	EndpointQuit      = "/ui/quit"
	EndpointStatusbar = "/ui/statusbar"
	EndpointViews     = "/ui/views"
)

// Decision is the answer given to a save confirmation prompt.
type Decision string

const (
	DecisionAuto     Decision = "auto"
	DecisionSave     Decision = "save"
	DecisionDontSave Decision = "dont-save"
	DecisionCancel   Decision = "cancel"
)

// ParseDecision normalizes user input into a Decision. Unknown values map to auto.
func ParseDecision(raw string) Decision {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.ReplaceAll(d, "_", "-")
	d = strings.Join(strings.Fields(d), "-")
	switch Decision(d) {
	case DecisionSave, DecisionDontSave, DecisionCancel, DecisionAuto:
		return Decision(d)
	case "dontsave", "don't-save", "discard":
		return DecisionDontSave
	}
	return DecisionAuto
}

// MatchTier is the strength with which a view corresponds to a requested path.
type MatchTier int

const (
	MatchNone  MatchTier = 0
	MatchLoose MatchTier = 1
	MatchExact MatchTier = 2
)

// String implements fmt.Stringer.
func (t MatchTier) String() string {
	switch t {
	case MatchExact:
		return "exact"
	case MatchLoose:
		return "loose"
	default:
		return "none"
	}
}

// ViewDescriptor is a snapshot of one open artifact view.
type ViewDescriptor struct {
	ViewID       string `json:"view_id"`
	Filename     string `json:"filename"`
	Basename     string `json:"basename"`
	Architecture string `json:"architecture,omitempty"`
	Modified     bool   `json:"modified"`
}

// DialogButton is one push button observed on a dialog.
type DialogButton struct {
	Label           string `json:"text"`
	NormalizedLabel string `json:"norm"`
	Enabled         bool   `json:"enabled"`
}

// DialogDescriptor is a snapshot of a candidate confirmation/options dialog.
// It is rebuilt on every poll.
type DialogDescriptor struct {
	Title   string         `json:"title"`
	Kind    string         `json:"class"`
	Buttons []DialogButton `json:"buttons"`
}

// WindowInfo identifies a visible top-level window.
type WindowInfo struct {
	Class string `json:"class"`
	Title string `json:"title"`
}

// SavePolicy is the resolved save decision for one quit invocation.
type SavePolicy struct {
	RequestedDecision       Decision `json:"requested_decision"`
	ResolvedDecision        Decision `json:"resolved_decision"`
	LoadedFilename          string   `json:"loaded_filename,omitempty"`
	LoadedIsArchiveFormat   bool     `json:"loaded_is_database"`
	CompanionDatabaseExists bool     `json:"companion_database_exists"`
	SaveTarget              string   `json:"save_target,omitempty"`
}

// StateTransition records one step of a workflow state machine.
type StateTransition struct {
	From string `json:"from"`
	To   string `json:"to"`
	AtMs int64  `json:"at_ms"`
}

// Mutation records a UI or host mutation performed by a workflow.
type Mutation struct {
	Action string            `json:"action"`
	Detail map[string]string `json:"detail,omitempty"`
}

// WorkflowResult is the uniform contract every workflow call produces.
// OK must equal len(Errors) == 0 when handed to callers; Finalize enforces it.
type WorkflowResult struct {
	OK       bool           `json:"ok"`
	Actions  []string       `json:"actions"`
	Warnings []string       `json:"warnings"`
	Errors   []string       `json:"errors"`
	State    map[string]any `json:"state"`

	Transitions []StateTransition `json:"-"`
	Mutations   []Mutation        `json:"-"`
}

// NewWorkflowResult returns an empty, successful result.
func NewWorkflowResult() WorkflowResult {
	return WorkflowResult{
		OK:       true,
		Actions:  []string{},
		Warnings: []string{},
		Errors:   []string{},
		State:    map[string]any{},
	}
}

// Action appends to the ordered action log.
func (r *WorkflowResult) Action(action string) {
	r.Actions = append(r.Actions, action)
}

// Actionf appends a formatted action.
func (r *WorkflowResult) Actionf(format string, args ...any) {
	r.Action(fmt.Sprintf(format, args...))
}

// HasAction reports whether action was logged.
func (r *WorkflowResult) HasAction(action string) bool {
	for _, a := range r.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Warn appends a non-fatal warning.
func (r *WorkflowResult) Warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Warnf appends a formatted warning.
func (r *WorkflowResult) Warnf(format string, args ...any) {
	r.Warn(fmt.Sprintf(format, args...))
}

// WarnOnce appends msg unless it is already present. Polling loops use it.
func (r *WorkflowResult) WarnOnce(msg string) {
	for _, w := range r.Warnings {
		if w == msg {
			return
		}
	}
	r.Warn(msg)
}

// Fail records a hard failure.
func (r *WorkflowResult) Fail(err error) {
	if err == nil {
		return
	}
	r.Errors = append(r.Errors, Message(err))
	r.OK = false
}

// Set stores a workflow-specific observed fact.
func (r *WorkflowResult) Set(key string, value any) {
	if r.State == nil {
		r.State = map[string]any{}
	}
	r.State[key] = value
}

// Mutated records a host mutation for auditing.
func (r *WorkflowResult) Mutated(action string, detail map[string]string) {
	r.Mutations = append(r.Mutations, Mutation{Action: action, Detail: detail})
}

// Merge appends other's logs after r's and copies its state keys over r's.
func (r *WorkflowResult) Merge(other WorkflowResult) {
	r.Actions = append(r.Actions, other.Actions...)
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.Errors = append(r.Errors, other.Errors...)
	for k, v := range other.State {
		r.Set(k, v)
	}
	r.Transitions = append(r.Transitions, other.Transitions...)
	r.Mutations = append(r.Mutations, other.Mutations...)
}

// Finalize enforces OK == (no errors) and returns the result.
func (r *WorkflowResult) Finalize() WorkflowResult {
	r.OK = len(r.Errors) == 0
	return *r
}

// WorkflowRun is a persisted record of one workflow invocation.
type WorkflowRun struct {
	Seq          int64  `json:"seq"`
	RunID        string `json:"run_id"`
	Endpoint     string `json:"endpoint"`
	OK           bool   `json:"ok"`
	InputJSON    string `json:"input_json"`
	ActionsJSON  string `json:"actions_json"`
	WarningsJSON string `json:"warnings_json"`
	ErrorsJSON   string `json:"errors_json"`
	StateJSON    string `json:"state_json"`
	StartedAt    int64  `json:"started_at"`
	DurationMs   int64  `json:"duration_ms"`
}

// WorkflowEvent is a state-machine transition stored for a run.
type WorkflowEvent struct {
	ID          int64  `json:"id"`
	RunID       string `json:"run_id"`
	SeqNo       int64  `json:"seq_no"`
	State       string `json:"state"`
	EventType   string `json:"event_type"`
	PayloadJSON string `json:"payload_json"`
	CreatedAt   int64  `json:"created_at"`
}

// AuditRecord logs a mutating UI action performed during a run.
type AuditRecord struct {
	ID         string `json:"id"`
	RunID      string `json:"run_id"`
	Category   string `json:"category"`
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	DetailJSON string `json:"detail_json"`
	Severity   string `json:"severity"`
	CreatedAt  int64  `json:"created_at"`
}
