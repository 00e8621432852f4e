// Package workflow implements the open, quit and status bar workflows that
// drive the host UI on its UI thread.
package workflow

import (
	"fmt"
	"time"

	"github.com/binjactl/uiengine/internal/domain"
)

// State is one state of a workflow state machine.
type State string

const (
	StateIdle State = "idle"
	StateDone State = "done"

	StateLookingForExistingTab   State = "looking_for_existing_tab"
	StateReusingTab              State = "reusing_tab"
	StateUIOpenAttempt           State = "ui_open_attempt"
	StateLowLevelLoadFallback    State = "low_level_load_fallback"
	StateWaitingForOptionsDialog State = "waiting_for_options_dialog"
	StateConfirmingLoadedView    State = "confirming_loaded_view"

	StateMarkDirty         State = "mark_dirty"
	StatePreSave           State = "pre_save"
	StateRequestClose      State = "request_close"
	StateWatchDialogs      State = "watch_dialogs"
	StateResolved          State = "resolved"
	StateStuckConfirmation State = "stuck_confirmation"
	StateScheduleAppQuit   State = "schedule_app_quit"
)

// Machine is a named transition table.
type Machine struct {
	Name        string
	transitions map[State]map[State]bool
}

// openMachine: options dialogs may be handled on entry, after the open
// attempt, and again during the final confirmation pass.
var openMachine = &Machine{
	Name: "open",
	transitions: map[State]map[State]bool{
		StateIdle: {
			StateWaitingForOptionsDialog: true,
			StateLookingForExistingTab:   true,
			StateConfirmingLoadedView:    true,
			StateDone:                    true,
		},
		StateLookingForExistingTab: {StateReusingTab: true, StateUIOpenAttempt: true},
		StateReusingTab:            {StateWaitingForOptionsDialog: true, StateConfirmingLoadedView: true},
		StateUIOpenAttempt: {
			StateWaitingForOptionsDialog: true,
			StateLowLevelLoadFallback:    true,
			StateConfirmingLoadedView:    true,
		},
		StateLowLevelLoadFallback: {StateConfirmingLoadedView: true, StateDone: true},
		StateWaitingForOptionsDialog: {
			StateWaitingForOptionsDialog: true,
			StateConfirmingLoadedView:    true,
		},
		StateConfirmingLoadedView: {StateWaitingForOptionsDialog: true, StateDone: true},
	},
}

var quitMachine = &Machine{
	Name: "quit",
	transitions: map[State]map[State]bool{
		StateIdle: {
			StateMarkDirty:         true,
			StatePreSave:           true,
			StateRequestClose:      true,
			StateResolved:          true,
			StateStuckConfirmation: true,
			StateDone:              true,
		},
		StateMarkDirty: {
			StatePreSave:           true,
			StateRequestClose:      true,
			StateResolved:          true,
			StateStuckConfirmation: true,
		},
		StatePreSave:           {StateRequestClose: true},
		StateRequestClose:      {StateWatchDialogs: true},
		StateWatchDialogs:      {StateResolved: true, StateStuckConfirmation: true},
		StateResolved:          {StateScheduleAppQuit: true, StateDone: true},
		StateStuckConfirmation: {StateScheduleAppQuit: true, StateDone: true},
		StateScheduleAppQuit:   {StateDone: true},
	},
}

// IsValidTransition checks if a transition is legal in m.
func (m *Machine) IsValidTransition(from, to State) bool {
	targets, ok := m.transitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// tracker walks a Machine and records every transition on the result.
type tracker struct {
	machine *Machine
	state   State
	start   time.Time
	result  *domain.WorkflowResult
}

func (m *Machine) start(r *domain.WorkflowResult) *tracker {
	return &tracker{machine: m, state: StateIdle, start: time.Now(), result: r}
}

// to moves to next. An illegal move is recorded as a warning and ignored.
func (t *tracker) to(next State) error {
	if !t.machine.IsValidTransition(t.state, next) {
		err := domain.NewEngineError(domain.ErrInvalidTransition.Code,
			fmt.Sprintf("%s workflow: illegal transition %s -> %s", t.machine.Name, t.state, next))
		t.result.Warn(domain.Message(err))
		return err
	}
	t.result.Transitions = append(t.result.Transitions, domain.StateTransition{
		From: string(t.state),
		To:   string(next),
		AtMs: time.Since(t.start).Milliseconds(),
	})
	t.state = next
	return nil
}

// current returns the state the tracker is in.
func (t *tracker) current() State { return t.state }
