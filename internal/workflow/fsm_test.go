package workflow

import (
	"fmt"
	"testing"

	"github.com/binjactl/uiengine/internal/domain"
)

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		m     *Machine
		from  State
		to    State
		valid bool
	}{
		{openMachine, StateIdle, StateLookingForExistingTab, true},
		{openMachine, StateIdle, StateWaitingForOptionsDialog, true}, // dialog left open by an earlier call
		{openMachine, StateLookingForExistingTab, StateReusingTab, true},
		{openMachine, StateUIOpenAttempt, StateLowLevelLoadFallback, true},
		{openMachine, StateWaitingForOptionsDialog, StateWaitingForOptionsDialog, true},
		{openMachine, StateConfirmingLoadedView, StateWaitingForOptionsDialog, true}, // final pass
		{openMachine, StateLowLevelLoadFallback, StateDone, true},
		{quitMachine, StateIdle, StateMarkDirty, true},
		{quitMachine, StateMarkDirty, StatePreSave, true},
		{quitMachine, StateRequestClose, StateWatchDialogs, true},
		{quitMachine, StateWatchDialogs, StateStuckConfirmation, true},
		{quitMachine, StateResolved, StateScheduleAppQuit, true},
		// Invalid transitions:
		{openMachine, StateIdle, StateLowLevelLoadFallback, false},
		{openMachine, StateReusingTab, StateUIOpenAttempt, false},
		{openMachine, StateDone, StateIdle, false},
		{quitMachine, StatePreSave, StateMarkDirty, false},
		{quitMachine, StateIdle, StateWatchDialogs, false},
		{quitMachine, StateScheduleAppQuit, StateResolved, false},
		{quitMachine, StateIdle, StateLookingForExistingTab, false},
	}

	for _, tt := range tests {
		name := fmt.Sprintf("%s:%s->%s", tt.m.Name, tt.from, tt.to)
		t.Run(name, func(t *testing.T) {
			got := tt.m.IsValidTransition(tt.from, tt.to)
			if got != tt.valid {
				t.Errorf("IsValidTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.valid)
			}
		})
	}
}

func TestTracker_RecordsTransitions(t *testing.T) {
	r := domain.NewWorkflowResult()
	tr := quitMachine.start(&r)
	for _, s := range []State{StateRequestClose, StateWatchDialogs, StateResolved, StateDone} {
		if err := tr.to(s); err != nil {
			t.Fatalf("to(%s): %v", s, err)
		}
	}
	if len(r.Transitions) != 4 {
		t.Fatalf("Transitions = %d, want 4", len(r.Transitions))
	}
	if r.Transitions[0].From != "idle" || r.Transitions[3].To != "done" {
		t.Errorf("unexpected transitions: %+v", r.Transitions)
	}
	if tr.current() != StateDone {
		t.Errorf("current = %s, want done", tr.current())
	}
}

func TestTracker_IllegalTransitionWarns(t *testing.T) {
	r := domain.NewWorkflowResult()
	tr := openMachine.start(&r)
	err := tr.to(StateReusingTab)
	if domain.CodeOf(err) != domain.ErrInvalidTransition.Code {
		t.Fatalf("err = %v, want invalid transition", err)
	}
	if tr.current() != StateIdle {
		t.Errorf("state moved to %s on illegal transition", tr.current())
	}
	if len(r.Warnings) != 1 || len(r.Errors) != 0 {
		t.Errorf("warnings = %v, errors = %v", r.Warnings, r.Errors)
	}
}
