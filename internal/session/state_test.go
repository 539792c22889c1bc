package session

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		// same-state no-ops
		{StateIdle, StateIdle, true},
		{StateDiagnosing, StateDiagnosing, true},
		{StateCompleted, StateCompleted, true},

		// anything may complete
		{StateIdle, StateCompleted, true},
		{StateNewSession, StateCompleted, true},
		{StateDiagnosing, StateCompleted, true},
		{StateWaitingConfirmation, StateCompleted, true},
		{StateTicketCreating, StateCompleted, true},

		// completed only leaves through the reset edge
		{StateCompleted, StateIdle, true},
		{StateCompleted, StateDiagnosing, false},
		{StateCompleted, StateWaitingConfirmation, false},
		{StateCompleted, StateNewSession, false},

		// forward progression
		{StateIdle, StateDiagnosing, true},
		{StateIdle, StateNewSession, true},
		{StateIdle, StateWaitingConfirmation, false},
		{StateIdle, StateTicketCreating, false},
		{StateNewSession, StateDiagnosing, true},
		{StateNewSession, StateWaitingConfirmation, true},
		{StateNewSession, StateTicketCreating, true},
		{StateDiagnosing, StateWaitingConfirmation, true},
		{StateDiagnosing, StateTicketCreating, true},
		{StateDiagnosing, StateIdle, false},
		{StateWaitingConfirmation, StateDiagnosing, true},
		{StateWaitingConfirmation, StateTicketCreating, true},
		{StateWaitingConfirmation, StateIdle, false},
		{StateTicketCreating, StateDiagnosing, false},
		{StateTicketCreating, StateIdle, false},
	}

	for _, tt := range tests {
		if got := canTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateIdle, StateNewSession, StateDiagnosing,
		StateWaitingConfirmation, StateTicketCreating, StateCompleted} {
		if !s.Valid() {
			t.Errorf("expected %s to be valid", s)
		}
	}
	if State("resolved").Valid() {
		t.Error("expected unknown state to be invalid")
	}
}
