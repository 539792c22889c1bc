package session

import "fmt"

// State is the attendance lifecycle state of one user's session.
type State string

const (
	// StateIdle is the initial state, before any problem is reported.
	StateIdle State = "idle"
	// StateNewSession marks the first problem after a completed session.
	// It forces the full diagnostic workflow downstream and is left as
	// soon as the next regular transition happens.
	StateNewSession State = "new_session"
	// StateDiagnosing means the agent is gathering problem context.
	StateDiagnosing State = "diagnosing"
	// StateWaitingConfirmation means a resolution was proposed and the
	// user has not yet confirmed it.
	StateWaitingConfirmation State = "waiting_confirmation"
	// StateTicketCreating means ticket creation is in flight.
	StateTicketCreating State = "ticket_creating"
	// StateCompleted means a ticket was produced for the current
	// problem; context must reset before the next message.
	StateCompleted State = "completed"
)

// Valid reports whether s is a recognized state.
func (s State) Valid() bool {
	switch s {
	case StateIdle, StateNewSession, StateDiagnosing,
		StateWaitingConfirmation, StateTicketCreating, StateCompleted:
		return true
	}
	return false
}

// canTransition is the single legality check for session transitions.
// Same-state updates are no-ops and always allowed. Any state may jump
// to completed (ticket creation can happen from anywhere), and completed
// may only leave through the reset edge back to idle.
func canTransition(from, to State) bool {
	if from == to {
		return true
	}
	if to == StateCompleted {
		return true
	}
	switch from {
	case StateCompleted:
		return to == StateIdle
	case StateIdle:
		return to == StateDiagnosing || to == StateNewSession
	case StateNewSession:
		return to == StateDiagnosing || to == StateWaitingConfirmation || to == StateTicketCreating
	case StateDiagnosing:
		return to == StateWaitingConfirmation || to == StateTicketCreating
	case StateWaitingConfirmation:
		return to == StateDiagnosing || to == StateTicketCreating
	case StateTicketCreating:
		return false
	}
	return false
}

// transitionError builds the error reported for an illegal transition.
func transitionError(userID string, from, to State) error {
	return fmt.Errorf("session %s: illegal transition %s -> %s", userID, from, to)
}
