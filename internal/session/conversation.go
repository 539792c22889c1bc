package session

import (
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// Conversation holds one user's message history plus fields mirrored
// from the last known ticket. It is not safe for concurrent use: the
// router serializes all access per user.
type Conversation struct {
	UserID string

	// Denormalized from the last ticket produced in this conversation.
	TicketID         string
	CategoryCode     string
	UserName         string
	IssueDescription string
	ResolutionNotes  string
	ProblemResolved  bool

	history []protocol.ChatMessage
	coord   *Coordinator
}

// NewConversation creates an empty conversation bound to the
// coordinator that decides its reset behavior.
func NewConversation(coord *Coordinator, userID string) *Conversation {
	return &Conversation{UserID: userID, coord: coord}
}

// AddMessage appends a turn to the history and bumps the session's
// message counter for user-authored turns.
func (c *Conversation) AddMessage(role, content string) {
	c.history = append(c.history, protocol.ChatMessage{Role: role, Content: content})
	if role == "user" {
		c.coord.RecordMessage(c.UserID)
	}
}

// History returns a copy of the full message history.
func (c *Conversation) History() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(c.history))
	copy(out, c.history)
	return out
}

// FilteredHistory returns the history after the coordinator's
// context-reset rule: a completed session yields only the latest user
// message.
func (c *Conversation) FilteredHistory() []protocol.ChatMessage {
	return c.coord.FilterHistory(c.UserID, c.History())
}

// ShouldResetContext reports whether the history must be cleared before
// the next user message is appended.
func (c *Conversation) ShouldResetContext() bool {
	return c.coord.ShouldResetContext(c.UserID)
}

// ClearHistoryExceptCurrent truncates the history to its last element.
// The coordinator only reports the need for a reset; performing it is
// the caller's job.
func (c *Conversation) ClearHistoryExceptCurrent() {
	if len(c.history) > 1 {
		c.history = c.history[len(c.history)-1:]
	}
}

// Len returns the number of messages in the history.
func (c *Conversation) Len() int {
	return len(c.history)
}

// Snapshot is the observability view of a conversation.
type Snapshot struct {
	UserID          string `json:"user_id"`
	State           State  `json:"state"`
	TicketID        string `json:"ticket_id,omitempty"`
	CategoryCode    string `json:"category_code,omitempty"`
	UserName        string `json:"user_name,omitempty"`
	ProblemResolved bool   `json:"problem_resolved"`
	MessageCount    int    `json:"message_count"`
	ResetDue        bool   `json:"reset_due"`
}

// Summary returns the current snapshot for debugging endpoints.
func (c *Conversation) Summary() Snapshot {
	sess := c.coord.GetOrCreate(c.UserID)
	return Snapshot{
		UserID:          c.UserID,
		State:           sess.State,
		TicketID:        c.TicketID,
		CategoryCode:    c.CategoryCode,
		UserName:        c.UserName,
		ProblemResolved: c.ProblemResolved,
		MessageCount:    len(c.history),
		ResetDue:        sess.State == StateCompleted,
	}
}
