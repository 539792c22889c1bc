package protocol

import (
	"fmt"
	"time"
)

// TicketStatus is the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen   TicketStatus = "open"
	TicketClosed TicketStatus = "closed"
)

// ValidStatus reports whether s is a recognized ticket status.
func ValidStatus(s TicketStatus) bool {
	return s == TicketOpen || s == TicketClosed
}

// Priority classifies the urgency of a ticket.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority normalizes a priority string, falling back to medium
// when the value is not one of the four recognized levels.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s)
	default:
		return PriorityMedium
	}
}

// Ticket is a support request produced for one distinct user problem.
// A closed ticket always carries resolution notes and a close timestamp.
type Ticket struct {
	ID              string       `json:"id"`
	UserName        string       `json:"user_name"`
	Description     string       `json:"description"`
	Priority        Priority     `json:"priority"`
	Status          TicketStatus `json:"status"`
	CategoryCode    string       `json:"category_code,omitempty"`
	GroupCode       string       `json:"group_code,omitempty"`
	Attachments     []string     `json:"attachments,omitempty"`
	ResolutionNotes string       `json:"resolution_notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
}

// Summary renders the one-line human-readable form used in tool results
// and reports.
func (t *Ticket) Summary() string {
	desc := t.Description
	if len(desc) > 60 {
		desc = desc[:57] + "..."
	}
	return fmt.Sprintf("Ticket %s [%s] | Priority: %s | %s", t.ID, t.Status, t.Priority, desc)
}
