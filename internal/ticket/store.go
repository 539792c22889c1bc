package ticket

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// ErrNotFound is returned when a ticket id is unknown to the store.
var ErrNotFound = errors.New("ticket not found")

// DefaultResolution fills the resolution notes when a ticket arrives
// already closed without any.
const DefaultResolution = "Problema resolvido pelo agente de suporte"

// Store is the persistence interface for tickets. An in-memory map
// satisfies it in tests; SQLite satisfies it in production.
type Store interface {
	// Save creates or updates a ticket.
	Save(t *protocol.Ticket) error
	// Get retrieves a ticket by ID.
	Get(id string) (*protocol.Ticket, error)
	// Close transitions a ticket to closed with the given resolution
	// notes and returns the updated record.
	Close(id, resolution string) (*protocol.Ticket, error)
	// List returns tickets matching the filter, newest first.
	List(filter Filter) ([]*protocol.Ticket, error)
	// Count returns the number of tickets matching the filter.
	Count(filter Filter) (int, error)
}

// Filter constrains ticket list and count queries.
type Filter struct {
	Status   *protocol.TicketStatus
	UserName string // exact match
	Query    string // text search on description
	Limit    int    // 0 = no limit
}

// Params are the caller-supplied fields for a new ticket, as they
// arrive from the LLM tool call. Invalid values are repaired, not
// rejected.
type Params struct {
	UserName     string
	Description  string
	Priority     string
	Status       string
	Resolution   string
	CategoryCode string
	GroupCode    string
	Attachments  []string
}

// New builds a ticket from params. It generates a fresh id, normalizes
// priority and status, and when the ticket is created already closed it
// guarantees non-empty resolution notes and a close timestamp.
func New(p Params) *protocol.Ticket {
	now := time.Now()
	t := &protocol.Ticket{
		ID:              NewID(),
		UserName:        p.UserName,
		Description:     p.Description,
		Priority:        protocol.ParsePriority(p.Priority),
		Status:          protocol.TicketStatus(p.Status),
		CategoryCode:    p.CategoryCode,
		GroupCode:       p.GroupCode,
		Attachments:     p.Attachments,
		ResolutionNotes: p.Resolution,
		CreatedAt:       now,
	}
	if !protocol.ValidStatus(t.Status) {
		t.Status = protocol.TicketOpen
	}
	if t.Status == protocol.TicketClosed {
		if strings.TrimSpace(t.ResolutionNotes) == "" {
			t.ResolutionNotes = DefaultResolution
		}
		closed := now
		t.ClosedAt = &closed
	}
	return t
}

// NewID returns a ticket id of the form TKT-XXXXXXXX (8 uppercase hex
// chars from a fresh UUID).
func NewID() string {
	return "TKT-" + strings.ToUpper(uuid.NewString()[:8])
}
