package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sanchobuendia/tickets/internal/agent"
	"github.com/sanchobuendia/tickets/internal/session"
	"github.com/sanchobuendia/tickets/internal/ticket"
	"github.com/sanchobuendia/tickets/internal/tool"
	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// Responder produces one assistant turn for a conversation history. The
// agent team implements it.
type Responder interface {
	Respond(ctx context.Context, history []protocol.ChatMessage, info agent.PromptInfo) (string, error)
}

// Message is one inbound user turn, connector-agnostic.
type Message struct {
	UserID      string
	UserName    string
	Text        string
	Attachments []string
}

// Reply is the assistant turn sent back to the connector. TicketIDs
// lists every ticket the turn produced, in creation order: one inbound
// message can describe several problems and yield several tickets.
type Reply struct {
	Text      string
	TicketIDs []string
}

// NewTicket reports whether the turn produced at least one ticket.
func (r Reply) NewTicket() bool { return len(r.TicketIDs) > 0 }

// Router serializes message handling per user and applies the session
// lifecycle around each turn: history reset after a completed problem,
// the one-shot full-workflow marker, and the ticket diff that tells
// connectors a ticket was just issued.
type Router struct {
	responder Responder
	coord     *session.Coordinator
	tickets   ticket.Store
	logger    *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// entry is one user's conversation plus the lock that serializes their
// turns. The router lock only guards the map; slow LLM turns run under
// the per-user lock.
type entry struct {
	mu   sync.Mutex
	conv *session.Conversation
}

// NewRouter creates a router over the given responder and stores.
func NewRouter(responder Responder, coord *session.Coordinator, tickets ticket.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		responder: responder,
		coord:     coord,
		tickets:   tickets,
		logger:    logger,
		entries:   make(map[string]*entry),
	}
}

func (r *Router) entryFor(userID string) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		e = &entry{conv: session.NewConversation(r.coord, userID)}
		r.entries[userID] = e
	}
	return e
}

// HandleMessage processes one user turn end to end and returns the
// assistant's reply. Turns from the same user never interleave.
func (r *Router) HandleMessage(ctx context.Context, msg Message) (Reply, error) {
	if msg.UserID == "" {
		return Reply{}, fmt.Errorf("chat: user id is required")
	}
	if msg.Text == "" {
		return Reply{}, fmt.Errorf("chat: empty message")
	}

	e := r.entryFor(msg.UserID)
	e.mu.Lock()
	defer e.mu.Unlock()

	conv := e.conv
	if msg.UserName != "" {
		conv.UserName = msg.UserName
	}

	// A completed problem means this message opens a new one: the old
	// context is truncated away before the turn runs.
	before := r.coord.GetOrCreate(msg.UserID)
	resetDue := before.State == session.StateCompleted

	conv.AddMessage("user", msg.Text)
	if resetDue {
		conv.ClearHistoryExceptCurrent()
		r.logger.Info("conversation context reset",
			"user", msg.UserID,
			"previous_ticket", before.TicketID,
		)
	}
	if resetDue || before.State == session.StateIdle {
		r.coord.StartNewSession(msg.UserID, msg.Text)
	}
	forceFull := r.coord.IsNewSessionStarting(msg.UserID)

	// Snapshot of the ticket ids in the store; the turn's tickets are
	// whatever shows up beyond this set after the agent runs.
	beforeTickets := r.ticketSet()

	ctx = tool.WithCurrentUser(ctx, msg.UserID)
	if len(msg.Attachments) > 0 {
		ctx = tool.WithAttachments(ctx, msg.Attachments)
	}

	info := agent.PromptInfo{
		UserName:          conv.UserName,
		ForceFullWorkflow: forceFull,
	}

	text, err := r.responder.Respond(ctx, conv.History(), info)
	if errors.Is(err, agent.ErrMalformedExchange) {
		// One retry on a minimal context: just the message that
		// triggered the turn.
		r.logger.Warn("malformed exchange, retrying on fresh context",
			"user", msg.UserID,
			"error", err,
		)
		conv.ClearHistoryExceptCurrent()
		text, err = r.responder.Respond(ctx, conv.History(), info)
	}
	if err != nil {
		return Reply{}, fmt.Errorf("chat: %w", err)
	}

	conv.AddMessage("assistant", text)

	// The marker is consumed by the turn it was armed for.
	if forceFull && r.coord.IsNewSessionStarting(msg.UserID) {
		if uerr := r.coord.UpdateState(msg.UserID, session.StateDiagnosing); uerr != nil {
			r.logger.Warn("could not clear new-session marker", "user", msg.UserID, "error", uerr)
		}
	}

	reply := Reply{Text: text}
	after := r.coord.GetOrCreate(msg.UserID)
	conv.CategoryCode = after.CategoryCode

	created := r.createdSince(beforeTickets)
	// The session tracks the last ticket; keep it in the diff even if a
	// store snapshot failed.
	if after.TicketID != "" && after.TicketID != before.TicketID && !slices.Contains(created, after.TicketID) {
		created = append(created, after.TicketID)
	}
	if len(created) > 0 {
		reply.TicketIDs = created
		conv.TicketID = created[len(created)-1]
		conv.ProblemResolved = true
		if tk, terr := r.tickets.Get(conv.TicketID); terr == nil {
			conv.IssueDescription = tk.Description
			conv.ResolutionNotes = tk.ResolutionNotes
		}
		r.logger.Info("turn produced tickets",
			"user", msg.UserID,
			"tickets", created,
		)
	}
	return reply, nil
}

// ticketSet returns the ids currently in the store, or nil when the
// store cannot be listed.
func (r *Router) ticketSet() map[string]struct{} {
	all, err := r.tickets.List(ticket.Filter{})
	if err != nil {
		r.logger.Warn("ticket snapshot failed", "error", err)
		return nil
	}
	set := make(map[string]struct{}, len(all))
	for _, tk := range all {
		set[tk.ID] = struct{}{}
	}
	return set
}

// createdSince diffs the store against a pre-turn snapshot and returns
// the new ids in creation order.
func (r *Router) createdSince(before map[string]struct{}) []string {
	if before == nil {
		return nil
	}
	all, err := r.tickets.List(ticket.Filter{})
	if err != nil {
		r.logger.Warn("ticket diff failed", "error", err)
		return nil
	}
	var created []string
	for _, tk := range all { // newest first
		if _, ok := before[tk.ID]; !ok {
			created = append(created, tk.ID)
		}
	}
	slices.Reverse(created)
	return created
}

// State returns the observability snapshot for a user's conversation.
func (r *Router) State(userID string) session.Snapshot {
	e := r.entryFor(userID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Summary()
}

// Reset drops the user's conversation and session entirely. Used by the
// /new connector command and the DELETE API endpoint.
func (r *Router) Reset(userID string) {
	r.mu.Lock()
	delete(r.entries, userID)
	r.mu.Unlock()
	r.coord.Remove(userID)
	r.logger.Info("conversation dropped", "user", userID)
}

// EvictIdle drops users whose sessions have been at rest longer than
// maxAge. Session and conversation go together: sweeping only the
// session would leave the old transcript behind and feed a resolved
// problem's context into the user's next turn. The scheduler calls this.
func (r *Router) EvictIdle(maxAge time.Duration) int {
	evicted := r.coord.Evictable(maxAge)
	if len(evicted) == 0 {
		return 0
	}
	r.mu.Lock()
	for _, id := range evicted {
		delete(r.entries, id)
	}
	r.mu.Unlock()
	for _, id := range evicted {
		r.coord.Remove(id)
	}
	r.logger.Info("evicted idle conversations", "count", len(evicted))
	return len(evicted)
}

// Len returns the number of tracked sessions.
func (r *Router) Len() int { return r.coord.Len() }

// Users returns the ids of users with an active conversation.
func (r *Router) Users() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}
