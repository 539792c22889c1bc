package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// Session is one user's attendance lifecycle record. At most one
// non-completed problem context exists per user at a time.
type Session struct {
	UserID             string     `json:"user_id"`
	State              State      `json:"state"`
	ProblemDescription string     `json:"problem_description,omitempty"`
	CategoryCode       string     `json:"category_code,omitempty"`
	TicketID           string     `json:"ticket_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	MessageCount       int        `json:"message_count"`
}

// reset returns the session to idle, discarding the previous problem's
// context. The creation timestamp is kept; everything problem-scoped goes.
func (s *Session) reset(now time.Time) {
	s.State = StateIdle
	s.ProblemDescription = ""
	s.CategoryCode = ""
	s.TicketID = ""
	s.CompletedAt = nil
	s.MessageCount = 0
	s.UpdatedAt = now
}

// Coordinator owns the per-user session map. All reads and
// read-modify-write sequences happen under one mutex, so a reader can
// never observe a half-updated session. Methods return value snapshots,
// never pointers into the map.
type Coordinator struct {
	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
}

// NewCoordinator creates an empty session coordinator.
func NewCoordinator(logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// GetOrCreate returns the user's session, creating an idle one on first
// contact. Idempotent: a second call with no intervening mutation
// returns the same state.
func (c *Coordinator) GetOrCreate(userID string) Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.locked(userID)
}

func (c *Coordinator) locked(userID string) *Session {
	s, ok := c.sessions[userID]
	if !ok {
		now := time.Now()
		s = &Session{UserID: userID, State: StateIdle, CreatedAt: now, UpdatedAt: now}
		c.sessions[userID] = s
		c.logger.Debug("session created", "user", userID)
	}
	return s
}

// ShouldResetContext reports whether the user's next message must be
// preceded by a history reset: true iff the session exists and is
// completed. Pure function of stored state.
func (c *Coordinator) ShouldResetContext(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	return ok && s.State == StateCompleted
}

// IsNewSessionStarting reports whether the session carries the
// new-session marker. Independent of ShouldResetContext: this predicate
// selects the downstream workflow, the other governs history truncation.
func (c *Coordinator) IsNewSessionStarting(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[userID]
	return ok && s.State == StateNewSession
}

// StartNewSession begins work on a problem. Coming out of a completed
// session it resets first and arms the new-session marker, so the
// marker fires exactly once and only on the completed->reset edge.
// From any other state it records the problem and moves to diagnosing.
func (c *Coordinator) StartNewSession(userID, problem string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.locked(userID)
	now := time.Now()
	if s.State == StateCompleted {
		s.reset(now)
		s.State = StateNewSession
		// The message opening this problem was recorded before the
		// reset zeroed the counter; it belongs to the new problem.
		s.MessageCount = 1
		c.logger.Info("session restarted after completion", "user", userID)
	} else if s.State != StateNewSession {
		s.State = StateDiagnosing
	}
	s.ProblemDescription = problem
	s.UpdatedAt = now
}

// MarkCompleted records that a ticket was produced for the current
// problem. Called exactly once per ticket, after the store write
// succeeded. Atomic with respect to ShouldResetContext readers.
func (c *Coordinator) MarkCompleted(userID, ticketID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.locked(userID)
	now := time.Now()
	s.State = StateCompleted
	s.TicketID = ticketID
	s.CompletedAt = &now
	s.UpdatedAt = now
	c.logger.Info("session completed", "user", userID, "ticket", ticketID)
}

// UpdateState applies an intermediate transition, rejecting illegal
// ones (e.g. completed -> waiting_confirmation).
func (c *Coordinator) UpdateState(userID string, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.locked(userID)
	if !canTransition(s.State, to) {
		return transitionError(userID, s.State, to)
	}
	s.State = to
	s.UpdatedAt = time.Now()
	return nil
}

// SetCategoryCode records the classified category on the session.
func (c *Coordinator) SetCategoryCode(userID, code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.locked(userID)
	s.CategoryCode = code
	s.UpdatedAt = time.Now()
}

// RecordMessage bumps the session's message counter.
func (c *Coordinator) RecordMessage(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.locked(userID)
	s.MessageCount++
	s.UpdatedAt = time.Now()
}

// FilterHistory applies the context-reset rule to a message list: for a
// completed session only the most recent user-authored message survives
// (result length <= 1); otherwise the input passes through unchanged.
func (c *Coordinator) FilterHistory(userID string, msgs []protocol.ChatMessage) []protocol.ChatMessage {
	c.mu.Lock()
	s, ok := c.sessions[userID]
	completed := ok && s.State == StateCompleted
	c.mu.Unlock()

	if !completed {
		return msgs
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == "user" {
			return []protocol.ChatMessage{msgs[i]}
		}
	}
	return nil
}

// Remove deletes the user's session entry.
func (c *Coordinator) Remove(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, userID)
}

// Len returns the number of tracked sessions.
func (c *Coordinator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Evictable returns the users whose sessions have been at rest (idle
// or completed) for longer than maxAge. An in-flight diagnosis is
// never listed. The caller owns the removal, so session and any
// per-user state it keeps alongside can be dropped together.
func (c *Coordinator) Evictable(maxAge time.Duration) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	var ids []string
	for id, s := range c.sessions {
		if s.UpdatedAt.After(cutoff) {
			continue
		}
		if s.State != StateIdle && s.State != StateCompleted {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// EvictIdle drops sessions untouched for longer than maxAge. Returns
// the number of evicted sessions. Callers that hold per-user state
// keyed to these sessions should use Evictable and remove both sides.
func (c *Coordinator) EvictIdle(maxAge time.Duration) int {
	ids := c.Evictable(maxAge)
	c.mu.Lock()
	for _, id := range ids {
		delete(c.sessions, id)
	}
	c.mu.Unlock()
	if len(ids) > 0 {
		c.logger.Info("evicted idle sessions", "count", len(ids))
	}
	return len(ids)
}
