package ticket

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sanchobuendia/tickets/pkg/protocol"
)

// MemoryStore keeps tickets in process memory. It backs tests and
// deployments that run without a database path configured.
type MemoryStore struct {
	mu      sync.RWMutex
	tickets map[string]*protocol.Ticket
	order   []string // insertion order, for stable listing
}

// NewMemoryStore creates an empty in-memory ticket store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tickets: make(map[string]*protocol.Ticket)}
}

func (s *MemoryStore) Save(t *protocol.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tickets[t.ID]; !exists {
		s.order = append(s.order, t.ID)
	}
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(id string) (*protocol.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) Close(id, resolution string) (*protocol.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tickets[id]
	if !ok {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	now := time.Now()
	t.Status = protocol.TicketClosed
	if strings.TrimSpace(resolution) != "" {
		t.ResolutionNotes = resolution
	} else if t.ResolutionNotes == "" {
		t.ResolutionNotes = DefaultResolution
	}
	t.ClosedAt = &now

	cp := *t
	return &cp, nil
}

func (s *MemoryStore) List(filter Filter) ([]*protocol.Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*protocol.Ticket
	// Newest first: walk insertion order backwards.
	for i := len(s.order) - 1; i >= 0; i-- {
		t := s.tickets[s.order[i]]
		if !matches(t, filter) {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Count(filter Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, id := range s.order {
		if matches(s.tickets[id], filter) {
			n++
		}
	}
	return n, nil
}

func matches(t *protocol.Ticket, f Filter) bool {
	if f.Status != nil && t.Status != *f.Status {
		return false
	}
	if f.UserName != "" && t.UserName != f.UserName {
		return false
	}
	if f.Query != "" && !strings.Contains(strings.ToLower(t.Description), strings.ToLower(f.Query)) {
		return false
	}
	return true
}
