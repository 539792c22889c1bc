package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the service's periodic maintenance jobs (session
// eviction, stats reporting) on cron schedules.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	jobs   map[string][]cron.EntryID // job name → entry IDs
	logger *slog.Logger
}

// New creates a new scheduler.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		jobs:   make(map[string][]cron.EntryID),
		logger: logger,
	}
}

// Start begins the cron scheduler. Blocks until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.cron.Start()
	s.logger.Info("scheduler started")

	<-ctx.Done()
	s.cron.Stop()
	s.logger.Info("scheduler stopped")
	return ctx.Err()
}

// AddJob registers a named job. The schedule is a standard cron
// expression (5 fields) or a predefined one like "@every 10m".
func (s *Scheduler) AddJob(name, schedule string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(schedule, func() {
		s.logger.Debug("cron fired", "job", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("scheduler: invalid schedule %q: %w", schedule, err)
	}

	s.jobs[name] = append(s.jobs[name], id)
	s.logger.Info("job registered", "job", name, "schedule", schedule)
	return nil
}

// RemoveJob removes all entries registered under a name.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.jobs[name] {
		s.cron.Remove(id)
	}
	delete(s.jobs, name)
}

// JobCount returns the total number of scheduled jobs.
func (s *Scheduler) JobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, ids := range s.jobs {
		total += len(ids)
	}
	return total
}

// SessionEvicter drops stale sessions; the session coordinator
// implements it.
type SessionEvicter interface {
	EvictIdle(maxAge time.Duration) int
	Len() int
}

// TicketCounter reports ticket totals; the ticket store implements it
// through a small adapter in cmd.
type TicketCounter func() (total, open int, err error)

// RegisterMaintenance wires the standard jobs: an eviction sweep on the
// given schedule and an hourly stats line.
func (s *Scheduler) RegisterMaintenance(sessions SessionEvicter, idleTTL time.Duration, sweepSchedule string, countTickets TicketCounter) error {
	if err := s.AddJob("session-eviction", sweepSchedule, func() {
		n := sessions.EvictIdle(idleTTL)
		if n > 0 {
			s.logger.Info("session sweep", "evicted", n, "remaining", sessions.Len())
		}
	}); err != nil {
		return err
	}

	if countTickets == nil {
		return nil
	}
	return s.AddJob("stats", "@hourly", func() {
		total, open, err := countTickets()
		if err != nil {
			s.logger.Warn("stats job failed", "error", err)
			return
		}
		s.logger.Info("service stats",
			"sessions", sessions.Len(),
			"tickets_total", total,
			"tickets_open", open,
		)
	})
}
