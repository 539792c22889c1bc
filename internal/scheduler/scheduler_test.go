package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/sanchobuendia/tickets/internal/session"
)

func TestAddJob(t *testing.T) {
	var mu sync.Mutex
	calls := 0

	sched := New(nil)
	err := sched.AddJob("sweep", "@every 1s", func() {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("AddJob: %v", err)
	}

	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d", sched.JobCount())
	}

	// Start cron and wait for it to fire
	sched.cron.Start()
	time.Sleep(1500 * time.Millisecond)
	sched.cron.Stop()

	mu.Lock()
	defer mu.Unlock()
	if calls == 0 {
		t.Error("expected at least one call")
	}
}

func TestInvalidSchedule(t *testing.T) {
	sched := New(nil)
	err := sched.AddJob("sweep", "invalid-cron", func() {})
	if err == nil {
		t.Error("expected error for invalid schedule")
	}
}

func TestRemoveJob(t *testing.T) {
	sched := New(nil)
	sched.AddJob("sweep", "@every 1h", func() {})
	sched.AddJob("sweep", "@every 2h", func() {})
	sched.AddJob("stats", "@every 3h", func() {})

	if sched.JobCount() != 3 {
		t.Fatalf("JobCount = %d before remove", sched.JobCount())
	}

	sched.RemoveJob("sweep")
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d after remove", sched.JobCount())
	}
}

func TestRegisterMaintenance(t *testing.T) {
	coord := session.NewCoordinator(nil)
	sched := New(nil)

	counted := false
	err := sched.RegisterMaintenance(coord, 4*time.Hour, "@every 10m", func() (int, int, error) {
		counted = true
		return 0, 0, nil
	})
	if err != nil {
		t.Fatalf("RegisterMaintenance: %v", err)
	}
	if sched.JobCount() != 2 {
		t.Errorf("JobCount = %d, want eviction + stats", sched.JobCount())
	}
	_ = counted
}

func TestRegisterMaintenance_NoCounter(t *testing.T) {
	sched := New(nil)
	if err := sched.RegisterMaintenance(session.NewCoordinator(nil), time.Hour, "@every 10m", nil); err != nil {
		t.Fatalf("RegisterMaintenance: %v", err)
	}
	if sched.JobCount() != 1 {
		t.Errorf("JobCount = %d, want eviction only", sched.JobCount())
	}
}

func TestRegisterMaintenance_BadSchedule(t *testing.T) {
	sched := New(nil)
	if err := sched.RegisterMaintenance(session.NewCoordinator(nil), time.Hour, "not-a-schedule", nil); err == nil {
		t.Error("expected error for bad sweep schedule")
	}
}
