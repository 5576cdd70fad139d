package scheduler

import (
	"testing"
	"time"

	"github.com/BTreeMap/CookFlow/internal/store"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("* * * * *", func() {}); err != nil {
		t.Errorf("Expected no error adding job, got %v", err)
	}
}

func TestSchedulerRejectsInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("Expected error adding invalid cron expression, got nil")
	}
}

func TestScheduleSessionSweep(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.ScheduleSessionSweep(store.NewInMemoryStore(), 30*time.Minute, ""); err != nil {
		t.Errorf("ScheduleSessionSweep with default schedule failed: %v", err)
	}
	if err := s.ScheduleSessionSweep(store.NewInMemoryStore(), 30*time.Minute, "*/10 * * * *"); err != nil {
		t.Errorf("ScheduleSessionSweep with custom schedule failed: %v", err)
	}
	if err := s.ScheduleSessionSweep(store.NewInMemoryStore(), 30*time.Minute, "bogus"); err == nil {
		t.Error("ScheduleSessionSweep with invalid schedule succeeded, want error")
	}
}
