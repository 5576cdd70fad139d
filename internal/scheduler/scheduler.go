// Package scheduler provides cron-based background jobs for the dialogue
// service, chiefly the periodic sweep of expired conversation sessions.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/BTreeMap/CookFlow/internal/store"
)

// DefaultSweepSchedule runs the session expiry sweep every five minutes.
const DefaultSweepSchedule = "*/5 * * * *"

// sweepTimeout caps one sweep run so a slow backend cannot pile up jobs.
const sweepTimeout = 30 * time.Second

// Scheduler provides cron-based job scheduling.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates and starts a cron scheduler.
func NewScheduler() *Scheduler {
	// Use standard 5-field cron parser (min, hour, dom, month, dow) and enable recovery
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	c.Start()
	return &Scheduler{cron: c}
}

// AddJob schedules a task using the provided cron expression.
// It returns an error if the expression is invalid.
func (s *Scheduler) AddJob(expr string, task func()) error {
	_, err := s.cron.AddFunc(expr, task)
	return err
}

// ScheduleSessionSweep registers a recurring job that deletes sessions idle
// longer than ttl. An empty schedule falls back to DefaultSweepSchedule.
func (s *Scheduler) ScheduleSessionSweep(st store.Store, ttl time.Duration, schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	slog.Debug("Scheduler.ScheduleSessionSweep: registering sweep", "schedule", schedule, "ttl", ttl)
	return s.AddJob(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		removed, err := st.SweepExpiredSessions(ctx, ttl)
		if err != nil {
			slog.Error("Scheduler.sessionSweep: sweep failed", "error", err)
			return
		}
		if removed > 0 {
			slog.Info("Scheduler.sessionSweep: removed expired sessions", "count", removed, "ttl", ttl)
		}
	})
}

// Stop stops the cron scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
