// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/erazemk/najdeno/internal/store"
)

// DefaultPurgeSchedule runs the token purge once a day at midnight.
const DefaultPurgeSchedule = "@daily"

// jobTimeout bounds a single run.
const jobTimeout = time.Minute

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
	db   *sql.DB
	now  func() time.Time
}

// NewScheduler creates a scheduler for maintenance on db.
func NewScheduler(db *sql.DB, now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		cron: cron.New(),
		db:   db,
		now:  now,
	}
}

// Add registers fn under name to run on spec. Failures are logged.
func (s *Scheduler) Add(spec, name string, fn func(context.Context) error) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		start := time.Now()
		if err := fn(ctx); err != nil {
			slog.Error("job failed", "job", name, "error", err)
			return
		}
		slog.Info("job finished", "job", name, "duration", time.Since(start).Round(time.Millisecond))
	})
	if err != nil {
		return fmt.Errorf("scheduling %s (%q): %w", name, spec, err)
	}
	return nil
}

// AddPurge schedules PurgeTokens. An empty spec uses DefaultPurgeSchedule.
func (s *Scheduler) AddPurge(spec string) error {
	if spec == "" {
		spec = DefaultPurgeSchedule
	}
	return s.Add(spec, "purge revoked tokens", func(ctx context.Context) error {
		_, err := s.PurgeTokens(ctx)
		return err
	})
}

// PurgeTokens drops revocations of tokens that have expired.
func (s *Scheduler) PurgeTokens(ctx context.Context) (int64, error) {
	n, err := store.PurgeRevokedTokens(ctx, s.db, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		slog.Info("purged revoked tokens", "count", n)
	}
	return n, nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts the scheduler and waits for running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out")
	}
}
