// Package scheduler runs the periodic background jobs: partner imports and
// deactivation of expired deals.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is one unit of periodic work. Each run gets its own timeout.
type Job func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
}

// cronLogger routes cron's own logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// New returns a Scheduler whose jobs are cancelled after timeout. A job still
// running at its next tick is skipped rather than overlapped.
func New(timeout time.Duration) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		timeout: timeout,
	}
}

// Add registers job under a standard cron spec or descriptor such as "@every 15m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, s.wrap(name, job)); err != nil {
		return fmt.Errorf("invalid schedule %q for %s: %w", spec, name, err)
	}
	slog.Info("Scheduled job", "job", name, "schedule", spec)
	return nil
}

func (s *Scheduler) wrap(name string, job Job) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		start := time.Now()
		if err := job(ctx); err != nil {
			slog.Error("Scheduled job failed", "job", name, "duration", time.Since(start), "error", err)
			return
		}
		slog.Info("Scheduled job finished", "job", name, "duration", time.Since(start))
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
