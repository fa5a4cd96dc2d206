// Package schedule runs the periodic background jobs (feed refresh, share
// preview, signage) on cron expressions evaluated in the display timezone.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "invitecal/internal/log"
)

// Job is one unit of periodic work. The context is cancelled when the
// scheduler stops.
type Job func(ctx context.Context) error

// Scheduler wraps a cron.Cron. Jobs never overlap with themselves.
type Scheduler struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler whose schedules are interpreted in loc.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		c: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Validate checks a standard five-field cron expression.
func Validate(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("schedule: invalid cron %q: %w", spec, err)
	}
	return nil
}

// Add registers job under name. Errors from the job are logged, never
// retried before the next slot.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if err := Validate(spec); err != nil {
		return err
	}
	_, err := s.c.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			appLog.Error("scheduled job failed", err, "job", name)
			return
		}
		appLog.Debug("scheduled job done", "job", name, "took", time.Since(start).Round(time.Millisecond).String())
	})
	if err != nil {
		return fmt.Errorf("schedule: add %s: %w", name, err)
	}
	appLog.Info("scheduled job registered", "job", name, "cron", spec)
	return nil
}

// Len reports the number of registered jobs.
func (s *Scheduler) Len() int { return len(s.c.Entries()) }

// Next returns the next activation of every job, in registration order.
func (s *Scheduler) Next() []time.Time {
	entries := s.c.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Next)
	}
	return out
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop prevents new runs, cancels the jobs' context and waits for running
// jobs to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.c.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
