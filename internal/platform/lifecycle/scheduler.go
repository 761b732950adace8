package lifecycle

import (
	"context"

	"github.com/robfig/cron/v3"
)

// Scheduler wraps robfig/cron as a lifecycle.Service, used for every
// periodic tick named in this package's doc comment (auto-scaler, fee
// deposit). Registering jobs before Start keeps every
// caller's tick function free of its own goroutine/ticker bookkeeping.
type Scheduler struct {
	cron *cron.Cron
}

// NewScheduler creates an empty Scheduler built with cron.WithSeconds, so
// its parser takes 6-field specs with a leading seconds field and
// sub-minute ticks are expressible.
func NewScheduler() *Scheduler {
	return &Scheduler{cron: cron.New(cron.WithSeconds())}
}

// AddFunc registers fn to run on the given cron spec (6-field, seconds
// first, since this Scheduler is built WithSeconds). Returns an error for
// an unparseable spec.
func (s *Scheduler) AddFunc(spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, fn)
	return err
}

// Start begins running registered jobs. It never blocks.
func (s *Scheduler) Start(_ context.Context) error {
	s.cron.Start()
	return nil
}

// Stop waits for any in-flight job to finish, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

var _ Service = (*Scheduler)(nil)
