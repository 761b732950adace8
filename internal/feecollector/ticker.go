package feecollector

import (
	"context"
	"fmt"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/lifecycle"
)

// Ticker drives Collector.Tick on a fixed interval (spec.md §4.7
// DEPOSIT_INTERVAL), wrapping a lifecycle.Scheduler so cmd/controlplane can
// start and stop it with every other ticking subsystem.
type Ticker struct {
	collector *Collector
	scheduler *lifecycle.Scheduler
	interval  time.Duration
}

// NewTicker creates a Ticker. interval defaults to 60s when non-positive.
func NewTicker(collector *Collector, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Ticker{collector: collector, scheduler: lifecycle.NewScheduler(), interval: interval}
}

func (t *Ticker) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", t.interval)
	if err := t.scheduler.AddFunc(spec, func() { t.collector.Tick(ctx) }); err != nil {
		return err
	}
	return t.scheduler.Start(ctx)
}

func (t *Ticker) Stop(ctx context.Context) error {
	return t.scheduler.Stop(ctx)
}

var _ lifecycle.Service = (*Ticker)(nil)
