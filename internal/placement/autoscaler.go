package placement

import (
	"context"
	"fmt"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/lifecycle"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
)

// Autoscaler drives Service.Tick across every workload on a fixed interval
// (spec.md §4.6: auto-scaling is "evaluated periodically, e.g. every 10s").
// It is itself a lifecycle.Service so cmd/controlplane can start and stop it
// alongside every other ticking subsystem.
type Autoscaler struct {
	svc       *Service
	scheduler *lifecycle.Scheduler
	interval  time.Duration
	log       *logging.Logger
}

// NewAutoscaler creates an Autoscaler that ticks every interval. log
// defaults to a standalone "placement-autoscaler" logger when nil.
func NewAutoscaler(svc *Service, interval time.Duration, log *logging.Logger) *Autoscaler {
	if log == nil {
		log = logging.New("placement-autoscaler", "info", "json")
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Autoscaler{svc: svc, scheduler: lifecycle.NewScheduler(), interval: interval, log: log}
}

// Start registers the tick job and begins running it. It never blocks.
func (a *Autoscaler) Start(ctx context.Context) error {
	spec := fmt.Sprintf("@every %s", a.interval)
	if err := a.scheduler.AddFunc(spec, func() { a.tickAll(ctx) }); err != nil {
		return err
	}
	return a.scheduler.Start(ctx)
}

// Stop waits for any in-flight tick to finish, bounded by ctx.
func (a *Autoscaler) Stop(ctx context.Context) error {
	return a.scheduler.Stop(ctx)
}

func (a *Autoscaler) tickAll(ctx context.Context) {
	workloads, err := a.svc.store.ListWorkloads(ctx)
	if err != nil {
		a.log.WithError(err).Warn("list workloads for autoscale tick failed")
		return
	}
	for _, w := range workloads {
		if w.Status != WorkloadActive {
			continue
		}
		if err := a.svc.Tick(ctx, w.ID); err != nil {
			a.log.WithError(err).Warnf("autoscale tick failed for workload %s", w.ID)
		}
	}
}

var _ lifecycle.Service = (*Autoscaler)(nil)
