package placement

import (
	"context"
	"time"
)

// EvaluateScaling implements spec.md §4.6 "Auto-scaling": a pure function
// over a workload's scaling config and its instances' current load, run
// periodically (e.g. every 10s) by a cron-driven caller. It never mutates
// state directly, so callers can log and test the decision independently of
// execution.
type ScalingDecision string

const (
	ScaleNone        ScalingDecision = "none"
	ScaleUp          ScalingDecision = "scale_up"
	ScaleDown        ScalingDecision = "scale_down"
	ScaleDrainToZero ScalingDecision = "scale_to_zero"
)

func EvaluateScaling(cfg ScalingConfig, instances []Instance, now time.Time) ScalingDecision {
	live := liveInstances(instances)
	if len(live) == 0 {
		return ScaleNone
	}

	total := 0
	for _, inst := range live {
		total += inst.ActiveRequests
	}
	load := float64(total) / float64(len(live))
	target := float64(cfg.TargetConcurrency)

	if cfg.ScaleToZero && allIdleLongerThan(live, now, time.Duration(2*cfg.CooldownMillis)*time.Millisecond) {
		return ScaleDrainToZero
	}
	if load > 0.8*target && len(live) < cfg.MaxInstances {
		return ScaleUp
	}
	if load < 0.3*target && len(live) > cfg.MinInstances && hasIdleLongerThan(live, now, time.Duration(cfg.CooldownMillis)*time.Millisecond) {
		return ScaleDown
	}
	return ScaleNone
}

func liveInstances(instances []Instance) []Instance {
	out := make([]Instance, 0, len(instances))
	for _, inst := range instances {
		if inst.Status == InstanceWarm || inst.Status == InstanceBusy {
			out = append(out, inst)
		}
	}
	return out
}

func hasIdleLongerThan(instances []Instance, now time.Time, d time.Duration) bool {
	for _, inst := range instances {
		if inst.ActiveRequests == 0 && now.Sub(inst.IdleSince) > d {
			return true
		}
	}
	return false
}

func allIdleLongerThan(instances []Instance, now time.Time, d time.Duration) bool {
	for _, inst := range instances {
		if inst.ActiveRequests != 0 || now.Sub(inst.IdleSince) <= d {
			return false
		}
	}
	return true
}

// oldestIdle returns the instance that has been idle longest, for the
// scale-down "pick oldest idle" rule.
func oldestIdle(instances []Instance) (Instance, bool) {
	var best Instance
	found := false
	for _, inst := range instances {
		if inst.ActiveRequests != 0 {
			continue
		}
		if !found || inst.IdleSince.Before(best.IdleSince) {
			best = inst
			found = true
		}
	}
	return best, found
}

// Tick evaluates and applies one scaling decision for workloadID against
// its global w.Scaling bounds across all instances; the workload's
// RegionScaling overrides are not consulted.
func (s *Service) Tick(ctx context.Context, workloadID string) error {
	lock := s.workloadLock(workloadID)
	lock.Lock()
	defer lock.Unlock()

	w, err := s.store.GetWorkload(ctx, workloadID)
	if err != nil {
		return err
	}
	if w.Status != WorkloadActive {
		return nil
	}
	instances, err := s.store.Instances(ctx, workloadID)
	if err != nil {
		return err
	}

	now := s.now()
	decision := EvaluateScaling(w.Scaling, instances, now)
	if s.metrics != nil {
		s.metrics.InstancesLive.WithLabelValues(workloadID).Set(float64(len(liveInstances(instances))))
	}
	if decision != ScaleNone && s.metrics != nil {
		s.metrics.ScaleEventsTotal.WithLabelValues(workloadID, string(decision)).Inc()
	}
	switch decision {
	case ScaleUp:
		return s.scaleUpOnce(ctx, w)
	case ScaleDown:
		idle, ok := oldestIdle(liveInstances(instances))
		if !ok {
			return nil
		}
		return s.stopInstance(ctx, w, idle)
	case ScaleDrainToZero:
		for _, inst := range liveInstances(instances) {
			if err := s.stopInstance(ctx, w, inst); err != nil {
				s.log.WithError(err).Warnf("scale-to-zero stop instance %s failed", inst.ID)
			}
		}
	}
	return nil
}
