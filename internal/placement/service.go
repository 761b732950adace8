package placement

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/crypto"
	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
	"github.com/r3e-collective/dws-controlplane/internal/platform/metrics"
	"github.com/r3e-collective/dws-controlplane/internal/registry"
)

// Service implements the C7 contract of spec.md §4.6: candidate selection,
// code-pull integrity, request routing, and auto-scaling over nodes drawn
// from internal/registry. Per-workload state is serialized via the store's
// per-workload lock (spec.md §5).
type Service struct {
	store    Store
	nodes    registry.Store
	node     *NodeClient
	log      *logging.Logger
	now      func() time.Time
	warmWait time.Duration // bound on the synchronous scale-up-and-wait in routing
	events   *eventHub
	metrics  *metrics.Metrics // nil disables metric emission (e.g. in unit tests)
}

// WithMetrics attaches a Metrics collector, returning s for chaining.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// New creates a Service. log defaults to a standalone "placement" logger
// when nil, matching the teacher's services/*/service.go New() convention.
func New(store Store, nodes registry.Store, node *NodeClient, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("placement", "info", "json")
	}
	if node == nil {
		node = NewNodeClient()
	}
	return &Service{store: store, nodes: nodes, node: node, log: log, now: time.Now, warmWait: 2 * time.Second, events: newEventHub()}
}

// Subscribe streams instance lifecycle Events for workloadID ("" for every
// workload) until the caller calls the returned cancel func.
func (s *Service) Subscribe(workloadID string) (<-chan Event, func()) {
	ch := s.events.subscribe(workloadID)
	return ch, func() { s.events.unsubscribe(ch) }
}

func newWorkloadID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "wl_" + hex.EncodeToString(b)
}

func newInstanceID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return "inst_" + hex.EncodeToString(b)
}

// Deploy creates a workload, selects max(Scaling.MinInstances, 1) initial
// candidates, and pushes the deploy call to each (spec.md §4.6 "Placement
// selection" + "Code pull & integrity").
func (s *Service) Deploy(ctx context.Context, w Workload, artifact []byte) (Workload, error) {
	if w.Scaling.MinInstances < 0 || w.Scaling.MaxInstances <= 0 || w.Scaling.MinInstances > w.Scaling.MaxInstances {
		return Workload{}, apierr.InvalidInput("scaling", "minInstances/maxInstances out of range")
	}
	hash := crypto.Keccak256(artifact)
	w.ExpectedHash = hash[:]
	w.ID = newWorkloadID()
	w.Status = WorkloadDeploying
	w.CreatedAt = s.now()
	w.UpdatedAt = w.CreatedAt

	w, err := s.store.CreateWorkload(ctx, w)
	if err != nil {
		return Workload{}, err
	}

	target := w.Scaling.MinInstances
	if target == 0 {
		target = 1 // a brand-new workload always gets one instance to reach 'active'
	}
	candidates, err := SelectCandidates(ctx, s.nodes, w.Requirements, target*3)
	if err != nil {
		return s.failDeploy(ctx, w), err
	}
	picked := PickDistinct(candidates, target)
	if len(picked) == 0 {
		return s.failDeploy(ctx, w), apierr.New(apierr.Exhausted, "no eligible node for workload requirements").WithTag("NO_CANDIDATES")
	}

	anyWarm := false
	for _, n := range picked {
		if err := s.startInstance(ctx, w, n); err != nil {
			s.log.WithError(err).Warnf("deploy instance on node %s failed", n.ID)
			continue
		}
		anyWarm = true
	}

	lock := s.workloadLock(w.ID)
	lock.Lock()
	defer lock.Unlock()
	w, err = s.store.GetWorkload(ctx, w.ID)
	if err != nil {
		return Workload{}, err
	}
	if anyWarm {
		w.Status = WorkloadActive
	} else {
		w.Status = WorkloadFailed
	}
	w.UpdatedAt = s.now()
	return s.store.UpdateWorkload(ctx, w)
}

func (s *Service) failDeploy(ctx context.Context, w Workload) Workload {
	w.Status = WorkloadFailed
	w.UpdatedAt = s.now()
	updated, err := s.store.UpdateWorkload(ctx, w)
	if err != nil {
		return w
	}
	return updated
}

func (s *Service) startInstance(ctx context.Context, w Workload, n registry.Node) error {
	inst := Instance{
		ID:         newInstanceID(),
		WorkloadID: w.ID,
		NodeID:     n.ID,
		Region:     "",
		Status:     InstanceStarting,
		IdleSince:  s.now(),
	}
	if _, err := s.store.AddInstance(ctx, inst); err != nil {
		return err
	}

	if err := s.node.Deploy(ctx, n.Endpoint, inst.ID, w); err != nil {
		inst.Status = InstanceError
		_, _ = s.store.UpdateInstance(ctx, inst)
		return err
	}

	inst.Status = InstanceWarm
	_, err := s.store.UpdateInstance(ctx, inst)
	s.events.publish(Event{WorkloadID: w.ID, InstanceID: inst.ID, NodeID: n.ID, Status: inst.Status})
	return err
}

func (s *Service) workloadLock(id string) *sync.Mutex {
	type lockable interface{ LockFor(string) *sync.Mutex }
	if l, ok := s.store.(lockable); ok {
		return l.LockFor(id)
	}
	return &sync.Mutex{} // stores without shared locking (e.g. a future postgres impl serializing in SQL) get a no-op per-call mutex
}

// Stop transitions a workload to draining and tells every instance's node
// to stop it (spec.md §4.6 "active → draining on stop request").
func (s *Service) Stop(ctx context.Context, workloadID string) error {
	lock := s.workloadLock(workloadID)
	lock.Lock()
	defer lock.Unlock()

	w, err := s.store.GetWorkload(ctx, workloadID)
	if err != nil {
		return err
	}
	if !CanTransitionWorkload(w.Status, WorkloadDraining) {
		return apierr.Conflictf("workload %q cannot transition %s -> %s", workloadID, w.Status, WorkloadDraining)
	}
	w.Status = WorkloadDraining
	w.UpdatedAt = s.now()
	if _, err := s.store.UpdateWorkload(ctx, w); err != nil {
		return err
	}

	instances, err := s.store.Instances(ctx, workloadID)
	if err != nil {
		return err
	}
	allStopped := true
	for _, inst := range instances {
		if err := s.stopInstance(ctx, w, inst); err != nil {
			s.log.WithError(err).Warnf("stop instance %s failed", inst.ID)
			allStopped = false
			continue
		}
	}
	if allStopped {
		w.Status = WorkloadStopped
		w.UpdatedAt = s.now()
		_, err = s.store.UpdateWorkload(ctx, w)
		return err
	}
	return nil
}

func (s *Service) stopInstance(ctx context.Context, w Workload, inst Instance) error {
	node, err := s.nodes.Get(ctx, inst.NodeID)
	if err == nil {
		if stopErr := s.node.Stop(ctx, node.Endpoint, inst.ID); stopErr != nil {
			return stopErr
		}
	}
	inst.Status = InstanceStopped
	_, err = s.store.UpdateInstance(ctx, inst)
	s.events.publish(Event{WorkloadID: w.ID, InstanceID: inst.ID, NodeID: inst.NodeID, Status: inst.Status})
	return err
}

// Route implements spec.md §4.6 "Request routing" steps 1-4: pick (or
// scale up for) a warm instance with spare capacity, forward, and record
// the outcome.
func (s *Service) Route(ctx context.Context, workloadID string, maxConcurrency int, invoke func(inst Instance) (bool, time.Duration)) (Instance, error) {
	w, err := s.store.GetWorkload(ctx, workloadID)
	if err != nil {
		return Instance{}, err
	}
	instances, err := s.store.Instances(ctx, workloadID)
	if err != nil {
		return Instance{}, err
	}

	pick := selectRoutingTarget(instances, maxConcurrency)
	coldStart := pick == nil
	if pick == nil {
		live := countLive(instances)
		if live >= w.Scaling.MaxInstances {
			return Instance{}, apierr.Exhaustedf("workload %q has no available capacity", workloadID)
		}
		if err := s.scaleUpOnce(ctx, w); err != nil {
			return Instance{}, apierr.Wrap(apierr.Exhausted, "synchronous scale-up failed", err)
		}
		deadline := s.now().Add(s.warmWait)
		for s.now().Before(deadline) {
			instances, err = s.store.Instances(ctx, workloadID)
			if err != nil {
				return Instance{}, err
			}
			if pick = selectRoutingTarget(instances, maxConcurrency); pick != nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		if pick == nil {
			return Instance{}, apierr.Exhaustedf("workload %q: no instance became warm in time", workloadID)
		}
	}

	target := *pick
	target.ActiveRequests++
	target.LastRequestAt = s.now()
	target, err = s.store.UpdateInstance(ctx, target)
	if err != nil {
		return Instance{}, err
	}

	ok, latency := invoke(target)

	target.ActiveRequests--
	if target.ActiveRequests < 0 {
		target.ActiveRequests = 0
	}
	target.Requests++
	if !ok {
		target.Errors++
	}
	const alpha = 0.1
	if target.LatencyEWMA == 0 {
		target.LatencyEWMA = latency.Seconds()
	} else {
		target.LatencyEWMA = alpha*latency.Seconds() + (1-alpha)*target.LatencyEWMA
	}
	if target.ActiveRequests == 0 {
		target.IdleSince = s.now()
	}
	target, err = s.store.UpdateInstance(ctx, target)
	s.recordInvocationMetrics(workloadID, coldStart, ok, latency)
	return target, err
}

func (s *Service) recordInvocationMetrics(workloadID string, coldStart, ok bool, latency time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.InvocationsTotal.WithLabelValues(workloadID).Inc()
	s.metrics.InvocationLatency.WithLabelValues(workloadID).Observe(latency.Seconds())
	if coldStart {
		s.metrics.ColdStartsTotal.WithLabelValues(workloadID).Inc()
	}
	if !ok {
		s.metrics.InvocationErrors.WithLabelValues(workloadID).Inc()
	}
}

func selectRoutingTarget(instances []Instance, maxConcurrency int) *Instance {
	var best *Instance
	for i := range instances {
		inst := &instances[i]
		if inst.Status != InstanceWarm || inst.ActiveRequests >= maxConcurrency {
			continue
		}
		if best == nil {
			best = inst
			continue
		}
		if inst.ActiveRequests < best.ActiveRequests {
			best = inst
			continue
		}
		if inst.ActiveRequests == best.ActiveRequests && inst.LastRequestAt.Before(best.LastRequestAt) {
			best = inst
		}
	}
	return best
}

func countLive(instances []Instance) int {
	n := 0
	for _, inst := range instances {
		if inst.Status == InstanceWarm || inst.Status == InstanceBusy || inst.Status == InstanceStarting {
			n++
		}
	}
	return n
}

func (s *Service) scaleUpOnce(ctx context.Context, w Workload) error {
	candidates, err := SelectCandidates(ctx, s.nodes, w.Requirements, 5)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return apierr.New(apierr.Exhausted, "no eligible node to scale up").WithTag("NO_CANDIDATES")
	}
	return s.startInstance(ctx, w, candidates[0])
}
