// Package memory provides an in-process placement.Store, grounded on
// internal/secretstore/memory's clone-on-read/write map shape with a
// per-workload-id lock set layered on top for serialized per-workload state
// transitions.
package memory

import (
	"context"
	"sync"

	"github.com/r3e-collective/dws-controlplane/internal/placement"
	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/registry"
)

// Store is a concurrency-safe in-memory placement.Store.
type Store struct {
	mu        sync.RWMutex
	workloads map[string]placement.Workload
	instances map[string]map[string]placement.Instance // workloadId -> instanceId -> instance

	locks sync.Map // workloadId -> *sync.Mutex
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		workloads: make(map[string]placement.Workload),
		instances: make(map[string]map[string]placement.Instance),
	}
}

// LockFor returns the per-workload mutex callers must hold across a
// read-modify-write sequence (spec.md §5 "placement decisions and state
// transitions are serialized").
func (s *Store) LockFor(workloadID string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(workloadID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func cloneWorkload(w placement.Workload) placement.Workload {
	w.Env = cloneStringMap(w.Env)
	w.Secrets = append([]string(nil), w.Secrets...)
	w.Requirements.Capabilities = append([]registry.Capability(nil), w.Requirements.Capabilities...)
	w.RegionScaling = cloneScalingMap(w.RegionScaling)
	return w
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func cloneScalingMap(m map[string]placement.ScalingConfig) map[string]placement.ScalingConfig {
	if m == nil {
		return nil
	}
	cp := make(map[string]placement.ScalingConfig, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func (s *Store) CreateWorkload(_ context.Context, w placement.Workload) (placement.Workload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workloads[w.ID]; exists {
		return placement.Workload{}, apierr.Conflictf("workload %q already exists", w.ID)
	}
	s.workloads[w.ID] = cloneWorkload(w)
	s.instances[w.ID] = make(map[string]placement.Instance)
	return cloneWorkload(w), nil
}

func (s *Store) GetWorkload(_ context.Context, id string) (placement.Workload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workloads[id]
	if !ok {
		return placement.Workload{}, apierr.NotFoundf("workload %q not found", id)
	}
	return cloneWorkload(w), nil
}

func (s *Store) UpdateWorkload(_ context.Context, w placement.Workload) (placement.Workload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workloads[w.ID]; !exists {
		return placement.Workload{}, apierr.NotFoundf("workload %q not found", w.ID)
	}
	s.workloads[w.ID] = cloneWorkload(w)
	return cloneWorkload(w), nil
}

func (s *Store) ListWorkloads(_ context.Context) ([]placement.Workload, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]placement.Workload, 0, len(s.workloads))
	for _, w := range s.workloads {
		out = append(out, cloneWorkload(w))
	}
	return out, nil
}

func (s *Store) AddInstance(_ context.Context, inst placement.Instance) (placement.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.instances[inst.WorkloadID]
	if !ok {
		return placement.Instance{}, apierr.NotFoundf("workload %q not found", inst.WorkloadID)
	}
	bucket[inst.ID] = inst
	return inst, nil
}

func (s *Store) UpdateInstance(_ context.Context, inst placement.Instance) (placement.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.instances[inst.WorkloadID]
	if !ok {
		return placement.Instance{}, apierr.NotFoundf("workload %q not found", inst.WorkloadID)
	}
	if _, exists := bucket[inst.ID]; !exists {
		return placement.Instance{}, apierr.NotFoundf("instance %q not found", inst.ID)
	}
	bucket[inst.ID] = inst
	return inst, nil
}

func (s *Store) RemoveInstance(_ context.Context, workloadID, instanceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.instances[workloadID]
	if !ok {
		return apierr.NotFoundf("workload %q not found", workloadID)
	}
	delete(bucket, instanceID)
	return nil
}

func (s *Store) Instances(_ context.Context, workloadID string) ([]placement.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.instances[workloadID]
	if !ok {
		return nil, apierr.NotFoundf("workload %q not found", workloadID)
	}
	out := make([]placement.Instance, 0, len(bucket))
	for _, inst := range bucket {
		out = append(out, inst)
	}
	return out, nil
}

var _ placement.Store = (*Store)(nil)
