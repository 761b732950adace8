package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
)

// Store is the node registry contract. Implementations must serialize
// updates per node id (spec.md §5 "per-node heartbeat/attestation updates
// are serialized per node id") while allowing independent nodes to update
// concurrently.
type Store interface {
	Register(ctx context.Context, n Node) (Node, error)
	Get(ctx context.Context, id string) (Node, error)
	SetStatus(ctx context.Context, id string, status Status) (Node, error)
	Heartbeat(ctx context.Context, id string, at time.Time) (Node, error)
	RecordAttestation(ctx context.Context, id string, att Attestation) (Node, error)
	UpdateReputation(ctx context.Context, id string, reputation int) (Node, error)
	List(ctx context.Context) ([]Node, error)

	// Candidates returns nodes satisfying filter, ordered by the caller's
	// comparator (spec.md §4.6 "ordered by a composite score").
	Candidates(ctx context.Context, filter func(Node) bool, less func(a, b Node) bool, limit int) ([]Node, error)
}

// memoryStore is an in-process Store, grounded on
// internal/app/storage/memory.go's mutex-guarded map-of-entities shape,
// with a per-node lock set layered on top for the serialization guarantee.
type memoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node

	nodeLocks sync.Map // id -> *sync.Mutex
}

// NewMemoryStore creates an empty, in-process Store.
func NewMemoryStore() Store {
	return &memoryStore{nodes: make(map[string]Node)}
}

func (s *memoryStore) lockFor(id string) *sync.Mutex {
	v, _ := s.nodeLocks.LoadOrStore(id, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (s *memoryStore) Register(_ context.Context, n Node) (Node, error) {
	if n.ID == "" {
		return Node{}, apierr.InvalidInput("id", "node id is required")
	}
	lock := s.lockFor(n.ID)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nodes[n.ID]; exists {
		return Node{}, apierr.Conflictf("node %q already registered", n.ID)
	}
	if n.Status == "" {
		n.Status = StatusRegistering
	}
	if n.Capabilities == nil {
		n.Capabilities = make(map[Capability]bool)
	}
	s.nodes[n.ID] = clone(n)
	return clone(n), nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, apierr.NotFoundf("node", id)
	}
	return clone(n), nil
}

func (s *memoryStore) SetStatus(_ context.Context, id string, status Status) (Node, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, apierr.NotFoundf("node", id)
	}
	if !CanTransition(n.Status, status) {
		return Node{}, apierr.Conflictf("node %q cannot transition %s -> %s", id, n.Status, status)
	}
	n.Status = status
	s.nodes[id] = n
	return clone(n), nil
}

func (s *memoryStore) Heartbeat(_ context.Context, id string, at time.Time) (Node, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, apierr.NotFoundf("node", id)
	}
	n.LastHeartbeat = at
	s.nodes[id] = n
	return clone(n), nil
}

func (s *memoryStore) RecordAttestation(_ context.Context, id string, att Attestation) (Node, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, apierr.NotFoundf("node", id)
	}
	n.Attestation = att
	s.nodes[id] = n
	return clone(n), nil
}

func (s *memoryStore) UpdateReputation(_ context.Context, id string, reputation int) (Node, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return Node{}, apierr.NotFoundf("node", id)
	}
	n.Reputation = reputation
	s.nodes[id] = n
	return clone(n), nil
}

func (s *memoryStore) List(_ context.Context) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, clone(n))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memoryStore) Candidates(_ context.Context, filter func(Node) bool, less func(a, b Node) bool, limit int) ([]Node, error) {
	s.mu.RLock()
	snapshot := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		snapshot = append(snapshot, clone(n))
	}
	s.mu.RUnlock()

	matched := snapshot[:0:0]
	for _, n := range snapshot {
		if filter == nil || filter(n) {
			matched = append(matched, n)
		}
	}
	if less != nil {
		sort.SliceStable(matched, func(i, j int) bool { return less(matched[i], matched[j]) })
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}
