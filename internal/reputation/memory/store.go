// Package memory is an in-process reputation.Store, grounded on
// internal/app/storage/memory.go's mutex-guarded map shape with defensive
// copies on every read/write.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/reputation"
)

// Store is a map-backed reputation.Store suitable for tests and local runs.
type Store struct {
	mu      sync.Mutex
	records map[string]*reputation.Reputation
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[string]*reputation.Reputation)}
}

func clone(r *reputation.Reputation) *reputation.Reputation {
	cp := *r
	cp.Violations = append([]reputation.Violation(nil), r.Violations...)
	cp.Vouches = append([]reputation.Vouch(nil), r.Vouches...)
	return &cp
}

// GetOrCreate returns address's record, creating a zeroed one on first sight.
func (s *Store) GetOrCreate(_ context.Context, address string) (*reputation.Reputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[address]
	if !ok {
		r = &reputation.Reputation{
			Address:     address,
			Tier:        reputation.TierNew,
			FirstSeenAt: time.Now(),
			UpdatedAt:   time.Now(),
		}
		s.records[address] = r
	}
	return clone(r), nil
}

// Save persists r, keyed by r.Address.
func (s *Store) Save(_ context.Context, r *reputation.Reputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.Address] = clone(r)
	return nil
}

var _ reputation.Store = (*Store)(nil)
