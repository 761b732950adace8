// Package memory provides an in-process secretstore.Repository, grounded
// on internal/reputation/memory's clone-on-read/write store shape.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/secretstore"
)

// Store is a concurrency-safe in-memory secretstore.Repository.
type Store struct {
	mu      sync.RWMutex
	secrets map[string]*secretstore.Secret // "daoId/name" -> secret
	audit   map[string][]secretstore.AuditEvent
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		secrets: make(map[string]*secretstore.Secret),
		audit:   make(map[string][]secretstore.AuditEvent),
	}
}

func key(daoID, name string) string { return daoID + "/" + name }

func clone(s *secretstore.Secret) *secretstore.Secret {
	cp := *s
	cp.Shares = append([]secretstore.Share(nil), s.Shares...)
	return &cp
}

func (s *Store) Create(_ context.Context, secret *secretstore.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(secret.DAOID, secret.Name)
	if _, exists := s.secrets[k]; exists {
		return apierr.Conflictf("secret %s already exists", k)
	}
	s.secrets[k] = clone(secret)
	return nil
}

func (s *Store) Get(_ context.Context, daoID, name string) (*secretstore.Secret, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[key(daoID, name)]
	if !ok {
		return nil, apierr.NotFoundf("secret %s not found", key(daoID, name))
	}
	return clone(secret), nil
}

func (s *Store) Update(_ context.Context, secret *secretstore.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(secret.DAOID, secret.Name)
	if _, exists := s.secrets[k]; !exists {
		return apierr.NotFoundf("secret %s not found", k)
	}
	s.secrets[k] = clone(secret)
	return nil
}

func (s *Store) Delete(_ context.Context, daoID, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(daoID, name)
	if _, exists := s.secrets[k]; !exists {
		return apierr.NotFoundf("secret %s not found", k)
	}
	delete(s.secrets, k)
	return nil
}

func (s *Store) AppendAudit(_ context.Context, event secretstore.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit[event.SecretID] = append(s.audit[event.SecretID], event)
	return nil
}

func (s *Store) LastAudit(_ context.Context, secretID string) (secretstore.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	events := s.audit[secretID]
	if len(events) == 0 {
		return secretstore.AuditEvent{}, fmt.Errorf("no audit events for %s", secretID)
	}
	return events[len(events)-1], nil
}

func (s *Store) AuditTrail(_ context.Context, secretID string) ([]secretstore.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]secretstore.AuditEvent(nil), s.audit[secretID]...), nil
}

var _ secretstore.Repository = (*Store)(nil)
