// Package memory is an in-process storage.Registry, grounded on
// internal/registry's memoryStore shape; one RWMutex guards the whole map.
package memory

import (
	"context"
	"sync"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/storage"
)

// Registry is a concurrency-safe in-memory storage.Registry.
type Registry struct {
	mu    sync.RWMutex
	items map[string]storage.ContentMetadata
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{items: make(map[string]storage.ContentMetadata)}
}

func (r *Registry) Put(_ context.Context, meta storage.ContentMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[meta.CID] = meta
	return nil
}

func (r *Registry) Get(_ context.Context, cid string) (storage.ContentMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	meta, ok := r.items[cid]
	if !ok {
		return storage.ContentMetadata{}, apierr.NotFoundf("content %s not found", cid)
	}
	return meta, nil
}

func (r *Registry) BumpAccessCount(_ context.Context, cid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meta, ok := r.items[cid]
	if !ok {
		return apierr.NotFoundf("content %s not found", cid)
	}
	meta.AccessCount++
	r.items[cid] = meta
	return nil
}

var _ storage.Registry = (*Registry)(nil)
