package backend

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sync"
)

// WebTorrent models the P2P backend as a seed table keyed by a BitTorrent
// v1 infohash (sha1 of the content), producing magnet URIs (spec.md §4.5
// "webtorrent (P2P)"). It stands in for an actual WebTorrent/bittorrent
// client the way internal/chainfacade stands in for a live chain node:
// the contract (upload/download/exists/healthCheck) is exercised exactly
// as the real network backend would be.
type WebTorrent struct {
	mu    sync.RWMutex
	seeds map[string][]byte // infohash -> content
}

// NewWebTorrent creates an empty seed table.
func NewWebTorrent() *WebTorrent {
	return &WebTorrent{seeds: make(map[string][]byte)}
}

func (w *WebTorrent) Name() string { return "webtorrent" }

func (w *WebTorrent) Upload(_ context.Context, content []byte, meta Metadata) (string, string, error) {
	sum := sha1.Sum(content)
	infoHash := hex.EncodeToString(sum[:])

	w.mu.Lock()
	w.seeds[infoHash] = append([]byte(nil), content...)
	w.mu.Unlock()

	name := meta.Filename
	if name == "" {
		name = infoHash
	}
	magnet := fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", infoHash, name)
	return infoHash, magnet, nil
}

func (w *WebTorrent) Download(_ context.Context, addr string) ([]byte, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	content, ok := w.seeds[addr]
	if !ok {
		return nil, fmt.Errorf("storage/backend/webtorrent: no seeders for %s", addr)
	}
	return append([]byte(nil), content...), nil
}

func (w *WebTorrent) Exists(_ context.Context, addr string) (bool, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.seeds[addr]
	return ok, nil
}

func (w *WebTorrent) HealthCheck(_ context.Context) bool { return true }

// SeederCount reports how many local seed slots are tracking addr: 1 if
// present, 0 otherwise. A real swarm client would report peer counts;
// this backend only ever seeds locally.
func (w *WebTorrent) SeederCount(addr string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if _, ok := w.seeds[addr]; ok {
		return 1
	}
	return 0
}

var _ Backend = (*WebTorrent)(nil)
