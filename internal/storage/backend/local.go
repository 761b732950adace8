package backend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
)

// Local is an in-process hash table backend (spec.md §4.5: "never the CID
// authority"). Its address is a plain sha-256 hex digest of the plaintext;
// callers must never treat it as a content-addressed id interchangeable
// with ipfs/arweave/filecoin addresses (spec.md §9 open question).
type Local struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewLocal creates an empty Local backend.
func NewLocal() *Local {
	return &Local{data: make(map[string][]byte)}
}

func (l *Local) Name() string { return "local" }

func (l *Local) Upload(_ context.Context, content []byte, _ Metadata) (string, string, error) {
	sum := sha256.Sum256(content)
	addr := hex.EncodeToString(sum[:])

	l.mu.Lock()
	l.data[addr] = append([]byte(nil), content...)
	l.mu.Unlock()

	return addr, fmt.Sprintf("local://%s", addr), nil
}

func (l *Local) Download(_ context.Context, addr string) ([]byte, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	content, ok := l.data[addr]
	if !ok {
		return nil, fmt.Errorf("storage/backend/local: no content at %s", addr)
	}
	return append([]byte(nil), content...), nil
}

func (l *Local) Exists(_ context.Context, addr string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.data[addr]
	return ok, nil
}

func (l *Local) HealthCheck(_ context.Context) bool { return true }

var _ Backend = (*Local)(nil)
