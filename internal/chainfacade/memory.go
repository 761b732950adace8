package chainfacade

import (
	"context"
	"fmt"
	"sync"
)

// MemoryRegistry is an in-process Registry used by tests, and by the
// controlplane command when RPC_URL is unset, as a registry fact store
// without a live chain, following the teacher's
// internal/app/storage/memory.go pattern of a mutex-guarded map-backed store
// standing in for a real backend.
type MemoryRegistry struct {
	mu sync.Mutex

	nextTxSeq    int
	nodes        map[string]nodeFact
	databases    map[string]string
	depositTotal map[string]int64
}

type nodeFact struct {
	address      string
	metadataHash string
	attested     bool
	evidenceHash string
	lastSeen     int64
}

// NewMemoryRegistry creates an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		nodes:        make(map[string]nodeFact),
		databases:    make(map[string]string),
		depositTotal: make(map[string]int64),
	}
}

func (m *MemoryRegistry) nextTx() string {
	m.nextTxSeq++
	return fmt.Sprintf("0xmemtx%06d", m.nextTxSeq)
}

func (m *MemoryRegistry) RegisterNode(_ context.Context, nodeID, address, metadataHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nodes[nodeID] = nodeFact{address: address, metadataHash: metadataHash}
	return m.nextTx(), nil
}

func (m *MemoryRegistry) SubmitAttestation(_ context.Context, nodeID string, ok bool, evidenceHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fact, exists := m.nodes[nodeID]
	if !exists {
		return "", fmt.Errorf("chainfacade: unknown node %q", nodeID)
	}
	fact.attested = ok
	fact.evidenceHash = evidenceHash
	m.nodes[nodeID] = fact
	return m.nextTx(), nil
}

func (m *MemoryRegistry) Heartbeat(_ context.Context, nodeID string, unixSeconds int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fact, exists := m.nodes[nodeID]
	if !exists {
		return "", fmt.Errorf("chainfacade: unknown node %q", nodeID)
	}
	fact.lastSeen = unixSeconds
	m.nodes[nodeID] = fact
	return m.nextTx(), nil
}

func (m *MemoryRegistry) CreateDatabase(_ context.Context, databaseID, ownerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.databases[databaseID]; exists {
		return "", fmt.Errorf("chainfacade: database %q already exists", databaseID)
	}
	m.databases[databaseID] = ownerID
	return m.nextTx(), nil
}

func (m *MemoryRegistry) DepositFees(_ context.Context, daoID, source string, amount int64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("chainfacade: deposit amount must be positive, got %d", amount)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depositTotal[daoID+"/"+source] += amount
	return m.nextTx(), nil
}

func (m *MemoryRegistry) NodeAttested(_ context.Context, nodeID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fact, exists := m.nodes[nodeID]
	if !exists {
		return false, nil
	}
	return fact.attested, nil
}

// DepositedTotal returns the running deposit total for (daoID, source),
// exposed for assertions in chainfacade tests.
func (m *MemoryRegistry) DepositedTotal(daoID, source string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.depositTotal[daoID+"/"+source]
}

var _ Registry = (*MemoryRegistry)(nil)
