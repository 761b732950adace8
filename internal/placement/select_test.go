package placement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-collective/dws-controlplane/internal/placement"
	"github.com/r3e-collective/dws-controlplane/internal/registry"
)

func registerNode(t *testing.T, store registry.Store, id string, reputation int, stake int64, caps ...registry.Capability) registry.Node {
	t.Helper()
	capSet := make(map[registry.Capability]bool, len(caps))
	for _, c := range caps {
		capSet[c] = true
	}
	n, err := store.Register(context.Background(), registry.Node{
		ID:           id,
		Capabilities: capSet,
		Reputation:   reputation,
		Stake:        stake,
	})
	require.NoError(t, err)

	n, err = store.SetStatus(context.Background(), id, registry.StatusActive)
	require.NoError(t, err)
	n, err = store.Heartbeat(context.Background(), id, time.Now())
	require.NoError(t, err)
	return n
}

func TestSelectCandidatesFiltersByCapabilityAndReputation(t *testing.T) {
	store := registry.NewMemoryStore()
	registerNode(t, store, "node-low-rep", 10, 1000, registry.CapabilityCompute)
	registerNode(t, store, "node-ok", 80, 1000, registry.CapabilityCompute)
	registerNode(t, store, "node-wrong-cap", 90, 1000, registry.CapabilityStorage)

	req := placement.Requirements{
		Capabilities:  []registry.Capability{registry.CapabilityCompute},
		MinReputation: 50,
	}
	candidates, err := placement.SelectCandidates(context.Background(), store, req, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "node-ok", candidates[0].ID)
}

func TestSelectCandidatesOrdersByReputationThenPrice(t *testing.T) {
	store := registry.NewMemoryStore()
	registerNode(t, store, "node-a", 50, 1000, registry.CapabilityCompute)
	registerNode(t, store, "node-b", 90, 1000, registry.CapabilityCompute)
	registerNode(t, store, "node-c", 90, 1000, registry.CapabilityCompute)

	candidates, err := placement.SelectCandidates(context.Background(), store, placement.Requirements{
		Capabilities: []registry.Capability{registry.CapabilityCompute},
	}, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	assert.Equal(t, 90, candidates[0].Reputation)
	assert.Equal(t, 90, candidates[1].Reputation)
	assert.Equal(t, 50, candidates[2].Reputation)
}

func TestSelectCandidatesRequiresValidTEEAttestationWhenRequired(t *testing.T) {
	store := registry.NewMemoryStore()
	registerNode(t, store, "node-no-tee", 90, 1000, registry.CapabilityCompute)
	withTEE := registerNode(t, store, "node-tee", 90, 1000, registry.CapabilityCompute, registry.CapabilityTEE)
	_, err := store.RecordAttestation(context.Background(), withTEE.ID, registry.Attestation{
		Valid:     true,
		Platform:  "sgx",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	req := placement.Requirements{
		Capabilities: []registry.Capability{registry.CapabilityCompute},
		TEERequired:  true,
		TEEPlatform:  "sgx",
	}
	candidates, err := placement.SelectCandidates(context.Background(), store, req, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "node-tee", candidates[0].ID)
}

func TestPickDistinctReturnsFirstN(t *testing.T) {
	nodes := []registry.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	picked := placement.PickDistinct(nodes, 2)
	require.Len(t, picked, 2)
	assert.Equal(t, "a", picked[0].ID)
	assert.Equal(t, "b", picked[1].ID)
}
