package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNode(id string) Node {
	return Node{
		ID:              id,
		OperatorAddress: "0xoperator",
		Endpoint:        "https://node.example/" + id,
		Capabilities:    map[Capability]bool{CapabilityCompute: true},
		Stake:           1000,
	}
}

func TestMemoryStoreRegisterAndTransition(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	n, err := store.Register(ctx, newTestNode("node-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusRegistering, n.Status)

	t.Run("duplicate register rejected", func(t *testing.T) {
		_, err := store.Register(ctx, newTestNode("node-1"))
		assert.Error(t, err)
	})

	t.Run("registering to active allowed", func(t *testing.T) {
		n, err := store.SetStatus(ctx, "node-1", StatusActive)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, n.Status)
	})

	t.Run("active to draining and back allowed", func(t *testing.T) {
		_, err := store.SetStatus(ctx, "node-1", StatusDraining)
		require.NoError(t, err)
		n, err := store.SetStatus(ctx, "node-1", StatusActive)
		require.NoError(t, err)
		assert.Equal(t, StatusActive, n.Status)
	})

	t.Run("stopped is absorbing", func(t *testing.T) {
		_, err := store.SetStatus(ctx, "node-1", StatusStopped)
		require.NoError(t, err)
		_, err = store.SetStatus(ctx, "node-1", StatusActive)
		assert.Error(t, err)
	})
}

func TestNodeRoutable(t *testing.T) {
	now := time.Now()

	t.Run("non-tee node routable with recent heartbeat", func(t *testing.T) {
		n := newTestNode("node-2")
		n.Status = StatusActive
		n.LastHeartbeat = now
		assert.True(t, n.Routable(now, time.Minute))
	})

	t.Run("stale heartbeat is not routable", func(t *testing.T) {
		n := newTestNode("node-3")
		n.Status = StatusActive
		n.LastHeartbeat = now.Add(-time.Hour)
		assert.False(t, n.Routable(now, time.Minute))
	})

	t.Run("tee node requires valid unexpired attestation", func(t *testing.T) {
		n := newTestNode("node-4")
		n.Capabilities[CapabilityTEE] = true
		n.Status = StatusActive
		n.LastHeartbeat = now
		assert.False(t, n.Routable(now, time.Minute), "no attestation recorded yet")

		n.Attestation = Attestation{Valid: true, ExpiresAt: now.Add(time.Hour)}
		assert.True(t, n.Routable(now, time.Minute))

		n.Attestation.ExpiresAt = now.Add(-time.Hour)
		assert.False(t, n.Routable(now, time.Minute))
	})
}

func TestCandidatesFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	cheap := newTestNode("cheap")
	cheap.Reputation = 100
	cheap.Pricing.PerRequestWei = 1
	_, err := store.Register(ctx, cheap)
	require.NoError(t, err)

	rich := newTestNode("rich")
	rich.Reputation = 5000
	rich.Pricing.PerRequestWei = 10
	_, err = store.Register(ctx, rich)
	require.NoError(t, err)

	candidates, err := store.Candidates(ctx, func(n Node) bool { return true }, func(a, b Node) bool {
		return a.Reputation > b.Reputation
	}, 0)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, "rich", candidates[0].ID)
	assert.Equal(t, "cheap", candidates[1].ID)
}
