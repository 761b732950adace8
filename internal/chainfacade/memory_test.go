package chainfacade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRegistryNodeLifecycle(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	t.Run("register then attest", func(t *testing.T) {
		tx, err := reg.RegisterNode(ctx, "node-1", "10.0.0.1:8080", "hash-abc")
		require.NoError(t, err)
		assert.NotEmpty(t, tx)

		attested, err := reg.NodeAttested(ctx, "node-1")
		require.NoError(t, err)
		assert.False(t, attested)

		_, err = reg.SubmitAttestation(ctx, "node-1", true, "evidence-hash")
		require.NoError(t, err)

		attested, err = reg.NodeAttested(ctx, "node-1")
		require.NoError(t, err)
		assert.True(t, attested)
	})

	t.Run("attestation for unknown node fails", func(t *testing.T) {
		_, err := reg.SubmitAttestation(ctx, "node-missing", true, "hash")
		assert.Error(t, err)
	})

	t.Run("heartbeat requires prior registration", func(t *testing.T) {
		_, err := reg.Heartbeat(ctx, "node-1", 1_700_000_000)
		require.NoError(t, err)

		_, err = reg.Heartbeat(ctx, "node-missing", 1_700_000_000)
		assert.Error(t, err)
	})
}

func TestMemoryRegistryDatabasesAndFees(t *testing.T) {
	ctx := context.Background()
	reg := NewMemoryRegistry()

	t.Run("database creation is not idempotent", func(t *testing.T) {
		_, err := reg.CreateDatabase(ctx, "db-1", "owner-1")
		require.NoError(t, err)

		_, err = reg.CreateDatabase(ctx, "db-1", "owner-2")
		assert.Error(t, err)
	})

	t.Run("deposits accumulate per dao and source", func(t *testing.T) {
		_, err := reg.DepositFees(ctx, "dao-1", "placement", 100)
		require.NoError(t, err)
		_, err = reg.DepositFees(ctx, "dao-1", "placement", 50)
		require.NoError(t, err)

		assert.Equal(t, int64(150), reg.DepositedTotal("dao-1", "placement"))
	})

	t.Run("non-positive deposit rejected", func(t *testing.T) {
		_, err := reg.DepositFees(ctx, "dao-1", "placement", 0)
		assert.Error(t, err)
	})
}
