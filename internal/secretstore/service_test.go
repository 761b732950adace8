package secretstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/secretstore"
	"github.com/r3e-collective/dws-controlplane/internal/secretstore/memory"
)

func newTestService(t *testing.T) *secretstore.Service {
	t.Helper()
	masterKey := make([]byte, 32)
	for i := range masterKey {
		masterKey[i] = byte(i * 7)
	}
	svc, err := secretstore.New(memory.New(), masterKey, []byte("signing-key"), nil)
	require.NoError(t, err)
	return svc
}

func TestCreateGetRoundTrips(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	nodes := []string{"node-1", "node-2", "node-3", "node-4", "node-5"}
	secret, err := svc.Create(ctx, "dao-1", "API_KEY", []byte("sk-live-abc123"), 3, nodes, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, 1, secret.Version)
	assert.Len(t, secret.Shares, 5)

	plaintext, err := svc.Get(ctx, "dao-1", "API_KEY", "owner-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("sk-live-abc123"), plaintext)
}

func TestCreateRejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	_, err := svc.Create(ctx, "dao-1", "lower_case", []byte("v"), 2, []string{"a", "b"}, "owner")
	assert.Error(t, err)
}

func TestCreateRejectsOversizedSecret(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	huge := make([]byte, secretstore.MaxSecretBytes+1)
	_, err := svc.Create(ctx, "dao-1", "BIG", huge, 2, []string{"a", "b"}, "owner")
	assert.Error(t, err)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	nodes := []string{"a", "b", "c"}
	_, err := svc.Create(ctx, "dao-1", "DUP", []byte("v1"), 2, nodes, "owner")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "dao-1", "DUP", []byte("v2"), 2, nodes, "owner")
	assert.Error(t, err)
}

func TestUpdateBumpsVersionAndPreservesNodeLayout(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	nodes := []string{"a", "b", "c"}
	created, err := svc.Create(ctx, "dao-1", "ROTKEY", []byte("v1"), 2, nodes, "owner")
	require.NoError(t, err)

	updated, err := svc.Update(ctx, "dao-1", "ROTKEY", []byte("v2"), "owner")
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, updated.Version)
	assert.Equal(t, created.ID, updated.ID)

	plaintext, err := svc.Get(ctx, "dao-1", "ROTKEY", "owner")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), plaintext)
}

func TestRotateChangesSharesButNotPlaintext(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	nodes := []string{"a", "b", "c"}
	created, err := svc.Create(ctx, "dao-1", "STABLE", []byte("unchanging-value"), 2, nodes, "owner")
	require.NoError(t, err)

	rotated, err := svc.Rotate(ctx, "dao-1", "STABLE", "owner")
	require.NoError(t, err)
	assert.Equal(t, created.Version+1, rotated.Version)
	assert.NotEqual(t, created.Shares[0].Sealed, rotated.Shares[0].Sealed)

	plaintext, err := svc.Get(ctx, "dao-1", "STABLE", "owner")
	require.NoError(t, err)
	assert.Equal(t, []byte("unchanging-value"), plaintext)
}

func TestDeleteRemovesSecret(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	nodes := []string{"a", "b", "c"}
	_, err := svc.Create(ctx, "dao-1", "GONE", []byte("v"), 2, nodes, "owner")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "dao-1", "GONE", "owner"))

	_, err = svc.Get(ctx, "dao-1", "GONE", "owner")
	assert.Error(t, err)
}

func TestGetFailsWithInsufficientValidShares(t *testing.T) {
	ctx := context.Background()
	masterKey := make([]byte, 32)
	repo := memory.New()
	svc, err := secretstore.New(repo, masterKey, []byte("signing-key"), nil)
	require.NoError(t, err)

	nodes := []string{"a", "b", "c"}
	_, err = svc.Create(ctx, "dao-1", "FRAGILE", []byte("v"), 3, nodes, "owner")
	require.NoError(t, err)

	// Corrupt two of the three shares' hashes directly in the repository,
	// simulating node data loss/tampering below the threshold.
	stored, err := repo.Get(ctx, "dao-1", "FRAGILE")
	require.NoError(t, err)
	stored.Shares[0].ShareHash = "deadbeef"
	stored.Shares[1].ShareHash = "deadbeef"
	require.NoError(t, repo.Update(ctx, stored))

	_, err = svc.Get(ctx, "dao-1", "FRAGILE", "owner")
	require.Error(t, err)

	var apiErr *apierr.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "INSUFFICIENT_SHARES", apiErr.Tag)
}
