package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-collective/dws-controlplane/internal/storage"
	"github.com/r3e-collective/dws-controlplane/internal/storage/backend"
	"github.com/r3e-collective/dws-controlplane/internal/storage/memory"
)

func newTestManager(t *testing.T) (*storage.Manager, *backend.Local) {
	t.Helper()
	local := backend.NewLocal()
	cfg := storage.DefaultConfig()
	cfg.Environment = storage.EnvLocalnet // keeps backend lists to ipfs in prod tables; local is exercised via override
	mgr := storage.New(cfg, map[string]backend.Backend{"local": local}, memory.New(), storage.NewLocalKeyManager([]byte("root")), nil)
	return mgr, local
}

func TestUploadDownloadRoundTripsPlaintext(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	result, err := mgr.Upload(ctx, []byte("hello world"), storage.TierPrivate, storage.UploadOptions{
		Encrypt:         boolPtr(false),
		BackendOverride: []string{"local"},
	})
	require.NoError(t, err)
	assert.False(t, result.Encrypted)

	dl, err := mgr.Download(ctx, result.CID, storage.DownloadOptions{BackendOverride: []string{"local"}})
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), dl.Content)
}

func TestUploadEncryptsPrivateTierByDefault(t *testing.T) {
	ctx := context.Background()
	mgr, local := newTestManager(t)

	result, err := mgr.Upload(ctx, []byte("secret value"), storage.TierPrivate, storage.UploadOptions{
		BackendOverride: []string{"local"},
	})
	require.NoError(t, err)
	assert.True(t, result.Encrypted)
	require.NotEmpty(t, result.EncryptionKeyID)

	raw, err := local.Download(ctx, result.CID)
	require.NoError(t, err)
	assert.NotEqual(t, []byte("secret value"), raw, "backend must never see plaintext for an encrypted upload")

	dl, err := mgr.Download(ctx, result.CID, storage.DownloadOptions{
		BackendOverride: []string{"local"},
		DecryptKeyID:    result.EncryptionKeyID,
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("secret value"), dl.Content)
}

func TestDownloadEncryptedWithoutKeyFails(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	result, err := mgr.Upload(ctx, []byte("secret value"), storage.TierPrivate, storage.UploadOptions{
		BackendOverride: []string{"local"},
	})
	require.NoError(t, err)

	_, err = mgr.Download(ctx, result.CID, storage.DownloadOptions{BackendOverride: []string{"local"}})
	assert.Error(t, err)
}

func TestPopularityScoreMatchesSpecScenario(t *testing.T) {
	ctx := context.Background()
	mgr, _ := newTestManager(t)

	result, err := mgr.Upload(ctx, make([]byte, 1<<20), storage.TierPopular, storage.UploadOptions{
		BackendOverride: []string{"local"},
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := mgr.Download(ctx, result.CID, storage.DownloadOptions{BackendOverride: []string{"local"}, Region: "A"})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := mgr.Download(ctx, result.CID, storage.DownloadOptions{BackendOverride: []string{"local"}, Region: "B"})
		require.NoError(t, err)
	}

	score := mgr.PopularityFor(result.CID)
	assert.Equal(t, 13, score.Access24h)
	assert.Equal(t, 2, score.UniqueRegions)
	assert.Equal(t, float64(10*13+5*2), score.Score)
}

func boolPtr(b bool) *bool { return &b }
