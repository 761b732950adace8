package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUploadDownloadRoundTrips(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()

	addr, url, err := l.Upload(ctx, []byte("payload"), Metadata{Filename: "x"})
	require.NoError(t, err)
	assert.Contains(t, url, addr)

	content, err := l.Download(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), content)

	exists, err := l.Exists(ctx, addr)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalDownloadMissingAddrFails(t *testing.T) {
	l := NewLocal()
	_, err := l.Download(context.Background(), "missing")
	assert.Error(t, err)
}

func TestLocalAddressIsContentDerivedNotRandom(t *testing.T) {
	ctx := context.Background()
	l := NewLocal()
	addr1, _, _ := l.Upload(ctx, []byte("same"), Metadata{})
	addr2, _, _ := l.Upload(ctx, []byte("same"), Metadata{})
	assert.Equal(t, addr1, addr2)
}
