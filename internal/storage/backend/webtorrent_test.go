package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebTorrentUploadProducesMagnetURI(t *testing.T) {
	ctx := context.Background()
	w := NewWebTorrent()

	infoHash, magnet, err := w.Upload(ctx, []byte("torrent-payload"), Metadata{Filename: "clip.mp4"})
	require.NoError(t, err)
	assert.Contains(t, magnet, "magnet:?xt=urn:btih:"+infoHash)
	assert.Contains(t, magnet, "dn=clip.mp4")

	content, err := w.Download(ctx, infoHash)
	require.NoError(t, err)
	assert.Equal(t, []byte("torrent-payload"), content)

	assert.Equal(t, 1, w.SeederCount(infoHash))
	assert.Equal(t, 0, w.SeederCount("unseen"))
}
