package secretstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenEnvelopeRoundTrips(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	plaintext := []byte("share-bytes-go-here")

	sealed, err := sealEnvelope(key, plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, sealed)

	opened, err := openEnvelope(key, sealed)
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpenEnvelopeRejectsWrongKey(t *testing.T) {
	key1 := make([]byte, 32)
	key2 := make([]byte, 32)
	key2[0] = 1

	sealed, err := sealEnvelope(key1, []byte("secret"))
	require.NoError(t, err)

	_, err = openEnvelope(key2, sealed)
	assert.Error(t, err)
}

func TestNodeShareKeyIsDeterministicPerNode(t *testing.T) {
	master := make([]byte, 32)
	k1 := nodeShareKey(master, "node-a")
	k2 := nodeShareKey(master, "node-a")
	k3 := nodeShareKey(master, "node-b")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}

func TestSealShareOpenShareRoundTrips(t *testing.T) {
	master := make([]byte, 32)
	sealed, err := sealShare(master, "node-a", []byte("share-payload"))
	require.NoError(t, err)

	opened, err := openShare(master, "node-a", sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("share-payload"), opened)

	_, err = openShare(master, "node-b", sealed)
	assert.Error(t, err, "a share sealed for node-a must not open under node-b's derived key")
}
