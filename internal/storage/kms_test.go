package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKeyManagerEncryptDecryptRoundTrips(t *testing.T) {
	ctx := context.Background()
	km := NewLocalKeyManager([]byte("root-secret"))

	ciphertext, keyID, err := km.Encrypt(ctx, "content-1", []byte("plaintext-value"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("plaintext-value"), ciphertext)
	assert.Equal(t, "content-1", keyID)

	plain, err := km.Decrypt(ctx, keyID, ciphertext)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext-value"), plain)
}

func TestLocalKeyManagerDecryptFailsWithWrongKeyID(t *testing.T) {
	ctx := context.Background()
	km := NewLocalKeyManager([]byte("root-secret"))

	ciphertext, _, err := km.Encrypt(ctx, "content-1", []byte("v"))
	require.NoError(t, err)

	_, err = km.Decrypt(ctx, "content-2", ciphertext)
	assert.Error(t, err)
}
