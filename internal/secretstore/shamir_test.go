package secretstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGF256ArithmeticIdentities(t *testing.T) {
	assert.Equal(t, byte(0), gfAdd(0x53, 0x53))
	assert.Equal(t, byte(1), gfMul(gfInv(0x9a), 0x9a))
	assert.Equal(t, byte(0), gfInv(0))
}

func TestShamirSplitAndCombineRoundTrips(t *testing.T) {
	secret := []byte("super-secret-value-0123456789")
	shares, err := shamirSplit(secret, 3, 5)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	combo := make([]shamirShare, 0, 3)
	for _, idx := range []int{1, 3, 4} { // any 3 of 5
		combo = append(combo, shamirShare{X: byte(idx + 1), Y: shares[idx]})
	}

	recovered, err := shamirCombine(combo)
	require.NoError(t, err)
	assert.Equal(t, secret, recovered)
}

func TestShamirCombineFailsBelowThreshold(t *testing.T) {
	secret := []byte("abc")
	shares, err := shamirSplit(secret, 3, 5)
	require.NoError(t, err)

	combo := []shamirShare{
		{X: 1, Y: shares[0]},
		{X: 2, Y: shares[1]},
	}
	recovered, err := shamirCombine(combo)
	require.NoError(t, err) // combine itself does not know k; callers enforce it
	assert.NotEqual(t, secret, recovered)
}

func TestShamirSplitRejectsInvalidParameters(t *testing.T) {
	_, err := shamirSplit([]byte("x"), 1, 5)
	assert.Error(t, err)

	_, err = shamirSplit([]byte("x"), 4, 3)
	assert.Error(t, err)

	_, err = shamirSplit([]byte("x"), 2, 300)
	assert.Error(t, err)
}

func TestShamirCombineRejectsDuplicateXCoordinates(t *testing.T) {
	_, err := shamirCombine([]shamirShare{
		{X: 1, Y: []byte{1, 2}},
		{X: 1, Y: []byte{3, 4}},
	})
	assert.Error(t, err)
}
