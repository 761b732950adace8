package secretstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditChainVerifiesAndDetectsTampering(t *testing.T) {
	signingKey := []byte("audit-signing-key")
	now := time.Unix(1_700_000_000, 0)

	e1, err := appendAuditEvent(signingKey, AuditEvent{}, "sec_1", OpCreate, "owner-1", now)
	require.NoError(t, err)
	e2, err := appendAuditEvent(signingKey, e1, "sec_1", OpGet, "owner-1", now.Add(time.Minute))
	require.NoError(t, err)
	e3, err := appendAuditEvent(signingKey, e2, "sec_1", OpRotate, "owner-1", now.Add(2*time.Minute))
	require.NoError(t, err)

	chain := []AuditEvent{e1, e2, e3}
	broken, err := VerifyChain(signingKey, chain)
	require.NoError(t, err)
	assert.Equal(t, int64(0), broken)

	chain[1].Operation = OpDelete // tamper with a middle link
	broken, err = VerifyChain(signingKey, chain)
	require.NoError(t, err)
	assert.Equal(t, e2.Sequence, broken)
}

func TestAuditEventSequenceIncrementsFromPrev(t *testing.T) {
	signingKey := []byte("k")
	e1, err := appendAuditEvent(signingKey, AuditEvent{}, "sec_1", OpCreate, "a", time.Unix(0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), e1.Sequence)
	assert.Empty(t, e1.PrevHash)

	e2, err := appendAuditEvent(signingKey, e1, "sec_1", OpGet, "a", time.Unix(1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(2), e2.Sequence)
	assert.Equal(t, e1.Hash, e2.PrevHash)
}
