package attestation

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyDCAPVendorMismatchNeverFetchesNetwork(t *testing.T) {
	var wrongVendor [16]byte
	copy(wrongVendor[:], []byte("not-intel-vendor"))
	raw := buildDCAPQuote(t, teeTypeTDX, wrongVendor)

	v := New(Config{})
	result, err := v.Verify(raw, nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.ErrorSummary, "vendor")
}

func TestVerifyDCAPNoCertChainIsUnverifiable(t *testing.T) {
	raw := buildDCAPQuote(t, teeTypeTDX, PinnedIntelVendorID)

	v := New(Config{})
	result, err := v.Verify(raw, nil)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Contains(t, result.ErrorSummary, "unverifiable")
}

func TestIsSEVSNPDetection(t *testing.T) {
	sevRaw := make([]byte, sevSNPHeaderLen)
	binary.LittleEndian.PutUint32(sevRaw[0:4], sevSNPVersion)
	assert.True(t, isSEVSNP(sevRaw))

	dcapRaw := buildDCAPQuote(t, teeTypeSGX, PinnedIntelVendorID)
	assert.False(t, isSEVSNP(dcapRaw))
}

func TestTCBStatusMapping(t *testing.T) {
	v := New(Config{TCB: TCBMinimums{MinIntelTCB: 10, RevokedTCBs: map[uint64]bool{3: true}}})

	upToDate := &DCAPQuote{SGX: &SGXReportBody{ISVSVN: 12}}
	assert.Equal(t, TCBUpToDate, v.dcapTCBStatus(upToDate))

	outOfDate := &DCAPQuote{SGX: &SGXReportBody{ISVSVN: 5}}
	assert.Equal(t, TCBOutOfDate, v.dcapTCBStatus(outOfDate))

	revoked := &DCAPQuote{SGX: &SGXReportBody{ISVSVN: 3}}
	assert.Equal(t, TCBRevoked, v.dcapTCBStatus(revoked))
}
