package attestation

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDCAPQuote(t *testing.T, teeType uint32, vendorID [16]byte) []byte {
	t.Helper()
	var bodyLen int
	if teeType == teeTypeTDX {
		bodyLen = dcapTDXBodyLen
	} else {
		bodyLen = dcapSGXBodyLen
	}

	buf := make([]byte, dcapHeaderLen+bodyLen+4)
	binary.LittleEndian.PutUint16(buf[0:2], dcapVersion)
	binary.LittleEndian.PutUint16(buf[2:4], 1)
	binary.LittleEndian.PutUint32(buf[4:8], teeType)
	copy(buf[12:28], vendorID[:])
	// signature-data length = 0, no trailing bytes
	binary.LittleEndian.PutUint32(buf[dcapHeaderLen+bodyLen:], 0)
	return buf
}

func TestParseDCAPRejectsTruncatedQuote(t *testing.T) {
	_, err := ParseDCAP([]byte{0x01, 0x02})
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseDCAPRejectsWrongVendorID(t *testing.T) {
	var wrongVendor [16]byte
	copy(wrongVendor[:], []byte("not-intel-vendor"))
	raw := buildDCAPQuote(t, teeTypeTDX, wrongVendor)

	_, err := ParseDCAP(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vendor")
}

func TestParseDCAPAcceptsPinnedVendorTDX(t *testing.T) {
	raw := buildDCAPQuote(t, teeTypeTDX, PinnedIntelVendorID)

	q, err := ParseDCAP(raw)
	require.NoError(t, err)
	assert.True(t, q.IsTDX)
	require.NotNil(t, q.TDX)
	assert.Len(t, q.Measurement(), 48)
}

func TestParseDCAPAcceptsPinnedVendorSGX(t *testing.T) {
	raw := buildDCAPQuote(t, teeTypeSGX, PinnedIntelVendorID)

	q, err := ParseDCAP(raw)
	require.NoError(t, err)
	assert.False(t, q.IsTDX)
	require.NotNil(t, q.SGX)
	assert.Len(t, q.Measurement(), 32)
}

func TestParseSEVSNPRejectsTruncatedReport(t *testing.T) {
	_, err := ParseSEVSNP(make([]byte, 10))
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseSEVSNPHappyPath(t *testing.T) {
	raw := make([]byte, sevSNPHeaderLen+sevSNPSignatureLen)
	binary.LittleEndian.PutUint32(raw[0x00:0x04], sevSNPVersion)
	binary.LittleEndian.PutUint32(raw[0x34:0x38], sevSNPSigAlgoECDSAP384)
	binary.LittleEndian.PutUint64(raw[0x38:0x40], 12345)
	copy(raw[0x1A0:0x1E0], []byte("deadbeefdeadbeefdeadbeefdeadbeef"))

	report, err := ParseSEVSNP(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), report.Version)
	assert.Equal(t, uint32(sevSNPSigAlgoECDSAP384), report.SigAlgo)
	assert.Equal(t, uint64(12345), report.CurrentTCB)
}

func TestParseSEVSNPRejectsNonECDSAP384SigAlgo(t *testing.T) {
	raw := make([]byte, sevSNPHeaderLen+sevSNPSignatureLen)
	binary.LittleEndian.PutUint32(raw[0x00:0x04], sevSNPVersion)
	binary.LittleEndian.PutUint32(raw[0x34:0x38], 2) // 2 = RSA in the real AMD encoding

	_, err := ParseSEVSNP(raw)
	require.Error(t, err)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Reason, "sig_algo")
}
