// Package attestation parses and cryptographically verifies hardware
// attestation quotes from Intel DCAP (SGX/TDX) and AMD SEV-SNP before a
// node is admitted as trusted (spec.md §4.1/§6). Grounded on the teacher's
// infrastructure/marble/attestation.go hashing conventions (though that
// file leans on an enclave SDK this module doesn't depend on) and its
// infrastructure/resilience retry pattern for the AMD KDS fetch.
package attestation

import (
	"encoding/binary"
	"fmt"
)

// Platform distinguishes the three recognized quote families.
type Platform string

const (
	PlatformSGX    Platform = "sgx"
	PlatformTDX    Platform = "tdx"
	PlatformSEVSNP Platform = "sev-snp"
)

// Byte-layout constants from spec.md §6, bit-exact.
const (
	dcapHeaderLen  = 48
	dcapTDXBodyLen = 584
	dcapSGXBodyLen = 384

	dcapVersion = 4
	teeTypeSGX  = 0x00
	teeTypeTDX  = 0x81

	sevSNPHeaderLen    = 0x2a0
	sevSNPSignatureLen = 0x200 // 512 bytes, trailing ECDSA-P384 r||s at 0x2a0..0x4a0
	sevSNPVersion      = 2

	// sevSNPSigAlgoECDSAP384 is the only sig_algo value this module
	// accepts (spec.md §9: RSA signature lengths appear in the parser but
	// must be rejected).
	sevSNPSigAlgoECDSAP384 = 1
)

// PinnedIntelVendorID is the 16-byte Intel vendor id every DCAP quote must
// carry at bytes [12..28). Quotes are checked against this fixed value;
// the verifier's Config has no field that overrides it.
var PinnedIntelVendorID = [16]byte{
	0x93, 0x9a, 0x72, 0x33, 0xf7, 0x9c, 0x4c, 0xa9,
	0x94, 0x0a, 0x0d, 0xb3, 0x95, 0x7f, 0x06, 0x07,
}

// ParseError is a typed, non-panicking parse failure (spec.md §8 boundary
// behavior: "a truncated quote returns a typed parse error, never crashes").
type ParseError struct {
	Platform Platform
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("attestation: parse %s quote: %s", e.Platform, e.Reason)
}

// DCAPQuote is the parsed structure shared by SGX and TDX quotes.
type DCAPQuote struct {
	Version    uint16
	AttKeyType uint16
	TEEType    uint32
	VendorID   [16]byte
	UserData   [20]byte

	IsTDX bool
	SGX   *SGXReportBody
	TDX   *TDXReportBody

	SignatureData []byte
	RawHeaderBody []byte // header+body bytes, input to the signature check
}

// SGXReportBody is the SGX quote body (384 bytes) per spec.md §6.
type SGXReportBody struct {
	CPUSVN     [16]byte
	MREnclave  [32]byte
	MRSigner   [32]byte
	ISVSVN     uint16
	ReportData [64]byte
}

// TDXReportBody is the TDX quote body (584 bytes) per spec.md §6.
type TDXReportBody struct {
	MRSeam       [48]byte
	MRSignerSeam [48]byte
	MRTd         [48]byte
	RTMR0        [48]byte
	RTMR1        [48]byte
	RTMR2        [48]byte
	RTMR3        [48]byte
	ReportData   [64]byte
}

// ParseDCAP parses a DCAP-family (SGX or TDX) quote. It never panics: any
// structural problem returns a *ParseError.
func ParseDCAP(raw []byte) (*DCAPQuote, error) {
	if len(raw) < dcapHeaderLen {
		return nil, &ParseError{Reason: fmt.Sprintf("quote length %d below DCAP header minimum %d", len(raw), dcapHeaderLen)}
	}

	version := binary.LittleEndian.Uint16(raw[0:2])
	if version != dcapVersion {
		return nil, &ParseError{Reason: fmt.Sprintf("unsupported DCAP version %d", version)}
	}
	attKeyType := binary.LittleEndian.Uint16(raw[2:4])
	teeType := binary.LittleEndian.Uint32(raw[4:8])

	var vendorID [16]byte
	copy(vendorID[:], raw[12:28])
	if vendorID != PinnedIntelVendorID {
		return nil, &ParseError{Reason: "vendor id does not match pinned Intel id"}
	}

	var userData [20]byte
	copy(userData[:], raw[28:48])

	q := &DCAPQuote{
		Version: version, AttKeyType: attKeyType, TEEType: teeType,
		VendorID: vendorID, UserData: userData,
	}

	var bodyLen int
	switch teeType {
	case teeTypeTDX:
		bodyLen = dcapTDXBodyLen
		q.IsTDX = true
	case teeTypeSGX:
		bodyLen = dcapSGXBodyLen
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unrecognized tee-type 0x%x", teeType)}
	}

	bodyEnd := dcapHeaderLen + bodyLen
	if len(raw) < bodyEnd+4 {
		return nil, &ParseError{Platform: platformFor(q.IsTDX), Reason: fmt.Sprintf("quote length %d below body end %d", len(raw), bodyEnd)}
	}
	body := raw[dcapHeaderLen:bodyEnd]

	if q.IsTDX {
		q.TDX = parseTDXBody(body)
	} else {
		q.SGX = parseSGXBody(body)
	}

	sigLen := binary.LittleEndian.Uint32(raw[bodyEnd : bodyEnd+4])
	sigStart := bodyEnd + 4
	sigEnd := sigStart + int(sigLen)
	if sigEnd > len(raw) {
		return nil, &ParseError{Platform: platformFor(q.IsTDX), Reason: "declared signature length exceeds quote bytes"}
	}
	q.SignatureData = raw[sigStart:sigEnd]
	q.RawHeaderBody = raw[:bodyEnd]

	return q, nil
}

func platformFor(isTDX bool) Platform {
	if isTDX {
		return PlatformTDX
	}
	return PlatformSGX
}

func parseSGXBody(b []byte) *SGXReportBody {
	body := &SGXReportBody{}
	copy(body.CPUSVN[:], b[0:16])
	copy(body.MREnclave[:], b[64:96])
	copy(body.MRSigner[:], b[128:160])
	body.ISVSVN = binary.LittleEndian.Uint16(b[256:258])
	copy(body.ReportData[:], b[320:384])
	return body
}

func parseTDXBody(b []byte) *TDXReportBody {
	body := &TDXReportBody{}
	copy(body.MRSeam[:], b[0:48])
	copy(body.MRSignerSeam[:], b[48:96])
	copy(body.MRTd[:], b[96:144])
	copy(body.RTMR0[:], b[144:192])
	copy(body.RTMR1[:], b[192:240])
	copy(body.RTMR2[:], b[240:288])
	copy(body.RTMR3[:], b[288:336])
	copy(body.ReportData[:], b[520:584])
	return body
}

// Measurement returns the code-measurement field used for expected-hash
// comparison (mrEnclave for SGX, mrTd for TDX).
func (q *DCAPQuote) Measurement() []byte {
	if q.IsTDX {
		return q.TDX.MRTd[:]
	}
	return q.SGX.MREnclave[:]
}

// SEVSNPReport is the parsed AMD SEV-SNP attestation report (spec.md §6).
type SEVSNPReport struct {
	Version         uint32
	GuestSVN        uint32
	Policy          uint64
	FamilyID        [16]byte
	ImageID         [16]byte
	VMPL            uint32
	SigAlgo         uint32
	CurrentTCB      uint64
	PlatformInfo    uint64
	ReportData      [64]byte
	Measurement     [48]byte
	HostData        [32]byte
	IDKeyDigest     [48]byte
	AuthorKeyDigest [48]byte
	ReportID        [32]byte
	ReportIDMA      [32]byte
	ReportedTCB     uint64
	ChipID          [64]byte
	Signature       [96]byte // r (48) || s (48), ECDSA-P384/SHA-384 only (spec.md §9)

	Raw []byte
}

// ParseSEVSNP parses an AMD SEV-SNP attestation report.
func ParseSEVSNP(raw []byte) (*SEVSNPReport, error) {
	const minLen = sevSNPHeaderLen + sevSNPSignatureLen
	if len(raw) < minLen {
		return nil, &ParseError{Platform: PlatformSEVSNP, Reason: fmt.Sprintf("report length %d below SEV-SNP minimum %d", len(raw), minLen)}
	}

	version := binary.LittleEndian.Uint32(raw[0x00:0x04])
	if version != sevSNPVersion {
		return nil, &ParseError{Platform: PlatformSEVSNP, Reason: fmt.Sprintf("unsupported SEV-SNP version %d", version)}
	}

	r := &SEVSNPReport{Raw: raw, Version: version}
	r.GuestSVN = binary.LittleEndian.Uint32(raw[0x04:0x08])
	r.Policy = binary.LittleEndian.Uint64(raw[0x08:0x10])
	copy(r.FamilyID[:], raw[0x10:0x20])
	copy(r.ImageID[:], raw[0x20:0x30])
	r.VMPL = binary.LittleEndian.Uint32(raw[0x30:0x34])
	r.SigAlgo = binary.LittleEndian.Uint32(raw[0x34:0x38])
	if r.SigAlgo != sevSNPSigAlgoECDSAP384 {
		return nil, &ParseError{Platform: PlatformSEVSNP, Reason: fmt.Sprintf("unsupported sig_algo %d: only ECDSA-P384 is accepted", r.SigAlgo)}
	}
	r.CurrentTCB = binary.LittleEndian.Uint64(raw[0x38:0x40])
	r.PlatformInfo = binary.LittleEndian.Uint64(raw[0x40:0x48])
	copy(r.ReportData[:], raw[0x50:0x90])
	copy(r.Measurement[:], raw[0x90:0xC0])
	copy(r.HostData[:], raw[0xC0:0xE0])
	copy(r.IDKeyDigest[:], raw[0xE0:0x110])
	copy(r.AuthorKeyDigest[:], raw[0x110:0x140])
	copy(r.ReportID[:], raw[0x140:0x160])
	copy(r.ReportIDMA[:], raw[0x160:0x180])
	r.ReportedTCB = binary.LittleEndian.Uint64(raw[0x180:0x188])
	copy(r.ChipID[:], raw[0x1A0:0x1E0])
	copy(r.Signature[:], raw[0x2A0:0x2A0+96])

	return r, nil
}
