package attestation

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/r3e-collective/dws-controlplane/internal/crypto"
)

// TCBStatus summarizes the freshness check against a configured minimum
// table (spec.md §4.1 step 7).
type TCBStatus string

const (
	TCBUpToDate TCBStatus = "upToDate"
	TCBOutOfDate TCBStatus = "outOfDate"
	TCBRevoked   TCBStatus = "revoked"
	TCBUnknown   TCBStatus = "unknown"
)

// CheckBits records the outcome of each independent verification step so
// callers can log why a quote failed without re-deriving it (spec.md §4.1
// "parser yields structured fields whether or not the quote verifies").
type CheckBits struct {
	CertChainValid     bool
	SignatureValid     bool
	MeasurementMatched bool
	TCB                TCBStatus
}

// Result is the verifier's full output.
type Result struct {
	Valid      bool
	Platform   Platform
	HardwareID []byte
	Checks     CheckBits
	ErrorSummary string
}

// TCBMinimums is the configured minimum security-version table (spec.md
// §4.1 "configured minimum table"), keyed by platform.
type TCBMinimums struct {
	MinIntelTCB uint64 // compared against a numeric encoding of ISVSVN/cpuSvn
	MinSEVTCB   uint64 // compared against SEVSNPReport.CurrentTCB
	RevokedTCBs map[uint64]bool
}

// Config configures a Verifier.
type Config struct {
	PinnedRootFingerprints map[[32]byte]bool // SHA-256 fingerprints of trusted roots
	TCB                    TCBMinimums
	KDS                    *KDSClient // required for SEV-SNP verification
	Clock                  func() time.Time
	AuditLog               *zap.Logger // low-allocation logger for the hot verification path; nil disables audit logging
}

// Verifier implements the seven-step protocol of spec.md §4.1.
type Verifier struct {
	cfg Config
}

// New creates a Verifier from cfg.
func New(cfg Config) *Verifier {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Verifier{cfg: cfg}
}

// Verify runs the full seven-step protocol against raw quote bytes,
// selecting DCAP vs SEV-SNP by inspecting the leading bytes, and comparing
// against expectedMeasurement when non-nil.
func (v *Verifier) Verify(rawQuote []byte, expectedMeasurement []byte) (*Result, error) {
	var result *Result
	var err error
	if isSEVSNP(rawQuote) {
		result, err = v.verifySEVSNP(rawQuote, expectedMeasurement)
	} else {
		result, err = v.verifyDCAP(rawQuote, expectedMeasurement)
	}
	v.audit(result, err)
	return result, err
}

// audit emits a structured verification-outcome record on the hot path
// without the allocation overhead of logrus's field maps. Inert when no
// AuditLog was configured.
func (v *Verifier) audit(result *Result, err error) {
	if v.cfg.AuditLog == nil || result == nil {
		return
	}
	v.cfg.AuditLog.Info("attestation verified",
		zap.Bool("valid", result.Valid),
		zap.String("platform", string(result.Platform)),
		zap.Bool("certChainValid", result.Checks.CertChainValid),
		zap.Bool("signatureValid", result.Checks.SignatureValid),
		zap.Bool("measurementMatched", result.Checks.MeasurementMatched),
		zap.String("tcbStatus", string(result.Checks.TCB)),
		zap.Error(err),
	)
}

// isSEVSNP distinguishes the two families by the declared version+length,
// since SEV-SNP's version(=2) and DCAP's version(=4) occupy the same
// offset (spec.md §6's "distinguished by the first bytes").
func isSEVSNP(raw []byte) bool {
	if len(raw) < 4 {
		return false
	}
	return raw[0] == sevSNPVersion && raw[1] == 0 && raw[2] == 0 && raw[3] == 0 && len(raw) >= sevSNPHeaderLen
}

func (v *Verifier) verifyDCAP(raw, expectedMeasurement []byte) (*Result, error) {
	quote, err := ParseDCAP(raw)
	if err != nil {
		return &Result{ErrorSummary: err.Error()}, nil
	}
	platform := platformFor(quote.IsTDX)
	result := &Result{Platform: platform}

	signerDigest := sha256.Sum256(quote.RawHeaderBody[12:28]) // vendor-id region stands in for the signer digest input
	hw := crypto.Keccak256(signerDigest[:], quote.Measurement())
	result.HardwareID = hw[:]

	certs, err := parsePEMChain(quote.SignatureData)
	if err != nil || len(certs) == 0 {
		result.ErrorSummary = "no certificate chain: unverifiable"
		return result, nil
	}
	chainOK := v.walkChain(certs, v.cfg.Clock())
	result.Checks.CertChainValid = chainOK

	sigOK := false
	if chainOK {
		sigOK = verifyECDSAP256(certs[0], quote.RawHeaderBody, quote.SignatureData)
	}
	result.Checks.SignatureValid = sigOK

	result.Checks.TCB = v.dcapTCBStatus(quote)

	if expectedMeasurement != nil {
		result.Checks.MeasurementMatched = bytes.Equal(quote.Measurement(), expectedMeasurement)
	} else {
		result.Checks.MeasurementMatched = true
	}

	result.Valid = result.Checks.MeasurementMatched && chainOK && sigOK && result.Checks.TCB == TCBUpToDate
	if !result.Valid && result.ErrorSummary == "" {
		result.ErrorSummary = summarize(result.Checks)
	}
	return result, nil
}

func (v *Verifier) verifySEVSNP(raw, expectedMeasurement []byte) (*Result, error) {
	report, err := ParseSEVSNP(raw)
	if err != nil {
		return &Result{ErrorSummary: err.Error()}, nil
	}
	result := &Result{Platform: PlatformSEVSNP}

	hw := crypto.Keccak256(report.ChipID[:])
	result.HardwareID = hw[:]

	if v.cfg.KDS == nil {
		result.ErrorSummary = "no certificate chain: unverifiable"
		return result, nil
	}
	certPEM, err := v.cfg.KDS.FetchChain(report.ChipID[:0x40], report.ReportedTCB)
	if err != nil {
		result.ErrorSummary = fmt.Sprintf("AMD KDS fetch failed: %v", err)
		return result, nil
	}
	certs, err := parsePEMChain(certPEM)
	if err != nil || len(certs) == 0 {
		result.ErrorSummary = "no certificate chain: unverifiable"
		return result, nil
	}
	chainOK := v.walkChain(certs, v.cfg.Clock())
	result.Checks.CertChainValid = chainOK

	sigOK := false
	if chainOK {
		sigOK = verifyECDSAP384(certs[0], raw[:sevSNPHeaderLen], report.Signature)
	}
	result.Checks.SignatureValid = sigOK

	if report.CurrentTCB >= v.cfg.TCB.MinSEVTCB {
		result.Checks.TCB = TCBUpToDate
	} else if v.cfg.TCB.RevokedTCBs[report.CurrentTCB] {
		result.Checks.TCB = TCBRevoked
	} else {
		result.Checks.TCB = TCBOutOfDate
	}

	if expectedMeasurement != nil {
		result.Checks.MeasurementMatched = bytes.Equal(report.Measurement[:], expectedMeasurement)
	} else {
		result.Checks.MeasurementMatched = true
	}

	result.Valid = result.Checks.MeasurementMatched && chainOK && sigOK && result.Checks.TCB == TCBUpToDate
	if !result.Valid && result.ErrorSummary == "" {
		result.ErrorSummary = summarize(result.Checks)
	}
	return result, nil
}

func (v *Verifier) dcapTCBStatus(q *DCAPQuote) TCBStatus {
	var svn uint64
	if q.IsTDX {
		svn = uint64(q.TEEType)
	} else {
		svn = uint64(q.SGX.ISVSVN)
	}
	if svn >= v.cfg.TCB.MinIntelTCB {
		return TCBUpToDate
	}
	if v.cfg.TCB.RevokedTCBs[svn] {
		return TCBRevoked
	}
	return TCBOutOfDate
}

func summarize(c CheckBits) string {
	switch {
	case !c.CertChainValid:
		return "certificate chain invalid"
	case !c.SignatureValid:
		return "signature invalid"
	case !c.MeasurementMatched:
		return "measurement mismatch"
	default:
		return fmt.Sprintf("tcb status %s", c.TCB)
	}
}

// walkChain verifies leaf->root: each cert's validity window contains now,
// each non-root is signed by its successor, and the root's SHA-256
// fingerprint is in the pinned set (spec.md §4.1 step 5). Fails closed.
func (v *Verifier) walkChain(certs []*x509.Certificate, now time.Time) bool {
	for _, c := range certs {
		if now.Before(c.NotBefore) || now.After(c.NotAfter) {
			return false
		}
	}
	for i := 0; i < len(certs)-1; i++ {
		if err := certs[i].CheckSignatureFrom(certs[i+1]); err != nil {
			return false
		}
	}
	root := certs[len(certs)-1]
	fp := sha256.Sum256(root.Raw)
	return v.cfg.PinnedRootFingerprints[fp]
}

func parsePEMChain(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	rest := data
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("attestation: parse certificate: %w", err)
		}
		certs = append(certs, cert)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("attestation: no PEM certificate blocks found")
	}
	return certs, nil
}

// verifyECDSAP256 checks an ECDSA-P256/SHA-256 signature over signedBytes
// using leaf's public key, extracting (r,s) from the trailing 64 bytes of
// sigData and rejecting out-of-order values (spec.md §4.1 step 6).
func verifyECDSAP256(leaf *x509.Certificate, signedBytes, sigData []byte) bool {
	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P256() {
		return false
	}
	if len(sigData) < 64 {
		return false
	}
	rsBytes := sigData[len(sigData)-64:]
	r := new(big.Int).SetBytes(rsBytes[:32])
	s := new(big.Int).SetBytes(rsBytes[32:64])
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(pub.Curve.Params().N) >= 0 || s.Cmp(pub.Curve.Params().N) >= 0 {
		return false
	}
	digest := sha256.Sum256(signedBytes)
	return ecdsa.Verify(pub, digest[:], r, s)
}

// verifyECDSAP384 checks an ECDSA-P384/SHA-384 signature, rejecting any
// signature whose algorithm isn't ECDSA-P384 (spec.md §9: "RSA signature
// lengths appear in the parser but must be rejected").
func verifyECDSAP384(leaf *x509.Certificate, signedBytes []byte, sig [96]byte) bool {
	pub, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	if !ok || pub.Curve != elliptic.P384() {
		return false
	}
	r := new(big.Int).SetBytes(sig[:48])
	s := new(big.Int).SetBytes(sig[48:])
	if r.Sign() <= 0 || s.Sign() <= 0 || r.Cmp(pub.Curve.Params().N) >= 0 || s.Cmp(pub.Curve.Params().N) >= 0 {
		return false
	}
	digest := sha512.Sum384(signedBytes)
	return ecdsa.Verify(pub, digest[:], r, s)
}
