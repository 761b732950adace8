// Package crypto provides the cryptographic primitives shared across
// components rather than owned by a single one: Keccak-256, used to bind
// attestation hardware ids (internal/attestation), moderation
// attestationHash (internal/moderation), and deployed-code expectedHash
// (internal/placement); and the Neo N3 script-hash-to-address encoding the
// node registry uses for operator-facing display. Component-local crypto
// (envelope AEAD in secretstore, quote-signature verification in
// attestation) lives with the component it serves instead of here.
package crypto

import (
	"crypto/sha256"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// Keccak256 computes the original Keccak-256 digest (the pre-standardization
// padding Ethereum and this module's spec both call "keccak-256" — distinct
// from NIST SHA3-256 despite the similar name).
func Keccak256(data ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ScriptHashToAddress converts a 20-byte Neo N3 script hash to a
// Base58Check-encoded address (version byte 0x35, double-SHA256 checksum),
// used by the node registry to render an operator's address for display.
func ScriptHashToAddress(scriptHash []byte) string {
	data := make([]byte, 21)
	data[0] = 0x35 // Neo N3 address version
	copy(data[1:], scriptHash)

	hash1 := sha256.Sum256(data)
	hash2 := sha256.Sum256(hash1[:])
	checksum := hash2[:4]

	addressBytes := append(data, checksum...)
	return base58.Encode(addressBytes)
}
