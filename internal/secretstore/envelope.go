// Package secretstore implements envelope-encrypted secrets split via
// Shamir threshold sharing across N nodes (spec.md §4.4), grounded on
// infrastructure/crypto/envelope.go's derive-then-AEAD shape.
package secretstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

// sealEnvelope encrypts plaintext with masterKey using AES-256-GCM, laid
// out as IV‖authTag‖ciphertext (spec.md §4.4's own ordering). GCM's Seal
// appends the tag after the ciphertext, so the tag is moved ahead of it
// here. The node-share re-encryption below uses the same layout.
func sealEnvelope(masterKey, plaintext []byte) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("secretstore: master key must be 32 bytes, got %d", len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("secretstore: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretstore: new gcm: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("secretstore: read nonce: %w", err)
	}
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	tagStart := len(sealed) - aead.Overhead()
	out := make([]byte, 0, len(nonce)+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed[tagStart:]...)
	out = append(out, sealed[:tagStart]...)
	return out, nil
}

// openEnvelope reverses sealEnvelope.
func openEnvelope(masterKey, sealed []byte) ([]byte, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("secretstore: master key must be 32 bytes, got %d", len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("secretstore: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretstore: new gcm: %w", err)
	}
	tagEnd := aead.NonceSize() + aead.Overhead()
	if len(sealed) < tagEnd {
		return nil, fmt.Errorf("secretstore: envelope too short")
	}
	nonce := sealed[:aead.NonceSize()]
	body := append(append([]byte(nil), sealed[tagEnd:]...), sealed[aead.NonceSize():tagEnd]...)
	return aead.Open(nil, nonce, body, nil)
}

// nodeShareKey derives the per-node re-encryption key as
// SHA-256(masterKey ‖ nodeId), per spec.md §4.4.
func nodeShareKey(masterKey []byte, nodeID string) []byte {
	h := sha256.New()
	h.Write(masterKey)
	h.Write([]byte(nodeID))
	return h.Sum(nil)
}

// sealShare re-encrypts a single Shamir share with the node's derived key.
func sealShare(masterKey []byte, nodeID string, share []byte) ([]byte, error) {
	return sealEnvelope(nodeShareKey(masterKey, nodeID), share)
}

// openShare reverses sealShare.
func openShare(masterKey []byte, nodeID string, sealed []byte) ([]byte, error) {
	return openEnvelope(nodeShareKey(masterKey, nodeID), sealed)
}

// shareHash is the integrity hash stored alongside each share (spec.md §3
// Secret.shares[i].shareHash), used to detect a tampered or corrupted
// share before attempting reconstruction.
func shareHash(share []byte) [32]byte {
	return sha256.Sum256(share)
}
