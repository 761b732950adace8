package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// KeyManager is the envelope-encryption authority for private-tier content
// (spec.md §4.5: "A KMS endpoint is authoritative when configured;
// otherwise the spec prohibits returning data marked encrypted as if
// plaintext"). LocalKeyManager is the in-process fallback used when no
// external KMS is wired; it is still authoritative for its own keys, it
// simply has no external rotation/escrow service behind it.
type KeyManager interface {
	Encrypt(ctx context.Context, keyID string, plaintext []byte) (ciphertext []byte, usedKeyID string, err error)
	Decrypt(ctx context.Context, keyID string, ciphertext []byte) ([]byte, error)
}

// LocalKeyManager derives per-key-id AES-256 keys from a root secret via
// SHA-256(rootSecret ‖ keyID), sealing as IV(12) ‖ tag(16) ‖ ciphertext
// (spec.md §4.5's literal layout, distinct from Go's GCM default
// tag-appended-to-ciphertext ordering).
type LocalKeyManager struct {
	rootSecret []byte
}

// NewLocalKeyManager creates a LocalKeyManager from rootSecret (spec.md §6
// env knob DWS_ENCRYPTION_SECRET).
func NewLocalKeyManager(rootSecret []byte) *LocalKeyManager {
	return &LocalKeyManager{rootSecret: rootSecret}
}

func (k *LocalKeyManager) deriveKey(keyID string) []byte {
	h := sha256.New()
	h.Write(k.rootSecret)
	h.Write([]byte(keyID))
	return h.Sum(nil)
}

func (k *LocalKeyManager) Encrypt(_ context.Context, keyID string, plaintext []byte) ([]byte, string, error) {
	if keyID == "" {
		keyID = "default"
	}
	block, err := aes.NewCipher(k.deriveKey(keyID))
	if err != nil {
		return nil, "", fmt.Errorf("storage: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, "", fmt.Errorf("storage: new gcm: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("storage: read nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, nil)
	tag := sealed[len(sealed)-gcmTagSize:]
	body := sealed[:len(sealed)-gcmTagSize]

	out := make([]byte, 0, gcmNonceSize+gcmTagSize+len(body))
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, body...)
	return out, keyID, nil
}

func (k *LocalKeyManager) Decrypt(_ context.Context, keyID string, ciphertext []byte) ([]byte, error) {
	if keyID == "" {
		keyID = "default"
	}
	if len(ciphertext) < gcmNonceSize+gcmTagSize {
		return nil, fmt.Errorf("storage: ciphertext too short")
	}
	nonce := ciphertext[:gcmNonceSize]
	tag := ciphertext[gcmNonceSize : gcmNonceSize+gcmTagSize]
	body := ciphertext[gcmNonceSize+gcmTagSize:]

	block, err := aes.NewCipher(k.deriveKey(keyID))
	if err != nil {
		return nil, fmt.Errorf("storage: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("storage: new gcm: %w", err)
	}

	sealed := append(append([]byte(nil), body...), tag...)
	return aead.Open(nil, nonce, sealed, nil)
}

var _ KeyManager = (*LocalKeyManager)(nil)
