package secretstore

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
)

// Service implements the C4 contract of spec.md §4.4: create/get/update/
// rotate/delete over Shamir-split, envelope-sealed secrets, with a
// hash-chained audit log. Per-secret updates are serialized via a
// per-(daoId,name) lock (spec.md §5).
type Service struct {
	repo       Repository
	masterKey  []byte // root key; per-node share keys are derived from it
	signingKey []byte // HMAC key for the audit hash chain
	log        *logging.Logger
	now        func() time.Time

	locks sync.Map // "daoId/name" -> *sync.Mutex
}

// New creates a Service. masterKey must be 32 bytes (AES-256); signingKey
// may be any length HMAC-SHA256 accepts.
func New(repo Repository, masterKey, signingKey []byte, log *logging.Logger) (*Service, error) {
	if len(masterKey) != 32 {
		return nil, fmt.Errorf("secretstore: master key must be 32 bytes, got %d", len(masterKey))
	}
	if len(signingKey) == 0 {
		return nil, fmt.Errorf("secretstore: signing key must not be empty")
	}
	if log == nil {
		log = logging.New("secretstore", "info", "json")
	}
	return &Service{repo: repo, masterKey: masterKey, signingKey: signingKey, log: log, now: time.Now}, nil
}

func (s *Service) lockFor(daoID, name string) *sync.Mutex {
	v, _ := s.locks.LoadOrStore(daoID+"/"+name, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// Create splits plaintext into k-of-n shares across nodeIDs and persists
// the result (spec.md §4.4). name must match ^[A-Z][A-Z0-9_]*$, plaintext
// must be <= 64KiB, and 2 <= k <= n <= 255.
func (s *Service) Create(ctx context.Context, daoID, name string, plaintext []byte, k int, nodeIDs []string, actor string) (*Secret, error) {
	if !ValidateName(name) {
		return nil, apierr.InvalidInput("name", "must match ^[A-Z][A-Z0-9_]*$")
	}
	if len(plaintext) == 0 || len(plaintext) > MaxSecretBytes {
		return nil, apierr.InvalidInput("plaintext", fmt.Sprintf("must be 1..%d bytes", MaxSecretBytes))
	}
	n := len(nodeIDs)
	if k < 2 || n < k || n > MaxShareCount {
		return nil, apierr.InvalidInput("k", fmt.Sprintf("require 2 <= k <= n <= %d, got k=%d n=%d", MaxShareCount, k, n))
	}

	lock := s.lockFor(daoID, name)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := s.repo.Get(ctx, daoID, name); err == nil && existing != nil {
		return nil, apierr.Conflictf("secret %s/%s already exists", daoID, name)
	}

	secret, err := s.buildSecret(daoID, name, plaintext, k, nodeIDs, 1)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, secret); err != nil {
		return nil, apierr.Wrap(apierr.Fatal, "persist secret", err)
	}
	if err := s.recordAudit(ctx, secret.ID, OpCreate, actor); err != nil {
		s.log.WithError(err).Warn("secretstore: audit append failed after create")
	}
	return secret, nil
}

// buildSecret performs the split-and-seal for a (re)creation at the given
// version, reusing the same nodeIDs layout for both Create and Rotate.
func (s *Service) buildSecret(daoID, name string, plaintext []byte, k int, nodeIDs []string, version int) (*Secret, error) {
	n := len(nodeIDs)
	rawShares, err := shamirSplit(plaintext, k, n)
	if err != nil {
		return nil, apierr.Wrap(apierr.Fatal, "split secret", err)
	}

	shares := make([]Share, n)
	for i, nodeID := range nodeIDs {
		x := byte(i + 1)
		sealed, err := sealShare(s.masterKey, nodeID, rawShares[i])
		if err != nil {
			return nil, apierr.Wrap(apierr.Fatal, "seal share", err)
		}
		hash := shareHash(rawShares[i])
		shares[i] = Share{
			NodeID:    nodeID,
			X:         x,
			Sealed:    sealed,
			ShareHash: fmt.Sprintf("%x", hash),
			Version:   version,
		}
	}

	now := s.now()
	id, err := newSecretID()
	if err != nil {
		return nil, err
	}
	return &Secret{
		ID: id, DAOID: daoID, Name: name, K: k, N: n,
		Version: version, Shares: shares, CreatedAt: now, UpdatedAt: now,
	}, nil
}

// Get reconstructs the plaintext from k-of-n shares (spec.md §4.4). Shares
// whose ShareHash no longer matches their decrypted content are skipped;
// reconstruction fails with apierr.Integrity-tagged INSUFFICIENT_SHARES
// when fewer than k valid shares remain.
func (s *Service) Get(ctx context.Context, daoID, name, actor string) ([]byte, error) {
	secret, err := s.repo.Get(ctx, daoID, name)
	if err != nil {
		return nil, apierr.NotFoundf("secret %s/%s: %v", daoID, name, err)
	}

	valid := make([]shamirShare, 0, len(secret.Shares))
	for _, sh := range secret.Shares {
		plain, err := openShare(s.masterKey, sh.NodeID, sh.Sealed)
		if err != nil {
			continue
		}
		if fmt.Sprintf("%x", shareHash(plain)) != sh.ShareHash {
			continue
		}
		valid = append(valid, shamirShare{X: sh.X, Y: plain})
		if len(valid) >= secret.K {
			break
		}
	}
	if len(valid) < secret.K {
		return nil, apierr.New(apierr.Integrity, fmt.Sprintf("only %d of %d required shares were valid", len(valid), secret.K)).
			WithTag("INSUFFICIENT_SHARES")
	}

	plaintext, err := shamirCombine(valid)
	if err != nil {
		return nil, apierr.Wrap(apierr.Integrity, "reconstruct secret", err)
	}

	if err := s.recordAudit(ctx, secret.ID, OpGet, actor); err != nil {
		s.log.WithError(err).Warn("secretstore: audit append failed after get")
	}
	return plaintext, nil
}

// Update replaces the plaintext value in place, keeping the same node
// layout and threshold but bumping the version (spec.md §4.4).
func (s *Service) Update(ctx context.Context, daoID, name string, plaintext []byte, actor string) (*Secret, error) {
	if len(plaintext) == 0 || len(plaintext) > MaxSecretBytes {
		return nil, apierr.InvalidInput("plaintext", fmt.Sprintf("must be 1..%d bytes", MaxSecretBytes))
	}

	lock := s.lockFor(daoID, name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.Get(ctx, daoID, name)
	if err != nil {
		return nil, apierr.NotFoundf("secret %s/%s: %v", daoID, name, err)
	}

	nodeIDs := make([]string, len(existing.Shares))
	for i, sh := range existing.Shares {
		nodeIDs[i] = sh.NodeID
	}

	updated, err := s.buildSecret(daoID, name, plaintext, existing.K, nodeIDs, existing.Version+1)
	if err != nil {
		return nil, err
	}
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, apierr.Wrap(apierr.Fatal, "persist updated secret", err)
	}
	if err := s.recordAudit(ctx, updated.ID, OpUpdate, actor); err != nil {
		s.log.WithError(err).Warn("secretstore: audit append failed after update")
	}
	return updated, nil
}

// Rotate re-splits the same plaintext under a fresh polynomial (new
// randomness per byte), invalidating every previously issued share without
// changing the value a reader ultimately gets back (spec.md §4.4).
func (s *Service) Rotate(ctx context.Context, daoID, name, actor string) (*Secret, error) {
	lock := s.lockFor(daoID, name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.Get(ctx, daoID, name)
	if err != nil {
		return nil, apierr.NotFoundf("secret %s/%s: %v", daoID, name, err)
	}

	valid := make([]shamirShare, 0, len(existing.Shares))
	for _, sh := range existing.Shares {
		plain, err := openShare(s.masterKey, sh.NodeID, sh.Sealed)
		if err != nil {
			continue
		}
		if fmt.Sprintf("%x", shareHash(plain)) != sh.ShareHash {
			continue
		}
		valid = append(valid, shamirShare{X: sh.X, Y: plain})
		if len(valid) >= existing.K {
			break
		}
	}
	if len(valid) < existing.K {
		return nil, apierr.New(apierr.Integrity, fmt.Sprintf("only %d of %d required shares were valid", len(valid), existing.K)).
			WithTag("INSUFFICIENT_SHARES")
	}
	plaintext, err := shamirCombine(valid)
	if err != nil {
		return nil, apierr.Wrap(apierr.Integrity, "reconstruct secret for rotation", err)
	}

	nodeIDs := make([]string, len(existing.Shares))
	for i, sh := range existing.Shares {
		nodeIDs[i] = sh.NodeID
	}

	rotated, err := s.buildSecret(daoID, name, plaintext, existing.K, nodeIDs, existing.Version+1)
	if err != nil {
		return nil, err
	}
	rotated.ID = existing.ID
	rotated.CreatedAt = existing.CreatedAt

	if err := s.repo.Update(ctx, rotated); err != nil {
		return nil, apierr.Wrap(apierr.Fatal, "persist rotated secret", err)
	}
	if err := s.recordAudit(ctx, rotated.ID, OpRotate, actor); err != nil {
		s.log.WithError(err).Warn("secretstore: audit append failed after rotate")
	}
	return rotated, nil
}

// Delete removes a secret and its shares (spec.md §4.4). The audit event
// is recorded against the secret's id before the row disappears.
func (s *Service) Delete(ctx context.Context, daoID, name, actor string) error {
	lock := s.lockFor(daoID, name)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.repo.Get(ctx, daoID, name)
	if err != nil {
		return apierr.NotFoundf("secret %s/%s: %v", daoID, name, err)
	}
	if err := s.recordAudit(ctx, existing.ID, OpDelete, actor); err != nil {
		s.log.WithError(err).Warn("secretstore: audit append failed before delete")
	}
	return s.repo.Delete(ctx, daoID, name)
}

// recordAudit appends the next link in secretID's hash chain.
func (s *Service) recordAudit(ctx context.Context, secretID, operation, actor string) error {
	prev, err := s.repo.LastAudit(ctx, secretID)
	if err != nil {
		prev = AuditEvent{}
	}
	event, err := appendAuditEvent(s.signingKey, prev, secretID, operation, actor, s.now())
	if err != nil {
		return err
	}
	return s.repo.AppendAudit(ctx, event)
}

func newSecretID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", apierr.Wrap(apierr.Fatal, "generate secret id", err)
	}
	return fmt.Sprintf("sec_%x", buf), nil
}
