package reputation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/platform/apierr"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
)

// Store is the persistence contract for reputation records, grounded on
// internal/app/storage/interfaces.go's per-domain store interfaces.
type Store interface {
	GetOrCreate(ctx context.Context, address string) (*Reputation, error)
	Save(ctx context.Context, r *Reputation) error
}

// Service implements the C2 contract of spec.md §4.2. Every mutating method
// recomputes Total/Tier before persisting, and per-address updates are
// serialized via a per-address lock (spec.md §5).
type Service struct {
	store Store
	log   *logging.Logger

	addrLocks sync.Map // address -> *sync.Mutex
}

// New creates a Service. log defaults to a standalone "reputation" logger
// when nil, matching the teacher's services/*/service.go New() convention.
func New(store Store, log *logging.Logger) *Service {
	if log == nil {
		log = logging.New("reputation", "info", "json")
	}
	return &Service{store: store, log: log}
}

func (s *Service) lockFor(address string) *sync.Mutex {
	v, _ := s.addrLocks.LoadOrStore(address, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// GetReputation returns addr's record, creating a zeroed one on first sight.
func (s *Service) GetReputation(ctx context.Context, addr string) (*Reputation, error) {
	return s.store.GetOrCreate(ctx, addr)
}

// RecordDeployment logs a deployment outcome; only success recomputes the
// successful-deployment counter (spec.md §4.2).
func (s *Service) RecordDeployment(ctx context.Context, addr, depID string, outcome DeploymentOutcome) (*Reputation, error) {
	lock := s.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, addr)
	if err != nil {
		return nil, err
	}
	if outcome == OutcomeSuccess {
		r.SuccessfulDeploys++
		r.Recompute()
	}
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordViolation appends a violation, applies its severity penalty, and
// recomputes the score.
func (s *Service) RecordViolation(ctx context.Context, addr, violationType string, severity Severity, description, evidence string) (*Reputation, error) {
	lock := s.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.Violations = append(r.Violations, Violation{
		Type: violationType, Severity: severity, Description: description,
		Evidence: evidence, RecordedAt: time.Now(),
	})
	r.ViolationCount++
	r.CumulativeSeverity += WeightFor(severity)
	r.Recompute()
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// AddVouch endorses vouchee on behalf of voucher. Requires voucher tier ≥
// trusted, disallows self-vouch, and is idempotent per (voucher, vouchee)
// pair while unrevoked (spec.md §4.2).
func (s *Service) AddVouch(ctx context.Context, voucher, vouchee, message string) (*Reputation, error) {
	if voucher == vouchee {
		return nil, apierr.InvalidInput("voucheeAddr", "cannot vouch for yourself")
	}

	voucherRep, err := s.store.GetOrCreate(ctx, voucher)
	if err != nil {
		return nil, err
	}
	if tierRank(voucherRep.Tier) < tierRank(TierTrusted) {
		return nil, apierr.Unauthorizedf("voucher %q must be at least trusted tier to vouch", voucher)
	}

	lock := s.lockFor(vouchee)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, vouchee)
	if err != nil {
		return nil, err
	}
	for i, v := range r.Vouches {
		if v.Voucher == voucher && !v.Revoked {
			r.Vouches[i].Message = message
			return r, nil
		}
	}

	weight := voucherRep.Total/1000 + 1
	r.Vouches = append(r.Vouches, Vouch{Voucher: voucher, Vouchee: vouchee, Message: message, Weight: weight})
	r.VouchCount++
	r.Recompute()
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// RevokeVouch reverses a prior AddVouch, leaving the vouchee's total
// unchanged modulo intervening events (spec.md §8 round-trip property).
func (s *Service) RevokeVouch(ctx context.Context, voucher, vouchee string) (*Reputation, error) {
	lock := s.lockFor(vouchee)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, vouchee)
	if err != nil {
		return nil, err
	}
	found := false
	for i, v := range r.Vouches {
		if v.Voucher == voucher && !v.Revoked {
			r.Vouches[i].Revoked = true
			found = true
			break
		}
	}
	if !found {
		return nil, apierr.NotFoundf("vouch", fmt.Sprintf("%s->%s", voucher, vouchee))
	}
	if r.VouchCount > 0 {
		r.VouchCount--
	}
	r.Recompute()
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateStake sets addr's staked amount and recomputes.
func (s *Service) UpdateStake(ctx context.Context, addr string, amountWei int64) (*Reputation, error) {
	lock := s.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.StakedWei = amountWei
	r.Recompute()
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// VerifyIdentity marks addr's identity-verified bit and recomputes.
func (s *Service) VerifyIdentity(ctx context.Context, addr string) (*Reputation, error) {
	lock := s.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, addr)
	if err != nil {
		return nil, err
	}
	r.IdentityVerified = true
	r.Recompute()
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// ResolveAppeal settles an appeal against the violation at violationIndex:
// approval marks it resolved and removes its severity weight; an already
// resolved violation is returned unchanged.
func (s *Service) ResolveAppeal(ctx context.Context, addr string, violationIndex int, approved bool) (*Reputation, error) {
	lock := s.lockFor(addr)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.store.GetOrCreate(ctx, addr)
	if err != nil {
		return nil, err
	}
	if violationIndex < 0 || violationIndex >= len(r.Violations) {
		return nil, apierr.InvalidInput("violationIndex", "out of range")
	}
	v := r.Violations[violationIndex]
	if v.Resolved {
		return r, nil
	}
	if approved {
		r.Violations[violationIndex].Resolved = true
		if r.ViolationCount > 0 {
			r.ViolationCount--
		}
		r.CumulativeSeverity -= WeightFor(v.Severity)
		if r.CumulativeSeverity < 0 {
			r.CumulativeSeverity = 0
		}
		r.Recompute()
	}
	r.UpdatedAt = time.Now()
	if err := s.store.Save(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

var tierOrder = map[Tier]int{
	TierNew: 0, TierBasic: 1, TierTrusted: 2, TierVerified: 3, TierElite: 4,
}

func tierRank(t Tier) int { return tierOrder[t] }
