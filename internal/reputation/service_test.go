package reputation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is an in-test Store, independent from the memory package to
// keep this package free of an import cycle on its own sibling package.
type fakeStore struct {
	records map[string]*Reputation
}

func newFakeStore() *fakeStore { return &fakeStore{records: map[string]*Reputation{}} }

func (f *fakeStore) GetOrCreate(_ context.Context, address string) (*Reputation, error) {
	r, ok := f.records[address]
	if !ok {
		r = &Reputation{Address: address, Tier: TierNew}
		f.records[address] = r
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) Save(_ context.Context, r *Reputation) error {
	cp := *r
	f.records[r.Address] = &cp
	return nil
}

func TestServiceRecordViolationAppliesPenalty(t *testing.T) {
	ctx := context.Background()
	svc := New(newFakeStore(), nil)

	r, err := svc.RecordViolation(ctx, "addr-1", "abuse", SeverityHigh, "spam", "evidence")
	require.NoError(t, err)
	assert.Equal(t, 500, r.CumulativeSeverity)
	assert.Equal(t, 1, r.ViolationCount)
}

func TestServiceAddVouchRequiresTrustedVoucher(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := New(store, nil)

	_, err := svc.AddVouch(ctx, "newbie", "vouchee", "hi")
	assert.Error(t, err, "new-tier voucher must be rejected")

	trusted := &Reputation{Address: "trusted-voucher", Total: 2000, Tier: TierVerified}
	store.records["trusted-voucher"] = trusted

	r, err := svc.AddVouch(ctx, "trusted-voucher", "vouchee", "hi")
	require.NoError(t, err)
	assert.Equal(t, 1, r.VouchCount)
}

func TestServiceAddVouchRejectsSelfVouch(t *testing.T) {
	ctx := context.Background()
	svc := New(newFakeStore(), nil)

	_, err := svc.AddVouch(ctx, "addr-1", "addr-1", "hi")
	assert.Error(t, err)
}

func TestVouchAddThenRevokeLeavesTotalUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := New(store, nil)
	store.records["voucher"] = &Reputation{Address: "voucher", Total: 2000, Tier: TierVerified}

	before, err := svc.GetReputation(ctx, "vouchee")
	require.NoError(t, err)
	beforeTotal := before.Total

	_, err = svc.AddVouch(ctx, "voucher", "vouchee", "hi")
	require.NoError(t, err)

	_, err = svc.RevokeVouch(ctx, "voucher", "vouchee")
	require.NoError(t, err)

	after, err := svc.GetReputation(ctx, "vouchee")
	require.NoError(t, err)
	assert.Equal(t, beforeTotal, after.Total)
}

func TestResolveAppealApprovedReversesPenalty(t *testing.T) {
	ctx := context.Background()
	svc := New(newFakeStore(), nil)

	r, err := svc.RecordViolation(ctx, "addr-1", "abuse", SeverityCritical, "d", "e")
	require.NoError(t, err)
	require.Equal(t, 2000, r.CumulativeSeverity)

	r, err = svc.ResolveAppeal(ctx, "addr-1", 0, true)
	require.NoError(t, err)
	assert.Equal(t, 0, r.CumulativeSeverity)
	assert.True(t, r.Violations[0].Resolved)
}
