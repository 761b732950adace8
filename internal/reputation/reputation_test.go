package reputation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecomputeExactAlgorithm(t *testing.T) {
	r := &Reputation{
		AgeDays:           400,    // capped at 365
		SuccessfulDeploys: 300,    // 1500, capped at 1000
		StakedWei:         3_000_000_000_000_000_000, // 3 tokens * 100 = 300
		IdentityVerified:  true,   // 500
		VouchCount:        20,     // 1000, capped at 500
	}
	r.CumulativeSeverity = 100

	r.Recompute()

	// 365 + 1000 + 300 + 500 + 500 - 100 = 2565
	assert.Equal(t, 2565, r.Total)
	assert.Equal(t, TierVerified, r.Tier)
}

func TestRecomputeClampsAtZero(t *testing.T) {
	r := &Reputation{CumulativeSeverity: 10000}
	r.Recompute()
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, TierNew, r.Tier)
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		total int
		tier  Tier
	}{
		{0, TierNew}, {99, TierNew},
		{100, TierBasic}, {499, TierBasic},
		{500, TierTrusted}, {999, TierTrusted},
		{1000, TierVerified}, {4999, TierVerified},
		{5000, TierElite}, {50000, TierElite},
	}
	for _, c := range cases {
		assert.Equal(t, c.tier, TierForTotal(c.total), "total=%d", c.total)
	}
}

func TestIntensityForIsPureFunctionOfTier(t *testing.T) {
	assert.True(t, IntensityFor(TierNew).AIScanRequired)
	assert.Equal(t, ScanDepthFull, IntensityFor(TierNew).AIScanDepth)
	assert.False(t, IntensityFor(TierElite).AIScanRequired)
	assert.Equal(t, -1, IntensityFor(TierElite).BandwidthLimitMbps)
}
