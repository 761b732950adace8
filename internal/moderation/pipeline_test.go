package moderation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-collective/dws-controlplane/internal/reputation"
)

type fakeReputationView struct {
	tier reputation.Tier
}

func (f fakeReputationView) GetReputation(_ context.Context, _ string) (*reputation.Reputation, error) {
	return &reputation.Reputation{Tier: f.tier}, nil
}

type noopReviewQueue struct{ enqueued []Result }

func (q *noopReviewQueue) Enqueue(_ context.Context, r Result, _ ReviewPriority) error {
	q.enqueued = append(q.enqueued, r)
	return nil
}

// CSAM short-circuit: spec.md §8 scenario 1. Drives the full Moderate path
// (tier lookup, oracle classification, scoring, review enqueue) rather than
// calling DetermineAction directly, so the ReviewRequired/priority wiring
// around the oracle's csam finding is actually exercised.
func TestPipelineCSAMShortCircuit(t *testing.T) {
	oracleServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"classifications":[{"category":"csam","confidence":0.9,"detail":"matched hash set"}]}`))
	}))
	defer oracleServer.Close()

	queue := &noopReviewQueue{}
	oracle := NewOracleClient(oracleServer.URL, nil, 0)
	p := New(DefaultConfig(), fakeReputationView{tier: reputation.TierBasic}, nil, oracle, nil, queue)

	candidate := Candidate{Image: "harmless:latest", ContentRef: []byte("payload")}
	result, err := p.Moderate(context.Background(), "dep-1", "owner-1", candidate)
	require.NoError(t, err)

	assert.Equal(t, ActionReport, result.Action)
	assert.LessOrEqual(t, result.OverallScore, 10)
	assert.Equal(t, -500, ReputationDelta(result.Action))
	assert.True(t, result.ReviewRequired)
	assert.Equal(t, PriorityCritical, result.ReviewPriority)
	assert.NotEqual(t, [32]byte{}, result.AttestationHash)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, PriorityCritical, queue.enqueued[0].ReviewPriority)
}

// Tier-gated scan skip: spec.md §8 scenario 2.
func TestPipelineEliteTierSkipsDeepScans(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), fakeReputationView{tier: reputation.TierElite}, nil, nil, Blocklist{"evil:latest": true}, nil)

	result, err := p.Moderate(ctx, "dep-1", "owner-1", Candidate{Image: "nginx:1.25"})
	require.NoError(t, err)
	assert.Equal(t, ActionAllow, result.Action)
	assert.Empty(t, result.Findings)
}

func TestPipelineBlocklistedImageIsBlocked(t *testing.T) {
	ctx := context.Background()
	p := New(DefaultConfig(), fakeReputationView{tier: reputation.TierNew}, nil, nil, Blocklist{"evil:latest": true}, &noopReviewQueue{})

	result, err := p.Moderate(ctx, "dep-2", "owner-2", Candidate{Image: "evil:latest"})
	require.NoError(t, err)
	assert.Equal(t, ActionBlock, result.Action)
}

func TestDetermineActionPrecedenceCategoryBeforeScoreBands(t *testing.T) {
	cfg := DefaultConfig()
	findings := []Finding{{Category: CategoryMalware, Confidence: 0.9}}
	score := ComputeOverallScore(findings) // 100 - 80*0.9 = 28, already < 30
	action := DetermineAction(findings, score, reputation.TierVerified, cfg)
	assert.Equal(t, ActionBlock, action, "malware threshold triggers block regardless of tier")
}

func TestScanEnvRequiresBothNameAndValueShape(t *testing.T) {
	findings := ScanEnv(map[string]string{
		"API_KEY":      "sk-live-abcdef1234567890",
		"SAFE_VARNAME": "sk-live-abcdef1234567890",
		"API_TOKEN":    "not-a-secret-shape",
	})
	require.Len(t, findings, 1)
	assert.Equal(t, CategoryDataLeak, findings[0].Category)
}

func TestComputeAttestationHashIsDeterministic(t *testing.T) {
	findings := []Finding{{Category: CategoryClean, Confidence: 0}}
	h1, err := ComputeAttestationHash("dep", "owner", 100, ActionAllow, 100, findings)
	require.NoError(t, err)
	h2, err := ComputeAttestationHash("dep", "owner", 100, ActionAllow, 100, findings)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
