package moderation

import (
	"context"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/reputation"
)

// ReputationView is the subset of reputation.Service the pipeline needs:
// reading the current tier. Moderate does not write a scan outcome's score
// delta (ReputationDelta) back to the reputation store.
type ReputationView interface {
	GetReputation(ctx context.Context, addr string) (*reputation.Reputation, error)
}

// ReviewQueue receives items that need human review (spec.md §4.3 step 6).
type ReviewQueue interface {
	Enqueue(ctx context.Context, result Result, priority ReviewPriority) error
}

// Pipeline implements the C3 contract of spec.md §4.3.
type Pipeline struct {
	cfg         Config
	reputation  ReputationView
	fetcher     CodeFetcher
	oracle      *OracleClient
	blocklist   Blocklist
	reviewQueue ReviewQueue
	now         func() time.Time
}

// New creates a Pipeline.
func New(cfg Config, reputationView ReputationView, fetcher CodeFetcher, oracle *OracleClient, blocklist Blocklist, reviewQueue ReviewQueue) *Pipeline {
	return &Pipeline{
		cfg: cfg, reputation: reputationView, fetcher: fetcher,
		oracle: oracle, blocklist: blocklist, reviewQueue: reviewQueue,
		now: time.Now,
	}
}

// Moderate runs the full procedure of spec.md §4.3 against candidate,
// attributed to owner, identified by deploymentID.
func (p *Pipeline) Moderate(ctx context.Context, deploymentID, owner string, candidate Candidate) (Result, error) {
	tier := reputation.TierNew
	if p.reputation != nil {
		if rep, err := p.reputation.GetReputation(ctx, owner); err == nil {
			tier = rep.Tier
		}
	}

	var findings []Finding
	skipDeepScans := tier == reputation.TierVerified || tier == reputation.TierElite

	if !skipDeepScans {
		findings = append(findings, checkImageBlocklist(candidate.Image, p.blocklist)...)
		findings = append(findings, checkSuspiciousImageName(candidate.Image)...)

		artifactFindings, err := checkCodeArtifact(ctx, p.fetcher, candidate.CodeCID, p.cfg.MaxCodeArtifactBytes)
		if err == nil {
			findings = append(findings, artifactFindings...)
		}
		findings = append(findings, ScanEnv(candidate.Env)...)
	}

	needsOracle := !skipDeepScans && (isUntrusted(tier) || tier == reputation.TierBasic || maxFindingConfidence(findings) > 0.5)
	if needsOracle && p.oracle != nil {
		oracleFindings, err := p.oracle.Classify(ctx, candidate.ContentRef)
		if err == nil {
			findings = append(findings, oracleFindings...)
		}
		// On error/timeout, proceed with pattern-only evidence — never
		// upgrading the outcome (spec.md §5/§7).
	}

	overallScore := ComputeOverallScore(findings)
	action := DetermineAction(findings, overallScore, tier, p.cfg)
	timestamp := p.now().Unix()

	attestationHash, err := ComputeAttestationHash(deploymentID, owner, timestamp, action, overallScore, findings)
	if err != nil {
		return Result{}, err
	}

	result := Result{
		DeploymentID: deploymentID, Owner: owner, Timestamp: timestamp,
		Findings: findings, OverallScore: overallScore, Action: action,
		AttestationHash: attestationHash,
	}

	reviewNeeded := action == ActionReview || action == ActionReport || (action == ActionQuarantine && isUntrusted(tier))
	result.ReviewRequired = reviewNeeded
	if reviewNeeded {
		result.ReviewPriority = reviewPriorityFor(action, findings)
		if p.reviewQueue != nil {
			_ = p.reviewQueue.Enqueue(ctx, result, result.ReviewPriority)
		}
	}

	return result, nil
}

// reviewPriorityFor picks {critical, high, normal} based on the decision
// severity (spec.md §4.3 step 6).
func reviewPriorityFor(action Action, findings []Finding) ReviewPriority {
	if action == ActionReport {
		return PriorityCritical
	}
	for _, f := range findings {
		if f.Category == CategoryMalware || f.Category == CategoryCryptominer {
			return PriorityHigh
		}
	}
	if action == ActionQuarantine {
		return PriorityHigh
	}
	return PriorityNormal
}

// ReputationDelta is the score adjustment a moderation outcome applies
// (spec.md §4.3 step 6): success +10, block/report -500, review -50.
func ReputationDelta(action Action) int {
	switch action {
	case ActionBlock, ActionReport, ActionBan:
		return -500
	case ActionReview:
		return -50
	case ActionAllow:
		return 10
	default:
		return 0
	}
}
