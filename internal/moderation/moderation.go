// Package moderation classifies candidate uploads/deployments into a
// closed taxonomy and produces a reputation-gated enforcement action
// (spec.md §4.3). Grounded on the teacher's layered-validation style in
// infrastructure/secrets/manager.go (ACL-then-action) and its audit-logging
// call sites, generalized to a deterministic-first, oracle-augmented
// pipeline.
package moderation

import (
	"encoding/json"
	"regexp"

	"github.com/r3e-collective/dws-controlplane/internal/crypto"
	"github.com/r3e-collective/dws-controlplane/internal/reputation"
)

// Category is one label from the closed taxonomy (spec.md §3).
type Category string

const (
	CategoryCSAM          Category = "csam"
	CategoryMalware       Category = "malware"
	CategoryCryptominer   Category = "cryptominer"
	CategoryPhishing      Category = "phishing"
	CategoryTOSViolation  Category = "tos_violation"
	CategoryDataLeak      Category = "data_leak"
	CategoryCopyright     Category = "copyright"
	CategorySuspicious    Category = "suspicious"
	CategoryClean         Category = "clean"
)

// categoryDeduction is the point deduction for each category (spec.md §4.3).
var categoryDeduction = map[Category]int{
	CategoryCSAM:         100,
	CategoryMalware:      80,
	CategoryCryptominer:  70,
	CategoryPhishing:     60,
	CategoryTOSViolation: 50,
	CategoryDataLeak:     40,
	CategoryCopyright:    30,
	CategorySuspicious:   15,
	CategoryClean:        0,
}

// Finding is one layered-check output.
type Finding struct {
	Category   Category
	Confidence float64
	Detail     string
}

// Action is the enforcement decision (spec.md §3).
type Action string

const (
	ActionAllow      Action = "allow"
	ActionReview     Action = "review"
	ActionQuarantine Action = "quarantine"
	ActionBlock      Action = "block"
	ActionReport     Action = "report"
	ActionBan        Action = "ban"
	ActionWarn       Action = "warn"
	ActionQueue      Action = "queue"
)

// ReviewPriority is the enqueue priority for items routed to human review.
type ReviewPriority string

const (
	PriorityCritical ReviewPriority = "critical"
	PriorityHigh     ReviewPriority = "high"
	PriorityNormal   ReviewPriority = "normal"
)

// Result is the full output of a moderation pass (spec.md §3
// "ModerationResult").
type Result struct {
	DeploymentID    string
	Owner           string
	Timestamp       int64
	Findings        []Finding
	OverallScore    int
	Action          Action
	AttestationHash [32]byte
	ReviewRequired  bool
	ReviewPriority  ReviewPriority
}

// Config holds the tunables named in spec.md §4.3/§9.
type Config struct {
	MalwareThreshold     float64 // default 0.7
	CryptominerThreshold float64 // default 0.8
	BlockOnSuspicious    bool
	QuarantineUnverified bool
	MaxCodeArtifactBytes int64
	OracleTimeoutMs      int
}

// DefaultConfig returns spec.md §9's literal threshold values.
func DefaultConfig() Config {
	return Config{
		MalwareThreshold:     0.7,
		CryptominerThreshold: 0.8,
		BlockOnSuspicious:    true,
		QuarantineUnverified: true,
		MaxCodeArtifactBytes: 64 << 20,
		OracleTimeoutMs:      5000,
	}
}

// ComputeOverallScore applies spec.md §4.3 step 3: 100 minus the
// confidence-weighted sum of category deductions, clamped to [0,100].
func ComputeOverallScore(findings []Finding) int {
	score := 100.0
	for _, f := range findings {
		score -= float64(categoryDeduction[f.Category]) * f.Confidence
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return int(score)
}

// DetermineAction applies spec.md §4.3 step 4's precedence, resolving the
// open question of §9 as: category-specific thresholds are checked first
// (csam short-circuit, then malware/cryptominer block), and only then do
// the overallScore bands apply.
func DetermineAction(findings []Finding, overallScore int, tier reputation.Tier, cfg Config) Action {
	for _, f := range findings {
		if f.Category == CategoryCSAM && f.Confidence > 0.5 {
			return ActionReport
		}
	}
	for _, f := range findings {
		if f.Category == CategoryMalware && f.Confidence >= cfg.MalwareThreshold {
			return ActionBlock
		}
		if f.Category == CategoryCryptominer && f.Confidence >= cfg.CryptominerThreshold {
			return ActionBlock
		}
	}

	switch {
	case overallScore < 30:
		return ActionBlock
	case overallScore < 50:
		if tier == reputation.TierVerified || tier == reputation.TierElite {
			return ActionQuarantine
		}
		return ActionBlock
	case overallScore < 70:
		if cfg.BlockOnSuspicious {
			return ActionBlock
		}
		return ActionReview
	case overallScore < 85:
		if isUntrusted(tier) && cfg.QuarantineUnverified {
			return ActionQuarantine
		}
		return ActionAllow
	default:
		return ActionAllow
	}
}

func isUntrusted(tier reputation.Tier) bool {
	return tier == reputation.TierNew || tier == reputation.TierBasic
}

// attestationPayload is the canonical JSON shape hashed into
// AttestationHash (spec.md §4.3 step 5). Field order is fixed by the
// struct tags so json.Marshal produces a stable byte sequence.
type attestationPayload struct {
	DeploymentID string     `json:"deploymentId"`
	Owner        string     `json:"owner"`
	Timestamp    int64      `json:"timestamp"`
	Action       Action     `json:"action"`
	OverallScore int        `json:"overallScore"`
	Categories   []Category `json:"categories"`
}

// ComputeAttestationHash binds the decision to (deploymentId, owner,
// timestamp, categories, action) via keccak-256 of canonical JSON.
func ComputeAttestationHash(deploymentID, owner string, timestamp int64, action Action, overallScore int, findings []Finding) ([32]byte, error) {
	categories := make([]Category, 0, len(findings))
	for _, f := range findings {
		categories = append(categories, f.Category)
	}
	payload := attestationPayload{
		DeploymentID: deploymentID, Owner: owner, Timestamp: timestamp,
		Action: action, OverallScore: overallScore, Categories: categories,
	}
	canonical, err := json.Marshal(payload)
	if err != nil {
		return [32]byte{}, err
	}
	return crypto.Keccak256(canonical), nil
}

// sensitiveEnvPattern flags env var names that look like secrets (spec.md
// §4.3 step d).
var sensitiveEnvPattern = regexp.MustCompile(`(?i)(secret|token|password|api[_-]?key|credential)`)

// secretShapePattern matches the *value* shape of common secret formats.
var secretShapePattern = regexp.MustCompile(`^(sk-|ghp_|AKIA|xox[baprs]-)[A-Za-z0-9_\-]{8,}$`)

// ScanEnv flags env vars whose name looks sensitive AND whose value also
// matches a known secret shape (spec.md §4.3 step d: "flag only when the
// value also matches").
func ScanEnv(env map[string]string) []Finding {
	var findings []Finding
	for name, value := range env {
		if sensitiveEnvPattern.MatchString(name) && secretShapePattern.MatchString(value) {
			findings = append(findings, Finding{
				Category: CategoryDataLeak, Confidence: 0.9,
				Detail: "env var " + name + " looks like a checked-in secret",
			})
		}
	}
	return findings
}
