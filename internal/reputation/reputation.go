// Package reputation implements the per-address trust score assembled from
// age, successful deployments, stake, verified identity, community vouches,
// minus severity-weighted violations (spec.md §4.2). Grounded on the
// teacher's internal/app/domain package shape: plain value structs plus a
// Store contract the service layer depends on.
package reputation

import "time"

// Tier is a discrete trust label derived purely from Total via a fixed
// monotone threshold table.
type Tier string

const (
	TierNew      Tier = "new"
	TierBasic    Tier = "basic"
	TierTrusted  Tier = "trusted"
	TierVerified Tier = "verified"
	TierElite    Tier = "elite"
)

// TierForTotal maps a total score to its tier (spec.md §4.2).
func TierForTotal(total int) Tier {
	switch {
	case total < 100:
		return TierNew
	case total < 500:
		return TierBasic
	case total < 1000:
		return TierTrusted
	case total < 5000:
		return TierVerified
	default:
		return TierElite
	}
}

// Severity is a violation's weight class.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// severityWeight is the fixed per-severity penalty (spec.md §4.2).
var severityWeight = map[Severity]int{
	SeverityLow:      50,
	SeverityMedium:   200,
	SeverityHigh:     500,
	SeverityCritical: 2000,
}

// WeightFor returns the penalty points for severity, 0 for an unknown value.
func WeightFor(s Severity) int {
	return severityWeight[s]
}

// DeploymentOutcome is the result of a recorded deployment attempt.
type DeploymentOutcome string

const (
	OutcomeSuccess  DeploymentOutcome = "success"
	OutcomeFailed   DeploymentOutcome = "failed"
	OutcomeRejected DeploymentOutcome = "rejected"
)

// Violation is one recorded infraction against an address.
type Violation struct {
	Type        string
	Severity    Severity
	Description string
	Evidence    string
	RecordedAt  time.Time
	Resolved    bool // true once an appeal reverses it
}

// Vouch is a (voucher -> vouchee) endorsement.
type Vouch struct {
	Voucher string
	Vouchee string
	Message string
	Weight  int
	Revoked bool
}

// Reputation is the full per-address record (spec.md §3).
type Reputation struct {
	Address             string
	AgeDays             int
	SuccessfulDeploys   int
	StakedWei           int64
	IdentityVerified    bool
	VouchCount          int
	ViolationCount      int
	CumulativeSeverity  int
	Total               int
	Tier                Tier
	Violations          []Violation
	Vouches             []Vouch
	FirstSeenAt         time.Time
	UpdatedAt           time.Time
}

// componentCaps mirrors spec.md §4.2's per-component caps.
const (
	ageCap      = 365
	deployCap   = 1000
	stakeCap    = 2000
	identityBit = 500
	vouchCap    = 500
)

// Recompute applies the exact, reproducible score algorithm of spec.md §4.2
// and updates Total/Tier in place.
func (r *Reputation) Recompute() {
	age := r.AgeDays
	if age > ageCap {
		age = ageCap
	}
	deploy := r.SuccessfulDeploys * 5
	if deploy > deployCap {
		deploy = deployCap
	}
	stake := int(r.StakedWei/1_000_000_000_000_000_000) * 100
	if stake > stakeCap {
		stake = stakeCap
	}
	identity := 0
	if r.IdentityVerified {
		identity = identityBit
	}
	vouch := r.VouchCount * 50
	if vouch > vouchCap {
		vouch = vouchCap
	}

	total := age + deploy + stake + identity + vouch - r.CumulativeSeverity
	if total < 0 {
		total = 0
	}
	r.Total = total
	r.Tier = TierForTotal(total)
}

// ModerationIntensity is the pure function of Tier specifying how hard
// uploads/deployments from a tier are scrutinized (spec.md §4.2).
type ModerationIntensity struct {
	AIScanRequired       bool
	AIScanDepth          ScanDepth
	ManualReviewRequired bool
	DeploymentDelaySec   int
	BandwidthLimitMbps   int // -1 = unlimited
	AllowedContentTypes  []string
	BlockedFeatures      []string
}

// ScanDepth enumerates the allowed AI-scan depth variants (spec.md §9
// "re-architect as an enumerated configuration record").
type ScanDepth string

const (
	ScanDepthFull     ScanDepth = "full"
	ScanDepthStandard ScanDepth = "standard"
	ScanDepthQuick    ScanDepth = "quick"
	ScanDepthMinimal  ScanDepth = "minimal"
	ScanDepthNone     ScanDepth = "none"
)

// defaultIntensity is the built-in moderation-intensity table, replaceable
// through LoadIntensityTable; this package does not read it from a file.
var defaultIntensity = map[Tier]ModerationIntensity{
	TierNew: {
		AIScanRequired: true, AIScanDepth: ScanDepthFull, ManualReviewRequired: true,
		DeploymentDelaySec: 300, BandwidthLimitMbps: 10,
	},
	TierBasic: {
		AIScanRequired: true, AIScanDepth: ScanDepthStandard, ManualReviewRequired: false,
		DeploymentDelaySec: 60, BandwidthLimitMbps: 50,
	},
	TierTrusted: {
		AIScanRequired: true, AIScanDepth: ScanDepthQuick, ManualReviewRequired: false,
		DeploymentDelaySec: 10, BandwidthLimitMbps: 200,
	},
	TierVerified: {
		AIScanRequired: true, AIScanDepth: ScanDepthMinimal, ManualReviewRequired: false,
		DeploymentDelaySec: 0, BandwidthLimitMbps: -1,
	},
	TierElite: {
		AIScanRequired: false, AIScanDepth: ScanDepthNone, ManualReviewRequired: false,
		DeploymentDelaySec: 0, BandwidthLimitMbps: -1,
	},
}

// IntensityFor returns the moderation intensity for tier.
func IntensityFor(tier Tier) ModerationIntensity {
	return defaultIntensity[tier]
}

// LoadIntensityTable replaces the package's moderation-intensity table,
// e.g. from a YAML config file loaded at startup. Unknown tier keys are the
// caller's responsibility to validate before calling this (spec.md §9
// "unknown values reject at load time").
func LoadIntensityTable(table map[Tier]ModerationIntensity) {
	if len(table) == 0 {
		return
	}
	defaultIntensity = table
}
