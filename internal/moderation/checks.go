package moderation

import (
	"context"
	"fmt"
	"regexp"
)

// Candidate is the input to a moderation pass: either binary content or a
// deployment descriptor (spec.md §4.3).
type Candidate struct {
	Image      string
	CodeCID    string
	Env        map[string]string
	Size       int64
	ContentRef []byte // raw bytes when the candidate is uploaded content rather than a deployment
}

// CodeFetcher retrieves a code artifact by content id from the storage
// manager (C6), bounded by size and timeout (spec.md §4.3 step c).
type CodeFetcher interface {
	FetchCode(ctx context.Context, cid string, maxBytes int64) ([]byte, error)
}

// Blocklist is an exact-match set of disallowed image references.
type Blocklist map[string]bool

// suspiciousImageNamePattern matches image names that look evasive or
// typosquatted (spec.md §4.3 step b).
var suspiciousImageNamePattern = regexp.MustCompile(`(?i)(xmrig|minerd|cryptonight|stealer|backdoor|rootkit)`)

// malwarePattern matches byte sequences commonly found in malware/dropper
// payloads; cryptominerPattern matches coin-mining stratum URIs.
var (
	malwarePattern     = regexp.MustCompile(`(?i)(eval\(base64_decode|powershell -enc|/dev/tcp/)`)
	cryptominerPattern = regexp.MustCompile(`(?i)(stratum\+tcp://|xmrig|monero)`)
)

// checkImageBlocklist is layered check (a).
func checkImageBlocklist(image string, blocklist Blocklist) []Finding {
	if blocklist[image] {
		return []Finding{{Category: CategoryMalware, Confidence: 1.0, Detail: "image on blocklist: " + image}}
	}
	return nil
}

// checkSuspiciousImageName is layered check (b).
func checkSuspiciousImageName(image string) []Finding {
	if suspiciousImageNamePattern.MatchString(image) {
		return []Finding{{Category: CategorySuspicious, Confidence: 0.6, Detail: "suspicious image name pattern"}}
	}
	return nil
}

// checkCodeArtifact is layered check (c): fetch bounded by size/timeout,
// then pattern-match.
func checkCodeArtifact(ctx context.Context, fetcher CodeFetcher, cid string, maxBytes int64) ([]Finding, error) {
	if fetcher == nil || cid == "" {
		return nil, nil
	}
	bytes, err := fetcher.FetchCode(ctx, cid, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("moderation: fetch code artifact: %w", err)
	}
	if int64(len(bytes)) > maxBytes {
		return []Finding{{Category: CategorySuspicious, Confidence: 0.3, Detail: "artifact exceeds size bound"}}, nil
	}

	var findings []Finding
	text := string(bytes)
	if malwarePattern.MatchString(text) {
		findings = append(findings, Finding{Category: CategoryMalware, Confidence: 0.85, Detail: "malware signature matched"})
	}
	if cryptominerPattern.MatchString(text) {
		findings = append(findings, Finding{Category: CategoryCryptominer, Confidence: 0.85, Detail: "cryptominer signature matched"})
	}
	return findings, nil
}

// maxFindingConfidence returns the highest confidence across findings, 0 if
// empty — used to decide whether the oracle must be consulted (spec.md
// §4.3 step e: "or when any earlier check exceeded confidence 0.5").
func maxFindingConfidence(findings []Finding) float64 {
	max := 0.0
	for _, f := range findings {
		if f.Confidence > max {
			max = f.Confidence
		}
	}
	return max
}
