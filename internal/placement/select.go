package placement

import (
	"context"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/registry"
)

// defaultLivenessWindow mirrors spec.md §5's 60s heartbeat default: a node
// that missed two intervals is no longer routable.
const defaultLivenessWindow = 2 * time.Minute

// SelectCandidates queries store for up to limit nodes satisfying req,
// ordered by composite score (reputation desc, then price asc), per
// spec.md §4.6 "Placement selection".
func SelectCandidates(ctx context.Context, store registry.Store, req Requirements, limit int) ([]registry.Node, error) {
	now := time.Now()
	filter := func(n registry.Node) bool {
		if !n.Routable(now, defaultLivenessWindow) {
			return false
		}
		for _, cap := range req.Capabilities {
			if !n.HasCapability(cap) {
				return false
			}
		}
		if n.Reputation < req.MinReputation {
			return false
		}
		if n.Stake < req.MinStake {
			return false
		}
		if req.TEERequired {
			if !n.Attestation.Valid || n.Attestation.Expired(now) {
				return false
			}
			if req.TEEPlatform != "" && n.Attestation.Platform != req.TEEPlatform {
				return false
			}
		}
		if req.MaxPricePerRequest > 0 && n.Pricing.PerRequestWei > req.MaxPricePerRequest {
			return false
		}
		return true
	}

	less := func(a, b registry.Node) bool {
		if a.Reputation != b.Reputation {
			return a.Reputation > b.Reputation
		}
		return a.Pricing.PerRequestWei < b.Pricing.PerRequestWei
	}

	return store.Candidates(ctx, filter, less, limit)
}

// PickDistinct selects the first minInstances distinct nodes from an
// already-ordered candidate list (spec.md §4.6 "Placement picks the first
// min-instances distinct candidates").
func PickDistinct(candidates []registry.Node, minInstances int) []registry.Node {
	if minInstances <= 0 || minInstances >= len(candidates) {
		return candidates
	}
	return candidates[:minInstances]
}
