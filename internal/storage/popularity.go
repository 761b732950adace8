package storage

import (
	"sync"
	"time"
)

// accessEvent is one entry in the rolling 30-day access log (spec.md §4.5
// "Download" step 4).
type accessEvent struct {
	CID    string
	Region string
	At     time.Time
}

// PopularityScore is the recomputed ranking signal for one content id
// (spec.md §4.5 "Popularity score").
type PopularityScore struct {
	CID                 string
	Access24h           int
	Access7d            int
	Access30d           int
	UniqueRegions       int
	Score               float64
	SeederCount         int
	ReplicationPriority float64
	Underseeded         bool
}

// accessLog tracks per-cid access events for the last 30 days and
// recomputes popularity on demand.
type accessLog struct {
	mu         sync.Mutex
	events     []accessEvent
	minSeeders int
	now        func() time.Time
}

func newAccessLog(minSeeders int) *accessLog {
	return &accessLog{minSeeders: minSeeders, now: time.Now}
}

// record appends an access event and prunes entries older than 30 days.
func (a *accessLog) record(cid, region string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	a.events = append(a.events, accessEvent{CID: cid, Region: region, At: now})
	a.prune(now)
}

func (a *accessLog) prune(now time.Time) {
	cutoff := now.Add(-30 * 24 * time.Hour)
	kept := a.events[:0]
	for _, e := range a.events {
		if e.At.After(cutoff) {
			kept = append(kept, e)
		}
	}
	a.events = kept
}

// score computes spec.md §4.5's popularity formula for cid:
// score = 10*A24 + 3*A7 + A30 + 5*|regions|, counting each access in
// exactly one window: A24 the last 24h, A7 older than 24h up to 7d, A30
// older than 7d up to 30d.
func (a *accessLog) score(cid string, seederCount int) PopularityScore {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	var a24, a7, a30 int
	regions := make(map[string]bool)
	for _, e := range a.events {
		if e.CID != cid {
			continue
		}
		age := now.Sub(e.At)
		if age > 30*24*time.Hour {
			continue
		}
		regions[e.Region] = true
		switch {
		case age <= 24*time.Hour:
			a24++
		case age <= 7*24*time.Hour:
			a7++
		default:
			a30++
		}
	}

	score := 10*float64(a24) + 3*float64(a7) + float64(a30) + 5*float64(len(regions))
	priority := score
	if seederCount > 0 {
		priority = score / float64(seederCount)
	}
	underseeded := seederCount < a.minSeeders && score > 10

	return PopularityScore{
		CID: cid, Access24h: a24, Access7d: a7, Access30d: a30,
		UniqueRegions: len(regions), Score: score, SeederCount: seederCount,
		ReplicationPriority: priority, Underseeded: underseeded,
	}
}

// allCIDs returns the distinct content ids with at least one recorded
// access, for a replication controller to sweep.
func (a *accessLog) allCIDs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]bool)
	var cids []string
	for _, e := range a.events {
		if !seen[e.CID] {
			seen[e.CID] = true
			cids = append(cids, e.CID)
		}
	}
	return cids
}
