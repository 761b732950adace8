// Package feecollector implements the Fee Collector (C8): accumulates
// (daoId, source, amount) tuples in memory and periodically batches them
// into on-chain deposits via internal/chainfacade (spec.md §4.7). Grounded
// on internal/reputation's Service shape; every (daoId,source) group is
// guarded by one collector-wide mutex rather than a per-group lock.
package feecollector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/chainfacade"
	"github.com/r3e-collective/dws-controlplane/internal/platform/logging"
)

// groupKey identifies one (daoId, source) accumulation bucket.
type groupKey struct {
	DAOID  string
	Source string
}

func (k groupKey) String() string { return k.DAOID + "/" + k.Source }

// Group is one (daoId, source) bucket's current accounting state.
type Group struct {
	DAOID     string
	Source    string
	Pending   int64
	Deposited int64
	LastTx    string
	UpdatedAt time.Time
}

// Collector accumulates fees in memory and deposits them on a tick. The
// accounting here is an observation, not a source of truth — the chain is
// (spec.md §4.7 "Crash-safety"). A process death between the chain tx and
// the local pending->deposited move is an accepted double-deposit risk.
type Collector struct {
	mu       sync.Mutex
	groups   map[groupKey]*Group
	registry chainfacade.Registry
	log      *logging.Logger
	now      func() time.Time

	threshold int64
}

// New creates a Collector. threshold is the minimum pending total per
// group before a tick will deposit it (spec.md §4.7 DEPOSIT_THRESHOLD).
// log defaults to a standalone "feecollector" logger when nil.
func New(registry chainfacade.Registry, threshold int64, log *logging.Logger) *Collector {
	if log == nil {
		log = logging.New("feecollector", "info", "json")
	}
	return &Collector{
		groups:    make(map[groupKey]*Group),
		registry:  registry,
		log:       log,
		now:       time.Now,
		threshold: threshold,
	}
}

// Accumulate records a new fee for (daoID, source). amount must be positive.
func (c *Collector) Accumulate(daoID, source string, amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("feecollector: amount must be positive, got %d", amount)
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := groupKey{DAOID: daoID, Source: source}
	g, ok := c.groups[key]
	if !ok {
		g = &Group{DAOID: daoID, Source: source}
		c.groups[key] = g
	}
	g.Pending += amount
	g.UpdatedAt = c.now()
	return nil
}

// Snapshot returns a point-in-time copy of every group's accounting state.
func (c *Collector) Snapshot() []Group {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Group, 0, len(c.groups))
	for _, g := range c.groups {
		out = append(out, *g)
	}
	return out
}

// Tick groups pending fees and deposits every group whose pending total
// meets the threshold (spec.md §4.7). Failures are logged and the fees
// remain pending for the next tick.
func (c *Collector) Tick(ctx context.Context) {
	for _, key := range c.dueGroups() {
		c.depositGroup(ctx, key)
	}
}

func (c *Collector) dueGroups() []groupKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	due := make([]groupKey, 0)
	for key, g := range c.groups {
		if g.Pending >= c.threshold {
			due = append(due, key)
		}
	}
	return due
}

func (c *Collector) depositGroup(ctx context.Context, key groupKey) {
	c.mu.Lock()
	g, ok := c.groups[key]
	if !ok || g.Pending <= 0 {
		c.mu.Unlock()
		return
	}
	amount := g.Pending
	c.mu.Unlock()

	txID, err := c.registry.DepositFees(ctx, key.DAOID, key.Source, amount)
	if err != nil {
		c.log.WithError(err).Warnf("deposit failed for %s, leaving %d pending", key, amount)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok = c.groups[key]
	if !ok {
		return
	}
	// Move only the amount we actually deposited: new fees accumulated
	// between the chain call and this update remain pending.
	g.Pending -= amount
	g.Deposited += amount
	g.LastTx = txID
	g.UpdatedAt = c.now()
}
