// Package registry is the node registry shared by every other component
// (spec.md §3 "Node"): an address-indexed directory of operator nodes,
// their declared capabilities, stake, reputation, TEE platform and
// liveness. Grounded on the teacher's per-resource locking pattern in
// internal/app/core/service and its arena-of-entities storage shape in
// internal/app/storage/memory.go.
package registry

import (
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/crypto"
)

// Status is a Node's lifecycle state. Transitions are monotone except the
// active/draining toggle (spec.md §3 invariant).
type Status string

const (
	StatusRegistering Status = "registering"
	StatusActive      Status = "active"
	StatusDraining    Status = "draining"
	StatusStopped     Status = "stopped"
	StatusSlashed     Status = "slashed"
)

// validTransitions enumerates the monotone status graph. active<->draining
// is the one bidirectional edge.
var validTransitions = map[Status][]Status{
	StatusRegistering: {StatusActive, StatusStopped, StatusSlashed},
	StatusActive:      {StatusDraining, StatusStopped, StatusSlashed},
	StatusDraining:    {StatusActive, StatusStopped, StatusSlashed},
	StatusStopped:     {},
	StatusSlashed:     {},
}

// CanTransition reports whether moving from 'from' to 'to' is permitted.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Capability is a declared node ability.
type Capability string

const (
	CapabilityCompute   Capability = "compute"
	CapabilityStorage   Capability = "storage"
	CapabilityTEE       Capability = "tee"
	CapabilitySqlitBP   Capability = "sqlit-bp"
	CapabilitySqlitMine Capability = "sqlit-miner"
)

// ResourceSpec is a node's declared hardware.
type ResourceSpec struct {
	CPUCores     int
	MemoryMB     int64
	StorageGB    int64
	BandwidthMbp int64
	TEEPlatform  string // "", "sgx", "tdx", "sev-snp"
}

// Pricing is all non-negative integers in the smallest currency unit
// (spec.md §3).
type Pricing struct {
	PerHourWei    int64
	PerGBWei      int64
	PerRequestWei int64
}

// Attestation is the most recent attestation blob recorded for a node.
type Attestation struct {
	Blob            []byte
	MeasurementHash []byte
	Platform        string
	Valid           bool
	VerifiedAt      time.Time
	ExpiresAt       time.Time
}

// Expired reports whether the attestation is no longer current.
func (a Attestation) Expired(now time.Time) bool {
	if a.ExpiresAt.IsZero() {
		return true
	}
	return now.After(a.ExpiresAt)
}

// Node is one operator-run node (spec.md §3).
type Node struct {
	ID              string
	OperatorAddress string
	Endpoint        string
	Capabilities    map[Capability]bool
	Resources       ResourceSpec
	Pricing         Pricing
	Stake           int64
	Reputation      int
	Status          Status
	LastHeartbeat   time.Time
	Attestation     Attestation
}

// DisplayAddress renders an operator's script hash as the same
// Base58Check-encoded address format the chain facade's node-registration
// calls use, for operator-facing listings (spec.md §3 "Node").
func DisplayAddress(scriptHash []byte) string {
	return crypto.ScriptHashToAddress(scriptHash)
}

// HasCapability reports whether the node declares cap.
func (n Node) HasCapability(cap Capability) bool {
	return n.Capabilities[cap]
}

// Routable reports whether the node may currently receive traffic: active
// status, heartbeat within livenessWindow, and (if it claims tee) a valid,
// unexpired attestation (spec.md §3 invariant).
func (n Node) Routable(now time.Time, livenessWindow time.Duration) bool {
	if n.Status != StatusActive {
		return false
	}
	if now.Sub(n.LastHeartbeat) > livenessWindow {
		return false
	}
	if n.HasCapability(CapabilityTEE) {
		if !n.Attestation.Valid || n.Attestation.Expired(now) {
			return false
		}
	}
	return true
}

// clone returns a deep-enough copy of n so callers can't mutate registry
// state through a returned value (mirrors the teacher's cloneAccount
// defensive-copy convention in internal/app/storage/memory.go).
func clone(n Node) Node {
	capsCopy := make(map[Capability]bool, len(n.Capabilities))
	for k, v := range n.Capabilities {
		capsCopy[k] = v
	}
	n.Capabilities = capsCopy
	return n
}
