// Package placement implements the Worker Deployment & Placement Engine
// (C7): candidate selection, code pull verification, request routing, and
// auto-scaling over nodes from internal/registry.
package placement

import (
	"time"

	"github.com/r3e-collective/dws-controlplane/internal/registry"
)

// Requirements is a workload's placement constraints (spec.md §4.6).
type Requirements struct {
	Capabilities       []registry.Capability
	MinReputation      int
	MinStake           int64
	TEERequired        bool
	TEEPlatform        string // "" = any platform accepted when TEERequired
	MaxPricePerRequest int64
}

// WorkloadStatus is the workload lifecycle state (spec.md §4.6 "State
// machine (workload)").
type WorkloadStatus string

const (
	WorkloadDeploying WorkloadStatus = "deploying"
	WorkloadActive    WorkloadStatus = "active"
	WorkloadDraining  WorkloadStatus = "draining"
	WorkloadStopped   WorkloadStatus = "stopped"
	WorkloadFailed    WorkloadStatus = "failed"
)

var workloadTransitions = map[WorkloadStatus][]WorkloadStatus{
	WorkloadDeploying: {WorkloadActive, WorkloadFailed},
	WorkloadActive:    {WorkloadDraining},
	WorkloadDraining:  {WorkloadStopped},
	WorkloadStopped:   {WorkloadDeploying}, // explicit recreate only
	WorkloadFailed:    {WorkloadDeploying}, // explicit recreate only
}

// CanTransitionWorkload reports whether from->to is a permitted workload
// state change (spec.md §4.6: terminal states are absorbing except an
// explicit recreate).
func CanTransitionWorkload(from, to WorkloadStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range workloadTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// InstanceStatus is one deployed instance's readiness (spec.md §3
// "WorkerInstance").
type InstanceStatus string

const (
	InstanceStarting InstanceStatus = "starting"
	InstanceWarm     InstanceStatus = "warm"
	InstanceBusy     InstanceStatus = "busy"
	InstanceDraining InstanceStatus = "draining"
	InstanceStopped  InstanceStatus = "stopped"
	InstanceError    InstanceStatus = "error"
)

// Instance is one running copy of a workload on a node (spec.md §4.6
// "Request routing").
type Instance struct {
	ID             string
	WorkloadID     string
	NodeID         string
	Region         string
	Status         InstanceStatus
	ActiveRequests int
	LastRequestAt  time.Time
	IdleSince      time.Time
	LatencyEWMA    float64
	Requests       int64
	Errors         int64
}

// ScalingConfig governs one workload's auto-scaler, overridable per region
// (spec.md §4.6 "Regional extension").
type ScalingConfig struct {
	MinInstances      int
	MaxInstances      int
	TargetConcurrency int
	CooldownMillis    int64
	ScaleToZero       bool
	PreferredRegions  []string
}

// DefaultScalingConfig mirrors spec.md §4.6's worked example.
func DefaultScalingConfig() ScalingConfig {
	return ScalingConfig{
		MinInstances:      1,
		MaxInstances:      4,
		TargetConcurrency: 10,
		CooldownMillis:    30_000,
		ScaleToZero:       false,
	}
}

// Workload is a deployed deployment descriptor (spec.md §4.6).
type Workload struct {
	ID            string
	Name          string
	Owner         string
	CodeCID       string
	ExpectedHash  []byte
	Entrypoint    string
	Runtime       string
	Resources     registry.ResourceSpec
	Env           map[string]string
	Secrets       []string
	Requirements  Requirements
	Scaling       ScalingConfig
	RegionScaling map[string]ScalingConfig
	Status        WorkloadStatus
	TimeoutMillis int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
