package placement

import "context"

// Store persists workloads and their instances. Per-workload placement
// decisions and state transitions are serialized by implementations
// (spec.md §5 "per-workload, placement decisions and state transitions are
// serialized").
type Store interface {
	CreateWorkload(ctx context.Context, w Workload) (Workload, error)
	GetWorkload(ctx context.Context, id string) (Workload, error)
	UpdateWorkload(ctx context.Context, w Workload) (Workload, error)
	ListWorkloads(ctx context.Context) ([]Workload, error)

	AddInstance(ctx context.Context, inst Instance) (Instance, error)
	UpdateInstance(ctx context.Context, inst Instance) (Instance, error)
	RemoveInstance(ctx context.Context, workloadID, instanceID string) error
	Instances(ctx context.Context, workloadID string) ([]Instance, error)
}
