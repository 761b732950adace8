package registry

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SelfReportResources samples the local host's CPU core count, available
// memory, and free disk space on the configured path, for a node operator
// agent to populate ResourceSpec at registration time rather than hand-enter
// static numbers (spec.md §3 "Node.resources" is declared hardware, but
// nothing stops an operator from under- or over-declaring it; self-reporting
// makes the honest path also the easy path).
func SelfReportResources(diskPath string) (ResourceSpec, error) {
	cores, err := cpu.Counts(true)
	if err != nil {
		return ResourceSpec{}, err
	}
	vmem, err := mem.VirtualMemory()
	if err != nil {
		return ResourceSpec{}, err
	}
	usage, err := disk.Usage(diskPath)
	if err != nil {
		return ResourceSpec{}, err
	}
	return ResourceSpec{
		CPUCores:  cores,
		MemoryMB:  int64(vmem.Available / (1024 * 1024)),
		StorageGB: int64(usage.Free / (1024 * 1024 * 1024)),
	}, nil
}
