package pool

import (
	"log/slog"
	"os"

	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemoryReader reports currently available memory in megabytes. Injected so
// tests can drive sizing deterministically.
type MemoryReader func() int

// SystemMemoryReader reads available memory from the host. When limitMB is
// positive the process runs under an external memory cap (container or PaaS
// dyno) and host-wide numbers lie, so availability is computed as the cap
// minus the resident set of this process and its browser children.
func SystemMemoryReader(limitMB int) MemoryReader {
	if limitMB > 0 {
		return func() int { return limitAwareAvailableMB(limitMB) }
	}
	return func() int {
		vm, err := mem.VirtualMemory()
		if err != nil {
			slog.Warn("reading system memory failed, assuming low memory", "error", err)
			return 0
		}
		return int(vm.Available / (1024 * 1024))
	}
}

func limitAwareAvailableMB(limitMB int) int {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("inspecting own process failed, assuming low memory", "error", err)
		return 0
	}
	used := rssMB(proc)
	children, err := proc.Children()
	if err == nil {
		for _, child := range children {
			used += rssMB(child)
		}
	}
	avail := limitMB - used
	if avail < 0 {
		avail = 0
	}
	return avail
}

func rssMB(p *process.Process) int {
	info, err := p.MemoryInfo()
	if err != nil || info == nil {
		return 0
	}
	return int(info.RSS / (1024 * 1024))
}
