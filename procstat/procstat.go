// Package procstat samples host processes for a configured set of
// process names.
package procstat

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

// Kernel comm field is capped at 15 characters, so longer configured
// names can never match verbatim.
const maxCommLength = 15

// Stat is the per-name aggregate over all matching processes. PID is the
// last matching process observed; the counters are sums.
type Stat struct {
	Name        string
	PID         int32
	CPUPercent  float64
	MemoryBytes uint64
	ReadBytes   uint64
	WriteBytes  uint64
}

// Sampler aggregates process statistics by process name.
type Sampler struct {
	names []string
}

func New(names []string) *Sampler {
	return &Sampler{names: names}
}

// Snapshot lists all host processes once and aggregates the configured
// names. Processes that disappear mid-walk are skipped.
func (s *Sampler) Snapshot(ctx context.Context) ([]Stat, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}

	wanted := make(map[string]string, len(s.names))
	for _, name := range s.names {
		wanted[truncate(name)] = name
	}

	stats := make(map[string]*Stat, len(s.names))
	for _, p := range procs {
		comm, err := p.NameWithContext(ctx)
		if err != nil {
			continue
		}
		original, ok := wanted[comm]
		if !ok {
			continue
		}

		stat := stats[original]
		if stat == nil {
			stat = &Stat{Name: original}
			stats[original] = stat
		}
		stat.PID = p.Pid

		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			stat.CPUPercent += cpu
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			stat.MemoryBytes += mem.RSS
		}
		if io, err := p.IOCountersWithContext(ctx); err == nil && io != nil {
			stat.ReadBytes += io.ReadBytes
			stat.WriteBytes += io.WriteBytes
		}
	}

	out := make([]Stat, 0, len(stats))
	for _, name := range s.names {
		if stat, ok := stats[name]; ok {
			out = append(out, *stat)
		}
	}
	return out, nil
}

func truncate(name string) string {
	if len(name) > maxCommLength {
		return name[:maxCommLength]
	}
	return name
}
