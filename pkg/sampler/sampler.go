package sampler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/psantana5/mlmon/pkg/models"
)

// ErrSamplingUnavailable indicates the OS counters could not be read.
// Transient: callers retry on the next scheduled tick instead of aborting.
var ErrSamplingUnavailable = errors.New("sampling unavailable")

// Sampler reads host resource counters on demand. Sample must be
// side-effect-free beyond reading host state and complete well under the
// broadcast interval.
type Sampler interface {
	Sample(ctx context.Context) (models.MetricSnapshot, error)
}

// Func adapts a plain function to the Sampler interface
type Func func(ctx context.Context) (models.MetricSnapshot, error)

// Sample calls f
func (f Func) Sample(ctx context.Context) (models.MetricSnapshot, error) {
	return f(ctx)
}

// HostSampler reads host metrics via gopsutil
type HostSampler struct {
	diskPath string
}

// NewHostSampler creates a sampler reading the root filesystem for disk usage
func NewHostSampler() *HostSampler {
	return &HostSampler{diskPath: "/"}
}

// NewHostSamplerForPath creates a sampler reading disk usage for path
func NewHostSamplerForPath(path string) *HostSampler {
	return &HostSampler{diskPath: path}
}

// Sample captures one consistent snapshot of host metrics. All fields are
// read in a single call so consumers never see a partial snapshot.
func (s *HostSampler) Sample(ctx context.Context) (models.MetricSnapshot, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil || len(cpuPercent) == 0 {
		return models.MetricSnapshot{}, fmt.Errorf("%w: cpu: %v", ErrSamplingUnavailable, err)
	}

	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.MetricSnapshot{}, fmt.Errorf("%w: memory: %v", ErrSamplingUnavailable, err)
	}

	usage, err := disk.UsageWithContext(ctx, s.diskPath)
	if err != nil {
		return models.MetricSnapshot{}, fmt.Errorf("%w: disk: %v", ErrSamplingUnavailable, err)
	}

	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return models.MetricSnapshot{}, fmt.Errorf("%w: processes: %v", ErrSamplingUnavailable, err)
	}

	return models.MetricSnapshot{
		Timestamp:     time.Now(),
		CPUPercent:    clampPercent(cpuPercent[0]),
		MemoryPercent: clampPercent(vmem.UsedPercent),
		MemoryUsedMB:  float64(vmem.Used) / 1024 / 1024,
		DiskPercent:   clampPercent(usage.UsedPercent),
		ProcessCount:  len(pids),
	}, nil
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
