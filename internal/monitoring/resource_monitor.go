// Package monitoring provides the resource-pressure sampler the render
// pipeline consults between attempts, and the Prometheus metrics registry
// exposed at /metrics.
package monitoring

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

// PressureLevel classifies how loaded the host is, mirroring the teacher's
// memory-pressure levels but sourced from gopsutil instead of runtime.MemStats
// so it reflects whole-machine pressure, not just this process's Go heap.
type PressureLevel int

const (
	PressureNormal PressureLevel = iota
	PressureWarning
	PressureCritical
)

func (p PressureLevel) String() string {
	switch p {
	case PressureWarning:
		return "warning"
	case PressureCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Snapshot is one sample of host resource usage.
type Snapshot struct {
	MemoryUsedPercent float64
	CPUUsedPercent    float64
	Pressure          PressureLevel
	SampledAt         time.Time
}

// ResourceMonitor samples memory and CPU pressure between attempt renders,
// grounded on the teacher's SystemResourceMonitor/MemoryMonitorService
// pressure-threshold idea, generalized from Pi-specific thermal throttling
// to a portable backoff signal usable on any host running the worker.
type ResourceMonitor struct {
	warningThreshold  float64
	criticalThreshold float64
}

// NewResourceMonitor creates a monitor with the given memory pressure
// thresholds (percent, 0-100).
func NewResourceMonitor(warningThreshold, criticalThreshold float64) *ResourceMonitor {
	if warningThreshold <= 0 {
		warningThreshold = 75.0
	}
	if criticalThreshold <= 0 {
		criticalThreshold = 90.0
	}
	return &ResourceMonitor{
		warningThreshold:  warningThreshold,
		criticalThreshold: criticalThreshold,
	}
}

// Sample takes one reading of system memory and CPU usage.
func (r *ResourceMonitor) Sample(ctx context.Context) (Snapshot, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	cpuPercents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return Snapshot{}, err
	}
	cpuUsed := 0.0
	if len(cpuPercents) > 0 {
		cpuUsed = cpuPercents[0]
	}

	snap := Snapshot{
		MemoryUsedPercent: vm.UsedPercent,
		CPUUsedPercent:    cpuUsed,
		SampledAt:         time.Now(),
	}
	switch {
	case vm.UsedPercent >= r.criticalThreshold:
		snap.Pressure = PressureCritical
	case vm.UsedPercent >= r.warningThreshold:
		snap.Pressure = PressureWarning
	default:
		snap.Pressure = PressureNormal
	}
	return snap, nil
}

// BackoffFor returns how long the render pipeline should pause before
// starting the next attempt, mirroring the teacher's thermal-throttling
// posture: a brief pause under warning pressure, a longer one under
// critical pressure, none otherwise.
func BackoffFor(pressure PressureLevel) time.Duration {
	switch pressure {
	case PressureCritical:
		return 2 * time.Second
	case PressureWarning:
		return 250 * time.Millisecond
	default:
		return 0
	}
}
