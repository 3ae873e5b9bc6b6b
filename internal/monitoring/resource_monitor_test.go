package monitoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewResourceMonitorDefaults(t *testing.T) {
	m := NewResourceMonitor(0, 0)
	assert.Equal(t, 75.0, m.warningThreshold)
	assert.Equal(t, 90.0, m.criticalThreshold)
}

func TestBackoffFor(t *testing.T) {
	assert.Equal(t, time.Duration(0), BackoffFor(PressureNormal))
	assert.Equal(t, 250*time.Millisecond, BackoffFor(PressureWarning))
	assert.Equal(t, 2*time.Second, BackoffFor(PressureCritical))
}

func TestPressureLevelString(t *testing.T) {
	assert.Equal(t, "normal", PressureNormal.String())
	assert.Equal(t, "warning", PressureWarning.String())
	assert.Equal(t, "critical", PressureCritical.String())
}

func TestSampleReturnsPlausibleReading(t *testing.T) {
	m := NewResourceMonitor(75, 90)
	snap, err := m.Sample(context.Background())
	if err != nil {
		t.Skipf("gopsutil sampling unavailable in this sandbox: %v", err)
	}
	assert.GreaterOrEqual(t, snap.MemoryUsedPercent, 0.0)
	assert.LessOrEqual(t, snap.MemoryUsedPercent, 100.0)
}
