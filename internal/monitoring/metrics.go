package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every Prometheus collector the /metrics endpoint exposes,
// grounded on SPEC_FULL §4.9 (queue depth, job outcomes, render durations).
type Metrics struct {
	QueueDepth      prometheus.Gauge
	JobsTotal       *prometheus.CounterVec
	RenderDuration  prometheus.Histogram
	BackupDuration  prometheus.Histogram
	ArchiveSizeBytes prometheus.Histogram
}

// NewMetrics creates and registers every collector against registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quiz_archiver",
			Name:      "queue_depth",
			Help:      "Current number of jobs waiting in the scheduler queue.",
		}),
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quiz_archiver",
			Name:      "jobs_total",
			Help:      "Total jobs completed, labeled by terminal status.",
		}, []string{"status"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiz_archiver",
			Name:      "attempt_render_duration_seconds",
			Help:      "Time to render a single quiz attempt to PDF.",
			Buckets:   prometheus.DefBuckets,
		}),
		BackupDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiz_archiver",
			Name:      "backup_download_duration_seconds",
			Help:      "Time spent polling for and downloading a single backup.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		ArchiveSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "quiz_archiver",
			Name:      "archive_size_bytes",
			Help:      "Size of the final compressed archive.",
			Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 10),
		}),
	}

	registry.MustRegister(m.QueueDepth, m.JobsTotal, m.RenderDuration, m.BackupDuration, m.ArchiveSizeBytes)
	return m
}

// ObserveRenderDuration records how long one attempt render took.
func (m *Metrics) ObserveRenderDuration(d time.Duration) {
	m.RenderDuration.Observe(d.Seconds())
}

// ObserveBackupDuration records how long one backup poll+download took.
func (m *Metrics) ObserveBackupDuration(d time.Duration) {
	m.BackupDuration.Observe(d.Seconds())
}

// ObserveArchiveSize records the final archive's size in bytes.
func (m *Metrics) ObserveArchiveSize(bytes int64) {
	m.ArchiveSizeBytes.Observe(float64(bytes))
}

// RecordJobOutcome increments the jobs-total counter for a terminal status.
func (m *Metrics) RecordJobOutcome(status string) {
	m.JobsTotal.WithLabelValues(status).Inc()
}

// SetQueueDepth updates the queue-depth gauge.
func (m *Metrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}
