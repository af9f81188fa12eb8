package governor

import (
	"github.com/prometheus/client_golang/prometheus"

	"adscribe/internal/queue"
)

// Metrics holds governor collectors. A nil *Metrics records nothing.
type Metrics struct {
	jobs          *prometheus.GaugeVec
	finished      *prometheus.CounterVec
	activeWorkers prometheus.Gauge
	memoryUsage   prometheus.Gauge
	memoryPaused  prometheus.Gauge
	jobDuration   prometheus.Histogram
}

// NewMetrics registers governor collectors with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "adscribe",
			Name:      "jobs",
			Help:      "Jobs in the queue by state",
		}, []string{"state"}),
		finished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "adscribe",
			Name:      "jobs_finished_total",
			Help:      "Jobs that reached a terminal state",
		}, []string{"state"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adscribe",
			Name:      "active_workers",
			Help:      "Workers currently running a job",
		}),
		memoryUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adscribe",
			Subsystem: "memory",
			Name:      "usage_ratio",
			Help:      "Heap usage as a fraction of the memory limit",
		}),
		memoryPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adscribe",
			Subsystem: "memory",
			Name:      "paused",
			Help:      "1 while stage progress is paused for memory pressure",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "adscribe",
			Name:      "job_duration_seconds",
			Help:      "Wall time spent processing a job",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.jobs, m.finished, m.activeWorkers, m.memoryUsage, m.memoryPaused, m.jobDuration)
	}
	return m
}

func (m *Metrics) observeQueue(summary queue.HealthSummary) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(string(queue.StatusQueued)).Set(float64(summary.Queued))
	m.jobs.WithLabelValues(string(queue.StatusProcessing)).Set(float64(summary.Processing))
	m.jobs.WithLabelValues(string(queue.StatusCompleted)).Set(float64(summary.Completed))
	m.jobs.WithLabelValues(string(queue.StatusFailed)).Set(float64(summary.Failed))
}

func (m *Metrics) jobFinished(status queue.Status, seconds float64) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(string(status)).Inc()
	m.jobDuration.Observe(seconds)
}

func (m *Metrics) workerStarted() {
	if m != nil {
		m.activeWorkers.Inc()
	}
}

func (m *Metrics) workerIdle() {
	if m != nil {
		m.activeWorkers.Dec()
	}
}

func (m *Metrics) setMemoryUsage(ratio float64) {
	if m != nil {
		m.memoryUsage.Set(ratio)
	}
}

func (m *Metrics) setPaused(paused bool) {
	if m == nil {
		return
	}
	if paused {
		m.memoryPaused.Set(1)
		return
	}
	m.memoryPaused.Set(0)
}
