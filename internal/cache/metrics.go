package cache

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the cache collectors. A nil *Metrics records nothing.
type Metrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
}

// NewMetrics registers cache collectors with reg. A nil registerer yields
// unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adscribe",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups that returned a stored result",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adscribe",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that found no usable entry",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "adscribe",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed to satisfy size or free-space limits",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "adscribe",
			Subsystem: "cache",
			Name:      "size_bytes",
			Help:      "Total bytes held by cache entries",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.hits, m.misses, m.evictions, m.size)
	}
	return m
}

func (m *Metrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *Metrics) miss() {
	if m != nil {
		m.misses.Inc()
	}
}

func (m *Metrics) evicted() {
	if m != nil {
		m.evictions.Inc()
	}
}

func (m *Metrics) setSize(bytes int64) {
	if m != nil {
		m.size.Set(float64(bytes))
	}
}
