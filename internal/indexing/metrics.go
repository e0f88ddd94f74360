package indexing

import "github.com/prometheus/client_golang/prometheus"

// metrics are the C8 gauges/counters, grounded on the pack's metrics-server
// pattern (prometheus.NewCounterVec/NewGauge + MustRegister at construction).
// Unlike that example's package-level vars, these are built per-Coordinator,
// so coordinators given separate registries do not collide; two that both
// register against the default registerer (reg nil) still panic.
type metrics struct {
	jobsTotal      *prometheus.CounterVec
	jobDuration    prometheus.Histogram
	progressGauge  prometheus.Gauge
	documentsGauge prometheus.Gauge
	chunksGauge    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_brain_indexing_jobs_total",
			Help: "Indexing jobs completed, by terminal status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agent_brain_indexing_job_duration_seconds",
			Help:    "Wall-clock duration of completed indexing jobs.",
			Buckets: prometheus.DefBuckets,
		}),
		progressGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_brain_indexing_progress_percent",
			Help: "Progress of the current (or most recent) indexing job.",
		}),
		documentsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_brain_indexing_documents_total",
			Help: "Documents discovered by the current (or most recent) indexing job.",
		}),
		chunksGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_brain_indexing_chunks_total",
			Help: "Chunks produced by the current (or most recent) indexing job.",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.jobsTotal, m.jobDuration, m.progressGauge, m.documentsGauge, m.chunksGauge)
	return m
}
