package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	compiled   *prometheus.CounterVec
	stages     prometheus.Histogram
	depth      prometheus.Histogram
	duration   *prometheus.HistogramVec
	documents  *prometheus.CounterVec
	errorCount *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		compiled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "populate",
			Name:      "plans_compiled_total",
			Help:      "Population plans compiled, by root schema.",
		}, []string{"schema"}),

		stages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "populate",
			Name:      "pipeline_stages",
			Help:      "Top-level stages in compiled pipelines.",
			Buckets:   prometheus.LinearBuckets(1, 2, 10),
		}),

		depth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "populate",
			Name:      "populate_depth",
			Help:      "Join depth of compiled plans.",
			Buckets:   prometheus.LinearBuckets(0, 1, 6),
		}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "populate",
			Name:      "execute_duration_seconds",
			Help:      "Time from sending a pipeline to the first result batch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"schema"}),

		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "populate",
			Name:      "documents_total",
			Help:      "Top-level documents reconciled, by root schema.",
		}, []string{"schema"}),

		errorCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "populate",
			Name:      "errors_total",
			Help:      "Failed operations by error kind.",
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{
		m.compiled, m.stages, m.depth, m.duration, m.documents, m.errorCount,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeCompile(c *Compiled) {
	if m == nil {
		return
	}
	m.compiled.WithLabelValues(c.Schema).Inc()
	m.stages.Observe(float64(len(c.Pipeline)))
	m.depth.Observe(float64(c.Depth))
}

func (m *Metrics) observeExecute(schema string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(schema).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeDocuments(schema string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.documents.WithLabelValues(schema).Add(float64(n))
}

func (m *Metrics) observeError(err error) {
	if m == nil || err == nil {
		return
	}
	m.errorCount.WithLabelValues(errorKind(err)).Inc()
}
