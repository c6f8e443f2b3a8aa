package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the ingestion collectors. Each instance owns its registry so
// runs and tests do not share global state.
type Metrics struct {
	Registry *prometheus.Registry

	LinesRead      prometheus.Counter
	LinesMalformed prometheus.Counter
	RecordsQueued  prometheus.Counter
	RecordsWritten *prometheus.CounterVec
	QueueDepth     prometheus.Gauge
	Workers        prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_lines_read_total",
			Help: "Total number of input lines read",
		}),
		LinesMalformed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_lines_malformed_total",
			Help: "Total number of input lines skipped as malformed",
		}),
		RecordsQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_records_queued_total",
			Help: "Total number of records pushed to the work queue",
		}),
		RecordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_records_written_total",
				Help: "Total number of records written to the sink",
			},
			[]string{"level"},
		),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_queue_length",
			Help: "Current work queue length",
		}),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ingest_workers",
			Help: "Number of running workers",
		}),
	}

	m.Registry.MustRegister(
		m.LinesRead,
		m.LinesMalformed,
		m.RecordsQueued,
		m.RecordsWritten,
		m.QueueDepth,
		m.Workers,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
