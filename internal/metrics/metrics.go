// Package metrics exposes process counters on a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeOK         = "ok"
	OutcomeNotFound   = "not_found"
	OutcomeBadRequest = "bad_request"
	OutcomeBadMethod  = "method_not_allowed"
	OutcomeDrift      = "drift"
	OutcomeError      = "error"
)

var ingestBuckets = prometheus.ExponentialBuckets(0.01, 2, 14)

type Metrics struct {
	registry *prometheus.Registry

	requests       *prometheus.CounterVec
	restarts       prometheus.Counter
	ingestedRows   prometheus.Counter
	tailedBytes    prometheus.Counter
	channels       prometheus.Gauge
	ingestDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drmonitor",
			Name:      "requests_total",
			Help:      "HTTP requests handled, by outcome.",
		}, []string{"outcome"}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drmonitor",
			Name:      "restarts_total",
			Help:      "Re-ingestions caused by a change in the date directories.",
		}),
		ingestedRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drmonitor",
			Name:      "ingested_rows_total",
			Help:      "Rows parsed by full ingestion scans.",
		}),
		tailedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drmonitor",
			Name:      "tailed_bytes_total",
			Help:      "Bytes of complete lines read from tailed files.",
		}),
		channels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "drmonitor",
			Name:      "channels",
			Help:      "Channels held in memory.",
		}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drmonitor",
			Name:      "ingest_duration_seconds",
			Help:      "Wall time of full ingestion scans.",
			Buckets:   ingestBuckets,
		}),
	}
	m.registry.MustRegister(
		m.requests,
		m.restarts,
		m.ingestedRows,
		m.tailedBytes,
		m.channels,
		m.ingestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRestart() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}

func (m *Metrics) ObserveIngest(rows int, channels int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestedRows.Add(float64(rows))
	m.channels.Set(float64(channels))
	m.ingestDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveTail(bytes int, channels int) {
	if m == nil {
		return
	}
	m.tailedBytes.Add(float64(bytes))
	m.channels.Set(float64(channels))
}
