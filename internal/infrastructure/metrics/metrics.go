package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh run outcomes
const (
	OutcomeSucceeded   = "succeeded"
	OutcomeSkipped     = "skipped"
	OutcomeRetry       = "retry"
	OutcomeFailed      = "failed"
	OutcomeInterrupted = "interrupted"
)

// Metrics holds the service collectors
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	CacheLookupsTotal     *prometheus.CounterVec
	RefreshRunsTotal      *prometheus.CounterVec
	RefreshFailuresTotal  *prometheus.CounterVec
	RefreshDuration       prometheus.Histogram
	RecordsUpsertedTotal  prometheus.Counter
	LastRefreshSuccessSec prometheus.Gauge

	gatherer prometheus.Gatherer
}

// NewMetrics registers the collectors on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return NewMetricsWith(reg, reg)
}

// NewMetricsWith registers the collectors on reg and serves them from gatherer
func NewMetricsWith(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		CacheLookupsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_cache_lookups_total",
				Help: "Rate cache lookups on the read path by result",
			},
			[]string{"result"},
		),

		RefreshRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_refresh_runs_total",
				Help: "Refresh job runs by outcome",
			},
			[]string{"outcome"},
		),

		RefreshFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rates_refresh_failures_total",
				Help: "Failed refresh attempts by failure kind",
			},
			[]string{"kind"},
		),

		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "rates_refresh_duration_seconds",
				Help:    "Duration of refresh job attempts",
				Buckets: prometheus.DefBuckets,
			},
		),

		RecordsUpsertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "rates_records_upserted_total",
				Help: "Rate records written to the store",
			},
		),

		LastRefreshSuccessSec: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "rates_last_refresh_success_timestamp_seconds",
				Help: "Unix time of the last successful refresh",
			},
		),

		gatherer: gatherer,
	}
}

// Handler serves the registered collectors in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
