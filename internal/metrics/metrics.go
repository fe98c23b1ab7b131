package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deribit_tracker"

var (
	ExchangeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "requests_total",
		Help:      "Exchange RPC attempts by method and outcome.",
	}, []string{"method", "outcome"})

	ExchangeRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "exchange",
		Name:      "retries_total",
		Help:      "Exchange RPC retries by reason.",
	}, []string{"reason"})

	FetchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "runs_total",
		Help:      "Fetch pipeline runs by outcome.",
	}, []string{"status"})

	PricesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "prices_fetched_total",
		Help:      "Prices returned by the exchange and kept for persistence.",
	})

	PricesSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "prices_saved_total",
		Help:      "Prices persisted to the store.",
	})

	LastPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "fetch",
		Name:      "last_index_price",
		Help:      "Most recently persisted index price per ticker.",
	}, []string{"ticker"})

	HealthStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "health",
		Name:      "component_up",
		Help:      "1 when the component passed its last health check.",
	}, []string{"component"})

	HealthLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "health",
		Name:      "check_duration_seconds",
		Help:      "Health check latency per component.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"component"})

	CleanupDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cleanup",
		Name:      "deleted_total",
		Help:      "Price rows removed by retention cleanup.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP API requests by route and status code.",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP API request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// BoolGauge converts a health flag to a gauge value.
func BoolGauge(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}
