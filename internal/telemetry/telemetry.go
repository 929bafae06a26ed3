package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry owns the service's Prometheus metrics. It carries its own
// Registry so tests can construct isolated instances.
type Telemetry struct {
	enabled  bool
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestSeconds   *prometheus.HistogramVec
	retrievalSeconds prometheus.Histogram
	llmSeconds       prometheus.Histogram
	cacheHits        prometheus.Counter
}

// New creates and registers the metric set.
func New(enabled bool) *Telemetry {
	reg := prometheus.NewRegistry()
	t := &Telemetry{
		enabled:  enabled,
		registry: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reviewpulse_requests_total",
			Help: "API requests by route and status code.",
		}, []string{"route", "status"}),
		requestSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "reviewpulse_request_seconds",
			Help:    "End-to-end request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		retrievalSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewpulse_retrieval_seconds",
			Help:    "Vector store search latency.",
			Buckets: prometheus.DefBuckets,
		}),
		llmSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "reviewpulse_llm_seconds",
			Help:    "LLM completion latency.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "reviewpulse_cache_hits_total",
			Help: "Answer cache hits.",
		}),
	}
	reg.MustRegister(t.requests, t.requestSeconds, t.retrievalSeconds, t.llmSeconds, t.cacheHits)
	return t
}

// Handler exposes the registry for the /metrics endpoint.
func (t *Telemetry) Handler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished API request.
func (t *Telemetry) ObserveRequest(route, status string, elapsed time.Duration) {
	if !t.enabled {
		return
	}
	t.requests.WithLabelValues(route, status).Inc()
	t.requestSeconds.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveRetrieval records one vector search.
func (t *Telemetry) ObserveRetrieval(elapsed time.Duration) {
	if !t.enabled {
		return
	}
	t.retrievalSeconds.Observe(elapsed.Seconds())
}

// ObserveLLM records one completion call.
func (t *Telemetry) ObserveLLM(elapsed time.Duration) {
	if !t.enabled {
		return
	}
	t.llmSeconds.Observe(elapsed.Seconds())
}

// CacheHit records an answer served from cache.
func (t *Telemetry) CacheHit() {
	if !t.enabled {
		return
	}
	t.cacheHits.Inc()
}
