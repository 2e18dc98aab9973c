package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Recorder publishes Prometheus metrics for HTTP traffic, the request cache,
// upstream store calls and mock fallbacks. A nil *Recorder is a valid no-op.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	cacheLookups *prometheus.CounterVec
	cacheLatency *prometheus.HistogramVec

	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec

	degraded *prometheus.CounterVec
}

// NewRecorder constructs a Recorder. When reg is nil a dedicated registry is
// created so tests can build several recorders side by side.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served by the API.",
	}, []string{"route", "method", "status_code"})

	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for HTTP requests.",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"route", "method"})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Request cache lookups by resource and result.",
	}, []string{"resource", "result"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookup_duration_seconds",
		Help:      "Latency distribution for request cache lookups, loads included.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"resource", "result"})

	upstreamCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "calls_total",
		Help:      "Record store calls by table, operation and outcome.",
	}, []string{"table", "operation", "outcome"})

	upstreamLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "upstream",
		Name:      "call_duration_seconds",
		Help:      "Latency distribution for record store calls.",
		Buckets:   []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"table", "operation"})

	degraded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "fallback",
		Name:      "responses_total",
		Help:      "Responses served from sample data.",
	}, []string{"resource", "reason"})

	reg.MustRegister(httpRequests, httpLatency, cacheLookups, cacheLatency, upstreamCalls, upstreamLatency, degraded)

	return &Recorder{
		gatherer:        reg,
		handler:         promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		httpRequests:    httpRequests,
		httpLatency:     httpLatency,
		cacheLookups:    cacheLookups,
		cacheLatency:    cacheLatency,
		upstreamCalls:   upstreamCalls,
		upstreamLatency: upstreamLatency,
		degraded:        degraded,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying gatherer.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveHTTP records a completed HTTP request. route is the matched pattern, not the raw path.
func (r *Recorder) ObserveHTTP(route, method string, statusCode int, duration time.Duration) {
	if r == nil {
		return
	}
	routeLabel := normalizeLabel(route)
	methodLabel := normalizeLabel(method)
	statusLabel := strconv.Itoa(statusCode)
	if statusCode <= 0 {
		statusLabel = "unknown"
	}
	r.httpRequests.WithLabelValues(routeLabel, methodLabel, statusLabel).Inc()
	r.httpLatency.WithLabelValues(routeLabel, methodLabel).Observe(duration.Seconds())
}

// ObserveCacheLookup records a request cache lookup (hit, miss, shared or error).
func (r *Recorder) ObserveCacheLookup(resource, result string, duration time.Duration) {
	if r == nil {
		return
	}
	resourceLabel := normalizeLabel(resource)
	resultLabel := normalizeLabel(result)
	r.cacheLookups.WithLabelValues(resourceLabel, resultLabel).Inc()
	r.cacheLatency.WithLabelValues(resourceLabel, resultLabel).Observe(duration.Seconds())
}

// ObserveUpstream records one record store call.
func (r *Recorder) ObserveUpstream(table, operation, outcome string, duration time.Duration) {
	if r == nil {
		return
	}
	tableLabel := normalizeLabel(table)
	opLabel := normalizeLabel(operation)
	r.upstreamCalls.WithLabelValues(tableLabel, opLabel, normalizeLabel(outcome)).Inc()
	r.upstreamLatency.WithLabelValues(tableLabel, opLabel).Observe(duration.Seconds())
}

// ObserveDegraded counts a response served from sample data.
func (r *Recorder) ObserveDegraded(resource, reason string) {
	if r == nil {
		return
	}
	r.degraded.WithLabelValues(normalizeLabel(resource), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
