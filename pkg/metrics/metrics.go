// Package metrics exposes the Prometheus collectors for the key manager:
// mint/resolve counters from the core state machine, and basic HTTP
// instrumentation for the ambient httpapi surface.
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

const namespace = "keymanager"

var (
	// Registry holds every collector this process exposes.
	Registry = prometheus.NewRegistry()

	resolveTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolve_total",
			Help:      "Total calls to KeyResolver.Resolve, labeled by scope kind and outcome.",
		},
		[]string{"scope_kind", "outcome"},
	)

	resolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolve_duration_seconds",
			Help:      "Latency of KeyResolver.Resolve, including any mint it performs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~4s
		},
		[]string{"scope_kind"},
	)

	mintTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "mint_total",
			Help:      "Total keys minted, labeled by placement (hsm, wrapped, certificate).",
		},
		[]string{"placement"},
	)

	lockWait = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "scope_lock_wait_seconds",
			Help:      "Time spent waiting to acquire a per-scope mint lock.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"scope_kind"},
	)

	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "facade",
			Name:      "errors_total",
			Help:      "Total errors surfaced by CryptoFacade operations, labeled by operation and error kind.",
		},
		[]string{"operation", "kind"},
	)

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests handled by the ambient httpapi surface.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests handled by the ambient httpapi surface.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)
)

func init() {
	Registry.MustRegister(
		resolveTotal,
		resolveDuration,
		mintTotal,
		lockWait,
		errorsTotal,
		httpInFlight,
		httpRequests,
		httpDuration,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler exposes the registry in the Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// ScopeKind labels metrics by whether a scope is HSM-resident (absent
// reference) or DB-resident (present reference), without ever including the
// application or reference id themselves in a label (unbounded cardinality).
func ScopeKind(hasReference bool) string {
	if hasReference {
		return "reference"
	}
	return "master"
}

// RecordResolve records one KeyResolver.Resolve call.
func RecordResolve(scopeKind, outcome string, duration time.Duration) {
	resolveTotal.WithLabelValues(scopeKind, outcome).Inc()
	resolveDuration.WithLabelValues(scopeKind).Observe(duration.Seconds())
}

// RecordMint records a successful mint, labeled by where the material landed.
func RecordMint(placement string) {
	mintTotal.WithLabelValues(placement).Inc()
}

// RecordLockWait records how long a caller waited to acquire a scope lock.
func RecordLockWait(scopeKind string, wait time.Duration) {
	lockWait.WithLabelValues(scopeKind).Observe(wait.Seconds())
}

// RecordFacadeError records a terminal error from a CryptoFacade operation.
func RecordFacadeError(operation, kind string) {
	errorsTotal.WithLabelValues(operation, kind).Inc()
}

// InstrumentHandler wraps next with HTTP request/latency/in-flight metrics.
// route should be the chi route pattern (e.g. "/v1/{app}/public-key"), not
// the raw URL, to keep label cardinality bounded.
func InstrumentHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		method := strings.ToUpper(r.Method)
		httpRequests.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
	})
}
