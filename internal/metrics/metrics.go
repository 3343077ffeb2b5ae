// Package metrics exposes Prometheus instrumentation for allocation, caching
// and RPC handling. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tabsplit"

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

// Computation outcomes. Failures are labelled with calculator.ErrorKind.
const OutcomeOK = "ok"

// Metrics holds every collector of the service.
type Metrics struct {
	computations       *prometheus.CounterVec
	computeDuration    prometheus.Observer
	cacheLookups       *prometheus.CounterVec
	rpcRequests        *prometheus.CounterVec
	rpcDuration        *prometheus.HistogramVec
	sessionsFinalized  prometheus.Counter
	breakerTransitions *prometheus.CounterVec
}

// New creates the collectors and registers them with registerer. A nil
// registerer means prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	computations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "allocations_total",
		Help:      "Receipt allocations by outcome.",
	}, []string{"outcome"})
	computeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "allocation_duration_seconds",
		Help:      "Time spent allocating a receipt, cache lookups excluded.",
		Buckets:   []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Memoization cache lookups by result.",
	}, []string{"result"})
	rpcRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "RPC requests by procedure and status code.",
	}, []string{"procedure", "code"})
	rpcDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "RPC handling latency by procedure.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"procedure"})
	sessionsFinalized := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_finalized_total",
		Help:      "Sessions finalized and stored.",
	})
	breakerTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "circuit_breaker_transitions_total",
		Help:      "Circuit breaker state changes.",
	}, []string{"breaker", "to"})

	registerer.MustRegister(
		computations,
		computeDuration,
		cacheLookups,
		rpcRequests,
		rpcDuration,
		sessionsFinalized,
		breakerTransitions,
	)

	return &Metrics{
		computations:       computations,
		computeDuration:    computeDuration,
		cacheLookups:       cacheLookups,
		rpcRequests:        rpcRequests,
		rpcDuration:        rpcDuration,
		sessionsFinalized:  sessionsFinalized,
		breakerTransitions: breakerTransitions,
	}
}

// ObserveAllocation records one engine run. kind is OutcomeOK or an error kind.
func (m *Metrics) ObserveAllocation(kind string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.computations.WithLabelValues(kind).Inc()
	m.computeDuration.Observe(elapsed.Seconds())
}

// CacheLookup records a memoization lookup result.
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveRPC records one handled RPC.
func (m *Metrics) ObserveRPC(procedure, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.rpcRequests.WithLabelValues(procedure, code).Inc()
	m.rpcDuration.WithLabelValues(procedure).Observe(elapsed.Seconds())
}

// SessionFinalized counts a stored session.
func (m *Metrics) SessionFinalized() {
	if m == nil {
		return
	}
	m.sessionsFinalized.Inc()
}

// BreakerTransition records a circuit breaker moving to a new state.
func (m *Metrics) BreakerTransition(breaker, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(breaker, to).Inc()
}
