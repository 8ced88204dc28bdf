package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Attempts by pool and outcome (ALLOCATED, CONFLICT, REJECTED)
	AllocationAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_attempts_total",
		Help: "Total allocation attempts by pool and outcome",
	}, []string{"pool", "outcome"})

	AllocationLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "allocation_latency_seconds",
		Help:    "Latency of one allocation transaction",
		Buckets: prometheus.DefBuckets,
	})

	RewardsDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_rewards_dispatched_total",
		Help: "Rewards credited to winners by reward type",
	}, []string{"type"})

	// A misconfigured pool: both the draw and the alternative found nothing.
	StockExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocation_stock_exhausted_total",
		Help: "Attempts that failed because no unit had stock",
	}, []string{"pool"})

	TransientFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_transient_failures_total",
		Help: "Attempts aborted by lock timeouts or unreachable collaborators",
	})

	AlternativeSelections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "allocation_alternative_selections_total",
		Help: "Draws that fell back to the alternative unit",
	})
)

var once sync.Once

// Init registers the collectors once per process.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			AllocationAttempts,
			AllocationLatency,
			RewardsDispatched,
			StockExhausted,
			TransientFailures,
			AlternativeSelections,
		)
	})
}
