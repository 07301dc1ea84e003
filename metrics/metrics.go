package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ItemsTotal counts items accepted by pool
	ItemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txnpool_items_total",
			Help: "Total number of items added to the pool",
		},
		[]string{"pool"},
	)

	// CommitsTotal counts committed batch transactions by pool
	CommitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txnpool_commits_total",
			Help: "Total number of committed batch transactions",
		},
		[]string{"pool"},
	)

	// DeadlocksTotal counts detected deadlocks by pool
	DeadlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txnpool_deadlocks_total",
			Help: "Total number of deadlocks detected",
		},
		[]string{"pool"},
	)

	// ReplaysTotal counts full-batch replays after a rollback by pool
	ReplaysTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "txnpool_replays_total",
			Help: "Total number of batch replays after rollback",
		},
		[]string{"pool"},
	)

	// BatchSize tracks the number of items per committed transaction
	BatchSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txnpool_batch_size",
			Help:    "Items per committed batch transaction",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"pool"},
	)

	// BackoffSeconds tracks time slept before batch replays
	BackoffSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "txnpool_backoff_seconds",
			Help:    "Backoff sleep duration before batch replay",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pool"},
	)

	once sync.Once
)

// Init registers all metrics with Prometheus
func Init() {
	once.Do(func() {
		prometheus.MustRegister(ItemsTotal)
		prometheus.MustRegister(CommitsTotal)
		prometheus.MustRegister(DeadlocksTotal)
		prometheus.MustRegister(ReplaysTotal)
		prometheus.MustRegister(BatchSize)
		prometheus.MustRegister(BackoffSeconds)
	})
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
