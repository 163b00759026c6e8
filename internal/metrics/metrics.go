// Package metrics holds the Prometheus collectors. Registration is
// explicit via Register; there is no init().
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedload",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embedload",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedload",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	StoreOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedload",
			Name:      "store_operations_total",
			Help:      "Total store adapter operations",
		},
		[]string{"driver", "operation", "status"},
	)

	StoreOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "embedload",
			Name:      "store_operation_duration_seconds",
			Help:      "Store adapter operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"driver", "operation"},
	)

	ReconcileRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "embedload",
			Name:      "reconcile_rows_total",
			Help:      "Rows inserted, updated and deactivated per reconciliation run",
		},
		[]string{"table", "action"},
	)
)

// Register registers all collectors with the default registry.
func Register() {
	prometheus.MustRegister(
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTokensTotal,
		StoreOperationsTotal,
		StoreOperationDuration,
		ReconcileRowsTotal,
	)
}
