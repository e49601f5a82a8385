package metrics

import "github.com/prometheus/client_golang/prometheus"

// Vectorization and search pipeline metrics.
var (
	VectorizeTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentdata",
			Name:      "vectorize_total",
			Help:      "Vectorization outcomes per document",
		},
		[]string{"status"}, // success / failed / timeout
	)

	VectorizeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agentdata",
			Name:      "vectorize_duration_seconds",
			Help:      "Single-document vectorization latency",
			Buckets:   []float64{0.05, 0.1, 0.2, 0.3, 0.5, 1, 2, 5},
		},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentdata",
			Name:      "rag_search_total",
			Help:      "RAG search outcomes",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "agentdata",
			Name:      "rag_search_duration_seconds",
			Help:      "RAG search latency",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.2, 0.3, 0.6, 1, 2},
		},
	)

	StoreRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "agentdata",
			Name:      "store_retries_total",
			Help:      "Retried vector store operations",
		},
		[]string{"operation"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers vectorization and search metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(VectorizeTotal)
	prometheus.MustRegister(VectorizeDuration)
	prometheus.MustRegister(SearchTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(StoreRetriesTotal)
	pipelineMetricsRegistered = true
}
