package metrics

import "github.com/prometheus/client_golang/prometheus"

// Model-provider Prometheus metrics: embedding and completion calls.
var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inscribe",
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"provider", "model", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inscribe",
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	EmbeddingTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inscribe",
			Name:      "embedding_tokens_total",
			Help:      "Total embedding tokens consumed",
		},
		[]string{"provider", "model", "type"},
	)

	CompletionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "inscribe",
			Name:      "completion_requests_total",
			Help:      "Total number of chat completion requests",
		},
		[]string{"provider", "model", "purpose", "status"},
	)

	CompletionRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inscribe",
			Name:      "completion_request_duration_seconds",
			Help:      "Chat completion request duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "model", "purpose"},
	)

	IngestedChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inscribe",
			Name:      "ingested_chunks_total",
			Help:      "Total chunks written to the vector index",
		},
	)

	SweptChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "inscribe",
			Name:      "swept_chunks_total",
			Help:      "Total chunks deleted by the retention sweeper",
		},
	)
)

var providerMetricsRegistered bool

// RegisterProviderMetrics registers model-provider and pipeline metrics.
// Must be called once from main.
func RegisterProviderMetrics() {
	if providerMetricsRegistered {
		return
	}
	prometheus.MustRegister(EmbeddingRequestsTotal)
	prometheus.MustRegister(EmbeddingRequestDuration)
	prometheus.MustRegister(EmbeddingTokensTotal)
	prometheus.MustRegister(CompletionRequestsTotal)
	prometheus.MustRegister(CompletionRequestDuration)
	prometheus.MustRegister(IngestedChunksTotal)
	prometheus.MustRegister(SweptChunksTotal)
	providerMetricsRegistered = true
}
