package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Completed conversational turns by outcome.",
		},
		[]string{"database_type", "status"},
	)

	turnAttempts = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_turn_attempts",
			Help:    "Statement attempts consumed per turn.",
			Buckets: []float64{1, 2, 3, 4},
		},
	)

	queryDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_query_duration_seconds",
			Help:    "Data source execution latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"database_type"},
	)

	llmLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_llm_latency_seconds",
			Help:    "Statement generation latency by provider.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	llmTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_llm_tokens_total",
			Help: "Tokens consumed by provider.",
		},
		[]string{"provider"},
	)

	chartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_charts_total",
			Help: "Chart kinds chosen by the result shape analyzer.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDurationSeconds,
		turnsTotal,
		turnAttempts,
		queryDurationSeconds,
		llmLatencySeconds,
		llmTokensTotal,
		chartsTotal,
	)
}

// ObserveTurn records a completed turn. Status is "succeeded" or the
// error kind for failed turns.
func ObserveTurn(databaseType, status string, attempts int, duration time.Duration) {
	turnsTotal.WithLabelValues(databaseType, status).Inc()
	turnAttempts.Observe(float64(attempts))
	queryDurationSeconds.WithLabelValues(databaseType).Observe(duration.Seconds())
}

// ObserveLLM records one provider call.
func ObserveLLM(provider string, latency time.Duration, tokens int) {
	llmLatencySeconds.WithLabelValues(provider).Observe(latency.Seconds())
	if tokens > 0 {
		llmTokensTotal.WithLabelValues(provider).Add(float64(tokens))
	}
}

// ObserveChart records the analyzer's choice.
func ObserveChart(kind string) {
	chartsTotal.WithLabelValues(kind).Inc()
}
