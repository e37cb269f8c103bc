package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Gate metrics
	GateDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgate_gate_decisions_total",
			Help: "Total number of request gate decisions",
		},
		[]string{"decision"}, // decision: allow|allow_free|deny_monthly|deny_total
	)

	// Provider metrics
	ProviderCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgate_provider_calls_total",
			Help: "Total number of upstream provider calls",
		},
		[]string{"provider", "model", "mode", "status"}, // mode: stream|batch, status: success|error|rate_limited
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditgate_provider_latency_seconds",
			Help:    "Upstream provider call latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "model", "mode"},
	)

	ProviderTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgate_provider_tokens_total",
			Help: "Total tokens reported by providers",
		},
		[]string{"provider", "model", "type"}, // type: prompt|response
	)

	// Usage metrics
	UsageRowsLogged = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgate_usage_rows_logged_total",
			Help: "Total token usage rows written",
		},
		[]string{"provider", "status"}, // status: success|error
	)

	// Database metrics
	DBQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgate_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"database", "operation", "status"}, // database: postgres|clickhouse|redis
	)

	// System metrics
	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditgate_kafka_messages_total",
			Help: "Total Kafka messages produced",
		},
		[]string{"topic", "status"},
	)
)

// Init registers all metrics with Prometheus
func Init() {
	prometheus.MustRegister(GateDecisions)
	prometheus.MustRegister(ProviderCalls)
	prometheus.MustRegister(ProviderLatency)
	prometheus.MustRegister(ProviderTokens)
	prometheus.MustRegister(UsageRowsLogged)
	prometheus.MustRegister(DBQueries)
	prometheus.MustRegister(KafkaMessages)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordGateDecision records one gate allow/deny outcome
func RecordGateDecision(decision string) {
	GateDecisions.WithLabelValues(decision).Inc()
}

// RecordProviderCall records an upstream provider invocation
func RecordProviderCall(provider, model, mode string, latency time.Duration, promptTokens, responseTokens int64, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	ProviderCalls.WithLabelValues(provider, model, mode, status).Inc()
	ProviderLatency.WithLabelValues(provider, model, mode).Observe(latency.Seconds())

	if promptTokens > 0 {
		ProviderTokens.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if responseTokens > 0 {
		ProviderTokens.WithLabelValues(provider, model, "response").Add(float64(responseTokens))
	}
}

// RecordUsageRow records a token usage write attempt
func RecordUsageRow(provider string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	UsageRowsLogged.WithLabelValues(provider, status).Inc()
}

// RecordDBQuery records a database query outcome
func RecordDBQuery(database, operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	DBQueries.WithLabelValues(database, operation, status).Inc()
}
