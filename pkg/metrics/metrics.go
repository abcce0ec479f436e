package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	AttributionMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attribution_messages_total",
			Help: "Total number of messages processed by the attribution pipeline (count)",
		},
		[]string{"status"},
	)

	AttributionAssignmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attribution_assignments_total",
			Help: "Total number of entity assignments by method (count)",
		},
		[]string{"method"},
	)

	AttributionBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attribution_batch_duration_ms",
			Help:    "Duration of attribution batch runs in milliseconds",
			Buckets: []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 120000, 300000},
		},
	)

	AttributionMessageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "attribution_message_duration_ms",
			Help:    "Per-message attribution processing duration in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"status"},
	)

	RegistryEntitiesLoaded = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "registry_entities_loaded",
			Help: "Number of entities in the active registry snapshot (count)",
		},
		[]string{"kind"},
	)

	ResolverHopsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_hops_total",
			Help: "Total number of redirect hops followed, by hop kind (count)",
		},
		[]string{"kind"},
	)

	ResolverChainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_chains_total",
			Help: "Total number of redirect chains resolved, by outcome (count)",
		},
		[]string{"outcome"},
	)

	ResolverChainDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "resolver_chain_duration_ms",
			Help:    "Duration of full redirect-chain resolution in milliseconds",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		},
	)

	ResolverCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "resolver_cache_total",
			Help: "Resolve cache lookups, by result (count)",
		},
		[]string{"result"},
	)

	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Total number of retry attempts (count)",
		},
		[]string{"service", "topic"},
	)

	DLQMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dlq_messages_total",
			Help: "Total number of messages sent to DLQ (count)",
		},
		[]string{"service", "topic", "reason"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	KafkaMessagesReadTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_read_total",
			Help: "Total number of messages read from Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	DatabaseQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "database_queries_total",
			Help: "Total number of database queries (count)",
		},
		[]string{"service", "database", "operation", "status"},
	)
)

func RegisterAttributionMetrics() {
	prometheus.MustRegister(AttributionMessagesTotal)
	prometheus.MustRegister(AttributionAssignmentsTotal)
	prometheus.MustRegister(AttributionBatchDuration)
	prometheus.MustRegister(AttributionMessageDuration)
	prometheus.MustRegister(RegistryEntitiesLoaded)
}

func RegisterResolverMetrics() {
	prometheus.MustRegister(ResolverHopsTotal)
	prometheus.MustRegister(ResolverChainsTotal)
	prometheus.MustRegister(ResolverChainDuration)
	prometheus.MustRegister(ResolverCacheTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(RetryAttemptsTotal)
	prometheus.MustRegister(DLQMessagesTotal)
	prometheus.MustRegister(KafkaMessagesReadTotal)
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func RegisterRegistryMetrics() {
	prometheus.MustRegister(RateLimitRequestsTotal)
	prometheus.MustRegister(DatabaseQueriesTotal)
}

func ObserveBatchDuration(duration time.Duration) {
	AttributionBatchDuration.Observe(float64(duration.Milliseconds()))
}

func ObserveMessageDuration(duration time.Duration, status string) {
	AttributionMessageDuration.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

func ObserveChainDuration(duration time.Duration) {
	ResolverChainDuration.Observe(float64(duration.Milliseconds()))
}

func SetRegistryEntitiesLoaded(kind string, count int) {
	RegistryEntitiesLoaded.WithLabelValues(kind).Set(float64(count))
}

func IncDatabaseQuery(service, database, operation, status string) {
	DatabaseQueriesTotal.WithLabelValues(service, database, operation, status).Inc()
}

func IncKafkaMessagesRead(service, topic string) {
	KafkaMessagesReadTotal.WithLabelValues(service, topic).Inc()
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}
