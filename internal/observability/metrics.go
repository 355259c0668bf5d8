// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Discovery metrics
	LogNotifications prometheus.Counter
	EventsNormalized *prometheus.CounterVec
	EventsDropped    *prometheus.CounterVec

	// Decision metrics
	IntentsEmitted  prometheus.Counter
	IntentsRejected *prometheus.CounterVec
	CooldownSetSize prometheus.Gauge

	// Execution metrics
	Submissions          prometheus.Counter
	SubmissionRetries    prometheus.Counter
	SubmissionsByOutcome *prometheus.CounterVec
	InFlightIntents      prometheus.Gauge

	// Pipeline metrics
	ChannelDepth      *prometheus.GaugeVec
	EventsDroppedFull *prometheus.CounterVec
	DetectionToSubmit prometheus.Histogram

	// Chain gateway metrics
	RPCCallLatency    *prometheus.HistogramVec
	WSReconnects      prometheus.Counter
	WSDroppedMessages prometheus.Counter

	// Health metrics
	LastEventTimestamp prometheus.Gauge
	UptimeSeconds      prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_pool_sniper"
	}

	return &Metrics{
		// Discovery metrics
		LogNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "log_notifications_total",
			Help:      "Total number of log notifications received from the subscription",
		}),
		EventsNormalized: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "events_normalized_total",
			Help:      "Total number of pool events normalized by kind",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "events_dropped_total",
			Help:      "Total number of notifications dropped during normalization by reason",
		}, []string{"reason"}),

		// Decision metrics
		IntentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "intents_emitted_total",
			Help:      "Total number of buy intents emitted",
		}),
		IntentsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "intents_rejected_total",
			Help:      "Total number of pool events rejected by rule",
		}, []string{"reason"}),
		CooldownSetSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "decision",
			Name:      "cooldown_set_size",
			Help:      "Current number of pools in the cooldown recency set",
		}),

		// Execution metrics
		Submissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "submissions_total",
			Help:      "Total number of sendTransaction attempts",
		}),
		SubmissionRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "submission_retries_total",
			Help:      "Total number of transient-error resubmissions",
		}),
		SubmissionsByOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "submissions_by_outcome_total",
			Help:      "Total number of intents reaching a terminal status",
		}, []string{"status"}),
		InFlightIntents: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "execution",
			Name:      "in_flight_intents",
			Help:      "Current number of intents being executed",
		}),

		// Pipeline metrics
		ChannelDepth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "channel_depth",
			Help:      "Current depth of pipeline stage channels",
		}, []string{"stage"}),
		EventsDroppedFull: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "events_dropped_full_total",
			Help:      "Total number of messages dropped because a stage channel was full",
		}, []string{"stage"}),
		DetectionToSubmit: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "detection_to_submit_seconds",
			Help:      "Latency from event observation to first submission attempt",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),

		// Chain gateway metrics
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		WSReconnects: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_reconnects_total",
			Help:      "Total number of WebSocket reconnects",
		}),
		WSDroppedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "ws_dropped_messages_total",
			Help:      "Total number of WebSocket notifications dropped by slow consumers",
		}),

		// Health metrics
		LastEventTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_event_timestamp",
			Help:      "Unix timestamp of the last pool event observed",
		}),
		UptimeSeconds: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordNotification increments the log notification counter.
func RecordNotification() {
	DefaultMetrics.LogNotifications.Inc()
}

// RecordEventNormalized increments the normalized event counter.
func RecordEventNormalized(kind string) {
	DefaultMetrics.EventsNormalized.WithLabelValues(kind).Inc()
}

// RecordEventDropped records a normalization drop.
func RecordEventDropped(reason string) {
	DefaultMetrics.EventsDropped.WithLabelValues(reason).Inc()
}

// RecordIntentEmitted increments the intents emitted counter.
func RecordIntentEmitted() {
	DefaultMetrics.IntentsEmitted.Inc()
}

// RecordIntentRejected records a rule rejection.
func RecordIntentRejected(reason string) {
	DefaultMetrics.IntentsRejected.WithLabelValues(reason).Inc()
}

// RecordOutcome records an intent's terminal status.
func RecordOutcome(status string) {
	DefaultMetrics.SubmissionsByOutcome.WithLabelValues(status).Inc()
}

// RecordChannelDrop records a bounded-channel drop for a stage.
func RecordChannelDrop(stage string) {
	DefaultMetrics.EventsDroppedFull.WithLabelValues(stage).Inc()
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
