package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReconnectAttempts tracks scheduled reconnection attempts.
	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_reconnect_attempts_total",
			Help: "Total number of scheduled reconnection attempts",
		},
	)

	// ConnectionState reports the current connection state
	// (0=disconnected, 1=connecting, 2=connected, 3=error).
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionlink_connection_state",
			Help: "Current connection state (0=disconnected, 1=connecting, 2=connected, 3=error)",
		},
	)

	// MessagesSent tracks messages transmitted on a live connection.
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_messages_sent_total",
			Help: "Total number of messages transmitted",
		},
	)

	// MessagesReceived tracks inbound frames that parsed as envelopes.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionlink_messages_received_total",
			Help: "Total number of inbound messages by envelope type",
		},
		[]string{"type"},
	)

	// ParseFailures tracks inbound frames dropped as unparseable.
	ParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_parse_failures_total",
			Help: "Total number of inbound frames dropped as unparseable",
		},
	)

	// MessagesQueued tracks messages buffered while disconnected.
	MessagesQueued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_messages_queued_total",
			Help: "Total number of messages queued while disconnected",
		},
	)

	// QueueDepth reports the current outbound queue length.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessionlink_queue_depth",
			Help: "Current number of messages in the outbound queue",
		},
	)

	// QueueEvictions tracks oldest-entry evictions on queue overflow.
	QueueEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_queue_evictions_total",
			Help: "Total number of queued messages evicted on overflow",
		},
	)

	// QueueExpired tracks queued messages discarded as stale on drain.
	QueueExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_queue_expired_total",
			Help: "Total number of queued messages discarded as expired on drain",
		},
	)

	// HeartbeatTimeouts tracks stale connections detected by the monitor.
	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sessionlink_heartbeat_timeouts_total",
			Help: "Total number of connections force-closed on heartbeat timeout",
		},
	)

	// RecoveryActions tracks recovery action invocations by category,
	// action name and outcome.
	RecoveryActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionlink_recovery_actions_total",
			Help: "Total number of recovery action invocations",
		},
		[]string{"category", "action", "outcome"},
	)

	// FailsafeActivations tracks degraded-mode activations by category.
	FailsafeActivations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sessionlink_failsafe_activations_total",
			Help: "Total number of failsafe activations",
		},
		[]string{"category"},
	)
)
