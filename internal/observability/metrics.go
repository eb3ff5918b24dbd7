package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts failed Redis commands by command name.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// ActivityLogsWritten counts committed activity log rows by category.
	ActivityLogsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_activity_logs_total",
		Help: "Total number of activity log rows committed",
	}, []string{"log_name"})

	// AuthFailures counts rejected logins and tokens by reason.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_auth_failures_total",
		Help: "Total number of authentication failures by reason",
	}, []string{"reason"})

	// ActivityStreamConnections is the gauge of open activity websocket connections.
	ActivityStreamConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "snapfeed_activity_stream_connections",
		Help: "Number of open activity stream WebSocket connections",
	})

	// ActivityStreamDrops counts events dropped for slow or closed stream clients.
	ActivityStreamDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_activity_stream_drops_total",
		Help: "Total number of activity events dropped by reason",
	}, []string{"reason"})

	// VerificationMailsQueued counts verification messages handed to a sender.
	VerificationMailsQueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "snapfeed_verification_mails_total",
		Help: "Total number of verification mails by sender and outcome",
	}, []string{"sender", "outcome"})
)
