package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mijob_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	GateDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_gate_decisions_total",
			Help: "Entitlement decisions by action, policy and outcome",
		},
		[]string{"action", "policy", "outcome"},
	)

	SettlementFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_settlement_failures_total",
			Help: "Debits that failed after the guarded action succeeded",
		},
		[]string{"action"},
	)

	LedgerTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_ledger_transactions_total",
			Help: "Total number of ledger transactions appended",
		},
		[]string{"kind"},
	)

	LedgerTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_ledger_tokens_total",
			Help: "Tokens moved through the ledger",
		},
		[]string{"kind"},
	)

	TokenBalance = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mijob_token_balance_after",
			Help:    "Balance left on a ledger after each transaction",
			Buckets: []float64{0, 2, 5, 10, 15, 25, 50, 100, 250},
		},
	)

	MissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_missions_total",
			Help: "Missions by lifecycle event",
		},
		[]string{"event"},
	)

	ConversationsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mijob_conversations_started_total",
			Help: "Total number of conversations opened",
		},
	)

	MessagesSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mijob_messages_sent_total",
			Help: "Total number of messages sent",
		},
	)

	EmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_emails_sent_total",
			Help: "Total number of emails sent",
		},
		[]string{"type", "status"},
	)

	EmailQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mijob_email_queue_length",
			Help: "Current length of email queue",
		},
	)

	WebsocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mijob_websocket_connections",
			Help: "Open websocket connections",
		},
	)

	SubscriptionsActivatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mijob_subscriptions_activated_total",
			Help: "Total number of subscription activations",
		},
		[]string{"plan"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordGateDecision(action, policy, outcome string) {
	GateDecisionsTotal.WithLabelValues(action, policy, outcome).Inc()
}

func RecordSettlementFailure(action string) {
	SettlementFailuresTotal.WithLabelValues(action).Inc()
}

func RecordLedgerTransaction(kind string, amount int64) {
	LedgerTransactionsTotal.WithLabelValues(kind).Inc()
	LedgerTokensTotal.WithLabelValues(kind).Add(float64(amount))
}

func ObserveTokenBalance(balance int64) {
	TokenBalance.Observe(float64(balance))
}

func RecordMission(event string) {
	MissionsTotal.WithLabelValues(event).Inc()
}

func RecordConversationStarted() {
	ConversationsStartedTotal.Inc()
}

func RecordMessage() {
	MessagesSentTotal.Inc()
}

func RecordEmail(emailType, status string) {
	EmailsSentTotal.WithLabelValues(emailType, status).Inc()
}

func RecordSubscription(plan string) {
	SubscriptionsActivatedTotal.WithLabelValues(plan).Inc()
}
