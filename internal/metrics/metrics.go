// Package metrics holds the Prometheus collectors of the service.
//
//   - tradewatch_webhook_events_total{action,outcome}
//   - tradewatch_trades_closed_total{reason}
//   - tradewatch_notifications_total{alert_type,result}
//
// Collectors are registered in init() and served at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Webhook outcomes.
const (
	OutcomeApplied  = "applied"
	OutcomeIgnored  = "ignored"
	OutcomeRejected = "rejected"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Notification results.
const (
	ResultDelivered  = "delivered"
	ResultSkipped    = "skipped"
	ResultDuplicate  = "duplicate"
	ResultFailed     = "failed"
	ResultSuppressed = "suppressed"
)

var (
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradewatch_webhook_events_total",
			Help: "Trading webhooks processed, by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	TradesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradewatch_trades_closed_total",
			Help: "Trades closed, by close reason",
		},
		[]string{"reason"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradewatch_notifications_total",
			Help: "Notification deliveries, by alert type and result",
		},
		[]string{"alert_type", "result"},
	)
)

func init() {
	prometheus.MustRegister(WebhookEvents, TradesClosed, Notifications)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
