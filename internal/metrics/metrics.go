// internal/metrics/metrics.go
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// WebhookEventsTotal counts provider deliveries by event type and outcome
	// (applied, duplicate, unhandled, error, invalid_signature).
	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_webhook_events_total",
			Help: "Payment provider webhook deliveries by event type and outcome",
		},
		[]string{"event_type", "outcome"},
	)

	TransactionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_transaction_transitions_total",
			Help: "Transaction state transitions by target status",
		},
		[]string{"status"},
	)

	ConversionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_conversions_total",
			Help: "Affiliate conversions recorded",
		},
	)

	PayoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_payouts_total",
			Help: "Payout requests by outcome",
		},
		[]string{"outcome"},
	)

	// ReconciliationAlertsTotal counts external-committed/local-failed states.
	// Any increase here needs operator attention; these are never auto-retried.
	ReconciliationAlertsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_reconciliation_alerts_total",
			Help: "Reconciliation alerts raised",
		},
	)
)

// Handler exposes the prometheus registry for the /metrics route.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
