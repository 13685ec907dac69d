package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stitchwear",
		Name:      "orders_created_total",
		Help:      "Orders accepted at checkout, by payment method.",
	}, []string{"method"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stitchwear",
		Name:      "order_transitions_total",
		Help:      "Accepted order status transitions, by target status.",
	}, []string{"to"})

	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stitchwear",
		Name:      "payment_webhook_events_total",
		Help:      "Payment gateway callbacks, by handling outcome.",
	}, []string{"outcome"})

	LowStockAlerts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stitchwear",
		Name:      "low_stock_alerts_total",
		Help:      "Low-stock events emitted by the inventory ledger.",
	})

	CouponRedemptions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "stitchwear",
		Name:      "coupon_redemptions_total",
		Help:      "Coupon uses consumed at order confirmation.",
	})
)

// Handler exposes the default registry for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
