package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func init() {
	register(
		ordersTotal,
		paymentsRevenueTotal,
		pendingStaleOrders,
	)
}

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_orders_total",
			Help: "Payment orders by provider and status.",
		},
		[]string{"provider", "status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total monetary value of settled orders, labeled by currency.",
		},
		[]string{"currency"},
	)

	pendingStaleOrders = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payment_orders_pending_stale",
			Help: "Pending orders older than the reconciler's stale threshold.",
		},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncOrder(provider, status string) {
	ordersTotal.WithLabelValues(norm(provider), norm(status)).Inc()
}

func AddRevenue(currency string, amount decimal.Decimal) {
	f, _ := amount.Float64()
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(f)
}

func SetStalePending(n int) {
	pendingStaleOrders.Set(float64(n))
}
