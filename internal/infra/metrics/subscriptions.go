package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(subscriptionExtensions)
}

// mode: stack|reset
var subscriptionExtensions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_extensions_total",
		Help: "Subscription extensions by mode (stack onto active expiry vs reset from now).",
	},
	[]string{"mode"},
)

func IncSubscriptionExtension(mode string) {
	subscriptionExtensions.WithLabelValues(norm(mode)).Inc()
}
