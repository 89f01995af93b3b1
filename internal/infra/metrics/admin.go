package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(adminActionsTotal) }

var adminActionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admin_actions_total",
		Help: "Tracks admin order actions.",
	},
	[]string{"action", "status"}, // action: activate|refund|gateway_query, status: ok|error
)

func IncAdminAction(action, status string) {
	adminActionsTotal.WithLabelValues(norm(action), norm(status)).Inc()
}
