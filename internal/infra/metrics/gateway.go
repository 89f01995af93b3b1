package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(gatewayRequestsTotal) }

var gatewayRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_requests_total",
		Help: "Payment gateway HTTP attempts by operation and outcome.",
	},
	[]string{"op", "outcome"}, // outcome: ok, retry, fatal, exhausted
)

func IncGatewayRequest(op, outcome string) {
	gatewayRequestsTotal.WithLabelValues(norm(op), norm(outcome)).Inc()
}
