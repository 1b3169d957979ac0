package lobby

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the node counters exported on the status endpoint.
type Metrics struct {
	Datagrams      *prometheus.CounterVec
	Malformed      *prometheus.CounterVec
	ProtocolErrors *prometheus.CounterVec
	SendFailures   *prometheus.CounterVec
	ReceiveErrors  *prometheus.CounterVec
	Dropped        *prometheus.CounterVec
	Knocks         *prometheus.CounterVec
	Evictions      prometheus.Counter
	Members        prometheus.Gauge
}

// NewMetrics registers the collectors with reg. A nil reg leaves them
// unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Datagrams: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "datagrams_total",
			Help:      "Datagrams sent and received",
		}, []string{"role", "direction"}),
		Malformed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "malformed_datagrams_total",
			Help:      "Datagrams discarded because they did not decode",
		}, []string{"role"}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "protocol_errors_total",
			Help:      "Error commands sent (server) or received (client)",
		}, []string{"role", "code"}),
		SendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "send_failures_total",
			Help:      "Transport send failures",
		}, []string{"role"}),
		ReceiveErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "receive_errors_total",
			Help:      "Transport receive failures",
		}, []string{"role"}),
		Dropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "dropped_datagrams_total",
			Help:      "Datagrams lost because the receive queue was full",
		}, []string{"role"}),
		Knocks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "knocks_total",
			Help:      "Join requests by outcome",
		}, []string{"outcome"}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "lobby",
			Name:      "idle_evictions_total",
			Help:      "Members evicted for inactivity",
		}),
		Members: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "lobby",
			Name:      "members",
			Help:      "Occupied player slots",
		}),
	}
}
