package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fling_relay"

// Metrics holds the Prometheus instrumentation for a relay Server.
type Metrics struct {
	ActivePairs      prometheus.Gauge
	PairsTotal       prometheus.Counter
	RejectedCapacity prometheus.Counter
	TimedOutWaiting  prometheus.Counter
	ConnectionsTotal prometheus.Counter
}

// NewMetrics registers a fresh Metrics set against the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers a fresh Metrics set against reg, so tests
// can use their own registry instead of colliding on the global default.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActivePairs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_pairs",
			Help:      "Number of currently paired (splicing) peer connections",
		}),
		PairsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pairs_total",
			Help:      "Total number of peer pairs formed",
		}),
		RejectedCapacity: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_capacity_total",
			Help:      "Total connections rejected because the pairing table was at capacity",
		}),
		TimedOutWaiting: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timed_out_waiting_total",
			Help:      "Total connections that reached peer_timeout waiting for a partner",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total incoming connections accepted",
		}),
	}
}
