package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts relay traffic. A nil registerer leaves them unregistered.
type Metrics struct {
	Published prometheus.Counter
	Dropped   prometheus.Counter
	Connected prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounter(prometheus.CounterOpts{
			Name: "rakshak_relay_published_total",
			Help: "Location updates handed to the broker.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rakshak_relay_dropped_total",
			Help: "Location updates dropped because the broker connection was down.",
		}),
		Connected: f.NewGauge(prometheus.GaugeOpts{
			Name: "rakshak_relay_connected",
			Help: "1 while the broker connection is up.",
		}),
	}
}
