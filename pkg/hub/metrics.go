package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

// hubMetrics instruments the broadcast loop. Each hub owns its registry
// so tests can run several hubs without collector name collisions.
type hubMetrics struct {
	registry *prometheus.Registry

	broadcasts    prometheus.Counter
	forcedSamples prometheus.Counter
	sampleErrors  prometheus.Counter
	eventsFlushed prometheus.Counter
	subscribers   prometheus.Gauge
	droppedSinks  prometheus.Counter
}

func newHubMetrics() *hubMetrics {
	m := &hubMetrics{
		registry: prometheus.NewRegistry(),
		broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mlmon_hub_broadcasts_total",
			Help: "Total broadcast ticks that pushed a message to subscribers",
		}),
		forcedSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mlmon_hub_forced_samples_total",
			Help: "Off-tick broadcasts forced at job completion",
		}),
		sampleErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mlmon_hub_sample_errors_total",
			Help: "Sampler failures absorbed by the tick loop",
		}),
		eventsFlushed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mlmon_hub_events_flushed_total",
			Help: "Lifecycle events delivered to subscribers",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mlmon_hub_subscribers",
			Help: "Currently registered subscribers",
		}),
		droppedSinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mlmon_hub_dropped_subscribers_total",
			Help: "Subscribers removed after a failed push",
		}),
	}

	m.registry.MustRegister(
		m.broadcasts,
		m.forcedSamples,
		m.sampleErrors,
		m.eventsFlushed,
		m.subscribers,
		m.droppedSinks,
	)
	return m
}
