package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics holds the Prometheus instruments for one server instance.
type metrics struct {
	eventsTotal      *prometheus.CounterVec
	eventDuration    *prometheus.HistogramVec
	patchesSent      prometheus.Counter
	activeSessions   prometheus.Gauge
	detachedSessions prometheus.Gauge
	reconnects       prometheus.Counter
	signalWrites     prometheus.Counter
	effectRuns       prometheus.Counter
}

func newMetrics(registry prometheus.Registerer) *metrics {
	factory := promauto.With(registry)

	return &metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "events_total",
			Help:      "Total client events processed",
		}, []string{"name", "status"}),

		eventDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reactor",
			Name:      "event_duration_seconds",
			Help:      "Event dispatch duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"name"}),

		patchesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "patches_sent_total",
			Help:      "Total patches streamed to clients",
		}),

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "reactor",
			Name:      "active_sessions",
			Help:      "Number of attached websocket sessions",
		}),

		detachedSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "reactor",
			Name:      "detached_sessions",
			Help:      "Number of detached but resumable sessions",
		}),

		reconnects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "reconnects_total",
			Help:      "Total sessions resumed from a snapshot",
		}),

		signalWrites: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "signal_writes_total",
			Help:      "Total signal writes across all session runtimes",
		}),

		effectRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "reactor",
			Name:      "effect_runs_total",
			Help:      "Total effect runs across all session runtimes",
		}),
	}
}
