// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "beehive"

// Metrics groups the gateway's Prometheus collectors. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	Ticks            prometheus.Counter
	TickDuration     prometheus.Histogram
	Evaluations      prometheus.Counter
	CriticalHives    prometheus.Gauge
	DisplayAlerts    *prometheus.GaugeVec
	Notifications    *prometheus.CounterVec
	StaleDispatches  prometheus.Counter
	BusEvents        *prometheus.CounterVec
	IngestedReadings prometheus.Counter
	RejectedReadings prometheus.Counter
	WebsocketClients prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Telemetry refresh ticks processed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Time spent refreshing and aggregating one tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		Evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Hive evaluations run by the detector.",
		}),
		CriticalHives: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "critical_hives",
			Help:      "Hives whose latest evaluation is critical.",
		}),
		DisplayAlerts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_alerts",
			Help:      "Aggregated alerts currently displayed, by severity.",
		}, []string{"severity"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification attempts by rule, channel and outcome.",
		}, []string{"rule", "channel", "outcome"}),
		StaleDispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_dispatches_total",
			Help:      "Dispatch reports discarded because a newer tick superseded them.",
		}),
		BusEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_events_total",
			Help:      "Alert events handed to the event bus, by outcome.",
		}, []string{"outcome"}),
		IngestedReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingested_readings_total",
			Help:      "Sensor readings accepted on the ingest endpoint.",
		}),
		RejectedReadings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_readings_total",
			Help:      "Sensor readings rejected on the ingest endpoint.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websocket_clients",
			Help:      "Connected dashboard clients.",
		}),
	}

	m.Registry.MustRegister(
		m.Ticks,
		m.TickDuration,
		m.Evaluations,
		m.CriticalHives,
		m.DisplayAlerts,
		m.Notifications,
		m.StaleDispatches,
		m.BusEvents,
		m.IngestedReadings,
		m.RejectedReadings,
		m.WebsocketClients,
		collectors.NewGoCollector(),
	)
	return m
}

// NotificationOutcome records one transport attempt.
func (m *Metrics) NotificationOutcome(rule, channel string, ok bool) {
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	m.Notifications.WithLabelValues(rule, channel, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
