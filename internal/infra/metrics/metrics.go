// Package metrics exposes reconciliation counters in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "week_notification_agent"

// Metrics implements app.DispatchMetrics on a private registry.
type Metrics struct {
	registry        *prometheus.Registry
	ticks           *prometheus.CounterVec
	tickDuration    prometheus.Histogram
	deliveries      *prometheus.CounterVec
	activeContracts prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Reconciliation passes by result.",
		}, []string{"result"}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Duration of reconciliation passes.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Notification delivery attempts by result.",
		}, []string{"result"}),
		activeContracts: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_contracts",
			Help:      "Contracts evaluated by the last reconciliation pass.",
		}),
	}
	m.registry.MustRegister(
		m.ticks,
		m.tickDuration,
		m.deliveries,
		m.activeContracts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) TickFinished(result string, elapsed time.Duration, contracts int) {
	m.ticks.WithLabelValues(result).Inc()
	m.tickDuration.Observe(elapsed.Seconds())
	if result == "completed" {
		m.activeContracts.Set(float64(contracts))
	}
}

func (m *Metrics) DeliveryAttempted(result string) {
	m.deliveries.WithLabelValues(result).Inc()
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
