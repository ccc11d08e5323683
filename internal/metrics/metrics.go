// Package metrics provides Prometheus-based metrics for the presence
// monitor: cycle outcomes, per-strategy scan behavior, presence
// transitions, and notification delivery.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "lanwatch"

	subsystemCycle  = "cycle"
	subsystemScan   = "scan"
	subsystemNotify = "notify"
)

// Metrics holds all Prometheus collectors.
type Metrics struct {
	cyclesTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram

	scanDuration *prometheus.HistogramVec
	scanErrors   *prometheus.CounterVec

	eventsTotal        *prometheus.CounterVec
	devicesOnline      prometheus.Gauge
	devicesTracked     prometheus.Gauge
	notificationsTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates the metrics set with its own registry, including the
// standard Go and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{registry: registry}

	m.cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemCycle,
			Name:      "total",
			Help:      "Total number of scan cycles by outcome",
		},
		[]string{"status"},
	)

	m.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemCycle,
			Name:      "duration_seconds",
			Help:      "Duration of full scan cycles in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
		},
	)

	m.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of individual scan sweeps in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"strategy"},
	)

	m.scanErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "errors_total",
			Help:      "Total number of scan failures by strategy",
		},
		[]string{"strategy"},
	)

	m.eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Total number of presence transitions by kind",
		},
		[]string{"kind"},
	)

	m.devicesOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_online",
			Help:      "Number of devices currently present",
		},
	)

	m.devicesTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "devices_tracked",
			Help:      "Number of devices with a presence record",
		},
	)

	m.notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemNotify,
			Name:      "total",
			Help:      "Total number of notifications by delivery outcome",
		},
		[]string{"status"},
	)

	registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.scanDuration,
		m.scanErrors,
		m.eventsTotal,
		m.devicesOnline,
		m.devicesTracked,
		m.notificationsTotal,
	)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// RecordCycle records one completed cycle.
func (m *Metrics) RecordCycle(status string, seconds float64) {
	m.cyclesTotal.WithLabelValues(status).Inc()
	m.cycleDuration.Observe(seconds)
}

// RecordScan records one strategy sweep.
func (m *Metrics) RecordScan(strategy string, seconds float64) {
	m.scanDuration.WithLabelValues(strategy).Observe(seconds)
}

// RecordScanError counts a strategy failure.
func (m *Metrics) RecordScanError(strategy string) {
	m.scanErrors.WithLabelValues(strategy).Inc()
}

// RecordEvent counts one presence transition.
func (m *Metrics) RecordEvent(kind string) {
	m.eventsTotal.WithLabelValues(kind).Inc()
}

// SetDevices updates the online and tracked device gauges.
func (m *Metrics) SetDevices(online, tracked int) {
	m.devicesOnline.Set(float64(online))
	m.devicesTracked.Set(float64(tracked))
}

// RecordNotification counts one delivery attempt outcome.
func (m *Metrics) RecordNotification(status string) {
	m.notificationsTotal.WithLabelValues(status).Inc()
}

// Handler exposes the registry in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
