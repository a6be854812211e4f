// Package metrics exposes Prometheus instrumentation for the widget runtime.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector wraps the runtime's Prometheus metrics. It owns a private
// registry so tests and embedded hosts never collide with the global one.
type Collector struct {
	registry *prometheus.Registry

	PipelineDeliveries *prometheus.CounterVec
	HandlerErrors      *prometheus.CounterVec
	Broadcasts         *prometheus.CounterVec
	StateWrites        *prometheus.CounterVec
	ActiveWidgets      prometheus.Gauge
}

// NewCollector creates a Collector with its own Prometheus registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		PipelineDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickernest",
			Name:      "pipeline_deliveries_total",
			Help:      "Total values routed through pipeline connections",
		}, []string{"output_port"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickernest",
			Name:      "widget_handler_errors_total",
			Help:      "Total widget handler failures caught by the bridge",
		}, []string{"hook"}),
		Broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickernest",
			Name:      "broadcast_emissions_total",
			Help:      "Total broadcast events emitted through the bus",
		}, []string{"event"}),
		StateWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stickernest",
			Name:      "state_writes_total",
			Help:      "Total widget state writes by outcome",
		}, []string{"status"}),
		ActiveWidgets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "stickernest",
			Name:      "active_widgets",
			Help:      "Number of currently placed widget instances",
		}),
	}

	reg.MustRegister(
		c.PipelineDeliveries,
		c.HandlerErrors,
		c.Broadcasts,
		c.StateWrites,
		c.ActiveWidgets,
	)
	return c
}

// Handler returns an HTTP handler that serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RecordDelivery counts one pipeline fan-out.
func (c *Collector) RecordDelivery(outputPort string, targets int) {
	c.PipelineDeliveries.WithLabelValues(outputPort).Add(float64(targets))
}

// RecordHandlerError counts one caught handler failure.
func (c *Collector) RecordHandlerError(hook string) {
	c.HandlerErrors.WithLabelValues(hook).Inc()
}

// RecordBroadcast counts one broadcast emission.
func (c *Collector) RecordBroadcast(event string) {
	c.Broadcasts.WithLabelValues(event).Inc()
}

// AddWidgets moves the active widget gauge by delta.
func (c *Collector) AddWidgets(delta int) {
	c.ActiveWidgets.Add(float64(delta))
}
