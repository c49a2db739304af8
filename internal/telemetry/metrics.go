// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing
// for the dashboard.
package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sithafal/sithafal/internal/notify"
)

const namespace = "sithafal"

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the default one.
type Metrics struct {
	registry      *prometheus.Registry
	actions       *prometheus.CounterVec
	actionRows    *prometheus.CounterVec
	notifications *prometheus.CounterVec
	sessions      prometheus.Gauge
	rowsLoaded    prometheus.Gauge
	pageViews     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quarantine",
			Name:      "actions_total",
			Help:      "Completed quarantine actions by kind.",
		}, []string{"action"}),
		actionRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quarantine",
			Name:      "rows_removed_total",
			Help:      "Rows removed from quarantine tables by action kind.",
		}, []string{"action"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications shown by level.",
		}, []string{"level"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dashboard_sessions",
			Help:      "Open dashboard sessions.",
		}),
		rowsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "quarantine",
			Name:      "source_rows",
			Help:      "Rows returned by the last row source load.",
		}),
		pageViews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "page_views_total",
			Help:      "Dashboard page navigations by resolved page.",
		}, []string{"page"}),
	}
	m.registry.MustRegister(
		m.actions, m.actionRows, m.notifications, m.sessions, m.rowsLoaded, m.pageViews,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAction records a completed quarantine action.
func (m *Metrics) ObserveAction(action string, rows int) {
	m.actions.WithLabelValues(action).Inc()
	m.actionRows.WithLabelValues(action).Add(float64(rows))
}

// Publish counts a notification. Metrics is a notify.Sink.
func (m *Metrics) Publish(_ context.Context, n notify.Notification) error {
	m.notifications.WithLabelValues(string(n.Level)).Inc()
	return nil
}

func (m *Metrics) SessionOpened() { m.sessions.Inc() }
func (m *Metrics) SessionClosed() { m.sessions.Dec() }

// RowsLoaded records the size of the latest row source load.
func (m *Metrics) RowsLoaded(n int) { m.rowsLoaded.Set(float64(n)) }

// PageView counts a navigation to page.
func (m *Metrics) PageView(page string) { m.pageViews.WithLabelValues(page).Inc() }

// Registry exposes the underlying registry for tests and custom handlers.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
