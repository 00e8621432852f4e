// Package metrics holds the Prometheus collectors for dispatch and workflow
// outcomes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the engine collectors. It implements dispatch.Observer.
type Metrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	workflowRuns     *prometheus.CounterVec
	workflowDuration *prometheus.HistogramVec
	rejected         *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uiengine",
			Name:      "dispatch_total",
			Help:      "UI thread dispatches by call and outcome.",
		}, []string{"call", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uiengine",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent waiting for UI thread dispatches.",
			Buckets:   []float64{.005, .025, .1, .5, 1, 5, 15, 45, 180},
		}, []string{"call"}),
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uiengine",
			Name:      "workflow_runs_total",
			Help:      "Finished workflow runs by endpoint and ok flag.",
		}, []string{"endpoint", "ok"}),
		workflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "uiengine",
			Name:      "workflow_duration_seconds",
			Help:      "Workflow run duration including the host lock wait.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 3, 10),
		}, []string{"endpoint"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uiengine",
			Name:      "workflow_rejected_total",
			Help:      "Workflow calls refused before running, by endpoint and reason.",
		}, []string{"endpoint", "reason"}),
	}
	m.registry.MustRegister(
		m.dispatchTotal,
		m.dispatchDuration,
		m.workflowRuns,
		m.workflowDuration,
		m.rejected,
		collectors.NewGoCollector(),
	)
	return m
}

// ObserveDispatch implements dispatch.Observer.
func (m *Metrics) ObserveDispatch(name, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(name, outcome).Inc()
	m.dispatchDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// ObserveRun counts one finished workflow run.
func (m *Metrics) ObserveRun(endpoint string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.workflowRuns.WithLabelValues(endpoint, strconv.FormatBool(ok)).Inc()
	m.workflowDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveRejected counts a call refused by the guard.
func (m *Metrics) ObserveRejected(endpoint, reason string) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(endpoint, reason).Inc()
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
