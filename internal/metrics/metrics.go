// Package metrics instruments orchestration with Prometheus counters and keeps
// an in-process summary for the REPL's stats view.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zira"

// Recorder owns the Prometheus collectors. All methods are safe on a nil
// *Recorder so callers can leave metrics disabled.
type Recorder struct {
	registry *prometheus.Registry

	orchestrations   *prometheus.CounterVec
	orchestrationDur *prometheus.HistogramVec
	routerHits       *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	retries          prometheus.Counter
	activeSessions   prometheus.Gauge

	collector *Collector
}

// NewRecorder registers the collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		orchestrations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orchestrations_total",
				Help:      "Total number of handled inputs by outcome and source",
			},
			[]string{"outcome", "source"},
		),

		orchestrationDur: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "orchestration_duration_seconds",
				Help:      "Time to handle one input in seconds",
				Buckets:   []float64{.005, .05, .25, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"source"},
		),

		routerHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "router_hits_total",
				Help:      "Inputs answered by the command router, by intent",
			},
			[]string{"intent"},
		),

		toolCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tool_calls_total",
				Help:      "Tool invocations by tool and status",
			},
			[]string{"tool", "status"},
		),

		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tool_duration_seconds",
				Help:      "Tool invocation latency in seconds",
			},
			[]string{"tool"},
		),

		retries: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "engine_retries_total",
				Help:      "Rate-limit retries against the reasoning engine",
			},
		),

		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of sessions held in memory",
			},
		),

		collector: NewCollector(),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Collector returns the in-process summary fed by this recorder.
func (r *Recorder) Collector() *Collector {
	if r == nil {
		return nil
	}
	return r.collector
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveOrchestration records one handled input.
func (r *Recorder) ObserveOrchestration(source, outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.orchestrations.WithLabelValues(outcome, source).Inc()
	r.orchestrationDur.WithLabelValues(source).Observe(took.Seconds())
	r.collector.recordRequest(source, outcome, took)
}

// ObserveRouterHit records the intent of a routed input.
func (r *Recorder) ObserveRouterHit(intent string) {
	if r == nil {
		return
	}
	r.routerHits.WithLabelValues(intent).Inc()
}

// ObserveTool matches the tools.WithObserver callback.
func (r *Recorder) ObserveTool(name string, err error, took time.Duration) {
	if r == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	r.toolCalls.WithLabelValues(name, status).Inc()
	r.toolDuration.WithLabelValues(name).Observe(took.Seconds())
	r.collector.recordTool(name, err)
}

// ObserveRetry matches the agent.RetryNotify callback.
func (r *Recorder) ObserveRetry(attempt int, delay time.Duration, _ error) {
	if r == nil {
		return
	}
	r.retries.Inc()
	r.collector.recordRetry(attempt, delay)
}

// SetActiveSessions publishes the number of live sessions.
func (r *Recorder) SetActiveSessions(n int) {
	if r == nil {
		return
	}
	r.activeSessions.Set(float64(n))
	r.collector.setActiveSessions(n)
}
