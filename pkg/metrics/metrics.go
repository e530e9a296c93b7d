// Package metrics exposes the Prometheus instrumentation surfaced by the
// subscription Registry, built on github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the counters and gauges a Registry updates as
// subscriptions move through their lifecycle and as evaluators fail.
type Metrics struct {
	SubscriptionsActive    prometheus.Gauge
	SubscriptionsCommitted prometheus.Counter
	EvaluatorFailures      prometheus.Counter
	PublishedValues        prometheus.Counter
}

// New creates a Metrics bound to the given namespace. It does not
// register the collectors; call MustRegister for that.
func New(namespace string) *Metrics {
	m := &Metrics{
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "active",
			Help:      "Number of subscriptions currently registered, in any phase.",
		}),
		SubscriptionsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "committed_total",
			Help:      "Total number of subscriptions that have completed Commit.",
		}),
		EvaluatorFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "evaluator_failures_total",
			Help:      "Total number of live-published inputs dropped due to an expression error (filter errors and errors during Commit are not counted).",
		}),
		PublishedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "published_values_total",
			Help:      "Total number of input values passed to Publish.",
		}),
	}
	return m
}

// MustRegister registers every collector in m with reg, panicking on a
// duplicate-registration error.
func (m *Metrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.SubscriptionsActive,
		m.SubscriptionsCommitted,
		m.EvaluatorFailures,
		m.PublishedValues,
	)
}
