// Copyright 2024 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package pluginmanager

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/opensearch-plugins/internal/plugin"
	"github.com/canonical/opensearch-plugins/internal/plugin/manager"
)

const metricsNamespace = "opensearch_plugins"

// Values of the result label of the reconcile counter.
const (
	resultSuccess  = "success"
	resultNotReady = "not-ready"
	resultError    = "error"
)

// Collector is a prometheus.Collector that collects metrics about the
// plugin manager worker.
type Collector struct {
	reconciles *prometheus.CounterVec
	actions    *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		reconciles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_total",
				Help:      "The number of reconciliation cycles by result.",
			}, []string{"result"},
		),
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "actions_total",
				Help:      "The number of actions taken on plugins.",
			}, []string{"plugin", "action"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "reconcile_duration_seconds",
				Help:      "The time taken by a reconciliation cycle.",
				Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.reconciles.Describe(ch)
	c.actions.Describe(ch)
	c.duration.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.reconciles.Collect(ch)
	c.actions.Collect(ch)
	c.duration.Collect(ch)
}

func (c *Collector) observe(result manager.Result, err error, elapsed time.Duration) {
	label := resultSuccess
	switch {
	case plugin.IsRetryable(err):
		label = resultNotReady
	case err != nil:
		label = resultError
	}
	c.reconciles.WithLabelValues(label).Inc()
	c.duration.Observe(elapsed.Seconds())

	for _, pr := range result.Plugins {
		if pr.Action == manager.ActionNone {
			continue
		}
		c.actions.WithLabelValues(pr.Name, string(pr.Action)).Inc()
	}
}
