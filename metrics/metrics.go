// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package metrics exports repair statistics and fault campaign outcomes to
// Prometheus.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	selfheal "github.com/saschpe/self-healing-sub000"
	"github.com/saschpe/self-healing-sub000/faultinject"
)

// Collector reads a selfheal.Stats on every scrape.
type Collector struct {
	stats       *selfheal.Stats
	silentFixes *prometheus.Desc
	bitRepairs  *prometheus.Desc
	detected    *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over stats with metric names under
// namespace.
func NewCollector(namespace string, stats *selfheal.Stats) *Collector {
	return &Collector{
		stats: stats,
		silentFixes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "silent_fixes_total"),
			"Faults repaired without surfacing an error.", nil, nil),
		bitRepairs: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "bit_repairs_total"),
			"Payload bit flips corrected by advanced recovery.", nil, nil),
		detected: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "detected_total"),
			"Uncorrectable faults reported as errors.", nil, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.silentFixes
	ch <- c.bitRepairs
	ch <- c.detected
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.stats.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.silentFixes, prometheus.CounterValue, float64(snapshot.SilentFixes))
	ch <- prometheus.MustNewConstMetric(c.bitRepairs, prometheus.CounterValue, float64(snapshot.BitRepairs))
	ch <- prometheus.MustNewConstMetric(c.detected, prometheus.CounterValue, float64(snapshot.Detected))
}

// Outcomes counts fault trials by target and outcome.
type Outcomes struct {
	Trials *prometheus.CounterVec
}

// NewOutcomes registers the trial counter with reg.
func NewOutcomes(reg prometheus.Registerer, namespace string) (*Outcomes, error) {
	outcomes := &Outcomes{
		Trials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fault_trials_total",
			Help:      "Injected fault trials by target and outcome.",
		}, []string{"target", "outcome"}),
	}
	if err := reg.Register(outcomes.Trials); err != nil {
		return nil, fmt.Errorf("register fault_trials_total: %w", err)
	}
	return outcomes, nil
}

// Observe adds the tallies of report under target.
func (o *Outcomes) Observe(target string, report faultinject.Report) {
	o.Trials.WithLabelValues(target, faultinject.Repaired.String()).Add(float64(report.Repaired))
	o.Trials.WithLabelValues(target, faultinject.Detected.String()).Add(float64(report.Detected))
	o.Trials.WithLabelValues(target, faultinject.Missed.String()).Add(float64(report.Missed))
}
