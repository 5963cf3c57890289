// SPDX-FileCopyrightText: 2026 Bonial International GmbH
// SPDX-License-Identifier: Apache-2.0

package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bonial-oss/physec-risk/internal/types"
)

const (
	metricsNamespace = "physec"
	metricsSubsystem = "risk"
)

// Metrics are the run counters. A nil *Metrics records nothing.
type Metrics struct {
	// RunsTotal counts finished runs. Labels: domain, mode.
	RunsTotal *prometheus.CounterVec
	// ThreatsTotal counts scored threats. Labels: domain, method, level.
	ThreatsTotal *prometheus.CounterVec
	// AIFailuresTotal counts assessor failures that fell back. Labels: domain.
	AIFailuresTotal *prometheus.CounterVec
	// SkippedTotal counts threats skipped for taxonomy defects. Labels: domain.
	SkippedTotal *prometheus.CounterVec
	RunDuration  prometheus.Histogram
}

// NewMetrics registers the run metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "runs_total",
			Help:      "Finished assessment runs by scoring mode.",
		}, []string{"domain", "mode"}),
		ThreatsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "threats_total",
			Help:      "Scored threats by method and risk level.",
		}, []string{"domain", "method", "level"}),
		AIFailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "ai_failures_total",
			Help:      "AI assessments that failed and fell back to the algorithmic path.",
		}, []string{"domain"}),
		SkippedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "skipped_threats_total",
			Help:      "Threats skipped because their taxonomy references do not resolve.",
		}, []string{"domain"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of assessment runs.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
}

func (m *Metrics) threat(domain types.Domain, s types.ThreatScore) {
	if m == nil {
		return
	}
	m.ThreatsTotal.WithLabelValues(string(domain), string(s.Method), string(s.RiskLevel)).Inc()
}

func (m *Metrics) aiFailure(domain types.Domain) {
	if m == nil {
		return
	}
	m.AIFailuresTotal.WithLabelValues(string(domain)).Inc()
}

func (m *Metrics) skipped(domain types.Domain) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(string(domain)).Inc()
}

func (m *Metrics) run(domain types.Domain, mode types.Mode, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(string(domain), string(mode)).Inc()
	m.RunDuration.Observe(d.Seconds())
}
