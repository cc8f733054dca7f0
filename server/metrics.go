// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all engine-facing metrics.
const metricsNamespace = "mrw"

// Metrics holds all Prometheus metrics for the planning service.
//
// Description:
//
//	Counters and histograms for solve traffic and search effort.
//	Initialize once at startup via InitMetrics().
//
// Thread Safety:
//
//	All metric operations are thread-safe via Prometheus's internal
//	locking.
type Metrics struct {
	// SolvesTotal counts solve requests by outcome and source.
	// Labels: status (found, exhausted, error), source (engine, cache)
	SolvesTotal *prometheus.CounterVec

	// WalksTotal counts random walks started by the engine.
	WalksTotal prometheus.Counter

	// SolveSeconds measures solve latency.
	// Labels: source (engine, cache)
	SolveSeconds *prometheus.HistogramVec

	// PlanLength measures the length of found plans in actions.
	PlanLength prometheus.Histogram
}

// DefaultMetrics is the singleton instance of Metrics.
// Initialized by InitMetrics().
var DefaultMetrics *Metrics

// InitMetrics initializes the default metrics instance.
//
// Description:
//
//	Creates and registers all Prometheus metrics on the default
//	registry. Call once at application startup; a second call panics
//	on duplicate registration.
//
// Outputs:
//
//	*Metrics - The initialized metrics instance.
func InitMetrics() *Metrics {
	DefaultMetrics = &Metrics{
		SolvesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "solves_total",
				Help:      "Total solve requests by outcome and source",
			},
			[]string{"status", "source"},
		),

		WalksTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "walks_total",
				Help:      "Total random walks started by the engine",
			},
		),

		SolveSeconds: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "solve_seconds",
				Help:      "Solve latency in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60},
			},
			[]string{"source"},
		),

		PlanLength: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "plan_length",
				Help:      "Length of found plans in actions",
				Buckets:   []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
	}

	return DefaultMetrics
}

// SolveStatus labels a solve outcome for metrics.
type SolveStatus string

const (
	// SolveStatusFound indicates a plan was found.
	SolveStatusFound SolveStatus = "found"

	// SolveStatusExhausted indicates the budget ran out with no plan.
	SolveStatusExhausted SolveStatus = "exhausted"

	// SolveStatusError indicates the solve failed.
	SolveStatusError SolveStatus = "error"
)

// SolveSource labels where a solve response came from.
type SolveSource string

const (
	// SolveSourceEngine indicates the engine ran the search.
	SolveSourceEngine SolveSource = "engine"

	// SolveSourceCache indicates the plan cache served the response.
	SolveSourceCache SolveSource = "cache"
)

// RecordSolve records a completed solve request.
//
// Inputs:
//
//	status - The solve outcome.
//	source - Whether the engine or the cache answered.
//	elapsed - Wall time spent answering.
func (m *Metrics) RecordSolve(status SolveStatus, source SolveSource, elapsed time.Duration) {
	m.SolvesTotal.WithLabelValues(string(status), string(source)).Inc()
	m.SolveSeconds.WithLabelValues(string(source)).Observe(elapsed.Seconds())
}

// RecordWalks adds to the walk counter.
func (m *Metrics) RecordWalks(n int64) {
	if n > 0 {
		m.WalksTotal.Add(float64(n))
	}
}

// RecordPlanLength records the length of a found plan.
func (m *Metrics) RecordPlanLength(length int) {
	if length >= 0 {
		m.PlanLength.Observe(float64(length))
	}
}
