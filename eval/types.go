// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package eval defines the evaluation framework for planner components:
// correctness properties, metric definitions, health checks, and the
// registry that ties components to the verification tooling.
package eval

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound is returned when a component is not found in the registry.
	ErrNotFound = errors.New("component not found")

	// ErrAlreadyRegistered is returned when attempting to register a duplicate.
	ErrAlreadyRegistered = errors.New("component already registered")

	// ErrNilComponent is returned when attempting to register nil.
	ErrNilComponent = errors.New("component must not be nil")

	// ErrInvalidProperty is returned when a property is malformed.
	ErrInvalidProperty = errors.New("invalid property definition")

	// ErrPropertyFailed is returned when a property check fails.
	ErrPropertyFailed = errors.New("property check failed")

	// ErrHealthCheckFailed is returned when a health check fails.
	ErrHealthCheckFailed = errors.New("health check failed")
)

// -----------------------------------------------------------------------------
// Core Interfaces
// -----------------------------------------------------------------------------

// Evaluable is the interface that all testable/benchmarkable components
// implement. This is the foundation of the evaluation framework.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Evaluable interface {
	// Name returns a unique identifier for metrics and logging.
	// The name should be stable across versions and suitable for use
	// in metric labels (lowercase, underscore-separated).
	//
	// Example: "mrw_engine", "grounder"
	Name() string

	// Properties returns the correctness properties this component guarantees.
	// These are used by the property-based testing framework.
	// An empty slice indicates no properties to verify.
	Properties() []Property

	// Metrics returns the metrics this component exposes.
	// These are used by the benchmark and monitoring systems.
	// An empty slice indicates no custom metrics.
	Metrics() []MetricDefinition

	// HealthCheck verifies the component is functioning correctly.
	// Returns nil if healthy, error with details otherwise.
	//
	// Inputs:
	//   - ctx: Context for cancellation. Must not be nil.
	//
	// Outputs:
	//   - error: nil if healthy, descriptive error otherwise.
	HealthCheck(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// Property Definition
// -----------------------------------------------------------------------------

// Property defines a correctness invariant for testing.
// Properties should be independent and composable.
//
// Example:
//
//	Property{
//	    Name: "plans_replay_to_goal",
//	    Description: "Every plan the engine returns replays to a goal state",
//	    Check: func(input, output any) error { ... },
//	    Generator: func() any { ... },
//	}
type Property struct {
	// Name is a unique identifier for this property.
	// Should be lowercase with underscores (e.g., "best_length_monotonic").
	Name string

	// Description explains what this property verifies.
	// Should be a complete sentence.
	Description string

	// Check verifies the property holds for the given input/output pair.
	// Checks that run the component themselves receive the generated
	// input and a nil output.
	//
	// Inputs:
	//   - input: The input that was provided to the component.
	//   - output: The output that was produced, or nil.
	//
	// Outputs:
	//   - error: nil if property holds, descriptive error otherwise.
	Check func(input any, output any) error

	// Generator produces random valid inputs for property testing.
	// Should return diverse inputs covering edge cases.
	// If nil, the property can only be checked with explicit inputs.
	Generator func() any

	// Shrink attempts to reduce a failing input to a minimal case.
	// If nil, no shrinking is performed.
	Shrink func(input any) []any

	// Tags categorize this property for selective testing.
	// Examples: "critical", "performance", "boundary"
	Tags []string

	// Timeout is the maximum time for checking this property.
	// Zero means use the verifier's default timeout.
	Timeout time.Duration
}

// Validate checks that the property is well-formed.
//
// Outputs:
//   - error: nil if valid, descriptive error otherwise.
func (p *Property) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProperty)
	}
	if p.Description == "" {
		return fmt.Errorf("%w: description is required for %s", ErrInvalidProperty, p.Name)
	}
	if p.Check == nil {
		return fmt.Errorf("%w: check function is required for %s", ErrInvalidProperty, p.Name)
	}
	return nil
}

// HasGenerator returns true if this property has an input generator.
func (p *Property) HasGenerator() bool {
	return p.Generator != nil
}

// HasShrink returns true if this property supports input shrinking.
func (p *Property) HasShrink() bool {
	return p.Shrink != nil
}

// HasTag returns true if this property has the specified tag.
func (p *Property) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Metric Definition
// -----------------------------------------------------------------------------

// MetricType identifies the type of metric.
type MetricType int

const (
	// MetricCounter is a monotonically increasing value.
	MetricCounter MetricType = iota
	// MetricGauge is a value that can go up or down.
	MetricGauge
	// MetricHistogram records observations in buckets.
	MetricHistogram
	// MetricSummary records observations with quantiles.
	MetricSummary
)

// String returns the string representation of a MetricType.
func (m MetricType) String() string {
	switch m {
	case MetricCounter:
		return "counter"
	case MetricGauge:
		return "gauge"
	case MetricHistogram:
		return "histogram"
	case MetricSummary:
		return "summary"
	default:
		return fmt.Sprintf("metric_type(%d)", m)
	}
}

// MetricDefinition describes a metric exposed by a component.
//
// Example:
//
//	MetricDefinition{
//	    Name:        "mrw_walks_total",
//	    Type:        MetricCounter,
//	    Description: "Total number of random walks issued",
//	    Labels:      []string{"outcome"},
//	}
type MetricDefinition struct {
	// Name is the metric name (should follow Prometheus conventions).
	Name string

	// Type is the metric type (counter, gauge, histogram, summary).
	Type MetricType

	// Description explains what this metric measures.
	Description string

	// Labels are the label names for this metric.
	Labels []string

	// Buckets are the histogram bucket boundaries (for histograms only).
	Buckets []float64

	// Objectives are the quantile objectives (for summaries only).
	Objectives map[float64]float64
}

// Validate checks that the metric definition is well-formed.
//
// Outputs:
//   - error: nil if valid, descriptive error otherwise.
func (m *MetricDefinition) Validate() error {
	if m.Name == "" {
		return errors.New("metric name is required")
	}
	if m.Description == "" {
		return errors.New("metric description is required")
	}
	if m.Type == MetricHistogram && len(m.Buckets) == 0 {
		return errors.New("histogram metrics require buckets")
	}
	return nil
}

// -----------------------------------------------------------------------------
// Verification Results
// -----------------------------------------------------------------------------

// VerifyResult contains the results of verifying a component's properties.
type VerifyResult struct {
	// Component is the name of the component that was verified.
	Component string

	// Properties contains results for each property.
	Properties []PropertyResult

	// Duration is the total time spent verifying.
	Duration time.Duration

	// Passed is true if all properties passed.
	Passed bool

	// Iterations is the total number of test iterations run.
	Iterations int
}

// FailedProperties returns the properties that failed.
func (r *VerifyResult) FailedProperties() []PropertyResult {
	var failed []PropertyResult
	for _, pr := range r.Properties {
		if !pr.Passed {
			failed = append(failed, pr)
		}
	}
	return failed
}

// PropertyResult contains the result of verifying a single property.
type PropertyResult struct {
	// Name is the property name.
	Name string

	// Passed is true if the property held for all inputs.
	Passed bool

	// Iterations is the number of test iterations run.
	Iterations int

	// Duration is the time spent on this property.
	Duration time.Duration

	// FailingInput is the input that caused failure (if any).
	// This is the minimal input after shrinking.
	FailingInput any

	// FailingOutput is the output that caused failure (if any).
	FailingOutput any

	// Error is the error returned by the Check function (if any).
	Error error

	// ShrinkSteps is the number of shrinking iterations performed.
	ShrinkSteps int
}

// -----------------------------------------------------------------------------
// Health Check Result
// -----------------------------------------------------------------------------

// HealthStatus represents the health state of a component.
type HealthStatus int

const (
	// HealthUnknown is the zero value.
	HealthUnknown HealthStatus = iota
	// HealthHealthy indicates the component is functioning correctly.
	HealthHealthy
	// HealthDegraded indicates reduced functionality.
	HealthDegraded
	// HealthUnhealthy indicates the component is not functioning.
	HealthUnhealthy
)

// String returns the string representation of a HealthStatus.
func (h HealthStatus) String() string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return fmt.Sprintf("health_status(%d)", h)
	}
}

// HealthResult contains the result of a health check.
type HealthResult struct {
	// Component is the name of the component.
	Component string

	// Status is the health status.
	Status HealthStatus

	// Message provides details about the health status.
	Message string

	// Duration is the time spent on the health check.
	Duration time.Duration

	// Timestamp is when the check was performed.
	Timestamp time.Time
}

// -----------------------------------------------------------------------------
// Evaluable Wrapper
// -----------------------------------------------------------------------------

// SimpleEvaluable is a simple implementation of Evaluable for testing.
type SimpleEvaluable struct {
	name        string
	properties  []Property
	metrics     []MetricDefinition
	healthCheck func(ctx context.Context) error
}

// NewSimpleEvaluable creates a new SimpleEvaluable.
//
// Inputs:
//   - name: Unique identifier for the component. Must not be empty.
//
// Outputs:
//   - *SimpleEvaluable: The new evaluable. Never nil.
func NewSimpleEvaluable(name string) *SimpleEvaluable {
	return &SimpleEvaluable{
		name:       name,
		properties: make([]Property, 0),
		metrics:    make([]MetricDefinition, 0),
	}
}

// Name returns the component name.
func (s *SimpleEvaluable) Name() string {
	return s.name
}

// Properties returns the registered properties.
func (s *SimpleEvaluable) Properties() []Property {
	return s.properties
}

// Metrics returns the registered metrics.
func (s *SimpleEvaluable) Metrics() []MetricDefinition {
	return s.metrics
}

// HealthCheck performs the health check.
func (s *SimpleEvaluable) HealthCheck(ctx context.Context) error {
	if s.healthCheck == nil {
		return nil
	}
	return s.healthCheck(ctx)
}

// AddProperty adds a property to this evaluable.
func (s *SimpleEvaluable) AddProperty(p Property) *SimpleEvaluable {
	s.properties = append(s.properties, p)
	return s
}

// AddMetric adds a metric definition to this evaluable.
func (s *SimpleEvaluable) AddMetric(m MetricDefinition) *SimpleEvaluable {
	s.metrics = append(s.metrics, m)
	return s
}

// SetHealthCheck sets the health check function.
func (s *SimpleEvaluable) SetHealthCheck(fn func(ctx context.Context) error) *SimpleEvaluable {
	s.healthCheck = fn
	return s
}
