// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package correctness runs property-based verification over registered
// components. Each property supplies a generator and an invariant; the
// verifier checks the invariant on every generated input and shrinks
// failing inputs to minimal cases.
package correctness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianPlan/eval"
)

var (
	// ErrNoProperties is returned when a component declares no properties.
	ErrNoProperties = errors.New("component has no properties")

	// ErrNoGenerator marks a property that cannot be driven automatically.
	ErrNoGenerator = errors.New("property has no input generator")

	// ErrNilContext is returned when Verify is called with a nil context.
	ErrNilContext = errors.New("context must not be nil")
)

const (
	defaultIterations      = 100
	defaultPropertyTimeout = 30 * time.Second

	// maxShrinkSteps bounds the shrinking loop for Shrink functions
	// that keep producing failing candidates.
	maxShrinkSteps = 1000
)

// Verifier drives property checks for components in a registry.
//
// Thread Safety: Safe for concurrent use.
type Verifier struct {
	registry *eval.Registry
}

// NewVerifier creates a verifier over the given registry.
//
// Inputs:
//   - registry: Component registry. Nil falls back to eval.DefaultRegistry.
//
// Outputs:
//   - *Verifier: Ready to use verifier.
func NewVerifier(registry *eval.Registry) *Verifier {
	if registry == nil {
		registry = eval.DefaultRegistry
	}
	return &Verifier{registry: registry}
}

// verifyOptions collects the knobs for one verification run.
type verifyOptions struct {
	iterations      int
	tags            []string
	stopOnFailure   bool
	parallelism     int
	propertyTimeout time.Duration
}

func defaultVerifyOptions() verifyOptions {
	return verifyOptions{
		iterations:      defaultIterations,
		parallelism:     1,
		propertyTimeout: defaultPropertyTimeout,
	}
}

// VerifyOption configures a verification run.
type VerifyOption func(*verifyOptions)

// WithIterations sets how many generated inputs each property is checked
// against.
func WithIterations(n int) VerifyOption {
	return func(o *verifyOptions) {
		if n > 0 {
			o.iterations = n
		}
	}
}

// WithTags restricts verification to properties carrying at least one of
// the given tags.
func WithTags(tags ...string) VerifyOption {
	return func(o *verifyOptions) {
		o.tags = tags
	}
}

// WithStopOnFailure stops checking further properties after the first
// failing one. Only applies to sequential runs.
func WithStopOnFailure(stop bool) VerifyOption {
	return func(o *verifyOptions) {
		o.stopOnFailure = stop
	}
}

// WithParallelism checks up to n properties concurrently.
func WithParallelism(n int) VerifyOption {
	return func(o *verifyOptions) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithPropertyTimeout sets the default per-property time budget. A
// property's own Timeout, when set, takes precedence.
func WithPropertyTimeout(d time.Duration) VerifyOption {
	return func(o *verifyOptions) {
		if d > 0 {
			o.propertyTimeout = d
		}
	}
}

// Verify checks all properties of a single component.
//
// Description:
//
//	Each property is checked against freshly generated inputs until the
//	iteration count, the property's time budget, or the context runs out.
//	A failing input is shrunk to a minimal failing case when the property
//	provides a Shrink function.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - name: Name of the registered component.
//   - opts: Optional run configuration.
//
// Outputs:
//   - *eval.VerifyResult: Per-property results. Nil when the component
//     is missing or has no properties.
//   - error: ErrNilContext, eval.ErrNotFound, or ErrNoProperties.
//
// Thread Safety: Safe for concurrent use.
func (v *Verifier) Verify(ctx context.Context, name string, opts ...VerifyOption) (*eval.VerifyResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	options := defaultVerifyOptions()
	for _, opt := range opts {
		opt(&options)
	}

	component, ok := v.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", eval.ErrNotFound, name)
	}

	props := filterByTags(component.Properties(), options.tags)
	if len(props) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoProperties, name)
	}

	start := time.Now()
	var propResults []eval.PropertyResult
	if options.parallelism > 1 {
		propResults = v.checkParallel(ctx, props, options)
	} else {
		propResults = v.checkSequential(ctx, props, options)
	}

	result := &eval.VerifyResult{
		Component:  name,
		Properties: propResults,
		Duration:   time.Since(start),
		Passed:     true,
	}
	for _, pr := range propResults {
		result.Iterations += pr.Iterations
		if !pr.Passed {
			result.Passed = false
		}
	}
	return result, nil
}

// VerifyAll checks every registered component that declares properties.
//
// Inputs:
//   - ctx: Context for cancellation. Must not be nil.
//   - opts: Optional run configuration, applied to every component.
//
// Outputs:
//   - []*eval.VerifyResult: One result per component with properties,
//     in registry name order.
//   - error: ErrNilContext, or the first lookup failure.
func (v *Verifier) VerifyAll(ctx context.Context, opts ...VerifyOption) ([]*eval.VerifyResult, error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	var results []*eval.VerifyResult
	for _, name := range v.registry.List() {
		component, ok := v.registry.Get(name)
		if !ok {
			continue
		}
		if len(component.Properties()) == 0 {
			continue
		}

		result, err := v.Verify(ctx, name, opts...)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

func (v *Verifier) checkSequential(ctx context.Context, props []eval.Property, options verifyOptions) []eval.PropertyResult {
	var results []eval.PropertyResult
	for _, prop := range props {
		pr := v.checkProperty(ctx, prop, options)
		results = append(results, pr)
		if !pr.Passed && options.stopOnFailure {
			break
		}
	}
	return results
}

func (v *Verifier) checkParallel(ctx context.Context, props []eval.Property, options verifyOptions) []eval.PropertyResult {
	results := make([]eval.PropertyResult, len(props))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(options.parallelism)

	for i, prop := range props {
		i, prop := i, prop // Capture loop variables
		g.Go(func() error {
			results[i] = v.checkProperty(gCtx, prop, options)
			return nil // Property failures are results, not errors
		})
	}

	_ = g.Wait()
	return results
}

// checkProperty drives one property through up to options.iterations
// generated inputs.
func (v *Verifier) checkProperty(ctx context.Context, prop eval.Property, options verifyOptions) eval.PropertyResult {
	start := time.Now()
	result := eval.PropertyResult{Name: prop.Name}

	if err := prop.Validate(); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}
	if !prop.HasGenerator() {
		result.Error = fmt.Errorf("%w: %s", ErrNoGenerator, prop.Name)
		result.Duration = time.Since(start)
		return result
	}

	timeout := options.propertyTimeout
	if prop.Timeout > 0 {
		timeout = prop.Timeout
	}
	deadline := start.Add(timeout)

	result.Passed = true
	for i := 0; i < options.iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if time.Now().After(deadline) {
			break
		}

		input := prop.Generator()
		err := prop.Check(input, nil)
		result.Iterations++

		if err != nil {
			result.Passed = false
			result.Error = err
			result.FailingInput = input
			if prop.HasShrink() {
				result.FailingInput, result.ShrinkSteps = shrinkFailure(prop, input)
			}
			break
		}
	}

	result.Duration = time.Since(start)
	return result
}

// shrinkFailure walks the property's Shrink candidates toward a minimal
// failing input: at each step the first still-failing candidate becomes
// the new current input, until no candidate fails or the step bound hits.
func shrinkFailure(prop eval.Property, input any) (minimal any, steps int) {
	current := input
	for steps < maxShrinkSteps {
		shrunk := false
		for _, candidate := range prop.Shrink(current) {
			if prop.Check(candidate, nil) != nil {
				current = candidate
				steps++
				shrunk = true
				break
			}
		}
		if !shrunk {
			break
		}
	}
	return current, steps
}

func filterByTags(props []eval.Property, tags []string) []eval.Property {
	if len(tags) == 0 {
		return props
	}

	var kept []eval.Property
	for _, prop := range props {
		for _, tag := range tags {
			if prop.HasTag(tag) {
				kept = append(kept, prop)
				break
			}
		}
	}
	return kept
}

// ---------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------

// Runner is a reusable verifier with a fixed option set, for callers
// that verify repeatedly with the same knobs.
type Runner struct {
	verifier *Verifier
	opts     []VerifyOption
}

// NewRunner creates a runner over the given registry.
func NewRunner(registry *eval.Registry) *Runner {
	return &Runner{verifier: NewVerifier(registry)}
}

// WithIterations sets the iteration count for every run.
func (r *Runner) WithIterations(n int) *Runner {
	r.opts = append(r.opts, WithIterations(n))
	return r
}

// WithParallelism sets the property concurrency for every run.
func (r *Runner) WithParallelism(n int) *Runner {
	r.opts = append(r.opts, WithParallelism(n))
	return r
}

// WithTimeout sets the per-property time budget for every run.
func (r *Runner) WithTimeout(d time.Duration) *Runner {
	r.opts = append(r.opts, WithPropertyTimeout(d))
	return r
}

// WithTags restricts every run to tagged properties.
func (r *Runner) WithTags(tags ...string) *Runner {
	r.opts = append(r.opts, WithTags(tags...))
	return r
}

// Run verifies a single component.
func (r *Runner) Run(ctx context.Context, name string) (*eval.VerifyResult, error) {
	return r.verifier.Verify(ctx, name, r.opts...)
}

// RunAll verifies every component with properties.
func (r *Runner) RunAll(ctx context.Context) ([]*eval.VerifyResult, error) {
	return r.verifier.VerifyAll(ctx, r.opts...)
}
