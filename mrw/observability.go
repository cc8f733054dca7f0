// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package mrw

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

const mrwTracerName = "aleutianplan.mrw"

// SearchTracer provides OpenTelemetry tracing for random walk search.
//
// Thread Safety: Safe for concurrent use.
type SearchTracer struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	enabled bool
}

// NewSearchTracer creates a new tracer.
//
// Inputs:
//   - logger: Logger for structured logging (can be nil for no logging).
//   - config: Observability configuration.
//
// Outputs:
//   - *SearchTracer: Tracer instance.
func NewSearchTracer(logger *slog.Logger, config ObservabilityConfig) *SearchTracer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchTracer{
		tracer:  otel.Tracer(mrwTracerName),
		logger:  logger,
		enabled: config.TracingEnabled,
	}
}

// StartSolve starts a span covering an entire solve.
//
// Inputs:
//   - ctx: Parent context.
//   - problem: Problem being solved.
//   - runID: Identifier for this solve.
//   - budget: Budget configuration.
//
// Outputs:
//   - context.Context: Context with span.
//   - trace.Span: The created span (noop if tracing disabled).
func (t *SearchTracer) StartSolve(ctx context.Context, problem *pddl.Problem, runID string, budget *WalkBudget) (context.Context, trace.Span) {
	if !t.enabled {
		return ctx, noop.Span{}
	}

	config := budget.Config()
	ctx, span := t.tracer.Start(ctx, "mrw.solve",
		trace.WithAttributes(
			attribute.String("mrw.run_id", runID),
			attribute.String("mrw.problem", problem.Name),
			attribute.Int("mrw.actions", len(problem.Actions)),
			attribute.Int("mrw.fluents", problem.Fluents.Len()),
			attribute.Int("mrw.budget.max_walks", config.MaxWalks),
			attribute.String("mrw.budget.time_limit", config.TimeLimit.String()),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	t.logger.DebugContext(ctx, "solve span started",
		slog.String("run_id", runID),
		slog.String("problem", problem.Name))

	return ctx, span
}

// EndSolve completes the solve span.
//
// Inputs:
//   - span: The span to end.
//   - result: Solve outcome (can be nil).
//   - budget: Budget tracker with usage.
//   - err: Error if the solve failed.
func (t *SearchTracer) EndSolve(span trace.Span, result *SolveResult, budget *WalkBudget, err error) {
	if span == nil {
		return
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.Int64("mrw.result.walks", budget.WalksStarted()),
		attribute.Int64("mrw.result.walks_failed", budget.WalksFailed()),
		attribute.Int64("mrw.result.steps", budget.StepsTaken()),
		attribute.String("mrw.result.elapsed", budget.Elapsed().String()),
	)

	if result != nil {
		span.SetAttributes(
			attribute.Bool("mrw.result.found", result.Found),
			attribute.Int("mrw.result.best_length", result.Stats.BestLength),
			attribute.String("mrw.result.stop_reason", string(result.Stats.StopReason)),
		)
	}

	span.End()
}

// WalkImproved records a best-plan improvement on the active span.
//
// Inputs:
//   - ctx: Context carrying the solve span.
//   - walk: Ordinal of the walk that produced the improvement.
//   - length: Length of the new best plan.
func (t *SearchTracer) WalkImproved(ctx context.Context, walk int64, length int) {
	if !t.enabled {
		return
	}

	span := trace.SpanFromContext(ctx)
	span.AddEvent("mrw.improved",
		trace.WithAttributes(
			attribute.Int64("mrw.walk", walk),
			attribute.Int("mrw.plan_length", length),
		),
	)

	t.logger.DebugContext(ctx, "best plan improved",
		slog.Int64("walk", walk),
		slog.Int("length", length))
}
