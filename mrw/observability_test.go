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
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"
)

func TestNewSearchTracer(t *testing.T) {
	config := ObservabilityConfig{
		TracingEnabled: true,
		LogLevel:       "debug",
	}

	tracer := NewSearchTracer(nil, config)
	if tracer == nil {
		t.Fatal("NewSearchTracer returned nil")
	}
	if !tracer.enabled {
		t.Error("tracer should be enabled")
	}
}

func TestNewSearchTracer_Disabled(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: false})
	if tracer.enabled {
		t.Error("tracer should be disabled")
	}
}

func TestSearchTracer_StartSolve(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	tracer := NewSearchTracer(logger, ObservabilityConfig{TracingEnabled: true})

	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100, TimeLimit: time.Minute})
	ctx, span := tracer.StartSolve(context.Background(), onewayCorridor(t), "run-1", budget)

	if ctx == nil {
		t.Error("context should not be nil")
	}
	if span == nil {
		t.Error("span should not be nil")
	}

	tracer.EndSolve(span, nil, budget, nil)
}

func TestSearchTracer_StartSolve_Disabled(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: false})

	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100})
	ctx, span := tracer.StartSolve(context.Background(), onewayCorridor(t), "run-1", budget)

	if ctx == nil {
		t.Error("context should not be nil even when disabled")
	}
	// Span should be noop
	span.End() // Should not panic
}

func TestSearchTracer_EndSolve_WithError(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: true})

	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100})
	_, span := tracer.StartSolve(context.Background(), onewayCorridor(t), "run-1", budget)

	// Should not panic
	tracer.EndSolve(span, nil, budget, errors.New("test error"))
}

func TestSearchTracer_EndSolve_WithResult(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: true})

	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100})
	_, span := tracer.StartSolve(context.Background(), onewayCorridor(t), "run-1", budget)

	result := &SolveResult{
		RunID: "run-1",
		Found: true,
		Stats: SearchStats{
			WalksStarted: 10,
			BestLength:   2,
			StopReason:   StopTargetReached,
		},
	}

	// Should not panic
	tracer.EndSolve(span, result, budget, nil)
}

func TestSearchTracer_EndSolve_NilSpan(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: true})
	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100})

	// Should not panic
	tracer.EndSolve(nil, nil, budget, nil)
}

func TestSearchTracer_WalkImproved(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: true})

	budget := NewWalkBudget(WalkBudgetConfig{MaxWalks: 100})
	ctx, span := tracer.StartSolve(context.Background(), onewayCorridor(t), "run-1", budget)
	defer span.End()

	// Should not panic, with or without a live span in the context
	tracer.WalkImproved(ctx, 3, 2)
	tracer.WalkImproved(context.Background(), 3, 2)

	disabled := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: false})
	disabled.WalkImproved(ctx, 3, 2)
}

func TestEngine_Solve_WithTracer(t *testing.T) {
	tracer := NewSearchTracer(nil, ObservabilityConfig{TracingEnabled: true})

	engine, err := NewEngine(solveConfig(100, 10, 10, 1), WithTracer(tracer))
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	res, err := engine.Solve(context.Background(), onewayCorridor(t))
	if err != nil {
		t.Fatalf("Solve() error = %v", err)
	}
	if !res.Found {
		t.Error("expected a plan")
	}
}

func TestNoopSpan(t *testing.T) {
	span := noop.Span{}

	// All methods should not panic
	span.End()
	span.AddEvent("test")
	span.RecordError(errors.New("test"))
	span.SetStatus(0, "test")
	span.SetName("test")
	span.SetAttributes()

	if span.IsRecording() {
		t.Error("noop span should not be recording")
	}
}
