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
	"math/rand"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

// ParallelEngine runs random walks across multiple workers.
//
// Workers draw walk slots from a shared budget, so the configured walk
// count caps the total across all workers rather than per worker. Each
// worker owns a private random stream derived from the root seed and a
// private visited set, while the shortest plan lives in a shared record
// guarded by a mutex. A worker that reaches the target length cancels
// the others, which notice between steps.
//
// Walk scheduling depends on which worker wins each budget slot, so two
// parallel runs with the same seed may find different plans. Sequential
// runs stay reproducible; use the plain Engine when that matters.
//
// Thread Safety: Safe for concurrent use.
type ParallelEngine struct {
	engine  *Engine
	workers int
	logger  *slog.Logger
}

// NewParallelEngine creates a parallel engine on top of a sequential one.
//
// Inputs:
//   - engine: The underlying search engine.
//
// Outputs:
//   - *ParallelEngine: Ready to use parallel engine.
func NewParallelEngine(engine *Engine) *ParallelEngine {
	workers := engine.cfg.Parallel.Workers
	if workers <= 0 {
		workers = DefaultSearchConfig().Parallel.Workers
	}

	return &ParallelEngine{
		engine:  engine,
		workers: workers,
		logger:  engine.logger,
	}
}

// WithParallelLogger sets the logger.
func (p *ParallelEngine) WithParallelLogger(logger *slog.Logger) *ParallelEngine {
	p.logger = logger
	return p
}

// Workers returns the number of concurrent workers.
func (p *ParallelEngine) Workers() int {
	return p.workers
}

// Solve searches for a plan using concurrent random walks.
//
// Semantics match Engine.Solve: the best plan is the shortest one any
// worker found, exhaustion without a plan returns Found=false with a
// nil error, and rejected input returns a typed error.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - problem: Grounded problem to solve.
//
// Outputs:
//   - *SolveResult: Best plan and search statistics.
//   - error: ErrNilProblem or ErrUnsupportedProblem for rejected input,
//     the context error when cancelled before any plan was found, nil
//     otherwise.
func (p *ParallelEngine) Solve(ctx context.Context, problem *pddl.Problem) (res *SolveResult, err error) {
	if err := checkProblem(problem); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	budget := NewWalkBudget(WalkBudgetConfig{
		MaxWalks:  p.engine.cfg.Budget.Walks,
		TimeLimit: p.engine.cfg.Budget.TimeLimit,
	})

	parent := ctx
	if p.engine.cfg.Budget.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.engine.cfg.Budget.TimeLimit)
		defer cancel()
	}

	var span trace.Span
	if p.engine.tracer != nil {
		ctx, span = p.engine.tracer.StartSolve(ctx, problem, runID, budget)
		defer func() {
			p.engine.tracer.EndSolve(span, res, budget, err)
		}()
	}

	p.logger.Info("parallel random walk search started",
		slog.String("run_id", runID),
		slog.String("problem", problem.Name),
		slog.Int("workers", p.workers),
		slog.Int("walks", p.engine.cfg.Budget.Walks),
		slog.Int("max_length", p.engine.cfg.Walk.MaxLength),
		slog.Int64("seed", p.engine.seed))

	best := newBestPlan()
	var targetHit atomic.Bool

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(workerCtx, problem, budget, best, &targetHit, stopWorkers, workerID, runID)
		}(i)
	}

	wg.Wait()

	plan, found := best.snapshot()
	var stop StopReason
	switch {
	case targetHit.Load():
		stop = StopTargetReached
	case parent.Err() != nil:
		stop = StopCancelled
	default:
		stop = StopBudgetExhausted
	}

	res = &SolveResult{
		RunID: runID,
		Found: found,
		Plan:  plan,
		Stats: SearchStats{
			WalksStarted: budget.WalksStarted(),
			WalksFailed:  budget.WalksFailed(),
			StepsTaken:   budget.StepsTaken(),
			BestLength:   best.bestLength(),
			Seed:         p.engine.seed,
			Elapsed:      budget.Elapsed(),
			StopReason:   stop,
		},
	}

	p.logger.Info("parallel random walk search complete",
		slog.String("run_id", runID),
		slog.Int("workers", p.workers),
		slog.Bool("found", found),
		slog.Int("best_length", res.Stats.BestLength),
		slog.Int64("walks", res.Stats.WalksStarted),
		slog.Int64("walks_failed", res.Stats.WalksFailed),
		slog.Duration("elapsed", res.Stats.Elapsed),
		slog.String("stop", string(stop)))

	if !found && parent.Err() != nil {
		return res, parent.Err()
	}
	return res, nil
}

// worker draws walk slots from the shared budget until it is exhausted,
// the context is cancelled, or the target length is reached.
func (p *ParallelEngine) worker(
	ctx context.Context,
	problem *pddl.Problem,
	budget *WalkBudget,
	best *bestPlan,
	targetHit *atomic.Bool,
	stopWorkers context.CancelFunc,
	workerID int,
	runID string,
) {
	rng := rand.New(rand.NewSource(deriveSeed(p.engine.seed, workerID)))
	w := newWalker(problem, p.engine.cfg.Walk, rng)

	for {
		if ctx.Err() != nil {
			return
		}
		if !budget.TryStartWalk() {
			return
		}

		walkRes := w.run(ctx)
		budget.RecordSteps(walkRes.steps)
		if !walkRes.reached {
			budget.RecordWalkFailed()
			continue
		}

		if best.offer(walkRes.plan) {
			p.logger.Info("shorter plan found",
				slog.String("run_id", runID),
				slog.Int("worker", workerID),
				slog.Int("length", walkRes.plan.Length()),
				slog.Int64("walk", budget.WalksStarted()))
			if p.engine.tracer != nil {
				p.engine.tracer.WalkImproved(ctx, budget.WalksStarted(), walkRes.plan.Length())
			}
			if best.bestLength() <= p.engine.cfg.Walk.TargetPlanLength {
				targetHit.Store(true)
				stopWorkers()
				return
			}
		}
	}
}

// deriveSeed decorrelates per-worker random streams from the root seed
// using the SplitMix64 finalizer.
func deriveSeed(seed int64, worker int) int64 {
	z := uint64(seed) + uint64(worker+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return int64(z ^ (z >> 31))
}
