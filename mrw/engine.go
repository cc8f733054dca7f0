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
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

// Engine runs Monte-Carlo random walk search over a grounded planning
// problem.
//
// Each walk starts from the initial state and repeats:
//  1. Stop with success when the current state satisfies the goal.
//  2. Collect applicable actions; an empty set fails the walk.
//  3. Optionally filter the set through deadlock avoidance and the
//     helpful-action heuristic, falling back to the unfiltered set when
//     a filter would leave nothing.
//  4. Pick one action uniformly at random, apply it, extend the prefix.
//
// The engine keeps the shortest plan across all successful walks and
// stops early once a plan at or under the target length is found.
//
// Thread Safety: Safe for concurrent Solve calls. Each call builds its
// own random stream, walk state, and budget.
type Engine struct {
	cfg    SearchConfig
	seed   int64
	logger *slog.Logger
	tracer *SearchTracer
}

// StopReason explains why a solve stopped issuing walks.
type StopReason string

const (
	// StopTargetReached means a plan at or under the target length was found.
	StopTargetReached StopReason = "target_reached"

	// StopBudgetExhausted means the walk or time budget ran out.
	StopBudgetExhausted StopReason = "budget_exhausted"

	// StopCancelled means the caller's context was cancelled.
	StopCancelled StopReason = "cancelled"
)

// SearchStats aggregates the effort spent on one solve.
type SearchStats struct {
	// WalksStarted counts walks issued, including the failed ones.
	WalksStarted int64 `json:"walks_started"`

	// WalksFailed counts walks that hit the length cap, a dead end, or
	// cancellation before reaching the goal.
	WalksFailed int64 `json:"walks_failed"`

	// StepsTaken counts actions applied across all walks.
	StepsTaken int64 `json:"steps_taken"`

	// BestLength is the length of the best plan, or -1 when none was found.
	BestLength int `json:"best_length"`

	// Seed is the effective random seed the solve ran with.
	Seed int64 `json:"seed"`

	// Elapsed is wall time from the first walk to the stop decision.
	Elapsed time.Duration `json:"elapsed"`

	// StopReason explains why the solve stopped.
	StopReason StopReason `json:"stop_reason"`
}

// SolveResult is the outcome of one solve call.
//
// Found distinguishes exhaustion from success: a solve that runs out of
// budget without reaching the goal returns Found=false and a nil error.
type SolveResult struct {
	// RunID identifies this solve in logs and traces.
	RunID string `json:"run_id"`

	// Found reports whether any walk reached the goal.
	Found bool `json:"found"`

	// Plan is the shortest plan found. Only meaningful when Found is true.
	Plan pddl.Plan `json:"-"`

	// Stats aggregates search effort.
	Stats SearchStats `json:"stats"`
}

// NewEngine creates a search engine from a validated configuration.
//
// Inputs:
//   - cfg: Search configuration. Validated before use.
//   - opts: Optional configuration functions.
//
// Outputs:
//   - *Engine: Ready to use engine.
//   - error: Non-nil when the configuration is invalid.
func NewEngine(cfg SearchConfig, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &EngineError{Engine: "mrw", Operation: "configure", Err: err}
	}

	e := &Engine{
		cfg:    cfg,
		seed:   cfg.Walk.Seed,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	// A zero seed means "pick one"; resolve it once so every Solve call
	// on this engine replays the same walk sequence.
	if e.seed == 0 {
		e.seed = time.Now().UnixNano()
	}

	return e, nil
}

// EngineOption configures the search engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTracer sets the tracer for observability.
func WithTracer(tracer *SearchTracer) EngineOption {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithSeed overrides the configured random seed.
func WithSeed(seed int64) EngineOption {
	return func(e *Engine) {
		e.seed = seed
	}
}

// Seed returns the effective random seed.
func (e *Engine) Seed() int64 {
	return e.seed
}

// Config returns the engine configuration.
func (e *Engine) Config() SearchConfig {
	return e.cfg
}

// Solve searches for a plan by running random walks until the budget is
// exhausted, the target length is reached, or the context is cancelled.
//
// Inputs:
//   - ctx: Context for cancellation. Checked between walks and between
//     steps inside a walk.
//   - problem: Grounded problem to solve.
//
// Outputs:
//   - *SolveResult: Best plan and search statistics. Never nil unless
//     the problem is rejected up front.
//   - error: ErrNilProblem or ErrUnsupportedProblem for rejected input,
//     the context error when cancelled before any plan was found, nil
//     otherwise. Budget exhaustion without a plan is not an error.
func (e *Engine) Solve(ctx context.Context, problem *pddl.Problem) (res *SolveResult, err error) {
	if err := checkProblem(problem); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	budget := NewWalkBudget(WalkBudgetConfig{
		MaxWalks:  e.cfg.Budget.Walks,
		TimeLimit: e.cfg.Budget.TimeLimit,
	})

	// The parent context tells external cancellation apart from our own
	// deadline when the stop reason is resolved below.
	parent := ctx
	if e.cfg.Budget.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Budget.TimeLimit)
		defer cancel()
	}

	var span trace.Span
	if e.tracer != nil {
		ctx, span = e.tracer.StartSolve(ctx, problem, runID, budget)
		defer func() {
			e.tracer.EndSolve(span, res, budget, err)
		}()
	}

	e.logger.Info("random walk search started",
		slog.String("run_id", runID),
		slog.String("problem", problem.Name),
		slog.Int("actions", len(problem.Actions)),
		slog.Int("fluents", problem.Fluents.Len()),
		slog.Int("walks", e.cfg.Budget.Walks),
		slog.Int("max_length", e.cfg.Walk.MaxLength),
		slog.Bool("deadlock_avoidance", e.cfg.Walk.DeadlockAvoidance),
		slog.Bool("helpful_actions", e.cfg.Walk.HelpfulActions),
		slog.Int64("seed", e.seed))

	rng := rand.New(rand.NewSource(e.seed))
	w := newWalker(problem, e.cfg.Walk, rng)
	best := newBestPlan()

	var stop StopReason
	for {
		if ctx.Err() != nil {
			break
		}
		if !budget.TryStartWalk() {
			break
		}

		walkRes := w.run(ctx)
		budget.RecordSteps(walkRes.steps)
		if !walkRes.reached {
			budget.RecordWalkFailed()
			continue
		}

		if best.offer(walkRes.plan) {
			e.logger.Info("shorter plan found",
				slog.String("run_id", runID),
				slog.Int("length", walkRes.plan.Length()),
				slog.Int64("walk", budget.WalksStarted()))
			if e.tracer != nil {
				e.tracer.WalkImproved(ctx, budget.WalksStarted(), walkRes.plan.Length())
			}
			if best.bestLength() <= e.cfg.Walk.TargetPlanLength {
				stop = StopTargetReached
				break
			}
		}
	}

	plan, found := best.snapshot()
	if stop == "" {
		if parent.Err() != nil {
			stop = StopCancelled
		} else {
			stop = StopBudgetExhausted
		}
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
			Seed:         e.seed,
			Elapsed:      budget.Elapsed(),
			StopReason:   stop,
		},
	}

	e.logger.Info("random walk search complete",
		slog.String("run_id", runID),
		slog.Bool("found", found),
		slog.Int("best_length", res.Stats.BestLength),
		slog.Int64("walks", res.Stats.WalksStarted),
		slog.Int64("walks_failed", res.Stats.WalksFailed),
		slog.Int64("steps", res.Stats.StepsTaken),
		slog.Duration("elapsed", res.Stats.Elapsed),
		slog.String("stop", string(stop)))

	if !found && parent.Err() != nil {
		return res, parent.Err()
	}
	return res, nil
}

// Solve runs a one-shot search with the given configuration, picking the
// parallel engine when cfg.Parallel.Enabled is set.
//
// Inputs:
//   - ctx: Context for cancellation.
//   - problem: Grounded problem to solve.
//   - cfg: Search configuration.
//   - opts: Optional engine configuration.
//
// Outputs:
//   - *SolveResult: Best plan and search statistics.
//   - error: Non-nil for invalid configuration or rejected input.
func Solve(ctx context.Context, problem *pddl.Problem, cfg SearchConfig, opts ...EngineOption) (*SolveResult, error) {
	engine, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if cfg.Parallel.Enabled {
		return NewParallelEngine(engine).Solve(ctx, problem)
	}
	return engine.Solve(ctx, problem)
}

// checkProblem rejects problems the walk executor cannot handle.
func checkProblem(problem *pddl.Problem) error {
	if problem == nil {
		return &EngineError{Engine: "mrw", Operation: "solve", Err: ErrNilProblem}
	}
	if !problem.Supported() {
		return &EngineError{
			Engine:    "mrw",
			Operation: "solve",
			Err:       fmt.Errorf("%w: %s", ErrUnsupportedProblem, joinRequirements(problem.UnsupportedRequirements())),
		}
	}
	return nil
}

func joinRequirements(reqs []pddl.Requirement) string {
	parts := make([]string, len(reqs))
	for i, r := range reqs {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------
// Best plan record
// ---------------------------------------------------------------------

// bestPlan is the shortest-plan record shared by the walk loops.
//
// offer replaces the stored plan only when the candidate is strictly
// shorter, so the first plan of a given length always wins ties and the
// recorded length never increases. The length rides in an atomic so hot
// paths can reject longer candidates without taking the lock.
type bestPlan struct {
	mu     sync.Mutex
	plan   pddl.Plan
	found  bool
	length atomic.Int64
}

func newBestPlan() *bestPlan {
	b := &bestPlan{}
	b.length.Store(math.MaxInt64)
	return b
}

// offer installs p when it is strictly shorter than the current best.
// Returns true when p became the new best.
func (b *bestPlan) offer(p pddl.Plan) bool {
	n := int64(p.Length())
	if n >= b.length.Load() {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.found && int64(b.plan.Length()) <= n {
		return false
	}
	b.plan = p
	b.found = true
	b.length.Store(n)
	return true
}

// bestLength returns the length of the current best plan, or -1 when no
// plan has been recorded.
func (b *bestPlan) bestLength() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.found {
		return -1
	}
	return b.plan.Length()
}

// snapshot returns the current best plan and whether one exists.
func (b *bestPlan) snapshot() (pddl.Plan, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.plan, b.found
}
