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
	"math/rand"

	"github.com/AleutianAI/AleutianPlan/eval"
	"github.com/AleutianAI/AleutianPlan/pddl"
)

// -----------------------------------------------------------------------------
// Evaluable Interface Implementation
// -----------------------------------------------------------------------------

// Name returns the unique identifier for this component.
func (e *Engine) Name() string {
	return "mrw_engine"
}

// walkCheckInput is one generated scenario for property verification: a
// chain problem of the given length, padded with always-applicable
// distractor actions, solved with the given seed.
type walkCheckInput struct {
	ChainLength int
	Distractors int
	Seed        int64
}

// Properties returns the correctness properties this component guarantees.
func (e *Engine) Properties() []eval.Property {
	return []eval.Property{
		{
			Name:        "plans_replay_to_goal",
			Description: "Every plan the engine returns replays step by step from the initial state to a goal state.",
			Check: func(input, _ any) error {
				in, ok := input.(walkCheckInput)
				if !ok {
					return nil
				}
				problem := chainProblem(in.ChainLength, in.Distractors)
				result, err := solveForCheck(problem, in.Seed, 500, 40)
				if err != nil {
					return err
				}
				if !result.Found {
					return fmt.Errorf("no plan for a solvable chain of length %d", in.ChainLength)
				}
				return result.Plan.Validate(problem)
			},
			Generator: chainInputGenerator,
			Shrink:    shrinkChainInput,
			Tags:      []string{"critical"},
		},
		{
			Name:        "satisfied_goal_returns_empty_plan",
			Description: "A problem whose initial state already satisfies the goal yields an empty plan on the first walk.",
			Check: func(input, _ any) error {
				in, ok := input.(walkCheckInput)
				if !ok {
					return nil
				}
				pb := pddl.NewProblemBuilder("already-done").
					Domain("walk-check").
					Init("ready").
					Goal([]string{"ready"}, nil)
				pb.Action("wait").Pre(nil, nil).Effect([]string{"waited"}, nil)
				problem := pb.MustBuild()
				result, err := solveForCheck(problem, in.Seed, 10, 5)
				if err != nil {
					return err
				}
				if !result.Found {
					return fmt.Errorf("satisfied goal not detected")
				}
				if result.Plan.Length() != 0 {
					return fmt.Errorf("expected an empty plan, got length %d", result.Plan.Length())
				}
				return nil
			},
			Generator: chainInputGenerator,
			Tags:      []string{"critical", "boundary"},
		},
		{
			Name:        "exhaustion_is_silent",
			Description: "A problem with no applicable actions burns the whole walk budget and reports not-found without an error.",
			Check: func(input, _ any) error {
				in, ok := input.(walkCheckInput)
				if !ok {
					return nil
				}
				problem := pddl.NewProblemBuilder("stuck").
					Domain("walk-check").
					Goal([]string{"unreachable"}, nil).
					Action("blocked").Pre([]string{"missing"}, nil).Effect([]string{"unreachable"}, nil).
					MustBuild()
				const walks = 25
				result, err := solveForCheck(problem, in.Seed, walks, 10)
				if err != nil {
					return err
				}
				if result.Found {
					return fmt.Errorf("found a plan with no applicable actions")
				}
				if result.Stats.WalksStarted != walks {
					return fmt.Errorf("expected %d walks, ran %d", walks, result.Stats.WalksStarted)
				}
				if result.Stats.WalksFailed != walks {
					return fmt.Errorf("expected every walk to fail, got %d of %d", result.Stats.WalksFailed, walks)
				}
				return nil
			},
			Generator: chainInputGenerator,
			Tags:      []string{"boundary"},
		},
		{
			Name:        "fixed_seed_reproducible",
			Description: "Two sequential solves with the same seed produce identical plans and identical effort counters.",
			Check: func(input, _ any) error {
				in, ok := input.(walkCheckInput)
				if !ok {
					return nil
				}
				problem := chainProblem(in.ChainLength, in.Distractors)
				first, err := solveForCheck(problem, in.Seed, 200, 30)
				if err != nil {
					return err
				}
				second, err := solveForCheck(problem, in.Seed, 200, 30)
				if err != nil {
					return err
				}
				if first.Found != second.Found {
					return fmt.Errorf("found diverged: %v vs %v", first.Found, second.Found)
				}
				if first.Stats.WalksStarted != second.Stats.WalksStarted ||
					first.Stats.StepsTaken != second.Stats.StepsTaken {
					return fmt.Errorf("effort diverged: %+v vs %+v", first.Stats, second.Stats)
				}
				a, b := first.Plan.Names(), second.Plan.Names()
				if len(a) != len(b) {
					return fmt.Errorf("plan length diverged: %d vs %d", len(a), len(b))
				}
				for i := range a {
					if a[i] != b[i] {
						return fmt.Errorf("step %d diverged: %s vs %s", i, a[i], b[i])
					}
				}
				return nil
			},
			Generator: chainInputGenerator,
			Shrink:    shrinkChainInput,
			Tags:      []string{"critical"},
		},
		{
			Name:        "plan_length_within_cap",
			Description: "No returned plan is longer than the configured walk length cap.",
			Check: func(input, _ any) error {
				in, ok := input.(walkCheckInput)
				if !ok {
					return nil
				}
				const maxLength = 25
				problem := chainProblem(in.ChainLength, in.Distractors)
				result, err := solveForCheck(problem, in.Seed, 300, maxLength)
				if err != nil {
					return err
				}
				if result.Found && result.Plan.Length() > maxLength {
					return fmt.Errorf("plan length %d exceeds cap %d", result.Plan.Length(), maxLength)
				}
				return nil
			},
			Generator: chainInputGenerator,
			Shrink:    shrinkChainInput,
		},
	}
}

// Metrics returns the metrics this component exposes.
func (e *Engine) Metrics() []eval.MetricDefinition {
	return []eval.MetricDefinition{
		{
			Name:        "mrw_solves_total",
			Type:        eval.MetricCounter,
			Description: "Total solve calls",
			Labels:      []string{"status"},
		},
		{
			Name:        "mrw_walks_total",
			Type:        eval.MetricCounter,
			Description: "Total random walks issued",
			Labels:      []string{"outcome"},
		},
		{
			Name:        "mrw_solve_seconds",
			Type:        eval.MetricHistogram,
			Description: "Solve duration in seconds",
			Buckets:     []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120},
		},
		{
			Name:        "mrw_plan_length",
			Type:        eval.MetricHistogram,
			Description: "Length of returned plans",
			Buckets:     []float64{1, 2, 5, 10, 20, 50, 100},
		},
	}
}

// HealthCheck verifies the component is functioning correctly by solving
// a two-location problem end to end.
func (e *Engine) HealthCheck(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("health check requires a context")
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	problem := chainProblem(2, 0)
	result, err := solveForCheck(problem, 1, 100, 10)
	if err != nil {
		return fmt.Errorf("self-test solve: %w", err)
	}
	if !result.Found {
		return fmt.Errorf("self-test found no plan on a two-step chain")
	}
	if err := result.Plan.Validate(problem); err != nil {
		return fmt.Errorf("self-test plan invalid: %w", err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Check scaffolding
// -----------------------------------------------------------------------------

// chainProblem builds a solvable corridor: advance actions move a token
// from step0 to stepN, and distractor actions flip scrap fluents without
// touching the chain, so the shortest plan has exactly length steps.
func chainProblem(length, distractors int) *pddl.Problem {
	b := pddl.NewProblemBuilder("chain").Domain("walk-check")

	atom := func(i int) string { return fmt.Sprintf("at step%d", i) }
	b.Init(atom(0))
	b.Goal([]string{atom(length)}, nil)

	for i := 0; i < length; i++ {
		b.Action(fmt.Sprintf("advance%d", i)).
			Pre([]string{atom(i)}, nil).
			Effect([]string{atom(i + 1)}, []string{atom(i)})
	}
	for d := 0; d < distractors; d++ {
		b.Action(fmt.Sprintf("shuffle%d", d)).
			Pre(nil, nil).
			Effect([]string{fmt.Sprintf("scrap bin%d", d)}, nil)
	}

	return b.MustBuild()
}

// solveForCheck runs a sequential solve with tight, deterministic knobs.
func solveForCheck(problem *pddl.Problem, seed int64, walks, maxLength int) (*SolveResult, error) {
	cfg := DefaultSearchConfig()
	cfg.Budget.Walks = walks
	cfg.Walk.MaxLength = maxLength
	cfg.Walk.Seed = seed
	cfg.Walk.TargetPlanLength = 0

	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, err
	}
	return engine.Solve(context.Background(), problem)
}

func chainInputGenerator() any {
	return walkCheckInput{
		ChainLength: 1 + rand.Intn(4),
		Distractors: rand.Intn(3),
		Seed:        1 + rand.Int63n(1<<30),
	}
}

// shrinkChainInput proposes smaller scenarios: shorter chains first,
// then fewer distractors.
func shrinkChainInput(input any) []any {
	in, ok := input.(walkCheckInput)
	if !ok {
		return nil
	}

	var smaller []any
	if in.ChainLength > 1 {
		shorter := in
		shorter.ChainLength--
		smaller = append(smaller, shorter)
	}
	if in.Distractors > 0 {
		calmer := in
		calmer.Distractors--
		smaller = append(smaller, calmer)
	}
	return smaller
}

func init() {
	engine, err := NewEngine(DefaultSearchConfig())
	if err != nil {
		panic(fmt.Sprintf("mrw: default engine construction failed: %v", err))
	}
	eval.MustRegister(engine)
}
