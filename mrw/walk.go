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
	"math/rand"

	"github.com/AleutianAI/AleutianPlan/pddl"
)

// walker executes bounded random walks over one problem.
//
// A walker owns its RNG, its visited set, and its candidate buffers, so a
// single walker must not be shared across goroutines; each parallel
// worker gets its own.
type walker struct {
	problem *pddl.Problem
	cfg     WalkConfig
	rng     *rand.Rand

	// Per-walk visited states, keyed by State.Key. Reset at walk start.
	visited map[string]struct{}

	// Reusable candidate buffer, rebuilt every step.
	applicable []*pddl.Action
}

// walkResult is the outcome of one walk. A walk that does not reach the
// goal is not an error; reached is simply false.
type walkResult struct {
	plan    pddl.Plan
	reached bool
	steps   int
}

func newWalker(problem *pddl.Problem, cfg WalkConfig, rng *rand.Rand) *walker {
	return &walker{
		problem: problem,
		cfg:     cfg,
		rng:     rng,
		visited: make(map[string]struct{}, cfg.MaxLength),
	}
}

// run executes one bounded random walk from the problem's initial state.
//
// Description:
//
//	Each step checks goal satisfaction first, so a goal-satisfying
//	initial state yields the empty plan even with MaxLength zero, and a
//	walk that reaches the goal on its final permitted step still counts.
//	Then the applicable set is computed (empty fails the walk), the
//	enabled filters narrow it (each falling back to its input when it
//	would drop everything), one action is chosen uniformly at random,
//	the pre-step state is recorded as visited, and the action is applied
//	with all conditional effects judged against that pre-step state.
//
// Outputs:
//   - walkResult: reached=true carries the plan; steps counts applied
//     actions either way. Context cancellation fails the walk.
func (w *walker) run(ctx context.Context) walkResult {
	state := w.problem.Init
	clear(w.visited)

	var plan []*pddl.Action
	steps := 0
	for {
		if state.Satisfies(w.problem.Goal) {
			return walkResult{plan: pddl.Plan{Steps: plan}, reached: true, steps: steps}
		}
		if steps >= w.cfg.MaxLength {
			return walkResult{steps: steps}
		}
		if ctx.Err() != nil {
			return walkResult{steps: steps}
		}

		w.applicable = w.problem.ApplicableActions(state, w.applicable)
		candidates := w.applicable
		if len(candidates) == 0 {
			return walkResult{steps: steps}
		}

		if w.cfg.DeadlockAvoidance {
			candidates = w.filterDeadlocks(state, candidates)
		}
		if w.cfg.HelpfulActions {
			candidates = w.filterHelpful(state, candidates)
		}

		action := candidates[w.rng.Intn(len(candidates))]

		w.visited[state.Key()] = struct{}{}
		state = state.Apply(action)
		plan = append(plan, action)
		steps++
	}
}

// -----------------------------------------------------------------------------
// Action filters
// -----------------------------------------------------------------------------

// filterDeadlocks drops candidates whose successor state was already
// visited earlier in this walk. The current state is not yet in the
// visited set, so self-loops survive this filter. When every candidate
// would be dropped the unfiltered set stands.
//
// Filtering is in place: kept elements compact to the front of the input
// slice, and a fallback return means nothing was written.
func (w *walker) filterDeadlocks(state pddl.State, candidates []*pddl.Action) []*pddl.Action {
	kept := candidates[:0]
	for _, a := range candidates {
		next := state.Apply(a)
		if _, seen := w.visited[next.Key()]; !seen {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

// filterHelpful keeps candidates that look aimed at the goal: some
// conditional effect whose guard holds in the current state and whose add
// set lies entirely within the goal's positive fluents. The test is a
// selection bias, not an admissible heuristic; in particular a
// guard-satisfied effect that adds nothing qualifies. When no candidate
// qualifies the incoming set stands.
func (w *walker) filterHelpful(state pddl.State, candidates []*pddl.Action) []*pddl.Action {
	kept := candidates[:0]
	for _, a := range candidates {
		if w.isHelpful(state, a) {
			kept = append(kept, a)
		}
	}
	if len(kept) == 0 {
		return candidates
	}
	return kept
}

func (w *walker) isHelpful(state pddl.State, a *pddl.Action) bool {
	for i := range a.Effects {
		ce := &a.Effects[i]
		if state.Satisfies(ce.Guard) && w.problem.Goal.Pos.ContainsAll(ce.Add) {
			return true
		}
	}
	return false
}
