// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pddl

import (
	"fmt"
	"strings"
)

// ConditionalEffect is one guarded fact delta of an action.
//
// An unconditional effect is represented with an empty Guard, which every
// state satisfies. Guards are always evaluated against the pre-action
// state (see State.Apply).
type ConditionalEffect struct {
	Guard Condition
	Add   FactSet
	Del   FactSet
}

// Action is a ground action: a name, an applicability condition, and one or
// more conditional effects.
//
// Thread Safety: Immutable after grounding. Safe for concurrent use.
type Action struct {
	// Index is the action's position in Problem.Actions, assigned at
	// grounding. Stable for a fixed input, which keeps uniform random
	// selection reproducible under a fixed seed.
	Index int
	Name  string

	Pre     Condition
	Effects []ConditionalEffect
}

// Applicable reports whether the action's precondition holds in s.
func (a *Action) Applicable(s State) bool {
	return s.Satisfies(a.Pre)
}

// String returns the action name, e.g. "(move roomA roomB)".
func (a *Action) String() string {
	return a.Name
}

// Plan is an ordered sequence of actions from the initial state to a goal
// state. The zero value is the empty plan.
type Plan struct {
	Steps []*Action
}

// Length returns the number of actions in the plan.
func (p Plan) Length() int {
	return len(p.Steps)
}

// String renders one numbered action per line.
func (p Plan) String() string {
	if len(p.Steps) == 0 {
		return "<empty plan>"
	}
	var sb strings.Builder
	for i, a := range p.Steps {
		fmt.Fprintf(&sb, "%02d: %s\n", i, a.Name)
	}
	return sb.String()
}

// Names returns the action names in order, for serialization and tests.
func (p Plan) Names() []string {
	out := make([]string, len(p.Steps))
	for i, a := range p.Steps {
		out[i] = a.Name
	}
	return out
}

// Replay applies the plan from the problem's initial state, verifying each
// step is applicable when taken.
//
// Outputs:
//   - State: The final state reached.
//   - error: Nil when every step was applicable; otherwise an error naming
//     the first inapplicable step. Goal satisfaction is not checked here.
func (p Plan) Replay(problem *Problem) (State, error) {
	s := problem.Init
	for i, a := range p.Steps {
		if !a.Applicable(s) {
			return s, fmt.Errorf("step %d (%s): precondition not met", i, a.Name)
		}
		s = s.Apply(a)
	}
	return s, nil
}

// Validate replays the plan and checks the final state satisfies the goal.
func (p Plan) Validate(problem *Problem) error {
	final, err := p.Replay(problem)
	if err != nil {
		return err
	}
	if !final.Satisfies(problem.Goal) {
		return fmt.Errorf("final state does not satisfy the goal")
	}
	return nil
}
