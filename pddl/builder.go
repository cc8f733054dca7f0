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

// ProblemBuilder assembles a ground Problem directly, without going through
// PDDL text. The YAML loader, the HTTP API, and tests all build problems
// this way.
//
// Atoms are written as plain strings: "on a b" and "(on a b)" both mean the
// predicate "on" applied to constants "a" and "b". Interning happens as
// atoms are mentioned; fact sets are materialized once at Build, when the
// universe size is known.
//
// Thread Safety: NOT safe for concurrent use.
type ProblemBuilder struct {
	name   string
	domain string
	reqs   []Requirement

	table    *FluentTable
	init     []int
	goalPos  []int
	goalNeg  []int
	actions  []*actionDraft
	buildErr error
}

type actionDraft struct {
	name    string
	prePos  []int
	preNeg  []int
	effects []effectDraft
}

type effectDraft struct {
	guardPos []int
	guardNeg []int
	add      []int
	del      []int
}

// NewProblemBuilder creates a builder for a problem with the given name.
func NewProblemBuilder(name string) *ProblemBuilder {
	return &ProblemBuilder{
		name:  name,
		table: NewFluentTable(),
	}
}

// Domain sets the domain name recorded on the built problem.
func (b *ProblemBuilder) Domain(name string) *ProblemBuilder {
	b.domain = name
	return b
}

// Require appends requirement tags.
func (b *ProblemBuilder) Require(reqs ...Requirement) *ProblemBuilder {
	b.reqs = append(b.reqs, reqs...)
	return b
}

// Atom interns an atom string and returns its index.
func (b *ProblemBuilder) Atom(atom string) int {
	pred, args, err := splitAtom(atom)
	if err != nil {
		if b.buildErr == nil {
			b.buildErr = err
		}
		return -1
	}
	return b.table.Intern(pred, args...)
}

// Init adds atoms to the initial state.
func (b *ProblemBuilder) Init(atoms ...string) *ProblemBuilder {
	for _, a := range atoms {
		b.init = append(b.init, b.Atom(a))
	}
	return b
}

// Goal adds positive and negative goal atoms.
func (b *ProblemBuilder) Goal(pos []string, neg []string) *ProblemBuilder {
	for _, a := range pos {
		b.goalPos = append(b.goalPos, b.Atom(a))
	}
	for _, a := range neg {
		b.goalNeg = append(b.goalNeg, b.Atom(a))
	}
	return b
}

// ActionBuilder assembles one ground action on a ProblemBuilder.
type ActionBuilder struct {
	b     *ProblemBuilder
	draft *actionDraft
}

// Action starts a new action with the given name.
func (b *ProblemBuilder) Action(name string) *ActionBuilder {
	d := &actionDraft{name: name}
	b.actions = append(b.actions, d)
	return &ActionBuilder{b: b, draft: d}
}

// Pre adds positive and negative precondition atoms.
func (ab *ActionBuilder) Pre(pos []string, neg []string) *ActionBuilder {
	for _, a := range pos {
		ab.draft.prePos = append(ab.draft.prePos, ab.b.Atom(a))
	}
	for _, a := range neg {
		ab.draft.preNeg = append(ab.draft.preNeg, ab.b.Atom(a))
	}
	return ab
}

// Effect adds an unconditional effect with the given add and delete atoms.
func (ab *ActionBuilder) Effect(add []string, del []string) *ActionBuilder {
	return ab.When(nil, nil, add, del)
}

// When adds a conditional effect guarded by the given atoms.
func (ab *ActionBuilder) When(guardPos, guardNeg, add, del []string) *ActionBuilder {
	e := effectDraft{}
	for _, a := range guardPos {
		e.guardPos = append(e.guardPos, ab.b.Atom(a))
	}
	for _, a := range guardNeg {
		e.guardNeg = append(e.guardNeg, ab.b.Atom(a))
	}
	for _, a := range add {
		e.add = append(e.add, ab.b.Atom(a))
	}
	for _, a := range del {
		e.del = append(e.del, ab.b.Atom(a))
	}
	ab.draft.effects = append(ab.draft.effects, e)
	return ab
}

// Build materializes the problem. Fact sets are sized to the final fluent
// universe; the builder must not be reused afterward.
func (b *ProblemBuilder) Build() (*Problem, error) {
	if b.buildErr != nil {
		return nil, b.buildErr
	}
	return newProblem(b.name, b.domain, b.reqs, b.table, b.init, b.goalPos, b.goalNeg, b.actions)
}

// newProblem materializes index-based drafts against a finished table.
// Shared by ProblemBuilder.Build and the PDDL grounder.
func newProblem(name, domain string, reqs []Requirement, table *FluentTable,
	init, goalPos, goalNeg []int, actions []*actionDraft) (*Problem, error) {

	n := table.Len()
	cond := func(pos, neg []int) Condition {
		c := NewCondition(n)
		for _, i := range pos {
			c.Pos.Set(i)
		}
		for _, i := range neg {
			c.Neg.Set(i)
		}
		return c
	}

	p := &Problem{
		Name:         name,
		Domain:       domain,
		Requirements: reqs,
		Fluents:      table,
		Init:         NewState(n, init...),
		Goal:         cond(goalPos, goalNeg),
	}

	for idx, d := range actions {
		if d.name == "" {
			return nil, fmt.Errorf("action %d: empty name", idx)
		}
		if len(d.effects) == 0 {
			return nil, fmt.Errorf("action %s: no effects", d.name)
		}
		a := &Action{
			Index: idx,
			Name:  d.name,
			Pre:   cond(d.prePos, d.preNeg),
		}
		for _, e := range d.effects {
			ce := ConditionalEffect{
				Guard: cond(e.guardPos, e.guardNeg),
				Add:   NewFactSet(n),
				Del:   NewFactSet(n),
			}
			for _, i := range e.add {
				ce.Add.Set(i)
			}
			for _, i := range e.del {
				ce.Del.Set(i)
			}
			a.Effects = append(a.Effects, ce)
		}
		p.Actions = append(p.Actions, a)
	}
	return p, nil
}

// MustBuild is Build for fixtures; it panics on error.
func (b *ProblemBuilder) MustBuild() *Problem {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}

// splitAtom parses "on a b" or "(on a b)" into predicate and arguments.
func splitAtom(atom string) (string, []string, error) {
	s := strings.TrimSpace(atom)
	s = strings.TrimPrefix(s, "(")
	s = strings.TrimSuffix(s, ")")
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty atom %q", atom)
	}
	return strings.ToLower(fields[0]), lowerAll(fields[1:]), nil
}

func lowerAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.ToLower(s)
	}
	return out
}
