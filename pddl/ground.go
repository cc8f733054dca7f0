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
	"os"
	"strings"
)

// Ground instantiates a schematic domain over a problem's objects into a
// flat, index-based Problem.
//
// Description:
//
//	Operators are enumerated over every type-compatible binding of their
//	parameters to the domain constants plus the problem objects. Each
//	binding yields one ground action named "(op arg1 arg2 ...)"; bindings
//	whose precondition requires and forbids the same fluent are statically
//	inapplicable and skipped. Fluent indices are assigned in encounter
//	order (init, goal, then actions), so a fixed input always grounds to
//	an identical Problem.
//
// Outputs:
//   - *Problem: The ground problem, ready for the search engine.
//   - error: Mismatched domain names, undeclared predicates, arity
//     violations, or unknown parameter types.
func Ground(d *Domain, pf *ProblemFile) (*Problem, error) {
	if pf.DomainName != d.Name {
		return nil, fmt.Errorf("problem %s wants domain %s, got %s", pf.Name, pf.DomainName, d.Name)
	}

	g := &grounder{
		d:       d,
		pf:      pf,
		parents: make(map[string]string),
		known:   map[string]bool{"object": true},
		byType:  make(map[string][]string),
		table:   NewFluentTable(),
	}
	for _, t := range d.Types {
		g.parents[t.Name] = t.Type
		g.known[t.Name] = true
		g.known[t.Type] = true
	}

	objects := make([]TypedName, 0, len(d.Constants)+len(pf.Objects))
	objects = append(objects, d.Constants...)
	objects = append(objects, pf.Objects...)
	seen := make(map[string]bool, len(objects))
	for _, o := range objects {
		if seen[o.Name] {
			return nil, fmt.Errorf("duplicate object %s", o.Name)
		}
		seen[o.Name] = true
		if !g.known[o.Type] {
			return nil, fmt.Errorf("object %s has unknown type %s", o.Name, o.Type)
		}
	}
	g.objects = objects

	for _, op := range d.Operators {
		for _, p := range op.Params {
			if !g.known[p.Type] {
				return nil, fmt.Errorf("action %s: unknown parameter type %s", op.Name, p.Type)
			}
		}
	}

	if len(d.Predicates) > 0 {
		g.arity = make(map[string]int, len(d.Predicates))
		for _, p := range d.Predicates {
			g.arity[p.Name] = len(p.Params)
		}
	}

	var init []int
	for _, lit := range pf.Init {
		idx, err := g.intern(lit, nil)
		if err != nil {
			return nil, err
		}
		init = append(init, idx)
	}

	var goalPos, goalNeg []int
	for _, lit := range pf.Goal {
		idx, err := g.intern(lit, nil)
		if err != nil {
			return nil, err
		}
		if lit.neg {
			goalNeg = append(goalNeg, idx)
		} else {
			goalPos = append(goalPos, idx)
		}
	}

	var drafts []*actionDraft
	for _, op := range d.Operators {
		binding := make(map[string]string, len(op.Params))
		var err error
		drafts, err = g.enumerate(op, 0, binding, drafts)
		if err != nil {
			return nil, err
		}
	}

	reqs := append([]Requirement(nil), d.Requirements...)
	for _, r := range pf.Requirements {
		dup := false
		for _, have := range reqs {
			if have == r {
				dup = true
				break
			}
		}
		if !dup {
			reqs = append(reqs, r)
		}
	}

	return newProblem(pf.Name, d.Name, reqs, g.table, init, goalPos, goalNeg, drafts)
}

type grounder struct {
	d       *Domain
	pf      *ProblemFile
	parents map[string]string
	known   map[string]bool
	byType  map[string][]string
	objects []TypedName
	arity   map[string]int
	table   *FluentTable
}

// objectsOfType memoizes the object names compatible with a type.
func (g *grounder) objectsOfType(typ string) []string {
	if objs, ok := g.byType[typ]; ok {
		return objs
	}
	var objs []string
	for _, o := range g.objects {
		if g.isOfType(o.Type, typ) {
			objs = append(objs, o.Name)
		}
	}
	g.byType[typ] = objs
	return objs
}

// isOfType walks the parent chain from have up to want. "object" accepts
// everything; the walk is bounded to survive malformed cycles.
func (g *grounder) isOfType(have, want string) bool {
	if want == "object" {
		return true
	}
	for hops := 0; hops <= len(g.parents)+1; hops++ {
		if have == want {
			return true
		}
		next, ok := g.parents[have]
		if !ok || next == have {
			return false
		}
		have = next
	}
	return false
}

// enumerate recursively binds op's parameters and appends one draft per
// complete, statically applicable binding.
func (g *grounder) enumerate(op *Operator, param int, binding map[string]string, drafts []*actionDraft) ([]*actionDraft, error) {
	if param == len(op.Params) {
		draft, ok, err := g.instantiate(op, binding)
		if err != nil {
			return nil, err
		}
		if ok {
			drafts = append(drafts, draft)
		}
		return drafts, nil
	}
	p := op.Params[param]
	for _, obj := range g.objectsOfType(p.Type) {
		binding[p.Name] = obj
		var err error
		drafts, err = g.enumerate(op, param+1, binding, drafts)
		if err != nil {
			return nil, err
		}
	}
	delete(binding, p.Name)
	return drafts, nil
}

// instantiate substitutes one binding through op. ok is false when the
// ground precondition is contradictory.
func (g *grounder) instantiate(op *Operator, binding map[string]string) (*actionDraft, bool, error) {
	draft := &actionDraft{name: groundName(op.Name, op.Params, binding)}

	for _, lit := range op.Pre {
		idx, err := g.intern(lit, binding)
		if err != nil {
			return nil, false, err
		}
		if lit.neg {
			draft.preNeg = append(draft.preNeg, idx)
		} else {
			draft.prePos = append(draft.prePos, idx)
		}
	}
	for _, pos := range draft.prePos {
		for _, neg := range draft.preNeg {
			if pos == neg {
				return nil, false, nil
			}
		}
	}

	for _, cl := range op.Effects {
		e := effectDraft{}
		for _, lit := range cl.guard {
			idx, err := g.intern(lit, binding)
			if err != nil {
				return nil, false, err
			}
			if lit.neg {
				e.guardNeg = append(e.guardNeg, idx)
			} else {
				e.guardPos = append(e.guardPos, idx)
			}
		}
		for _, lit := range cl.add {
			idx, err := g.intern(lit, binding)
			if err != nil {
				return nil, false, err
			}
			e.add = append(e.add, idx)
		}
		for _, lit := range cl.del {
			idx, err := g.intern(lit, binding)
			if err != nil {
				return nil, false, err
			}
			e.del = append(e.del, idx)
		}
		draft.effects = append(draft.effects, e)
	}
	return draft, true, nil
}

// intern resolves a literal's arguments through the binding and interns
// the resulting ground atom. A nil binding means the literal is already
// ground (init and goal facts).
func (g *grounder) intern(lit literal, binding map[string]string) (int, error) {
	if g.arity != nil {
		want, ok := g.arity[lit.pred]
		if !ok {
			return 0, errAt(lit.pos, "undeclared predicate %s", lit.pred)
		}
		if want != len(lit.args) {
			return 0, errAt(lit.pos, "predicate %s wants %d arguments, got %d", lit.pred, want, len(lit.args))
		}
	}
	args := make([]string, len(lit.args))
	for i, a := range lit.args {
		if strings.HasPrefix(a, "?") {
			bound, ok := binding[a]
			if !ok {
				return 0, errAt(lit.pos, "unbound variable %s", a)
			}
			args[i] = bound
		} else {
			args[i] = a
		}
	}
	return g.table.Intern(lit.pred, args...), nil
}

func groundName(op string, params []TypedName, binding map[string]string) string {
	if len(params) == 0 {
		return "(" + op + ")"
	}
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(op)
	for _, p := range params {
		sb.WriteByte(' ')
		sb.WriteString(binding[p.Name])
	}
	sb.WriteByte(')')
	return sb.String()
}

// LoadProblem reads and grounds a PDDL domain/problem file pair.
func LoadProblem(domainPath, problemPath string) (*Problem, error) {
	dsrc, err := os.ReadFile(domainPath)
	if err != nil {
		return nil, err
	}
	psrc, err := os.ReadFile(problemPath)
	if err != nil {
		return nil, err
	}
	d, err := ParseDomain(string(dsrc))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domainPath, err)
	}
	pf, err := ParseProblemFile(string(psrc))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", problemPath, err)
	}
	p, err := Ground(d, pf)
	if err != nil {
		return nil, fmt.Errorf("grounding %s against %s: %w", problemPath, domainPath, err)
	}
	return p, nil
}
