// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pddl models ground planning problems for the Aleutian planner.
//
// The package covers the STRIPS fragment of PDDL with typing, negative
// preconditions, and conditional effects: fluents are interned ground
// atoms, states are immutable bitsets over fluent indices, and actions
// carry a precondition plus guarded add/delete deltas.
//
// Problems arrive three ways: parsed from PDDL domain/problem text
// (ParseDomain, ParseProblemFile, Ground), loaded from the YAML ground
// format (ParseYAMLProblem), or built in code with a ProblemBuilder.
// However built, the result is the same flat Problem the search engine
// consumes.
package pddl

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Requirement is a PDDL requirement tag, e.g. ":strips".
type Requirement string

// Requirement tags the parser recognizes. Tags outside this list still
// parse; they survive into Problem.Requirements so the support pre-check
// can reject them by name.
const (
	RequireSTRIPS                Requirement = ":strips"
	RequireTyping                Requirement = ":typing"
	RequireNegativePreconditions Requirement = ":negative-preconditions"
	RequireConditionalEffects    Requirement = ":conditional-effects"
	RequireADL                   Requirement = ":adl"
	RequireEquality              Requirement = ":equality"
)

// supportedRequirements is the fragment the engine can actually handle.
var supportedRequirements = map[Requirement]bool{
	RequireSTRIPS:                true,
	RequireTyping:                true,
	RequireNegativePreconditions: true,
	RequireConditionalEffects:    true,
}

// Problem is a fully ground planning problem.
//
// Thread Safety: Immutable after construction. Safe for concurrent use.
type Problem struct {
	Name         string
	Domain       string
	Requirements []Requirement

	Fluents *FluentTable
	Init    State
	Goal    Condition
	Actions []*Action
}

// Supported reports whether every declared requirement falls inside the
// fragment the engine handles. An empty requirement list is supported.
func (p *Problem) Supported() bool {
	return len(p.UnsupportedRequirements()) == 0
}

// UnsupportedRequirements returns the declared tags outside the supported
// fragment, in declaration order.
func (p *Problem) UnsupportedRequirements() []Requirement {
	var out []Requirement
	for _, r := range p.Requirements {
		if !supportedRequirements[r] {
			out = append(out, r)
		}
	}
	return out
}

// ApplicableActions appends the actions applicable in s to buf and returns
// it. Callers reuse buf across steps to avoid per-step allocation.
func (p *Problem) ApplicableActions(s State, buf []*Action) []*Action {
	buf = buf[:0]
	for _, a := range p.Actions {
		if a.Applicable(s) {
			buf = append(buf, a)
		}
	}
	return buf
}

// Fingerprint returns a stable hex digest identifying the problem's
// semantic content: facts, initial state, goal, and actions. Two loads of
// the same input produce the same fingerprint, which keys the plan cache.
func (p *Problem) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "problem %s domain %s\n", p.Name, p.Domain)

	facts := make([]string, 0, p.Fluents.Len())
	for i := 0; i < p.Fluents.Len(); i++ {
		facts = append(facts, p.Fluents.Fluent(i).String())
	}
	sort.Strings(facts)
	fmt.Fprintf(h, "facts %s\n", strings.Join(facts, " "))

	init := make([]string, 0, p.Init.Count())
	for _, i := range p.Init.Indices() {
		init = append(init, p.Fluents.Fluent(i).String())
	}
	sort.Strings(init)
	fmt.Fprintf(h, "init %s\n", strings.Join(init, " "))

	fmt.Fprintf(h, "goal %s\n", p.Goal.describe(p.Fluents))

	names := make([]string, 0, len(p.Actions))
	byName := make(map[string]*Action, len(p.Actions))
	for _, a := range p.Actions {
		names = append(names, a.Name)
		byName[a.Name] = a
	}
	sort.Strings(names)
	for _, name := range names {
		a := byName[name]
		fmt.Fprintf(h, "action %s pre %s\n", a.Name, a.Pre.describe(p.Fluents))
		for _, ce := range a.Effects {
			fmt.Fprintf(h, "  when %s add %v del %v\n",
				ce.Guard.describe(p.Fluents), ce.Add.Indices(), ce.Del.Indices())
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ActionByName returns the ground action with the given name, or nil.
func (p *Problem) ActionByName(name string) *Action {
	for _, a := range p.Actions {
		if a.Name == name {
			return a
		}
	}
	return nil
}
