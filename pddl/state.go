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
	"encoding/binary"
	"strings"
)

// State is an immutable set of facts holding in one world snapshot.
//
// Description:
//
//	A state is a bitset over the problem's fluent indices. All mutating
//	operations return a fresh State; the receiver is never modified, so
//	states can be shared freely across goroutines, stored in visited sets,
//	and compared structurally.
//
// Thread Safety: Immutable after creation. Safe for concurrent use.
type State struct {
	facts FactSet
}

// NewState creates a state containing exactly the given fluent indices,
// sized for a table of n fluents.
func NewState(n int, facts ...int) State {
	fs := NewFactSet(n)
	for _, i := range facts {
		fs.Set(i)
	}
	return State{facts: fs}
}

// Has reports whether the state contains fluent index i.
func (s State) Has(i int) bool {
	return s.facts.Has(i)
}

// Count returns the number of facts in the state.
func (s State) Count() int {
	return s.facts.Count()
}

// Indices returns the fact indices in ascending order.
func (s State) Indices() []int {
	return s.facts.Indices()
}

// Satisfies reports whether the state meets a condition: every positive
// fluent present, every negative fluent absent.
func (s State) Satisfies(c Condition) bool {
	return s.facts.ContainsAll(c.Pos) && s.facts.DisjointFrom(c.Neg)
}

// Equal reports structural equality with another state.
func (s State) Equal(other State) bool {
	if len(s.facts) != len(other.facts) {
		return false
	}
	for w := range s.facts {
		if s.facts[w] != other.facts[w] {
			return false
		}
	}
	return true
}

// Key returns a compact structural key for use in visited sets and caches.
//
// The key is the little-endian byte image of the bitset words, so two
// states have equal keys exactly when Equal reports true. Keys are stable
// across processes; no randomized hashing is involved.
func (s State) Key() string {
	buf := make([]byte, len(s.facts)*8)
	for w, word := range s.facts {
		binary.LittleEndian.PutUint64(buf[w*8:], word)
	}
	return string(buf)
}

// Apply returns the successor state produced by taking the action.
//
// Description:
//
//	Every conditional effect's guard is evaluated against the receiver
//	(the pre-action state); the effects whose guards hold are applied to
//	a copy in declaration order, each removing its delete facts and then
//	adding its add facts. Guards never observe partial results from
//	earlier effects of the same action.
//
// Inputs:
//   - a: The action to apply. Applicability is not re-checked here.
//
// Outputs:
//   - State: The successor. The receiver is unchanged.
func (s State) Apply(a *Action) State {
	next := s.facts.Clone()
	for i := range a.Effects {
		ce := &a.Effects[i]
		if !s.Satisfies(ce.Guard) {
			continue
		}
		for w := range next {
			next[w] &^= ce.Del[w]
			next[w] |= ce.Add[w]
		}
	}
	return State{facts: next}
}

// Describe renders the state's facts against a table, for logs and debugging.
func (s State) Describe(t *FluentTable) string {
	var sb strings.Builder
	for _, i := range s.facts.Indices() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Fluent(i).String())
	}
	return sb.String()
}
