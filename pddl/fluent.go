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
	"math/bits"
	"strings"
)

// Fluent is a single ground atom: a predicate applied to constant arguments.
//
// Fluents are interned through a FluentTable; identity is the dense index
// the table assigns. Two fluents with the same index denote the same fact,
// which is what lets states be flat bitsets instead of maps.
type Fluent struct {
	Index     int
	Predicate string
	Args      []string
}

// String renders the fluent in s-expression form, e.g. "(on blockA blockB)".
func (f Fluent) String() string {
	if len(f.Args) == 0 {
		return "(" + f.Predicate + ")"
	}
	return "(" + f.Predicate + " " + strings.Join(f.Args, " ") + ")"
}

// FluentTable interns ground atoms and assigns them dense indices.
//
// The table is append-only: grounding interns every atom it produces, and
// after the Problem is built the table is treated as frozen. Index order is
// insertion order, so a fixed input always yields the same numbering.
//
// Thread Safety: NOT safe for concurrent interning. Read-only use after
// grounding is safe from any number of goroutines.
type FluentTable struct {
	byKey   map[string]int
	fluents []Fluent
}

// NewFluentTable creates an empty fluent table.
func NewFluentTable() *FluentTable {
	return &FluentTable{byKey: make(map[string]int)}
}

// Intern returns the index for the given ground atom, assigning the next
// free index on first sighting.
func (t *FluentTable) Intern(predicate string, args ...string) int {
	key := atomKey(predicate, args)
	if idx, ok := t.byKey[key]; ok {
		return idx
	}
	idx := len(t.fluents)
	stored := make([]string, len(args))
	copy(stored, args)
	t.fluents = append(t.fluents, Fluent{Index: idx, Predicate: predicate, Args: stored})
	t.byKey[key] = idx
	return idx
}

// Lookup reports the index of a ground atom without interning it.
func (t *FluentTable) Lookup(predicate string, args ...string) (int, bool) {
	idx, ok := t.byKey[atomKey(predicate, args)]
	return idx, ok
}

// Fluent returns the fluent at the given index.
func (t *FluentTable) Fluent(i int) Fluent {
	return t.fluents[i]
}

// Len returns the number of interned fluents.
func (t *FluentTable) Len() int {
	return len(t.fluents)
}

func atomKey(predicate string, args []string) string {
	if len(args) == 0 {
		return predicate
	}
	return predicate + " " + strings.Join(args, " ")
}

// FactSet is a bitset over fluent indices.
//
// The word count is fixed at construction from the table size; all set
// operations assume both operands came from the same table.
type FactSet []uint64

// NewFactSet creates an empty fact set sized for n fluents.
func NewFactSet(n int) FactSet {
	return make(FactSet, (n+63)/64)
}

// Set marks fluent index i as present.
func (s FactSet) Set(i int) {
	s[i>>6] |= 1 << (uint(i) & 63)
}

// Clear removes fluent index i.
func (s FactSet) Clear(i int) {
	s[i>>6] &^= 1 << (uint(i) & 63)
}

// Has reports whether fluent index i is present.
func (s FactSet) Has(i int) bool {
	w := i >> 6
	if w >= len(s) {
		return false
	}
	return s[w]&(1<<(uint(i)&63)) != 0
}

// ContainsAll reports whether every index in other is also in s.
func (s FactSet) ContainsAll(other FactSet) bool {
	for w, bits := range other {
		if w >= len(s) {
			if bits != 0 {
				return false
			}
			continue
		}
		if bits&^s[w] != 0 {
			return false
		}
	}
	return true
}

// DisjointFrom reports whether s and other share no index.
func (s FactSet) DisjointFrom(other FactSet) bool {
	n := len(s)
	if len(other) < n {
		n = len(other)
	}
	for w := 0; w < n; w++ {
		if s[w]&other[w] != 0 {
			return false
		}
	}
	return true
}

// IsEmpty reports whether no index is set.
func (s FactSet) IsEmpty() bool {
	for _, w := range s {
		if w != 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s FactSet) Clone() FactSet {
	c := make(FactSet, len(s))
	copy(c, s)
	return c
}

// Indices returns the set members in ascending order.
func (s FactSet) Indices() []int {
	var out []int
	for w, word := range s {
		for word != 0 {
			b := bits.TrailingZeros64(word)
			out = append(out, w*64+b)
			word &^= 1 << uint(b)
		}
	}
	return out
}

// Count returns the number of set members.
func (s FactSet) Count() int {
	n := 0
	for _, word := range s {
		n += bits.OnesCount64(word)
	}
	return n
}

// Condition is a conjunction of positive and negative fluent requirements.
//
// A state satisfies the condition when it contains every Pos index and no
// Neg index.
type Condition struct {
	Pos FactSet
	Neg FactSet
}

// NewCondition creates an empty condition sized for n fluents.
func NewCondition(n int) Condition {
	return Condition{Pos: NewFactSet(n), Neg: NewFactSet(n)}
}

// IsEmpty reports whether the condition constrains nothing.
func (c Condition) IsEmpty() bool {
	return c.Pos.IsEmpty() && c.Neg.IsEmpty()
}

// describe renders a condition against a table, for error text and logs.
func (c Condition) describe(t *FluentTable) string {
	var sb strings.Builder
	for _, i := range c.Pos.Indices() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(t.Fluent(i).String())
	}
	for _, i := range c.Neg.Indices() {
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "(not %s)", t.Fluent(i).String())
	}
	if sb.Len() == 0 {
		return "(and)"
	}
	return sb.String()
}
