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

// ParseError reports a syntax or fragment violation with its position.
type ParseError struct {
	Line int
	Col  int
	Msg  string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d:%d: %s", e.Line, e.Col, e.Msg)
}

func errAt(s *sexpr, format string, args ...any) error {
	return &ParseError{Line: s.line, Col: s.col, Msg: fmt.Sprintf(format, args...)}
}

// sexpr is one node of the s-expression tree: an atom or a list.
type sexpr struct {
	atom   string
	list   []*sexpr
	isList bool
	line   int
	col    int
}

func readSexpr(l *lexer) (*sexpr, error) {
	return readSexprFrom(l, l.next())
}

func readSexprFrom(l *lexer, tok token) (*sexpr, error) {
	switch tok.kind {
	case tokSymbol:
		return &sexpr{atom: tok.text, line: tok.line, col: tok.col}, nil
	case tokLParen:
		node := &sexpr{isList: true, line: tok.line, col: tok.col}
		for {
			t := l.next()
			switch t.kind {
			case tokRParen:
				return node, nil
			case tokEOF:
				return nil, &ParseError{Line: tok.line, Col: tok.col, Msg: "unterminated list"}
			}
			child, err := readSexprFrom(l, t)
			if err != nil {
				return nil, err
			}
			node.list = append(node.list, child)
		}
	case tokRParen:
		return nil, &ParseError{Line: tok.line, Col: tok.col, Msg: "unexpected )"}
	default:
		return nil, &ParseError{Line: tok.line, Col: tok.col, Msg: "unexpected end of input"}
	}
}

// ---------------------------------------------------------------------------
// Schematic (pre-grounding) representation
// ---------------------------------------------------------------------------

// TypedName is a name with its declared type, "object" when untyped.
type TypedName struct {
	Name string
	Type string
}

// PredicateDecl is one entry of a domain's :predicates section.
type PredicateDecl struct {
	Name   string
	Params []TypedName
}

// literal is a possibly-negated schematic atom; args mix constants and
// ?variables until grounding substitutes them.
type literal struct {
	pred string
	args []string
	neg  bool
	pos  *sexpr // source position, for grounding-time errors
}

// effectClause is one guarded delta of an operator's effect. An empty
// guard means the clause is unconditional.
type effectClause struct {
	guard []literal
	add   []literal
	del   []literal
}

// Operator is a schematic action as written in the domain file.
type Operator struct {
	Name    string
	Params  []TypedName
	Pre     []literal
	Effects []effectClause
}

// Domain is a parsed, still-schematic PDDL domain.
type Domain struct {
	Name         string
	Requirements []Requirement
	Types        []TypedName // type name -> parent type
	Constants    []TypedName
	Predicates   []PredicateDecl
	Operators    []*Operator
}

// ProblemFile is a parsed PDDL problem before grounding against a domain.
type ProblemFile struct {
	Name         string
	DomainName   string
	Requirements []Requirement
	Objects      []TypedName
	Init         []literal
	Goal         []literal
}

// ---------------------------------------------------------------------------
// Domain parsing
// ---------------------------------------------------------------------------

// ParseDomain parses PDDL domain text covering the STRIPS fragment with
// typing, negative preconditions, and conditional effects. Constructs
// outside the fragment (or, forall, exists, imply, functions) are rejected
// with a positioned error; unknown requirement tags parse fine and are
// left for the engine's support pre-check.
func ParseDomain(src string) (*Domain, error) {
	root, err := readSexpr(newLexer(src))
	if err != nil {
		return nil, err
	}
	if !root.isList || len(root.list) < 2 || root.list[0].atom != "define" {
		return nil, errAt(root, "expected (define (domain ...) ...)")
	}
	head := root.list[1]
	if !head.isList || len(head.list) != 2 || head.list[0].atom != "domain" {
		return nil, errAt(head, "expected (domain NAME)")
	}

	d := &Domain{Name: head.list[1].atom}
	for _, sec := range root.list[2:] {
		if !sec.isList || len(sec.list) == 0 || sec.list[0].isList {
			return nil, errAt(sec, "expected a (:section ...) list")
		}
		switch key := sec.list[0].atom; key {
		case ":requirements":
			for _, r := range sec.list[1:] {
				d.Requirements = append(d.Requirements, Requirement(r.atom))
			}
		case ":types":
			tl, err := parseTypedList(sec.list[1:])
			if err != nil {
				return nil, err
			}
			d.Types = append(d.Types, tl...)
		case ":constants":
			tl, err := parseTypedList(sec.list[1:])
			if err != nil {
				return nil, err
			}
			d.Constants = append(d.Constants, tl...)
		case ":predicates":
			for _, p := range sec.list[1:] {
				decl, err := parsePredicateDecl(p)
				if err != nil {
					return nil, err
				}
				d.Predicates = append(d.Predicates, decl)
			}
		case ":action":
			op, err := parseOperator(sec)
			if err != nil {
				return nil, err
			}
			d.Operators = append(d.Operators, op)
		default:
			return nil, errAt(sec, "unsupported domain section %s", key)
		}
	}
	return d, nil
}

func parsePredicateDecl(e *sexpr) (PredicateDecl, error) {
	if !e.isList || len(e.list) == 0 || e.list[0].isList {
		return PredicateDecl{}, errAt(e, "expected (predicate ?args...)")
	}
	params, err := parseTypedList(e.list[1:])
	if err != nil {
		return PredicateDecl{}, err
	}
	return PredicateDecl{Name: e.list[0].atom, Params: params}, nil
}

func parseOperator(sec *sexpr) (*Operator, error) {
	items := sec.list
	if len(items) < 2 || items[1].isList {
		return nil, errAt(sec, "expected (:action NAME ...)")
	}
	op := &Operator{Name: items[1].atom}

	i := 2
	for i < len(items) {
		key := items[i]
		if key.isList || !strings.HasPrefix(key.atom, ":") {
			return nil, errAt(key, "expected :keyword in action %s", op.Name)
		}
		if i+1 >= len(items) {
			return nil, errAt(key, "%s missing value in action %s", key.atom, op.Name)
		}
		val := items[i+1]
		switch key.atom {
		case ":parameters":
			if !val.isList {
				return nil, errAt(val, "expected parameter list")
			}
			params, err := parseTypedList(val.list)
			if err != nil {
				return nil, err
			}
			op.Params = params
		case ":precondition":
			pre, err := parseCondFormula(val)
			if err != nil {
				return nil, err
			}
			op.Pre = pre
		case ":effect":
			effs, err := parseEffectFormula(val)
			if err != nil {
				return nil, err
			}
			op.Effects = effs
		default:
			return nil, errAt(key, "unsupported action keyword %s", key.atom)
		}
		i += 2
	}
	if len(op.Effects) == 0 {
		return nil, errAt(sec, "action %s has no :effect", op.Name)
	}
	if err := checkVarsDeclared(op); err != nil {
		return nil, err
	}
	return op, nil
}

// checkVarsDeclared rejects operators that use a ?variable outside their
// parameter list.
func checkVarsDeclared(op *Operator) error {
	declared := make(map[string]bool, len(op.Params))
	for _, p := range op.Params {
		declared[p.Name] = true
	}
	check := func(lits []literal) error {
		for _, lit := range lits {
			for _, arg := range lit.args {
				if strings.HasPrefix(arg, "?") && !declared[arg] {
					return errAt(lit.pos, "undeclared variable %s in action %s", arg, op.Name)
				}
			}
		}
		return nil
	}
	if err := check(op.Pre); err != nil {
		return err
	}
	for _, e := range op.Effects {
		for _, lits := range [][]literal{e.guard, e.add, e.del} {
			if err := check(lits); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseTypedList reads "name... [- type]" groups; names before a "-" take
// the type that follows it, trailing names default to "object".
func parseTypedList(items []*sexpr) ([]TypedName, error) {
	var out []TypedName
	var pending []string
	i := 0
	for i < len(items) {
		it := items[i]
		if it.isList {
			return nil, errAt(it, "expected a name, got a list")
		}
		if it.atom == "-" {
			if i+1 >= len(items) || items[i+1].isList {
				return nil, errAt(it, "expected a type after -")
			}
			typ := items[i+1].atom
			if len(pending) == 0 {
				return nil, errAt(it, "dangling - with no names before it")
			}
			for _, n := range pending {
				out = append(out, TypedName{Name: n, Type: typ})
			}
			pending = pending[:0]
			i += 2
			continue
		}
		pending = append(pending, it.atom)
		i++
	}
	for _, n := range pending {
		out = append(out, TypedName{Name: n, Type: "object"})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Formula parsing
// ---------------------------------------------------------------------------

// fragment guard: constructs we must name in errors rather than misparse
// as predicates.
var reservedHeads = map[string]bool{
	"and": true, "not": true, "or": true, "when": true,
	"forall": true, "exists": true, "imply": true, "=": true,
	"increase": true, "decrease": true, "assign": true,
}

func parseAtomLiteral(e *sexpr, neg bool) (literal, error) {
	if !e.isList || len(e.list) == 0 {
		return literal{}, errAt(e, "expected (predicate args...)")
	}
	head := e.list[0]
	if head.isList {
		return literal{}, errAt(head, "expected a predicate name")
	}
	if reservedHeads[head.atom] {
		return literal{}, errAt(head, "unsupported construct %s", head.atom)
	}
	lit := literal{pred: head.atom, neg: neg, pos: e}
	for _, a := range e.list[1:] {
		if a.isList {
			return literal{}, errAt(a, "expected a constant or ?variable")
		}
		lit.args = append(lit.args, a.atom)
	}
	return lit, nil
}

// parseCondFormula reads a condition: an atom, (not atom), a conjunction
// of those, or the empty condition () / (and).
func parseCondFormula(e *sexpr) ([]literal, error) {
	if !e.isList {
		return nil, errAt(e, "expected a condition")
	}
	if len(e.list) == 0 {
		return nil, nil
	}
	head := e.list[0]
	if head.isList {
		return nil, errAt(head, "expected a predicate or connective")
	}
	switch head.atom {
	case "and":
		var out []literal
		for _, sub := range e.list[1:] {
			lits, err := parseCondFormula(sub)
			if err != nil {
				return nil, err
			}
			out = append(out, lits...)
		}
		return out, nil
	case "not":
		if len(e.list) != 2 {
			return nil, errAt(e, "not takes exactly one atom")
		}
		lit, err := parseAtomLiteral(e.list[1], true)
		if err != nil {
			return nil, err
		}
		return []literal{lit}, nil
	case "or", "forall", "exists", "imply", "when":
		return nil, errAt(head, "unsupported construct %s in condition", head.atom)
	default:
		lit, err := parseAtomLiteral(e, false)
		if err != nil {
			return nil, err
		}
		return []literal{lit}, nil
	}
}

// parseEffectFormula reads an effect: literals, a conjunction, and (when
// COND EFFECT) clauses. Unconditional literals collapse into a single
// leading clause; when-clauses follow in declaration order.
func parseEffectFormula(e *sexpr) ([]effectClause, error) {
	var uncond effectClause
	var conds []effectClause

	var walk func(e *sexpr) error
	walk = func(e *sexpr) error {
		if !e.isList || len(e.list) == 0 {
			return errAt(e, "expected an effect")
		}
		head := e.list[0]
		if head.isList {
			return errAt(head, "expected a predicate or connective")
		}
		switch head.atom {
		case "and":
			for _, sub := range e.list[1:] {
				if err := walk(sub); err != nil {
					return err
				}
			}
			return nil
		case "not":
			if len(e.list) != 2 {
				return errAt(e, "not takes exactly one atom")
			}
			lit, err := parseAtomLiteral(e.list[1], true)
			if err != nil {
				return err
			}
			uncond.del = append(uncond.del, lit)
			return nil
		case "when":
			if len(e.list) != 3 {
				return errAt(e, "when takes a condition and an effect")
			}
			guard, err := parseCondFormula(e.list[1])
			if err != nil {
				return err
			}
			add, del, err := parseSimpleEffect(e.list[2])
			if err != nil {
				return err
			}
			conds = append(conds, effectClause{guard: guard, add: add, del: del})
			return nil
		case "or", "forall", "exists", "imply":
			return errAt(head, "unsupported construct %s in effect", head.atom)
		default:
			lit, err := parseAtomLiteral(e, false)
			if err != nil {
				return err
			}
			uncond.add = append(uncond.add, lit)
			return nil
		}
	}
	if err := walk(e); err != nil {
		return nil, err
	}

	var out []effectClause
	if len(uncond.add) > 0 || len(uncond.del) > 0 {
		out = append(out, uncond)
	}
	out = append(out, conds...)
	return out, nil
}

// parseSimpleEffect reads the body of a when-clause: literals or a
// conjunction of literals, with no nested when.
func parseSimpleEffect(e *sexpr) (add, del []literal, err error) {
	if !e.isList || len(e.list) == 0 {
		return nil, nil, errAt(e, "expected an effect")
	}
	head := e.list[0]
	if head.isList {
		return nil, nil, errAt(head, "expected a predicate or connective")
	}
	switch head.atom {
	case "and":
		for _, sub := range e.list[1:] {
			a, d, err := parseSimpleEffect(sub)
			if err != nil {
				return nil, nil, err
			}
			add = append(add, a...)
			del = append(del, d...)
		}
		return add, del, nil
	case "not":
		if len(e.list) != 2 {
			return nil, nil, errAt(e, "not takes exactly one atom")
		}
		lit, lerr := parseAtomLiteral(e.list[1], true)
		if lerr != nil {
			return nil, nil, lerr
		}
		return nil, []literal{lit}, nil
	case "when":
		return nil, nil, errAt(head, "nested when is not supported")
	case "or", "forall", "exists", "imply":
		return nil, nil, errAt(head, "unsupported construct %s in effect", head.atom)
	default:
		lit, lerr := parseAtomLiteral(e, false)
		if lerr != nil {
			return nil, nil, lerr
		}
		return []literal{lit}, nil, nil
	}
}

// ---------------------------------------------------------------------------
// Problem parsing
// ---------------------------------------------------------------------------

// ParseProblemFile parses PDDL problem text. Init facts must be positive
// ground atoms; the goal follows the same condition fragment as operator
// preconditions.
func ParseProblemFile(src string) (*ProblemFile, error) {
	root, err := readSexpr(newLexer(src))
	if err != nil {
		return nil, err
	}
	if !root.isList || len(root.list) < 2 || root.list[0].atom != "define" {
		return nil, errAt(root, "expected (define (problem ...) ...)")
	}
	head := root.list[1]
	if !head.isList || len(head.list) != 2 || head.list[0].atom != "problem" {
		return nil, errAt(head, "expected (problem NAME)")
	}

	pf := &ProblemFile{Name: head.list[1].atom}
	for _, sec := range root.list[2:] {
		if !sec.isList || len(sec.list) == 0 || sec.list[0].isList {
			return nil, errAt(sec, "expected a (:section ...) list")
		}
		switch key := sec.list[0].atom; key {
		case ":domain":
			if len(sec.list) != 2 || sec.list[1].isList {
				return nil, errAt(sec, "expected (:domain NAME)")
			}
			pf.DomainName = sec.list[1].atom
		case ":requirements":
			for _, r := range sec.list[1:] {
				pf.Requirements = append(pf.Requirements, Requirement(r.atom))
			}
		case ":objects":
			tl, err := parseTypedList(sec.list[1:])
			if err != nil {
				return nil, err
			}
			pf.Objects = append(pf.Objects, tl...)
		case ":init":
			for _, f := range sec.list[1:] {
				if f.isList && len(f.list) > 0 && !f.list[0].isList && f.list[0].atom == "not" {
					return nil, errAt(f, "negative init facts are not supported")
				}
				lit, err := parseAtomLiteral(f, false)
				if err != nil {
					return nil, err
				}
				pf.Init = append(pf.Init, lit)
			}
		case ":goal":
			if len(sec.list) != 2 {
				return nil, errAt(sec, "expected (:goal CONDITION)")
			}
			goal, err := parseCondFormula(sec.list[1])
			if err != nil {
				return nil, err
			}
			pf.Goal = goal
		default:
			return nil, errAt(sec, "unsupported problem section %s", key)
		}
	}
	if pf.DomainName == "" {
		return nil, errAt(root, "problem %s has no (:domain ...)", pf.Name)
	}
	return pf, nil
}
