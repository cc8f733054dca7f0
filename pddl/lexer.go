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

import "strings"

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokSymbol
	tokEOF
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

// lexer tokenizes PDDL text: parens, symbols, ";" comments to end of line.
// Symbols are lowercased on read; PDDL is case-insensitive.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) next() token {
	l.skipBlank()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line, col: l.col}
	}
	line, col := l.line, l.col
	switch c := l.src[l.pos]; c {
	case '(':
		l.advance()
		return token{kind: tokLParen, text: "(", line: line, col: col}
	case ')':
		l.advance()
		return token{kind: tokRParen, text: ")", line: line, col: col}
	default:
		start := l.pos
		for l.pos < len(l.src) && !isDelimiter(l.src[l.pos]) {
			l.advance()
		}
		return token{
			kind: tokSymbol,
			text: strings.ToLower(l.src[start:l.pos]),
			line: line,
			col:  col,
		}
	}
}

func (l *lexer) skipBlank() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ';' {
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance()
			}
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' || c == '\n' {
			l.advance()
			continue
		}
		return
	}
}

func (l *lexer) advance() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	l.pos++
}

func isDelimiter(c byte) bool {
	switch c {
	case '(', ')', ';', ' ', '\t', '\r', '\n':
		return true
	}
	return false
}
