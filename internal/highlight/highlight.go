// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package highlight colours formula text for terminal output.
package highlight

import (
	"strings"
	"unicode"
)

// TokenType represents the type of a syntax token
type TokenType int

const (
	TokenPlain       TokenType = iota // whitespace and anything unrecognised
	TokenKeyword                      // true, false, nil, map
	TokenString                       // "...", `...`, '.'
	TokenNumber                       // 123, 3.14, 0x1A
	TokenOperator                     // +, -, *, ==, &&
	TokenIdentifier                   // names that are neither columns nor modules
	TokenBuiltinType                  // int, string, any in composite literals
	TokenColumn                       // known column names
	TokenModule                       // np, math, random, pd
	TokenMember                       // the name after a dot
)

// Span is a run of text with one token type.
type Span struct {
	Text string
	Type TokenType
}

// Styles maps token types to ANSI SGR sequences.
var Styles = map[TokenType]string{
	TokenKeyword:     "\x1b[1;35m",
	TokenString:      "\x1b[32m",
	TokenNumber:      "\x1b[34m",
	TokenOperator:    "\x1b[90m",
	TokenIdentifier:  "\x1b[4;31m",
	TokenBuiltinType: "\x1b[1;36m",
	TokenColumn:      "\x1b[1m",
	TokenModule:      "\x1b[33m",
	TokenMember:      "\x1b[38;5;208m",
}

const reset = "\x1b[0m"

var keywords = map[string]bool{
	"true": true, "false": true, "nil": true, "map": true,
}

var builtinTypes = map[string]bool{
	"any": true, "bool": true, "float64": true, "int": true,
	"int64": true, "string": true,
}

// Highlighter splits formula lines into styled spans.
type Highlighter struct {
	columns map[string]bool
	modules map[string]bool
}

// New returns a highlighter that knows the given column names and module
// aliases.
func New(columns, modules []string) *Highlighter {
	h := &Highlighter{
		columns: make(map[string]bool, len(columns)),
		modules: make(map[string]bool, len(modules)),
	}
	for _, c := range columns {
		h.columns[c] = true
	}
	for _, m := range modules {
		h.modules[m] = true
	}
	return h
}

// Tokens splits line into spans. Concatenating the span texts gives line
// back.
func (h *Highlighter) Tokens(line string) []Span {
	var spans []Span
	runes := []rune(line)
	afterDot := false
	emit := func(start, end int, typ TokenType) {
		spans = append(spans, Span{Text: string(runes[start:end]), Type: typ})
	}

	for pos := 0; pos < len(runes); {
		r := runes[pos]
		switch {
		case unicode.IsSpace(r):
			end := pos
			for end < len(runes) && unicode.IsSpace(runes[end]) {
				end++
			}
			emit(pos, end, TokenPlain)
			pos = end
			continue

		case r == '"' || r == '`' || r == '\'':
			end := scanString(runes, pos)
			emit(pos, end, TokenString)
			pos = end

		case isDigit(r) || (r == '.' && pos+1 < len(runes) && isDigit(runes[pos+1])):
			end := scanNumber(runes, pos)
			emit(pos, end, TokenNumber)
			pos = end

		case isLetter(r):
			end := scanIdentifier(runes, pos)
			emit(pos, end, h.classify(string(runes[pos:end]), afterDot))
			pos = end

		case isOperator(r):
			end := pos + 1
			for end < len(runes) && end-pos < 2 && isOperator(runes[end]) && !isBracket(runes[end]) && !isBracket(r) {
				end++
			}
			emit(pos, end, TokenOperator)
			afterDot = end-pos == 1 && r == '.'
			pos = end
			continue

		default:
			emit(pos, pos+1, TokenPlain)
			pos++
		}
		afterDot = false
	}
	return spans
}

func (h *Highlighter) classify(word string, afterDot bool) TokenType {
	switch {
	case afterDot:
		return TokenMember
	case h.modules[word]:
		return TokenModule
	case h.columns[word]:
		return TokenColumn
	case keywords[word]:
		return TokenKeyword
	case builtinTypes[word]:
		return TokenBuiltinType
	}
	return TokenIdentifier
}

// ANSI returns line with ANSI colour sequences around each styled span.
func (h *Highlighter) ANSI(line string) string {
	var b strings.Builder
	for _, s := range h.Tokens(line) {
		style, ok := Styles[s.Type]
		if !ok {
			b.WriteString(s.Text)
			continue
		}
		b.WriteString(style)
		b.WriteString(s.Text)
		b.WriteString(reset)
	}
	return b.String()
}

// scanString returns the end of the string literal starting at start.
// Unclosed literals run to the end of the line.
func scanString(runes []rune, start int) int {
	quote := runes[start]
	pos := start + 1
	for pos < len(runes) {
		if quote != '`' && runes[pos] == '\\' && pos+1 < len(runes) {
			pos += 2
			continue
		}
		if runes[pos] == quote {
			return pos + 1
		}
		pos++
	}
	return pos
}

// scanNumber returns the end of the number literal starting at start.
func scanNumber(runes []rune, start int) int {
	pos := start
	for pos < len(runes) {
		r := runes[pos]
		switch {
		case isDigit(r), r == '.', r == '_', r == 'x', r == 'X',
			r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		case (r == '+' || r == '-') && pos > start && (runes[pos-1] == 'e' || runes[pos-1] == 'E'):
		default:
			return pos
		}
		pos++
	}
	return pos
}

func scanIdentifier(runes []rune, start int) int {
	pos := start
	for pos < len(runes) && (isLetter(runes[pos]) || isDigit(runes[pos])) {
		pos++
	}
	return pos
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isOperator(r rune) bool {
	return strings.ContainsRune("+-*/%&|^<>=!:;,.()[]{}~", r)
}

func isBracket(r rune) bool {
	return strings.ContainsRune("()[]{},.", r)
}
