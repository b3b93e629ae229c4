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

package filter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magpierre/dataverse/datatable"
)

// CompOp is a comparison operator of a where clause.
type CompOp int

const (
	OpEqual CompOp = iota
	OpNotEqual
	OpGreater
	OpLess
	OpGreaterEqual
	OpLessEqual
	OpContains
)

var opSymbols = map[CompOp]string{
	OpEqual:        "=",
	OpNotEqual:     "!=",
	OpGreater:      ">",
	OpLess:         "<",
	OpGreaterEqual: ">=",
	OpLessEqual:    "<=",
	OpContains:     "~",
}

// ComparisonFilter compares one column against a literal. An empty Column
// with OpContains searches every column.
type ComparisonFilter struct {
	Column   string
	Operator CompOp
	Value    string
}

// ParseQuery parses a where clause such as
// `Country = India AND InvoiceAmount > 1000` into a filter. AND and OR are
// applied left to right. Column names are checked against columns
// (case-insensitive). An empty query yields a nil filter.
func ParseQuery(query string, columns []string) (datatable.Filter, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[strings.ToLower(c)] = true
	}

	parts := splitByLogicOps(query)
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: empty query", datatable.ErrInvalidFilter)
	}

	var (
		result  datatable.Filter
		pending LogicOp
		expect  = true // expecting an expression next
	)
	for _, part := range parts {
		if part.isOperator {
			if expect {
				return nil, fmt.Errorf("%w: unexpected %s", datatable.ErrInvalidFilter, part.text)
			}
			pending = LogicAND
			if strings.EqualFold(part.text, "OR") {
				pending = LogicOR
			}
			expect = true
			continue
		}
		if !expect {
			return nil, fmt.Errorf("%w: missing AND/OR before %q", datatable.ErrInvalidFilter, part.text)
		}
		cmp, err := parseExpression(part.text, known)
		if err != nil {
			return nil, err
		}
		if result == nil {
			result = cmp
		} else {
			result = &CompositeFilter{Filters: []datatable.Filter{result, cmp}, Logic: pending}
		}
		expect = false
	}
	if expect {
		return nil, fmt.Errorf("%w: query ends with an operator", datatable.ErrInvalidFilter)
	}
	return result, nil
}

type queryPart struct {
	text       string
	isOperator bool
}

// splitByLogicOps splits query by AND/OR while preserving the operators.
func splitByLogicOps(query string) []queryPart {
	parts := make([]queryPart, 0)
	var current strings.Builder
	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			parts = append(parts, queryPart{text: s})
		}
		current.Reset()
	}

	for i := 0; i < len(query); {
		matched := false
		for _, word := range []string{"AND", "OR"} {
			end := i + len(word)
			if end > len(query) || !strings.EqualFold(query[i:end], word) {
				continue
			}
			if (i == 0 || isWhitespace(query[i-1])) && (end >= len(query) || isWhitespace(query[end])) {
				flush()
				parts = append(parts, queryPart{text: word, isOperator: true})
				i = end
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		current.WriteByte(query[i])
		i++
	}
	flush()
	return parts
}

func isWhitespace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// parseExpression parses a single expression like "column = value".
func parseExpression(exprStr string, known map[string]bool) (*ComparisonFilter, error) {
	exprStr = strings.TrimSpace(exprStr)

	// Longer symbols first so >= is not read as >.
	operators := []CompOp{OpGreaterEqual, OpLessEqual, OpNotEqual, OpEqual, OpGreater, OpLess, OpContains}

	for _, op := range operators {
		symbol := opSymbols[op]
		idx := strings.Index(exprStr, symbol)
		if idx <= 0 {
			continue
		}
		column := strings.TrimSpace(exprStr[:idx])
		value := strings.Trim(strings.TrimSpace(exprStr[idx+len(symbol):]), "\"'")
		if !known[strings.ToLower(column)] {
			return nil, fmt.Errorf("%w: unknown column %s", datatable.ErrColumnNotFound, column)
		}
		return &ComparisonFilter{Column: column, Operator: op, Value: value}, nil
	}

	// No operator: contains search on all columns.
	return &ComparisonFilter{Operator: OpContains, Value: exprStr}, nil
}

// Evaluate implements the Filter interface.
func (f *ComparisonFilter) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	if f.Column == "" && f.Operator == OpContains {
		term := strings.ToLower(f.Value)
		for _, cell := range row {
			if strings.Contains(strings.ToLower(cell.String()), term) {
				return true, nil
			}
		}
		return false, nil
	}

	cell, ok := lookup(row, columnNames, f.Column)
	if !ok {
		return false, fmt.Errorf("%w: %q", datatable.ErrColumnNotFound, f.Column)
	}
	if cell.IsNull {
		return f.Operator == OpNotEqual, nil
	}

	switch f.Operator {
	case OpEqual:
		if c, ok := compareTyped(cell, f.Value); ok {
			return c == 0, nil
		}
		return strings.EqualFold(cell.String(), f.Value), nil
	case OpNotEqual:
		if c, ok := compareTyped(cell, f.Value); ok {
			return c != 0, nil
		}
		return !strings.EqualFold(cell.String(), f.Value), nil
	case OpContains:
		return strings.Contains(strings.ToLower(cell.String()), strings.ToLower(f.Value)), nil
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual:
		c, ok := compareTyped(cell, f.Value)
		if !ok {
			c = strings.Compare(strings.ToLower(cell.String()), strings.ToLower(f.Value))
		}
		return ordered(c, f.Operator), nil
	}
	return false, fmt.Errorf("%w: unknown operator %d", datatable.ErrInvalidFilter, f.Operator)
}

// Description implements the Filter interface.
func (f *ComparisonFilter) Description() string {
	if f.Column == "" {
		return fmt.Sprintf("* ~ %q", f.Value)
	}
	return fmt.Sprintf("%s %s %q", f.Column, opSymbols[f.Operator], f.Value)
}

// compareTyped compares a numeric or date cell with a literal of the same
// kind. ok is false when the literal does not parse as that kind.
func compareTyped(cell datatable.Value, literal string) (int, bool) {
	if x, ok := cell.Float(); ok && cell.Type != datatable.TypeBool {
		y, err := strconv.ParseFloat(strings.TrimSpace(literal), 64)
		if err != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if cell.Type == datatable.TypeDate || cell.Type == datatable.TypeTimestamp {
		x, _ := cell.Time()
		y, ok := datatable.ParseTime(strings.TrimSpace(literal))
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	}
	return 0, false
}

func ordered(c int, op CompOp) bool {
	switch op {
	case OpGreater:
		return c > 0
	case OpLess:
		return c < 0
	case OpGreaterEqual:
		return c >= 0
	case OpLessEqual:
		return c <= 0
	}
	return false
}
