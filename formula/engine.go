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

// Package formula validates and evaluates user-supplied column formulas.
//
// A formula is a single Go expression over the columns of a table and the
// module aliases np, math, random and pd. Parse and Check enforce the
// allowlist before anything runs. The Engine then tries vectorized
// evaluation over whole columns and falls back to evaluating row by row
// when that fails with ErrVectorization.
package formula

import (
	"errors"
	"fmt"
	"log"

	"github.com/magpierre/dataverse/datatable"
)

// Strategy names reported in an Outcome.
const (
	StrategyVectorized = "vectorized"
	StrategyRowwise    = "rowwise"
)

// Engine evaluates formulas under an immutable Config. It is safe for
// concurrent use.
type Engine struct {
	cfg    Config
	notify func(string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithNotifier sets the callback that receives warnings, such as a
// fallback to row-wise evaluation. The default writes to the standard
// logger.
func WithNotifier(notify func(string)) Option {
	return func(e *Engine) {
		if notify != nil {
			e.notify = notify
		}
	}
}

// NewEngine creates an engine for cfg.
func NewEngine(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		notify: func(msg string) { log.Printf("formula: %s", msg) },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithSeed returns an engine sharing e's modules and notifier whose
// generator starts from seed.
func (e *Engine) WithSeed(seed int64) *Engine {
	c := *e
	c.cfg = e.cfg.WithSeed(seed)
	return &c
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Symbols returns the symbol set for a table with the given columns.
func (e *Engine) Symbols(columns []string) Symbols { return NewSymbols(columns, e.cfg) }

// Validate checks expr against the given columns and the engine's aliases.
func (e *Engine) Validate(expr string, columns []string) error {
	_, err := parseChecked(expr, e.Symbols(columns))
	return err
}

// Outcome is the result of evaluating a formula over a table.
type Outcome struct {
	Values []datatable.Value
	// Type is the inferred column type. All-missing results are Float.
	Type datatable.DataType
	// Strategy is StrategyVectorized or StrategyRowwise.
	Strategy string
	// Fallback holds the vectorization failure that led to row-wise
	// evaluation, if any.
	Fallback error
	// RowErrors lists the rows that evaluated to missing because they
	// failed.
	RowErrors RowErrors
}

// Strategy evaluates a formula over every row of a table.
type Strategy interface {
	Name() string
	Evaluate(expr string, t *datatable.Table) (*Outcome, error)
}

// Vectorized returns the strategy that evaluates once over whole columns.
func (e *Engine) Vectorized() Strategy { return vectorized{e} }

// Rowwise returns the strategy that evaluates once per row.
func (e *Engine) Rowwise() Strategy { return rowwise{e} }

type vectorized struct{ e *Engine }

func (vectorized) Name() string { return StrategyVectorized }

// Evaluate re-validates expr, binds every column to its full vector and
// evaluates once. Runtime failures are wrapped in ErrVectorization.
func (s vectorized) Evaluate(expr string, t *datatable.Table) (*Outcome, error) {
	node, err := parseChecked(expr, s.e.Symbols(t.ColumnNames()))
	if err != nil {
		return nil, err
	}
	bindings := make(map[string]value, t.ColumnCount())
	for _, c := range t.Columns() {
		bindings[c.Name] = vector(c.Values)
	}
	ev := s.e.evaluator(bindings)
	res, err := ev.run(node)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVectorization, err)
	}
	n := t.RowCount()
	var vals []datatable.Value
	switch r := res.(type) {
	case vectorVal:
		if len(r.vals) != n {
			return nil, fmt.Errorf("%w: %w: result has %d rows, table has %d", ErrVectorization, errShape, len(r.vals), n)
		}
		vals = append([]datatable.Value(nil), r.vals...)
	case scalarVal:
		vals = make([]datatable.Value, n)
		for i := range vals {
			vals[i] = r.v
		}
	default:
		return nil, fmt.Errorf("%w: %w: result is a %s", ErrVectorization, errType, res.kind())
	}
	return &Outcome{Values: vals, Type: columnType(vals), Strategy: StrategyVectorized}, nil
}

type rowwise struct{ e *Engine }

func (rowwise) Name() string { return StrategyRowwise }

// Evaluate evaluates expr once per row in order. Failed rows become
// missing; if every row fails the error wraps ErrFormulaUnusable.
func (s rowwise) Evaluate(expr string, t *datatable.Table) (*Outcome, error) {
	if _, err := Parse(expr); err != nil {
		return nil, err
	}
	n := t.RowCount()
	out := &Outcome{Values: make([]datatable.Value, n), Strategy: StrategyRowwise}
	ctx := &callContext{rng: s.e.cfg.newRand()}
	for i := 0; i < n; i++ {
		row, err := t.RowMap(i)
		if err == nil {
			out.Values[i], err = s.e.evalRow(expr, row, ctx)
		}
		if err != nil {
			out.Values[i] = missing.v
			out.RowErrors = append(out.RowErrors, &RowError{Row: i, Err: err})
		}
	}
	if n > 0 && len(out.RowErrors) == n {
		return nil, fmt.Errorf("%w: %w", ErrFormulaUnusable, out.RowErrors)
	}
	out.Type = columnType(out.Values)
	return out, nil
}

// EvaluateVectorized evaluates expr over whole columns of t.
func (e *Engine) EvaluateVectorized(expr string, t *datatable.Table) ([]datatable.Value, error) {
	out, err := e.Vectorized().Evaluate(expr, t)
	if err != nil {
		return nil, err
	}
	return out.Values, nil
}

// EvaluateRow evaluates expr against a single row. The expression is
// validated against the row's keys first.
func (e *Engine) EvaluateRow(expr string, row map[string]datatable.Value) (datatable.Value, error) {
	return e.evalRow(expr, row, &callContext{rng: e.cfg.newRand()})
}

func (e *Engine) evalRow(expr string, row map[string]datatable.Value, ctx *callContext) (datatable.Value, error) {
	names := make([]string, 0, len(row))
	bindings := make(map[string]value, len(row))
	for name, v := range row {
		names = append(names, name)
		bindings[name] = scalar(v)
	}
	node, err := parseChecked(expr, e.Symbols(names))
	if err != nil {
		return datatable.Value{}, err
	}
	ev := &evaluator{bindings: bindings, modules: e.cfg.Modules, ctx: ctx}
	res, err := ev.run(node)
	if err != nil {
		return datatable.Value{}, fmt.Errorf("%w: %w", ErrRowEvaluation, err)
	}
	s, ok := res.(scalarVal)
	if !ok {
		return datatable.Value{}, fmt.Errorf("%w: %w: result is a %s", ErrRowEvaluation, errScalarRequired, res.kind())
	}
	return s.v, nil
}

// EvaluateColumn validates expr, tries vectorized evaluation and falls
// back to row-wise evaluation on ErrVectorization. Rejections and every
// other error are returned unchanged.
func (e *Engine) EvaluateColumn(expr string, t *datatable.Table) (*Outcome, error) {
	if err := e.Validate(expr, t.ColumnNames()); err != nil {
		return nil, err
	}
	out, err := e.Vectorized().Evaluate(expr, t)
	if err == nil {
		return out, nil
	}
	if !errors.Is(err, ErrVectorization) {
		return nil, err
	}
	e.notify(fmt.Sprintf("%q: %v; falling back to row-wise evaluation", expr, err))
	out, rerr := e.Rowwise().Evaluate(expr, t)
	if rerr != nil {
		return nil, rerr
	}
	out.Fallback = err
	return out, nil
}

func (e *Engine) evaluator(bindings map[string]value) *evaluator {
	return &evaluator{
		bindings: bindings,
		modules:  e.cfg.Modules,
		ctx:      &callContext{rng: e.cfg.newRand()},
	}
}

func columnType(vals []datatable.Value) datatable.DataType {
	return datatable.Normalize(vals, datatable.TypeFloat)
}
