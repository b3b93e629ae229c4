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

package columns

import (
	"fmt"
	"hash/fnv"
	"log"
	"math"
	"math/rand/v2"

	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/formula"
)

// Strategies reported for a materialised column.
const (
	StrategyChoice  = "choice"
	StrategyRange   = "range"
	StrategyMissing = "missing"
)

// Report describes how one column was produced.
type Report struct {
	Column string
	Kind   Kind
	// Strategy is choice, range, vectorized, rowwise or missing.
	Strategy string
	// FailedRows counts rows that fell back to missing during row-wise
	// evaluation.
	FailedRows int
	// Err is set when the whole column was filled with missing values.
	Err error
}

// Applier adds custom columns to tables.
type Applier struct {
	seed   int64
	engine *formula.Engine
	notify func(string)
}

// Option configures an Applier.
type Option func(*Applier)

// WithEngine sets the formula engine. The default uses the standard
// modules seeded with the applier's seed.
func WithEngine(e *formula.Engine) Option {
	return func(a *Applier) { a.engine = e }
}

// WithNotifier sets the callback for warnings. It is also handed to the
// default formula engine.
func WithNotifier(notify func(string)) Option {
	return func(a *Applier) {
		if notify != nil {
			a.notify = notify
		}
	}
}

// NewApplier creates an applier whose random columns derive from seed.
func NewApplier(seed int64, opts ...Option) *Applier {
	a := &Applier{
		seed:   seed,
		notify: func(msg string) { log.Printf("columns: %s", msg) },
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.engine == nil {
		a.engine = formula.NewEngine(formula.DefaultConfig().WithSeed(seed), formula.WithNotifier(a.notify))
	}
	return a
}

// Apply adds entries to t in order and returns the new table with one
// report per entry. A column that cannot be computed is filled with
// missing values instead of failing the table. An empty table is returned
// unchanged.
func (a *Applier) Apply(t *datatable.Table, entries Entries) (*datatable.Table, []Report) {
	if t == nil || t.RowCount() == 0 || len(entries) == 0 {
		return t, nil
	}
	s := uint64(a.seed)
	rng := rand.New(rand.NewPCG(s, s))

	reports := make([]Report, 0, len(entries))
	for _, entry := range entries {
		typ, values, rep := a.materialise(t, entry, rng)
		next, err := t.WithColumn(entry.Name, typ, values)
		if err != nil {
			rep.Err = err
			rep.Strategy = StrategyMissing
			a.notify(fmt.Sprintf("column %q: %v", entry.Name, err))
			reports = append(reports, rep)
			continue
		}
		t = next
		reports = append(reports, rep)
	}
	return t, reports
}

func (a *Applier) materialise(t *datatable.Table, entry Entry, rng *rand.Rand) (datatable.DataType, []datatable.Value, Report) {
	n := t.RowCount()
	rep := Report{Column: entry.Name}
	if entry.Spec == nil {
		rep.Err = fmt.Errorf("%w: column %q has no specification", ErrInvalidSpec, entry.Name)
		return a.missing(n, datatable.TypeFloat, rep)
	}
	rep.Kind = entry.Spec.Kind()
	if err := entry.Spec.Validate(); err != nil {
		rep.Err = err
		return a.missing(n, datatable.TypeFloat, rep)
	}

	switch s := entry.Spec.(type) {
	case Choice:
		if len(s.Options) == 0 {
			rep.Strategy = StrategyMissing
			return datatable.TypeString, nulls(n, datatable.TypeString), rep
		}
		values := make([]datatable.Value, n)
		for i := range values {
			values[i] = datatable.StringValue(s.Options[rng.IntN(len(s.Options))])
		}
		rep.Strategy = StrategyChoice
		return datatable.TypeString, values, rep

	case Range:
		values := make([]datatable.Value, n)
		typ := datatable.TypeFloat
		if s.Integral {
			typ = datatable.TypeInt
		}
		for i := range values {
			v := s.Min + (s.Max-s.Min)*rng.Float64()
			if s.Integral {
				values[i] = datatable.IntValue(int64(math.Trunc(v)))
			} else {
				values[i] = datatable.FloatValue(v)
			}
		}
		rep.Strategy = StrategyRange
		return typ, values, rep

	case Formula:
		engine := a.engine.WithSeed(columnSeed(a.engine.Config().Seed, entry.Name))
		out, err := engine.EvaluateColumn(s.Expr, t)
		if err != nil {
			rep.Err = err
			return a.missing(n, datatable.TypeFloat, rep)
		}
		rep.Strategy = out.Strategy
		rep.FailedRows = len(out.RowErrors)
		return out.Type, out.Values, rep
	}
	rep.Err = fmt.Errorf("%w: %T", ErrUnknownKind, entry.Spec)
	return a.missing(n, datatable.TypeFloat, rep)
}

// columnSeed gives every formula column its own random stream. It depends
// only on the seed and the column name, so re-applying a column
// reproduces it.
func columnSeed(seed int64, name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}

func (a *Applier) missing(n int, typ datatable.DataType, rep Report) (datatable.DataType, []datatable.Value, Report) {
	rep.Strategy = StrategyMissing
	a.notify(fmt.Sprintf("column %q filled with missing values: %v", rep.Column, rep.Err))
	return typ, nulls(n, typ), rep
}

func nulls(n int, typ datatable.DataType) []datatable.Value {
	out := make([]datatable.Value, n)
	for i := range out {
		out[i] = datatable.NewNullValue(typ)
	}
	return out
}
