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

// Package perturb applies seeded statistical transforms to numeric columns:
// outliers, shocks, seasonal multipliers, fraud outliers and correlation.
//
// Every transform returns a new table and leaves its input untouched.
// Conditions that make a transform meaningless, such as an empty table or
// a missing or non-numeric column, return the input table as is. Errors are
// reserved for malformed requests.
package perturb

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/magpierre/dataverse/datatable"
)

// Method selects how a magnitude is applied.
type Method string

const (
	Multiplier Method = "multiplier"
	Additive   Method = "additive"
)

// DefaultDateColumn is the date column used when a request names none.
const DefaultDateColumn = "Date"

func (m Method) resolve() (Method, error) {
	switch m {
	case "", Multiplier:
		return Multiplier, nil
	case Additive:
		return Additive, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMethod, m)
}

func (m Method) apply(v, magnitude float64) float64 {
	if m == Additive {
		return v + magnitude
	}
	return v * magnitude
}

// newRand returns a generator seeded from seed, or a randomly seeded one
// when seed is nil.
func newRand(seed *int64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s := uint64(*seed)
	return rand.New(rand.NewPCG(s, s))
}

func checkFrequency(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidFrequency, f)
	}
	return nil
}

// count resolves how many of n rows a frequency selects: at least one
// whenever there are rows.
func count(f float64, n int) int {
	if n == 0 {
		return 0
	}
	return max(1, int(math.Floor(f*float64(n))))
}

// sample picks k distinct positions from candidates.
func sample(rng *rand.Rand, candidates []int, k int) []int {
	perm := rng.Perm(len(candidates))
	out := make([]int, k)
	for i := range out {
		out[i] = candidates[perm[i]]
	}
	return out
}

func allRows(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// candidates returns the rows selected by where, or every row when where
// is nil.
func candidates(t *datatable.Table, where datatable.Filter) ([]int, error) {
	if where == nil {
		return allRows(t.RowCount()), nil
	}
	mask, err := datatable.Mask(t, where)
	if err != nil {
		return nil, err
	}
	var out []int
	for i, ok := range mask {
		if ok {
			out = append(out, i)
		}
	}
	return out, nil
}

// numeric returns the named column if it exists and holds numbers.
func numeric(t *datatable.Table, name string) (datatable.Column, bool) {
	col, err := t.Column(name)
	if err != nil || !col.Type.IsNumeric() {
		return datatable.Column{}, false
	}
	return col, true
}

func floatAt(col datatable.Column, i int) (float64, bool) {
	return col.Values[i].Float()
}

// commit writes updates into a copy of col. An Int column stays Int when
// keepInt is set, with updates rounded half to even; otherwise it is
// promoted to Float.
func commit(t *datatable.Table, col datatable.Column, updates map[int]float64, keepInt bool) (*datatable.Table, error) {
	if len(updates) == 0 {
		return t, nil
	}
	vals := append([]datatable.Value(nil), col.Values...)
	typ := col.Type
	if typ == datatable.TypeInt && !keepInt {
		typ = datatable.TypeFloat
		for i, v := range vals {
			if f, ok := v.Float(); ok {
				vals[i] = datatable.FloatValue(f)
			} else {
				vals[i] = datatable.NewNullValue(typ)
			}
		}
	}
	for i, f := range updates {
		if typ == datatable.TypeInt {
			vals[i] = datatable.IntValue(int64(math.RoundToEven(f)))
		} else {
			vals[i] = datatable.FloatValue(f)
		}
	}
	return t.WithColumn(col.Name, typ, vals)
}

func isIntegral(f float64) bool { return f == math.Trunc(f) && !math.IsInf(f, 0) }

// stats returns the mean and the sample standard deviation (n-1) of the
// non-missing values. std is NaN with fewer than two values.
func stats(col datatable.Column) (mean, std float64) {
	var xs []float64
	for i := range col.Values {
		if f, ok := floatAt(col, i); ok {
			xs = append(xs, f)
		}
	}
	if len(xs) == 0 {
		return math.NaN(), math.NaN()
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, math.NaN()
	}
	ss := 0.0
	for _, x := range xs {
		ss += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}
