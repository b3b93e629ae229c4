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

package perturb

import (
	"math"

	"github.com/magpierre/dataverse/datatable"
)

// OutlierRequest configures InjectOutliers.
type OutlierRequest struct {
	// Columns lists the target columns. Missing and non-numeric columns are
	// skipped.
	Columns []string
	// Frequency is the fraction of rows to alter, within [0, 1].
	Frequency float64
	// Magnitude is the lower bound of the random factor; the upper bound is
	// 1.5 times Magnitude.
	Magnitude float64
	Method    Method
	Seed      *int64
}

// InjectOutliers alters max(1, floor(Frequency*n)) distinct rows. Every
// target column draws its own factors in [Magnitude, 1.5*Magnitude] and
// random signs. Multiplier mode maps v to v*(1+sign*(factor-1)); additive
// mode adds sign*factor*mean(|column|). Results are clipped at zero when the
// column held no negative values, and integer columns stay integers.
func InjectOutliers(t *datatable.Table, req OutlierRequest) (*datatable.Table, error) {
	if err := checkFrequency(req.Frequency); err != nil {
		return nil, err
	}
	method, err := req.Method.resolve()
	if err != nil {
		return nil, err
	}
	n := t.RowCount()
	if n == 0 || len(req.Columns) == 0 {
		return t, nil
	}

	rng := newRand(req.Seed)
	rows := sample(rng, allRows(n), count(req.Frequency, n))
	lo, hi := req.Magnitude, req.Magnitude*1.5

	out := t
	for _, name := range req.Columns {
		col, ok := numeric(out, name)
		if !ok {
			continue
		}
		factors := make([]float64, len(rows))
		for i := range factors {
			factors[i] = lo + (hi-lo)*rng.Float64()
		}
		signs := make([]float64, len(rows))
		for i := range signs {
			signs[i] = float64(2*rng.IntN(2) - 1)
		}

		nonNegative, meanAbs := profile(col)
		updates := make(map[int]float64, len(rows))
		for j, r := range rows {
			v, ok := floatAt(col, r)
			if !ok {
				continue
			}
			var nv float64
			if method == Multiplier {
				nv = v * (1 + signs[j]*(factors[j]-1))
			} else {
				nv = v + signs[j]*factors[j]*meanAbs
			}
			if nonNegative {
				nv = math.Max(nv, 0)
			}
			updates[r] = nv
		}
		if out, err = commit(out, col, updates, true); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// profile reports whether every present value is non-negative, and the
// mean absolute value.
func profile(col datatable.Column) (nonNegative bool, meanAbs float64) {
	nonNegative = true
	n := 0
	for i := range col.Values {
		v, ok := floatAt(col, i)
		if !ok {
			continue
		}
		if v < 0 {
			nonNegative = false
		}
		meanAbs += math.Abs(v)
		n++
	}
	if n > 0 {
		meanAbs /= float64(n)
	}
	return nonNegative, meanAbs
}
