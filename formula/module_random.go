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

package formula

import (
	"fmt"
	"math"

	"github.com/magpierre/dataverse/datatable"
)

func randomModule() *Module {
	r := newModule("random")

	r.fn("random", 0, 0, func(c *callContext, _ []value) (value, error) {
		return scalar(datatable.FloatValue(c.rng.Float64())), nil
	})
	r.fn("uniform", 2, 2, rngFunc(func(c *callContext, x []float64) (datatable.Value, error) {
		return datatable.FloatValue(x[0] + (x[1]-x[0])*c.rng.Float64()), nil
	}))
	r.fn("randint", 2, 2, rngFunc(func(c *callContext, x []float64) (datatable.Value, error) {
		if x[0] != math.Trunc(x[0]) || x[1] != math.Trunc(x[1]) {
			return datatable.Value{}, fmt.Errorf("%w: randint needs integer bounds", errType)
		}
		lo, hi, err := int64Bounds(x[0], x[1])
		if err != nil {
			return datatable.Value{}, err
		}
		if hi < lo {
			return datatable.Value{}, fmt.Errorf("%w: empty range for randint(%d, %d)", errDomain, lo, hi)
		}
		return datatable.IntValue(c.intBetween(lo, hi)), nil
	}))
	r.fn("gauss", 0, 2, rngFunc(func(c *callContext, x []float64) (datatable.Value, error) {
		mu, sigma := 0.0, 1.0
		if len(x) > 0 {
			mu = x[0]
		}
		if len(x) > 1 {
			sigma = x[1]
		}
		return datatable.FloatValue(mu + sigma*c.rng.NormFloat64()), nil
	}))
	r.fn("choice", 1, 1, func(c *callContext, args []value) (value, error) {
		var pool []datatable.Value
		switch x := args[0].(type) {
		case listVal:
			var err error
			if pool, err = cells(x); err != nil {
				return nil, err
			}
		case scalarVal:
			s, ok := x.v.Str()
			if !ok {
				return nil, fmt.Errorf("%w: choice needs a list or string", errType)
			}
			for _, ch := range s {
				pool = append(pool, datatable.StringValue(string(ch)))
			}
		default:
			return nil, fmt.Errorf("%w: got %s", errScalarRequired, args[0].kind())
		}
		if len(pool) == 0 {
			return nil, fmt.Errorf("%w: cannot choose from an empty sequence", errIndex)
		}
		return scalar(pool[c.rng.IntN(len(pool))]), nil
	})
	return r
}

func rngFunc(f func(*callContext, []float64) (datatable.Value, error)) func(*callContext, []value) (value, error) {
	return func(c *callContext, args []value) (value, error) {
		x, err := realArgs(args)
		if err != nil {
			return nil, err
		}
		v, err := f(c, x)
		if err != nil {
			return nil, err
		}
		return scalar(v), nil
	}
}

// int64Bounds converts float bounds to int64, rejecting values int64
// cannot hold.
func int64Bounds(lo, hi float64) (int64, int64, error) {
	const limit = 1 << 63
	for _, x := range []float64{lo, hi} {
		if math.IsNaN(x) || x < -limit || x >= limit {
			return 0, 0, fmt.Errorf("%w: bound %g outside the 64-bit integer range", errDomain, x)
		}
	}
	return int64(lo), int64(hi), nil
}

// intBetween draws uniformly from [lo, hi]. lo must not exceed hi. The
// span is computed in uint64 so the full int64 range does not overflow.
func (c *callContext) intBetween(lo, hi int64) int64 {
	span := uint64(hi) - uint64(lo)
	if span == math.MaxUint64 {
		return int64(c.rng.Uint64())
	}
	return int64(uint64(lo) + c.rng.Uint64N(span+1))
}
