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
	"sort"

	"github.com/shopspring/decimal"

	"github.com/magpierre/dataverse/datatable"
)

func numpyModule() *Module {
	np := newModule("np")

	np.fn("abs", 1, 1, unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		if v.IsNull {
			return missing.v, nil
		}
		if isIntegral(v) {
			i := asInt(v)
			if i < 0 {
				i = -i
			}
			return datatable.IntValue(i), nil
		}
		f, err := number(v)
		return datatable.FloatValue(math.Abs(f)), err
	}))
	np.fn("sign", 1, 1, unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		if v.IsNull {
			return missing.v, nil
		}
		f, err := number(v)
		if err != nil {
			return datatable.Value{}, err
		}
		s := 0.0
		switch {
		case f > 0:
			s = 1
		case f < 0:
			s = -1
		}
		if isIntegral(v) {
			return datatable.IntValue(int64(s)), nil
		}
		return datatable.FloatValue(s), nil
	}))
	np.fn("sqrt", 1, 1, floatFunc(math.Sqrt))
	np.fn("exp", 1, 1, floatFunc(math.Exp))
	np.fn("log", 1, 1, floatFunc(math.Log))
	np.fn("log1p", 1, 1, floatFunc(math.Log1p))
	np.fn("log10", 1, 1, floatFunc(math.Log10))
	np.fn("log2", 1, 1, floatFunc(math.Log2))
	np.fn("floor", 1, 1, floatFunc(math.Floor))
	np.fn("ceil", 1, 1, floatFunc(math.Ceil))
	np.fn("sin", 1, 1, floatFunc(math.Sin))
	np.fn("cos", 1, 1, floatFunc(math.Cos))
	np.fn("tan", 1, 1, floatFunc(math.Tan))
	np.fn("isnan", 1, 1, unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		if v.IsNull {
			return datatable.BoolValue(true), nil
		}
		if _, err := number(v); err != nil {
			return datatable.Value{}, err
		}
		return datatable.BoolValue(false), nil
	}))
	np.fn("round", 1, 2, npRound)
	np.fn("power", 2, 2, numeric2(func(a, b datatable.Value) (datatable.Value, error) {
		if isIntegral(a) && isIntegral(b) && asInt(b) >= 0 {
			return datatable.IntValue(ipow(asInt(a), asInt(b))), nil
		}
		fa, _ := a.Float()
		fb, _ := b.Float()
		return datatable.FloatValue(math.Pow(fa, fb)), nil
	}))
	np.fn("maximum", 2, 2, numeric2(func(a, b datatable.Value) (datatable.Value, error) {
		if c, _ := order(a, b); c >= 0 {
			return a, nil
		}
		return b, nil
	}))
	np.fn("minimum", 2, 2, numeric2(func(a, b datatable.Value) (datatable.Value, error) {
		if c, _ := order(a, b); c <= 0 {
			return a, nil
		}
		return b, nil
	}))
	np.fn("clip", 3, 3, func(_ *callContext, args []value) (value, error) {
		return elementwise(args, func(c []datatable.Value) (datatable.Value, error) {
			for _, v := range c {
				if _, err := number(v); err != nil {
					return datatable.Value{}, err
				}
			}
			v, lo, hi := c[0], c[1], c[2]
			if v.IsNull {
				return missing.v, nil
			}
			if !lo.IsNull {
				if o, _ := order(v, lo); o < 0 {
					v = lo
				}
			}
			if !hi.IsNull {
				if o, _ := order(v, hi); o > 0 {
					v = hi
				}
			}
			return v, nil
		})
	})
	np.fn("where", 3, 3, func(_ *callContext, args []value) (value, error) {
		return elementwise(args, func(c []datatable.Value) (datatable.Value, error) {
			if truthy(c[0]) {
				return c[1], nil
			}
			return c[2], nil
		})
	})

	np.fn("sum", 1, 1, reduce(func(xs []datatable.Value) datatable.Value {
		if allIntegral(xs) {
			var s int64
			for _, x := range xs {
				s += asInt(x)
			}
			return datatable.IntValue(s)
		}
		s := 0.0
		for _, x := range xs {
			f, _ := x.Float()
			s += f
		}
		return datatable.FloatValue(s)
	}))
	np.fn("mean", 1, 1, reduce(func(xs []datatable.Value) datatable.Value {
		if len(xs) == 0 {
			return missing.v
		}
		return datatable.FloatValue(mean(floats(xs)))
	}))
	np.fn("std", 1, 1, reduce(func(xs []datatable.Value) datatable.Value {
		if len(xs) == 0 {
			return missing.v
		}
		fs := floats(xs)
		m := mean(fs)
		ss := 0.0
		for _, f := range fs {
			ss += (f - m) * (f - m)
		}
		return datatable.FloatValue(math.Sqrt(ss / float64(len(fs))))
	}))
	np.fn("min", 1, 1, reduce(func(xs []datatable.Value) datatable.Value { return extreme(xs, -1) }))
	np.fn("max", 1, 1, reduce(func(xs []datatable.Value) datatable.Value { return extreme(xs, 1) }))
	np.fn("median", 1, 1, reduce(func(xs []datatable.Value) datatable.Value {
		if len(xs) == 0 {
			return missing.v
		}
		fs := floats(xs)
		sort.Float64s(fs)
		mid := len(fs) / 2
		if len(fs)%2 == 1 {
			return datatable.FloatValue(fs[mid])
		}
		return datatable.FloatValue((fs[mid-1] + fs[mid]) / 2)
	}))

	np.constant("pi", datatable.FloatValue(math.Pi))
	np.constant("e", datatable.FloatValue(math.E))
	np.constant("inf", datatable.FloatValue(math.Inf(1)))
	np.constant("nan", missing.v)

	np.sub(numpyRandomModule())
	return np
}

func numpyRandomModule() *Module {
	r := newModule("np.random")
	r.fn("uniform", 0, 2, func(c *callContext, args []value) (value, error) {
		args = withDefaults(args, 0.0, 1.0)
		return elementwise(args, func(p []datatable.Value) (datatable.Value, error) {
			lo, hi, err := bounds(p)
			if err != nil {
				return datatable.Value{}, err
			}
			return datatable.FloatValue(lo + (hi-lo)*c.rng.Float64()), nil
		})
	})
	r.fn("normal", 0, 2, func(c *callContext, args []value) (value, error) {
		args = withDefaults(args, 0.0, 1.0)
		return elementwise(args, func(p []datatable.Value) (datatable.Value, error) {
			mu, sigma, err := bounds(p)
			if err != nil {
				return datatable.Value{}, err
			}
			if sigma < 0 {
				return datatable.Value{}, fmt.Errorf("%w: scale < 0", errDomain)
			}
			return datatable.FloatValue(mu + sigma*c.rng.NormFloat64()), nil
		})
	})
	r.fn("randint", 1, 2, func(c *callContext, args []value) (value, error) {
		if len(args) == 1 {
			args = []value{scalar(datatable.IntValue(0)), args[0]}
		}
		return elementwise(args, func(p []datatable.Value) (datatable.Value, error) {
			lo, hi, err := bounds(p)
			if err != nil {
				return datatable.Value{}, err
			}
			l, h, err := int64Bounds(math.Floor(lo), math.Floor(hi))
			if err != nil {
				return datatable.Value{}, err
			}
			if h <= l {
				return datatable.Value{}, fmt.Errorf("%w: low >= high", errDomain)
			}
			return datatable.IntValue(c.intBetween(l, h-1)), nil
		})
	})
	r.fn("poisson", 0, 1, func(c *callContext, args []value) (value, error) {
		args = withDefaults(args, 1.0)
		return elementwise(args, func(p []datatable.Value) (datatable.Value, error) {
			if p[0].IsNull {
				return datatable.Value{}, fmt.Errorf("%w: missing distribution parameter", errType)
			}
			lam, err := number(p[0])
			if err != nil {
				return datatable.Value{}, err
			}
			if lam < 0 || lam > 1e15 || math.IsNaN(lam) {
				return datatable.Value{}, fmt.Errorf("%w: lam must lie in [0, 1e15]", errDomain)
			}
			return datatable.IntValue(poisson(c, lam)), nil
		})
	})
	r.fn("choice", 1, 1, func(c *callContext, args []value) (value, error) {
		pool, err := cells(args[0])
		if err != nil {
			return nil, err
		}
		if len(pool) == 0 {
			return nil, fmt.Errorf("%w: cannot choose from an empty sequence", errIndex)
		}
		return scalar(pool[c.rng.IntN(len(pool))]), nil
	})
	return r
}

// maxRoundPlaces bounds the decimals accepted by np.round. float64 has no
// digits beyond 10^-324 and no magnitude beyond 10^308, so larger counts
// are no-ops or round to zero.
const maxRoundPlaces = 330

func npRound(_ *callContext, args []value) (value, error) {
	if len(args) == 1 {
		args = append(args, scalar(datatable.IntValue(0)))
	}
	return elementwise(args, func(c []datatable.Value) (datatable.Value, error) {
		v, d := c[0], c[1]
		if v.IsNull {
			return missing.v, nil
		}
		if _, err := number(v); err != nil {
			return datatable.Value{}, err
		}
		if !isIntegral(d) || d.IsNull {
			return datatable.Value{}, fmt.Errorf("%w: decimals must be an integer", errType)
		}
		places := asInt(d)
		if isIntegral(v) && places >= 0 {
			return datatable.IntValue(asInt(v)), nil
		}
		f, _ := v.Float()
		switch {
		case math.IsInf(f, 0):
			return v, nil
		case places > maxRoundPlaces:
			return datatable.FloatValue(f), nil
		case places < -maxRoundPlaces:
			return datatable.FloatValue(0), nil
		}
		r, _ := decimal.NewFromFloat(f).RoundBank(int32(places)).Float64()
		return datatable.FloatValue(r), nil
	})
}

// numeric2 lifts a binary numeric function elementwise. A missing operand
// gives missing.
func numeric2(f func(a, b datatable.Value) (datatable.Value, error)) func(*callContext, []value) (value, error) {
	return func(_ *callContext, args []value) (value, error) {
		return elementwise(args, func(c []datatable.Value) (datatable.Value, error) {
			for _, v := range c {
				if _, err := number(v); err != nil {
					return datatable.Value{}, err
				}
			}
			if c[0].IsNull || c[1].IsNull {
				return missing.v, nil
			}
			return f(c[0], c[1])
		})
	}
}

// reduce collapses a column or list into one cell, skipping missing cells.
func reduce(f func([]datatable.Value) datatable.Value) func(*callContext, []value) (value, error) {
	return func(_ *callContext, args []value) (value, error) {
		all, err := cells(args[0])
		if err != nil {
			return nil, err
		}
		xs := make([]datatable.Value, 0, len(all))
		for _, v := range all {
			if v.IsNull {
				continue
			}
			if _, err := number(v); err != nil {
				return nil, err
			}
			xs = append(xs, v)
		}
		return scalar(f(xs)), nil
	}
}

func withDefaults(args []value, defaults ...float64) []value {
	out := append([]value(nil), args...)
	for i := len(args); i < len(defaults); i++ {
		out = append(out, scalar(datatable.FloatValue(defaults[i])))
	}
	return out
}

func bounds(p []datatable.Value) (float64, float64, error) {
	if p[0].IsNull || p[1].IsNull {
		return 0, 0, fmt.Errorf("%w: missing distribution parameter", errType)
	}
	a, err := number(p[0])
	if err != nil {
		return 0, 0, err
	}
	b, err := number(p[1])
	return a, b, err
}

func allIntegral(xs []datatable.Value) bool {
	for _, x := range xs {
		if !isIntegral(x) {
			return false
		}
	}
	return true
}

func floats(xs []datatable.Value) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i], _ = x.Float()
	}
	return out
}

func mean(fs []float64) float64 {
	s := 0.0
	for _, f := range fs {
		s += f
	}
	return s / float64(len(fs))
}

// extreme returns the minimum (dir < 0) or maximum (dir > 0) cell.
func extreme(xs []datatable.Value, dir int) datatable.Value {
	if len(xs) == 0 {
		return missing.v
	}
	best := xs[0]
	for _, x := range xs[1:] {
		if c, _ := order(x, best); c*dir > 0 {
			best = x
		}
	}
	return best
}

// ipow raises base to a non-negative exponent by squaring.
func ipow(base, exp int64) int64 {
	r := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			r *= base
		}
		base *= base
		exp >>= 1
	}
	return r
}

// poisson uses Knuth's multiplication method, which suits the small rates
// found in business data.
func poisson(c *callContext, lam float64) int64 {
	// Knuth's product method needs about lam draws; large means use the
	// normal approximation.
	if lam > 500 {
		k := math.Round(lam + math.Sqrt(lam)*c.rng.NormFloat64())
		return int64(math.Max(0, k))
	}
	l := math.Exp(-lam)
	var k int64
	p := c.rng.Float64()
	for p > l {
		k++
		p *= c.rng.Float64()
	}
	return k
}
