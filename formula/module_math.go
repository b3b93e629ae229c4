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

// The math and random modules accept scalars only. Handing them a column
// fails, which sends the formula to row-wise evaluation.

func mathModule() *Module {
	m := newModule("math")

	m.fn("log", 1, 2, realFunc(func(x []float64) (datatable.Value, error) {
		if x[0] <= 0 {
			return domainError("log", x[0])
		}
		if len(x) == 1 {
			return datatable.FloatValue(math.Log(x[0])), nil
		}
		if x[1] <= 0 || x[1] == 1 {
			return domainError("log base", x[1])
		}
		return datatable.FloatValue(math.Log(x[0]) / math.Log(x[1])), nil
	}))
	m.fn("log10", 1, 1, realFunc(positive("log10", math.Log10)))
	m.fn("log2", 1, 1, realFunc(positive("log2", math.Log2)))
	m.fn("log1p", 1, 1, realFunc(func(x []float64) (datatable.Value, error) {
		if x[0] <= -1 {
			return domainError("log1p", x[0])
		}
		return datatable.FloatValue(math.Log1p(x[0])), nil
	}))
	m.fn("exp", 1, 1, realFunc(plain(math.Exp)))
	m.fn("sqrt", 1, 1, realFunc(func(x []float64) (datatable.Value, error) {
		if x[0] < 0 {
			return domainError("sqrt", x[0])
		}
		return datatable.FloatValue(math.Sqrt(x[0])), nil
	}))
	m.fn("pow", 2, 2, realFunc(func(x []float64) (datatable.Value, error) {
		if x[0] == 0 && x[1] < 0 {
			return domainError("pow", x[0])
		}
		r := math.Pow(x[0], x[1])
		if math.IsNaN(r) {
			return domainError("pow", x[0])
		}
		return datatable.FloatValue(r), nil
	}))
	m.fn("floor", 1, 1, realFunc(integral("floor", math.Floor)))
	m.fn("ceil", 1, 1, realFunc(integral("ceil", math.Ceil)))
	m.fn("fabs", 1, 1, realFunc(plain(math.Abs)))
	m.fn("sin", 1, 1, realFunc(plain(math.Sin)))
	m.fn("cos", 1, 1, realFunc(plain(math.Cos)))
	m.fn("tan", 1, 1, realFunc(plain(math.Tan)))
	m.fn("hypot", 2, 2, realFunc(func(x []float64) (datatable.Value, error) {
		return datatable.FloatValue(math.Hypot(x[0], x[1])), nil
	}))
	m.fn("isnan", 1, 1, func(_ *callContext, args []value) (value, error) {
		v, err := scalarOf(args[0])
		if err != nil {
			return nil, err
		}
		if v.IsNull {
			return scalar(datatable.BoolValue(true)), nil
		}
		if _, err := number(v); err != nil {
			return nil, err
		}
		return scalar(datatable.BoolValue(false)), nil
	})

	m.constant("pi", datatable.FloatValue(math.Pi))
	m.constant("e", datatable.FloatValue(math.E))
	m.constant("inf", datatable.FloatValue(math.Inf(1)))
	m.constant("nan", missing.v)
	return m
}

func realFunc(f func([]float64) (datatable.Value, error)) func(*callContext, []value) (value, error) {
	return func(_ *callContext, args []value) (value, error) {
		x, err := realArgs(args)
		if err != nil {
			return nil, err
		}
		v, err := f(x)
		if err != nil {
			return nil, err
		}
		return scalar(v), nil
	}
}

func plain(f func(float64) float64) func([]float64) (datatable.Value, error) {
	return func(x []float64) (datatable.Value, error) {
		return datatable.FloatValue(f(x[0])), nil
	}
}

func positive(name string, f func(float64) float64) func([]float64) (datatable.Value, error) {
	return func(x []float64) (datatable.Value, error) {
		if x[0] <= 0 {
			return domainError(name, x[0])
		}
		return datatable.FloatValue(f(x[0])), nil
	}
}

func integral(name string, f func(float64) float64) func([]float64) (datatable.Value, error) {
	return func(x []float64) (datatable.Value, error) {
		r := f(x[0])
		if math.IsInf(r, 0) || r > math.MaxInt64 || r < math.MinInt64 {
			return domainError(name, x[0])
		}
		return datatable.IntValue(int64(r)), nil
	}
}

func domainError(name string, x float64) (datatable.Value, error) {
	return datatable.Value{}, fmt.Errorf("%w: %s(%g)", errDomain, name, x)
}
