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
	"strconv"
	"strings"
	"time"

	"github.com/magpierre/dataverse/datatable"
)

func pandasModule() *Module {
	pd := newModule("pd")

	pd.fn("isna", 1, 1, unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		return datatable.BoolValue(v.IsNull), nil
	}))
	pd.fn("notna", 1, 1, unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		return datatable.BoolValue(!v.IsNull), nil
	}))
	pd.fn("to_numeric", 1, 1, unaryFunc(toNumeric))
	pd.fn("to_datetime", 1, 1, unaryFunc(toDatetime))
	pd.fn("year", 1, 1, datePart(func(t time.Time) int64 { return int64(t.Year()) }))
	pd.fn("month", 1, 1, datePart(func(t time.Time) int64 { return int64(t.Month()) }))
	pd.fn("day", 1, 1, datePart(func(t time.Time) int64 { return int64(t.Day()) }))
	pd.fn("days_between", 2, 2, func(_ *callContext, args []value) (value, error) {
		return elementwise(args, func(c []datatable.Value) (datatable.Value, error) {
			from, err := toDatetime(c[0])
			if err != nil {
				return datatable.Value{}, err
			}
			to, err := toDatetime(c[1])
			if err != nil {
				return datatable.Value{}, err
			}
			if from.IsNull || to.IsNull {
				return datatable.NewNullValue(datatable.TypeInt), nil
			}
			a, _ := from.Time()
			b, _ := to.Time()
			return datatable.IntValue(int64(b.Sub(a) / (24 * time.Hour))), nil
		})
	})
	return pd
}

func toNumeric(v datatable.Value) (datatable.Value, error) {
	if v.IsNull {
		return missing.v, nil
	}
	switch v.Type {
	case datatable.TypeInt, datatable.TypeFloat:
		return v, nil
	case datatable.TypeBool:
		return datatable.IntValue(asInt(v)), nil
	case datatable.TypeString:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return missing.v, nil
		}
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return datatable.IntValue(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return datatable.FloatValue(f), nil
		}
		return datatable.Value{}, fmt.Errorf("%w: unable to parse %q as a number", errType, s)
	}
	return datatable.Value{}, fmt.Errorf("%w: %s is not numeric", errType, v.Type)
}

func toDatetime(v datatable.Value) (datatable.Value, error) {
	if v.IsNull {
		return datatable.NewNullValue(datatable.TypeTimestamp), nil
	}
	switch v.Type {
	case datatable.TypeDate, datatable.TypeTimestamp:
		return v, nil
	case datatable.TypeString:
		s, _ := v.Str()
		t, ok := datatable.ParseTime(strings.TrimSpace(s))
		if !ok {
			return datatable.Value{}, fmt.Errorf("%w: unable to parse %q as a date", errType, s)
		}
		if len(strings.TrimSpace(s)) == len(datatable.DateLayout) {
			return datatable.DateValue(t), nil
		}
		return datatable.TimestampValue(t), nil
	}
	return datatable.Value{}, fmt.Errorf("%w: %s is not a date", errType, v.Type)
}

func datePart(f func(time.Time) int64) func(*callContext, []value) (value, error) {
	return unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		d, err := toDatetime(v)
		if err != nil {
			return datatable.Value{}, err
		}
		if d.IsNull {
			return datatable.NewNullValue(datatable.TypeInt), nil
		}
		t, _ := d.Time()
		return datatable.IntValue(f(t)), nil
	})
}
