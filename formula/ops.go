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
	"strings"
	"time"

	"github.com/magpierre/dataverse/datatable"
)

func binary(op Operator, x, y value) (value, error) {
	return elementwise([]value{x, y}, func(c []datatable.Value) (datatable.Value, error) {
		return binaryScalar(op, c[0], c[1])
	})
}

func binaryScalar(op Operator, a, b datatable.Value) (datatable.Value, error) {
	if op.IsComparison() {
		ok, err := compare(op, a, b)
		if err != nil {
			return datatable.Value{}, err
		}
		return datatable.BoolValue(ok), nil
	}
	if a.IsNull || b.IsNull {
		return missing.v, nil
	}
	if op == OpAdd && a.Type == datatable.TypeString && b.Type == datatable.TypeString {
		sa, _ := a.Str()
		sb, _ := b.Str()
		return datatable.StringValue(sa + sb), nil
	}
	if !isNumber(a) || !isNumber(b) {
		return datatable.Value{}, fmt.Errorf("%w: %s %s %s", errType, a.Type, op, b.Type)
	}
	if isIntegral(a) && isIntegral(b) && op != OpDiv {
		return intArith(op, asInt(a), asInt(b))
	}
	fa, _ := a.Float()
	fb, _ := b.Float()
	return floatArith(op, fa, fb)
}

func intArith(op Operator, a, b int64) (datatable.Value, error) {
	switch op {
	case OpAdd:
		return datatable.IntValue(a + b), nil
	case OpSub:
		return datatable.IntValue(a - b), nil
	case OpMul:
		return datatable.IntValue(a * b), nil
	case OpMod:
		if b == 0 {
			return missing.v, nil
		}
		r := a % b
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return datatable.IntValue(r), nil
	}
	return datatable.Value{}, fmt.Errorf("%w: operator %s", errType, op)
}

func floatArith(op Operator, a, b float64) (datatable.Value, error) {
	switch op {
	case OpAdd:
		return datatable.FloatValue(a + b), nil
	case OpSub:
		return datatable.FloatValue(a - b), nil
	case OpMul:
		return datatable.FloatValue(a * b), nil
	case OpDiv:
		if b == 0 {
			return missing.v, nil
		}
		return datatable.FloatValue(a / b), nil
	case OpMod:
		if b == 0 {
			return missing.v, nil
		}
		r := math.Mod(a, b)
		if r != 0 && (r < 0) != (b < 0) {
			r += b
		}
		return datatable.FloatValue(r), nil
	}
	return datatable.Value{}, fmt.Errorf("%w: operator %s", errType, op)
}

// compare implements the comparison operators. A missing operand makes
// every comparison false except !=.
func compare(op Operator, a, b datatable.Value) (bool, error) {
	if a.IsNull || b.IsNull {
		return op == OpNe, nil
	}
	c, ok := order(a, b)
	if !ok {
		switch op {
		case OpEq:
			return false, nil
		case OpNe:
			return true, nil
		}
		return false, fmt.Errorf("%w: cannot order %s and %s", errType, a.Type, b.Type)
	}
	switch op {
	case OpEq:
		return c == 0, nil
	case OpNe:
		return c != 0, nil
	case OpLt:
		return c < 0, nil
	case OpLe:
		return c <= 0, nil
	case OpGt:
		return c > 0, nil
	case OpGe:
		return c >= 0, nil
	}
	return false, fmt.Errorf("%w: operator %s", errType, op)
}

// order returns -1, 0 or 1 for comparable operands. Dates compare with
// strings by parsing the string.
func order(a, b datatable.Value) (int, bool) {
	switch {
	case isIntegral(a) && isIntegral(b):
		return cmp3(asInt(a), asInt(b)), true
	case isNumber(a) && isNumber(b):
		fa, _ := a.Float()
		fb, _ := b.Float()
		return cmp3(fa, fb), true
	case a.Type == datatable.TypeString && b.Type == datatable.TypeString:
		sa, _ := a.Str()
		sb, _ := b.Str()
		return strings.Compare(sa, sb), true
	case isTime(a) || isTime(b):
		ta, okA := a.Time()
		tb, okB := b.Time()
		if !okA || !okB {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	return 0, false
}

func cmp3[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func unary(op Operator, x value) (value, error) {
	if op == OpNot {
		s, ok := x.(scalarVal)
		if !ok {
			return nil, fmt.Errorf("%w: operand of !", errAmbiguousTruth)
		}
		return scalar(datatable.BoolValue(!truthy(s.v))), nil
	}
	return elementwise([]value{x}, func(c []datatable.Value) (datatable.Value, error) {
		v := c[0]
		if v.IsNull {
			return missing.v, nil
		}
		if !isNumber(v) {
			return datatable.Value{}, fmt.Errorf("%w: %s%s", errType, op, v.Type)
		}
		if isIntegral(v) {
			if op == OpSub {
				return datatable.IntValue(-asInt(v)), nil
			}
			return datatable.IntValue(asInt(v)), nil
		}
		f, _ := v.Float()
		if op == OpSub {
			f = -f
		}
		return datatable.FloatValue(f), nil
	})
}

// truthy reports the truth value of a cell. Missing is false.
func truthy(v datatable.Value) bool {
	if v.IsNull {
		return false
	}
	switch r := v.Raw.(type) {
	case bool:
		return r
	case int64:
		return r != 0
	case float64:
		return r != 0
	case string:
		return r != ""
	case time.Time:
		return true
	}
	return false
}

func isNumber(v datatable.Value) bool {
	return v.Type == datatable.TypeInt || v.Type == datatable.TypeFloat || v.Type == datatable.TypeBool
}

func isIntegral(v datatable.Value) bool {
	return v.Type == datatable.TypeInt || v.Type == datatable.TypeBool
}

func isTime(v datatable.Value) bool {
	return v.Type == datatable.TypeDate || v.Type == datatable.TypeTimestamp
}

// asInt returns the integer payload of an Int or Bool cell.
func asInt(v datatable.Value) int64 {
	if i, ok := v.Int(); ok {
		return i
	}
	if b, ok := v.Bool(); ok && b {
		return 1
	}
	return 0
}
