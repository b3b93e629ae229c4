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

// Package datatable provides the in-memory table model shared by the
// formula engine, the column applier and the perturbation transforms.
package datatable

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// DataType represents the type of data in a column.
type DataType int

const (
	// TypeString represents string data.
	TypeString DataType = iota
	// TypeInt represents integer data (stored as int64).
	TypeInt
	// TypeFloat represents floating-point data (stored as float64).
	TypeFloat
	// TypeBool represents boolean data.
	TypeBool
	// TypeDate represents date data (without time).
	TypeDate
	// TypeTimestamp represents timestamp data (date + time).
	TypeTimestamp
	// TypeMixed marks a column whose cells do not share a single type.
	TypeMixed
)

// DateLayout is the layout used to format and parse dates.
const DateLayout = "2006-01-02"

// String returns the string representation of a DataType.
func (dt DataType) String() string {
	switch dt {
	case TypeString:
		return "String"
	case TypeInt:
		return "Int"
	case TypeFloat:
		return "Float"
	case TypeBool:
		return "Bool"
	case TypeDate:
		return "Date"
	case TypeTimestamp:
		return "Timestamp"
	case TypeMixed:
		return "Mixed"
	default:
		return fmt.Sprintf("Unknown(%d)", dt)
	}
}

// IsNumeric reports whether values of this type take part in arithmetic.
func (dt DataType) IsNumeric() bool {
	return dt == TypeInt || dt == TypeFloat
}

// Value is a typed container for cell values.
type Value struct {
	// Raw holds the underlying value: int64, float64, string, bool or
	// time.Time depending on Type. It is nil for null values.
	Raw interface{}

	// Type indicates the data type of this value.
	Type DataType

	// IsNull indicates whether this value is missing.
	IsNull bool
}

// NewValue creates a new Value from a raw value and type.
func NewValue(raw interface{}, dataType DataType) Value {
	if raw == nil {
		return NewNullValue(dataType)
	}
	if f, ok := raw.(float64); ok && math.IsNaN(f) {
		return NewNullValue(dataType)
	}
	return Value{Raw: raw, Type: dataType}
}

// NewNullValue creates a null value of the specified type.
func NewNullValue(dataType DataType) Value {
	return Value{Type: dataType, IsNull: true}
}

// Null is the untyped missing value.
var Null = NewNullValue(TypeMixed)

// IntValue wraps an integer.
func IntValue(v int64) Value { return Value{Raw: v, Type: TypeInt} }

// FloatValue wraps a float. NaN becomes a missing Float.
func FloatValue(v float64) Value {
	if math.IsNaN(v) {
		return NewNullValue(TypeFloat)
	}
	return Value{Raw: v, Type: TypeFloat}
}

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Raw: v, Type: TypeString} }

// BoolValue wraps a boolean.
func BoolValue(v bool) Value { return Value{Raw: v, Type: TypeBool} }

// DateValue wraps a date, truncated to midnight UTC.
func DateValue(t time.Time) Value {
	y, m, d := t.Date()
	return Value{Raw: time.Date(y, m, d, 0, 0, 0, 0, time.UTC), Type: TypeDate}
}

// TimestampValue wraps a point in time.
func TimestampValue(t time.Time) Value { return Value{Raw: t.UTC(), Type: TypeTimestamp} }

// Float returns the value as float64 for numeric and boolean values.
func (v Value) Float() (float64, bool) {
	if v.IsNull {
		return 0, false
	}
	switch r := v.Raw.(type) {
	case int64:
		return float64(r), true
	case float64:
		return r, true
	case bool:
		if r {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Int returns the integer payload of an Int value.
func (v Value) Int() (int64, bool) {
	if v.IsNull {
		return 0, false
	}
	i, ok := v.Raw.(int64)
	return i, ok
}

// Str returns the payload of a String value.
func (v Value) Str() (string, bool) {
	if v.IsNull {
		return "", false
	}
	s, ok := v.Raw.(string)
	return s, ok
}

// Bool returns the payload of a Bool value.
func (v Value) Bool() (bool, bool) {
	if v.IsNull {
		return false, false
	}
	b, ok := v.Raw.(bool)
	return b, ok
}

// Time returns the payload of a Date or Timestamp value. String values in
// DateLayout or RFC 3339 are parsed as well.
func (v Value) Time() (time.Time, bool) {
	if v.IsNull {
		return time.Time{}, false
	}
	switch r := v.Raw.(type) {
	case time.Time:
		return r, true
	case string:
		return ParseTime(r)
	}
	return time.Time{}, false
}

// IsNumeric reports whether the value is a non-null Int or Float.
func (v Value) IsNumeric() bool {
	return !v.IsNull && v.Type.IsNumeric()
}

// Equal reports whether two values hold the same type and payload.
func (v Value) Equal(o Value) bool {
	if v.IsNull || o.IsNull {
		return v.IsNull && o.IsNull
	}
	if v.Type != o.Type {
		return false
	}
	if t, ok := v.Raw.(time.Time); ok {
		ot, ok := o.Raw.(time.Time)
		return ok && t.Equal(ot)
	}
	return v.Raw == o.Raw
}

// String formats the value for display and text export.
func (v Value) String() string {
	if v.IsNull {
		return ""
	}
	switch r := v.Raw.(type) {
	case int64:
		return strconv.FormatInt(r, 10)
	case float64:
		return strconv.FormatFloat(r, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(r)
	case string:
		return r
	case time.Time:
		if v.Type == TypeDate {
			return r.Format(DateLayout)
		}
		return r.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v.Raw)
}

// ParseTime parses a date (DateLayout) or an RFC 3339 timestamp.
func ParseTime(s string) (time.Time, bool) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// InferType returns the common type of the non-null values. Ints mixed
// with floats widen to Float; any other mixture is Mixed. A column with no
// non-null values reports fallback.
func InferType(values []Value, fallback DataType) DataType {
	found := false
	var out DataType
	for _, v := range values {
		if v.IsNull {
			continue
		}
		if !found {
			out, found = v.Type, true
			continue
		}
		if v.Type == out {
			continue
		}
		if v.Type.IsNumeric() && out.IsNumeric() {
			out = TypeFloat
			continue
		}
		return TypeMixed
	}
	if !found {
		return fallback
	}
	return out
}

// Metadata holds optional metadata about a data source.
type Metadata map[string]interface{}

// Normalize infers the column type of values and rewrites the cells in
// place to match it: ints widen to floats in a Float column and missing
// cells take the column type. Mixed columns are left as they are.
func Normalize(values []Value, fallback DataType) DataType {
	typ := InferType(values, fallback)
	if typ == TypeMixed {
		return typ
	}
	for i, v := range values {
		switch {
		case v.IsNull:
			values[i] = NewNullValue(typ)
		case typ == TypeFloat && v.Type != TypeFloat:
			f, _ := v.Float()
			values[i] = FloatValue(f)
		}
	}
	return typ
}
