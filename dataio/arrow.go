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


package dataio

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/magpierre/dataverse/datatable"
)

var timestampType = &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: "UTC"}

// arrowType returns the Arrow type a column is written as. Mixed columns
// are written as text.
func arrowType(dt datatable.DataType) (arrow.DataType, error) {
	switch dt {
	case datatable.TypeInt:
		return arrow.PrimitiveTypes.Int64, nil
	case datatable.TypeFloat:
		return arrow.PrimitiveTypes.Float64, nil
	case datatable.TypeBool:
		return arrow.FixedWidthTypes.Boolean, nil
	case datatable.TypeDate:
		return arrow.FixedWidthTypes.Date32, nil
	case datatable.TypeTimestamp:
		return timestampType, nil
	case datatable.TypeString, datatable.TypeMixed:
		return arrow.BinaryTypes.String, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, dt)
}

// ToArrow converts t into a single-chunk Arrow table. The caller releases
// the result.
func ToArrow(t *datatable.Table, mem memory.Allocator) (arrow.Table, error) {
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	cols := t.Columns()
	fields := make([]arrow.Field, len(cols))
	arrs := make([]arrow.Array, 0, len(cols))
	defer func() {
		for _, a := range arrs {
			a.Release()
		}
	}()
	for i, c := range cols {
		typ, err := arrowType(c.Type)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", c.Name, err)
		}
		fields[i] = arrow.Field{Name: c.Name, Type: typ, Nullable: true}
		arrs = append(arrs, buildArray(mem, typ, c.Values))
	}
	schema := arrow.NewSchema(fields, nil)
	rec := array.NewRecord(schema, arrs, int64(t.RowCount()))
	defer rec.Release()
	return array.NewTableFromRecords(schema, []arrow.Record{rec}), nil
}

func buildArray(mem memory.Allocator, typ arrow.DataType, values []datatable.Value) arrow.Array {
	b := array.NewBuilder(mem, typ)
	defer b.Release()
	b.Reserve(len(values))
	for _, v := range values {
		if v.IsNull {
			b.AppendNull()
			continue
		}
		switch bb := b.(type) {
		case *array.Int64Builder:
			if i, ok := v.Int(); ok {
				bb.Append(i)
			} else if f, ok := v.Float(); ok {
				bb.Append(int64(f))
			} else {
				bb.AppendNull()
			}
		case *array.Float64Builder:
			if f, ok := v.Float(); ok {
				bb.Append(f)
			} else {
				bb.AppendNull()
			}
		case *array.BooleanBuilder:
			if x, ok := v.Bool(); ok {
				bb.Append(x)
			} else {
				bb.AppendNull()
			}
		case *array.Date32Builder:
			if x, ok := v.Time(); ok {
				bb.Append(arrow.Date32FromTime(x))
			} else {
				bb.AppendNull()
			}
		case *array.TimestampBuilder:
			if x, ok := v.Time(); ok {
				bb.Append(arrow.Timestamp(x.UnixMicro()))
			} else {
				bb.AppendNull()
			}
		case *array.StringBuilder:
			bb.Append(v.String())
		}
	}
	return b.NewArray()
}

// tableType returns the column type an Arrow type is read as.
func tableType(dt arrow.DataType) datatable.DataType {
	switch dt.ID() {
	case arrow.INT8, arrow.INT16, arrow.INT32, arrow.INT64,
		arrow.UINT8, arrow.UINT16, arrow.UINT32, arrow.UINT64:
		return datatable.TypeInt
	case arrow.FLOAT16, arrow.FLOAT32, arrow.FLOAT64, arrow.DECIMAL128:
		return datatable.TypeFloat
	case arrow.BOOL:
		return datatable.TypeBool
	case arrow.DATE32, arrow.DATE64:
		return datatable.TypeDate
	case arrow.TIMESTAMP:
		return datatable.TypeTimestamp
	}
	return datatable.TypeString
}

// FromArrow copies an Arrow table into a table. Types without a direct
// counterpart are read as text.
func FromArrow(tbl arrow.Table) (*datatable.Table, error) {
	schema := tbl.Schema()
	cols := make([]datatable.Column, tbl.NumCols())
	for j := range cols {
		field := schema.Field(j)
		typ := tableType(field.Type)
		values := make([]datatable.Value, 0, tbl.NumRows())
		for _, chunk := range tbl.Column(j).Data().Chunks() {
			for pos := 0; pos < chunk.Len(); pos++ {
				values = append(values, valueAt(chunk, pos, typ))
			}
		}
		cols[j] = datatable.Column{Name: field.Name, Type: typ, Values: values}
	}
	return datatable.NewTable(cols...)
}

// valueAt returns the typed value at pos.
func valueAt(col arrow.Array, pos int, typ datatable.DataType) datatable.Value {
	if col.IsNull(pos) {
		return datatable.NewNullValue(typ)
	}

	switch c := col.(type) {
	case *array.Int8:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Int16:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Int32:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Int64:
		return datatable.IntValue(c.Value(pos))
	case *array.Uint8:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Uint16:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Uint32:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Uint64:
		return datatable.IntValue(int64(c.Value(pos)))
	case *array.Float16:
		return datatable.FloatValue(float64(c.Value(pos).Float32()))
	case *array.Float32:
		return datatable.FloatValue(float64(c.Value(pos)))
	case *array.Float64:
		return datatable.FloatValue(c.Value(pos))
	case *array.Decimal128:
		scale := c.DataType().(*arrow.Decimal128Type).Scale
		f, _ := decimal.NewFromBigInt(c.Value(pos).BigInt(), -scale).Float64()
		return datatable.FloatValue(f)
	case *array.Boolean:
		return datatable.BoolValue(c.Value(pos))
	case *array.Date32:
		return datatable.DateValue(c.Value(pos).ToTime())
	case *array.Date64:
		return datatable.DateValue(c.Value(pos).ToTime())
	case *array.Timestamp:
		unit := c.DataType().(*arrow.TimestampType).Unit
		return datatable.TimestampValue(c.Value(pos).ToTime(unit))
	case *array.String:
		return datatable.StringValue(c.Value(pos))
	case *array.LargeString:
		return datatable.StringValue(c.Value(pos))
	case *array.Binary:
		return datatable.StringValue(string(c.Value(pos)))
	case *array.Struct, *array.List, *array.LargeList, *array.Map:
		if b, err := json.Marshal(c.GetOneForMarshal(pos)); err == nil {
			return datatable.StringValue(string(b))
		}
	}
	return datatable.StringValue(col.ValueStr(pos))
}
