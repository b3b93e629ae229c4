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


package datatable_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dataverse/datatable"
)

func TestNewTableChecksShape(t *testing.T) {
	_, err := datatable.NewTable(
		datatable.Column{Name: "A", Values: []datatable.Value{datatable.IntValue(1)}},
		datatable.Column{Name: "A", Values: []datatable.Value{datatable.IntValue(2)}},
	)
	require.ErrorIs(t, err, datatable.ErrDuplicateColumn)

	_, err = datatable.NewTable(
		datatable.Column{Name: "A", Values: []datatable.Value{datatable.IntValue(1)}},
		datatable.Column{Name: "B"},
	)
	require.ErrorIs(t, err, datatable.ErrLengthMismatch)

	empty := datatable.Empty()
	assert.Equal(t, 0, empty.RowCount())
	assert.Equal(t, 0, empty.ColumnCount())
}

func TestAccessors(t *testing.T) {
	tbl, err := datatable.FromRows([]string{"A", "B"}, [][]datatable.Value{
		{datatable.IntValue(1), datatable.StringValue("x")},
		{datatable.FloatValue(2.5), datatable.Null},
	})
	require.NoError(t, err)

	typ, err := tbl.ColumnType(0)
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeFloat, typ)

	_, err = tbl.ColumnName(2)
	require.ErrorIs(t, err, datatable.ErrInvalidColumn)
	_, err = tbl.Cell(2, 0)
	require.ErrorIs(t, err, datatable.ErrInvalidRow)
	_, err = tbl.Column("C")
	require.ErrorIs(t, err, datatable.ErrColumnNotFound)

	m, err := tbl.RowMap(1)
	require.NoError(t, err)
	assert.True(t, m["B"].IsNull)
	assert.Equal(t, datatable.FloatValue(2.5), m["A"])

	_, err = datatable.FromRows([]string{"A"}, [][]datatable.Value{{datatable.Null, datatable.Null}})
	require.ErrorIs(t, err, datatable.ErrLengthMismatch)
}

func TestWithColumnLeavesOriginalUntouched(t *testing.T) {
	tbl, err := datatable.NewTable(datatable.Column{
		Name: "A", Type: datatable.TypeInt,
		Values: []datatable.Value{datatable.IntValue(1), datatable.IntValue(2)},
	})
	require.NoError(t, err)

	replaced, err := tbl.WithColumn("A", datatable.TypeString, []datatable.Value{
		datatable.StringValue("a"), datatable.StringValue("b"),
	})
	require.NoError(t, err)
	added, err := replaced.WithColumn("B", datatable.TypeBool, []datatable.Value{
		datatable.BoolValue(true), datatable.BoolValue(false),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A"}, tbl.ColumnNames())
	a, _ := tbl.Column("A")
	assert.Equal(t, datatable.IntValue(1), a.Values[0])
	assert.Equal(t, []string{"A", "B"}, added.ColumnNames())
	assert.False(t, tbl.Equal(replaced))

	_, err = tbl.WithColumn("C", datatable.TypeInt, []datatable.Value{datatable.IntValue(1)})
	require.ErrorIs(t, err, datatable.ErrLengthMismatch)

	// Column returns a copy.
	a.Values[0] = datatable.IntValue(99)
	again, _ := tbl.Column("A")
	assert.Equal(t, datatable.IntValue(1), again.Values[0])
}

func TestValues(t *testing.T) {
	assert.True(t, datatable.FloatValue(math.NaN()).IsNull)
	assert.True(t, datatable.NewValue(nil, datatable.TypeInt).IsNull)

	d := datatable.DateValue(time.Date(2024, 3, 9, 17, 30, 0, 0, time.FixedZone("X", 3600)))
	assert.Equal(t, "2024-03-09", d.String())
	assert.Equal(t, "2.5", datatable.FloatValue(2.5).String())
	assert.Equal(t, "", datatable.Null.String())

	f, ok := datatable.BoolValue(true).Float()
	assert.True(t, ok)
	assert.Equal(t, 1.0, f)

	tm, ok := datatable.StringValue("2024-01-02").Time()
	require.True(t, ok)
	assert.Equal(t, 2, tm.Day())

	assert.True(t, datatable.Null.Equal(datatable.NewNullValue(datatable.TypeFloat)))
	assert.False(t, datatable.IntValue(1).Equal(datatable.FloatValue(1)))
}

func TestInferAndNormalize(t *testing.T) {
	vals := []datatable.Value{datatable.IntValue(1), datatable.Null, datatable.FloatValue(0.5)}
	assert.Equal(t, datatable.TypeFloat, datatable.Normalize(vals, datatable.TypeString))
	assert.Equal(t, datatable.FloatValue(1), vals[0])
	assert.Equal(t, datatable.NewNullValue(datatable.TypeFloat), vals[1])

	mixed := []datatable.Value{datatable.IntValue(1), datatable.StringValue("a")}
	assert.Equal(t, datatable.TypeMixed, datatable.Normalize(mixed, datatable.TypeFloat))
	assert.Equal(t, datatable.IntValue(1), mixed[0])

	assert.Equal(t, datatable.TypeFloat, datatable.InferType([]datatable.Value{datatable.Null}, datatable.TypeFloat))
}
