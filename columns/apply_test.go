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

package columns_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dataverse/columns"
	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/formula"
)

func invoices(t *testing.T, n int) *datatable.Table {
	t.Helper()
	amounts := make([]datatable.Value, n)
	for i := range amounts {
		amounts[i] = datatable.FloatValue(float64(100 * (i + 1)))
	}
	tbl, err := datatable.NewTable(datatable.Column{Name: "InvoiceAmount", Type: datatable.TypeFloat, Values: amounts})
	require.NoError(t, err)
	return tbl
}

func silent() columns.Option { return columns.WithNotifier(func(string) {}) }

func column(t *testing.T, tbl *datatable.Table, name string) datatable.Column {
	t.Helper()
	c, err := tbl.Column(name)
	require.NoError(t, err)
	return c
}

func TestApplyKeepsOrderAndDependencies(t *testing.T) {
	tbl := invoices(t, 20)
	entries := columns.Entries{
		{Name: "X", Spec: columns.Range{Min: 0, Max: 1}},
		{Name: "Y", Spec: columns.Formula{Expr: "X * 2"}},
		{Name: "Tier", Spec: columns.Choice{Options: []string{"Gold", "Silver"}}},
	}

	out, reports := columns.NewApplier(42, silent()).Apply(tbl, entries)
	assert.Equal(t, []string{"InvoiceAmount", "X", "Y", "Tier"}, out.ColumnNames())
	assert.Equal(t, []string{"InvoiceAmount"}, tbl.ColumnNames(), "input table is untouched")

	x, y := column(t, out, "X"), column(t, out, "Y")
	for i := range x.Values {
		xf, _ := x.Values[i].Float()
		yf, _ := y.Values[i].Float()
		assert.True(t, xf >= 0 && xf <= 1)
		assert.Equal(t, xf*2, yf)
	}
	for _, v := range column(t, out, "Tier").Values {
		assert.Contains(t, []string{"Gold", "Silver"}, v.String())
	}

	require.Len(t, reports, 3)
	assert.Equal(t, columns.StrategyRange, reports[0].Strategy)
	assert.Equal(t, formula.StrategyVectorized, reports[1].Strategy)
	assert.Equal(t, columns.StrategyChoice, reports[2].Strategy)
}

func TestApplyIsReproducible(t *testing.T) {
	tbl := invoices(t, 50)
	entries := columns.Entries{
		{Name: "Discount", Spec: columns.Range{Min: 0, Max: 5, Integral: true}},
		{Name: "Currency", Spec: columns.Choice{Options: []string{"INR", "USD"}}},
		{Name: "Net", Spec: columns.Formula{Expr: "InvoiceAmount * (1 - Discount / 100)"}},
	}

	first, _ := columns.NewApplier(7, silent()).Apply(tbl, entries)
	second, _ := columns.NewApplier(7, silent()).Apply(tbl, entries)
	assert.True(t, first.Equal(second))

	other, _ := columns.NewApplier(8, silent()).Apply(tbl, entries)
	assert.False(t, first.Equal(other))

	d := column(t, first, "Discount")
	assert.Equal(t, datatable.TypeInt, d.Type)
	for _, v := range d.Values {
		i, ok := v.Int()
		require.True(t, ok)
		assert.True(t, i >= 0 && i <= 5)
	}
}

func TestApplyFillsMissingInsteadOfFailing(t *testing.T) {
	tbl := invoices(t, 4)
	var warnings []string
	a := columns.NewApplier(1, columns.WithNotifier(func(m string) { warnings = append(warnings, m) }))

	out, reports := a.Apply(tbl, columns.Entries{
		{Name: "Bad", Spec: columns.Formula{Expr: "InvoiceAmount + Secret"}},
		{Name: "Unusable", Spec: columns.Formula{Expr: "math.sqrt(InvoiceAmount - 1e9)"}},
		{Name: "Empty", Spec: columns.Choice{}},
		{Name: "Inverted", Spec: columns.Range{Min: 2, Max: 1}},
		{Name: "Partial", Spec: columns.Formula{Expr: "math.log(InvoiceAmount - 100)"}},
	})
	require.Len(t, reports, 5)
	for _, name := range []string{"Bad", "Unusable", "Empty", "Inverted"} {
		for _, v := range column(t, out, name).Values {
			assert.True(t, v.IsNull, name)
		}
	}
	assert.ErrorIs(t, reports[0].Err, formula.ErrUnknownIdentifier)
	assert.ErrorIs(t, reports[1].Err, formula.ErrFormulaUnusable)
	assert.NoError(t, reports[2].Err)
	assert.ErrorIs(t, reports[3].Err, columns.ErrInvalidSpec)
	for _, r := range reports[:4] {
		assert.Equal(t, columns.StrategyMissing, r.Strategy)
	}

	partial := reports[4]
	assert.Equal(t, formula.StrategyRowwise, partial.Strategy)
	assert.Equal(t, 1, partial.FailedRows)
	vals := column(t, out, "Partial").Values
	assert.True(t, vals[0].IsNull)
	assert.False(t, vals[1].IsNull)
	assert.NotEmpty(t, warnings)
}

func TestApplyReplacesExistingColumnInPlace(t *testing.T) {
	tbl := invoices(t, 3)
	tbl, err := tbl.WithColumn("Qty", datatable.TypeInt, []datatable.Value{
		datatable.IntValue(1), datatable.IntValue(2), datatable.IntValue(3),
	})
	require.NoError(t, err)

	out, _ := columns.NewApplier(1, silent()).Apply(tbl, columns.Entries{
		{Name: "InvoiceAmount", Spec: columns.Formula{Expr: "Qty * 10"}},
	})
	assert.Equal(t, []string{"InvoiceAmount", "Qty"}, out.ColumnNames())
	v, err := out.Cell(2, 0)
	require.NoError(t, err)
	assert.True(t, datatable.IntValue(30).Equal(v))
}

func TestApplyEmptyTableIsUnchanged(t *testing.T) {
	empty := datatable.Empty()
	out, reports := columns.NewApplier(1, silent()).Apply(empty, columns.Entries{
		{Name: "X", Spec: columns.Range{Min: 0, Max: 1}},
	})
	assert.Same(t, empty, out)
	assert.Empty(t, reports)
}

func TestFormulaColumnIsIdempotent(t *testing.T) {
	tbl := invoices(t, 10)
	entries := columns.Entries{{Name: "Noisy", Spec: columns.Formula{Expr: "InvoiceAmount + np.random.normal(0, 5)"}}}

	a := columns.NewApplier(3, silent())
	first, _ := a.Apply(tbl, entries)
	second, _ := a.Apply(tbl, entries)
	assert.True(t, first.Equal(second))
}

func TestFormulaColumnsDrawIndependentStreams(t *testing.T) {
	tbl := invoices(t, 10)
	entries := columns.Entries{
		{Name: "NoiseA", Spec: columns.Formula{Expr: "np.random.normal(InvoiceAmount*0, 1)"}},
		{Name: "NoiseB", Spec: columns.Formula{Expr: "np.random.normal(InvoiceAmount*0, 1)"}},
	}

	a := columns.NewApplier(3, silent())
	out, _ := a.Apply(tbl, entries)
	assert.NotEqual(t, column(t, out, "NoiseA").Values, column(t, out, "NoiseB").Values)

	// Each column depends on its own name only, not on its position.
	alone, _ := a.Apply(tbl, entries[1:])
	assert.Equal(t, column(t, out, "NoiseB").Values, column(t, alone, "NoiseB").Values)
}
