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

package datatable

import "fmt"

// Column is a named, typed sequence of values.
type Column struct {
	Name   string
	Type   DataType
	Values []Value
}

// Table is an ordered, column-major collection of rows.
//
// A Table is immutable once built: every method that changes the data
// returns a new Table. Column slices that a transform leaves untouched are
// shared between the old and the new table and must never be written.
type Table struct {
	columns []Column
	index   map[string]int
	rows    int
	meta    Metadata
}

// NewTable builds a table from columns. All columns must have the same
// length and distinct names. The slices are owned by the table afterwards.
func NewTable(columns ...Column) (*Table, error) {
	t := &Table{
		columns: make([]Column, 0, len(columns)),
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		if _, dup := t.index[c.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateColumn, c.Name)
		}
		if i == 0 {
			t.rows = len(c.Values)
		} else if len(c.Values) != t.rows {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d",
				ErrLengthMismatch, c.Name, len(c.Values), t.rows)
		}
		t.index[c.Name] = len(t.columns)
		t.columns = append(t.columns, c)
	}
	return t, nil
}

// FromRows builds a table from row-major values. Column types are inferred
// from the data; all-null columns default to String.
func FromRows(names []string, rows [][]Value) (*Table, error) {
	cols := make([]Column, len(names))
	for j, name := range names {
		cols[j] = Column{Name: name, Values: make([]Value, len(rows))}
	}
	for i, row := range rows {
		if len(row) != len(names) {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d",
				ErrLengthMismatch, i, len(row), len(names))
		}
		for j, v := range row {
			cols[j].Values[i] = v
		}
	}
	for j := range cols {
		cols[j].Type = InferType(cols[j].Values, TypeString)
	}
	return NewTable(cols...)
}

// Empty returns a table without columns or rows.
func Empty() *Table {
	t, _ := NewTable()
	return t
}

// RowCount returns the number of rows.
func (t *Table) RowCount() int { return t.rows }

// ColumnCount returns the number of columns.
func (t *Table) ColumnCount() int { return len(t.columns) }

// ColumnName returns the name of the column at index col.
func (t *Table) ColumnName(col int) (string, error) {
	if col < 0 || col >= len(t.columns) {
		return "", ErrInvalidColumn
	}
	return t.columns[col].Name, nil
}

// ColumnType returns the type of the column at index col.
func (t *Table) ColumnType(col int) (DataType, error) {
	if col < 0 || col >= len(t.columns) {
		return 0, ErrInvalidColumn
	}
	return t.columns[col].Type, nil
}

// Cell returns the value at (row, col).
func (t *Table) Cell(row, col int) (Value, error) {
	if col < 0 || col >= len(t.columns) {
		return Value{}, ErrInvalidColumn
	}
	if row < 0 || row >= t.rows {
		return Value{}, ErrInvalidRow
	}
	return t.columns[col].Values[row], nil
}

// Row returns a copy of the values of one row in column order.
func (t *Table) Row(row int) ([]Value, error) {
	if row < 0 || row >= t.rows {
		return nil, ErrInvalidRow
	}
	out := make([]Value, len(t.columns))
	for j, c := range t.columns {
		out[j] = c.Values[row]
	}
	return out, nil
}

// RowMap returns one row keyed by column name.
func (t *Table) RowMap(row int) (map[string]Value, error) {
	if row < 0 || row >= t.rows {
		return nil, ErrInvalidRow
	}
	out := make(map[string]Value, len(t.columns))
	for _, c := range t.columns {
		out[c.Name] = c.Values[row]
	}
	return out, nil
}

// Metadata returns the metadata attached with WithMetadata.
func (t *Table) Metadata() Metadata {
	if t.meta == nil {
		return Metadata{}
	}
	return t.meta
}

// ColumnNames returns the column names in order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.columns))
	for i, c := range t.columns {
		out[i] = c.Name
	}
	return out
}

// HasColumn reports whether a column with the given name exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) (Column, error) {
	i, ok := t.index[name]
	if !ok {
		return Column{}, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	}
	c := t.columns[i]
	vals := make([]Value, len(c.Values))
	copy(vals, c.Values)
	return Column{Name: c.Name, Type: c.Type, Values: vals}, nil
}

// Columns returns copies of all columns in order.
func (t *Table) Columns() []Column {
	out := make([]Column, len(t.columns))
	for i, c := range t.columns {
		out[i], _ = t.Column(c.Name)
	}
	return out
}

// WithColumn returns a new table where the named column holds values. An
// existing column keeps its position; a new one is appended. The values
// slice is owned by the returned table.
func (t *Table) WithColumn(name string, typ DataType, values []Value) (*Table, error) {
	if len(t.columns) > 0 && len(values) != t.rows {
		return nil, fmt.Errorf("%w: column %q has %d values, want %d",
			ErrLengthMismatch, name, len(values), t.rows)
	}
	out := &Table{
		columns: make([]Column, len(t.columns), len(t.columns)+1),
		index:   make(map[string]int, len(t.columns)+1),
		rows:    len(values),
		meta:    t.meta,
	}
	copy(out.columns, t.columns)
	for k, v := range t.index {
		out.index[k] = v
	}
	col := Column{Name: name, Type: typ, Values: values}
	if i, ok := out.index[name]; ok {
		out.columns[i] = col
	} else {
		out.index[name] = len(out.columns)
		out.columns = append(out.columns, col)
	}
	return out, nil
}

// WithMetadata returns a shallow copy of the table carrying meta.
func (t *Table) WithMetadata(meta Metadata) *Table {
	out := *t
	out.meta = meta
	return &out
}

// Equal reports whether two tables have the same columns, types and cells.
func (t *Table) Equal(o *Table) bool {
	if t.rows != o.rows || len(t.columns) != len(o.columns) {
		return false
	}
	for j, c := range t.columns {
		oc := o.columns[j]
		if c.Name != oc.Name || c.Type != oc.Type {
			return false
		}
		for i := range c.Values {
			if !c.Values[i].Equal(oc.Values[i]) {
				return false
			}
		}
	}
	return true
}

var _ DataSource = (*Table)(nil)
