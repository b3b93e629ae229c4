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

	"github.com/magpierre/dataverse/datatable"
)

// value is a runtime value of the evaluator. Only scalars and vectors can
// leave an evaluation; the other kinds exist while the tree is walked.
type value interface {
	kind() string
}

type (
	// scalarVal is a single cell.
	scalarVal struct{ v datatable.Value }

	// vectorVal is a whole column, or an elementwise result over columns.
	vectorVal struct{ vals []datatable.Value }

	// listVal is a list literal or the result of slicing one.
	listVal struct{ elems []value }

	// dictVal is a map literal. Keys are kept in literal order.
	dictVal struct {
		keys  []datatable.Value
		vals  []value
		index map[string]int
	}

	moduleVal struct{ m *Module }

	funcVal struct{ f *Function }
)

func (scalarVal) kind() string { return "scalar" }
func (vectorVal) kind() string { return "column" }
func (listVal) kind() string   { return "list" }
func (*dictVal) kind() string  { return "map" }
func (moduleVal) kind() string { return "module" }
func (funcVal) kind() string   { return "function" }

func scalar(v datatable.Value) value { return scalarVal{v: v} }

func vector(vals []datatable.Value) value { return vectorVal{vals: vals} }

var missing = scalarVal{v: datatable.NewNullValue(datatable.TypeFloat)}

func newDict(keys []datatable.Value, vals []value) (*dictVal, error) {
	d := &dictVal{index: make(map[string]int, len(keys))}
	for i, k := range keys {
		hk, err := hashKey(k)
		if err != nil {
			return nil, err
		}
		if j, ok := d.index[hk]; ok {
			// A repeated key keeps its first position and its last value.
			d.vals[j] = vals[i]
			continue
		}
		d.index[hk] = len(d.keys)
		d.keys = append(d.keys, k)
		d.vals = append(d.vals, vals[i])
	}
	return d, nil
}

func (d *dictVal) get(k datatable.Value) (value, error) {
	hk, err := hashKey(k)
	if err != nil {
		return nil, err
	}
	i, ok := d.index[hk]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errKey, k.String())
	}
	return d.vals[i], nil
}

// hashKey maps equal keys to the same string. Numbers compare by value so
// that 12 and 12.0 address the same entry.
func hashKey(k datatable.Value) (string, error) {
	if k.IsNull {
		return "", fmt.Errorf("%w: missing value as map key", errType)
	}
	switch k.Type {
	case datatable.TypeInt, datatable.TypeFloat, datatable.TypeBool:
		f, _ := k.Float()
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64), nil
	case datatable.TypeString:
		s, _ := k.Str()
		return "s:" + s, nil
	case datatable.TypeDate, datatable.TypeTimestamp:
		t, _ := k.Time()
		return "t:" + strconv.FormatInt(t.UnixNano(), 10), nil
	}
	return "", fmt.Errorf("%w: %s as map key", errType, k.Type)
}

// scalarOf returns the cell held by v, failing for every other kind.
func scalarOf(v value) (datatable.Value, error) {
	if s, ok := v.(scalarVal); ok {
		return s.v, nil
	}
	return datatable.Value{}, fmt.Errorf("%w: got %s", errScalarRequired, v.kind())
}

// length returns the vector length shared by args, or -1 when all args are
// scalars.
func length(args []value) (int, error) {
	n := -1
	for _, a := range args {
		switch x := a.(type) {
		case scalarVal:
		case vectorVal:
			if n >= 0 && len(x.vals) != n {
				return 0, fmt.Errorf("%w: columns of length %d and %d", errShape, n, len(x.vals))
			}
			n = len(x.vals)
		default:
			return 0, fmt.Errorf("%w: %s", errType, a.kind())
		}
	}
	return n, nil
}

// at returns element i of a vector, or the scalar itself.
func at(v value, i int) datatable.Value {
	if vec, ok := v.(vectorVal); ok {
		return vec.vals[i]
	}
	return v.(scalarVal).v
}

// elementwise applies f across scalar and vector arguments, broadcasting
// scalars. The result is a scalar when every argument is one.
func elementwise(args []value, f func([]datatable.Value) (datatable.Value, error)) (value, error) {
	n, err := length(args)
	if err != nil {
		return nil, err
	}
	cells := make([]datatable.Value, len(args))
	if n < 0 {
		for i, a := range args {
			cells[i] = a.(scalarVal).v
		}
		out, err := f(cells)
		if err != nil {
			return nil, err
		}
		return scalar(out), nil
	}
	out := make([]datatable.Value, n)
	for i := range out {
		for j, a := range args {
			cells[j] = at(a, i)
		}
		if out[i], err = f(cells); err != nil {
			return nil, err
		}
	}
	return vector(out), nil
}

// cells flattens a scalar, vector or list of scalars into its cells.
func cells(v value) ([]datatable.Value, error) {
	switch x := v.(type) {
	case scalarVal:
		return []datatable.Value{x.v}, nil
	case vectorVal:
		return x.vals, nil
	case listVal:
		out := make([]datatable.Value, len(x.elems))
		for i, e := range x.elems {
			s, err := scalarOf(e)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", errType, v.kind())
}
