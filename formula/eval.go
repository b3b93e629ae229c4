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

// evaluator walks a checked tree against one set of bindings. Columns are
// bound as vectors in vectorized mode and as scalars in row-wise mode.
type evaluator struct {
	bindings map[string]value
	modules  map[string]*Module
	ctx      *callContext
}

// run evaluates n, turning a panic in a module function into an error so
// a single formula cannot take the process down.
func (ev *evaluator) run(n Node) (res value, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", errPanic, r)
		}
	}()
	return ev.eval(n)
}

func (ev *evaluator) eval(n Node) (value, error) {
	switch x := n.(type) {
	case *Literal:
		return scalar(x.Value), nil

	case *Ident:
		// Aliases shadow columns of the same name.
		if m, ok := ev.modules[x.Name]; ok {
			return moduleVal{m: m}, nil
		}
		if v, ok := ev.bindings[x.Name]; ok {
			return v, nil
		}
		return nil, reject(ErrUnknownIdentifier, x.Offset, "name %q is not bound", x.Name)

	case *Attr:
		m, ok := ev.modules[x.Root]
		if !ok {
			return nil, reject(ErrDisallowedAttributeRoot, x.Offset, "attribute access on %q", x.Root)
		}
		return m.member(x.Path)

	case *Unary:
		v, err := ev.eval(x.X)
		if err != nil {
			return nil, err
		}
		return unary(x.Op, v)

	case *Binary:
		if x.Op == OpAnd || x.Op == OpOr {
			return ev.logical(x)
		}
		l, err := ev.eval(x.X)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(x.Y)
		if err != nil {
			return nil, err
		}
		return binary(x.Op, l, r)

	case *Call:
		fv, err := ev.eval(x.Fun)
		if err != nil {
			return nil, err
		}
		f, ok := fv.(funcVal)
		if !ok {
			return nil, fmt.Errorf("%w: %s", errNotCallable, fv.kind())
		}
		args := make([]value, len(x.Args))
		for i, a := range x.Args {
			if args[i], err = ev.eval(a); err != nil {
				return nil, err
			}
		}
		return f.f.invoke(ev.ctx, args)

	case *Index:
		c, err := ev.eval(x.X)
		if err != nil {
			return nil, err
		}
		i, err := ev.eval(x.Index)
		if err != nil {
			return nil, err
		}
		return index(c, i)

	case *Slice:
		c, err := ev.eval(x.X)
		if err != nil {
			return nil, err
		}
		lo, err := ev.bound(x.Low)
		if err != nil {
			return nil, err
		}
		hi, err := ev.bound(x.High)
		if err != nil {
			return nil, err
		}
		return slice(c, lo, hi)

	case *List:
		elems := make([]value, len(x.Elems))
		for i, e := range x.Elems {
			v, err := ev.eval(e)
			if err != nil {
				return nil, err
			}
			if elems[i], err = convertTo(v, x.Elem); err != nil {
				return nil, err
			}
		}
		return listVal{elems: elems}, nil

	case *Dict:
		keys := make([]datatable.Value, len(x.Keys))
		vals := make([]value, len(x.Values))
		for i := range x.Keys {
			k, err := ev.eval(x.Keys[i])
			if err != nil {
				return nil, err
			}
			if k, err = convertTo(k, x.KeyType); err != nil {
				return nil, err
			}
			if keys[i], err = scalarOf(k); err != nil {
				return nil, err
			}
			v, err := ev.eval(x.Values[i])
			if err != nil {
				return nil, err
			}
			if vals[i], err = convertTo(v, x.ValueType); err != nil {
				return nil, err
			}
		}
		return newDict(keys, vals)
	}
	return nil, fmt.Errorf("%w: %T", ErrDisallowedConstruct, n)
}

// logical evaluates && and || with short-circuiting. Both operands must be
// scalars: the truth value of a column is ambiguous.
func (ev *evaluator) logical(x *Binary) (value, error) {
	l, err := ev.eval(x.X)
	if err != nil {
		return nil, err
	}
	ls, ok := l.(scalarVal)
	if !ok {
		return nil, fmt.Errorf("%w: left operand of %s", errAmbiguousTruth, x.Op)
	}
	lt := truthy(ls.v)
	if (x.Op == OpAnd && !lt) || (x.Op == OpOr && lt) {
		return scalar(datatable.BoolValue(lt)), nil
	}
	r, err := ev.eval(x.Y)
	if err != nil {
		return nil, err
	}
	rs, ok := r.(scalarVal)
	if !ok {
		return nil, fmt.Errorf("%w: right operand of %s", errAmbiguousTruth, x.Op)
	}
	return scalar(datatable.BoolValue(truthy(rs.v))), nil
}

// bound evaluates an optional slice bound. A nil node gives nil.
func (ev *evaluator) bound(n Node) (*int64, error) {
	if n == nil {
		return nil, nil
	}
	v, err := ev.eval(n)
	if err != nil {
		return nil, err
	}
	s, err := scalarOf(v)
	if err != nil {
		return nil, err
	}
	if s.IsNull {
		return nil, nil
	}
	if !isIntegral(s) {
		return nil, fmt.Errorf("%w: slice bound must be an integer", errType)
	}
	i := asInt(s)
	return &i, nil
}

func index(c, i value) (value, error) {
	if iv, ok := i.(vectorVal); ok {
		// Looking a column up in a map or list maps every element.
		switch c.(type) {
		case *dictVal, listVal, scalarVal:
		default:
			return nil, fmt.Errorf("%w: cannot index a %s with a column", errType, c.kind())
		}
		out := make([]datatable.Value, len(iv.vals))
		for k, key := range iv.vals {
			v, err := index(c, scalar(key))
			if err != nil {
				out[k] = missing.v
				continue
			}
			s, err := scalarOf(v)
			if err != nil {
				return nil, err
			}
			out[k] = s
		}
		return vector(out), nil
	}

	key, err := scalarOf(i)
	if err != nil {
		return nil, err
	}
	switch x := c.(type) {
	case *dictVal:
		return x.get(key)
	case vectorVal:
		p, err := position(key, len(x.vals))
		if err != nil {
			return nil, err
		}
		return scalar(x.vals[p]), nil
	case listVal:
		p, err := position(key, len(x.elems))
		if err != nil {
			return nil, err
		}
		return x.elems[p], nil
	case scalarVal:
		s, ok := x.v.Str()
		if !ok {
			return nil, fmt.Errorf("%w: cannot index %s", errType, x.v.Type)
		}
		r := []rune(s)
		p, err := position(key, len(r))
		if err != nil {
			return nil, err
		}
		return scalar(datatable.StringValue(string(r[p]))), nil
	}
	return nil, fmt.Errorf("%w: cannot index a %s", errType, c.kind())
}

// position resolves an integer index, counting negative values from the
// end.
func position(key datatable.Value, n int) (int, error) {
	if key.IsNull || !isIntegral(key) {
		return 0, fmt.Errorf("%w: index must be an integer", errType)
	}
	p := asInt(key)
	if p < 0 {
		p += int64(n)
	}
	if p < 0 || p >= int64(n) {
		return 0, fmt.Errorf("%w: %d of %d", errIndex, asInt(key), n)
	}
	return int(p), nil
}

// span clamps optional bounds to [0, n] the way Python slicing does.
func span(lo, hi *int64, n int) (int, int) {
	clamp := func(b *int64, def int) int {
		if b == nil {
			return def
		}
		v := *b
		if v < 0 {
			v += int64(n)
		}
		switch {
		case v < 0:
			return 0
		case v > int64(n):
			return n
		}
		return int(v)
	}
	a, b := clamp(lo, 0), clamp(hi, n)
	if b < a {
		b = a
	}
	return a, b
}

func slice(c value, lo, hi *int64) (value, error) {
	switch x := c.(type) {
	case vectorVal:
		a, b := span(lo, hi, len(x.vals))
		return vector(x.vals[a:b]), nil
	case listVal:
		a, b := span(lo, hi, len(x.elems))
		return listVal{elems: x.elems[a:b]}, nil
	case scalarVal:
		s, ok := x.v.Str()
		if !ok {
			return nil, fmt.Errorf("%w: cannot slice %s", errType, x.v.Type)
		}
		r := []rune(s)
		a, b := span(lo, hi, len(r))
		return scalar(datatable.StringValue(string(r[a:b]))), nil
	}
	return nil, fmt.Errorf("%w: cannot slice a %s", errType, c.kind())
}

// convertTo applies the element type of a list or map literal, as Go does
// for untyped constants: integers widen to float64 and integral floats
// narrow to int. Missing cells and "any" pass through.
func convertTo(v value, typ string) (value, error) {
	switch x := v.(type) {
	case scalarVal:
		c, err := convertCell(x.v, typ)
		if err != nil {
			return nil, err
		}
		return scalar(c), nil
	case vectorVal:
		out := make([]datatable.Value, len(x.vals))
		for i, c := range x.vals {
			var err error
			if out[i], err = convertCell(c, typ); err != nil {
				return nil, err
			}
		}
		return vector(out), nil
	}
	if typ == "any" {
		return v, nil
	}
	return nil, fmt.Errorf("%w: cannot use a %s as %s", errType, v.kind(), typ)
}

func convertCell(c datatable.Value, typ string) (datatable.Value, error) {
	if c.IsNull {
		return c, nil
	}
	switch typ {
	case "float64":
		if c.Type == datatable.TypeInt || c.Type == datatable.TypeFloat {
			f, _ := c.Float()
			return datatable.FloatValue(f), nil
		}
	case "int", "int64":
		switch c.Type {
		case datatable.TypeInt:
			return c, nil
		case datatable.TypeFloat:
			f, _ := c.Float()
			if f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63 {
				return datatable.IntValue(int64(f)), nil
			}
		}
	case "string":
		if c.Type == datatable.TypeString {
			return c, nil
		}
	case "bool":
		if c.Type == datatable.TypeBool {
			return c, nil
		}
	default:
		return c, nil
	}
	return datatable.Value{}, fmt.Errorf("%w: cannot use %s %s as %s", errType, c.Type, c.String(), typ)
}
