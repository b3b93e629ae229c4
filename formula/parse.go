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
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"strconv"
	"strings"

	"github.com/magpierre/dataverse/datatable"
)

// Statement-level tokens that can never appear in a formula.
var assignTokens = map[token.Token]string{
	token.ASSIGN:         "assignment '='",
	token.DEFINE:         "assignment ':='",
	token.ADD_ASSIGN:     "assignment '+='",
	token.SUB_ASSIGN:     "assignment '-='",
	token.MUL_ASSIGN:     "assignment '*='",
	token.QUO_ASSIGN:     "assignment '/='",
	token.REM_ASSIGN:     "assignment '%='",
	token.AND_ASSIGN:     "assignment '&='",
	token.OR_ASSIGN:      "assignment '|='",
	token.XOR_ASSIGN:     "assignment '^='",
	token.SHL_ASSIGN:     "assignment '<<='",
	token.SHR_ASSIGN:     "assignment '>>='",
	token.AND_NOT_ASSIGN: "assignment '&^='",
	token.INC:            "increment '++'",
	token.DEC:            "decrement '--'",
	token.ARROW:          "channel operation '<-'",
}

var keywordNames = map[token.Token]string{
	token.FOR:    "loop 'for'",
	token.RANGE:  "loop 'range'",
	token.FUNC:   "function literal 'func'",
	token.IMPORT: "import",
}

// Element types accepted in list and map literals.
var literalTypes = map[string]bool{
	"any": true, "bool": true, "float64": true, "int": true, "int64": true, "string": true,
}

// Parse turns expr into a formula tree. It rejects everything that is not
// a single expression built from the allowed node shapes; it does not
// check identifiers (see Validate).
func Parse(expr string) (Node, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, reject(ErrSyntax, 0, "empty expression")
	}
	if err := prescan(expr); err != nil {
		return nil, err
	}
	x, err := parser.ParseExpr(expr)
	if err != nil {
		offset := 0
		if list, ok := err.(scanner.ErrorList); ok && len(list) > 0 {
			offset = list[0].Pos.Offset
		}
		return nil, reject(ErrSyntax, offset, "%v", err)
	}
	return convert(x)
}

// prescan rejects statement syntax before parsing so that assignments,
// loops and imports are reported as such instead of as syntax errors.
func prescan(expr string) error {
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(expr))

	var s scanner.Scanner
	s.Init(file, []byte(expr), nil, 0)
	for {
		pos, tok, lit := s.Scan()
		offset := file.Offset(pos)
		switch {
		case tok == token.EOF:
			return nil
		case tok == token.SEMICOLON && lit == ";":
			return reject(ErrDisallowedConstruct, offset, "statement separator ';'")
		case tok.IsKeyword() && tok != token.MAP:
			if name, ok := keywordNames[tok]; ok {
				return reject(ErrDisallowedConstruct, offset, "%s", name)
			}
			return reject(ErrDisallowedConstruct, offset, "keyword '%s'", tok)
		}
		if name, ok := assignTokens[tok]; ok {
			return reject(ErrDisallowedConstruct, offset, "%s", name)
		}
	}
}

func offsetOf(p token.Pos) int {
	// ParseExpr uses a file set with base 1.
	if !p.IsValid() {
		return 0
	}
	return int(p) - 1
}

func convert(e ast.Expr) (Node, error) {
	switch x := e.(type) {
	case *ast.BasicLit:
		return convertLiteral(x)

	case *ast.Ident:
		off := offsetOf(x.Pos())
		switch x.Name {
		case "true":
			return &Literal{Offset: off, Value: datatable.BoolValue(true)}, nil
		case "false":
			return &Literal{Offset: off, Value: datatable.BoolValue(false)}, nil
		case "nil":
			return &Literal{Offset: off, Value: datatable.Null}, nil
		}
		return &Ident{Offset: off, Name: x.Name}, nil

	case *ast.ParenExpr:
		return convert(x.X)

	case *ast.BinaryExpr:
		op, ok := operatorTokens[x.Op]
		if !ok {
			return nil, reject(ErrDisallowedConstruct, offsetOf(x.OpPos), "operator '%s'", x.Op)
		}
		left, err := convert(x.X)
		if err != nil {
			return nil, err
		}
		right, err := convert(x.Y)
		if err != nil {
			return nil, err
		}
		return &Binary{Offset: offsetOf(x.OpPos), Op: op, X: left, Y: right}, nil

	case *ast.UnaryExpr:
		var op Operator
		switch x.Op {
		case token.ADD:
			op = OpAdd
		case token.SUB:
			op = OpSub
		case token.NOT:
			op = OpNot
		default:
			return nil, reject(ErrDisallowedConstruct, offsetOf(x.OpPos), "unary operator '%s'", x.Op)
		}
		operand, err := convert(x.X)
		if err != nil {
			return nil, err
		}
		return &Unary{Offset: offsetOf(x.OpPos), Op: op, X: operand}, nil

	case *ast.CallExpr:
		if x.Ellipsis.IsValid() {
			return nil, reject(ErrDisallowedConstruct, offsetOf(x.Ellipsis), "variadic call")
		}
		fun, err := convert(x.Fun)
		if err != nil {
			return nil, err
		}
		args, err := convertAll(x.Args)
		if err != nil {
			return nil, err
		}
		return &Call{Offset: offsetOf(x.Pos()), Fun: fun, Args: args}, nil

	case *ast.SelectorExpr:
		return convertAttr(x)

	case *ast.IndexExpr:
		base, err := convert(x.X)
		if err != nil {
			return nil, err
		}
		idx, err := convert(x.Index)
		if err != nil {
			return nil, err
		}
		return &Index{Offset: offsetOf(x.Lbrack), X: base, Index: idx}, nil

	case *ast.SliceExpr:
		if x.Slice3 {
			return nil, reject(ErrDisallowedConstruct, offsetOf(x.Lbrack), "three-index slice")
		}
		base, err := convert(x.X)
		if err != nil {
			return nil, err
		}
		n := &Slice{Offset: offsetOf(x.Lbrack), X: base}
		if x.Low != nil {
			if n.Low, err = convert(x.Low); err != nil {
				return nil, err
			}
		}
		if x.High != nil {
			if n.High, err = convert(x.High); err != nil {
				return nil, err
			}
		}
		return n, nil

	case *ast.CompositeLit:
		return convertComposite(x)

	case *ast.FuncLit:
		return nil, reject(ErrDisallowedConstruct, offsetOf(x.Pos()), "function literal")
	case *ast.StarExpr:
		return nil, reject(ErrDisallowedConstruct, offsetOf(x.Pos()), "pointer dereference (use np.power for exponents)")
	case *ast.TypeAssertExpr:
		return nil, reject(ErrDisallowedConstruct, offsetOf(x.Lparen), "type assertion")
	case *ast.IndexListExpr:
		return nil, reject(ErrDisallowedConstruct, offsetOf(x.Lbrack), "generic instantiation")
	case *ast.KeyValueExpr:
		return nil, reject(ErrDisallowedConstruct, offsetOf(x.Colon), "key-value pair outside a map literal")
	case *ast.ArrayType, *ast.MapType, *ast.ChanType, *ast.FuncType, *ast.StructType, *ast.InterfaceType, *ast.Ellipsis:
		return nil, reject(ErrDisallowedConstruct, offsetOf(e.Pos()), "type expression")
	}
	return nil, reject(ErrDisallowedConstruct, offsetOf(e.Pos()), "%T", e)
}

func convertAll(exprs []ast.Expr) ([]Node, error) {
	out := make([]Node, len(exprs))
	for i, e := range exprs {
		n, err := convert(e)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func convertLiteral(x *ast.BasicLit) (Node, error) {
	off := offsetOf(x.ValuePos)
	lit := strings.ReplaceAll(x.Value, "_", "")
	switch x.Kind {
	case token.INT:
		if i, err := strconv.ParseInt(lit, 0, 64); err == nil {
			return &Literal{Offset: off, Value: datatable.IntValue(i)}, nil
		}
		// Too large for int64: keep it as a float.
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, reject(ErrSyntax, off, "invalid number %s", x.Value)
		}
		return &Literal{Offset: off, Value: datatable.FloatValue(f)}, nil
	case token.FLOAT:
		f, err := strconv.ParseFloat(lit, 64)
		if err != nil {
			return nil, reject(ErrSyntax, off, "invalid number %s", x.Value)
		}
		return &Literal{Offset: off, Value: datatable.FloatValue(f)}, nil
	case token.STRING, token.CHAR:
		s, err := strconv.Unquote(x.Value)
		if err != nil {
			return nil, reject(ErrSyntax, off, "invalid string %s", x.Value)
		}
		return &Literal{Offset: off, Value: datatable.StringValue(s)}, nil
	}
	return nil, reject(ErrDisallowedConstruct, off, "%s literal", strings.ToLower(x.Kind.String()))
}

func convertAttr(x *ast.SelectorExpr) (Node, error) {
	path := []string{x.Sel.Name}
	cur := x.X
	for {
		switch c := cur.(type) {
		case *ast.SelectorExpr:
			path = append([]string{c.Sel.Name}, path...)
			cur = c.X
		case *ast.ParenExpr:
			cur = c.X
		case *ast.Ident:
			return &Attr{Offset: offsetOf(c.Pos()), Root: c.Name, Path: path}, nil
		default:
			return nil, reject(ErrUnsupportedAttributeForm, offsetOf(cur.Pos()),
				"attribute .%s on a computed value", strings.Join(path, "."))
		}
	}
}

func convertComposite(x *ast.CompositeLit) (Node, error) {
	off := offsetOf(x.Lbrace)
	switch t := x.Type.(type) {
	case *ast.ArrayType:
		if t.Len != nil {
			return nil, reject(ErrDisallowedConstruct, offsetOf(t.Pos()), "array literal with a length")
		}
		if err := checkLiteralType(t.Elt); err != nil {
			return nil, err
		}
		list := &List{Offset: off, Elem: exprString(t.Elt), Elems: make([]Node, 0, len(x.Elts))}
		for _, e := range x.Elts {
			if kv, ok := e.(*ast.KeyValueExpr); ok {
				return nil, reject(ErrDisallowedConstruct, offsetOf(kv.Colon), "indexed element in a list literal")
			}
			n, err := convert(e)
			if err != nil {
				return nil, err
			}
			list.Elems = append(list.Elems, n)
		}
		return list, nil

	case *ast.MapType:
		if err := checkLiteralType(t.Key); err != nil {
			return nil, err
		}
		if err := checkLiteralType(t.Value); err != nil {
			return nil, err
		}
		dict := &Dict{Offset: off, KeyType: exprString(t.Key), ValueType: exprString(t.Value)}
		for _, e := range x.Elts {
			kv, ok := e.(*ast.KeyValueExpr)
			if !ok {
				return nil, reject(ErrDisallowedConstruct, offsetOf(e.Pos()), "map element without a key")
			}
			k, err := convert(kv.Key)
			if err != nil {
				return nil, err
			}
			v, err := convert(kv.Value)
			if err != nil {
				return nil, err
			}
			dict.Keys = append(dict.Keys, k)
			dict.Values = append(dict.Values, v)
		}
		return dict, nil
	}
	return nil, reject(ErrDisallowedConstruct, off, "composite literal")
}

func checkLiteralType(e ast.Expr) error {
	if id, ok := e.(*ast.Ident); ok && literalTypes[id.Name] {
		return nil
	}
	return reject(ErrDisallowedConstruct, offsetOf(e.Pos()), "literal element type %s", exprString(e))
}

func exprString(e ast.Expr) string {
	switch x := e.(type) {
	case *ast.Ident:
		return x.Name
	case *ast.ArrayType:
		return "[]" + exprString(x.Elt)
	case *ast.MapType:
		return fmt.Sprintf("map[%s]%s", exprString(x.Key), exprString(x.Value))
	}
	return fmt.Sprintf("%T", e)
}
