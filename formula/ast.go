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
	"go/token"

	"github.com/magpierre/dataverse/datatable"
)

// Node is a node of a parsed formula. The set of implementations is closed:
// anything the parser cannot express as one of them is rejected.
type Node interface {
	// Pos returns the byte offset of the node in the expression text.
	Pos() int
	node()
}

// Operator is an arithmetic, comparison or boolean operator.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
)

var operatorTokens = map[token.Token]Operator{
	token.ADD:  OpAdd,
	token.SUB:  OpSub,
	token.MUL:  OpMul,
	token.QUO:  OpDiv,
	token.REM:  OpMod,
	token.EQL:  OpEq,
	token.NEQ:  OpNe,
	token.LSS:  OpLt,
	token.LEQ:  OpLe,
	token.GTR:  OpGt,
	token.GEQ:  OpGe,
	token.LAND: OpAnd,
	token.LOR:  OpOr,
}

func (op Operator) String() string {
	switch op {
	case OpNot:
		return "!"
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	}
	for tok, o := range operatorTokens {
		if o == op {
			return tok.String()
		}
	}
	return "?"
}

// IsComparison reports whether op compares its operands.
func (op Operator) IsComparison() bool { return op >= OpEq && op <= OpGe }

type (
	// Literal is a number, string, boolean or nil constant.
	Literal struct {
		Offset int
		Value  datatable.Value
	}

	// Ident references a column or a module alias.
	Ident struct {
		Offset int
		Name   string
	}

	// Attr is an attribute chain rooted at an identifier: np.random.uniform
	// has Root "np" and Path ["random", "uniform"].
	Attr struct {
		Offset int
		Root   string
		Path   []string
	}

	// Unary applies -, + or ! to X.
	Unary struct {
		Offset int
		Op     Operator
		X      Node
	}

	// Binary applies an arithmetic, comparison or boolean operator.
	Binary struct {
		Offset int
		Op     Operator
		X, Y   Node
	}

	// Call invokes Fun with Args.
	Call struct {
		Offset int
		Fun    Node
		Args   []Node
	}

	// Index is X[Index].
	Index struct {
		Offset int
		X      Node
		Index  Node
	}

	// Slice is X[Low:High]; either bound may be nil.
	Slice struct {
		Offset    int
		X         Node
		Low, High Node
	}

	// List is a slice literal such as []string{"a", "b"}.
	// Elem is the declared element type; elements are converted to it.
	List struct {
		Offset int
		Elem   string
		Elems  []Node
	}

	// Dict is a map literal such as map[int]float64{12: 1.5}. Keys and
	// values are converted to KeyType and ValueType.
	Dict struct {
		Offset    int
		KeyType   string
		ValueType string
		Keys      []Node
		Values    []Node
	}
)

func (n *Literal) Pos() int { return n.Offset }
func (n *Ident) Pos() int   { return n.Offset }
func (n *Attr) Pos() int    { return n.Offset }
func (n *Unary) Pos() int   { return n.Offset }
func (n *Binary) Pos() int  { return n.Offset }
func (n *Call) Pos() int    { return n.Offset }
func (n *Index) Pos() int   { return n.Offset }
func (n *Slice) Pos() int   { return n.Offset }
func (n *List) Pos() int    { return n.Offset }
func (n *Dict) Pos() int    { return n.Offset }

func (*Literal) node() {}
func (*Ident) node()   {}
func (*Attr) node()    {}
func (*Unary) node()   {}
func (*Binary) node()  {}
func (*Call) node()    {}
func (*Index) node()   {}
func (*Slice) node()   {}
func (*List) node()    {}
func (*Dict) node()    {}

// Inspect walks the tree in source order, calling f for every node. The
// children of a node are skipped when f returns false.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	switch x := n.(type) {
	case *Unary:
		Inspect(x.X, f)
	case *Binary:
		Inspect(x.X, f)
		Inspect(x.Y, f)
	case *Call:
		Inspect(x.Fun, f)
		for _, a := range x.Args {
			Inspect(a, f)
		}
	case *Index:
		Inspect(x.X, f)
		Inspect(x.Index, f)
	case *Slice:
		Inspect(x.X, f)
		Inspect(x.Low, f)
		Inspect(x.High, f)
	case *List:
		for _, e := range x.Elems {
			Inspect(e, f)
		}
	case *Dict:
		for i := range x.Keys {
			Inspect(x.Keys[i], f)
			Inspect(x.Values[i], f)
		}
	}
}
