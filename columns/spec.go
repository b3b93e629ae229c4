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

// Package columns materialises user-defined custom columns on a table.
//
// A column is specified as a fixed choice set, a numeric range or a formula.
// Entries keep the user's order, and the Applier adds them to a table one
// at a time so that later formulas can read earlier columns.
package columns

import (
	"fmt"
	"strings"
)

// Kind names the variant of a Spec. The values are the wire names.
type Kind string

const (
	KindChoice  Kind = "choice"
	KindRange   Kind = "range"
	KindFormula Kind = "formula"
)

// Spec is the specification of one custom column: Choice, Range or Formula.
type Spec interface {
	Kind() Kind
	// Validate checks the invariants of the specification.
	Validate() error
	spec()
}

// Choice samples uniformly, with replacement, from Options. Empty Options
// produce an all-missing column.
type Choice struct {
	Options []string
}

// Range samples uniformly from [Min, Max]. Integral truncates every sample
// to an integer.
type Range struct {
	Min, Max float64
	Integral bool
}

// Formula computes the column from an expression over the table.
type Formula struct {
	Expr string
}

func (Choice) Kind() Kind  { return KindChoice }
func (Range) Kind() Kind   { return KindRange }
func (Formula) Kind() Kind { return KindFormula }

func (Choice) spec()  {}
func (Range) spec()   {}
func (Formula) spec() {}

func (c Choice) Validate() error { return nil }

func (r Range) Validate() error {
	if r.Min > r.Max {
		return fmt.Errorf("%w: range min %v is greater than max %v", ErrInvalidSpec, r.Min, r.Max)
	}
	return nil
}

func (f Formula) Validate() error {
	if strings.TrimSpace(f.Expr) == "" {
		return fmt.Errorf("%w: empty formula", ErrInvalidSpec)
	}
	return nil
}

// String renders the specification the way the REPL and CLI list it.
func (c Choice) String() string { return fmt.Sprintf("choice%v", c.Options) }

func (r Range) String() string {
	if r.Integral {
		return fmt.Sprintf("range[%v, %v] integral", r.Min, r.Max)
	}
	return fmt.Sprintf("range[%v, %v]", r.Min, r.Max)
}

func (f Formula) String() string { return "formula " + f.Expr }
