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
	"errors"
	"fmt"
	"strings"
)

// Rejections raised by Validate before anything is evaluated.
var (
	// ErrSyntax is returned when the text is not a single Go expression.
	ErrSyntax = errors.New("formula: syntax error")

	// ErrDisallowedConstruct is returned for syntax outside the allowlist:
	// statements, assignment, loops, function literals, imports and the like.
	ErrDisallowedConstruct = errors.New("formula: disallowed construct")

	// ErrDisallowedAttributeRoot is returned for attribute access whose root
	// is not a module alias.
	ErrDisallowedAttributeRoot = errors.New("formula: attribute access is only allowed on module aliases")

	// ErrUnsupportedAttributeForm is returned for attribute access on a
	// computed value, such as the result of a call.
	ErrUnsupportedAttributeForm = errors.New("formula: unsupported attribute form")

	// ErrUnknownIdentifier is returned for a name that is neither a column
	// nor a module alias.
	ErrUnknownIdentifier = errors.New("formula: unknown identifier")
)

// Evaluation failures.
var (
	// ErrVectorization marks a failed vectorized evaluation. It is a signal
	// to fall back to row-wise evaluation.
	ErrVectorization = errors.New("formula: vectorized evaluation failed")

	// ErrRowEvaluation marks a failed evaluation of a single row.
	ErrRowEvaluation = errors.New("formula: row evaluation failed")

	// ErrFormulaUnusable is returned when row-wise evaluation failed for
	// every row.
	ErrFormulaUnusable = errors.New("formula: evaluation failed for every row")
)

// RejectionError describes why an expression was rejected.
type RejectionError struct {
	// Err is one of the rejection sentinels.
	Err error
	// Detail names the offending construct or identifier.
	Detail string
	// Offset is the byte offset of the offending node in the expression.
	Offset int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s (offset %d)", e.Err, e.Detail, e.Offset)
}

func (e *RejectionError) Unwrap() error { return e.Err }

func reject(err error, offset int, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Err: err, Detail: fmt.Sprintf(format, args...), Offset: offset}
}

// RowError is the failure of one row during row-wise evaluation.
type RowError struct {
	Row int
	Err error
}

func (e *RowError) Error() string { return fmt.Sprintf("row %d: %v", e.Row, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// RowErrors lists the rows that failed during row-wise evaluation.
type RowErrors []*RowError

func (r RowErrors) Error() string {
	const shown = 3
	var b strings.Builder
	fmt.Fprintf(&b, "%d row(s) failed", len(r))
	for i, e := range r {
		if i == shown {
			b.WriteString("; ...")
			break
		}
		b.WriteString("; ")
		b.WriteString(e.Error())
	}
	return b.String()
}

func (r RowErrors) Unwrap() []error {
	out := make([]error, len(r))
	for i, e := range r {
		out[i] = e
	}
	return out
}

var (
	errAmbiguousTruth = errors.New("truth value of a column is ambiguous; use np.where")
	errScalarRequired = errors.New("only scalar arguments are supported")
	errShape          = errors.New("shape mismatch")
	errType           = errors.New("unsupported operand type")
	errNotCallable    = errors.New("value is not callable")
	errIndex          = errors.New("index out of range")
	errKey            = errors.New("key not found")
	errDomain         = errors.New("math domain error")
	errArity          = errors.New("wrong number of arguments")
	errMember         = errors.New("unknown module member")
	errPanic          = errors.New("evaluation panicked")
)
