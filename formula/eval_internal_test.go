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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dataverse/datatable"
)

func TestPanickingFunctionBecomesAnError(t *testing.T) {
	m := newModule("boom")
	m.fn("now", 0, 1, func(*callContext, []value) (value, error) {
		panic("broken module")
	})
	cfg := Config{Modules: map[string]*Module{"boom": m}, Seed: DefaultSeed}
	e := NewEngine(cfg, WithNotifier(func(string) {}))

	tbl, err := datatable.NewTable(datatable.Column{
		Name: "A", Type: datatable.TypeInt, Values: []datatable.Value{datatable.IntValue(1), datatable.IntValue(2)},
	})
	require.NoError(t, err)

	_, err = e.EvaluateVectorized("boom.now(A)", tbl)
	require.ErrorIs(t, err, ErrVectorization)
	assert.ErrorIs(t, err, errPanic)

	_, err = e.EvaluateRow("boom.now(A)", map[string]datatable.Value{"A": datatable.IntValue(1)})
	require.ErrorIs(t, err, ErrRowEvaluation)
	assert.ErrorIs(t, err, errPanic)

	_, err = e.EvaluateColumn("boom.now(A)", tbl)
	require.ErrorIs(t, err, ErrFormulaUnusable)
}
