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

	"github.com/magpierre/dataverse/columns"
)

func TestEntriesEditing(t *testing.T) {
	var e columns.Entries
	e = e.Upsert("A", columns.Range{Min: 0, Max: 1})
	e = e.Upsert("B", columns.Choice{Options: []string{"x"}})
	e = e.Upsert("C", columns.Formula{Expr: "A * 2"})
	assert.Equal(t, []string{"A", "B", "C"}, e.Names())

	replaced := e.Upsert("B", columns.Formula{Expr: "A + 1"})
	assert.Equal(t, []string{"A", "B", "C"}, replaced.Names())
	s, ok := replaced.Get("B")
	assert.True(t, ok)
	assert.Equal(t, columns.Formula{Expr: "A + 1"}, s)
	orig, _ := e.Get("B")
	assert.Equal(t, columns.KindChoice, orig.Kind(), "Upsert does not modify the receiver")

	assert.Equal(t, []string{"B", "A", "C"}, e.Move("B", columns.Up).Names())
	assert.Equal(t, []string{"A", "C", "B"}, e.Move("B", columns.Down).Names())
	assert.Equal(t, []string{"A", "B", "C"}, e.Move("A", columns.Up).Names())
	assert.Equal(t, []string{"A", "B", "C"}, e.Move("C", columns.Down).Names())
	assert.Equal(t, []string{"A", "B", "C"}, e.Move("Z", columns.Up).Names())

	assert.Equal(t, []string{"A", "C"}, e.Delete("B").Names())
	assert.Equal(t, []string{"A", "B", "C"}, e.Names())
	_, ok = e.Delete("B").Get("B")
	assert.False(t, ok)
}

func TestSpecValidate(t *testing.T) {
	assert.NoError(t, columns.Range{Min: 1, Max: 1}.Validate())
	assert.ErrorIs(t, columns.Range{Min: 2, Max: 1}.Validate(), columns.ErrInvalidSpec)
	assert.ErrorIs(t, columns.Formula{Expr: "  "}.Validate(), columns.ErrInvalidSpec)
	assert.NoError(t, columns.Choice{}.Validate())
}
