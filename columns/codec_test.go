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

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/magpierre/dataverse/columns"
)

var sampleEntries = columns.Entries{
	{Name: "Zeta", Spec: columns.Choice{Options: []string{"Standard", "Credit"}}},
	{Name: "Alpha", Spec: columns.Range{Min: 0, Max: 5, Integral: true}},
	{Name: "Mid", Spec: columns.Formula{Expr: "Alpha * 2"}},
}

func TestJSONRoundTripKeepsOrder(t *testing.T) {
	data, err := json.Marshal(sampleEntries)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		["Zeta", {"type": "choice", "options": ["Standard", "Credit"]}],
		["Alpha", {"type": "range", "min": 0, "max": 5, "float": false}],
		["Mid", {"type": "formula", "expr": "Alpha * 2"}]
	]`, string(data))

	var back columns.Entries
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, sampleEntries, back)
}

func TestJSONAcceptsRecordsAndObjects(t *testing.T) {
	var records columns.Entries
	require.NoError(t, json.Unmarshal([]byte(`[
		{"name": "Zeta", "type": "choice", "options": ["Standard", "Credit"]},
		{"name": "Alpha", "type": "range", "min": 0, "max": 5, "float": false},
		{"name": "Mid", "type": "formula", "expr": "Alpha * 2"}
	]`), &records))
	assert.Equal(t, sampleEntries, records)

	var object columns.Entries
	require.NoError(t, json.Unmarshal([]byte(`{
		"Zeta": {"type": "choice", "options": ["Standard", "Credit"]},
		"Alpha": {"type": "range", "min": 0, "max": 5, "float": false},
		"Mid": {"type": "formula", "expr": "Alpha * 2"}
	}`), &object))
	assert.Equal(t, sampleEntries, object)
}

func TestRangeDefaultsToFloatSamples(t *testing.T) {
	var e columns.Entries
	require.NoError(t, json.Unmarshal([]byte(`[["DiscountPct", {"type": "range", "min": 0, "max": 5}]]`), &e))
	assert.Equal(t, columns.Range{Min: 0, Max: 5}, e[0].Spec)

	require.NoError(t, json.Unmarshal([]byte(`[["P", {"type": "range"}]]`), &e))
	assert.Equal(t, columns.Range{Min: 0, Max: 1}, e[0].Spec)
}

func TestJSONRejectsMalformedEntries(t *testing.T) {
	var e columns.Entries
	assert.ErrorIs(t, json.Unmarshal([]byte(`[["X", {"type": "lookup"}]]`), &e), columns.ErrUnknownKind)
	assert.ErrorIs(t, json.Unmarshal([]byte(`[["X"]]`), &e), columns.ErrInvalidFormat)
	assert.ErrorIs(t, json.Unmarshal([]byte(`[{"type": "choice"}]`), &e), columns.ErrInvalidFormat)
	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &e))
}

func TestYAMLShapes(t *testing.T) {
	data, err := yaml.Marshal(sampleEntries)
	require.NoError(t, err)

	var back columns.Entries
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, sampleEntries, back)

	var pairs columns.Entries
	require.NoError(t, yaml.Unmarshal([]byte(`
- [Zeta, {type: choice, options: [Standard, Credit]}]
- [Alpha, {type: range, min: 0, max: 5, float: false}]
- [Mid, {type: formula, expr: "Alpha * 2"}]
`), &pairs))
	assert.Equal(t, sampleEntries, pairs)

	var mapping columns.Entries
	require.NoError(t, yaml.Unmarshal([]byte(`
Zeta: {type: choice, options: [Standard, Credit]}
Alpha: {type: range, min: 0, max: 5, float: false}
Mid: {type: formula, expr: "Alpha * 2"}
`), &mapping))
	assert.Equal(t, sampleEntries, mapping)
}
