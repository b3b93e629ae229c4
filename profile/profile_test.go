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


package profile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dataverse/columns"
	"github.com/magpierre/dataverse/profile"
	"github.com/magpierre/dataverse/scenario"
)

func f(v float64) *float64 { return &v }

func sample() profile.Profile {
	p := profile.Default()
	p.Name = "Mining Q4"
	p.CustomColumns = map[string]columns.Entries{
		"Sales": {
			{Name: "Channel", Spec: columns.Choice{Options: []string{"Online", "Store"}}},
			{Name: "Units", Spec: columns.Range{Min: 1, Max: 9, Integral: true}},
			{Name: "Revenue", Spec: columns.Formula{Expr: "Units * 2.5"}},
		},
	}
	seed := int64(7)
	p.Scenarios = []scenario.Spec{
		{
			Name: "Coal shock", Type: scenario.Shock, TargetDataset: "Operational", TargetColumn: "CoalUsed",
			Start: "2024-12-01", End: "2024-12-31", Magnitude: f(0.5), Mode: "multiplier",
		},
		{
			Name: "Holiday", Type: scenario.Seasonal, TargetDataset: "Sales", TargetColumn: "Revenue",
			MonthMultipliers: map[string]float64{"12": 1.5},
		},
		{Name: "Fraud", Type: scenario.FraudOutlier, TargetDataset: "Purchases", TargetColumn: "Amount", Pct: f(0.02), Seed: &seed},
	}
	return p
}

func TestRoundTripAllFormats(t *testing.T) {
	for _, ext := range []string{"json", "yaml", "yml", "toml"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "p."+ext)
			want := sample()
			require.NoError(t, profile.Write(path, want))

			got, err := profile.Load(path)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestLoadFillsDefaultsAndName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bare.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"scenarios": []}`), 0o644))

	p, err := profile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bare", p.Name)
	assert.Equal(t, profile.DefaultSeed, p.Seed)
	assert.Equal(t, 0.05, p.OutlierFrequency)
	assert.Equal(t, 2.0, p.OutlierMagnitude)
}

func TestLoadAcceptsOrderedObjectColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"custom_config_ordered": {
			"Sales": [["B", {"type": "formula", "expr": "1"}], ["A", {"type": "choice", "options": ["x"]}]]
		}
	}`), 0o644))

	p, err := profile.Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A"}, p.CustomColumns["Sales"].Names())
}

func TestUnsupportedExtension(t *testing.T) {
	err := profile.Write(filepath.Join(t.TempDir(), "p.ini"), sample())
	require.ErrorIs(t, err, profile.ErrUnsupportedFormat)

	_, err = profile.Load("p.xml")
	require.ErrorIs(t, err, profile.ErrUnsupportedFormat)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "Mining Q4", profile.SafeName("Mining Q4!  "))
	assert.Equal(t, "a_b-c", profile.SafeName("a_b-c/../"))
	assert.Equal(t, "", profile.SafeName("***"))
}

func TestSaveAndList(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "profiles")

	names, err := profile.List(dir)
	require.NoError(t, err)
	assert.Empty(t, names)

	p := sample()
	path, err := profile.Save(dir, p, profile.FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Mining Q4.yaml"), path)

	p.Name = "other/../name"
	_, err = profile.Save(dir, p, profile.FormatJSON)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644))

	names, err = profile.List(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Mining Q4.yaml", "othername.json"}, names)

	p.Name = "!!"
	_, err = profile.Save(dir, p, profile.FormatJSON)
	require.ErrorIs(t, err, profile.ErrInvalidName)
}

func TestMergeTemplate(t *testing.T) {
	base := sample()
	tmpl := profile.Profile{
		CustomColumns: map[string]columns.Entries{
			"Sales":  {{Name: "Units", Spec: columns.Range{Min: 10, Max: 20}}, {Name: "Tax", Spec: columns.Formula{Expr: "Revenue * 0.2"}}},
			"Stores": {{Name: "Size", Spec: columns.Choice{Options: []string{"S", "L"}}}},
		},
		Scenarios: []scenario.Spec{{Name: "Extra", Type: scenario.Outlier, TargetDataset: "Sales"}},
	}

	merged := base.Merge(tmpl)
	assert.Equal(t, []string{"Channel", "Units", "Revenue", "Tax"}, merged.CustomColumns["Sales"].Names())
	units, _ := merged.CustomColumns["Sales"].Get("Units")
	assert.Equal(t, columns.Range{Min: 10, Max: 20}, units)
	assert.Equal(t, []string{"Sales", "Stores"}, merged.Datasets())
	require.Len(t, merged.Scenarios, 4)
	assert.Equal(t, "Extra", merged.Scenarios[3].Name)

	// the receiver is untouched
	assert.Len(t, base.Scenarios, 3)
	assert.Equal(t, []string{"Channel", "Units", "Revenue"}, base.CustomColumns["Sales"].Names())
}
