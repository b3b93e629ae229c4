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


package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dataverse/dataio"
	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/formula"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run(context.Background(), []string{"validate", "-columns", "A, B", "np.sqrt(A) + B"}, nil, &out))
	assert.Equal(t, "ok\n", out.String())

	out.Reset()
	err := run(context.Background(), []string{"validate", "-columns", "A", "A + Missing"}, nil, &out)
	require.ErrorIs(t, err, errRejected)
	assert.Contains(t, out.String(), "unknown identifier")
	assert.Contains(t, out.String(), "  A + Missing\n      ^\n")
}

func TestUnknownCommand(t *testing.T) {
	err := run(context.Background(), []string{"frobnicate"}, nil, &bytes.Buffer{})
	require.ErrorIs(t, err, errUsage)
	require.ErrorIs(t, run(context.Background(), nil, nil, &bytes.Buffer{}), errUsage)
}

func TestInputFlags(t *testing.T) {
	in := inputFlags{}
	require.NoError(t, in.Set("Sales = data/sales.csv"))
	require.NoError(t, in.Set("Ops=ops.parquet"))
	assert.Error(t, in.Set("Sales=again.csv"))
	assert.Error(t, in.Set("nopath"))
	assert.Equal(t, "Ops=ops.parquet,Sales=data/sales.csv", in.String())
}

const profileYAML = `
name: demo
seed: 7
custom_config_ordered:
  Sales:
    - name: Channel
      type: choice
      options: [Online]
    - name: Net
      type: formula
      expr: Qty * Price
  Ghost:
    - name: X
      type: formula
      expr: "1"
scenarios:
  - name: Double everything
    type: seasonal
    target_dataset: Sales
    target_column: Net
    month_multipliers: {"1": 2}
  - name: Nowhere
    type: fraud_outlier
    target_dataset: Purchases
    target_column: Amount
`

func TestApplyCommandWritesZip(t *testing.T) {
	dir := t.TempDir()
	sales := writeFile(t, dir, "sales.csv", "Date;Qty;Price\n2024-01-05;2;1.5\n2024-02-05;3;2.5\n")
	ops := writeFile(t, dir, "ops.json", `[{"Plant": "A", "Load": 0.5}]`)
	prof := writeFile(t, dir, "demo.yaml", profileYAML)
	bundle := filepath.Join(dir, "out.zip")

	var out bytes.Buffer
	err := run(context.Background(), []string{
		"apply", "-profile", prof, "-in", "Sales=" + sales, "-in", "Ops=" + ops, "-out", bundle,
	}, nil, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Sales: 2 rows, 5 columns\n")
	assert.Contains(t, out.String(), "Ops: 1 rows, 2 columns\n")

	zr, err := zip.OpenReader(bundle)
	require.NoError(t, err)
	defer zr.Close()
	var (
		names []string
		entry *zip.File
	)
	for _, f := range zr.File {
		names = append(names, f.Name)
		if f.Name == "Sales.csv" {
			entry = f
		}
	}
	sort.Strings(names)
	assert.Equal(t, []string{"Ops.csv", "Sales.csv"}, names)

	require.NotNil(t, entry)
	f, err := entry.Open()
	require.NoError(t, err)
	defer f.Close()
	got, err := dataio.ReadCSV(f, ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Qty", "Price", "Channel", "Net"}, got.ColumnNames())
	net, err := got.Column("Net")
	require.NoError(t, err)
	assert.Equal(t, []datatable.Value{datatable.FloatValue(6), datatable.FloatValue(7.5)}, net.Values)
}

func TestApplyCommandWritesDirectory(t *testing.T) {
	dir := t.TempDir()
	sales := writeFile(t, dir, "sales.csv", "Qty\n1\n2\n")
	outDir := filepath.Join(dir, "out")

	err := run(context.Background(), []string{
		"apply", "-in", "Sales=" + sales, "-format", "json", "-out", outDir,
	}, nil, &bytes.Buffer{})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(outDir, "Sales.json"))
	require.NoError(t, err)

	err = run(context.Background(), []string{"apply", "-in", "Sales=" + sales, "-format", "xlsx"}, nil, &bytes.Buffer{})
	require.Error(t, err)
	err = run(context.Background(), []string{"apply"}, nil, &bytes.Buffer{})
	require.Error(t, err)
}

func replTable(t *testing.T) *datatable.Table {
	t.Helper()
	tbl, err := datatable.NewTable(
		datatable.Column{Name: "Qty", Type: datatable.TypeInt, Values: []datatable.Value{
			datatable.IntValue(1), datatable.IntValue(2), datatable.IntValue(3),
		}},
		datatable.Column{Name: "Region", Type: datatable.TypeString, Values: []datatable.Value{
			datatable.StringValue("EU"), datatable.StringValue("US"), datatable.StringValue("EU"),
		}},
	)
	require.NoError(t, err)
	return tbl
}

func TestSessionEvaluatesAndAddsColumns(t *testing.T) {
	var out bytes.Buffer
	s := newSession(replTable(t), formula.DefaultConfig(), 2, &out)

	assert.False(t, s.handle(context.Background(), "Qty * 2"))
	assert.Contains(t, out.String(), "vectorized, Int, 3 rows\n")
	assert.Contains(t, out.String(), "     0  2\n     1  4\n  ... 1 more\n")

	out.Reset()
	s.handle(context.Background(), ":add Double = Qty * 2.5")
	assert.Contains(t, out.String(), "added Double (Float)")
	assert.True(t, s.table.HasColumn("Double"))

	out.Reset()
	s.handle(context.Background(), "Qty + Nope")
	assert.Contains(t, out.String(), "error: ")
	assert.Contains(t, out.String(), "\n        ^\n")

	out.Reset()
	s.handle(context.Background(), ":columns")
	assert.Contains(t, out.String(), "Double")

	assert.True(t, s.handle(context.Background(), "exit"))
}

func TestSessionCompletion(t *testing.T) {
	s := newSession(replTable(t), formula.DefaultConfig(), 10, &bytes.Buffer{})

	complete := func(line string) []string {
		cands, _ := s.Do([]rune(line), len([]rune(line)))
		out := make([]string, len(cands))
		for i, c := range cands {
			out[i] = string(c)
		}
		return out
	}

	assert.Equal(t, []string{"ty"}, complete("1 + Q"))
	assert.Equal(t, []string{"p"}, complete("n"))
	assert.Contains(t, complete("np.sq"), "rt")
	assert.Contains(t, complete("np.random.unif"), "orm")
	assert.Empty(t, complete("nope.x"))

	_, length := s.Do([]rune("np.ra"), 5)
	assert.Equal(t, 2, length)
}

func TestSessionSave(t *testing.T) {
	var out bytes.Buffer
	s := newSession(replTable(t), formula.DefaultConfig(), 10, &out)
	path := filepath.Join(t.TempDir(), "t.csv")
	s.handle(context.Background(), ":save "+path)
	assert.True(t, strings.HasPrefix(out.String(), "wrote "))

	back, err := dataio.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, replTable(t).Equal(back))
}
