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


package dataio_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magpierre/dataverse/dataio"
	"github.com/magpierre/dataverse/datatable"
)

func day(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

func sales(t *testing.T) *datatable.Table {
	t.Helper()
	tbl, err := datatable.NewTable(
		datatable.Column{Name: "Qty", Type: datatable.TypeInt, Values: []datatable.Value{
			datatable.IntValue(3), datatable.NewNullValue(datatable.TypeInt), datatable.IntValue(-7),
		}},
		datatable.Column{Name: "Price", Type: datatable.TypeFloat, Values: []datatable.Value{
			datatable.FloatValue(2.5), datatable.FloatValue(10), datatable.NewNullValue(datatable.TypeFloat),
		}},
		datatable.Column{Name: "Region", Type: datatable.TypeString, Values: []datatable.Value{
			datatable.StringValue("EU"), datatable.StringValue("US, east"), datatable.NewNullValue(datatable.TypeString),
		}},
		datatable.Column{Name: "Paid", Type: datatable.TypeBool, Values: []datatable.Value{
			datatable.BoolValue(true), datatable.BoolValue(false), datatable.NewNullValue(datatable.TypeBool),
		}},
		datatable.Column{Name: "Date", Type: datatable.TypeDate, Values: []datatable.Value{
			datatable.DateValue(day(1)), datatable.DateValue(day(2)), datatable.DateValue(day(3)),
		}},
	)
	require.NoError(t, err)
	return tbl
}

func withStamps(t *testing.T, tbl *datatable.Table) *datatable.Table {
	t.Helper()
	out, err := tbl.WithColumn("At", datatable.TypeTimestamp, []datatable.Value{
		datatable.TimestampValue(day(1).Add(90 * time.Minute)),
		datatable.NewNullValue(datatable.TypeTimestamp),
		datatable.TimestampValue(day(3).Add(1500 * time.Microsecond)),
	})
	require.NoError(t, err)
	return out
}

func TestDetectFileType(t *testing.T) {
	assert.Equal(t, dataio.FileTypeCSV, dataio.DetectFileType("a/b.CSV"))
	assert.Equal(t, dataio.FileTypeCSV, dataio.DetectFileType("b.tsv"))
	assert.Equal(t, dataio.FileTypeParquet, dataio.DetectFileType("b.parquet"))
	assert.Equal(t, dataio.FileTypeJSON, dataio.DetectFileType("b.json"))
	assert.Equal(t, dataio.FileTypeUnknown, dataio.DetectFileType("b.xlsx"))
	assert.Equal(t, dataio.FileTypeParquet, dataio.ParseFileType("parquet"))
}

func TestDetectSeparator(t *testing.T) {
	assert.Equal(t, ';', dataio.DetectSeparator([]byte("a;b;c\n1,5;2;3\n")))
	assert.Equal(t, '\t', dataio.DetectSeparator([]byte("a\tb\n")))
	assert.Equal(t, '|', dataio.DetectSeparator([]byte("a|b|c")))
	assert.Equal(t, ',', dataio.DetectSeparator([]byte("a,b;c\n")))
	assert.Equal(t, ',', dataio.DetectSeparator([]byte("single\n")))
}

func TestReadCSVInfersTypes(t *testing.T) {
	in := "\ufeffid; amount ;flag;when;stamp;note;empty;id\n" +
		"1;2;true;2024-01-01;2024-01-01T10:00:00Z;x;;9\n" +
		"2;2.5;FALSE;2024-01-02;2024-01-02;;;8\n" +
		"3\n"
	tbl, err := dataio.ReadCSV(strings.NewReader(in), ';')
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "amount", "flag", "when", "stamp", "note", "empty", "id.1"}, tbl.ColumnNames())
	want := []datatable.DataType{
		datatable.TypeInt, datatable.TypeFloat, datatable.TypeBool, datatable.TypeDate,
		datatable.TypeTimestamp, datatable.TypeString, datatable.TypeString, datatable.TypeInt,
	}
	for j, typ := range want {
		got, err := tbl.ColumnType(j)
		require.NoError(t, err)
		assert.Equal(t, typ, got, tbl.ColumnNames()[j])
	}

	amount, err := tbl.Column("amount")
	require.NoError(t, err)
	assert.Equal(t, datatable.FloatValue(2), amount.Values[0])
	assert.True(t, amount.Values[2].IsNull)

	note, err := tbl.Column("note")
	require.NoError(t, err)
	assert.True(t, note.Values[1].IsNull)
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := dataio.ReadCSV(strings.NewReader(""), ',')
	require.ErrorIs(t, err, dataio.ErrNoRecords)

	tbl, err := dataio.ReadCSV(strings.NewReader("a,b\n"), ',')
	require.NoError(t, err)
	assert.Equal(t, 0, tbl.RowCount())
	assert.Equal(t, []string{"a", "b"}, tbl.ColumnNames())
}

func TestCSVRoundTrip(t *testing.T) {
	tbl := withStamps(t, sales(t))
	var buf bytes.Buffer
	require.NoError(t, dataio.ExportCSV(tbl, &buf))
	assert.True(t, strings.HasPrefix(buf.String(), "Qty,Price,Region,Paid,Date,At\n3,2.5,EU,true,2024-01-01,"))

	back, err := dataio.ReadCSV(&buf, ',')
	require.NoError(t, err)
	assert.True(t, tbl.Equal(back))
}

func TestReadJSONKeepsFirstSeenOrder(t *testing.T) {
	in := `[
		{"b": 1, "a": "x"},
		{"a": "y", "c": 2.5, "d": {"k": [1, 2]}, "e": "2024-01-03"},
		{"b": 2.5, "a": null, "e": "2024-01-04", "f": true}
	]`
	tbl, err := dataio.ReadJSON(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c", "d", "e", "f"}, tbl.ColumnNames())

	b, _ := tbl.Column("b")
	assert.Equal(t, datatable.TypeFloat, b.Type)
	assert.Equal(t, datatable.FloatValue(1), b.Values[0])
	assert.True(t, b.Values[1].IsNull)

	d, _ := tbl.Column("d")
	assert.Equal(t, datatable.StringValue(`{"k":[1,2]}`), d.Values[1])

	e, _ := tbl.Column("e")
	assert.Equal(t, datatable.TypeDate, e.Type)
	assert.True(t, e.Values[0].IsNull)
	assert.Equal(t, datatable.DateValue(day(4)), e.Values[2])

	f, _ := tbl.Column("f")
	assert.Equal(t, datatable.TypeBool, f.Type)
}

func TestReadJSONSingleObjectAndErrors(t *testing.T) {
	tbl, err := dataio.ReadJSON(strings.NewReader(`{"x": 1, "y": "z"}`))
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.RowCount())

	_, err = dataio.ReadJSON(strings.NewReader(`[]`))
	require.ErrorIs(t, err, dataio.ErrNoRecords)

	_, err = dataio.ReadJSON(strings.NewReader(`[1, 2]`))
	require.Error(t, err)

	_, err = dataio.ReadJSON(strings.NewReader(`"text"`))
	require.Error(t, err)
}

func TestJSONRoundTrip(t *testing.T) {
	tbl := sales(t)
	var buf bytes.Buffer
	require.NoError(t, dataio.ExportJSON(tbl, &buf))
	assert.Contains(t, buf.String(), `{"Qty": 3, "Price": 2.5, "Region": "EU", "Paid": true, "Date": "2024-01-01"}`)

	back, err := dataio.ReadJSON(&buf)
	require.NoError(t, err)
	assert.True(t, tbl.Equal(back))
}

func TestParquetRoundTrip(t *testing.T) {
	tbl := withStamps(t, sales(t))
	var buf bytes.Buffer
	require.NoError(t, dataio.ExportParquet(tbl, &buf))

	back, err := dataio.ReadParquet(context.Background(), bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.True(t, tbl.Equal(back))
}

type closeRecorder struct {
	bytes.Buffer
	closed bool
}

func (c *closeRecorder) Close() error {
	c.closed = true
	return nil
}

func TestExportParquetLeavesWriterOpen(t *testing.T) {
	var w closeRecorder
	require.NoError(t, dataio.ExportParquet(sales(t), &w))
	assert.False(t, w.closed)

	back, err := dataio.ReadParquet(context.Background(), bytes.NewReader(w.Bytes()))
	require.NoError(t, err)
	assert.True(t, sales(t).Equal(back))
}

func TestExportParquetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.parquet")
	require.NoError(t, dataio.Export(sales(t), path, dataio.FileTypeParquet))

	back, err := dataio.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, sales(t).Equal(back))
}

func TestArrowRoundTripWritesMixedAsText(t *testing.T) {
	tbl, err := sales(t).WithColumn("Any", datatable.TypeMixed, []datatable.Value{
		datatable.IntValue(1), datatable.StringValue("two"), datatable.Null,
	})
	require.NoError(t, err)

	arrowTbl, err := dataio.ToArrow(tbl, memory.NewGoAllocator())
	require.NoError(t, err)
	defer arrowTbl.Release()
	assert.Equal(t, int64(3), arrowTbl.NumRows())

	back, err := dataio.FromArrow(arrowTbl)
	require.NoError(t, err)
	col, err := back.Column("Any")
	require.NoError(t, err)
	assert.Equal(t, datatable.TypeString, col.Type)
	assert.Equal(t, datatable.StringValue("1"), col.Values[0])
	assert.True(t, col.Values[2].IsNull)
}

func TestExportZip(t *testing.T) {
	tables := map[string]*datatable.Table{"Sales": sales(t), "Alpha": sales(t)}
	var buf bytes.Buffer
	require.NoError(t, dataio.ExportZip(tables, &buf))

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 2)
	assert.Equal(t, "Alpha.csv", zr.File[0].Name)
	assert.Equal(t, "Sales.csv", zr.File[1].Name)
	assert.Equal(t, zip.Deflate, zr.File[1].Method)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	got, err := io.ReadAll(rc)
	require.NoError(t, err)

	var want bytes.Buffer
	require.NoError(t, dataio.ExportCSV(sales(t), &want))
	assert.Equal(t, want.String(), string(got))
}

func TestExportDirAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	tables := map[string]*datatable.Table{"Sales": sales(t)}
	for _, ft := range []dataio.FileType{dataio.FileTypeCSV, dataio.FileTypeJSON, dataio.FileTypeParquet} {
		paths, err := dataio.ExportDir(tables, dir, ft)
		require.NoError(t, err)
		require.Equal(t, []string{filepath.Join(dir, "Sales."+ft.String())}, paths)

		back, err := dataio.LoadFile(context.Background(), paths[0])
		require.NoError(t, err, ft.String())
		assert.True(t, tables["Sales"].Equal(back), ft.String())
		assert.Equal(t, ft.String(), back.Metadata()[dataio.MetaFormat])
	}
}

func TestLoadFileRecordsSeparator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.tsv")
	require.NoError(t, os.WriteFile(path, []byte("a\tb\n1\t2\n"), 0o644))

	tbl, err := dataio.LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "tab", tbl.Metadata()[dataio.MetaSeparator])
	assert.Equal(t, []string{"a", "b"}, tbl.ColumnNames())

	_, err = dataio.LoadFile(context.Background(), "book.xlsx")
	require.ErrorIs(t, err, dataio.ErrUnsupportedFile)
}
