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


package dataio

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zip"

	"github.com/magpierre/dataverse/datatable"
)

// ExportCSV writes t as comma-separated text with a header row. Missing
// cells are empty.
func ExportCSV(t *datatable.Table, w io.Writer) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	row := make([]string, t.ColumnCount())
	for i := 0; i < t.RowCount(); i++ {
		cells, err := t.Row(i)
		if err != nil {
			return err
		}
		for j, v := range cells {
			row[j] = v.String()
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// ExportParquet writes t as a snappy-compressed Parquet file. w is not
// closed.
func ExportParquet(t *datatable.Table, w io.Writer) error {
	table, err := ToArrow(t, memory.NewGoAllocator())
	if err != nil {
		return err
	}
	defer table.Release()

	props := parquet.NewWriterProperties(parquet.WithCompression(compress.Codecs.Snappy))
	arrowProps := pqarrow.NewArrowWriterProperties(pqarrow.WithStoreSchema())

	// The parquet writer closes a sink that is an io.Closer.
	sink := struct{ io.Writer }{w}
	writer, err := pqarrow.NewFileWriter(table.Schema(), sink, props, arrowProps)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	chunk := table.NumRows()
	if chunk == 0 {
		chunk = 1
	}
	if err := writer.WriteTable(table, chunk); err != nil {
		writer.Close()
		return fmt.Errorf("failed to write table to parquet: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}

// ExportJSON writes t as an array of objects whose keys follow the column
// order. Missing cells are null and dates are written as text.
func ExportJSON(t *datatable.Table, w io.Writer) error {
	bw := bufio.NewWriter(w)
	names := t.ColumnNames()
	keys := make([][]byte, len(names))
	for j, name := range names {
		k, err := json.Marshal(name)
		if err != nil {
			return err
		}
		keys[j] = k
	}

	bw.WriteString("[")
	for i := 0; i < t.RowCount(); i++ {
		if i > 0 {
			bw.WriteString(",")
		}
		bw.WriteString("\n  {")
		cells, err := t.Row(i)
		if err != nil {
			return err
		}
		for j, v := range cells {
			if j > 0 {
				bw.WriteString(", ")
			}
			b, err := json.Marshal(jsonCell(v))
			if err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
			bw.Write(keys[j])
			bw.WriteString(": ")
			bw.Write(b)
		}
		bw.WriteString("}")
	}
	if t.RowCount() > 0 {
		bw.WriteString("\n")
	}
	bw.WriteString("]\n")
	return bw.Flush()
}

// jsonCell returns the typed value for JSON export (preserves types)
func jsonCell(v datatable.Value) interface{} {
	if v.IsNull {
		return nil
	}
	switch r := v.Raw.(type) {
	case float64:
		if math.IsInf(r, 0) {
			return nil
		}
	case time.Time:
		if v.Type == datatable.TypeDate {
			return r.Format(datatable.DateLayout)
		}
		return r.Format(time.RFC3339Nano)
	}
	return v.Raw
}

// Export writes t to filePath in the given format.
func Export(t *datatable.Table, filePath string, ft FileType) (err error) {
	var write func(*datatable.Table, io.Writer) error
	switch ft {
	case FileTypeCSV:
		write = ExportCSV
	case FileTypeParquet:
		write = ExportParquet
	case FileTypeJSON:
		write = ExportJSON
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFile, ft)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create %s file: %w", ft, err)
	}
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()
	return write(t, file)
}

// ExportDir writes each table to dir as <name>.<format> and returns the
// paths in name order.
func ExportDir(tables map[string]*datatable.Table, dir string, ft FileType) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	var paths []string
	for _, name := range sortedNames(tables) {
		path := filepath.Join(dir, name+"."+ft.String())
		if err := Export(tables[name], path, ft); err != nil {
			return paths, fmt.Errorf("%s: %w", name, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// ExportZip writes one deflated CSV file per table, named <name>.csv, in
// name order.
func ExportZip(tables map[string]*datatable.Table, w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, name := range sortedNames(tables) {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name + ".csv",
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if err := ExportCSV(tables[name], fw); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return zw.Close()
}

func sortedNames(tables map[string]*datatable.Table) []string {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
