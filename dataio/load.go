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


// Package dataio reads tables from CSV, Parquet and JSON files and writes
// them back out, singly or bundled in a ZIP archive.
package dataio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	json "github.com/goccy/go-json"

	"github.com/magpierre/dataverse/datatable"
)

// FileType represents the type of data file
type FileType int

const (
	FileTypeUnknown FileType = iota
	FileTypeCSV
	FileTypeParquet
	FileTypeJSON
)

// String returns the lower-case name of the file type.
func (ft FileType) String() string {
	switch ft {
	case FileTypeCSV:
		return "csv"
	case FileTypeParquet:
		return "parquet"
	case FileTypeJSON:
		return "json"
	}
	return "unknown"
}

// DetectFileType determines the type of file based on extension
func DetectFileType(filePath string) FileType {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv", ".tsv", ".txt":
		return FileTypeCSV
	case ".parquet", ".pq":
		return FileTypeParquet
	case ".json":
		return FileTypeJSON
	default:
		return FileTypeUnknown
	}
}

// ParseFileType maps a format name such as "csv" to its file type.
func ParseFileType(name string) FileType {
	return DetectFileType("." + strings.TrimPrefix(name, "."))
}

// Metadata keys set by LoadFile.
const (
	MetaSource    = "source"
	MetaFormat    = "format"
	MetaSeparator = "separator"
)

// LoadFile loads a data file using the reader for its extension. The
// returned table carries the source path and format as metadata.
func LoadFile(ctx context.Context, filePath string) (*datatable.Table, error) {
	ft := DetectFileType(filePath)
	meta := datatable.Metadata{MetaSource: filePath, MetaFormat: ft.String()}

	var (
		t   *datatable.Table
		err error
	)
	switch ft {
	case FileTypeCSV:
		var data []byte
		if data, err = os.ReadFile(filePath); err != nil {
			return nil, fmt.Errorf("failed to read CSV file: %w", err)
		}
		sep := DetectSeparator(data)
		meta[MetaSeparator] = separatorName(sep)
		t, err = ReadCSV(bytes.NewReader(data), sep)
	case FileTypeParquet:
		t, err = readParquetFile(ctx, filePath)
	case FileTypeJSON:
		var f *os.File
		if f, err = os.Open(filePath); err != nil {
			return nil, fmt.Errorf("failed to open JSON file: %w", err)
		}
		defer f.Close()
		t, err = ReadJSON(f)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, filepath.Base(filePath))
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(filePath), err)
	}
	return t.WithMetadata(meta), nil
}

// DetectSeparator picks the most frequent of comma, semicolon, tab and
// pipe on the first line. Ties and a line without any of them give comma.
func DetectSeparator(data []byte) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestCount := ',', 0
	for _, sep := range []rune{',', ';', '\t', '|'} {
		if n := bytes.Count(line, []byte(string(sep))); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}

// separatorName returns a human-readable name for the separator
func separatorName(sep rune) string {
	switch sep {
	case ',':
		return "comma"
	case ';':
		return "semicolon"
	case '\t':
		return "tab"
	case '|':
		return "pipe"
	default:
		return string(sep)
	}
}

// ReadCSV reads a delimited file with a header row. Cells are trimmed; an
// empty cell is missing. Each column takes the narrowest of Int, Float,
// Bool, Date and Timestamp that every non-empty cell parses as, and String
// otherwise. Short rows are padded with missing cells.
func ReadCSV(r io.Reader, sep rune) (*datatable.Table, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = sep
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRecords
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	names := uniqueNames(header)

	cells := make([][]string, len(names))
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row: %w", err)
		}
		for j := range names {
			var cell string
			if j < len(row) {
				cell = strings.TrimSpace(row[j])
			}
			cells[j] = append(cells[j], cell)
		}
	}

	cols := make([]datatable.Column, len(names))
	for j, name := range names {
		typ, values := parseColumn(cells[j])
		cols[j] = datatable.Column{Name: name, Type: typ, Values: values}
	}
	return datatable.NewTable(cols...)
}

// uniqueNames suffixes repeated header names with .1, .2 and so on.
func uniqueNames(header []string) []string {
	taken := make(map[string]bool, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		name := h
		for n := 1; taken[name]; n++ {
			name = h + "." + strconv.Itoa(n)
		}
		taken[name] = true
		out[i] = name
	}
	return out
}

type cellParser struct {
	typ   datatable.DataType
	parse func(string) (datatable.Value, bool)
}

var cellParsers = []cellParser{
	{datatable.TypeInt, func(s string) (datatable.Value, bool) {
		i, err := strconv.ParseInt(s, 10, 64)
		return datatable.IntValue(i), err == nil
	}},
	{datatable.TypeFloat, func(s string) (datatable.Value, bool) {
		f, err := strconv.ParseFloat(s, 64)
		return datatable.FloatValue(f), err == nil
	}},
	{datatable.TypeBool, func(s string) (datatable.Value, bool) {
		switch strings.ToLower(s) {
		case "true":
			return datatable.BoolValue(true), true
		case "false":
			return datatable.BoolValue(false), true
		}
		return datatable.Value{}, false
	}},
	{datatable.TypeDate, func(s string) (datatable.Value, bool) {
		t, err := time.Parse(datatable.DateLayout, s)
		return datatable.DateValue(t), err == nil
	}},
	{datatable.TypeTimestamp, func(s string) (datatable.Value, bool) {
		t, ok := datatable.ParseTime(s)
		return datatable.TimestampValue(t), ok
	}},
}

// parseColumn converts the text cells of one column.
func parseColumn(cells []string) (datatable.DataType, []datatable.Value) {
	values := make([]datatable.Value, len(cells))
	filled := false
	for _, c := range cells {
		filled = filled || c != ""
	}
next:
	for _, p := range cellParsers {
		if !filled {
			break
		}
		for i, c := range cells {
			if c == "" {
				values[i] = datatable.NewNullValue(p.typ)
				continue
			}
			v, ok := p.parse(c)
			if !ok {
				continue next
			}
			values[i] = v
		}
		return p.typ, values
	}
	for i, c := range cells {
		if c == "" {
			values[i] = datatable.NewNullValue(datatable.TypeString)
		} else {
			values[i] = datatable.StringValue(c)
		}
	}
	return datatable.TypeString, values
}

// ReadJSON reads an array of objects, or a single object, into a table.
// Columns appear in the order their keys are first seen; a record without
// a key is missing there. Numbers are Int when integral, nested values are
// kept as JSON text, and a column of date strings becomes a Date column.
func ReadJSON(r io.Reader) (*datatable.Table, error) {
	dec := json.NewDecoder(bufio.NewReader(r))
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, ErrNoRecords
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	var (
		names   []string
		index   = make(map[string]int)
		records []map[string]datatable.Value
	)
	readObject := func() error {
		rec := make(map[string]datatable.Value)
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			key, ok := tok.(string)
			if !ok {
				return fmt.Errorf("unexpected %v", tok)
			}
			var raw interface{}
			if err := dec.Decode(&raw); err != nil {
				return fmt.Errorf("key %q: %w", key, err)
			}
			if _, seen := index[key]; !seen {
				index[key] = len(names)
				names = append(names, key)
			}
			rec[key] = jsonValue(raw)
		}
		if _, err := dec.Token(); err != nil { // closing brace
			return err
		}
		records = append(records, rec)
		return nil
	}

	switch tok {
	case json.Delim('{'):
		if err := readObject(); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case json.Delim('['):
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("failed to parse JSON: %w", err)
			}
			if tok != json.Delim('{') {
				return nil, fmt.Errorf("failed to parse JSON: record %d is not an object", len(records))
			}
			if err := readObject(); err != nil {
				return nil, fmt.Errorf("failed to parse JSON: record %d: %w", len(records), err)
			}
		}
	default:
		return nil, fmt.Errorf("failed to parse JSON: expected an array of objects")
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	cols := make([]datatable.Column, len(names))
	for j, name := range names {
		values := make([]datatable.Value, len(records))
		for i, rec := range records {
			v, ok := rec[name]
			if !ok {
				v = datatable.Null
			}
			values[i] = v
		}
		typ := datatable.Normalize(values, datatable.TypeString)
		if typ == datatable.TypeString {
			typ = promoteDates(values)
		}
		cols[j] = datatable.Column{Name: name, Type: typ, Values: values}
	}
	return datatable.NewTable(cols...)
}

func jsonValue(raw interface{}) datatable.Value {
	switch x := raw.(type) {
	case nil:
		return datatable.Null
	case json.Number:
		if i, err := strconv.ParseInt(string(x), 10, 64); err == nil {
			return datatable.IntValue(i)
		}
		f, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return datatable.StringValue(string(x))
		}
		return datatable.FloatValue(f)
	case string:
		return datatable.StringValue(x)
	case bool:
		return datatable.BoolValue(x)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return datatable.StringValue(fmt.Sprint(raw))
	}
	return datatable.StringValue(string(b))
}

// promoteDates rewrites a String column whose cells are all dates.
func promoteDates(values []datatable.Value) datatable.DataType {
	dates := make([]datatable.Value, len(values))
	found := false
	for i, v := range values {
		if v.IsNull {
			dates[i] = datatable.NewNullValue(datatable.TypeDate)
			continue
		}
		s, _ := v.Str()
		t, err := time.Parse(datatable.DateLayout, s)
		if err != nil {
			return datatable.TypeString
		}
		dates[i], found = datatable.DateValue(t), true
	}
	if !found {
		return datatable.TypeString
	}
	copy(values, dates)
	return datatable.TypeDate
}

// readParquetFile loads a Parquet file through Arrow
func readParquetFile(ctx context.Context, filePath string) (*datatable.Table, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer f.Close()
	return ReadParquet(ctx, f)
}

// ReadParquet reads a whole Parquet file into a table.
func ReadParquet(ctx context.Context, r parquet.ReaderAtSeeker) (*datatable.Table, error) {
	pf, err := file.NewParquetReader(r, file.WithReadProps(&parquet.ReaderProperties{}))
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pf.Close()

	mem := memory.NewGoAllocator()
	arrowReader, err := pqarrow.NewFileReader(pf, pqarrow.ArrowReadProperties{}, mem)
	if err != nil {
		return nil, fmt.Errorf("failed to create arrow reader: %w", err)
	}

	table, err := arrowReader.ReadTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read parquet data: %w", err)
	}
	defer table.Release()

	return FromArrow(table)
}
