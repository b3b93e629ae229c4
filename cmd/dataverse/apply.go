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
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/magpierre/dataverse/columns"
	"github.com/magpierre/dataverse/dataio"
	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/perturb"
	"github.com/magpierre/dataverse/profile"
	"github.com/magpierre/dataverse/scenario"
)

// inputFlags collects repeated -in Name=path flags.
type inputFlags map[string]string

func (f inputFlags) String() string {
	parts := make([]string, 0, len(f))
	for name, path := range f {
		parts = append(parts, name+"="+path)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func (f inputFlags) Set(s string) error {
	name, path, ok := strings.Cut(s, "=")
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if !ok || name == "" || path == "" {
		return fmt.Errorf("want Name=path, got %q", s)
	}
	if _, dup := f[name]; dup {
		return fmt.Errorf("dataset %q given twice", name)
	}
	f[name] = path
	return nil
}

func runApply(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("apply", flag.ContinueOnError)
	fs.SetOutput(stdout)
	inputs := inputFlags{}
	fs.Var(inputs, "in", "input data set as Name=path (repeatable)")
	profilePath := fs.String("profile", "", "profile with custom columns and scenarios (.json, .yaml, .toml)")
	out := fs.String("out", "dataverse.zip", "output ZIP file, or directory for other formats")
	format := fs.String("format", "zip", "output format: zip, csv, parquet or json")
	seed := fs.Int64("seed", profile.DefaultSeed, "random seed, overriding the profile")
	outliers := fs.Bool("outliers", false, "inject outliers into every numeric column using the profile settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("apply: at least one -in is required")
	}
	ft := dataio.ParseFileType(*format)
	if *format != "zip" && ft == dataio.FileTypeUnknown {
		return fmt.Errorf("apply: unknown format %q", *format)
	}

	p := profile.Default()
	if *profilePath != "" {
		var err error
		if p, err = profile.Load(*profilePath); err != nil {
			return err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			p.Seed = *seed
		}
	})

	tables, err := loadInputs(ctx, inputs)
	if err != nil {
		return err
	}
	if tables, err = applyColumns(ctx, p, tables); err != nil {
		return err
	}
	if *outliers {
		if tables, err = injectOutliers(p, tables); err != nil {
			return err
		}
	}
	runner := scenario.NewRunner(scenario.WithNotifier(func(msg string) { log.Print(msg) }))
	tables = runner.Apply(tables, p.Scenarios)

	if *format == "zip" {
		if err := writeZip(tables, *out); err != nil {
			return err
		}
	} else if _, err := dataio.ExportDir(tables, *out, ft); err != nil {
		return err
	}

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := tables[name]
		fmt.Fprintf(stdout, "%s: %d rows, %d columns\n", name, t.RowCount(), t.ColumnCount())
	}
	fmt.Fprintf(stdout, "wrote %s\n", *out)
	return nil
}

// loadInputs reads every input file concurrently.
func loadInputs(ctx context.Context, inputs inputFlags) (map[string]*datatable.Table, error) {
	var mu sync.Mutex
	tables := make(map[string]*datatable.Table, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for name, path := range inputs {
		g.Go(func() error {
			t, err := dataio.LoadFile(ctx, path)
			if err != nil {
				return fmt.Errorf("load %s: %w", name, err)
			}
			mu.Lock()
			tables[name] = t
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// applyColumns adds each data set's custom columns, one data set per
// goroutine. Columns for a data set that was not loaded are skipped.
func applyColumns(ctx context.Context, p profile.Profile, tables map[string]*datatable.Table) (map[string]*datatable.Table, error) {
	var mu sync.Mutex
	out := make(map[string]*datatable.Table, len(tables))
	for name, t := range tables {
		out[name] = t
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, name := range p.Datasets() {
		entries := p.CustomColumns[name]
		t, ok := tables[name]
		if !ok {
			log.Printf("custom columns for %q skipped: no such input", name)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			notify := func(msg string) { log.Printf("%s: %s", name, msg) }
			next, reports := columns.NewApplier(p.Seed, columns.WithNotifier(notify)).Apply(t, entries)
			for _, r := range reports {
				if r.FailedRows > 0 && r.Err == nil {
					notify(fmt.Sprintf("column %q: %d rows evaluated to missing", r.Column, r.FailedRows))
				}
			}
			mu.Lock()
			out[name] = next
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func injectOutliers(p profile.Profile, tables map[string]*datatable.Table) (map[string]*datatable.Table, error) {
	out := make(map[string]*datatable.Table, len(tables))
	for name, t := range tables {
		var numeric []string
		for _, c := range t.Columns() {
			if c.Type.IsNumeric() {
				numeric = append(numeric, c.Name)
			}
		}
		seed := p.Seed
		next, err := perturb.InjectOutliers(t, perturb.OutlierRequest{
			Columns:   numeric,
			Frequency: p.OutlierFrequency,
			Magnitude: p.OutlierMagnitude,
			Seed:      &seed,
		})
		if err != nil {
			return nil, fmt.Errorf("outliers for %s: %w", name, err)
		}
		out[name] = next
	}
	return out, nil
}

func writeZip(tables map[string]*datatable.Table, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return dataio.ExportZip(tables, f)
}
