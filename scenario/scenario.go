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

// Package scenario composes perturbations over a set of named tables.
package scenario

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/internal/filter"
	"github.com/magpierre/dataverse/perturb"
)

var (
	// ErrUnknownType is returned for a scenario type the runner does not
	// know.
	ErrUnknownType = errors.New("scenario: unknown type")

	// ErrInvalidScenario is returned when a scenario lacks a required field
	// or holds a value that cannot be parsed.
	ErrInvalidScenario = errors.New("scenario: invalid scenario")
)

// Type names a perturbation.
type Type string

const (
	Shock        Type = "shock"
	Seasonal     Type = "seasonal"
	FraudOutlier Type = "fraud_outlier"
	Correlation  Type = "correlation"
	Outlier      Type = "outlier"
)

// Defaults applied when a scenario leaves a field out.
const (
	DefaultFraudPct         = 0.01
	DefaultFraudMultiplier  = 5.0
	DefaultOutlierFrequency = 0.05
	DefaultOutlierMagnitude = 2.0
)

// Spec is a persisted scenario. Only the fields of its Type are read.
type Spec struct {
	Name          string `json:"name" yaml:"name" toml:"name"`
	Type          Type   `json:"type" yaml:"type" toml:"type"`
	TargetDataset string `json:"target_dataset" yaml:"target_dataset" toml:"target_dataset"`
	TargetColumn  string `json:"target_column,omitempty" yaml:"target_column,omitempty" toml:"target_column,omitempty"`
	Seed          *int64 `json:"seed,omitempty" yaml:"seed,omitempty" toml:"seed,omitempty"`

	// shock
	Start     string   `json:"start,omitempty" yaml:"start,omitempty" toml:"start,omitempty"`
	End       string   `json:"end,omitempty" yaml:"end,omitempty" toml:"end,omitempty"`
	Magnitude *float64 `json:"magnitude,omitempty" yaml:"magnitude,omitempty" toml:"magnitude,omitempty"`
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`

	// seasonal, keyed by month number
	MonthMultipliers map[string]float64 `json:"month_multipliers,omitempty" yaml:"month_multipliers,omitempty" toml:"month_multipliers,omitempty"`

	// fraud_outlier
	Pct        *float64 `json:"pct,omitempty" yaml:"pct,omitempty" toml:"pct,omitempty"`
	Multiplier *float64 `json:"multiplier,omitempty" yaml:"multiplier,omitempty" toml:"multiplier,omitempty"`

	// correlation
	SourceCol   string   `json:"source_col,omitempty" yaml:"source_col,omitempty" toml:"source_col,omitempty"`
	Coef        *float64 `json:"coef,omitempty" yaml:"coef,omitempty" toml:"coef,omitempty"`
	NoiseFactor *float64 `json:"noise_factor,omitempty" yaml:"noise_factor,omitempty" toml:"noise_factor,omitempty"`

	// outlier
	Columns   []string `json:"columns,omitempty" yaml:"columns,omitempty" toml:"columns,omitempty"`
	Frequency *float64 `json:"frequency,omitempty" yaml:"frequency,omitempty" toml:"frequency,omitempty"`
	Method    string   `json:"method,omitempty" yaml:"method,omitempty" toml:"method,omitempty"`

	DateCol string `json:"date_col,omitempty" yaml:"date_col,omitempty" toml:"date_col,omitempty"`
	// Where restricts shock, seasonal and fraud_outlier scenarios to the
	// rows matching a query such as "Region = EU AND Amount > 100".
	Where string `json:"where,omitempty" yaml:"where,omitempty" toml:"where,omitempty"`
}

// Apply runs the scenario against one table.
func (s Spec) Apply(t *datatable.Table) (*datatable.Table, error) {
	where, err := filter.ParseQuery(s.Where, t.ColumnNames())
	if err != nil {
		return nil, fmt.Errorf("%w: where: %w", ErrInvalidScenario, err)
	}
	switch s.Type {
	case Shock:
		start, err := s.date("start", s.Start)
		if err != nil {
			return nil, err
		}
		end, err := s.date("end", s.End)
		if err != nil {
			return nil, err
		}
		if s.Magnitude == nil {
			return nil, fmt.Errorf("%w: shock needs a magnitude", ErrInvalidScenario)
		}
		return perturb.ApplyShock(t, perturb.ShockRequest{
			Column:     s.TargetColumn,
			DateColumn: s.DateCol,
			Start:      start,
			End:        end,
			Magnitude:  *s.Magnitude,
			Method:     perturb.Method(s.Mode),
			Where:      where,
		})

	case Seasonal:
		months := make(map[time.Month]float64, len(s.MonthMultipliers))
		for k, v := range s.MonthMultipliers {
			m, err := strconv.Atoi(strings.TrimSpace(k))
			if err != nil || m < 1 || m > 12 {
				return nil, fmt.Errorf("%w: month %q", ErrInvalidScenario, k)
			}
			months[time.Month(m)] = v
		}
		return perturb.ApplySeasonal(t, perturb.SeasonalRequest{
			Column:      s.TargetColumn,
			DateColumn:  s.DateCol,
			Multipliers: months,
			Where:       where,
		})

	case FraudOutlier:
		return perturb.InjectFraudOutliers(t, perturb.FraudRequest{
			Column:     s.TargetColumn,
			Pct:        or(s.Pct, DefaultFraudPct),
			Multiplier: or(s.Multiplier, DefaultFraudMultiplier),
			Where:      where,
			Seed:       s.Seed,
		})

	case Correlation:
		if s.SourceCol == "" {
			return nil, fmt.Errorf("%w: correlation needs source_col", ErrInvalidScenario)
		}
		return perturb.InjectCorrelation(t, perturb.CorrelationRequest{
			Source:      s.SourceCol,
			Target:      s.TargetColumn,
			Coef:        or(s.Coef, 0),
			NoiseFactor: or(s.NoiseFactor, perturb.DefaultNoiseFactor),
			Seed:        s.Seed,
		})

	case Outlier:
		cols := s.Columns
		if len(cols) == 0 && s.TargetColumn != "" {
			cols = []string{s.TargetColumn}
		}
		return perturb.InjectOutliers(t, perturb.OutlierRequest{
			Columns:   cols,
			Frequency: or(s.Frequency, DefaultOutlierFrequency),
			Magnitude: or(s.Magnitude, DefaultOutlierMagnitude),
			Method:    perturb.Method(s.Method),
			Seed:      s.Seed,
		})
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, s.Type)
}

func (s Spec) date(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: %s needs %s", ErrInvalidScenario, s.Type, field)
	}
	d, ok := datatable.ParseTime(strings.TrimSpace(value))
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s %q is not a date", ErrInvalidScenario, field, value)
	}
	return d, nil
}

func or(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}

// Runner applies scenarios to named tables.
type Runner struct {
	notify func(string)
}

// Option configures a Runner.
type Option func(*Runner)

// WithNotifier sets the callback for skipped scenarios.
func WithNotifier(notify func(string)) Option {
	return func(r *Runner) {
		if notify != nil {
			r.notify = notify
		}
	}
}

// NewRunner creates a runner that logs skipped scenarios by default.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{notify: func(msg string) { log.Printf("scenario: %s", msg) }}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply runs specs in order and returns a new map of tables. A scenario
// that targets a table not in tables, or that fails, is skipped with a
// warning. The input map and its tables are not modified.
func (r *Runner) Apply(tables map[string]*datatable.Table, specs []Spec) map[string]*datatable.Table {
	out := make(map[string]*datatable.Table, len(tables))
	for name, t := range tables {
		out[name] = t
	}
	for _, s := range specs {
		t, ok := out[s.TargetDataset]
		if !ok {
			r.notify(fmt.Sprintf("scenario %q targets %q, which was not generated; skipping", s.Name, s.TargetDataset))
			continue
		}
		next, err := s.Apply(t)
		if err != nil {
			r.notify(fmt.Sprintf("scenario %q skipped: %v", s.Name, err))
			continue
		}
		out[s.TargetDataset] = next
	}
	return out
}
