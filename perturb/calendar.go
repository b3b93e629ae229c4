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

package perturb

import (
	"fmt"
	"time"

	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/internal/filter"
)

// ShockRequest configures ApplyShock.
type ShockRequest struct {
	Column string
	// DateColumn defaults to DefaultDateColumn.
	DateColumn string
	// Start and End bound the window, both inclusive.
	Start, End time.Time
	Magnitude  float64
	Method     Method
	// Where optionally restricts the affected rows further.
	Where datatable.Filter
}

// ApplyShock multiplies, or adds Magnitude to, Column on every row whose
// date falls within [Start, End]. Rows with unparseable dates are left
// alone.
func ApplyShock(t *datatable.Table, req ShockRequest) (*datatable.Table, error) {
	if req.End.Before(req.Start) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidWindow,
			req.Start.Format(datatable.DateLayout), req.End.Format(datatable.DateLayout))
	}
	method, err := req.Method.resolve()
	if err != nil {
		return nil, err
	}
	dateColumn := req.DateColumn
	if dateColumn == "" {
		dateColumn = DefaultDateColumn
	}
	window := &filter.DateRangeFilter{Column: dateColumn, Start: req.Start, End: req.End}
	col, _, rows, ok, err := calendarTarget(t, req.Column, dateColumn, filter.And(window, req.Where))
	if err != nil {
		return nil, err
	}
	if !ok {
		return t, nil
	}
	updates := make(map[int]float64)
	for _, r := range rows {
		if v, ok := floatAt(col, r); ok {
			updates[r] = method.apply(v, req.Magnitude)
		}
	}
	return commit(t, col, updates, isIntegral(req.Magnitude))
}

// SeasonalRequest configures ApplySeasonal.
type SeasonalRequest struct {
	Column string
	// DateColumn defaults to DefaultDateColumn.
	DateColumn string
	// Multipliers maps a month to its multiplier. Unmapped months use 1.
	Multipliers map[time.Month]float64
	Where       datatable.Filter
}

// ApplySeasonal scales Column by the multiplier of each row's month.
func ApplySeasonal(t *datatable.Table, req SeasonalRequest) (*datatable.Table, error) {
	col, dates, rows, ok, err := calendarTarget(t, req.Column, req.DateColumn, req.Where)
	if err != nil {
		return nil, err
	}
	if !ok || len(req.Multipliers) == 0 {
		return t, nil
	}
	keepInt := true
	updates := make(map[int]float64)
	for _, r := range rows {
		d, ok := dates.Values[r].Time()
		if !ok {
			continue
		}
		m, ok := req.Multipliers[d.Month()]
		if !ok {
			continue
		}
		if v, ok := floatAt(col, r); ok {
			updates[r] = v * m
			keepInt = keepInt && isIntegral(m)
		}
	}
	return commit(t, col, updates, keepInt)
}

// calendarTarget resolves the target column, the date column and the
// candidate rows of a date-driven transform. ok is false when the
// transform does not apply.
func calendarTarget(t *datatable.Table, column, dateColumn string, where datatable.Filter) (col, dates datatable.Column, rows []int, ok bool, err error) {
	if t.RowCount() == 0 {
		return col, dates, nil, false, nil
	}
	if dateColumn == "" {
		dateColumn = DefaultDateColumn
	}
	if col, ok = numeric(t, column); !ok {
		return col, dates, nil, false, nil
	}
	if dates, err = t.Column(dateColumn); err != nil {
		return col, dates, nil, false, nil
	}
	if rows, err = candidates(t, where); err != nil {
		return col, dates, nil, false, err
	}
	return col, dates, rows, true, nil
}
