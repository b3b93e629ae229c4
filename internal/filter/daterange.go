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

package filter

import (
	"fmt"
	"time"

	"github.com/magpierre/dataverse/datatable"
)

// DateRangeFilter selects rows whose date column falls inside the
// inclusive window [Start, End]. Rows whose date is missing or cannot be
// parsed are not selected.
type DateRangeFilter struct {
	Column string
	Start  time.Time
	End    time.Time
}

// Evaluate implements the Filter interface.
func (f *DateRangeFilter) Evaluate(row []datatable.Value, columnNames []string) (bool, error) {
	v, ok := lookup(row, columnNames, f.Column)
	if !ok {
		return false, fmt.Errorf("%w: %q", datatable.ErrColumnNotFound, f.Column)
	}
	t, ok := v.Time()
	if !ok {
		return false, nil
	}
	return !t.Before(f.Start) && !t.After(f.End), nil
}

// Description implements the Filter interface.
func (f *DateRangeFilter) Description() string {
	return fmt.Sprintf("%s in [%s, %s]", f.Column,
		f.Start.Format(datatable.DateLayout), f.End.Format(datatable.DateLayout))
}
