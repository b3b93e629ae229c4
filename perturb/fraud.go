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

import "github.com/magpierre/dataverse/datatable"

// FraudRequest configures InjectFraudOutliers.
type FraudRequest struct {
	Column string
	// Pct is the fraction of candidate rows to alter, within [0, 1].
	Pct        float64
	Multiplier float64
	// Where optionally restricts the candidate rows.
	Where datatable.Filter
	Seed  *int64
}

// InjectFraudOutliers multiplies max(1, floor(Pct*candidates)) distinct
// rows of Column by Multiplier.
func InjectFraudOutliers(t *datatable.Table, req FraudRequest) (*datatable.Table, error) {
	if err := checkFrequency(req.Pct); err != nil {
		return nil, err
	}
	col, ok := numeric(t, req.Column)
	if !ok || t.RowCount() == 0 {
		return t, nil
	}
	pool, err := candidates(t, req.Where)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return t, nil
	}
	rng := newRand(req.Seed)
	updates := make(map[int]float64)
	for _, r := range sample(rng, pool, count(req.Pct, len(pool))) {
		if v, ok := floatAt(col, r); ok {
			updates[r] = v * req.Multiplier
		}
	}
	return commit(t, col, updates, isIntegral(req.Multiplier))
}
