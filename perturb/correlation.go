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
	"math"

	"github.com/magpierre/dataverse/datatable"
)

// DefaultNoiseFactor is the noise factor scenarios use when none is given.
const DefaultNoiseFactor = 0.1

// CorrelationRequest configures InjectCorrelation.
type CorrelationRequest struct {
	Source, Target string
	Coef           float64
	// NoiseFactor scales the Gaussian noise relative to std(Target).
	NoiseFactor float64
	Seed        *int64
}

// InjectCorrelation recomputes Target as
//
//	target + Coef*z(source)*std(target) + N(0, std(target)*NoiseFactor)
//
// where z standardises Source and std is the sample standard deviation.
// It is a no-op when either column is missing or non-numeric, or when
// either standard deviation is zero or undefined.
func InjectCorrelation(t *datatable.Table, req CorrelationRequest) (*datatable.Table, error) {
	src, ok := numeric(t, req.Source)
	if !ok {
		return t, nil
	}
	dst, ok := numeric(t, req.Target)
	if !ok {
		return t, nil
	}
	srcMean, srcStd := stats(src)
	_, dstStd := stats(dst)
	if !usable(srcStd) || !usable(dstStd) {
		return t, nil
	}

	rng := newRand(req.Seed)
	sd := math.Abs(dstStd * req.NoiseFactor)
	updates := make(map[int]float64, t.RowCount())
	for i := 0; i < t.RowCount(); i++ {
		noise := sd * rng.NormFloat64()
		s, okS := floatAt(src, i)
		v, okT := floatAt(dst, i)
		if !okS || !okT {
			continue
		}
		z := (s - srcMean) / srcStd
		updates[i] = v + req.Coef*z*dstStd + noise
	}
	return commit(t, dst, updates, false)
}

func usable(std float64) bool {
	return !math.IsNaN(std) && !math.IsInf(std, 0) && std != 0
}
