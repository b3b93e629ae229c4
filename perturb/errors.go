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

import "errors"

var (
	// ErrInvalidFrequency is returned when a frequency or percentage lies
	// outside [0, 1].
	ErrInvalidFrequency = errors.New("perturb: frequency must be within [0, 1]")

	// ErrInvalidWindow is returned when a shock window ends before it starts.
	ErrInvalidWindow = errors.New("perturb: window end is before its start")

	// ErrInvalidMethod is returned for a method other than multiplier or
	// additive.
	ErrInvalidMethod = errors.New("perturb: unknown method")
)
