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

package columns

import "errors"

var (
	// ErrInvalidSpec is returned when a column specification is malformed.
	ErrInvalidSpec = errors.New("columns: invalid column specification")

	// ErrUnknownKind is returned when a column specification names a type
	// other than choice, range or formula.
	ErrUnknownKind = errors.New("columns: unknown column type")

	// ErrInvalidFormat is returned when persisted entries cannot be decoded.
	ErrInvalidFormat = errors.New("columns: invalid entries format")
)
