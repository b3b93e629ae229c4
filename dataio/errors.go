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

import "errors"

var (
	// ErrUnsupportedFile is returned for a file type that cannot be loaded
	// or written.
	ErrUnsupportedFile = errors.New("unsupported file type")

	// ErrNoRecords is returned for a data file without a header or records.
	ErrNoRecords = errors.New("file has no records")

	// ErrUnsupportedType is returned when a column type has no Arrow
	// counterpart.
	ErrUnsupportedType = errors.New("unsupported column type")
)
