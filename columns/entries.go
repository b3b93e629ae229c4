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

// Entry is a named column specification.
type Entry struct {
	Name string
	Spec Spec
}

// Entries is an ordered list of custom columns. Order is significant: it
// is the order in which columns are applied and persisted. The editing
// helpers never modify the receiver.
type Entries []Entry

// Direction moves an entry within Entries.
type Direction int

const (
	Up Direction = iota
	Down
)

// Names returns the column names in order.
func (e Entries) Names() []string {
	out := make([]string, len(e))
	for i, entry := range e {
		out[i] = entry.Name
	}
	return out
}

// Index returns the position of name, or -1.
func (e Entries) Index(name string) int {
	for i, entry := range e {
		if entry.Name == name {
			return i
		}
	}
	return -1
}

// Get returns the specification stored under name.
func (e Entries) Get(name string) (Spec, bool) {
	if i := e.Index(name); i >= 0 {
		return e[i].Spec, true
	}
	return nil, false
}

// Upsert replaces the specification of name in place, or appends it.
func (e Entries) Upsert(name string, s Spec) Entries {
	out := append(Entries(nil), e...)
	if i := out.Index(name); i >= 0 {
		out[i].Spec = s
		return out
	}
	return append(out, Entry{Name: name, Spec: s})
}

// Delete removes name.
func (e Entries) Delete(name string) Entries {
	out := make(Entries, 0, len(e))
	for _, entry := range e {
		if entry.Name != name {
			out = append(out, entry)
		}
	}
	return out
}

// Move swaps name with its neighbour in the given direction. Moving past
// either end, or an unknown name, leaves the order unchanged.
func (e Entries) Move(name string, d Direction) Entries {
	out := append(Entries(nil), e...)
	i := out.Index(name)
	switch {
	case i < 0:
	case d == Up && i > 0:
		out[i-1], out[i] = out[i], out[i-1]
	case d == Down && i < len(out)-1:
		out[i+1], out[i] = out[i], out[i+1]
	}
	return out
}
