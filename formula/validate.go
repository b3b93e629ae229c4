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

package formula

import "sort"

// Symbols is the set of names a formula may reference: the columns of the
// target table plus the module aliases of the configuration. It is built
// per evaluation and never modified afterwards.
type Symbols struct {
	columns map[string]bool
	aliases map[string]bool
}

// NewSymbols builds the symbol set for the given columns and configuration.
func NewSymbols(columns []string, cfg Config) Symbols {
	s := Symbols{
		columns: make(map[string]bool, len(columns)),
		aliases: make(map[string]bool, len(cfg.Modules)),
	}
	for _, c := range columns {
		s.columns[c] = true
	}
	for alias := range cfg.Modules {
		s.aliases[alias] = true
	}
	return s
}

// IsAlias reports whether name is a module alias.
func (s Symbols) IsAlias(name string) bool { return s.aliases[name] }

// Allows reports whether name may appear as a bare identifier.
func (s Symbols) Allows(name string) bool { return s.aliases[name] || s.columns[name] }

// Names lists every allowed name in sorted order.
func (s Symbols) Names() []string {
	out := make([]string, 0, len(s.columns)+len(s.aliases))
	for n := range s.columns {
		if !s.aliases[n] {
			out = append(out, n)
		}
	}
	for n := range s.aliases {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Check walks the tree and reports the first reference, in source order,
// that the symbol set does not allow.
func Check(n Node, sym Symbols) error {
	var err error
	Inspect(n, func(n Node) bool {
		if err != nil {
			return false
		}
		switch x := n.(type) {
		case *Ident:
			if !sym.Allows(x.Name) {
				err = reject(ErrUnknownIdentifier, x.Offset, "name %q is not a column or module", x.Name)
			}
		case *Attr:
			if !sym.IsAlias(x.Root) {
				err = reject(ErrDisallowedAttributeRoot, x.Offset, "attribute access on %q", x.Root)
			}
		}
		return err == nil
	})
	return err
}

// Validate parses expr and checks it against the allowed column names and
// the default module aliases. It has no side effects.
func Validate(expr string, allowed []string) error {
	_, err := parseChecked(expr, NewSymbols(allowed, DefaultConfig()))
	return err
}

func parseChecked(expr string, sym Symbols) (Node, error) {
	n, err := Parse(expr)
	if err != nil {
		return nil, err
	}
	if err := Check(n, sym); err != nil {
		return nil, err
	}
	return n, nil
}
