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

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"
)

// Settings is the wire form of a specification:
//
//	{"type": "choice", "options": ["a", "b"]}
//	{"type": "range", "min": 0, "max": 5, "float": false}
//	{"type": "formula", "expr": "Qty * 2"}
//
// A range without "float" samples floats.
type Settings struct {
	Type    Kind     `json:"type" yaml:"type" toml:"type"`
	Options []string `json:"options,omitempty" yaml:"options,omitempty" toml:"options,omitempty"`
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty" toml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty" toml:"max,omitempty"`
	Float   *bool    `json:"float,omitempty" yaml:"float,omitempty" toml:"float,omitempty"`
	Expr    string   `json:"expr,omitempty" yaml:"expr,omitempty" toml:"expr,omitempty"`
}

// Record is the flat, named wire form of an entry.
type Record struct {
	Name     string `json:"name" yaml:"name" toml:"name"`
	Settings `yaml:",inline"`
}

// SettingsOf returns the wire form of s.
func SettingsOf(s Spec) Settings {
	switch x := s.(type) {
	case Choice:
		return Settings{Type: KindChoice, Options: append([]string{}, x.Options...)}
	case Range:
		lo, hi, f := x.Min, x.Max, !x.Integral
		return Settings{Type: KindRange, Min: &lo, Max: &hi, Float: &f}
	case Formula:
		return Settings{Type: KindFormula, Expr: x.Expr}
	}
	return Settings{}
}

// Spec converts the wire form. A range defaults to [0, 1].
func (s Settings) Spec() (Spec, error) {
	switch s.Type {
	case KindChoice:
		return Choice{Options: append([]string(nil), s.Options...)}, nil
	case KindRange:
		r := Range{Min: 0, Max: 1}
		if s.Min != nil {
			r.Min = *s.Min
		}
		if s.Max != nil {
			r.Max = *s.Max
		}
		r.Integral = s.Float != nil && !*s.Float
		return r, nil
	case KindFormula:
		return Formula{Expr: s.Expr}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Type)
}

// Records returns the flat wire form of the entries.
func (e Entries) Records() []Record {
	out := make([]Record, len(e))
	for i, entry := range e {
		out[i] = Record{Name: entry.Name, Settings: SettingsOf(entry.Spec)}
	}
	return out
}

// FromRecords converts flat wire records, keeping their order. A repeated
// name keeps its first position and its last specification.
func FromRecords(records []Record) (Entries, error) {
	var out Entries
	for _, r := range records {
		if r.Name == "" {
			return nil, fmt.Errorf("%w: entry without a name", ErrInvalidFormat)
		}
		s, err := r.Spec()
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", r.Name, err)
		}
		out = out.Upsert(r.Name, s)
	}
	return out, nil
}

// MarshalJSON writes the entries as an ordered list of [name, settings]
// pairs.
func (e Entries) MarshalJSON() ([]byte, error) {
	pairs := make([][2]interface{}, len(e))
	for i, entry := range e {
		pairs[i] = [2]interface{}{entry.Name, SettingsOf(entry.Spec)}
	}
	return json.Marshal(pairs)
}

// UnmarshalJSON accepts a list of [name, settings] pairs, a list of
// records, or an object mapping names to settings. Object keys keep their
// order of appearance.
func (e *Entries) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = nil
		return nil
	}
	var records []Record
	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidFormat, err)
		}
		for _, item := range items {
			r, err := decodeJSONItem(bytes.TrimSpace(item))
			if err != nil {
				return err
			}
			records = append(records, r)
		}
	case '{':
		var err error
		if records, err = decodeJSONObject(data); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: expected a list or an object", ErrInvalidFormat)
	}
	out, err := FromRecords(records)
	if err != nil {
		return err
	}
	*e = out
	return nil
}

func decodeJSONItem(item []byte) (Record, error) {
	var r Record
	if len(item) > 0 && item[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err != nil {
			return r, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
		}
		if len(pair) != 2 {
			return r, fmt.Errorf("%w: pair with %d elements", ErrInvalidFormat, len(pair))
		}
		if err := json.Unmarshal(pair[0], &r.Name); err != nil {
			return r, fmt.Errorf("%w: column name: %w", ErrInvalidFormat, err)
		}
		if err := json.Unmarshal(pair[1], &r.Settings); err != nil {
			return r, fmt.Errorf("%w: column %q: %w", ErrInvalidFormat, r.Name, err)
		}
		return r, nil
	}
	if err := json.Unmarshal(item, &r); err != nil {
		return r, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	return r, nil
}

func decodeJSONObject(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
	}
	var records []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidFormat, err)
		}
		name, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: unexpected %v", ErrInvalidFormat, tok)
		}
		r := Record{Name: name}
		if err := dec.Decode(&r.Settings); err != nil {
			return nil, fmt.Errorf("%w: column %q: %w", ErrInvalidFormat, name, err)
		}
		records = append(records, r)
	}
	return records, nil
}

// MarshalYAML writes the entries as a list of records.
func (e Entries) MarshalYAML() (interface{}, error) {
	return e.Records(), nil
}

// UnmarshalYAML accepts the same shapes as UnmarshalJSON.
func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	var records []Record
	switch node.Kind {
	case yaml.SequenceNode:
		for _, item := range node.Content {
			var r Record
			switch {
			case item.Kind == yaml.SequenceNode && len(item.Content) == 2:
				if err := item.Content[0].Decode(&r.Name); err != nil {
					return fmt.Errorf("%w: line %d: %w", ErrInvalidFormat, item.Line, err)
				}
				if err := item.Content[1].Decode(&r.Settings); err != nil {
					return fmt.Errorf("%w: line %d: %w", ErrInvalidFormat, item.Line, err)
				}
			case item.Kind == yaml.MappingNode:
				if err := item.Decode(&r); err != nil {
					return fmt.Errorf("%w: line %d: %w", ErrInvalidFormat, item.Line, err)
				}
			default:
				return fmt.Errorf("%w: line %d: expected a record or a [name, settings] pair", ErrInvalidFormat, item.Line)
			}
			records = append(records, r)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			r := Record{Name: node.Content[i].Value}
			if err := node.Content[i+1].Decode(&r.Settings); err != nil {
				return fmt.Errorf("%w: line %d: %w", ErrInvalidFormat, node.Content[i+1].Line, err)
			}
			records = append(records, r)
		}
	case yaml.ScalarNode:
		if node.Tag != "!!null" {
			return fmt.Errorf("%w: line %d: expected a list or a mapping", ErrInvalidFormat, node.Line)
		}
	default:
		return fmt.Errorf("%w: line %d: expected a list or a mapping", ErrInvalidFormat, node.Line)
	}
	out, err := FromRecords(records)
	if err != nil {
		return err
	}
	*e = out
	return nil
}
