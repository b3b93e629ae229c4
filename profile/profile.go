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


// Package profile persists custom column definitions and scenarios.
package profile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/magpierre/dataverse/columns"
	"github.com/magpierre/dataverse/scenario"
)

var (
	// ErrUnsupportedFormat is returned for a file extension with no codec.
	ErrUnsupportedFormat = errors.New("profile: unsupported format")

	// ErrInvalidName is returned when a profile name has no usable
	// characters.
	ErrInvalidName = errors.New("profile: invalid name")
)

// Defaults of a new profile.
const (
	DefaultSeed             int64 = 42
	DefaultOutlierFrequency       = scenario.DefaultOutlierFrequency
	DefaultOutlierMagnitude       = scenario.DefaultOutlierMagnitude
)

// Profile is a saved working set: custom columns per dataset and the
// scenarios applied after them.
type Profile struct {
	Name             string                     `json:"name,omitempty" yaml:"name,omitempty"`
	Seed             int64                      `json:"seed" yaml:"seed"`
	OutlierFrequency float64                    `json:"outlier_frequency" yaml:"outlier_frequency"`
	OutlierMagnitude float64                    `json:"outlier_magnitude" yaml:"outlier_magnitude"`
	CustomColumns    map[string]columns.Entries `json:"custom_config_ordered,omitempty" yaml:"custom_config_ordered,omitempty"`
	Scenarios        []scenario.Spec            `json:"scenarios,omitempty" yaml:"scenarios,omitempty"`
}

// Default returns an empty profile with default settings.
func Default() Profile {
	return Profile{
		Seed:             DefaultSeed,
		OutlierFrequency: DefaultOutlierFrequency,
		OutlierMagnitude: DefaultOutlierMagnitude,
	}
}

// Datasets returns the names of the datasets with custom columns, sorted.
func (p Profile) Datasets() []string {
	names := make([]string, 0, len(p.CustomColumns))
	for name := range p.CustomColumns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge adds the columns and scenarios of a template. A column already
// defined for a dataset keeps its position and takes the template's
// specification; scenarios are appended.
func (p Profile) Merge(tmpl Profile) Profile {
	out := p
	out.CustomColumns = make(map[string]columns.Entries, len(p.CustomColumns)+len(tmpl.CustomColumns))
	for name, entries := range p.CustomColumns {
		out.CustomColumns[name] = entries
	}
	for name, entries := range tmpl.CustomColumns {
		merged := out.CustomColumns[name]
		for _, e := range entries {
			merged = merged.Upsert(e.Name, e.Spec)
		}
		out.CustomColumns[name] = merged
	}
	out.Scenarios = append(append([]scenario.Spec(nil), p.Scenarios...), tmpl.Scenarios...)
	return out
}

// tomlProfile is the TOML form. TOML has no ordered mapping, so entries
// are stored as arrays of tables.
type tomlProfile struct {
	Name             string                      `toml:"name,omitempty"`
	Seed             int64                       `toml:"seed"`
	OutlierFrequency float64                     `toml:"outlier_frequency"`
	OutlierMagnitude float64                     `toml:"outlier_magnitude"`
	CustomColumns    map[string][]columns.Record `toml:"custom_columns,omitempty"`
	Scenarios        []scenario.Spec             `toml:"scenarios,omitempty"`
}

func (p Profile) toTOML() tomlProfile {
	out := tomlProfile{
		Name:             p.Name,
		Seed:             p.Seed,
		OutlierFrequency: p.OutlierFrequency,
		OutlierMagnitude: p.OutlierMagnitude,
		Scenarios:        p.Scenarios,
	}
	if len(p.CustomColumns) > 0 {
		out.CustomColumns = make(map[string][]columns.Record, len(p.CustomColumns))
		for name, entries := range p.CustomColumns {
			out.CustomColumns[name] = entries.Records()
		}
	}
	return out
}

func (t tomlProfile) profile() (Profile, error) {
	p := Profile{
		Name:             t.Name,
		Seed:             t.Seed,
		OutlierFrequency: t.OutlierFrequency,
		OutlierMagnitude: t.OutlierMagnitude,
		Scenarios:        t.Scenarios,
	}
	if len(t.CustomColumns) > 0 {
		p.CustomColumns = make(map[string]columns.Entries, len(t.CustomColumns))
		for name, records := range t.CustomColumns {
			entries, err := columns.FromRecords(records)
			if err != nil {
				return Profile{}, fmt.Errorf("dataset %q: %w", name, err)
			}
			p.CustomColumns[name] = entries
		}
	}
	return p, nil
}

// Format is a profile file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf returns the format of path from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
}

// Marshal encodes p in the given format.
func Marshal(p Profile, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return json.MarshalIndent(p, "", "  ")
	case FormatYAML:
		return yaml.Marshal(p)
	case FormatTOML:
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(p.toTOML()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Unmarshal decodes a profile. Settings the data leaves out keep their
// defaults.
func Unmarshal(data []byte, format Format) (Profile, error) {
	p := Default()
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &p); err != nil {
			return Profile{}, err
		}
		return p, nil
	case FormatYAML:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return Profile{}, err
		}
		return p, nil
	case FormatTOML:
		t := p.toTOML()
		if _, err := toml.Decode(string(data), &t); err != nil {
			return Profile{}, err
		}
		return t.profile()
	}
	return Profile{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Load reads a profile file, choosing the codec by extension. A profile
// without a name is named after its file.
func Load(path string) (Profile, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Profile{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}
	p, err := Unmarshal(data, format)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile %s: %w", filepath.Base(path), err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// Write stores p at path, choosing the codec by extension.
func Write(path string, p Profile) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	data, err := Marshal(p, format)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return nil
}

// Save stores p in dir as <SafeName(p.Name)>.<format> and returns the
// path.
func Save(dir string, p Profile, format Format) (string, error) {
	name := SafeName(p.Name)
	if name == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, p.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create profile directory: %w", err)
	}
	path := filepath.Join(dir, name+"."+string(format))
	return path, Write(path, p)
}

// SafeName keeps letters, digits, spaces, underscores and hyphens of name
// and drops trailing spaces.
func SafeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	return strings.TrimRight(b.String(), " ")
}

// List returns the profile files in dir, sorted. A missing directory has
// no profiles.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, err := FormatOf(e.Name()); err == nil {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}
