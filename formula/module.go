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

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/magpierre/dataverse/datatable"
)

// Module is a named set of functions, constants and submodules reachable
// from a formula through its alias. Modules are immutable once built.
type Module struct {
	Name string

	funcs  map[string]*Function
	consts map[string]datatable.Value
	subs   map[string]*Module
}

// Function is a module member that can be called from a formula.
type Function struct {
	Name string
	// MinArgs and MaxArgs bound the argument count. MaxArgs < 0 means
	// unbounded.
	MinArgs, MaxArgs int

	call func(c *callContext, args []value) (value, error)
}

// callContext carries per-run state into module functions.
type callContext struct {
	rng *rand.Rand
}

func newModule(name string) *Module {
	return &Module{
		Name:   name,
		funcs:  make(map[string]*Function),
		consts: make(map[string]datatable.Value),
		subs:   make(map[string]*Module),
	}
}

func (m *Module) fn(name string, minArgs, maxArgs int, call func(*callContext, []value) (value, error)) {
	m.funcs[name] = &Function{Name: m.Name + "." + name, MinArgs: minArgs, MaxArgs: maxArgs, call: call}
}

func (m *Module) constant(name string, v datatable.Value) { m.consts[name] = v }

func (m *Module) sub(s *Module) { m.subs[s.Name[len(m.Name)+1:]] = s }

// Members lists the member names of the module in sorted order.
func (m *Module) Members() []string {
	out := make([]string, 0, len(m.funcs)+len(m.consts)+len(m.subs))
	for name := range m.funcs {
		out = append(out, name)
	}
	for name := range m.consts {
		out = append(out, name)
	}
	for name := range m.subs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves a dotted path below the module, such as
// ["random", "uniform"] below np.
func (m *Module) Lookup(path ...string) (interface{}, bool) {
	v, err := m.member(path)
	if err != nil {
		return nil, false
	}
	switch x := v.(type) {
	case moduleVal:
		return x.m, true
	case funcVal:
		return x.f, true
	case scalarVal:
		return x.v, true
	}
	return nil, false
}

func (m *Module) member(path []string) (value, error) {
	cur := m
	for i, name := range path {
		last := i == len(path)-1
		if s, ok := cur.subs[name]; ok {
			if last {
				return moduleVal{m: s}, nil
			}
			cur = s
			continue
		}
		if !last {
			break
		}
		if f, ok := cur.funcs[name]; ok {
			return funcVal{f: f}, nil
		}
		if c, ok := cur.consts[name]; ok {
			return scalar(c), nil
		}
	}
	return nil, fmt.Errorf("%w: %s has no member %s", errMember, m.Name, strings.Join(path, "."))
}

func (f *Function) invoke(c *callContext, args []value) (value, error) {
	if len(args) < f.MinArgs || (f.MaxArgs >= 0 && len(args) > f.MaxArgs) {
		return nil, fmt.Errorf("%w: %s takes %s, got %d", errArity, f.Name, arity(f.MinArgs, f.MaxArgs), len(args))
	}
	out, err := f.call(c, args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name, err)
	}
	return out, nil
}

func arity(minArgs, maxArgs int) string {
	switch {
	case maxArgs < 0:
		return fmt.Sprintf("at least %d argument(s)", minArgs)
	case minArgs == maxArgs:
		return fmt.Sprintf("%d argument(s)", minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", minArgs, maxArgs)
}

// Config is the immutable evaluation configuration shared by the
// validator and both evaluators.
type Config struct {
	// Modules maps each alias usable in a formula to its module.
	Modules map[string]*Module
	// Seed seeds the generator behind np.random and random. Every
	// evaluation run starts from the same state.
	Seed int64
}

// DefaultSeed is the seed of DefaultConfig.
const DefaultSeed = 42

var defaultModules = sync.OnceValue(func() map[string]*Module {
	return map[string]*Module{
		"np":     numpyModule(),
		"math":   mathModule(),
		"random": randomModule(),
		"pd":     pandasModule(),
	}
})

// DefaultConfig returns the configuration exposing exactly the np, math,
// random and pd aliases.
func DefaultConfig() Config {
	return Config{Modules: defaultModules(), Seed: DefaultSeed}
}

// WithSeed returns a copy of c using seed.
func (c Config) WithSeed(seed int64) Config {
	c.Seed = seed
	return c
}

// Aliases lists the module aliases in sorted order.
func (c Config) Aliases() []string {
	out := make([]string, 0, len(c.Modules))
	for alias := range c.Modules {
		out = append(out, alias)
	}
	sort.Strings(out)
	return out
}

func (c Config) newRand() *rand.Rand {
	s := uint64(c.Seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Function adapters.

func unaryFunc(f func(datatable.Value) (datatable.Value, error)) func(*callContext, []value) (value, error) {
	return func(_ *callContext, args []value) (value, error) {
		return elementwise(args[:1], func(c []datatable.Value) (datatable.Value, error) { return f(c[0]) })
	}
}

// floatFunc lifts a float function elementwise. Missing stays missing and
// NaN results become missing.
func floatFunc(f func(float64) float64) func(*callContext, []value) (value, error) {
	return unaryFunc(func(v datatable.Value) (datatable.Value, error) {
		x, err := number(v)
		if err != nil || v.IsNull {
			return missing.v, err
		}
		return datatable.FloatValue(f(x)), nil
	})
}

// scalarArgs resolves every argument to a cell, rejecting columns.
func scalarArgs(args []value) ([]datatable.Value, error) {
	out := make([]datatable.Value, len(args))
	for i, a := range args {
		v, err := scalarOf(a)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// number returns the float value of a numeric cell. Missing cells return
// 0 and no error; callers check IsNull first when it matters.
func number(v datatable.Value) (float64, error) {
	if v.IsNull {
		return 0, nil
	}
	f, ok := v.Float()
	if !ok || v.Type == datatable.TypeString {
		return 0, fmt.Errorf("%w: %s is not a number", errType, v.Type)
	}
	return f, nil
}

// realArgs resolves scalar-only numeric arguments. Missing is an error.
func realArgs(args []value) ([]float64, error) {
	cells, err := scalarArgs(args)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, c := range cells {
		if c.IsNull {
			return nil, fmt.Errorf("%w: must be a real number, not missing", errType)
		}
		if out[i], err = number(c); err != nil {
			return nil, err
		}
	}
	return out, nil
}
