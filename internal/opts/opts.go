// Package opts is the process-wide option registry. Options are declared by
// the packages that consume them and may be overridden from a YAML file or
// individual key=value settings.
package opts

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	mu       sync.RWMutex
	registry = map[string]*option{}
)

type option struct {
	name string
	kind string // "bool" or "string"
	b    bool
	s    string
}

// BoolOption is a handle to a registered boolean option.
type BoolOption struct{ name string }

// StringOption is a handle to a registered string option.
type StringOption struct{ name string }

// Bool registers a boolean option with a default value. Registering the same
// name twice keeps the first default.
func Bool(name string, def bool) BoolOption {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; !ok {
		registry[name] = &option{name: name, kind: "bool", b: def}
	}
	return BoolOption{name: name}
}

// String registers a string option with a default value.
func String(name string, def string) StringOption {
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[name]; !ok {
		registry[name] = &option{name: name, kind: "string", s: def}
	}
	return StringOption{name: name}
}

func (o BoolOption) Value() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry[o.name].b
}

func (o BoolOption) Set(v bool) {
	mu.Lock()
	defer mu.Unlock()
	registry[o.name].b = v
}

func (o StringOption) Value() string {
	mu.RLock()
	defer mu.RUnlock()
	return registry[o.name].s
}

func (o StringOption) Set(v string) {
	mu.Lock()
	defer mu.Unlock()
	registry[o.name].s = v
}

// Set assigns a registered option from its string form.
func Set(name, value string) error {
	mu.Lock()
	defer mu.Unlock()
	opt, ok := registry[name]
	if !ok {
		return fmt.Errorf("opts: unknown option %q", name)
	}
	switch opt.kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("opts: option %q wants a boolean, got %q", name, value)
		}
		opt.b = b
	case "string":
		opt.s = value
	}
	return nil
}

// LoadFile reads a YAML mapping of option names to values and applies it.
// Unknown keys are an error so typos do not pass silently.
func LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("opts: %s: %w", path, err)
	}
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := Set(k, fmt.Sprintf("%v", raw[k])); err != nil {
			return err
		}
	}
	return nil
}

// Names lists all registered option names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
