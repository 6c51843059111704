// Package eval implements the concrete value domain of the IR and an
// interpreter over it. The bounded solver and the validating simplifier use
// it to evaluate expressions under candidate models.
package eval

import (
	"fmt"
	"sort"
	"strings"
)

// Value is a runtime value. Implementations are immutable.
type Value interface {
	Kind() string
	// Inspect renders a canonical representation; Less falls back to it to
	// order non-integer values of the same kind when bags are normalized.
	Inspect() string
}

type Int struct{ Val int64 }

type Bool struct{ Val bool }

type Str struct{ Val string }

type Null struct{}

// Enum is a symbolic enum case.
type Enum struct{ Case string }

// Native is an opaque foreign value identified by its integer seed.
type Native struct{ Seed int64 }

// Handle is an address paired with the value stored there.
type Handle struct {
	Addr int64
	Val  Value
}

// Bag is a multiset kept sorted in Less order.
type Bag struct{ Elems []Value }

type Tuple struct{ Elems []Value }

type FieldValue struct {
	Name string
	Val  Value
}

// Record has ordered named fields.
type Record struct{ Fields []FieldValue }

// Map is a total function with explicit entries and a default.
type Map struct {
	Keys    []Value
	Vals    []Value
	Default Value
}

func (v *Int) Kind() string    { return "Int" }
func (v *Bool) Kind() string   { return "Bool" }
func (v *Str) Kind() string    { return "String" }
func (v *Null) Kind() string   { return "Null" }
func (v *Enum) Kind() string   { return "Enum" }
func (v *Native) Kind() string { return "Native" }
func (v *Handle) Kind() string { return "Handle" }
func (v *Bag) Kind() string    { return "Bag" }
func (v *Tuple) Kind() string  { return "Tuple" }
func (v *Record) Kind() string { return "Record" }
func (v *Map) Kind() string    { return "Map" }

func (v *Int) Inspect() string    { return fmt.Sprintf("%d", v.Val) }
func (v *Bool) Inspect() string   { return fmt.Sprintf("%t", v.Val) }
func (v *Str) Inspect() string    { return fmt.Sprintf("%q", v.Val) }
func (v *Null) Inspect() string   { return "null" }
func (v *Enum) Inspect() string   { return v.Case }
func (v *Native) Inspect() string { return fmt.Sprintf("native(%d)", v.Seed) }

func (v *Handle) Inspect() string {
	return fmt.Sprintf("&%d=%s", v.Addr, v.Val.Inspect())
}

func (v *Bag) Inspect() string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.Inspect()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func (v *Tuple) Inspect() string {
	parts := make([]string, len(v.Elems))
	for i, e := range v.Elems {
		parts[i] = e.Inspect()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (v *Record) Inspect() string {
	// Canonical form sorts by field name so equal records print equally.
	parts := make([]string, len(v.Fields))
	for i, f := range v.Fields {
		parts[i] = f.Name + ": " + f.Val.Inspect()
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ", ") + "}"
}

func (v *Map) Inspect() string {
	parts := make([]string, len(v.Keys))
	for i := range v.Keys {
		parts[i] = v.Keys[i].Inspect() + " => " + v.Vals[i].Inspect()
	}
	sort.Strings(parts)
	def := "null"
	if v.Default != nil {
		def = v.Default.Inspect()
	}
	return "map{" + strings.Join(parts, ", ") + " else " + def + "}"
}

// Less is the total order used for bag normalization: by kind, then
// integers numerically and all other values by canonical representation.
func Less(a, b Value) bool {
	if a.Kind() != b.Kind() {
		return a.Kind() < b.Kind()
	}
	ai, aok := a.(*Int)
	bi, bok := b.(*Int)
	if aok && bok {
		return ai.Val < bi.Val
	}
	return a.Inspect() < b.Inspect()
}

// NewBag builds a bag in normal form.
func NewBag(elems []Value) *Bag {
	sorted := make([]Value, len(elems))
	copy(sorted, elems)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })
	return &Bag{Elems: sorted}
}

// Equal is handle-address equality: two handles are equal when their
// addresses agree, regardless of stored values. Everything else compares
// structurally with Equal on children.
func Equal(a, b Value) bool {
	return eq(a, b, false)
}

// DeepEqual also compares the values stored behind handles.
func DeepEqual(a, b Value) bool {
	return eq(a, b, true)
}

func eq(a, b Value, deep bool) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind() != b.Kind() {
		return false
	}
	switch a := a.(type) {
	case *Int:
		return a.Val == b.(*Int).Val
	case *Bool:
		return a.Val == b.(*Bool).Val
	case *Str:
		return a.Val == b.(*Str).Val
	case *Null:
		return true
	case *Enum:
		return a.Case == b.(*Enum).Case
	case *Native:
		return a.Seed == b.(*Native).Seed
	case *Handle:
		bh := b.(*Handle)
		if a.Addr != bh.Addr {
			return false
		}
		if deep {
			return eq(a.Val, bh.Val, deep)
		}
		return true
	case *Bag:
		bb := b.(*Bag)
		if len(a.Elems) != len(bb.Elems) {
			return false
		}
		used := make([]bool, len(bb.Elems))
		for _, x := range a.Elems {
			found := false
			for j, y := range bb.Elems {
				if !used[j] && eq(x, y, deep) {
					used[j] = true
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case *Tuple:
		bt := b.(*Tuple)
		if len(a.Elems) != len(bt.Elems) {
			return false
		}
		for i := range a.Elems {
			if !eq(a.Elems[i], bt.Elems[i], deep) {
				return false
			}
		}
		return true
	case *Record:
		// Records compare by field name; construction order is not
		// observable at the value level.
		br := b.(*Record)
		if len(a.Fields) != len(br.Fields) {
			return false
		}
		for _, fa := range a.Fields {
			found := false
			for _, fb := range br.Fields {
				if fa.Name == fb.Name {
					if !eq(fa.Val, fb.Val, deep) {
						return false
					}
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return true
	case *Map:
		bm := b.(*Map)
		if !eq(a.Default, bm.Default, deep) {
			return false
		}
		keys := map[string]bool{}
		for _, k := range a.Keys {
			keys[k.Inspect()] = true
		}
		for _, k := range bm.Keys {
			keys[k.Inspect()] = true
		}
		for _, k := range append(append([]Value{}, a.Keys...), bm.Keys...) {
			if !eq(mapGet(a, k), mapGet(bm, k), deep) {
				return false
			}
		}
		return true
	}
	return false
}

func mapGet(m *Map, key Value) Value {
	for i, k := range m.Keys {
		if Equal(k, key) {
			return m.Vals[i]
		}
	}
	return m.Default
}

// MapGet looks key up in m, falling back to the map's default.
func MapGet(m *Map, key Value) Value { return mapGet(m, key) }

// MapPut returns m with key bound to val.
func MapPut(m *Map, key, val Value) *Map {
	keys := make([]Value, 0, len(m.Keys)+1)
	vals := make([]Value, 0, len(m.Vals)+1)
	replaced := false
	for i, k := range m.Keys {
		if Equal(k, key) {
			keys = append(keys, k)
			vals = append(vals, val)
			replaced = true
		} else {
			keys = append(keys, k)
			vals = append(vals, m.Vals[i])
		}
	}
	if !replaced {
		keys = append(keys, key)
		vals = append(vals, val)
	}
	return &Map{Keys: keys, Vals: vals, Default: m.Default}
}
