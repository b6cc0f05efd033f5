/*
Copyright (C) 2026  The Lakedoc Authors

    This program is free software: you can redistribute it and/or modify
    it under the terms of the GNU General Public License as published by
    the Free Software Foundation, either version 3 of the License, or
    (at your option) any later version.

    This program is distributed in the hope that it will be useful,
    but WITHOUT ANY WARRANTY; without even the implied warranty of
    MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
    GNU General Public License for more details.

    You should have received a copy of the GNU General Public License
    along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package variant implements the self-describing value lattice entities
// are built from (spec §3, §9): a tagged sum over null, bool, int64,
// float64, string, instant, ordered array and ordered string-keyed map.
//
// This plays the role memcp's scm.Scmer plays for the storage package
// (every column storage implementation in the teacher's storage/
// package is built against that one tagged-union value type); here the
// tag set is closed and fixed by the spec rather than open to an
// embedded language, so it is modeled as a small Kind enum with an
// explicit dispatch table (spec §9 "Dynamic dispatch") instead of an
// interface hierarchy.
package variant

import (
	"fmt"
	"time"
)

// Kind is the closed set of variant value tags (spec §3).
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindInstant
	KindArray
	KindMap
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindInstant:
		return "instant"
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is a tagged variant value. Exactly one of the typed fields is
// meaningful, selected by Kind. Array and Map are always non-nil for
// KindArray/KindMap respectively, even when empty — spec §3 requires
// empty object/array to round-trip distinctly from null.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	t     time.Time
	arr   []Value
	m     *OrderedMap
}

// OrderedMap is a string-keyed map that preserves insertion order, used
// both for $data variant columns and for decoded entities.
type OrderedMap struct {
	keys   []string
	values map[string]Value
}

func NewOrderedMap() *OrderedMap {
	return &OrderedMap{values: make(map[string]Value)}
}

func (m *OrderedMap) Set(key string, v Value) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

func (m *OrderedMap) Get(key string) (Value, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap) Delete(key string) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *OrderedMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

func (m *OrderedMap) Len() int { return len(m.keys) }

func (m *OrderedMap) Clone() *OrderedMap {
	out := NewOrderedMap()
	for _, k := range m.keys {
		out.Set(k, m.values[k])
	}
	return out
}

func Null() Value                { return Value{kind: KindNull} }
func Bool(b bool) Value          { return Value{kind: KindBool, b: b} }
func Int(i int64) Value          { return Value{kind: KindInt, i: i} }
func Float(f float64) Value      { return Value{kind: KindFloat, f: f} }
func String(s string) Value      { return Value{kind: KindString, s: s} }
func Instant(t time.Time) Value  { return Value{kind: KindInstant, t: t.UTC()} }
func Array(items []Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}
func Map(m *OrderedMap) Value {
	if m == nil {
		m = NewOrderedMap()
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind        { return v.kind }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) Bool() bool        { return v.b }
func (v Value) Int() int64        { return v.i }
func (v Value) Float() float64    { return v.f }
func (v Value) Str() string       { return v.s }
func (v Value) Time() time.Time   { return v.t }
func (v Value) Items() []Value    { return v.arr }
func (v Value) MapValue() *OrderedMap { return v.m }

// AsFloat64 widens Int/Float to float64 for numeric comparison; used by
// pushdown predicate evaluation and $inc application.
func (v Value) AsFloat64() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	}
	return 0, false
}

// Compare orders two values of the same Kind with a total order; used by
// the statistics writer (min/max) and by pushdown skip evaluation.
// Returns (0, true) if equal, (-1/1, true) if ordered, (_, false) if the
// kinds don't carry a total order relative to each other (spec §4.B:
// variant/array/map columns have no min/max).
func Compare(a, b Value) (int, bool) {
	if a.kind != b.kind {
		// allow cross int/float comparison, since shredded numeric columns
		// may mix integral and fractional literals in filters
		af, aok := a.AsFloat64()
		bf, bok := b.AsFloat64()
		if aok && bok {
			return compareFloat(af, bf), true
		}
		return 0, false
	}
	switch a.kind {
	case KindInt:
		if a.i < b.i {
			return -1, true
		} else if a.i > b.i {
			return 1, true
		}
		return 0, true
	case KindFloat:
		return compareFloat(a.f, b.f), true
	case KindString:
		if a.s < b.s {
			return -1, true
		} else if a.s > b.s {
			return 1, true
		}
		return 0, true
	case KindInstant:
		if a.t.Before(b.t) {
			return -1, true
		} else if a.t.After(b.t) {
			return 1, true
		}
		return 0, true
	case KindBool:
		if a.b == b.b {
			return 0, true
		}
		if !a.b && b.b {
			return -1, true
		}
		return 1, true
	default:
		return 0, false
	}
}

func compareFloat(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// Equal reports deep equality, used by round-trip tests and $eq/$ne
// residual filter evaluation on non-orderable kinds (array/map).
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		if c, ok := Compare(a, b); ok {
			return c == 0
		}
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !Equal(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if a.m.Len() != b.m.Len() {
			return false
		}
		for _, k := range a.m.Keys() {
			av, _ := a.m.Get(k)
			bv, ok := b.m.Get(k)
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	default:
		c, ok := Compare(a, b)
		return ok && c == 0
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%v", v.b)
	case KindInt:
		return fmt.Sprintf("%d", v.i)
	case KindFloat:
		return fmt.Sprintf("%g", v.f)
	case KindString:
		return v.s
	case KindInstant:
		return v.t.Format(time.RFC3339Nano)
	case KindArray:
		return fmt.Sprintf("array[%d]", len(v.arr))
	case KindMap:
		return fmt.Sprintf("map[%d]", v.m.Len())
	default:
		return "?"
	}
}
