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

package variant

import (
	"testing"
	"time"
)

func roundTrip(t *testing.T, v Value) Value {
	t.Helper()
	raw, err := ToJSON(v)
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	out, err := FromJSON(raw)
	if err != nil {
		t.Fatalf("FromJSON(%s): %v", raw, err)
	}
	return out
}

func TestRoundTrip_Primitives(t *testing.T) {
	cases := []Value{
		Null(),
		Bool(true),
		Bool(false),
		Int(42),
		Int(-7),
		Float(3.5),
		String("hello"),
		String(""),
	}
	for _, v := range cases {
		got := roundTrip(t, v)
		if !Equal(got, v) {
			t.Errorf("roundtrip %v -> %v (kind %v -> %v)", v, got, v.Kind(), got.Kind())
		}
	}
}

func TestRoundTrip_IntFloatDistinction(t *testing.T) {
	i := roundTrip(t, Int(5))
	if i.Kind() != KindInt {
		t.Fatalf("expected KindInt, got %v", i.Kind())
	}
	f := roundTrip(t, Float(5))
	if f.Kind() != KindFloat {
		t.Fatalf("expected KindFloat, got %v", f.Kind())
	}
}

func TestRoundTrip_EmptyArrayAndMapDistinctFromNull(t *testing.T) {
	arr := roundTrip(t, Array(nil))
	if arr.Kind() != KindArray || len(arr.Items()) != 0 {
		t.Fatalf("expected empty array, got %v", arr)
	}
	m := roundTrip(t, Map(nil))
	if m.Kind() != KindMap || m.MapValue().Len() != 0 {
		t.Fatalf("expected empty map, got %v", m)
	}
	n := roundTrip(t, Null())
	if n.Kind() != KindNull {
		t.Fatalf("expected null, got %v", n)
	}
}

func TestRoundTrip_Instant(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	got := roundTrip(t, Instant(now))
	if got.Kind() != KindInstant {
		t.Fatalf("expected KindInstant, got %v", got.Kind())
	}
	if !got.Time().Equal(now) {
		t.Errorf("expected %v, got %v", now, got.Time())
	}
}

func TestRoundTrip_MapPreservesKeyOrder(t *testing.T) {
	m := NewOrderedMap()
	m.Set("z", Int(1))
	m.Set("a", Int(2))
	m.Set("m", Int(3))
	got := roundTrip(t, Map(m))
	keys := got.MapValue().Keys()
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, keys)
		}
	}
}

func TestRoundTrip_NestedArrayAndMap(t *testing.T) {
	m := NewOrderedMap()
	m.Set("tags", Array([]Value{String("a"), String("b")}))
	m.Set("nested", Map(func() *OrderedMap {
		inner := NewOrderedMap()
		inner.Set("x", Int(1))
		return inner
	}()))
	got := roundTrip(t, Map(m))
	if !Equal(got, Map(m)) {
		t.Errorf("nested roundtrip mismatch: %v vs %v", got, Map(m))
	}
}

func TestCompare_CrossNumericKind(t *testing.T) {
	c, ok := Compare(Int(5), Float(5.0))
	if !ok || c != 0 {
		t.Fatalf("expected int/float 5==5.0, got %d ok=%v", c, ok)
	}
	c, ok = Compare(Int(5), Float(5.5))
	if !ok || c >= 0 {
		t.Fatalf("expected 5 < 5.5, got %d ok=%v", c, ok)
	}
}
