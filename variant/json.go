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
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// instant values are wire-encoded as a one-key object so decoding never
// has to guess "is this string secretly a timestamp" — spec §4.B requires
// restoring instants "by type, not by heuristic".
const instantWireKey = "$date"

// ToJSON encodes a Value to its public wire representation (spec §6).
// Integers are emitted without a decimal point, floats always with one
// or with an exponent (1 is written "1.0", 1e21 "1e+21"), so a round trip through encoding/json's default decoder
// elsewhere still preserves the int/float distinction for anyone sniffing
// the raw bytes; lakedoc's own DecodeJSON never relies on that, it parses
// with json.Number.
func ToJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encodeInto(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeInto(buf *bytes.Buffer, v Value) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindInt:
		fmt.Fprintf(buf, "%d", v.i)
	case KindFloat:
		s := fmt.Sprintf("%g", v.f)
		if !bytes.ContainsAny([]byte(s), ".eE") {
			s += ".0"
		}
		buf.WriteString(s)
	case KindString:
		raw, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindInstant:
		buf.WriteString(`{"` + instantWireKey + `":`)
		raw, err := json.Marshal(v.t.Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		buf.Write(raw)
		buf.WriteString("}")
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeInto(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		buf.WriteByte('{')
		for i, k := range v.m.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			val, _ := v.m.Get(k)
			if err := encodeInto(buf, val); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("variant: unknown kind %v", v.kind)
	}
	return nil
}

// FromJSON decodes the wire representation into a Value, preserving the
// int/float distinction via json.Number and recognizing the {"$date":...}
// instant sentinel. Empty objects/arrays decode to non-nil, zero-length
// KindMap/KindArray values (spec §3 round-trip requirement).
//
// encoding/json's generic interface{} decoding loses object key order
// (Go maps don't have one), which would violate spec §3's "ordered map"
// requirement, so this walks the token stream by hand instead of
// decoding through map[string]interface{}.
func FromJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, err
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFromToken(dec, tok)
}

func decodeFromToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '[':
			items := []Value{}
			for dec.More() {
				v, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, v)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Array(items), nil
		case '{':
			m := NewOrderedMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			if m.Len() == 1 {
				if dateRaw, ok := m.Get(instantWireKey); ok && dateRaw.Kind() == KindString {
					if parsed, err := time.Parse(time.RFC3339Nano, dateRaw.Str()); err == nil {
						return Instant(parsed), nil
					}
				}
			}
			return Map(m), nil
		}
		return Value{}, fmt.Errorf("variant: unexpected delimiter %v", t)
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case string:
		return String(t), nil
	default:
		return Value{}, fmt.Errorf("variant: unexpected token %v", tok)
	}
}

// FromGo converts a value produced by encoding/json (with UseNumber) or by
// ordinary Go code into a Value.
func FromGo(raw interface{}) Value {
	switch x := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return Int(i)
		}
		f, _ := x.Float64()
		return Float(f)
	case int:
		return Int(int64(x))
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case string:
		return String(x)
	case time.Time:
		return Instant(x)
	case []interface{}:
		items := make([]Value, len(x))
		for i, v := range x {
			items[i] = FromGo(v)
		}
		return Array(items)
	case []Value:
		return Array(x)
	case map[string]interface{}:
		if dateRaw, ok := x[instantWireKey]; ok && len(x) == 1 {
			if s, ok := dateRaw.(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return Instant(t)
				}
			}
		}
		m := NewOrderedMap()
		for k, v := range x {
			m.Set(k, FromGo(v))
		}
		return Map(m)
	case *OrderedMap:
		return Map(x)
	default:
		return Null()
	}
}
