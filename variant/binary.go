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
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// EncodeBinary and DecodeBinary are the compact self-describing encoding
// used for the $data variant column (spec §4.B): a one-byte Kind tag
// followed by a type-specific payload, recursively for arrays/maps. This
// is the columnar codec's analogue of the teacher's StorageInt
// Serialize/Deserialize pair (storage-int.go: magic byte + LittleEndian
// fields), generalized to a closed sum type instead of one fixed numeric
// width.
func EncodeBinary(v Value) []byte {
	var buf []byte
	buf = appendValue(buf, v)
	return buf
}

func appendValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.kind))
	switch v.kind {
	case KindNull:
		// no payload
	case KindBool:
		b := byte(0)
		if v.b {
			b = 1
		}
		buf = append(buf, b)
	case KindInt:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
		buf = append(buf, tmp[:]...)
	case KindFloat:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v.f))
		buf = append(buf, tmp[:]...)
	case KindString:
		buf = appendLenPrefixed(buf, []byte(v.s))
	case KindInstant:
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(v.t.UnixMicro()))
		buf = append(buf, tmp[:]...)
	case KindArray:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(v.arr)))
		buf = append(buf, tmp[:]...)
		for _, item := range v.arr {
			buf = appendValue(buf, item)
		}
	case KindMap:
		keys := v.m.Keys()
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(keys)))
		buf = append(buf, tmp[:]...)
		for _, k := range keys {
			buf = appendLenPrefixed(buf, []byte(k))
			val, _ := v.m.Get(k)
			buf = appendValue(buf, val)
		}
	}
	return buf
}

func appendLenPrefixed(buf []byte, data []byte) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(len(data)))
	buf = append(buf, tmp[:]...)
	buf = append(buf, data...)
	return buf
}

// DecodeBinary decodes one value from the front of data and returns the
// number of bytes consumed.
func DecodeBinary(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, fmt.Errorf("variant: truncated binary value")
	}
	kind := Kind(data[0])
	pos := 1
	switch kind {
	case KindNull:
		return Null(), pos, nil
	case KindBool:
		if len(data) < pos+1 {
			return Value{}, 0, fmt.Errorf("variant: truncated bool")
		}
		return Bool(data[pos] == 1), pos + 1, nil
	case KindInt:
		if len(data) < pos+8 {
			return Value{}, 0, fmt.Errorf("variant: truncated int")
		}
		return Int(int64(binary.LittleEndian.Uint64(data[pos : pos+8]))), pos + 8, nil
	case KindFloat:
		if len(data) < pos+8 {
			return Value{}, 0, fmt.Errorf("variant: truncated float")
		}
		return Float(math.Float64frombits(binary.LittleEndian.Uint64(data[pos : pos+8]))), pos + 8, nil
	case KindString:
		s, n, err := readLenPrefixed(data[pos:])
		if err != nil {
			return Value{}, 0, err
		}
		return String(string(s)), pos + n, nil
	case KindInstant:
		if len(data) < pos+8 {
			return Value{}, 0, fmt.Errorf("variant: truncated instant")
		}
		micros := int64(binary.LittleEndian.Uint64(data[pos : pos+8]))
		return Instant(time.UnixMicro(micros)), pos + 8, nil
	case KindArray:
		if len(data) < pos+4 {
			return Value{}, 0, fmt.Errorf("variant: truncated array length")
		}
		n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		items := make([]Value, n)
		for i := 0; i < n; i++ {
			v, consumed, err := DecodeBinary(data[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			items[i] = v
			pos += consumed
		}
		return Array(items), pos, nil
	case KindMap:
		if len(data) < pos+4 {
			return Value{}, 0, fmt.Errorf("variant: truncated map length")
		}
		n := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		pos += 4
		m := NewOrderedMap()
		for i := 0; i < n; i++ {
			key, consumed, err := readLenPrefixed(data[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			pos += consumed
			v, consumed, err := DecodeBinary(data[pos:])
			if err != nil {
				return Value{}, 0, err
			}
			pos += consumed
			m.Set(string(key), v)
		}
		return Map(m), pos, nil
	default:
		return Value{}, 0, fmt.Errorf("variant: unknown binary kind tag %d", kind)
	}
}

func readLenPrefixed(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, fmt.Errorf("variant: truncated length prefix")
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	if len(data) < 4+n {
		return nil, 0, fmt.Errorf("variant: truncated payload")
	}
	return data[4 : 4+n], 4 + n, nil
}
