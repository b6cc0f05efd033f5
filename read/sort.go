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

package read

import (
	"github.com/carli2/hybridsort"

	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/variant"
)

// SortKey is one `{field: 1|-1}` entry of FindOptions.sort (spec §6),
// applied in declaration order as tie-breaks.
type SortKey struct {
	Field      string
	Descending bool
}

// sortRows implements sort.Interface over decoded rows so hybridsort
// (the teacher's own indirect dependency, pulled in for exactly this
// "pull all, sort in server memory" step — spec §4.G step 4) can order
// them by the requested key list. A field absent from a row sorts as if
// it were smaller than any present value; two values variant.Compare
// cannot order (its (_, false) case) count as equal for that key and fall
// through to the next one, so heterogeneous columns never panic.
type sortRows struct {
	rows []columnar.Row
	keys []SortKey
}

func (s *sortRows) Len() int      { return len(s.rows) }
func (s *sortRows) Swap(i, j int) { s.rows[i], s.rows[j] = s.rows[j], s.rows[i] }

func (s *sortRows) Less(i, j int) bool {
	for _, k := range s.keys {
		a, aok := s.rows[i].Get(k.Field)
		b, bok := s.rows[j].Get(k.Field)
		switch {
		case !aok && !bok:
			continue
		case !aok:
			return !k.Descending
		case !bok:
			return k.Descending
		}
		c, ok := variant.Compare(a, b)
		if !ok || c == 0 {
			continue
		}
		if k.Descending {
			return c > 0
		}
		return c < 0
	}
	return false
}

// Sort orders rows in place by keys, a no-op when keys is empty.
func Sort(rows []columnar.Row, keys []SortKey) {
	if len(keys) == 0 {
		return
	}
	hybridsort.Sort(&sortRows{rows: rows, keys: keys})
}
