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

package pushdown

import "github.com/launix-de/lakedoc/columnar"

// RowGroupFilter adapts a lowered Plan's predicates to
// columnar.RowGroupFilter: a row group is skipped the moment any single
// predicate says it cannot match (spec §4.H "skip if ANY predicate says
// skip"). A column absent from a row group's stats (never shredded, or
// the variant $data catch-all) has no bounds and is never a skip
// reason, matching the "missing statistics never skip" rule.
type RowGroupFilter struct {
	Predicates []Predicate
}

func (f RowGroupFilter) MayMatch(stats map[string]columnar.ColumnStats) bool {
	for _, p := range f.Predicates {
		cs, ok := stats[p.Column]
		bounds := ColumnBounds{}
		if ok {
			bounds = ColumnBounds{HasBounds: cs.HasBounds, Min: cs.Min, Max: cs.Max}
		}
		if !p.MayMatch(bounds) {
			return false
		}
	}
	return true
}

var _ columnar.RowGroupFilter = RowGroupFilter{}
