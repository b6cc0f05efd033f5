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

// Package pushdown lowers a user filter into statistics predicates the
// columnar reader can use to skip row groups without decoding them
// (spec §4.H), and carries the shredded-field rewrite and projection
// logic that make skipping effective against variant columns.
package pushdown

import "github.com/launix-de/lakedoc/variant"

// Op is the closed set of comparison operators a predicate carries
// (spec §4.H).
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

// Predicate is one lowered statistics predicate: "column OP value".
type Predicate struct {
	Column string
	Op     Op
	Value  variant.Value
	Values []variant.Value // populated only for OpIn
}

// MayMatch reports whether stats could contain a row satisfying p,
// applying the skip table from spec §4.H verbatim: missing bounds never
// skip (conservative), and each op's own skip condition is the negation
// of "may match".
func (p Predicate) MayMatch(stats ColumnBounds) bool {
	if !stats.HasBounds {
		return true
	}
	switch p.Op {
	case OpEq:
		return !(lt(p.Value, stats.Min) || gt(p.Value, stats.Max))
	case OpGt:
		return !le(stats.Max, p.Value)
	case OpGte:
		return !lt(stats.Max, p.Value)
	case OpLt:
		return !ge(stats.Min, p.Value)
	case OpLte:
		return !gt(stats.Min, p.Value)
	case OpNe:
		return !(eq(stats.Min, stats.Max) && eq(stats.Min, p.Value))
	case OpIn:
		for _, v := range p.Values {
			if !(lt(v, stats.Min) || gt(v, stats.Max)) {
				return true
			}
		}
		return len(p.Values) == 0
	default:
		return true
	}
}

// ColumnBounds is the minimal shape Predicate.MayMatch needs from a
// column's statistics; RowGroupFilter.MayMatch (skip.go) copies each
// columnar.ColumnStats into one field by field.
type ColumnBounds struct {
	HasBounds bool
	Min       variant.Value
	Max       variant.Value
}

func lt(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c < 0 }
func gt(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c > 0 }
func le(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c <= 0 }
func ge(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c >= 0 }
func eq(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c == 0 }
