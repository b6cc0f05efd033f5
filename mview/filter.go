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

package mview

import (
	"github.com/launix-de/lakedoc/pushdown"
	"github.com/launix-de/lakedoc/variant"
)

// allShredded treats every dotted path as eligible so pushdown.Lower
// extracts the maximum structured predicate set from a filter; mview
// only uses the result for logical implication, never for row-group
// statistics, so there is no effectiveness-ratio tradeoff to honor
// here the way read/pushdown weighs it against residual cost.
func allShredded(string) bool { return true }

// columnRange is one column's known constraint, folded down from
// however many predicates a filter's lowering produced for it.
type columnRange struct {
	hasLower, lowerExcl bool
	lower               variant.Value
	hasUpper, upperExcl bool
	upper               variant.Value
	hasEq               bool
	eq                  variant.Value
	in                  []variant.Value // nil means "no $in constraint"
	ne                  []variant.Value
}

func buildRanges(predicates []pushdown.Predicate) map[string]*columnRange {
	ranges := make(map[string]*columnRange)
	get := func(col string) *columnRange {
		r, ok := ranges[col]
		if !ok {
			r = &columnRange{}
			ranges[col] = r
		}
		return r
	}
	for _, p := range predicates {
		r := get(p.Column)
		switch p.Op {
		case pushdown.OpEq:
			r.hasEq = true
			r.eq = p.Value
		case pushdown.OpGt:
			if !r.hasLower || lt(r.lower, p.Value) {
				r.hasLower, r.lower, r.lowerExcl = true, p.Value, true
			}
		case pushdown.OpGte:
			if !r.hasLower || lt(r.lower, p.Value) {
				r.hasLower, r.lower, r.lowerExcl = true, p.Value, false
			}
		case pushdown.OpLt:
			if !r.hasUpper || gt(r.upper, p.Value) {
				r.hasUpper, r.upper, r.upperExcl = true, p.Value, true
			}
		case pushdown.OpLte:
			if !r.hasUpper || gt(r.upper, p.Value) {
				r.hasUpper, r.upper, r.upperExcl = true, p.Value, false
			}
		case pushdown.OpIn:
			r.in = p.Values
		case pushdown.OpNe:
			r.ne = append(r.ne, p.Value)
		}
	}
	return ranges
}

// satisfiesRange reports whether every value the query's range can
// produce also satisfies mv's range — the per-column half of "F_q ⇒
// F_mv" (spec §4.J compatibility rule).
func satisfiesRange(q, mv *columnRange) bool {
	if mv.hasEq {
		switch {
		case q.hasEq:
			if !eq(q.eq, mv.eq) {
				return false
			}
		case len(q.in) == 1:
			if !eq(q.in[0], mv.eq) {
				return false
			}
		default:
			return false // q can still range over more than one value
		}
	}
	if len(mv.in) > 0 {
		allowed := func(v variant.Value) bool {
			for _, m := range mv.in {
				if eq(v, m) {
					return true
				}
			}
			return false
		}
		switch {
		case q.hasEq:
			if !allowed(q.eq) {
				return false
			}
		case len(q.in) > 0:
			for _, v := range q.in {
				if !allowed(v) {
					return false
				}
			}
		default:
			return false
		}
	}
	if mv.hasLower {
		qLower, ok := effectiveLower(q)
		if !ok || lowerViolates(qLower, mv) {
			return false
		}
	}
	if mv.hasUpper {
		qUpper, ok := effectiveUpper(q)
		if !ok || upperViolates(qUpper, mv) {
			return false
		}
	}
	for _, excluded := range mv.ne {
		switch {
		case q.hasEq:
			if eq(q.eq, excluded) {
				return false
			}
		case len(q.in) > 0:
			for _, v := range q.in {
				if eq(v, excluded) {
					return false
				}
			}
		default:
			return false // an open range might still hit the excluded value
		}
	}
	return true
}

func effectiveLower(q *columnRange) (variant.Value, bool) {
	if q.hasEq {
		return q.eq, true
	}
	if len(q.in) > 0 {
		min := q.in[0]
		for _, v := range q.in[1:] {
			if lt(v, min) {
				min = v
			}
		}
		return min, true
	}
	if q.hasLower {
		return q.lower, true
	}
	return variant.Value{}, false
}

func effectiveUpper(q *columnRange) (variant.Value, bool) {
	if q.hasEq {
		return q.eq, true
	}
	if len(q.in) > 0 {
		max := q.in[0]
		for _, v := range q.in[1:] {
			if gt(v, max) {
				max = v
			}
		}
		return max, true
	}
	if q.hasUpper {
		return q.upper, true
	}
	return variant.Value{}, false
}

func lowerViolates(qLower variant.Value, mv *columnRange) bool {
	if mv.lowerExcl {
		return !gt(qLower, mv.lower)
	}
	return lt(qLower, mv.lower)
}

func upperViolates(qUpper variant.Value, mv *columnRange) bool {
	if mv.upperExcl {
		return !lt(qUpper, mv.upper)
	}
	return gt(qUpper, mv.upper)
}

// Implies reports whether every document matching qFilter also matches
// mvFilter (spec §4.J "F_q ⇒ F_mv"). A view filter the lowering
// couldn't fully decompose (anything using $or/$not/$nor/$regex/$text/
// $vector) is conservatively never implied, since this package reasons
// only over the structured predicate table pushdown already builds for
// statistics skipping.
func Implies(qFilter, mvFilter variant.Value) bool {
	if mvFilter.Kind() == variant.KindNull {
		return true // spec §4.J "An MV with no $filter can serve any query"
	}
	mvPlan := pushdown.Lower(mvFilter, allShredded)
	if mvPlan.HasResidual {
		return false
	}
	qPlan := pushdown.Lower(qFilter, allShredded)
	mvRanges := buildRanges(mvPlan.Predicates)
	qRanges := buildRanges(qPlan.Predicates)
	for col, mvRange := range mvRanges {
		qRange, ok := qRanges[col]
		if !ok {
			qRange = &columnRange{}
		}
		if !satisfiesRange(qRange, mvRange) {
			return false
		}
	}
	return true
}

// StripImplied removes query predicates already guaranteed by mvFilter
// from qFilter, leaving only the residual the MV hasn't already
// enforced (spec §4.J step 5 "strip clauses of F_q that are implied by
// F_mv"). Filters this package can't decompose pass through unchanged.
func StripImplied(qFilter, mvFilter variant.Value) variant.Value {
	if mvFilter.Kind() == variant.KindNull || qFilter.Kind() != variant.KindMap {
		return qFilter
	}
	mvPlan := pushdown.Lower(mvFilter, allShredded)
	if mvPlan.HasResidual {
		return qFilter
	}
	coveredByEq := make(map[string]variant.Value)
	for _, p := range mvPlan.Predicates {
		if p.Op == pushdown.OpEq {
			coveredByEq[p.Column] = p.Value
		}
	}
	if len(coveredByEq) == 0 {
		return qFilter
	}

	qMap := qFilter.MapValue()
	out := variant.NewOrderedMap()
	for _, key := range qMap.Keys() {
		v, _ := qMap.Get(key)
		if mvVal, ok := coveredByEq[key]; ok && eq(v, mvVal) {
			continue // already guaranteed true for every row the MV contains
		}
		out.Set(key, v)
	}
	return variant.Map(out)
}

func lt(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c < 0 }
func gt(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c > 0 }
func eq(a, b variant.Value) bool { c, ok := variant.Compare(a, b); return ok && c == 0 }
