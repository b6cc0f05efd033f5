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

import (
	"strings"

	"github.com/launix-de/lakedoc/variant"
)

// eligibleOps is the subset of the public operator vocabulary spec §4.H
// lowers to a statistics predicate. Everything else ($regex, $text,
// $vector, $exists, $startsWith, $nin, ...) is residual-only.
var eligibleOps = map[string]Op{
	"$eq":  OpEq,
	"$ne":  OpNe,
	"$gt":  OpGt,
	"$gte": OpGte,
	"$lt":  OpLt,
	"$lte": OpLte,
	"$in":  OpIn,
}

// IsShreddedPath decides whether a dotted leaf path is backed by a
// dedicated typed sub-column, making it eligible for the same
// bounds-based skipping plain top-level fields get (spec §4.H
// "Shredded variants").
type IsShreddedPath func(path string) bool

// Plan is the result of lowering one filter document.
type Plan struct {
	Predicates []Predicate
	// HasResidual is true whenever the filter contains at least one
	// clause pushdown alone cannot decide (spec §4.H: $or/$not/$nor/
	// $regex/$text/$vector/null/un-shredded dotted paths), so the
	// caller must still run the full residual filter over decoded rows.
	HasResidual bool

	totalDotted    int
	shreddedDotted int
}

// Effectiveness reports (#shredded dotted leaves / #total dotted
// leaves) and whether no dotted leaves were present at all (ok==false
// means the ratio is not meaningful — spec §4.H's threshold check only
// applies when shredded variants are actually in play).
func (p Plan) Effectiveness() (ratio float64, ok bool) {
	if p.totalDotted == 0 {
		return 0, false
	}
	return float64(p.shreddedDotted) / float64(p.totalDotted), true
}

// Exceeds reports whether Effectiveness clears threshold (spec §4.H
// names 0.5), for the planner to log.
func (p Plan) Exceeds(threshold float64) bool {
	ratio, ok := p.Effectiveness()
	return ok && ratio > threshold
}

// Lower transforms a user filter (spec §6's JSON-like operator
// vocabulary, represented here as a variant.Value map) into an ordered
// predicate list plus a residual flag (spec §4.H). A nil/null filter
// lowers to an empty, non-residual plan ("match everything").
func Lower(filter variant.Value, isShredded IsShreddedPath) Plan {
	var plan Plan
	if filter.IsNull() {
		return plan
	}
	lowerInto(&plan, filter, isShredded)
	return plan
}

func lowerInto(plan *Plan, filter variant.Value, isShredded IsShreddedPath) {
	m := filter.MapValue()
	if m == nil {
		plan.HasResidual = true
		return
	}
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		switch key {
		case "$and":
			for _, clause := range v.Items() {
				lowerInto(plan, clause, isShredded)
			}
		case "$or", "$not", "$nor", "$regex", "$text", "$vector":
			plan.HasResidual = true
		default:
			lowerLeaf(plan, key, v, isShredded)
		}
	}
}

func lowerLeaf(plan *Plan, path string, value variant.Value, isShredded IsShreddedPath) {
	dotted := strings.Contains(path, ".")
	eligiblePath := !dotted || isShredded != nil && isShredded(path)
	if dotted {
		plan.totalDotted++
	}
	if value.IsNull() {
		// A null leaf is decided by the residual filter alone.
		plan.HasResidual = true
		return
	}

	counted := false
	emit := func(op Op, v variant.Value, ins []variant.Value) {
		if !eligiblePath {
			plan.HasResidual = true
			return
		}
		if dotted && !counted {
			plan.shreddedDotted++
			counted = true
		}
		plan.Predicates = append(plan.Predicates, Predicate{Column: path, Op: op, Value: v, Values: ins})
	}

	opMap := value.MapValue()
	if value.Kind() != variant.KindMap || opMap == nil || !hasOperatorKey(opMap) {
		emit(OpEq, value, nil)
		return
	}

	for _, opKey := range opMap.Keys() {
		opVal, _ := opMap.Get(opKey)
		op, ok := eligibleOps[opKey]
		if !ok {
			// $nin, $exists, $startsWith and any other operator this
			// plan doesn't recognize: residual only, no predicate.
			plan.HasResidual = true
			continue
		}
		if op == OpIn {
			emit(op, variant.Null(), opVal.Items())
		} else {
			emit(op, opVal, nil)
		}
	}
}

func hasOperatorKey(m *variant.OrderedMap) bool {
	for _, k := range m.Keys() {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}
