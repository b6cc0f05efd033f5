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
	"testing"

	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/variant"
)

func mapFilter(pairs ...interface{}) variant.Value {
	m := variant.NewOrderedMap()
	for i := 0; i < len(pairs); i += 2 {
		m.Set(pairs[i].(string), pairs[i+1].(variant.Value))
	}
	return variant.Map(m)
}

func TestLower_PlainLeafBecomesEqPredicate(t *testing.T) {
	f := mapFilter("status", variant.String("active"))
	plan := Lower(f, nil)
	if len(plan.Predicates) != 1 || plan.Predicates[0].Op != OpEq || plan.Predicates[0].Column != "status" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.HasResidual {
		t.Fatalf("plain eq leaf should not set HasResidual")
	}
}

func TestLower_OperatorLeafAndAndRecursion(t *testing.T) {
	opLeaf := variant.NewOrderedMap()
	opLeaf.Set("$gt", variant.Int(100))
	clauseA := mapFilter("total", variant.Map(opLeaf))
	clauseB := mapFilter("status", variant.String("active"))
	f := mapFilter("$and", variant.Array([]variant.Value{clauseA, clauseB}))

	plan := Lower(f, nil)
	if len(plan.Predicates) != 2 {
		t.Fatalf("expected 2 predicates from $and recursion, got %d: %+v", len(plan.Predicates), plan.Predicates)
	}
}

func TestLower_OrAndRegexAreResidualOnly(t *testing.T) {
	f := mapFilter("$or", variant.Array([]variant.Value{mapFilter("a", variant.Int(1))}))
	plan := Lower(f, nil)
	if len(plan.Predicates) != 0 {
		t.Fatalf("expected no predicates from $or, got %+v", plan.Predicates)
	}
	if !plan.HasResidual {
		t.Fatalf("expected HasResidual for $or")
	}
}

func TestLower_DottedPathResidualUnlessShredded(t *testing.T) {
	unshredded := mapFilter("meta.year", variant.Int(2020))
	plan := Lower(unshredded, nil)
	if len(plan.Predicates) != 0 || !plan.HasResidual {
		t.Fatalf("unshredded dotted path must be residual-only, got %+v", plan)
	}

	shredded := Lower(unshredded, func(path string) bool { return path == "meta.year" })
	if len(shredded.Predicates) != 1 || shredded.Predicates[0].Column != "meta.year" {
		t.Fatalf("shredded dotted path should produce a predicate, got %+v", shredded)
	}
	ratio, ok := shredded.Effectiveness()
	if !ok || ratio != 1.0 {
		t.Fatalf("expected effectiveness 1.0, got %v ok=%v", ratio, ok)
	}
}

func TestPredicate_SkipTable(t *testing.T) {
	bounds := ColumnBounds{HasBounds: true, Min: variant.Int(10), Max: variant.Int(20)}
	cases := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"eq in range", Predicate{Op: OpEq, Value: variant.Int(15)}, true},
		{"eq below range", Predicate{Op: OpEq, Value: variant.Int(5)}, false},
		{"gt at max", Predicate{Op: OpGt, Value: variant.Int(20)}, false},
		{"gt below max", Predicate{Op: OpGt, Value: variant.Int(19)}, true},
		{"lt at min", Predicate{Op: OpLt, Value: variant.Int(10)}, false},
		{"lte equal min", Predicate{Op: OpLte, Value: variant.Int(10)}, true},
		{"ne matches whole range point", Predicate{Op: OpNe, Value: variant.Int(10)}, true},
		{"in all outside", Predicate{Op: OpIn, Values: []variant.Value{variant.Int(1), variant.Int(2)}}, false},
		{"in one inside", Predicate{Op: OpIn, Values: []variant.Value{variant.Int(1), variant.Int(15)}}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := c.p.MayMatch(bounds); got != c.want {
				t.Fatalf("MayMatch = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPredicate_MissingStatsNeverSkips(t *testing.T) {
	p := Predicate{Op: OpEq, Value: variant.Int(5)}
	if !p.MayMatch(ColumnBounds{HasBounds: false}) {
		t.Fatalf("missing bounds must never skip")
	}
}

func TestRowGroupFilter_SkipsIfAnyPredicateSkips(t *testing.T) {
	f := RowGroupFilter{Predicates: []Predicate{
		{Column: "a", Op: OpEq, Value: variant.Int(5)},
		{Column: "b", Op: OpEq, Value: variant.Int(999)},
	}}
	stats := map[string]columnar.ColumnStats{
		"a": {HasBounds: true, Min: variant.Int(0), Max: variant.Int(10)},
		"b": {HasBounds: true, Min: variant.Int(0), Max: variant.Int(10)},
	}
	if f.MayMatch(stats) {
		t.Fatalf("expected skip since predicate b is out of range")
	}
}

func TestRowGroupFilter_ColumnAbsentFromStatsNeverSkips(t *testing.T) {
	f := RowGroupFilter{Predicates: []Predicate{{Column: "untracked", Op: OpEq, Value: variant.Int(5)}}}
	if !f.MayMatch(map[string]columnar.ColumnStats{}) {
		t.Fatalf("a column with no stats entry must never cause a skip")
	}
}

func TestMatches_ComparisonAndLogicalOperators(t *testing.T) {
	row := variant.NewOrderedMap()
	row.Set("status", variant.String("active"))
	row.Set("total", variant.Int(150))

	gtLeaf := variant.NewOrderedMap()
	gtLeaf.Set("$gt", variant.Int(100))
	f := mapFilter("$and", variant.Array([]variant.Value{
		mapFilter("status", variant.String("active")),
		mapFilter("total", variant.Map(gtLeaf)),
	}))
	if !Matches(f, row) {
		t.Fatalf("expected match")
	}

	ltLeaf := variant.NewOrderedMap()
	ltLeaf.Set("$lt", variant.Int(100))
	bad := mapFilter("total", variant.Map(ltLeaf))
	if Matches(bad, row) {
		t.Fatalf("expected no match for total < 100")
	}
}

func TestMatches_ExistsAndDottedPath(t *testing.T) {
	inner := variant.NewOrderedMap()
	inner.Set("year", variant.Int(2020))
	row := variant.NewOrderedMap()
	row.Set("meta", variant.Map(inner))

	if !Matches(mapFilter("meta.year", variant.Int(2020)), row) {
		t.Fatalf("expected dotted-path match")
	}

	existsLeaf := variant.NewOrderedMap()
	existsLeaf.Set("$exists", variant.Bool(false))
	if !Matches(mapFilter("missing", variant.Map(existsLeaf)), row) {
		t.Fatalf("expected $exists:false to match an absent field")
	}
}

func TestProjection_UnionOfReservedPredicateAndUserFields(t *testing.T) {
	cols := Projection([]string{"id"}, []Predicate{{Column: "status"}}, []string{"name", "id"})
	want := map[string]bool{"id": true, "status": true, "name": true}
	if len(cols) != len(want) {
		t.Fatalf("unexpected projection: %v", cols)
	}
	for _, c := range cols {
		if !want[c] {
			t.Fatalf("unexpected column %q in projection", c)
		}
	}
}

func TestProjection_NilUserFieldsMeansDecodeEverything(t *testing.T) {
	if cols := Projection([]string{"id"}, nil, nil); cols != nil {
		t.Fatalf("expected nil projection, got %v", cols)
	}
}

func TestScanBudget_EarlyTerminationDisabledBySort(t *testing.T) {
	b := ScanBudget{Skip: 0, Limit: 10, Buffer: 2, HasSort: true}
	if b.TargetRows() != -1 {
		t.Fatalf("sort must disable early termination")
	}
}

func TestScanBudget_DoneAtSkipLimitBuffer(t *testing.T) {
	b := ScanBudget{Skip: 5, Limit: 10, Buffer: 3}
	if b.TargetRows() != 18 {
		t.Fatalf("expected target 18, got %d", b.TargetRows())
	}
	if b.Done(17) {
		t.Fatalf("should not be done at 17")
	}
	if !b.Done(18) {
		t.Fatalf("should be done at 18")
	}
}
