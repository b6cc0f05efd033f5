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

// Projection computes the column set a scan must decode (spec §4.H
// "Projection"): the union of reserved entity columns, filter-referenced
// shredded columns, and the caller's own requested projection. A nil
// result means "decode every column", matching columnar.Reader.Scan's
// own nil convention — this happens whenever the caller's userFields is
// nil and no shredded predicate column needs isolating beyond what a
// full decode already produces.
//
// Non-shredded fields are only ever visible inside the catch-all
// "$data" column, which columnar.Reader.Scan always decodes regardless
// of the projection list, so they never need to be named here.
func Projection(reserved []string, predicates []Predicate, userFields []string) []string {
	if userFields == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, name := range reserved {
		add(name)
	}
	for _, p := range predicates {
		add(p.Column)
	}
	for _, name := range userFields {
		add(name)
	}
	return out
}

// ScanBudget implements limit pushdown (spec §4.H "Limit pushdown"): the
// scanner tears down once skip+limit+buffer rows have been collected,
// provided no server-side sort is required (a non-empty sort disables
// early termination since rows must be gathered in full first).
type ScanBudget struct {
	Skip    int
	Limit   int
	Buffer  int
	HasSort bool
}

// TargetRows is the row count Done should stop scanning at, or -1 when
// early termination does not apply.
func (b ScanBudget) TargetRows() int {
	if b.HasSort || b.Limit <= 0 {
		return -1
	}
	return b.Skip + b.Limit + b.Buffer
}

// Done reports whether collected rows already satisfy TargetRows.
func (b ScanBudget) Done(collected int) bool {
	target := b.TargetRows()
	return target >= 0 && collected >= target
}
