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

// Status summarizes a view's freshness (spec §4.J "one of {fresh,
// stale, invalid}").
type Status string

const (
	Fresh   Status = "fresh"
	Stale   Status = "stale"
	Invalid Status = "invalid"
)

// SourceStats is the subset of a source table's statistics staleness
// detection and cost estimation both need.
type SourceStats struct {
	RowCount int64
}

// Staleness reports a view's status plus a staleness percentage: the
// fraction of the source's current rows the view hasn't observed yet,
// measured by row-count drift since the view's last refresh — the
// simplest quantity that degrades monotonically as a source falls
// further out of sync with a view built from it, and the one spec
// §4.J's cost model already assumes exists ("a penalty proportional to
// staleness%").
func Staleness(v *View, source SourceStats) (Status, float64) {
	if v.Meta.LastRefreshedAt.IsZero() || v.Meta.RowCount < 0 {
		return Invalid, 100
	}
	if source.RowCount <= v.Meta.RowCount {
		return Fresh, 0
	}
	drift := source.RowCount - v.Meta.RowCount
	pct := 100 * float64(drift) / float64(source.RowCount)
	if pct == 0 {
		return Fresh, 0
	}
	return Stale, pct
}
