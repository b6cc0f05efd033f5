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
	"fmt"

	"github.com/launix-de/lakedoc/variant"
)

// Query is the (namespace, filter, options) a caller is about to run
// (spec §4.J "Optimization of a query (namespace, filter, options)").
type Query struct {
	Namespace string
	Filter    variant.Value
	Project   []string
	GroupBy   []string // non-nil marks this as an aggregate query
}

func (q Query) isAggregate() bool { return len(q.GroupBy) > 0 }

// Options configures the optimizer's thresholds (spec §4.J steps 1, 4).
type Options struct {
	MinCoverageScore    float64
	MinCostSavings      float64
	AllowStaleReads     bool
	MaxStalenessPercent float64
	Cost                CostOptions
}

// Decision is the optimizer's explainable output (spec §4.J "the
// result carries the candidate list, selected MV, source cost, MV
// cost, savings, and a textual explanation").
type Decision struct {
	Candidates      []string
	Selected        *View
	SourceCost      float64
	MVCost          float64
	Savings         float64
	StalenessPct    float64
	RewrittenFilter variant.Value
	Explanation     string
}

// fieldCoverage computes the query-relative coverage ratio spec §4.J
// step 1 defines: covered fields (the view's own projected fields)
// over requested fields. A view with no declared Select covers
// whatever is asked (it persists full documents).
func fieldCoverage(v *View, requested []string) float64 {
	if len(requested) == 0 {
		return 1
	}
	if v.Def.Select == nil {
		return 1
	}
	covered := make(map[string]bool, len(v.Def.Select))
	for _, f := range v.Def.Select {
		covered[f] = true
	}
	var hits int
	for _, f := range requested {
		if covered[f] {
			hits++
		}
	}
	return float64(hits) / float64(len(requested))
}

// Candidates discovers the views eligible for query (spec §4.J step 1).
func Candidates(catalog *Catalog, q Query, minCoverageScore float64) []*View {
	var out []*View
	for _, v := range catalog.ForNamespace(q.Namespace) {
		if v.Def.isAggregate() && !q.isAggregate() {
			continue // spec §4.J step 1: aggregation MVs only serve aggregate queries
		}
		if fieldCoverage(v, q.Project) < minCoverageScore {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Optimize runs the full candidate → compatibility → cost → decision →
// rewrite pipeline (spec §4.J steps 1-5).
func Optimize(catalog *Catalog, q Query, source SourceStats, opts Options) Decision {
	candidates := Candidates(catalog, q, opts.MinCoverageScore)

	decision := Decision{SourceCost: SourceCost(source, opts.Cost)}
	for _, v := range candidates {
		decision.Candidates = append(decision.Candidates, v.Name)
	}

	var best *View
	var bestCost, bestSavings, bestStaleness float64

	for _, v := range candidates {
		if !Implies(q.Filter, v.Def.Filter) {
			continue // spec §4.J step 2: conflicting or non-implying filters disqualify
		}
		status, pct := Staleness(v, source)
		if status == Invalid {
			continue
		}
		if !opts.AllowStaleReads && status == Stale {
			continue
		}
		if pct > opts.MaxStalenessPercent {
			continue
		}
		cost := MVCost(v, pct, opts.Cost)
		savings := decision.SourceCost - cost
		if savings <= opts.MinCostSavings {
			continue
		}
		if best == nil || savings > bestSavings {
			best, bestCost, bestSavings, bestStaleness = v, cost, savings, pct
		}
	}

	if best == nil {
		decision.Explanation = fmt.Sprintf(
			"no materialized view met the %.0f cost-savings threshold over %d candidate(s); using source %q directly (cost %.2f)",
			opts.MinCostSavings, len(candidates), q.Namespace, decision.SourceCost)
		return decision
	}

	decision.Selected = best
	decision.MVCost = bestCost
	decision.Savings = bestSavings
	decision.StalenessPct = bestStaleness
	decision.RewrittenFilter = StripImplied(q.Filter, best.Def.Filter)
	decision.Explanation = fmt.Sprintf(
		"selected view %q (staleness %.1f%%): source cost %.2f, MV cost %.2f, savings %.2f",
		best.Name, bestStaleness, decision.SourceCost, bestCost, bestSavings)
	return decision
}
