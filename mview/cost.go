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

// CostOptions parameterizes the cost model (spec §4.J step 3).
type CostOptions struct {
	PerRowScanCost        float64 // default 1.0, a scale-free unit
	BaseReduction         float64 // MV cost multiplier vs a naive per-row scan, default 0.3
	AggregationReduction  float64 // additional multiplier for $groupBy views, default 0.5
	StalenessPenaltyScale float64 // cost multiplier added per staleness percentage point, default 0.01
}

func (o CostOptions) withDefaults() CostOptions {
	if o.PerRowScanCost <= 0 {
		o.PerRowScanCost = 1.0
	}
	if o.BaseReduction <= 0 {
		o.BaseReduction = 0.3
	}
	if o.AggregationReduction <= 0 {
		o.AggregationReduction = 0.5
	}
	if o.StalenessPenaltyScale <= 0 {
		o.StalenessPenaltyScale = 0.01
	}
	return o
}

// SourceCost estimates the cost of scanning the source table directly
// (spec §4.J step 3 "source cost from table statistics").
func SourceCost(source SourceStats, opts CostOptions) float64 {
	opts = opts.withDefaults()
	return float64(source.RowCount) * opts.PerRowScanCost
}

// MVCost estimates the cost of serving a query from v, penalized by
// its current staleness (spec §4.J step 3 "MV cost = (MV rows ×
// per-row scan) × base reduction, with a further reduction for
// aggregation MVs and a penalty proportional to staleness%").
func MVCost(v *View, stalenessPct float64, opts CostOptions) float64 {
	opts = opts.withDefaults()
	cost := float64(v.Meta.RowCount) * opts.PerRowScanCost * opts.BaseReduction
	if v.Def.isAggregate() {
		cost *= opts.AggregationReduction
	}
	cost *= 1 + stalenessPct*opts.StalenessPenaltyScale
	return cost
}
