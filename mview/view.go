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

// Package mview implements the materialized-view optimizer (spec
// §4.J): candidate discovery, compatibility/implication checking, cost
// estimation, the selection decision plus filter rewrite, and an
// explainable trace of all of it.
package mview

import (
	"time"

	"github.com/launix-de/lakedoc/variant"
)

// Definition is a materialized view's persisted query (spec §4.J "a
// persisted, named query over one source namespace").
type Definition struct {
	From    string
	Filter  variant.Value // zero Value means "no filter"
	Select  []string
	GroupBy []string
	Compute map[string]string // output field -> aggregate expression, e.g. "total": "$sum:amount"
	Expand  []string
	Flatten []string
}

func (d Definition) isAggregate() bool { return len(d.GroupBy) > 0 }

// hasFilter reports whether Filter carries any constraint.
func (d Definition) hasFilter() bool {
	return d.Filter.Kind() != variant.KindNull
}

// Meta is a view's refresh bookkeeping (spec §4.J "metadata
// {lastRefreshedAt, rowCount, lineage}").
type Meta struct {
	LastRefreshedAt time.Time
	RowCount        int64
	Lineage         []string // source tables/views this view was built from
}

// View is one catalog entry: a named definition plus its current
// metadata.
type View struct {
	Name string
	Def  Definition
	Meta Meta
}

// fieldCoverage is the static breadth of fields a view can answer
// from, used only to order the catalog (see catalog.go) — the query-
// relative coverage ratio spec §4.J actually gates candidates on is
// computed per query in optimizer.go, not here.
func (v *View) fieldCoverage() int {
	if v.Def.isAggregate() {
		return len(v.Def.GroupBy) + len(v.Def.Compute)
	}
	if v.Def.Select == nil {
		return 1 << 30 // "select everything" covers any requested field set
	}
	return len(v.Def.Select)
}
