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

package entity

import (
	"context"

	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/errs"
	"github.com/launix-de/lakedoc/pushdown"
	"github.com/launix-de/lakedoc/read"
	"github.com/launix-de/lakedoc/variant"
)

// FindOptions shapes one find/get/count request (spec.md §6 FindOptions,
// §12 cursor pagination).
type FindOptions struct {
	Filter         variant.Value
	Project        []string // nil means every field
	Sort           []read.SortKey
	Skip           int
	Limit          int
	TimeTravel     read.TimeTravel
	IncludeDeleted bool
	Cursor         string
	ShreddedPath   pushdown.IsShreddedPath
}

// FindResult carries the page of matched entities plus the opaque
// cursor for the next page, if any.
type FindResult struct {
	Docs       []*variant.OrderedMap
	NextCursor string
	Version    int64
}

// Find is the engine the other reads (Get, Count, UpdateMany,
// DeleteMany) are built on; EstimatedCount bypasses it. It asks package read for every
// row version that matches Filter, collapses them down to one row per
// entity id by keeping the highest _version (merge-on-read), applies
// soft-delete visibility, then sorts, skips and limits at this layer
// rather than in package read — read has no notion of entity identity
// so it cannot dedup, and a dedup pass must see every candidate version
// before it can decide which rows survive.
func (c *Collection) Find(ctx context.Context, opts FindOptions) (FindResult, error) {
	tt := opts.TimeTravel
	skip := opts.Skip
	if opts.Cursor != "" {
		cur, err := decodeCursor(opts.Cursor)
		if err != nil {
			return FindResult{}, errs.Invalidf(errs.SubjectFilter, "invalid cursor: %v", err)
		}
		v := cur.SnapshotVersion
		tt = read.TimeTravel{Version: &v}
		skip = cur.Skip
	} else if c.fixedAt.Version != nil || c.fixedAt.At != nil {
		tt = c.fixedAt
	}

	res, err := c.reader.Find(ctx, read.Options{
		Filter:         opts.Filter,
		Project:        nil, // dedup needs every field; the caller's projection is applied after
		TimeTravel:     tt,
		IncludeDeleted: true,
		ShreddedPath:   opts.ShreddedPath,
	})
	if err != nil {
		return FindResult{}, err
	}

	docs := dedupLatest(res.Rows, opts.IncludeDeleted)

	sortRows(docs, opts.Sort)

	docs = applyProject(docs, opts.Project)

	total := len(docs)
	if skip > 0 {
		if skip >= total {
			docs = nil
		} else {
			docs = docs[skip:]
		}
	}
	var nextCursor string
	if opts.Limit > 0 && len(docs) > opts.Limit {
		docs = docs[:opts.Limit]
		nextCursor, err = encodeCursor(cursor{SnapshotVersion: res.Version, Skip: skip + opts.Limit})
		if err != nil {
			return FindResult{}, err
		}
	} else if opts.Limit > 0 && len(docs) == opts.Limit && skip+opts.Limit < total {
		nextCursor, err = encodeCursor(cursor{SnapshotVersion: res.Version, Skip: skip + opts.Limit})
		if err != nil {
			return FindResult{}, err
		}
	}

	return FindResult{Docs: docs, NextCursor: nextCursor, Version: res.Version}, nil
}

// dedupLatest collapses every row version for a given id down to the
// single highest-_version row, then drops it entirely if it is a
// tombstone and includeDeleted is false.
func dedupLatest(rows []columnar.Row, includeDeleted bool) []*variant.OrderedMap {
	best := make(map[string]*variant.OrderedMap, len(rows))
	order := make([]string, 0, len(rows))
	for _, row := range rows {
		idVal, ok := row.Get(IDField)
		if !ok {
			continue
		}
		id := idVal.Str()
		cur, seen := best[id]
		if !seen {
			order = append(order, id)
			best[id] = row
			continue
		}
		curV, _ := cur.Get(VersionField)
		newV, _ := row.Get(VersionField)
		if newV.Int() > curV.Int() {
			best[id] = row
		}
	}
	docs := make([]*variant.OrderedMap, 0, len(order))
	for _, id := range order {
		row := best[id]
		if _, deleted := row.Get(DeletedAtField); deleted && !includeDeleted {
			continue
		}
		docs = append(docs, row)
	}
	return docs
}

func sortRows(docs []*variant.OrderedMap, keys []read.SortKey) {
	if len(keys) == 0 {
		return
	}
	rows := make([]columnar.Row, len(docs))
	for i, d := range docs {
		rows[i] = d
	}
	read.Sort(rows, keys)
	for i, r := range rows {
		docs[i] = r
	}
}

// applyProject keeps only reserved fields plus the caller's requested
// fields. A nil Project means "everything", matching pushdown.Projection
// semantics elsewhere in this codebase.
func applyProject(docs []*variant.OrderedMap, project []string) []*variant.OrderedMap {
	if project == nil {
		return docs
	}
	keep := make(map[string]bool, len(project)+len(reservedFields))
	for f := range reservedFields {
		keep[f] = true
	}
	for _, f := range project {
		keep[f] = true
	}
	out := make([]*variant.OrderedMap, len(docs))
	for i, d := range docs {
		projected := variant.NewOrderedMap()
		for _, k := range d.Keys() {
			if keep[k] {
				v, _ := d.Get(k)
				projected.Set(k, v)
			}
		}
		out[i] = projected
	}
	return out
}
