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

// Package read implements snapshot resolution, time travel, and
// manifest/row-group scanning (spec §4.G), dialect-agnostic via the same
// functional-adapter style packages wal and maintenance already use: the
// top-level wiring site binds ResolveSnapshot/ListLiveFiles/SchemaAt to
// either the iceberg or delta coordinator.
package read

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/errs"
	"github.com/launix-de/lakedoc/pushdown"
	"github.com/launix-de/lakedoc/schemacache"
	"github.com/launix-de/lakedoc/variant"
)

// SourceFile is the dialect-agnostic shape read needs from a live data
// file; iceberg.LiveFile/delta.LiveFile are adapted to this at the
// wiring site, the same pattern maintenance.LiveFile follows.
type SourceFile struct {
	Path        string
	SizeBytes   int64
	RecordCount int64
}

// TimeTravel selects which snapshot Find resolves against (spec §4.G
// step 1). The zero value means "current". At most one of Version/At
// should be set; Version takes precedence if both are.
type TimeTravel struct {
	Version *int64
	At      *time.Time
}

func (t TimeTravel) isCurrent() bool { return t.Version == nil && t.At == nil }

// ResolveSnapshot resolves a TimeTravel request to a concrete version
// and reports whether the resulting handle is read-only (true for any
// request that named an explicit version or timestamp, spec §4.G step
// 1: "A time-travel handle is read-only; any mutating op returns
// ReadOnly").
type ResolveSnapshot func(ctx context.Context, tt TimeTravel) (version int64, readOnly bool, err error)

// ListLiveFiles enumerates the live file set as of a resolved version.
type ListLiveFiles func(ctx context.Context, version int64) ([]SourceFile, error)

// SchemaAt returns the schema in effect at a resolved version.
type SchemaAt func(ctx context.Context, version int64) (columnar.Schema, error)

// deletionBuffer is the over-collection slack limit pushdown adds on
// top of skip+limit (spec §4.H "buffer = deduplication slack for
// soft-delete filtering").
const deletionBuffer = 16

// Options is one (namespace, filter, options) read request (spec §4.G,
// §6 FindOptions).
type Options struct {
	Filter         variant.Value
	Project        []string // nil means "every field"
	Sort           []SortKey
	Skip           int
	Limit          int
	TimeTravel     TimeTravel
	IncludeDeleted bool
	ShreddedPath   pushdown.IsShreddedPath
}

// Result carries the decoded rows plus the observability counters spec
// testable property 8 requires.
type Result struct {
	Rows             []columnar.Row
	Version          int64
	ReadOnly         bool
	FilesScanned     int
	RowGroupsScanned int
	RowGroupsSkipped int
}

// ReservedColumns are the entity-envelope fields spec §3 always
// projects, regardless of user request.
var ReservedColumns = []string{"id", "_type", "name", "_version", "_createdAt", "_updatedAt", "_deletedAt"}

// Reader drives the read path for one table: snapshot resolution through
// the bound dialect adapters, file scanning through blobstore/columnar,
// pushdown skip/residual filtering, sort, skip and limit.
type Reader struct {
	store         blobstore.Store
	tableLocation string
	resolve       ResolveSnapshot
	listFiles     ListLiveFiles
	schemaAt      SchemaAt
	cache         *schemacache.Cache

	group singleflight.Group // dedupes concurrent identical-snapshot file listings
}

func New(store blobstore.Store, tableLocation string, resolve ResolveSnapshot, listFiles ListLiveFiles, schemaAt SchemaAt, cache *schemacache.Cache) *Reader {
	return &Reader{store: store, tableLocation: tableLocation, resolve: resolve, listFiles: listFiles, schemaAt: schemaAt, cache: cache}
}

type listResult struct {
	files  []SourceFile
	schema columnar.Schema
}

// listAt fetches (and schema-caches) the live file set for version,
// deduplicating concurrent callers asking for the same (table, version)
// pair into one underlying fetch (spec §11 wiring note on read/).
func (r *Reader) listAt(ctx context.Context, version int64) (listResult, error) {
	key := fmt.Sprintf("%s#%d", r.tableLocation, version)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		schema, ok := r.cache.Get(r.tableLocation, version)
		if !ok {
			var err error
			schema, err = r.schemaAt(ctx, version)
			if err != nil {
				return nil, err
			}
			r.cache.Put(r.tableLocation, version, schema)
		}
		files, err := r.listFiles(ctx, version)
		if err != nil {
			return nil, err
		}
		return listResult{files: files, schema: schema}, nil
	})
	if err != nil {
		return listResult{}, err
	}
	return v.(listResult), nil
}

// Find executes one read request end to end (spec §4.G steps 1-4).
func (r *Reader) Find(ctx context.Context, opts Options) (Result, error) {
	version, readOnly, err := r.resolve(ctx, opts.TimeTravel)
	if err != nil {
		return Result{}, err
	}
	if !opts.TimeTravel.isCurrent() && !readOnly {
		readOnly = true // time travel is read-only regardless of what resolve reports (spec §4.G step 1)
	}

	listed, err := r.listAt(ctx, version)
	if err != nil {
		return Result{}, err
	}

	plan := pushdown.Lower(opts.Filter, opts.ShreddedPath)
	rowFilter := pushdown.RowGroupFilter{Predicates: plan.Predicates}
	projectColumns := pushdown.Projection(ReservedColumns, plan.Predicates, opts.Project)

	budget := pushdown.ScanBudget{
		Skip:    opts.Skip,
		Limit:   opts.Limit,
		Buffer:  deletionBuffer,
		HasSort: len(opts.Sort) > 0,
	}

	var rows []columnar.Row
	var filesScanned, rgScanned, rgSkipped int

	if budget.TargetRows() >= 0 {
		// Early termination only makes sense scanning files in order,
		// one at a time: stop the moment enough rows are collected
		// (spec §4.H "Limit pushdown").
		for _, f := range listed.files {
			matched, scanned, skipped, err := scanOneCtx(ctx, r.store, f, rowFilter, projectColumns, opts.Filter)
			if err != nil {
				return Result{}, err
			}
			filesScanned++
			rgScanned += scanned
			rgSkipped += skipped
			rows = append(rows, matched...)
			if budget.Done(len(rows)) {
				break
			}
		}
	} else {
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for _, f := range listed.files {
			f := f
			g.Go(func() error {
				matched, scanned, skipped, err := scanOneCtx(gctx, r.store, f, rowFilter, projectColumns, opts.Filter)
				if err != nil {
					return err
				}
				mu.Lock()
				filesScanned++
				rgScanned += scanned
				rgSkipped += skipped
				rows = append(rows, matched...)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Result{}, err
		}
	}

	Sort(rows, opts.Sort)

	rows = applySkipLimit(rows, opts.Skip, opts.Limit)

	return Result{
		Rows:             rows,
		Version:          version,
		ReadOnly:         readOnly,
		FilesScanned:     filesScanned,
		RowGroupsScanned: rgScanned,
		RowGroupsSkipped: rgSkipped,
	}, nil
}

// scanOneCtx is scanOne's context-aware twin for the parallel path,
// kept free-standing (not a Reader method closure) so errgroup's
// derived context is threaded through explicitly rather than captured.
func scanOneCtx(ctx context.Context, store blobstore.Store, f SourceFile, rowFilter pushdown.RowGroupFilter, projectColumns []string, filter variant.Value) ([]columnar.Row, int, int, error) {
	raw, err := store.Read(ctx, f.Path)
	if err != nil {
		return nil, 0, 0, err
	}
	reader, err := columnar.OpenReader(raw)
	if err != nil {
		return nil, 0, 0, errs.Wrap(errs.Corrupted, err, "open data file")
	}
	scanResult, err := reader.Scan(rowFilter, projectColumns)
	if err != nil {
		return nil, 0, 0, err
	}
	var matched []columnar.Row
	for _, row := range scanResult.Rows {
		if pushdown.Matches(filter, row) {
			matched = append(matched, row)
		}
	}
	return matched, scanResult.Scanned, scanResult.Skipped, nil
}

// applySkipLimit applies skip then limit (spec §4.G step 4) after sort
// has already run (or, when unsorted and early-terminated, after the
// scan already stopped at roughly the right count).
func applySkipLimit(rows []columnar.Row, skip, limit int) []columnar.Row {
	if skip > 0 {
		if skip >= len(rows) {
			return nil
		}
		rows = rows[skip:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

// EstimatedCount sums every live file's manifest record count for the
// resolved snapshot without opening a single data file (spec.md §12
// "estimatedCount" — a cheap, approximate row count for UI display and
// for the materialized-view optimizer's cost model).
func (r *Reader) EstimatedCount(ctx context.Context, tt TimeTravel) (int64, error) {
	version, _, err := r.resolve(ctx, tt)
	if err != nil {
		return 0, err
	}
	listed, err := r.listAt(ctx, version)
	if err != nil {
		return 0, err
	}
	var total int64
	for _, f := range listed.files {
		total += f.RecordCount
	}
	return total, nil
}

// ErrReadOnly is returned by mutating operations invoked against a
// time-travel handle (spec §4.G step 1, §7 ReadOnly kind); entity/
// top-level callers wrap this in the errs.ReadOnly kind.
var ErrReadOnly = errors.New("read: handle is read-only")
