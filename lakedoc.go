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

// Package lakedoc is the top-level embeddable handle: it wires package
// blobstore, schemacache, wal, iceberg/delta and read together into the
// per-table plumbing package entity needs, the way an embedding
// application is meant to use this engine. It owns no storage format of
// its own — every on-disk invariant lives in the packages it wires.
package lakedoc

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/dc0d/onexit"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/commit"
	"github.com/launix-de/lakedoc/delta"
	"github.com/launix-de/lakedoc/embed"
	"github.com/launix-de/lakedoc/entity"
	"github.com/launix-de/lakedoc/errs"
	"github.com/launix-de/lakedoc/iceberg"
	"github.com/launix-de/lakedoc/maintenance"
	"github.com/launix-de/lakedoc/mview"
	"github.com/launix-de/lakedoc/read"
	"github.com/launix-de/lakedoc/schemacache"
	"github.com/launix-de/lakedoc/wal"
)

// TableFormat selects which commit-coordinator dialect a table is
// created under (spec §4.D Iceberg, §4.D' Delta — both equally
// supported, chosen once per table at creation time).
type TableFormat int

const (
	FormatIceberg TableFormat = iota
	FormatDelta
)

// Options configures a DB (spec §10 "Configuration" — plain structs
// with documented defaults, set via functional options, matching
// storage/table.go's PersistencyMode/S3Factory literal-config style).
type Options struct {
	Warehouse   string // {warehouse} path prefix every table location is built under
	WAL         wal.Options
	RowGroupRows int
}

func (o Options) withDefaults() Options {
	if o.Warehouse == "" {
		o.Warehouse = "warehouse"
	}
	return o
}

// Option mutates an Options value, the functional-options pattern §10
// calls for.
type Option func(*Options)

// WithWarehouse sets the root path every table is created under.
func WithWarehouse(path string) Option { return func(o *Options) { o.Warehouse = path } }

// WithWAL overrides the WAL flush thresholds for every table opened
// after this option is applied.
func WithWAL(opts wal.Options) Option { return func(o *Options) { o.WAL = opts } }

// Table bundles one namespace's commit coordinator, WAL writer, reader
// and entity.Collection — everything CreateCollection wired together
// for one (name, schema, format) triple.
type Table struct {
	Name       string
	Format     TableFormat
	Schema     columnar.Schema
	Collection *entity.Collection

	location   string
	wal        *wal.WAL
	iceCoord   *iceberg.Coordinator
	deltaCoord *delta.Coordinator
}

// DB is the top-level embeddable handle (spec §5 concurrency model,
// §6 external interfaces). One DB owns one blobstore.Store and one
// schemacache.Cache shared across every table it opens.
type DB struct {
	store blobstore.Store
	cache *schemacache.Cache
	opts  Options

	mu      sync.RWMutex
	tables  map[string]*Table

	catalog  *mview.Catalog
	embedder embed.Capability
}

// Open constructs a DB over store, registering an onexit hook that
// flushes every table's WAL on process exit (spec §11 domain stack:
// github.com/dc0d/onexit wired here) so a buffered Append isn't lost if
// the embedding process exits before its next scheduled flush.
func Open(store blobstore.Store, opts ...Option) *DB {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	db := &DB{
		store:   store,
		cache:   schemacache.New(),
		opts:    o.withDefaults(),
		tables:  make(map[string]*Table),
		catalog: mview.NewCatalog(),
	}
	onexit.Register(func() { db.Close() })
	return db
}

// WithEmbedder attaches an embedding capability (spec §4.I vector
// search) to the DB. The DB only stores it: no collection or read path
// in this module calls it, and $vector filter clauses are not resolved
// through it.
func (db *DB) WithEmbedder(c embed.Capability) *DB {
	db.embedder = c
	return db
}

// Catalog exposes the materialized-view catalog callers register views
// into (spec §4.J). lakedoc.go does not itself run the MV optimizer —
// that decision belongs to the query layer built on top of Find — but
// every DB owns exactly one catalog so registrations are visible across
// every table.
func (db *DB) Catalog() *mview.Catalog { return db.catalog }

func (db *DB) tableLocation(name string) string {
	return db.opts.Warehouse + "/" + name
}

// CreateCollection provisions a new table under format and returns its
// entity.Collection. Calling it twice for the same name is an error —
// use Collection to look up an already-open table.
func (db *DB) CreateCollection(name string, schema columnar.Schema, format TableFormat) (*entity.Collection, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if _, exists := db.tables[name]; exists {
		return nil, errs.New(errs.AlreadyExists, "collection "+name+" already exists")
	}

	location := db.tableLocation(name)
	table := &Table{Name: name, Format: format, Schema: schema, location: location}

	var commitFn wal.CommitFunc
	var resolve read.ResolveSnapshot
	var listFiles read.ListLiveFiles
	var schemaAt read.SchemaAt

	switch format {
	case FormatIceberg:
		coord := iceberg.New(db.store, location)
		table.iceCoord = coord
		commitFn = func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, op string) (int64, error) {
			return coord.Commit(ctx, schema, adds, removes, op)
		}
		resolve = func(ctx context.Context, tt read.TimeTravel) (int64, bool, error) {
			if tt.Version != nil {
				return *tt.Version, true, nil
			}
			v, err := coord.CurrentVersion(ctx)
			if err != nil {
				return 0, false, err
			}
			return v, false, nil
		}
		listFiles = func(ctx context.Context, version int64) ([]read.SourceFile, error) {
			meta, err := coord.ReadMetadata(ctx, version)
			if err != nil {
				return nil, err
			}
			live, err := coord.LiveDataFiles(ctx, meta, version)
			if err != nil {
				return nil, err
			}
			out := make([]read.SourceFile, len(live))
			for i, f := range live {
				out[i] = read.SourceFile{Path: f.Path, SizeBytes: f.SizeBytes, RecordCount: f.RecordCount}
			}
			return out, nil
		}
		schemaAt = func(ctx context.Context, version int64) (columnar.Schema, error) {
			meta, err := coord.ReadMetadata(ctx, version)
			if err != nil {
				return columnar.Schema{}, err
			}
			return meta.Schema, nil
		}
	case FormatDelta:
		coord := delta.New(db.store, location)
		table.deltaCoord = coord
		schemaJSON, err := schemaToJSON(schema)
		if err != nil {
			return nil, err
		}
		commitFn = func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, op string) (int64, error) {
			return coord.Commit(ctx, schemaJSON, adds, removes, op)
		}
		resolve = func(ctx context.Context, tt read.TimeTravel) (int64, bool, error) {
			if tt.Version != nil {
				return *tt.Version, true, nil
			}
			v, err := coord.CurrentVersion(ctx)
			if err != nil {
				return 0, false, err
			}
			return v, false, nil
		}
		listFiles = func(ctx context.Context, version int64) ([]read.SourceFile, error) {
			live, err := coord.LiveFilesAt(ctx, version)
			if err != nil {
				return nil, err
			}
			out := make([]read.SourceFile, len(live))
			for i, f := range live {
				out[i] = read.SourceFile{Path: f.Path, SizeBytes: f.SizeBytes, RecordCount: f.RecordCount}
			}
			return out, nil
		}
		schemaAt = func(ctx context.Context, version int64) (columnar.Schema, error) {
			return coord.Schema(ctx)
		}
	default:
		return nil, errs.Invalidf(errs.SubjectCollection, "unknown table format %d", format)
	}

	walOpts := db.opts.WAL
	walOpts.RowGroupRows = db.opts.RowGroupRows
	w := wal.New(db.store, location, schema, commitFn, walOpts)
	reader := read.New(db.store, location, resolve, listFiles, schemaAt, db.cache)
	table.wal = w
	table.Collection = entity.New(name, w, reader)

	db.tables[name] = table
	return table.Collection, nil
}

// Collection looks up an already-created table's entity surface.
func (db *DB) Collection(name string) (*entity.Collection, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.tables[name]
	if !ok {
		return nil, false
	}
	return t.Collection, true
}

func schemaToJSON(schema columnar.Schema) (string, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", errs.Wrap(errs.Invalid, err, "encode delta schemaString")
	}
	return string(raw), nil
}

// Compact runs OPTIMIZE for one table (spec §4.F): small live data
// files are merged into fewer, larger ones without changing the row
// set.
func (db *DB) Compact(ctx context.Context, name string, opts maintenance.CompactOptions) (maintenance.CompactResult, error) {
	db.mu.RLock()
	table, ok := db.tables[name]
	db.mu.RUnlock()
	if !ok {
		return maintenance.CompactResult{}, errs.New(errs.NotFound, "collection "+name+" not found")
	}

	list, commitFn, err := db.maintenanceAdapters(table)
	if err != nil {
		return maintenance.CompactResult{}, err
	}
	return maintenance.Compact(ctx, db.store, table.Schema, table.location+"/data/", list, commitFn, opts)
}

// Vacuum permanently deletes blobs behind files that stopped being live
// more than opts.RetentionMs ago (spec §4.F).
func (db *DB) Vacuum(ctx context.Context, name string, nowMs int64, opts maintenance.VacuumOptions) (maintenance.VacuumResult, error) {
	db.mu.RLock()
	table, ok := db.tables[name]
	db.mu.RUnlock()
	if !ok {
		return maintenance.VacuumResult{}, errs.New(errs.NotFound, "collection "+name+" not found")
	}

	listRemoved, err := db.removedFilesAdapter(table)
	if err != nil {
		return maintenance.VacuumResult{}, err
	}
	return maintenance.Vacuum(ctx, db.store, listRemoved, nowMs, opts)
}

func (db *DB) maintenanceAdapters(table *Table) (maintenance.ListLiveFiles, wal.CommitFunc, error) {
	switch table.Format {
	case FormatIceberg:
		coord := table.iceCoord
		list := func(ctx context.Context) ([]maintenance.LiveFile, error) {
			v, err := coord.CurrentVersion(ctx)
			if err != nil {
				return nil, err
			}
			meta, err := coord.ReadMetadata(ctx, v)
			if err != nil {
				return nil, err
			}
			live, err := coord.LiveDataFiles(ctx, meta, v)
			if err != nil {
				return nil, err
			}
			out := make([]maintenance.LiveFile, len(live))
			for i, f := range live {
				out[i] = maintenance.LiveFile{Path: f.Path, SizeBytes: f.SizeBytes, RecordCount: f.RecordCount}
			}
			return out, nil
		}
		commitFn := func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, op string) (int64, error) {
			return coord.Commit(ctx, table.Schema, adds, removes, op)
		}
		return list, commitFn, nil
	case FormatDelta:
		coord := table.deltaCoord
		schemaJSON, err := schemaToJSON(table.Schema)
		if err != nil {
			return nil, nil, err
		}
		list := func(ctx context.Context) ([]maintenance.LiveFile, error) {
			v, err := coord.CurrentVersion(ctx)
			if err != nil {
				return nil, err
			}
			live, err := coord.LiveFilesAt(ctx, v)
			if err != nil {
				return nil, err
			}
			out := make([]maintenance.LiveFile, len(live))
			for i, f := range live {
				out[i] = maintenance.LiveFile{Path: f.Path, SizeBytes: f.SizeBytes, RecordCount: f.RecordCount}
			}
			return out, nil
		}
		commitFn := func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, op string) (int64, error) {
			return coord.Commit(ctx, schemaJSON, adds, removes, op)
		}
		return list, commitFn, nil
	default:
		return nil, nil, errs.Invalidf(errs.SubjectCollection, "unknown table format %d", table.Format)
	}
}

func (db *DB) removedFilesAdapter(table *Table) (maintenance.ListRemovedFiles, error) {
	switch table.Format {
	case FormatIceberg:
		coord := table.iceCoord
		return func(ctx context.Context) ([]maintenance.RemovedFile, error) {
			v, err := coord.CurrentVersion(ctx)
			if err != nil {
				return nil, err
			}
			meta, err := coord.ReadMetadata(ctx, v)
			if err != nil {
				return nil, err
			}
			removed, err := coord.RemovedFiles(ctx, meta, v)
			if err != nil {
				return nil, err
			}
			out := make([]maintenance.RemovedFile, len(removed))
			for i, f := range removed {
				out[i] = maintenance.RemovedFile{Path: f.Path, RemovedAtMs: f.RemovedAtMs}
			}
			return out, nil
		}, nil
	case FormatDelta:
		coord := table.deltaCoord
		return func(ctx context.Context) ([]maintenance.RemovedFile, error) {
			v, err := coord.CurrentVersion(ctx)
			if err != nil {
				return nil, err
			}
			removed, err := coord.RemovedFilesAt(ctx, v)
			if err != nil {
				return nil, err
			}
			out := make([]maintenance.RemovedFile, len(removed))
			for i, f := range removed {
				out[i] = maintenance.RemovedFile{Path: f.Path, RemovedAtMs: f.RemovedAtMs}
			}
			return out, nil
		}, nil
	default:
		return nil, errs.Invalidf(errs.SubjectCollection, "unknown table format %d", table.Format)
	}
}

// Close flushes every open table's WAL buffer so no Append since the
// last scheduled flush is lost. Safe to call more than once; safe to
// register directly with onexit (which Open already does).
func (db *DB) Close() {
	db.mu.RLock()
	tables := make([]*Table, 0, len(db.tables))
	for _, t := range db.tables {
		tables = append(tables, t)
	}
	db.mu.RUnlock()

	ctx := context.Background()
	for _, t := range tables {
		if _, err := t.wal.Flush(ctx, "shutdown"); err != nil {
			// best-effort: a failing flush on shutdown is logged, not fatal,
			// since the process is already on its way out (spec §10 logging:
			// fmt/log over a framework, matching the teacher's own style).
			fmt.Fprintf(os.Stderr, "lakedoc: flush %s on shutdown: %v\n", t.Name, err)
		}
	}
}
