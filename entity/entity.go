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

// Package entity is the public create/get/find/update/delete surface
// (spec.md §6, §12) layered over package read for scans and package wal
// for the write path. Neither read nor wal knows about entity identity
// or versioning — they move opaque columnar rows — so this package owns
// the two pieces of bookkeeping that make rows behave like entities:
// assigning `$id`/version/timestamps on write, and, on read, collapsing
// the several row versions a mutated entity accumulates across data
// files down to the one current version (merge-on-read, the natural
// consequence of an engine whose data files are immutable and whose
// compaction invariant explicitly preserves the row set — spec.md §3
// invariant ii, §4.F invariant i).
package entity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/launix-de/lakedoc/errs"
	"github.com/launix-de/lakedoc/read"
	"github.com/launix-de/lakedoc/variant"
	"github.com/launix-de/lakedoc/wal"
)

// Reserved entity attributes (spec.md §3). IDField through DeletedAtField
// match read.ReservedColumns exactly so every scan always decodes them
// regardless of a caller's own projection.
const (
	IDField        = "id"
	TypeField      = "_type"
	NameField      = "name"
	VersionField   = "_version"
	CreatedAtField = "_createdAt"
	UpdatedAtField = "_updatedAt"
	DeletedAtField = "_deletedAt"
)

var reservedFields = map[string]bool{
	IDField: true, TypeField: true, NameField: true, VersionField: true,
	CreatedAtField: true, UpdatedAtField: true, DeletedAtField: true,
}

// Collection is one namespace's create/get/find/update/delete surface.
// A Collection obtained from AsOf is read-only (spec.md §7 ReadOnly
// kind: "mutating op on a read-only or time-travelled handle").
type Collection struct {
	namespace string
	w         *wal.WAL
	reader    *read.Reader
	readOnly  bool
	fixedAt   read.TimeTravel
}

// New builds a Collection over an already-wired WAL writer and Reader;
// binding those to a concrete dialect (iceberg/delta) is the top-level
// DB handle's job, not this package's.
func New(namespace string, w *wal.WAL, reader *read.Reader) *Collection {
	return &Collection{namespace: namespace, w: w, reader: reader}
}

// AsOf returns a read-only Collection pinned to tt, the handle spec.md
// §4.G step 1 describes as always read-only regardless of what the
// underlying snapshot resolver reports.
func (c *Collection) AsOf(tt read.TimeTravel) *Collection {
	clone := *c
	clone.readOnly = true
	clone.fixedAt = tt
	return &clone
}

func (c *Collection) requireWritable() error {
	if c.readOnly {
		return errs.New(errs.ReadOnly, "collection handle is read-only (time travel or AsOf)")
	}
	return nil
}

func newID(namespace string) string {
	return namespace + "/" + uuid.NewString()
}

// stampCreate fills in the reserved envelope for a brand-new entity,
// validating the one attribute spec.md §3 calls out as required:
// `name`.
func stampCreate(namespace string, doc *variant.OrderedMap) (*variant.OrderedMap, string, error) {
	name, ok := doc.Get(NameField)
	if !ok || name.Kind() != variant.KindString || name.Str() == "" {
		return nil, "", errs.Invalidf(errs.SubjectData, "entity requires a non-empty %q field", NameField)
	}
	for _, f := range []string{IDField, VersionField, CreatedAtField, UpdatedAtField, DeletedAtField} {
		if _, present := doc.Get(f); present {
			return nil, "", errs.Invalidf(errs.SubjectData, "reserved field %q must not be set on create", f)
		}
	}
	id := newID(namespace)
	now := time.Now().UTC()
	row := doc.Clone()
	row.Set(IDField, variant.String(id))
	row.Set(VersionField, variant.Int(1))
	row.Set(CreatedAtField, variant.Instant(now))
	row.Set(UpdatedAtField, variant.Instant(now))
	return row, id, nil
}

// Create inserts one entity and returns its assigned `$id`.
func (c *Collection) Create(ctx context.Context, doc *variant.OrderedMap) (string, error) {
	if err := c.requireWritable(); err != nil {
		return "", err
	}
	row, id, err := stampCreate(c.namespace, doc)
	if err != nil {
		return "", err
	}
	if _, err := c.w.Append(ctx, wal.Event{Op: wal.OpCreate, Target: id, After: row}); err != nil {
		return "", err
	}
	return id, nil
}

// ItemResult is one element's outcome within a bulk operation.
type ItemResult struct {
	ID    string
	Error error
}

// BulkCreate inserts every doc through the O(1)-commit bulk path
// (spec.md §4.C, §12 "bulkCreate"). An item that fails stamping (e.g.
// missing `name`) is reported in its ItemResult and excluded from the
// batch; the remaining items still commit together.
func (c *Collection) BulkCreate(ctx context.Context, docs []*variant.OrderedMap) ([]ItemResult, error) {
	if err := c.requireWritable(); err != nil {
		return nil, err
	}
	results := make([]ItemResult, len(docs))
	events := make([]wal.Event, 0, len(docs))
	for i, doc := range docs {
		row, id, err := stampCreate(c.namespace, doc)
		if err != nil {
			results[i] = ItemResult{Error: err}
			continue
		}
		results[i] = ItemResult{ID: id}
		events = append(events, wal.Event{Op: wal.OpCreate, Target: id, After: row})
	}
	if len(events) == 0 {
		return results, nil
	}
	if _, err := c.w.BulkApply(ctx, events, "WRITE"); err != nil {
		return results, err
	}
	return results, nil
}

// Get resolves one entity by `$id`, or errs.NotFound.
func (c *Collection) Get(ctx context.Context, id string) (*variant.OrderedMap, error) {
	res, err := c.Find(ctx, FindOptions{Filter: eqFilter(IDField, variant.String(id)), Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(res.Docs) == 0 {
		return nil, errs.New(errs.NotFound, "entity "+id+" not found")
	}
	return res.Docs[0], nil
}

func eqFilter(field string, v variant.Value) variant.Value {
	m := variant.NewOrderedMap()
	m.Set(field, v)
	return variant.Map(m)
}

// applyMutation reads the current version, applies update, and returns
// the next tombstone-free version ready to append. Shared by Update and
// the batch paths below.
func (c *Collection) applyMutation(ctx context.Context, id string, update variant.Value) (before, after *variant.OrderedMap, err error) {
	before, err = c.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	after, err = ApplyUpdate(before, update)
	if err != nil {
		return nil, nil, err
	}
	bumpVersion(before, after)
	return before, after, nil
}

func bumpVersion(before, after *variant.OrderedMap) {
	v, _ := before.Get(VersionField)
	after.Set(VersionField, variant.Int(v.Int()+1))
	after.Set(UpdatedAtField, variant.Instant(time.Now().UTC()))
}

// Update applies the {$set,$unset,$inc,$push,$pull,$addToSet} operator
// document against one entity (spec.md §6, §12).
func (c *Collection) Update(ctx context.Context, id string, update variant.Value) error {
	if err := c.requireWritable(); err != nil {
		return err
	}
	before, after, err := c.applyMutation(ctx, id, update)
	if err != nil {
		return err
	}
	_, err = c.w.Append(ctx, wal.Event{Op: wal.OpUpdate, Target: id, Before: before, After: after})
	return err
}

// BulkUpdate applies update to every id, reporting per-item failures
// (e.g. a since-deleted id) without aborting the rest of the batch, then
// commits every successful mutation through the bulk path.
func (c *Collection) BulkUpdate(ctx context.Context, ids []string, update variant.Value) ([]ItemResult, error) {
	if err := c.requireWritable(); err != nil {
		return nil, err
	}
	results := make([]ItemResult, len(ids))
	events := make([]wal.Event, 0, len(ids))
	for i, id := range ids {
		before, after, err := c.applyMutation(ctx, id, update)
		if err != nil {
			results[i] = ItemResult{ID: id, Error: err}
			continue
		}
		results[i] = ItemResult{ID: id}
		events = append(events, wal.Event{Op: wal.OpUpdate, Target: id, Before: before, After: after})
	}
	if len(events) == 0 {
		return results, nil
	}
	if _, err := c.w.BulkApply(ctx, events, "UPDATE"); err != nil {
		return results, err
	}
	return results, nil
}

// MutationResult reports the counts an updateMany/deleteMany caller
// needs (spec.md §12, resolving spec.md §9 Open Question 1: the core
// always returns a count; adapters translate deletedCount==0 to a bool
// themselves).
type MutationResult struct {
	MatchedCount  int64
	ModifiedCount int64
	DeletedCount  int64
}

// UpdateMany applies update to every entity matching filter.
func (c *Collection) UpdateMany(ctx context.Context, filter variant.Value, update variant.Value) (MutationResult, error) {
	if err := c.requireWritable(); err != nil {
		return MutationResult{}, err
	}
	matches, err := c.Find(ctx, FindOptions{Filter: filter})
	if err != nil {
		return MutationResult{}, err
	}
	res := MutationResult{MatchedCount: int64(len(matches.Docs))}
	events := make([]wal.Event, 0, len(matches.Docs))
	for _, before := range matches.Docs {
		idVal, _ := before.Get(IDField)
		after, err := ApplyUpdate(before, update)
		if err != nil {
			return res, err
		}
		bumpVersion(before, after)
		events = append(events, wal.Event{Op: wal.OpUpdate, Target: idVal.Str(), Before: before, After: after})
	}
	if len(events) == 0 {
		return res, nil
	}
	if _, err := c.w.BulkApply(ctx, events, "UPDATE"); err != nil {
		return res, err
	}
	res.ModifiedCount = int64(len(events))
	return res, nil
}

// tombstone builds the row written for a delete. A hard delete scrubs
// every non-reserved field in addition to stamping deletedAt, so a
// future includeDeleted read can still see that the id once existed but
// can no longer recover its content — this engine's data files are
// immutable and merge-on-read, so "removed from future snapshots"
// (spec.md §3 lifecycle) is expressed as "no query this package runs
// will ever surface the content again", not as physically erasing the
// superseded bytes (those are reclaimed, like any other superseded
// version, by ordinary compaction and vacuum).
func tombstone(before *variant.OrderedMap, hard bool) *variant.OrderedMap {
	now := variant.Instant(time.Now().UTC())
	if !hard {
		after := before.Clone()
		after.Set(DeletedAtField, now)
		return after
	}
	after := variant.NewOrderedMap()
	for _, f := range []string{IDField, TypeField, NameField, VersionField, CreatedAtField} {
		if v, ok := before.Get(f); ok {
			after.Set(f, v)
		}
	}
	after.Set(DeletedAtField, now)
	return after
}

// Delete tombstones one entity (spec.md §3 lifecycle). hard additionally
// scrubs its user data; see tombstone.
func (c *Collection) Delete(ctx context.Context, id string, hard bool) error {
	if err := c.requireWritable(); err != nil {
		return err
	}
	before, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	after := tombstone(before, hard)
	bumpVersion(before, after)
	_, err = c.w.Append(ctx, wal.Event{Op: wal.OpDelete, Target: id, Before: before, After: after})
	return err
}

// BulkDelete tombstones every id through the bulk path, reporting
// per-item failures (e.g. an id already gone) without aborting the rest.
func (c *Collection) BulkDelete(ctx context.Context, ids []string, hard bool) ([]ItemResult, error) {
	if err := c.requireWritable(); err != nil {
		return nil, err
	}
	results := make([]ItemResult, len(ids))
	events := make([]wal.Event, 0, len(ids))
	for i, id := range ids {
		before, err := c.Get(ctx, id)
		if err != nil {
			results[i] = ItemResult{ID: id, Error: err}
			continue
		}
		after := tombstone(before, hard)
		bumpVersion(before, after)
		results[i] = ItemResult{ID: id}
		events = append(events, wal.Event{Op: wal.OpDelete, Target: id, Before: before, After: after})
	}
	if len(events) == 0 {
		return results, nil
	}
	if _, err := c.w.BulkApply(ctx, events, "DELETE"); err != nil {
		return results, err
	}
	return results, nil
}

// DeleteMany tombstones every entity matching filter.
func (c *Collection) DeleteMany(ctx context.Context, filter variant.Value, hard bool) (MutationResult, error) {
	if err := c.requireWritable(); err != nil {
		return MutationResult{}, err
	}
	matches, err := c.Find(ctx, FindOptions{Filter: filter})
	if err != nil {
		return MutationResult{}, err
	}
	res := MutationResult{MatchedCount: int64(len(matches.Docs))}
	events := make([]wal.Event, 0, len(matches.Docs))
	for _, before := range matches.Docs {
		idVal, _ := before.Get(IDField)
		after := tombstone(before, hard)
		bumpVersion(before, after)
		events = append(events, wal.Event{Op: wal.OpDelete, Target: idVal.Str(), Before: before, After: after})
	}
	if len(events) == 0 {
		return res, nil
	}
	if _, err := c.w.BulkApply(ctx, events, "DELETE"); err != nil {
		return res, err
	}
	res.DeletedCount = int64(len(events))
	return res, nil
}

// Count runs the full pushdown+residual+dedup pipeline and returns how
// many live entities match filter (spec.md §12 "count").
func (c *Collection) Count(ctx context.Context, filter variant.Value) (int64, error) {
	res, err := c.Find(ctx, FindOptions{Filter: filter})
	if err != nil {
		return 0, err
	}
	return int64(len(res.Docs)), nil
}

// EstimatedCount sums manifest record counts with no file opens (spec.md
// §12 "estimatedCount"). It is an upper bound, not an exact count: it
// counts every stored row version, not just the latest live one per id.
func (c *Collection) EstimatedCount(ctx context.Context) (int64, error) {
	tt := c.fixedAt
	return c.reader.EstimatedCount(ctx, tt)
}
