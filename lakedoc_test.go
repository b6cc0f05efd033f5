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

package lakedoc

import (
	"context"
	"testing"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/entity"
	"github.com/launix-de/lakedoc/maintenance"
	"github.com/launix-de/lakedoc/variant"
	"github.com/launix-de/lakedoc/wal"
)

func postsSchema() columnar.Schema {
	return columnar.Schema{Fields: []columnar.FieldSchema{
		{FieldID: 1, Name: "id", LogicalType: columnar.LogicalString},
		{FieldID: 2, Name: "_type", LogicalType: columnar.LogicalString},
		{FieldID: 3, Name: "name", LogicalType: columnar.LogicalString},
		{FieldID: 4, Name: "_version", LogicalType: columnar.LogicalInt},
		{FieldID: 5, Name: "_createdAt", LogicalType: columnar.LogicalInstant},
		{FieldID: 6, Name: "_updatedAt", LogicalType: columnar.LogicalInstant},
		{FieldID: 7, Name: "_deletedAt", LogicalType: columnar.LogicalInstant},
	}}
}

func docWithName(name string) *variant.OrderedMap {
	m := variant.NewOrderedMap()
	m.Set(entity.NameField, variant.String(name))
	return m
}

func eqFilter(field string, v variant.Value) variant.Value {
	m := variant.NewOrderedMap()
	m.Set(field, v)
	return variant.Map(m)
}

func TestDB_CreateCollectionRejectsDuplicateName(t *testing.T) {
	db := Open(blobstore.NewMemory(), WithWarehouse("warehouse"))
	if _, err := db.CreateCollection("posts", postsSchema(), FormatIceberg); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	if _, err := db.CreateCollection("posts", postsSchema(), FormatIceberg); err == nil {
		t.Fatalf("expected an error creating the same collection twice")
	}
}

func TestDB_IcebergRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := Open(blobstore.NewMemory(), WithWarehouse("warehouse"))
	posts, err := db.CreateCollection("posts", postsSchema(), FormatIceberg)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	id, err := posts.Create(ctx, docWithName("hello"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := posts.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	name, _ := got.Get(entity.NameField)
	if name.Str() != "hello" {
		t.Fatalf("expected name hello, got %v", name.Str())
	}

	again, ok := db.Collection("posts")
	if !ok {
		t.Fatalf("expected Collection to find the just-created table")
	}
	if _, err := again.Get(ctx, id); err != nil {
		t.Fatalf("Get via looked-up Collection: %v", err)
	}
}

func TestDB_DeltaRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := Open(blobstore.NewMemory(), WithWarehouse("warehouse"))
	orders, err := db.CreateCollection("orders", postsSchema(), FormatDelta)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	id, err := orders.Create(ctx, docWithName("order-1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := orders.Get(ctx, id); err != nil {
		t.Fatalf("Get: %v", err)
	}

	res, err := orders.Find(ctx, entity.FindOptions{Filter: eqFilter(entity.IDField, variant.String(id))})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(res.Docs) != 1 {
		t.Fatalf("expected 1 matching doc, got %d", len(res.Docs))
	}
}

func TestDB_CompactMergesSmallFiles(t *testing.T) {
	ctx := context.Background()
	db := Open(blobstore.NewMemory(), WithWarehouse("warehouse"), WithWAL(wal.Options{MaxEvents: 1, MaxBytes: 1 << 30, BulkThreshold: 5}))
	posts, err := db.CreateCollection("posts", postsSchema(), FormatIceberg)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := posts.Create(ctx, docWithName("post")); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}

	res, err := db.Compact(ctx, "posts", maintenance.CompactOptions{
		TargetFileSize: 1 << 20,
		MinFileSize:    1 << 20,
		MaxFiles:       n,
	})
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(res.InputFiles) != n {
		t.Fatalf("expected %d input files merged, got %d", n, len(res.InputFiles))
	}
	if res.FilesAdded != 1 {
		t.Fatalf("expected compaction to add exactly one output file, got %d", res.FilesAdded)
	}

	found, err := posts.Find(ctx, entity.FindOptions{})
	if err != nil {
		t.Fatalf("Find after compact: %v", err)
	}
	if len(found.Docs) != n {
		t.Fatalf("expected %d rows to survive compaction, got %d", n, len(found.Docs))
	}
}

func TestDB_VacuumRespectsRetention(t *testing.T) {
	ctx := context.Background()
	db := Open(blobstore.NewMemory(), WithWarehouse("warehouse"), WithWAL(wal.Options{MaxEvents: 1, MaxBytes: 1 << 30, BulkThreshold: 5}))
	posts, err := db.CreateCollection("posts", postsSchema(), FormatIceberg)
	if err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := posts.Create(ctx, docWithName("post")); err != nil {
			t.Fatalf("Create %d: %v", i, err)
		}
	}
	if _, err := db.Compact(ctx, "posts", maintenance.CompactOptions{TargetFileSize: 1 << 20, MinFileSize: 1 << 20, MaxFiles: 3}); err != nil {
		t.Fatalf("Compact: %v", err)
	}

	res, err := db.Vacuum(ctx, "posts", 0, maintenance.VacuumOptions{RetentionMs: 1000})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Deleted) != 0 {
		t.Fatalf("expected nothing deleted before retention elapses, got %v", res.Deleted)
	}

	farFuture := int64(1000) * 365 * 24 * 60 * 60 * 1000
	res, err = db.Vacuum(ctx, "posts", farFuture, maintenance.VacuumOptions{RetentionMs: 1000})
	if err != nil {
		t.Fatalf("Vacuum after retention: %v", err)
	}
	if len(res.Deleted) == 0 {
		t.Fatalf("expected the 3 compacted-away files to be vacuumed once retention elapses")
	}
}

func TestDB_CollectionNotFoundOnMaintenance(t *testing.T) {
	ctx := context.Background()
	db := Open(blobstore.NewMemory(), WithWarehouse("warehouse"))
	if _, err := db.Compact(ctx, "missing", maintenance.CompactOptions{}); err == nil {
		t.Fatalf("expected NotFound compacting an unknown collection")
	}
	if _, err := db.Vacuum(ctx, "missing", 0, maintenance.VacuumOptions{}); err == nil {
		t.Fatalf("expected NotFound vacuuming an unknown collection")
	}
}
