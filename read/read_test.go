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

package read

import (
	"context"
	"testing"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/schemacache"
	"github.com/launix-de/lakedoc/variant"
)

func writeRow(t *testing.T, store blobstore.Store, schema columnar.Schema, key string, id int64, status string) SourceFile {
	t.Helper()
	row := variant.NewOrderedMap()
	row.Set("id", variant.Int(id))
	row.Set("status", variant.String(status))
	stats, data, err := columnar.WriteFile([]columnar.Row{row}, schema, 0)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := store.Write(context.Background(), key, data, blobstore.WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return SourceFile{Path: key, SizeBytes: stats.SizeBytes, RecordCount: stats.RecordCount}
}

func fixedSchema() columnar.Schema {
	return columnar.Schema{Fields: []columnar.FieldSchema{
		{FieldID: 1, Name: "id", LogicalType: columnar.LogicalInt},
		{FieldID: 2, Name: "status", LogicalType: columnar.LogicalString},
	}}
}

func newTestReader(t *testing.T, store blobstore.Store, schema columnar.Schema, files []SourceFile, currentVersion int64) *Reader {
	t.Helper()
	resolve := func(ctx context.Context, tt TimeTravel) (int64, bool, error) {
		if tt.Version != nil {
			return *tt.Version, true, nil
		}
		return currentVersion, false, nil
	}
	listFiles := func(ctx context.Context, version int64) ([]SourceFile, error) { return files, nil }
	schemaAt := func(ctx context.Context, version int64) (columnar.Schema, error) { return schema, nil }
	return New(store, "ns/table", resolve, listFiles, schemaAt, schemacache.New())
}

func TestFind_ExactEqFilterMatches(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := fixedSchema()
	files := []SourceFile{
		writeRow(t, store, schema, "data/a.lkcf", 1, "active"),
		writeRow(t, store, schema, "data/b.lkcf", 2, "inactive"),
	}
	r := newTestReader(t, store, schema, files, 3)

	statusFilter := variant.NewOrderedMap()
	statusFilter.Set("status", variant.String("active"))

	res, err := r.Find(ctx, Options{Filter: variant.Map(statusFilter)})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 matching row, got %d", len(res.Rows))
	}
	if v, _ := res.Rows[0].Get("id"); v.Int() != 1 {
		t.Fatalf("expected id 1, got %v", v.Int())
	}
	if res.Version != 3 || res.ReadOnly {
		t.Fatalf("unexpected snapshot resolution: %+v", res)
	}
}

func TestFind_TimeTravelIsReadOnly(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := fixedSchema()
	files := []SourceFile{writeRow(t, store, schema, "data/a.lkcf", 1, "active")}
	r := newTestReader(t, store, schema, files, 3)

	v := int64(1)
	res, err := r.Find(ctx, Options{TimeTravel: TimeTravel{Version: &v}})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !res.ReadOnly {
		t.Fatalf("expected time-travel handle to be read-only")
	}
	if res.Version != 1 {
		t.Fatalf("expected version 1, got %d", res.Version)
	}
}

func TestFind_SkipAndLimit(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := fixedSchema()
	var files []SourceFile
	for i := int64(0); i < 5; i++ {
		files = append(files, writeRow(t, store, schema, "data/f"+string(rune('0'+i))+".lkcf", i, "active"))
	}
	r := newTestReader(t, store, schema, files, 1)

	res, err := r.Find(ctx, Options{
		Sort:  []SortKey{{Field: "id"}},
		Skip:  1,
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("expected 2 rows after skip/limit, got %d", len(res.Rows))
	}
	first, _ := res.Rows[0].Get("id")
	second, _ := res.Rows[1].Get("id")
	if first.Int() != 1 || second.Int() != 2 {
		t.Fatalf("expected sorted ids 1,2 got %v,%v", first.Int(), second.Int())
	}
}

func TestFind_RowGroupSkipViaStatsBounds(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := fixedSchema()
	files := []SourceFile{
		writeRow(t, store, schema, "data/a.lkcf", 1, "active"),
		writeRow(t, store, schema, "data/b.lkcf", 100, "active"),
	}
	r := newTestReader(t, store, schema, files, 1)

	idFilter := variant.NewOrderedMap()
	idFilter.Set("id", variant.Int(100))
	res, err := r.Find(ctx, Options{Filter: variant.Map(idFilter)})
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected 1 matching row, got %d", len(res.Rows))
	}
	if res.RowGroupsSkipped == 0 {
		t.Fatalf("expected at least one row group to be skipped via stats bounds")
	}
}
