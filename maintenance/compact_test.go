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

package maintenance

import (
	"context"
	"testing"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/commit"
	"github.com/launix-de/lakedoc/variant"
)

func writeSingleRowFile(t *testing.T, store blobstore.Store, schema columnar.Schema, key string, id int64) LiveFile {
	t.Helper()
	row := variant.NewOrderedMap()
	row.Set("id", variant.Int(id))
	stats, data, err := columnar.WriteFile([]columnar.Row{row}, schema, 0)
	if err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := store.Write(context.Background(), key, data, blobstore.WriteOptions{}); err != nil {
		t.Fatalf("store.Write: %v", err)
	}
	return LiveFile{Path: key, SizeBytes: stats.SizeBytes, RecordCount: stats.RecordCount}
}

func TestCompact_FiveSmallFilesProduceOneAddAndFiveRemoves(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := columnar.Schema{Fields: []columnar.FieldSchema{{FieldID: 1, Name: "id", LogicalType: columnar.LogicalInt}}}

	var live []LiveFile
	for i := 0; i < 5; i++ {
		live = append(live, writeSingleRowFile(t, store, schema, "data/f"+string(rune('0'+i))+".lkd", int64(i)))
	}

	list := func(ctx context.Context) ([]LiveFile, error) { return live, nil }

	var gotAdds []commit.AddFile
	var gotRemoves []commit.RemoveFile
	var gotOp string
	commitFn := func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, operation string) (int64, error) {
		gotAdds, gotRemoves, gotOp = adds, removes, operation
		return 7, nil
	}

	res, err := Compact(ctx, store, schema, "data/", list, commitFn, CompactOptions{MinFileSize: 1 << 20, TargetFileSize: 1 << 20})
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(gotRemoves) != 5 {
		t.Fatalf("expected 5 removes, got %d", len(gotRemoves))
	}
	if len(gotAdds) != 1 {
		t.Fatalf("expected 1 add, got %d", len(gotAdds))
	}
	if gotAdds[0].RecordCount != 5 {
		t.Fatalf("expected the single add to carry all 5 rows, got %d", gotAdds[0].RecordCount)
	}
	if gotOp != "OPTIMIZE" {
		t.Fatalf("expected operation OPTIMIZE, got %q", gotOp)
	}
	if res.Version != 7 || res.FilesAdded != 1 || len(res.InputFiles) != 5 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestCompact_DryRunCommitsNothing(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := columnar.Schema{Fields: []columnar.FieldSchema{{FieldID: 1, Name: "id", LogicalType: columnar.LogicalInt}}}
	live := []LiveFile{writeSingleRowFile(t, store, schema, "data/f0.lkd", 0)}

	list := func(ctx context.Context) ([]LiveFile, error) { return live, nil }
	commitFn := func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, operation string) (int64, error) {
		t.Fatalf("commitFn must not be called on a dry run")
		return 0, nil
	}

	res, err := Compact(ctx, store, schema, "data/", list, commitFn, CompactOptions{MinFileSize: 1 << 20, DryRun: true})
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if res.Version != -1 || len(res.InputFiles) != 1 {
		t.Fatalf("unexpected dry run result: %+v", res)
	}
}

func TestCompact_SkipsFilesAtOrAboveMinSize(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	schema := columnar.Schema{Fields: []columnar.FieldSchema{{FieldID: 1, Name: "id", LogicalType: columnar.LogicalInt}}}
	big := writeSingleRowFile(t, store, schema, "data/big.lkd", 0)
	big.SizeBytes = 10 << 20

	list := func(ctx context.Context) ([]LiveFile, error) { return []LiveFile{big}, nil }
	commitFn := func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, operation string) (int64, error) {
		t.Fatalf("commitFn must not be called when nothing is small enough to compact")
		return 0, nil
	}

	res, err := Compact(ctx, store, schema, "data/", list, commitFn, CompactOptions{MinFileSize: 1 << 10})
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if res.Version != -1 || len(res.InputFiles) != 0 {
		t.Fatalf("expected no-op result, got %+v", res)
	}
}

func TestCompactOptionsFromSizes_ParsesHumanSizes(t *testing.T) {
	opts, err := CompactOptionsFromSizes("64MB", "1MB", 10, false)
	if err != nil {
		t.Fatalf("CompactOptionsFromSizes: %v", err)
	}
	if opts.TargetFileSize != 64*1000*1000 {
		t.Fatalf("expected 64MB in decimal bytes, got %d", opts.TargetFileSize)
	}
	if opts.MinFileSize != 1*1000*1000 {
		t.Fatalf("expected 1MB in decimal bytes, got %d", opts.MinFileSize)
	}
	if opts.MaxFiles != 10 || opts.DryRun {
		t.Fatalf("unexpected opts: %+v", opts)
	}
}

func TestCompactOptionsFromSizes_RejectsInvalidSize(t *testing.T) {
	if _, err := CompactOptionsFromSizes("not-a-size", "1MB", 10, false); err == nil {
		t.Fatalf("expected an error for an unparseable size string")
	}
}
