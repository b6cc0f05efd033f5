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
)

func TestVacuum_DeletesOnlyPastRetention(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	if err := store.Write(ctx, "data/old.lkcf", []byte("x"), blobstore.WriteOptions{}); err != nil {
		t.Fatalf("seed old: %v", err)
	}
	if err := store.Write(ctx, "data/recent.lkcf", []byte("y"), blobstore.WriteOptions{}); err != nil {
		t.Fatalf("seed recent: %v", err)
	}

	const now = int64(10_000_000)
	removed := []RemovedFile{
		{Path: "data/old.lkcf", RemovedAtMs: 0},
		{Path: "data/recent.lkcf", RemovedAtMs: now - 10},
	}
	listRemoved := func(ctx context.Context) ([]RemovedFile, error) { return removed, nil }

	res, err := Vacuum(ctx, store, listRemoved, now, VacuumOptions{RetentionMs: 1000})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0] != "data/old.lkcf" {
		t.Fatalf("expected only data/old.lkcf deleted, got %v", res.Deleted)
	}
	if res.Scanned != 2 {
		t.Fatalf("expected Scanned == 2, got %d", res.Scanned)
	}

	if _, err := store.Read(ctx, "data/old.lkcf"); err == nil {
		t.Fatalf("expected data/old.lkcf to be gone after vacuum")
	}
	if _, err := store.Read(ctx, "data/recent.lkcf"); err != nil {
		t.Fatalf("expected data/recent.lkcf to survive vacuum, got err: %v", err)
	}
}

func TestVacuum_DryRunDeletesNothing(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	if err := store.Write(ctx, "data/old.lkcf", []byte("x"), blobstore.WriteOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed := []RemovedFile{{Path: "data/old.lkcf", RemovedAtMs: 0}}
	listRemoved := func(ctx context.Context) ([]RemovedFile, error) { return removed, nil }

	res, err := Vacuum(ctx, store, listRemoved, 1_000_000, VacuumOptions{RetentionMs: 1, DryRun: true})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Deleted) != 1 {
		t.Fatalf("expected DryRun to still report the candidate, got %v", res.Deleted)
	}
	if _, err := store.Read(ctx, "data/old.lkcf"); err != nil {
		t.Fatalf("expected dry run to leave data/old.lkcf in place, got err: %v", err)
	}
}

func TestVacuum_DefaultRetentionAppliesWhenUnset(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemory()
	if err := store.Write(ctx, "data/just_removed.lkcf", []byte("x"), blobstore.WriteOptions{}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	removed := []RemovedFile{{Path: "data/just_removed.lkcf", RemovedAtMs: 1_000_000}}
	listRemoved := func(ctx context.Context) ([]RemovedFile, error) { return removed, nil }

	res, err := Vacuum(ctx, store, listRemoved, 1_000_001, VacuumOptions{})
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if len(res.Deleted) != 0 {
		t.Fatalf("expected the default 7-day retention to protect a just-removed file, got %v", res.Deleted)
	}
}
