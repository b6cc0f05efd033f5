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

package commit

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/launix-de/lakedoc/blobstore"
)

// slotKey mimics a pointer-file naming scheme without committing to
// either dialect's exact layout.
func slotKey(version int64) string {
	return fmt.Sprintf("v%020d.json", version)
}

func TestRun_ConcurrentWritersExactlyOneWinnerPerSlot(t *testing.T) {
	store := blobstore.NewMemory()
	ctx := context.Background()

	var currentVersion int64 = 0
	var mu sync.Mutex
	readVersion := func(ctx context.Context) (int64, error) {
		mu.Lock()
		defer mu.Unlock()
		return currentVersion, nil
	}

	const writers = 8
	results := make([]int64, writers)
	var wg sync.WaitGroup
	var successes int64
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			prepare := func(ctx context.Context, readAt int64) (string, []byte, error) {
				return slotKey(readAt + 1), []byte(fmt.Sprintf("writer-%d", i)), nil
			}
			res, err := Run(ctx, store, RetryOptions{MaxRetries: 50}, readVersion, prepare)
			if err != nil {
				t.Errorf("writer %d: Run: %v", i, err)
				return
			}
			mu.Lock()
			if res.Version > currentVersion {
				currentVersion = res.Version
			}
			mu.Unlock()
			results[i] = res.Version
			atomic.AddInt64(&successes, 1)
		}(i)
	}
	wg.Wait()

	if successes != writers {
		t.Fatalf("expected all %d writers to eventually succeed, got %d", writers, successes)
	}
	sorted := append([]int64(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for i, v := range sorted {
		if v != int64(i+1) {
			t.Fatalf("expected versions {1..%d} with no gaps/dupes, got %v", writers, sorted)
		}
	}

	list, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list.Keys) != writers {
		t.Fatalf("expected %d committed slots, got %d: %v", writers, len(list.Keys), list.Keys)
	}
}

func TestRun_ConflictExhaustsRetries(t *testing.T) {
	store := blobstore.NewMemory()
	ctx := context.Background()
	// Pre-occupy the only slot this test will ever target.
	if err := store.Write(ctx, slotKey(1), []byte("existing"), blobstore.WriteOptions{IfNoneMatch: "*"}); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	readVersion := func(ctx context.Context) (int64, error) { return 0, nil }
	prepare := func(ctx context.Context, readAt int64) (string, []byte, error) {
		return slotKey(readAt + 1), []byte("never wins"), nil
	}
	_, err := Run(ctx, store, RetryOptions{MaxRetries: 2, BaseDelay: 0}, readVersion, prepare)
	if err == nil {
		t.Fatal("expected conflict error after exhausting retries")
	}
}
