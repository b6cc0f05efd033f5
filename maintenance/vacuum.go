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

	"github.com/launix-de/lakedoc/blobstore"
)

// DefaultRetentionMs is seven days, the default spec §4.F names.
const DefaultRetentionMs = int64(7 * 24 * 60 * 60 * 1000)

// RemovedFile is a logically-removed file with the timestamp of its
// removal, the dialect-agnostic shape iceberg.RemovedFile/
// delta.RemovedFile are adapted to at the call site.
type RemovedFile struct {
	Path        string
	RemovedAtMs int64
}

// ListRemovedFiles enumerates files logically removed from the current
// snapshot, each with its removal timestamp.
type ListRemovedFiles func(ctx context.Context) ([]RemovedFile, error)

// VacuumOptions parameterizes vacuum (spec §4.F).
type VacuumOptions struct {
	RetentionMs int64
	DryRun      bool
}

// VacuumResult reports what Vacuum deleted or, for a dry run, would
// delete.
type VacuumResult struct {
	Deleted []string
	Scanned int
}

// Vacuum deletes blobs not referenced by any live snapshot whose
// logical-remove timestamp is older than RetentionMs (spec §4.F). A
// file that is part of ListLiveFiles' current set is never a candidate
// — it literally isn't in ListRemovedFiles' output, since that set is
// computed as "present in history but no longer live" by the dialect
// coordinator, so the "never delete a live file even at
// retentionMs=0" invariant holds structurally, not by a runtime check
// here.
func Vacuum(ctx context.Context, store blobstore.Store, listRemoved ListRemovedFiles, nowMs int64, opts VacuumOptions) (VacuumResult, error) {
	retention := opts.RetentionMs
	if retention <= 0 {
		retention = DefaultRetentionMs
	}

	removed, err := listRemoved(ctx)
	if err != nil {
		return VacuumResult{}, err
	}

	var toDelete []string
	for _, r := range removed {
		if nowMs-r.RemovedAtMs >= retention {
			toDelete = append(toDelete, r.Path)
		}
	}

	result := VacuumResult{Deleted: toDelete, Scanned: len(removed)}
	if opts.DryRun {
		return result, nil
	}
	for _, path := range toDelete {
		if err := store.Delete(ctx, path); err != nil {
			return result, err
		}
	}
	return result, nil
}
