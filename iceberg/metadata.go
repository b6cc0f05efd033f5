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

package iceberg

import (
	"time"

	"github.com/launix-de/lakedoc/columnar"
)

// SnapshotEntry is one row of a table's snapshot history (spec §3
// "Snapshot").
type SnapshotEntry struct {
	SnapshotID       int64
	SequenceNumber   int64
	TimestampMs      int64
	ManifestListPath string
	Operation        string
	ParentSnapshotID *int64
}

// TableMetadata is the JSON body of a `v{N}.metadata.json` pointer file
// (spec §4.D, §6 on-disk layout).
type TableMetadata struct {
	FormatVersion     int             `json:"format-version"`
	TableUUID         string          `json:"table-uuid"`
	Location          string          `json:"location"`
	LastSequenceNumber int64          `json:"last-sequence-number"`
	CurrentSnapshotID int64           `json:"current-snapshot-id"`
	Schema            columnar.Schema `json:"schema"`
	Snapshots         []SnapshotEntry `json:"snapshots"`
	Properties        map[string]string `json:"properties,omitempty"`
}

func (m TableMetadata) currentSnapshot() (SnapshotEntry, bool) {
	for _, s := range m.Snapshots {
		if s.SnapshotID == m.CurrentSnapshotID {
			return s, true
		}
	}
	return SnapshotEntry{}, false
}

// snapshotAt resolves a time-travel request to the latest snapshot
// whose timestamp is <= at (spec §4.G step 1).
func (m TableMetadata) snapshotAt(at time.Time) (SnapshotEntry, bool) {
	var best SnapshotEntry
	found := false
	ms := at.UnixMilli()
	for _, s := range m.Snapshots {
		if s.TimestampMs <= ms && (!found || s.TimestampMs > best.TimestampMs) {
			best = s
			found = true
		}
	}
	return best, found
}

// snapshotByVersion resolves a time-travel request by snapshot id.
func (m TableMetadata) snapshotByVersion(id int64) (SnapshotEntry, bool) {
	for _, s := range m.Snapshots {
		if s.SnapshotID == id {
			return s, true
		}
	}
	return SnapshotEntry{}, false
}
