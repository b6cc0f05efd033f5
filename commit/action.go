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

// Package commit holds the action vocabulary shared by both the Iceberg
// and the Delta commit coordinators (spec §3 "Commit record", §4.D,
// §4.D') plus the optimistic-concurrency retry loop (§4.E) that both
// dialects run underneath their own log/manifest framing.
package commit

import (
	"time"

	"github.com/launix-de/lakedoc/columnar"
)

// AddFile is the action produced by a flush or a compaction rewrite: one
// new immutable data file enters the live set.
type AddFile struct {
	Path        string
	SizeBytes   int64
	RecordCount int64
	Stats       map[string]columnar.ColumnStats
	DataChange  bool // false for compaction/OPTIMIZE rewrites (spec §4.F invariant i)
}

// RemoveFile is a logical tombstone: the file leaves the live set as of
// this commit but its bytes are untouched until vacuum (spec §4.F).
type RemoveFile struct {
	Path              string
	DeletionTimestamp time.Time
}

// Protocol appears only in a table's first commit (spec §4.D').
type Protocol struct {
	MinReaderVersion int
	MinWriterVersion int
}

// MetaData appears only in a table's first commit, carrying the
// namespace schema as of that commit (spec §4.D').
type MetaData struct {
	SchemaJSON string
}

// CommitInfo is mandatory on every commit (spec §3 "Commit record").
type CommitInfo struct {
	Timestamp   time.Time
	Operation   string // "WRITE", "OPTIMIZE", "DELETE", ...
	ReadVersion int64
}

// Body is the full set of actions one commit carries. Protocol/MetaData
// are non-nil only on a table's first commit (spec §4.D' invariant).
type Body struct {
	Protocol   *Protocol
	MetaData   *MetaData
	Adds       []AddFile
	Removes    []RemoveFile
	CommitInfo CommitInfo
}
