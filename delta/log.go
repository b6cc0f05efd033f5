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

// Package delta implements the Delta Lake-dialect commit coordinator
// (spec §4.D'): newline-delimited JSON action log files named by a
// 20-digit zero-padded version, with periodic checkpointing. It reuses
// the action vocabulary and OCC retry loop in package commit, which are
// shared with the Iceberg dialect (spec §4.E is dialect-agnostic).
package delta

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/commit"
)

// action is the tagged union of one log line; exactly one field is
// non-nil per line, matching the action kinds spec §4.D' enumerates.
type action struct {
	Protocol   *protocolAction   `json:"protocol,omitempty"`
	MetaData   *metaDataAction   `json:"metaData,omitempty"`
	Add        *addAction        `json:"add,omitempty"`
	Remove     *removeAction     `json:"remove,omitempty"`
	CommitInfo *commitInfoAction `json:"commitInfo,omitempty"`
}

type protocolAction struct {
	MinReaderVersion int `json:"minReaderVersion"`
	MinWriterVersion int `json:"minWriterVersion"`
}

type metaDataAction struct {
	ID           string `json:"id"`
	SchemaString string `json:"schemaString"`
	CreatedTime  int64  `json:"createdTime"`
}

type addAction struct {
	Path             string `json:"path"`
	Size             int64  `json:"size"`
	ModificationTime int64  `json:"modificationTime"`
	DataChange       bool   `json:"dataChange"`
	Stats            string `json:"stats,omitempty"` // JSON-encoded addStatsJSON, matching Delta's on-disk convention
}

type addStatsJSON struct {
	NumRecords int64            `json:"numRecords"`
	NullCount  map[string]int64 `json:"nullCount,omitempty"`
}

type removeAction struct {
	Path              string `json:"path"`
	DeletionTimestamp int64  `json:"deletionTimestamp"`
	DataChange        bool   `json:"dataChange"`
}

type commitInfoAction struct {
	Timestamp   int64  `json:"timestamp"`
	Operation   string `json:"operation"`
	ReadVersion int64  `json:"readVersion"`
}

// commitFileName renders the canonical 20-digit zero-padded Delta
// commit file name (spec §4.D').
func commitFileName(version int64) string {
	return fmt.Sprintf("%020d.json", version)
}

func checkpointFileName(version int64) string {
	return fmt.Sprintf("%020d.checkpoint.json", version)
}

// toActions renders a commit.Body in the canonical Delta line order:
// protocol, metaData, remove..., add..., commitInfo. Protocol/MetaData
// are only present on the table's first commit (spec §4.D').
func toActions(body commit.Body) ([]action, error) {
	var out []action
	if body.Protocol != nil {
		out = append(out, action{Protocol: &protocolAction{
			MinReaderVersion: body.Protocol.MinReaderVersion,
			MinWriterVersion: body.Protocol.MinWriterVersion,
		}})
	}
	if body.MetaData != nil {
		out = append(out, action{MetaData: &metaDataAction{
			ID:           fmt.Sprintf("%x", body.CommitInfo.Timestamp.UnixNano()),
			SchemaString: body.MetaData.SchemaJSON,
			CreatedTime:  body.CommitInfo.Timestamp.UnixMilli(),
		}})
	}
	for _, r := range body.Removes {
		out = append(out, action{Remove: &removeAction{
			Path:              r.Path,
			DeletionTimestamp: r.DeletionTimestamp.UnixMilli(),
			DataChange:        true,
		}})
	}
	for _, a := range body.Adds {
		stats, err := json.Marshal(addStatsJSON{NumRecords: a.RecordCount, NullCount: nullCounts(a.Stats)})
		if err != nil {
			return nil, err
		}
		out = append(out, action{Add: &addAction{
			Path:             a.Path,
			Size:             a.SizeBytes,
			ModificationTime: body.CommitInfo.Timestamp.UnixMilli(),
			DataChange:       a.DataChange,
			Stats:            string(stats),
		}})
	}
	out = append(out, action{CommitInfo: &commitInfoAction{
		Timestamp:   body.CommitInfo.Timestamp.UnixMilli(),
		Operation:   body.CommitInfo.Operation,
		ReadVersion: body.CommitInfo.ReadVersion,
	}})
	return out, nil
}

func nullCounts(stats map[string]columnar.ColumnStats) map[string]int64 {
	if len(stats) == 0 {
		return nil
	}
	out := make(map[string]int64, len(stats))
	for name, s := range stats {
		out[name] = s.NullCount
	}
	return out
}

// encodeActions renders one commit body as newline-delimited JSON.
func encodeActions(acts []action) ([]byte, error) {
	var buf bytes.Buffer
	for _, a := range acts {
		line, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func decodeActions(data []byte) ([]action, error) {
	var out []action
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var a action
		if err := json.Unmarshal(line, &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
