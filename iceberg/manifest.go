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

// Package iceberg implements the Iceberg-dialect commit coordinator
// (spec §4.D): Avro-encoded manifests and manifest lists plus a JSON
// table-metadata pointer file, advanced under the shared commit.Run OCC
// loop (spec §4.E).
//
// The teacher has no Iceberg/Delta concept at all — memcp persists
// tables as its own shard files (storage/table.go, storage/shard.go).
// What carries over from the teacher is the persistence layer's idiom
// of a capability-backed store plus one dedicated writer type per
// on-disk artifact (PersistencyMode/S3Factory in storage/persistence*.go
// become, here, one encoder per Avro record type).
package iceberg

import (
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/hamba/avro/v2/ocf"

	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/commit"
	"github.com/launix-de/lakedoc/variant"
)

// ManifestSummary is what the coordinator needs back from writing a
// manifest file: its path and byte length, for the manifest-list entry
// that references it (spec §4.D).
type ManifestSummary struct {
	Path   string
	Length int64
}

// WriteManifest Avro-encodes one manifest file (spec §4.D) covering the
// given adds/removes at sequenceNumber, and returns its bytes plus a
// random uuid-named path.
func WriteManifest(adds []commit.AddFile, removes []commit.RemoveFile, snapshotID, sequenceNumber int64) (ManifestSummary, []byte, error) {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(manifestEntrySchema, &buf, ocf.WithCodec(ocf.Null))
	if err != nil {
		return ManifestSummary{}, nil, fmt.Errorf("iceberg: new manifest encoder: %w", err)
	}

	seq := sequenceNumber
	snap := snapshotID
	for _, add := range adds {
		rec := manifestEntryRecord{
			Status:             int32(statusAdded),
			SnapshotID:         &snap,
			SequenceNumber:     &seq,
			FileSequenceNumber: &seq,
			DataFile: dataFileRecord{
				FilePath:        add.Path,
				FileFormat:      "PARQUET",
				RecordCount:     add.RecordCount,
				FileSizeInBytes: add.SizeBytes,
				LowerBounds:     boundsMap(add.Stats, true),
				UpperBounds:     boundsMap(add.Stats, false),
				NullValueCounts: nullCountsMap(add.Stats),
			},
		}
		if err := enc.Encode(rec); err != nil {
			return ManifestSummary{}, nil, fmt.Errorf("iceberg: encode manifest entry: %w", err)
		}
	}
	for _, rm := range removes {
		rec := manifestEntryRecord{
			Status:             int32(statusDeleted),
			SnapshotID:         &snap,
			SequenceNumber:     &seq,
			FileSequenceNumber: &seq,
			DataFile: dataFileRecord{
				FilePath:   rm.Path,
				FileFormat: "PARQUET",
			},
		}
		if err := enc.Encode(rec); err != nil {
			return ManifestSummary{}, nil, fmt.Errorf("iceberg: encode manifest entry: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return ManifestSummary{}, nil, fmt.Errorf("iceberg: close manifest encoder: %w", err)
	}

	path := fmt.Sprintf("%s-m0.avro", uuid.NewString())
	data := buf.Bytes()
	return ManifestSummary{Path: path, Length: int64(len(data))}, data, nil
}

// ReadManifest decodes a manifest file's entries.
func ReadManifest(data []byte) ([]manifestEntryRecord, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("iceberg: new manifest decoder: %w", err)
	}
	var out []manifestEntryRecord
	for dec.HasNext() {
		var rec manifestEntryRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("iceberg: decode manifest entry: %w", err)
		}
		out = append(out, rec)
	}
	if err := dec.Error(); err != nil {
		return nil, err
	}
	return out, nil
}

// boundsMap encodes each shredded column's min/max variant.Value with
// the binary variant codec (columnar package's $data encoding), since
// Avro's "bytes" type for lower_bounds/upper_bounds is opaque per the
// Iceberg spec's own single-value serialization convention; lakedoc
// reuses its own binary encoding rather than inventing a second one.
func boundsMap(stats map[string]columnar.ColumnStats, lower bool) map[string][]byte {
	if len(stats) == 0 {
		return nil
	}
	out := make(map[string][]byte, len(stats))
	for name, s := range stats {
		if !s.HasBounds {
			continue
		}
		v := s.Max
		if lower {
			v = s.Min
		}
		out[name] = variant.EncodeBinary(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nullCountsMap(stats map[string]columnar.ColumnStats) map[string]int64 {
	if len(stats) == 0 {
		return nil
	}
	out := make(map[string]int64, len(stats))
	for name, s := range stats {
		out[name] = s.NullCount
	}
	return out
}
