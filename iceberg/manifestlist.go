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
	"bytes"
	"fmt"

	"github.com/google/uuid"
	"github.com/hamba/avro/v2/ocf"
)

// ManifestRef is one entry of a manifest list: a previously-written
// manifest file plus the snapshot that added it.
type ManifestRef struct {
	Path            string
	Length          int64
	PartitionSpecID int32
	AddedSnapshotID int64
}

// WriteManifestList Avro-encodes the manifest list for a snapshot (spec
// §4.D): the new manifest plus every manifest still live from prior
// snapshots.
func WriteManifestList(manifests []ManifestRef, snapshotID int64) (string, []byte, error) {
	var buf bytes.Buffer
	enc, err := ocf.NewEncoder(manifestFileSchema, &buf, ocf.WithCodec(ocf.Null))
	if err != nil {
		return "", nil, fmt.Errorf("iceberg: new manifest-list encoder: %w", err)
	}
	for _, m := range manifests {
		rec := manifestFileRecord{
			ManifestPath:    m.Path,
			ManifestLength:  m.Length,
			PartitionSpecID: m.PartitionSpecID,
			AddedSnapshotID: m.AddedSnapshotID,
		}
		if err := enc.Encode(rec); err != nil {
			return "", nil, fmt.Errorf("iceberg: encode manifest-list entry: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", nil, fmt.Errorf("iceberg: close manifest-list encoder: %w", err)
	}
	path := fmt.Sprintf("snap-%d-%s.avro", snapshotID, uuid.NewString())
	return path, buf.Bytes(), nil
}

// ReadManifestList decodes a manifest list's entries.
func ReadManifestList(data []byte) ([]ManifestRef, error) {
	dec, err := ocf.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("iceberg: new manifest-list decoder: %w", err)
	}
	var out []ManifestRef
	for dec.HasNext() {
		var rec manifestFileRecord
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("iceberg: decode manifest-list entry: %w", err)
		}
		out = append(out, ManifestRef{
			Path:            rec.ManifestPath,
			Length:          rec.ManifestLength,
			PartitionSpecID: rec.PartitionSpecID,
			AddedSnapshotID: rec.AddedSnapshotID,
		})
	}
	if err := dec.Error(); err != nil {
		return nil, err
	}
	return out, nil
}
