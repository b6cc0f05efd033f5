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

// Package columnar is the variant + columnar codec (spec §4.B): it turns
// a batch of entities into one column-group data file with per-column,
// per-row-group statistics, and reads such a file back with row-group
// and column projection skipping.
//
// The on-disk framing (footer-at-end with a length + magic trailer so a
// reader can seek straight to the footer without a separate index file)
// follows the convention _examples/other_examples' arcticdb snapshot
// writer uses for its own append-only segment format. The teacher
// (memcp/storage) has no file-level row-group concept at all — its
// StorageInt/StorageString/etc. (storage-int.go, storage-string.go) are
// a single flat column per shard with one set of serialize/deserialize
// primitives (magic byte + LittleEndian fields) and no per-row-group
// stats, no compression, no row-group skip. That per-column
// prepare/scan/init/build/finish pipeline and its LittleEndian framing
// idiom is reused here (see writeFixedColumn), generalized with a
// row-group dimension and lz4 compression neither teacher file has.
package columnar

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"

	"github.com/launix-de/lakedoc/variant"
)

var fileMagic = [4]byte{'L', 'K', 'C', 'F'}

const fileVersion = 1

// Codec picks the per-chunk compressor WriteFile uses. lz4 favors the
// WAL flush path (cheap enough to run on every commit); xz trades more
// CPU for a meaningfully smaller file, worth paying once when
// maintenance.Compact rewrites cold data into longer-lived files.
type Codec uint8

const (
	CodecLZ4 Codec = iota
	CodecXZ
)

// DefaultRowGroupRows bounds how many entities go into one row group; the
// smaller this is, the more selective row-group skipping gets, at the
// cost of per-row-group header overhead.
const DefaultRowGroupRows = 8192

// LogicalType is the closed set of dedicated-column types (spec §4.B);
// LogicalVariant means "only present in the self-describing $data blob",
// matching spec §3's "remaining fields are encoded in a self-describing
// variant column".
type LogicalType uint8

const (
	LogicalVariant LogicalType = iota
	LogicalBool
	LogicalInt
	LogicalFloat
	LogicalString
	LogicalInstant
)

// FieldSchema is one entry of a namespace's append-only schema (spec §3).
type FieldSchema struct {
	FieldID     int
	Name        string
	LogicalType LogicalType
	Required    bool
}

// Schema is the namespace schema: reserved fields plus any shredded
// fields that have earned a dedicated typed column.
type Schema struct {
	Fields []FieldSchema
}

func (s Schema) shreddedNames() []string {
	var names []string
	for _, f := range s.Fields {
		if f.LogicalType != LogicalVariant {
			names = append(names, f.Name)
		}
	}
	return names
}

func (s Schema) byName(name string) (FieldSchema, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSchema{}, false
}

// Row is one entity as a variant map, the wire shape spec §3 describes
// ("a mapping from string keys to variant values").
type Row = *variant.OrderedMap

// ColumnStats is the §4.B statistics invariant: for shredded columns,
// lower-bound <= any stored value <= upper-bound; HasBounds == false
// means "unknown" (never skip).
type ColumnStats struct {
	HasBounds bool
	Min       variant.Value
	Max       variant.Value
	NullCount int64
}

func (s *ColumnStats) observe(v variant.Value) {
	if v.Kind() == variant.KindNull {
		s.NullCount++
		return
	}
	if !s.HasBounds {
		s.Min, s.Max = v, v
		s.HasBounds = true
		return
	}
	if c, ok := variant.Compare(v, s.Min); ok && c < 0 {
		s.Min = v
	}
	if c, ok := variant.Compare(v, s.Max); ok && c > 0 {
		s.Max = v
	}
}

func mergeStats(a, b ColumnStats) ColumnStats {
	out := a
	out.NullCount += b.NullCount
	if !b.HasBounds {
		return out
	}
	if !out.HasBounds {
		return b
	}
	if c, ok := variant.Compare(b.Min, out.Min); ok && c < 0 {
		out.Min = b.Min
	}
	if c, ok := variant.Compare(b.Max, out.Max); ok && c > 0 {
		out.Max = b.Max
	}
	return out
}

// RowGroupMeta describes one row group's placement and per-column stats
// without requiring the column bytes to be decoded.
type RowGroupMeta struct {
	StartRow  int64
	RowCount  int64
	Columns   map[string]ColumnStats
	offset    int64 // byte offset of the row group's chunk block within the file
	length    int64
}

// FileStats is what the commit coordinator turns into an AddFile action
// (spec §3 "Data file", §4.D data_file record).
type FileStats struct {
	Path        string
	SizeBytes   int64
	RecordCount int64
	Columns     map[string]ColumnStats // file-level aggregate across row groups
	RowGroups   []RowGroupMeta
}

type fileFooter struct {
	Schema      Schema
	RecordCount int64
	RowGroups   []rowGroupFooterEntry
}

type rowGroupFooterEntry struct {
	StartRow int64
	RowCount int64
	Offset   int64
	Length   int64
	Columns  map[string]statsWire
}

type statsWire struct {
	HasBounds bool
	Min       json.RawMessage `json:",omitempty"`
	Max       json.RawMessage `json:",omitempty"`
	NullCount int64
	// Offset/Length locate this column's compressed chunk within the
	// file, so a reader can decode a single projected column without
	// touching its siblings.
	Offset int64
	Length int64
}

// chunkSpan is the in-memory counterpart of statsWire's Offset/Length,
// kept separate from ColumnStats so writeRowGroup doesn't need to know
// about JSON wire framing.
type chunkSpan struct {
	Offset int64
	Length int64
}

func encodeStats(s ColumnStats, span chunkSpan) (statsWire, error) {
	w := statsWire{HasBounds: s.HasBounds, NullCount: s.NullCount, Offset: span.Offset, Length: span.Length}
	if s.HasBounds {
		minB, err := variant.ToJSON(s.Min)
		if err != nil {
			return w, err
		}
		maxB, err := variant.ToJSON(s.Max)
		if err != nil {
			return w, err
		}
		w.Min, w.Max = minB, maxB
	}
	return w, nil
}

func decodeStats(w statsWire) (ColumnStats, error) {
	s := ColumnStats{HasBounds: w.HasBounds, NullCount: w.NullCount}
	if w.HasBounds {
		min, err := variant.FromJSON(w.Min)
		if err != nil {
			return s, err
		}
		max, err := variant.FromJSON(w.Max)
		if err != nil {
			return s, err
		}
		s.Min, s.Max = min, max
	}
	return s, nil
}

// GenerateFilePath builds a content-addressed-looking data file name
// ending in the canonical extension (spec §4.B). Lakedoc's canonical
// extension is ".lkcf"; Parquet's ".parquet" is reserved for external
// compatibility shims that don't exist in this core (see DESIGN.md).
func GenerateFilePath() string {
	var buf [16]byte
	rand.Read(buf[:])
	return fmt.Sprintf("%x.lkcf", buf)
}

// WriteFile encodes rows into one column-group file and returns both the
// bytes and the statistics the commit coordinator needs for its AddFile
// action. It always compresses with CodecLZ4, the cheap default the WAL
// flush path (wal.WAL.Flush) needs at commit-time latency; callers
// rewriting already-durable data for longer-term storage (maintenance.
// Compact) use WriteFileWithCodec(..., CodecXZ) instead.
func WriteFile(rows []Row, schema Schema, rowGroupRows int) (FileStats, []byte, error) {
	return WriteFileWithCodec(rows, schema, rowGroupRows, CodecLZ4)
}

// WriteFileWithCodec is WriteFile with an explicit per-chunk compressor
// (spec §11 domain stack: CodecLZ4 for the hot WAL path, CodecXZ for
// maintenance.Compact's cold rewrite, trading CPU for a smaller file
// since it's paid once rather than on every flush).
func WriteFileWithCodec(rows []Row, schema Schema, rowGroupRows int, codec Codec) (FileStats, []byte, error) {
	if rowGroupRows <= 0 {
		rowGroupRows = DefaultRowGroupRows
	}
	var out bytes.Buffer
	out.Write(fileMagic[:])
	binary.Write(&out, binary.LittleEndian, uint32(fileVersion))

	shredded := schema.shreddedNames()
	footer := fileFooter{Schema: schema, RecordCount: int64(len(rows))}
	fileStats := FileStats{Columns: make(map[string]ColumnStats), RecordCount: int64(len(rows))}

	for start := 0; start < len(rows); start += rowGroupRows {
		end := start + rowGroupRows
		if end > len(rows) {
			end = len(rows)
		}
		group := rows[start:end]
		offset := int64(out.Len())
		columnStats, spans, err := writeRowGroup(&out, group, shredded, codec)
		if err != nil {
			return FileStats{}, nil, err
		}
		length := int64(out.Len()) - offset

		entry := rowGroupFooterEntry{
			StartRow: int64(start),
			RowCount: int64(len(group)),
			Offset:   offset,
			Length:   length,
			Columns:  make(map[string]statsWire),
		}
		meta := RowGroupMeta{StartRow: int64(start), RowCount: int64(len(group)), Columns: columnStats, offset: offset, length: length}
		for name, stats := range columnStats {
			wire, err := encodeStats(stats, spans[name])
			if err != nil {
				return FileStats{}, nil, err
			}
			entry.Columns[name] = wire
			fileStats.Columns[name] = mergeStats(fileStats.Columns[name], stats)
		}
		footer.RowGroups = append(footer.RowGroups, entry)
		fileStats.RowGroups = append(fileStats.RowGroups, meta)
	}

	footerBytes, err := json.Marshal(footer)
	if err != nil {
		return FileStats{}, nil, err
	}
	footerOffset := out.Len()
	out.Write(footerBytes)
	binary.Write(&out, binary.LittleEndian, uint32(len(footerBytes)))
	binary.Write(&out, binary.LittleEndian, uint32(footerOffset))
	out.Write(fileMagic[:])

	fileStats.SizeBytes = int64(out.Len())
	return fileStats, out.Bytes(), nil
}

// writeRowGroup writes one row group's column chunks (one per shredded
// field, plus the catch-all "$data" variant column) and returns their
// statistics.
func writeRowGroup(out *bytes.Buffer, rows []Row, shredded []string, codec Codec) (map[string]ColumnStats, map[string]chunkSpan, error) {
	stats := make(map[string]ColumnStats)
	spans := make(map[string]chunkSpan)

	for _, name := range shredded {
		values := make([]variant.Value, len(rows))
		for i, row := range rows {
			v, ok := row.Get(name)
			if !ok {
				v = variant.Null()
			}
			values[i] = v
		}
		cs, encoded, err := encodeShreddedColumn(values, codec)
		if err != nil {
			return nil, nil, err
		}
		stats[name] = cs
		spans[name] = writeChunk(out, encoded)
	}

	// $data: remaining (non-shredded) fields per row, self-describing.
	dataValues := make([]variant.Value, len(rows))
	for i, row := range rows {
		residual := variant.NewOrderedMap()
		for _, k := range row.Keys() {
			isShredded := false
			for _, s := range shredded {
				if s == k {
					isShredded = true
					break
				}
			}
			if !isShredded {
				v, _ := row.Get(k)
				residual.Set(k, v)
			}
		}
		dataValues[i] = variant.Map(residual)
	}
	var dataBuf bytes.Buffer
	for _, v := range dataValues {
		b := variant.EncodeBinary(v)
		binary.Write(&dataBuf, binary.LittleEndian, uint32(len(b)))
		dataBuf.Write(b)
	}
	compressed := compress(dataBuf.Bytes(), codec)
	stats["$data"] = ColumnStats{} // variant columns never carry bounds (spec §4.B)
	spans["$data"] = writeChunk(out, compressed)
	return stats, spans, nil
}

// writeChunk appends a length-prefixed chunk and reports where its
// compressed payload landed, so the footer can point a later targeted
// read straight at it.
func writeChunk(out *bytes.Buffer, data []byte) chunkSpan {
	binary.Write(out, binary.LittleEndian, uint32(len(data)))
	offset := int64(out.Len())
	out.Write(data)
	return chunkSpan{Offset: offset, Length: int64(len(data))}
}

// compress prefixes the chunk with a one-byte Codec tag so decompress
// is self-describing per chunk — a file written by maintenance.Compact
// under CodecXZ sits in the same file format a wal.WAL flush under
// CodecLZ4 produces, and a reader never needs to know which was used.
func compress(raw []byte, codec Codec) []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(codec))
	switch codec {
	case CodecXZ:
		w, err := xz.NewWriter(&buf)
		if err != nil {
			// xz.NewWriter only fails on invalid config; this call site
			// never varies config, so this would be a programmer error.
			panic(fmt.Sprintf("columnar: xz.NewWriter: %v", err))
		}
		w.Write(raw)
		w.Close()
	default:
		w := lz4.NewWriter(&buf)
		w.Write(raw)
		w.Close()
	}
	return buf.Bytes()
}

func decompress(compressed []byte) ([]byte, error) {
	if len(compressed) == 0 {
		return nil, fmt.Errorf("columnar: empty compressed chunk")
	}
	codec := Codec(compressed[0])
	body := compressed[1:]
	var r io.Reader
	switch codec {
	case CodecXZ:
		xr, err := xz.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("columnar: xz reader: %w", err)
		}
		r = xr
	case CodecLZ4:
		r = lz4.NewReader(bytes.NewReader(body))
	default:
		return nil, fmt.Errorf("columnar: unknown chunk codec %d", codec)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeShreddedColumn writes a fixed-width/length-prefixed column
// depending on the declared kind observed across the batch, following
// the teacher's storage-int.go/storage-string.go convention of a null
// bitmap plus raw LittleEndian values, but per row group instead of per
// shard and compressed with the caller's codec instead of raw.
func encodeShreddedColumn(values []variant.Value, codec Codec) (ColumnStats, []byte, error) {
	var stats ColumnStats
	for _, v := range values {
		stats.observe(v)
	}

	kind := variant.KindNull
	for _, v := range values {
		if v.Kind() != variant.KindNull {
			kind = v.Kind()
			break
		}
	}

	var raw bytes.Buffer
	binary.Write(&raw, binary.LittleEndian, uint8(kind))
	for _, v := range values {
		null := uint8(0)
		if v.Kind() == variant.KindNull {
			null = 1
		}
		raw.WriteByte(null)
		if null == 1 {
			continue
		}
		switch kind {
		case variant.KindBool:
			b := uint8(0)
			if v.Bool() {
				b = 1
			}
			raw.WriteByte(b)
		case variant.KindInt:
			binary.Write(&raw, binary.LittleEndian, v.Int())
		case variant.KindFloat:
			binary.Write(&raw, binary.LittleEndian, v.Float())
		case variant.KindString:
			s := []byte(v.Str())
			binary.Write(&raw, binary.LittleEndian, uint32(len(s)))
			raw.Write(s)
		case variant.KindInstant:
			binary.Write(&raw, binary.LittleEndian, v.Time().UnixMicro())
		default:
			// arrays/maps declared shredded degrade to binary variant encoding
			b := variant.EncodeBinary(v)
			binary.Write(&raw, binary.LittleEndian, uint32(len(b)))
			raw.Write(b)
		}
	}
	return stats, compress(raw.Bytes(), codec), nil
}

func decodeShreddedColumn(compressed []byte, rowCount int) ([]variant.Value, error) {
	raw, err := decompress(compressed)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(raw)
	var kindByte uint8
	if err := binary.Read(r, binary.LittleEndian, &kindByte); err != nil {
		return nil, err
	}
	kind := variant.Kind(kindByte)
	out := make([]variant.Value, rowCount)
	for i := 0; i < rowCount; i++ {
		var null uint8
		if err := binary.Read(r, binary.LittleEndian, &null); err != nil {
			return nil, err
		}
		if null == 1 {
			out[i] = variant.Null()
			continue
		}
		switch kind {
		case variant.KindBool:
			var b uint8
			binary.Read(r, binary.LittleEndian, &b)
			out[i] = variant.Bool(b == 1)
		case variant.KindInt:
			var v int64
			binary.Read(r, binary.LittleEndian, &v)
			out[i] = variant.Int(v)
		case variant.KindFloat:
			var v float64
			binary.Read(r, binary.LittleEndian, &v)
			out[i] = variant.Float(v)
		case variant.KindString:
			var n uint32
			binary.Read(r, binary.LittleEndian, &n)
			s := make([]byte, n)
			io.ReadFull(r, s)
			out[i] = variant.String(string(s))
		case variant.KindInstant:
			var micros int64
			binary.Read(r, binary.LittleEndian, &micros)
			out[i] = variant.Instant(time.UnixMicro(micros))
		default:
			var n uint32
			binary.Read(r, binary.LittleEndian, &n)
			b := make([]byte, n)
			io.ReadFull(r, b)
			v, _, err := variant.DecodeBinary(b)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
	}
	return out, nil
}
