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

package columnar

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/launix-de/lakedoc/variant"
)

// RowGroupFilter is implemented by the pushdown package's lowered
// predicates (spec §4.H): given a row group's per-column stats, MayMatch
// reports whether any row in the group could satisfy the predicate. A
// false return lets the reader skip decoding the row group entirely
// (spec testable property 8).
type RowGroupFilter interface {
	MayMatch(stats map[string]ColumnStats) bool
}

// Reader holds a parsed file footer and the raw file bytes, ready to
// decode individual row groups on demand.
type Reader struct {
	data   []byte
	Schema Schema
	footer fileFooter
}

// OpenReader parses the trailer and footer of a column-group file without
// decoding any row group payload (spec §4.G step 3: "resolve schema
// before touching any data bytes").
func OpenReader(data []byte) (*Reader, error) {
	if len(data) < len(fileMagic)*2+8 {
		return nil, fmt.Errorf("columnar: file too small to contain a footer")
	}
	if !bytes.Equal(data[:len(fileMagic)], fileMagic[:]) {
		return nil, fmt.Errorf("columnar: bad magic at file start")
	}
	tail := data[len(data)-len(fileMagic):]
	if !bytes.Equal(tail, fileMagic[:]) {
		return nil, fmt.Errorf("columnar: bad magic at file end")
	}
	trailerStart := len(data) - len(fileMagic) - 8
	footerLen := binary.LittleEndian.Uint32(data[trailerStart : trailerStart+4])
	footerOffset := binary.LittleEndian.Uint32(data[trailerStart+4 : trailerStart+8])
	if int64(footerOffset)+int64(footerLen) > int64(trailerStart) {
		return nil, fmt.Errorf("columnar: footer framing out of bounds")
	}
	footerBytes := data[footerOffset : int(footerOffset)+int(footerLen)]
	var footer fileFooter
	if err := json.Unmarshal(footerBytes, &footer); err != nil {
		return nil, fmt.Errorf("columnar: decode footer: %w", err)
	}
	return &Reader{data: data, Schema: footer.Schema, footer: footer}, nil
}

// RecordCount is the file-level row count recorded in the footer.
func (r *Reader) RecordCount() int64 { return r.footer.RecordCount }

// RowGroupMetas exposes each row group's bounds and decoded statistics,
// the shape the commit coordinator and the pushdown skip evaluator both
// need without decoding any column payload.
func (r *Reader) RowGroupMetas() ([]RowGroupMeta, error) {
	out := make([]RowGroupMeta, len(r.footer.RowGroups))
	for i, entry := range r.footer.RowGroups {
		cols := make(map[string]ColumnStats, len(entry.Columns))
		for name, wire := range entry.Columns {
			cs, err := decodeStats(wire)
			if err != nil {
				return nil, err
			}
			cols[name] = cs
		}
		out[i] = RowGroupMeta{
			StartRow: entry.StartRow,
			RowCount: entry.RowCount,
			Columns:  cols,
			offset:   entry.Offset,
			length:   entry.Length,
		}
	}
	return out, nil
}

// ScanResult reports how many row groups a Scan decoded versus skipped
// via stats alone, for the caller to surface as a query-plan stat (spec
// testable property 8).
type ScanResult struct {
	Rows    []Row
	Scanned int
	Skipped int
}

// Scan decodes every row group not excluded by filter (nil means "decode
// everything"), applying projectColumns to skip decoding shredded
// columns nobody asked for. The residual "$data" variant column is
// always decoded since it may hold any field not in projectColumns.
func (r *Reader) Scan(filter RowGroupFilter, projectColumns []string) (ScanResult, error) {
	metas, err := r.RowGroupMetas()
	if err != nil {
		return ScanResult{}, err
	}
	var result ScanResult
	for i, meta := range metas {
		if filter != nil && !filter.MayMatch(meta.Columns) {
			result.Skipped++
			continue
		}
		result.Scanned++
		entry := r.footer.RowGroups[i]
		rows, err := r.decodeRowGroup(entry, projectColumns)
		if err != nil {
			return ScanResult{}, err
		}
		result.Rows = append(result.Rows, rows...)
	}
	return result, nil
}

func wantsColumn(name string, projectColumns []string) bool {
	if projectColumns == nil {
		return true
	}
	for _, c := range projectColumns {
		if c == name {
			return true
		}
	}
	return false
}

func (r *Reader) decodeRowGroup(entry rowGroupFooterEntry, projectColumns []string) ([]Row, error) {
	rowCount := int(entry.RowCount)
	shreddedCols := make(map[string][]variant.Value, len(entry.Columns))
	for name, wire := range entry.Columns {
		if name == "$data" || !wantsColumn(name, projectColumns) {
			continue
		}
		chunk := r.data[wire.Offset : wire.Offset+wire.Length]
		values, err := decodeShreddedColumn(chunk, rowCount)
		if err != nil {
			return nil, fmt.Errorf("columnar: decode column %q: %w", name, err)
		}
		shreddedCols[name] = values
	}

	var dataValues []variant.Value
	if dataWire, ok := entry.Columns["$data"]; ok {
		chunk := r.data[dataWire.Offset : dataWire.Offset+dataWire.Length]
		var err error
		dataValues, err = decodeDataColumn(chunk, rowCount)
		if err != nil {
			return nil, fmt.Errorf("columnar: decode $data column: %w", err)
		}
	}

	rows := make([]Row, rowCount)
	for i := 0; i < rowCount; i++ {
		row := variant.NewOrderedMap()
		if dataValues != nil && i < len(dataValues) {
			if residual := dataValues[i].MapValue(); residual != nil {
				for _, k := range residual.Keys() {
					v, _ := residual.Get(k)
					row.Set(k, v)
				}
			}
		}
		for name, values := range shreddedCols {
			row.Set(name, values[i])
		}
		rows[i] = row
	}
	return rows, nil
}

// decodeDataColumn is the inverse of writeRowGroup's residual "$data"
// encoding: a sequence of length-prefixed EncodeBinary payloads, one per
// row, each itself a variant map of whichever fields weren't shredded.
func decodeDataColumn(compressed []byte, rowCount int) ([]variant.Value, error) {
	raw, err := decompress(compressed)
	if err != nil {
		return nil, err
	}
	out := make([]variant.Value, rowCount)
	pos := 0
	for i := 0; i < rowCount; i++ {
		if pos+4 > len(raw) {
			return nil, fmt.Errorf("columnar: truncated $data length prefix at row %d", i)
		}
		n := int(binary.LittleEndian.Uint32(raw[pos : pos+4]))
		pos += 4
		if pos+n > len(raw) {
			return nil, fmt.Errorf("columnar: truncated $data payload at row %d", i)
		}
		v, _, err := variant.DecodeBinary(raw[pos : pos+n])
		if err != nil {
			return nil, err
		}
		out[i] = v
		pos += n
	}
	return out, nil
}
