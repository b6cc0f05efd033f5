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

// Package maintenance implements compaction (OPTIMIZE) and vacuum (spec
// §4.F) against whichever dialect coordinator the caller binds via the
// small functional adapters below — the same pattern package wal uses
// to stay dialect-agnostic, so this package depends on neither iceberg
// nor delta directly.
package maintenance

import (
	"context"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/columnar"
	"github.com/launix-de/lakedoc/commit"
	"github.com/launix-de/lakedoc/errs"

	"github.com/docker/go-units"
	"golang.org/x/sync/errgroup"
)

// ParseSize parses a human-readable byte size ("64MB", "1GiB") for the
// TargetFileSize/MinFileSize knobs an embedding application configures,
// the same size-string convention the teacher's own go.mod dependency
// on github.com/docker/go-units exists to serve.
func ParseSize(s string) (int64, error) {
	return units.FromHumanSize(s)
}

// LiveFile is the dialect-agnostic shape maintenance needs from a live
// data file; iceberg.LiveFile/delta.LiveFile are adapted to this at the
// call site.
type LiveFile struct {
	Path        string
	SizeBytes   int64
	RecordCount int64
}

// ListLiveFiles returns the current snapshot's live file set.
type ListLiveFiles func(ctx context.Context) ([]LiveFile, error)

// CommitFunc hands adds/removes to a dialect's commit coordinator
// (shared with package wal).
type CommitFunc func(ctx context.Context, adds []commit.AddFile, removes []commit.RemoveFile, operation string) (int64, error)

// CompactOptions parameterizes OPTIMIZE (spec §4.F).
type CompactOptions struct {
	TargetFileSize int64
	MinFileSize    int64
	MaxFiles       int
	DryRun         bool
}

// CompactOptionsFromSizes builds a CompactOptions from human-readable
// size strings (§10 "docker/go-units parses human-readable byte sizes
// for targetFileSize/minFileSize knobs exposed to embedding
// applications"), rather than requiring callers to compute byte counts
// themselves.
func CompactOptionsFromSizes(targetFileSize, minFileSize string, maxFiles int, dryRun bool) (CompactOptions, error) {
	target, err := ParseSize(targetFileSize)
	if err != nil {
		return CompactOptions{}, errs.Invalidf(errs.SubjectQuery, "parse targetFileSize %q: %v", targetFileSize, err)
	}
	minSize, err := ParseSize(minFileSize)
	if err != nil {
		return CompactOptions{}, errs.Invalidf(errs.SubjectQuery, "parse minFileSize %q: %v", minFileSize, err)
	}
	return CompactOptions{TargetFileSize: target, MinFileSize: minSize, MaxFiles: maxFiles, DryRun: dryRun}, nil
}

// CompactResult reports what Compact did or, for a dry run, would do.
type CompactResult struct {
	InputFiles  []string
	FilesAdded  int
	Version     int64 // -1 when nothing was committed (dry run or nothing to do)
}

// Compact rewrites up to MaxFiles live files smaller than MinFileSize
// into one or more ~TargetFileSize files, emitting a single commit with
// a remove per input and an add per output (spec §4.F invariants i–iii):
// the row set is unchanged, removes are logical (time travel to earlier
// versions still sees the originals), and DryRun only counts.
func Compact(ctx context.Context, store blobstore.Store, schema columnar.Schema, dataPrefix string, list ListLiveFiles, commitFn CommitFunc, opts CompactOptions) (CompactResult, error) {
	files, err := list(ctx)
	if err != nil {
		return CompactResult{}, err
	}

	var small []LiveFile
	for _, f := range files {
		if f.SizeBytes < opts.MinFileSize {
			small = append(small, f)
			if opts.MaxFiles > 0 && len(small) >= opts.MaxFiles {
				break
			}
		}
	}
	if len(small) == 0 {
		return CompactResult{Version: -1}, nil
	}

	inputPaths := make([]string, len(small))
	for i, f := range small {
		inputPaths[i] = f.Path
	}
	if opts.DryRun {
		return CompactResult{InputFiles: inputPaths, Version: -1}, nil
	}

	rows, totalBytes, err := readAll(ctx, store, small)
	if err != nil {
		return CompactResult{}, err
	}
	if len(rows) == 0 {
		return CompactResult{InputFiles: inputPaths, Version: -1}, nil
	}

	rowsPerFile := len(rows)
	if opts.TargetFileSize > 0 && totalBytes > 0 {
		avgBytes := float64(totalBytes) / float64(len(rows))
		if n := int(float64(opts.TargetFileSize) / avgBytes); n > 0 {
			rowsPerFile = n
		}
	}

	var adds []commit.AddFile
	for start := 0; start < len(rows); start += rowsPerFile {
		end := start + rowsPerFile
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		path := columnar.GenerateFilePath()
		// Compaction rewrites cold, already-durable rows into longer-lived
		// files, so it's worth paying xz's higher compression cost once
		// here rather than lz4's cheaper-but-larger output the hot WAL
		// flush path (wal.WAL.Flush) uses (spec §11 domain stack).
		stats, data, err := columnar.WriteFileWithCodec(chunk, schema, 0, columnar.CodecXZ)
		if err != nil {
			return CompactResult{}, err
		}
		key := dataPrefix + path
		if err := store.Write(ctx, key, data, blobstore.WriteOptions{}); err != nil {
			return CompactResult{}, err
		}
		adds = append(adds, commit.AddFile{
			Path:        key,
			SizeBytes:   stats.SizeBytes,
			RecordCount: stats.RecordCount,
			Stats:       stats.Columns,
			DataChange:  false, // compaction rewrites carry no new data (spec §4.F invariant i)
		})
	}

	removes := make([]commit.RemoveFile, len(small))
	for i, f := range small {
		removes[i] = commit.RemoveFile{Path: f.Path}
	}

	version, err := commitFn(ctx, adds, removes, "OPTIMIZE")
	if err != nil {
		return CompactResult{}, err
	}
	return CompactResult{InputFiles: inputPaths, FilesAdded: len(adds), Version: version}, nil
}

// readAll decodes every row of every input file in parallel (read I/O
// dominates; decode is cheap), using errgroup the way the teacher's
// pack-sibling repos fan out independent blob reads.
func readAll(ctx context.Context, store blobstore.Store, files []LiveFile) ([]columnar.Row, int64, error) {
	rowsPerFile := make([][]columnar.Row, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			raw, err := store.Read(gctx, f.Path)
			if err != nil {
				return err
			}
			reader, err := columnar.OpenReader(raw)
			if err != nil {
				return errs.Wrap(errs.Corrupted, err, "open data file for compaction")
			}
			result, err := reader.Scan(nil, nil)
			if err != nil {
				return err
			}
			rowsPerFile[i] = result.Rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	var rows []columnar.Row
	var totalBytes int64
	for i, f := range files {
		rows = append(rows, rowsPerFile[i]...)
		totalBytes += f.SizeBytes
	}
	return rows, totalBytes, nil
}
