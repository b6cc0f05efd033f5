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
	"errors"
	"math/rand"
	"time"

	"github.com/launix-de/lakedoc/blobstore"
	"github.com/launix-de/lakedoc/errs"
)

// RetryOptions tunes the optimistic-concurrency loop (spec §4.E step 5).
type RetryOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryOptions matches what the teacher's own blob backends
// tolerate comfortably under contention without a dedicated config knob
// (storage/persistence-s3.go retries transient S3 errors with similarly
// small bounded backoff).
func DefaultRetryOptions() RetryOptions {
	return RetryOptions{MaxRetries: 25, BaseDelay: 10 * time.Millisecond}
}

// Prepare builds the commit body and target key for the slot after
// readVersion. It is called fresh on every attempt since a concurrent
// writer may have advanced the version in between.
type Prepare func(ctx context.Context, readVersion int64) (key string, body []byte, err error)

// ReadVersion returns the table's current durable version.
type ReadVersion func(ctx context.Context) (int64, error)

// Result is what a successful Run reports (spec §4.E step 4).
type Result struct {
	Version int64
	Key     string
}

// Run implements the optimistic commit retry loop shared by both
// dialects (spec §4.E): read current version, prepare the next slot's
// body, conditional-create it, retry with exponential backoff and
// jitter on conflict. Invariant: every durable version is exactly one
// conditional-create, so the version sequence stays gap-free.
func Run(ctx context.Context, store blobstore.Store, opts RetryOptions, readVersion ReadVersion, prepare Prepare) (Result, error) {
	if opts.MaxRetries <= 0 {
		opts = DefaultRetryOptions()
	}
	attempt := 0
	for {
		select {
		case <-ctx.Done():
			return Result{}, errs.Wrap(errs.Cancelled, ctx.Err(), "commit cancelled before slot acquired")
		default:
		}

		current, err := readVersion(ctx)
		if err != nil {
			return Result{}, errs.Wrap(errs.Transient, err, "read current version")
		}
		next := current + 1

		key, body, err := prepare(ctx, current)
		if err != nil {
			return Result{}, err
		}

		writeErr := store.Write(ctx, key, body, blobstore.WriteOptions{IfNoneMatch: "*"})
		if writeErr == nil {
			return Result{Version: next, Key: key}, nil
		}

		if errors.Is(writeErr, blobstore.ErrAlreadyExists) {
			attempt++
			if attempt > opts.MaxRetries {
				return Result{}, errs.New(errs.Conflict, "commit slot contention exceeded max retries")
			}
			if err := sleepWithBackoff(ctx, opts.BaseDelay, attempt); err != nil {
				return Result{}, err
			}
			continue
		}

		if errors.Is(writeErr, blobstore.ErrTransient) {
			// transient failures don't count against the conflict budget
			if err := sleepWithBackoff(ctx, opts.BaseDelay, 1); err != nil {
				return Result{}, err
			}
			continue
		}

		return Result{}, errs.Wrap(errs.Transient, writeErr, "commit write failed")
	}
}

func sleepWithBackoff(ctx context.Context, base time.Duration, attempt int) error {
	backoff := base * time.Duration(1<<uint(min(attempt, 20)))
	jitter := time.Duration(rand.Int63n(int64(backoff) + 1))
	delay := backoff/2 + jitter/2
	select {
	case <-ctx.Done():
		return errs.Wrap(errs.Cancelled, ctx.Err(), "commit cancelled during retry backoff")
	case <-time.After(delay):
		return nil
	}
}
