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

// Package embed wraps the opaque embedding capability spec §6 assumes
// ("Providers are opaque") and the query-embedding cache sitting in
// front of it.
package embed

import (
	"context"
	"fmt"

	"github.com/launix-de/lakedoc/vectorindex"
)

// Options accompanies one embed call; IsQuery marks a query-time
// embedding (as opposed to a document being indexed), which is the
// only kind the cache remembers (spec §6 "the engine caches query
// embeddings").
type Options struct {
	IsQuery bool
}

// Capability is the embedding provider interface the core depends on;
// concrete providers (Vercel, Cloudflare, ...) are out of scope (spec
// §1 Non-goals) and implement this from outside the module.
type Capability interface {
	Embed(ctx context.Context, text string, opts Options) (vectorindex.Vector, error)
	EmbedBatch(ctx context.Context, texts []string, opts Options) ([]vectorindex.Vector, error)
	Dimensions() int
	Model() string
}

// DimensionMismatchError reports a provider returning a vector whose
// length doesn't match its own advertised Dimensions(); this indicates
// a misbehaving provider, not caller error.
type DimensionMismatchError struct {
	Model    string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embed: provider %q returned a %d-dimensional vector, expected %d", e.Model, e.Got, e.Expected)
}
