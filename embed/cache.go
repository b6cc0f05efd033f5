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

package embed

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/launix-de/lakedoc/vectorindex"
)

// DefaultCacheSize and DefaultCacheTTL are the query-embedding cache's
// defaults; either can be overridden via CacheOptions.
const (
	DefaultCacheSize = 4096
	DefaultCacheTTL  = 10 * time.Minute
)

// CacheOptions configures Cached's LRU.
type CacheOptions struct {
	Size int
	TTL  time.Duration
}

func (o CacheOptions) withDefaults() CacheOptions {
	if o.Size <= 0 {
		o.Size = DefaultCacheSize
	}
	if o.TTL <= 0 {
		o.TTL = DefaultCacheTTL
	}
	return o
}

type cacheKey struct {
	text  string
	model string
}

// cached decorates a Capability with an LRU+TTL cache over query
// embeddings, keyed by (text, model) (spec §6 verbatim).
type cached struct {
	Capability
	cache *lru.LRU[cacheKey, vectorindex.Vector]
}

// Cached wraps provider with a query-embedding cache. Document
// embeddings (Options.IsQuery == false) always pass through uncached:
// a corpus of documents being indexed is rarely re-embedded, so caching
// it would only grow the cache without saving calls.
func Cached(provider Capability, opts CacheOptions) Capability {
	opts = opts.withDefaults()
	return &cached{
		Capability: provider,
		cache:      lru.NewLRU[cacheKey, vectorindex.Vector](opts.Size, nil, opts.TTL),
	}
}

func (c *cached) Embed(ctx context.Context, text string, opts Options) (vectorindex.Vector, error) {
	if !opts.IsQuery {
		return c.Capability.Embed(ctx, text, opts)
	}
	key := cacheKey{text: text, model: c.Model()}
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.Capability.Embed(ctx, text, opts)
	if err != nil {
		return nil, err
	}
	if dims := c.Dimensions(); len(v) != dims {
		return nil, &DimensionMismatchError{Model: c.Model(), Expected: dims, Got: len(v)}
	}
	c.cache.Add(key, v)
	return v, nil
}

// EmbedBatch passes through uncached: batches are predominantly
// document-indexing calls, and partially-cached batch semantics would
// complicate provider call shapes for no observed benefit here.
func (c *cached) EmbedBatch(ctx context.Context, texts []string, opts Options) ([]vectorindex.Vector, error) {
	return c.Capability.EmbedBatch(ctx, texts, opts)
}
