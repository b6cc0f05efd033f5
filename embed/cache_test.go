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
	"errors"
	"testing"
	"time"

	"github.com/launix-de/lakedoc/vectorindex"
)

type fakeProvider struct {
	calls int
	dims  int
	model string
	vec   vectorindex.Vector
}

func (f *fakeProvider) Embed(ctx context.Context, text string, opts Options) (vectorindex.Vector, error) {
	f.calls++
	return f.vec, nil
}

func (f *fakeProvider) EmbedBatch(ctx context.Context, texts []string, opts Options) ([]vectorindex.Vector, error) {
	out := make([]vectorindex.Vector, len(texts))
	for i := range texts {
		f.calls++
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeProvider) Dimensions() int { return f.dims }
func (f *fakeProvider) Model() string   { return f.model }

func TestCached_QueryEmbeddingIsCachedByTextAndModel(t *testing.T) {
	provider := &fakeProvider{dims: 3, model: "m1", vec: vectorindex.Vector{1, 2, 3}}
	c := Cached(provider, CacheOptions{})

	ctx := context.Background()
	if _, err := c.Embed(ctx, "hello", Options{IsQuery: true}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := c.Embed(ctx, "hello", Options{IsQuery: true}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 underlying call after cache hit, got %d", provider.calls)
	}
}

func TestCached_DocumentEmbeddingBypassesCache(t *testing.T) {
	provider := &fakeProvider{dims: 3, model: "m1", vec: vectorindex.Vector{1, 2, 3}}
	c := Cached(provider, CacheOptions{})

	ctx := context.Background()
	if _, err := c.Embed(ctx, "doc text", Options{IsQuery: false}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if _, err := c.Embed(ctx, "doc text", Options{IsQuery: false}); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("expected every document embed to reach the provider, got %d calls", provider.calls)
	}
}

func TestCached_DifferentModelsAreDistinctCacheEntries(t *testing.T) {
	providerA := &fakeProvider{dims: 3, model: "m1", vec: vectorindex.Vector{1, 2, 3}}
	providerB := &fakeProvider{dims: 3, model: "m2", vec: vectorindex.Vector{4, 5, 6}}
	ca := Cached(providerA, CacheOptions{})
	cb := Cached(providerB, CacheOptions{})

	ctx := context.Background()
	ca.Embed(ctx, "hello", Options{IsQuery: true})
	cb.Embed(ctx, "hello", Options{IsQuery: true})
	if providerA.calls != 1 || providerB.calls != 1 {
		t.Fatalf("expected each model's cache to be independent, got %d/%d calls", providerA.calls, providerB.calls)
	}
}

func TestCached_DimensionMismatchIsRejected(t *testing.T) {
	provider := &fakeProvider{dims: 4, model: "m1", vec: vectorindex.Vector{1, 2, 3}}
	c := Cached(provider, CacheOptions{})

	_, err := c.Embed(context.Background(), "hello", Options{IsQuery: true})
	if err == nil {
		t.Fatalf("expected a dimension mismatch error")
	}
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected *DimensionMismatchError, got %T: %v", err, err)
	}
	if mismatch.Expected != 4 || mismatch.Got != 3 {
		t.Fatalf("unexpected mismatch fields: %+v", mismatch)
	}
}

func TestCached_ExpiredEntryIsRefetched(t *testing.T) {
	provider := &fakeProvider{dims: 3, model: "m1", vec: vectorindex.Vector{1, 2, 3}}
	c := Cached(provider, CacheOptions{TTL: time.Millisecond})

	ctx := context.Background()
	c.Embed(ctx, "hello", Options{IsQuery: true})
	time.Sleep(5 * time.Millisecond)
	c.Embed(ctx, "hello", Options{IsQuery: true})
	if provider.calls != 2 {
		t.Fatalf("expected cache entry to expire and be refetched, got %d calls", provider.calls)
	}
}
