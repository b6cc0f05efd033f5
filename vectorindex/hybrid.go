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

package vectorindex

import "sort"

// Strategy names the resolution chosen for one hybrid query (spec
// §4.I), surfaced back to the caller for observability.
type Strategy string

const (
	PreFilter  Strategy = "pre-filter"
	PostFilter Strategy = "post-filter"
	Auto       Strategy = "auto"
)

// autoPreFilterThreshold is the candidate-set-size-relative-to-index
// fraction below which Auto picks pre-filter (spec §4.I "its size
// relative to the index is small (≤ ~30%)").
const autoPreFilterThreshold = 0.3

// overFetchMultiplier is post-filter's default over-fetch factor (spec
// §4.I "k × overFetchMultiplier, default ≥ 3").
const overFetchMultiplier = 3

// ResidualFilter re-checks one candidate document against whatever of
// the query's metadata filter pushdown could not already narrow via
// candidateIds; post-filter applies it client-side after over-fetching.
type ResidualFilter func(docID string) bool

// HybridOptions configures one hybrid vector search (spec §4.I).
type HybridOptions struct {
	K                   int
	EfSearch            int
	CandidateIDs        map[string]bool // nil means "no pre-computed candidate set"
	Residual            ResidualFilter  // nil means "nothing left to check client-side"
	Strategy            Strategy        // zero value behaves as Auto
	OverFetchMultiplier int             // 0 means use the default
	MinScore            float64         // 0 means no threshold
}

// HybridResult carries the ranked hits plus the observability fields
// spec §4.I requires: "strategy used, number of entries scanned,
// pre-filter set size, and post-filter fetched count".
type HybridResult struct {
	Docs               []ScoredDoc
	StrategyUsed       Strategy
	EntriesScanned     int
	PreFilterSetSize   int
	PostFilterFetched  int
}

// HybridSearch resolves the "predicate AND vector" problem per spec
// §4.I's three strategies and auto chooser.
func (g *Graph) HybridSearch(query Vector, opts HybridOptions) HybridResult {
	strategy := opts.Strategy
	if strategy == "" || strategy == Auto {
		strategy = g.chooseStrategy(opts.CandidateIDs)
	}

	switch strategy {
	case PreFilter:
		return g.preFilterSearch(query, opts)
	default:
		return g.postFilterSearch(query, opts)
	}
}

func (g *Graph) chooseStrategy(candidateIDs map[string]bool) Strategy {
	if candidateIDs == nil {
		return PostFilter
	}
	total := g.Len()
	if total == 0 {
		return PostFilter
	}
	if float64(len(candidateIDs))/float64(total) <= autoPreFilterThreshold {
		return PreFilter
	}
	return PostFilter
}

func (g *Graph) preFilterSearch(query Vector, opts HybridOptions) HybridResult {
	g.mu.RLock()
	found := g.searchLocked(query, opts.K, opts.EfSearch, opts.CandidateIDs)
	g.mu.RUnlock()
	found = thresholdAndFilter(found, opts.MinScore, nil)
	return HybridResult{
		Docs:             found,
		StrategyUsed:     PreFilter,
		EntriesScanned:   len(opts.CandidateIDs),
		PreFilterSetSize: len(opts.CandidateIDs),
	}
}

func (g *Graph) postFilterSearch(query Vector, opts HybridOptions) HybridResult {
	mult := opts.OverFetchMultiplier
	if mult <= 0 {
		mult = overFetchMultiplier
	}
	fetchK := opts.K * mult
	ef := opts.EfSearch
	if ef < fetchK {
		ef = fetchK
	}

	g.mu.RLock()
	found := g.searchLocked(query, fetchK, ef, nil)
	g.mu.RUnlock()

	fetched := len(found)
	found = thresholdAndFilter(found, opts.MinScore, opts.Residual)
	if opts.K < len(found) {
		found = found[:opts.K]
	}
	return HybridResult{
		Docs:              found,
		StrategyUsed:      PostFilter,
		EntriesScanned:    fetched,
		PostFilterFetched: fetched,
	}
}

func thresholdAndFilter(docs []ScoredDoc, minScore float64, residual ResidualFilter) []ScoredDoc {
	out := docs[:0:0]
	for _, d := range docs {
		if d.Score < minScore {
			continue
		}
		if residual != nil && !residual(d.DocID) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// RankedList is one ranking to fuse, e.g. full-text or semantic hits in
// relevance order (best first).
type RankedList []string

// FusedDoc is one document's combined score plus its rank within each
// input list, surfaced as $rrfScore/$ftsRank/$semanticRank (spec §4.I).
type FusedDoc struct {
	DocID        string
	RRFScore     float64
	FtsRank      int // 1-based; 0 means absent from the full-text ranking
	SemanticRank int // 1-based; 0 means absent from the semantic ranking
}

// defaultRRFK is RRF's smoothing constant (spec §4.I "k≈60").
const defaultRRFK = 60

// FuseRRF combines a full-text ranking and a semantic (vector) ranking
// via Reciprocal Rank Fusion, sorted best-first by combined score.
func FuseRRF(fts, semantic RankedList, k float64) []FusedDoc {
	if k <= 0 {
		k = defaultRRFK
	}
	ranks := make(map[string]*FusedDoc)
	order := func(list RankedList, assign func(*FusedDoc, int)) {
		for i, docID := range list {
			rank := i + 1
			d, ok := ranks[docID]
			if !ok {
				d = &FusedDoc{DocID: docID}
				ranks[docID] = d
			}
			assign(d, rank)
			d.RRFScore += 1 / (k + float64(rank))
		}
	}
	order(fts, func(d *FusedDoc, rank int) { d.FtsRank = rank })
	order(semantic, func(d *FusedDoc, rank int) { d.SemanticRank = rank })

	out := make([]FusedDoc, 0, len(ranks))
	for _, d := range ranks {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RRFScore != out[j].RRFScore {
			return out[i].RRFScore > out[j].RRFScore
		}
		return out[i].DocID < out[j].DocID // stable tie-break
	})
	return out
}
