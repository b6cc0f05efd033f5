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

import "testing"

func TestChooseStrategy_SmallCandidateSetPicksPreFilter(t *testing.T) {
	g := buildGrid(t, 100)
	candidates := map[string]bool{"doc-1": true, "doc-2": true}
	if got := g.chooseStrategy(candidates); got != PreFilter {
		t.Fatalf("expected pre-filter for a 2%% candidate set, got %s", got)
	}
}

func TestChooseStrategy_LargeCandidateSetPicksPostFilter(t *testing.T) {
	g := buildGrid(t, 10)
	candidates := map[string]bool{}
	for i := 0; i < 9; i++ {
		candidates["doc-"+string(rune('0'+i))] = true
	}
	if got := g.chooseStrategy(candidates); got != PostFilter {
		t.Fatalf("expected post-filter for a 90%% candidate set, got %s", got)
	}
}

func TestChooseStrategy_NilCandidatesPicksPostFilter(t *testing.T) {
	g := buildGrid(t, 10)
	if got := g.chooseStrategy(nil); got != PostFilter {
		t.Fatalf("expected post-filter with no candidate set, got %s", got)
	}
}

func TestHybridSearch_PreFilterRestrictsToCandidateSet(t *testing.T) {
	g := buildGrid(t, 50)
	candidates := map[string]bool{"doc-10": true, "doc-11": true, "doc-12": true}
	res := g.HybridSearch(gridVector(10, 0), HybridOptions{
		K:            3,
		EfSearch:     64,
		CandidateIDs: candidates,
		Strategy:     PreFilter,
	})
	if res.StrategyUsed != PreFilter {
		t.Fatalf("expected pre-filter strategy used")
	}
	if res.PreFilterSetSize != 3 {
		t.Fatalf("expected pre-filter set size 3, got %d", res.PreFilterSetSize)
	}
	for _, d := range res.Docs {
		if !candidates[d.DocID] {
			t.Fatalf("result %s outside candidate set", d.DocID)
		}
	}
}

func TestHybridSearch_PostFilterAppliesResidualAfterOverFetch(t *testing.T) {
	g := buildGrid(t, 50)
	residual := func(docID string) bool { return docID != "doc-10" }
	res := g.HybridSearch(gridVector(10, 0), HybridOptions{
		K:        3,
		EfSearch: 64,
		Strategy: PostFilter,
		Residual: residual,
	})
	if res.StrategyUsed != PostFilter {
		t.Fatalf("expected post-filter strategy used")
	}
	if res.PostFilterFetched == 0 {
		t.Fatalf("expected post-filter to report an over-fetched count")
	}
	for _, d := range res.Docs {
		if d.DocID == "doc-10" {
			t.Fatalf("expected doc-10 excluded by residual filter")
		}
	}
	if len(res.Docs) != 3 {
		t.Fatalf("expected 3 results after residual exclusion, got %d", len(res.Docs))
	}
}

func TestHybridSearch_MinScoreThresholdsResults(t *testing.T) {
	g := buildGrid(t, 50)
	res := g.HybridSearch(gridVector(10, 0), HybridOptions{
		K:        10,
		EfSearch: 64,
		Strategy: PostFilter,
		MinScore: 1.1, // above any achievable cosine score -> nothing survives
	})
	if len(res.Docs) != 0 {
		t.Fatalf("expected no results above an unreachable minScore, got %d", len(res.Docs))
	}
}

func TestFuseRRF_CombinesTwoRankingsByReciprocalRank(t *testing.T) {
	fts := RankedList{"a", "b", "c"}
	semantic := RankedList{"b", "a", "d"}
	fused := FuseRRF(fts, semantic, 0)

	if len(fused) != 4 {
		t.Fatalf("expected 4 distinct docs, got %d", len(fused))
	}
	// "a" is rank1 fts + rank2 semantic; "b" is rank2 fts + rank1 semantic ->
	// both sum to the same two reciprocal terms, so they tie at the top.
	top := map[string]bool{fused[0].DocID: true, fused[1].DocID: true}
	if !top["a"] || !top["b"] {
		t.Fatalf("expected a and b to rank above c and d, got %+v", fused)
	}
	for _, d := range fused {
		if d.DocID == "a" && (d.FtsRank != 1 || d.SemanticRank != 2) {
			t.Fatalf("unexpected ranks for a: %+v", d)
		}
		if d.DocID == "d" && (d.FtsRank != 0 || d.SemanticRank != 3) {
			t.Fatalf("unexpected ranks for d: %+v", d)
		}
	}
}
