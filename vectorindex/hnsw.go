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

import (
	"math"
	"math/rand"
	"sync"
)

// Options configures a Graph at construction (spec §4.I parameters).
type Options struct {
	M              int          // max bidirectional links per node per layer above 0 (default 16)
	MaxM0          int          // max links at layer 0 (default 2*M)
	EfConstruction int          // candidate list size while inserting (default 200)
	Distance       DistanceFunc // default CosineDistance
}

func (o Options) withDefaults() Options {
	if o.M <= 0 {
		o.M = 16
	}
	if o.MaxM0 <= 0 {
		o.MaxM0 = 2 * o.M
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = 200
	}
	if o.Distance == nil {
		o.Distance = CosineDistance
	}
	return o
}

type node struct {
	id        string
	vector    Vector
	level     int
	neighbors [][]string // neighbors[l] = neighbor ids at layer l
}

// Graph is an HNSW proximity graph. The write path holds the writer
// lock exclusively; reads take the shared lock and may run in parallel
// (spec §5 "The HNSW graph is guarded by a writer lock; readers hold a
// shared lock and may execute in parallel").
type Graph struct {
	mu    sync.RWMutex
	opts  Options
	nodes map[string]*node

	entry      string
	entryLevel int

	mL float64 // level-generation normalization factor, 1/ln(M)
}

// New constructs an empty graph.
func New(opts Options) *Graph {
	opts = opts.withDefaults()
	return &Graph{
		opts:       opts,
		nodes:      make(map[string]*node),
		entryLevel: -1,
		mL:         1 / math.Log(float64(opts.M)),
	}
}

// randomLevel draws an insertion level from HNSW's exponential-decay
// distribution, giving the expected logarithmic layer structure.
func (g *Graph) randomLevel(rng *rand.Rand) int {
	r := rng.Float64()
	for r == 0 {
		r = rng.Float64()
	}
	return int(math.Floor(-math.Log(r) * g.mL))
}

// Insert adds or replaces a document's vector in the graph (spec §4.I
// "insert(vector, docId, level=auto, seed)"). level < 0 means auto;
// seed drives both level selection and the RNG used for this call, so
// two inserts with the same seed build an identical local topology
// given the same graph state.
func (g *Graph) Insert(docID string, vector Vector, level int, seed int64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rng := rand.New(rand.NewSource(seed))
	if level < 0 {
		level = g.randomLevel(rng)
	}

	n := &node{id: docID, vector: vector, level: level, neighbors: make([][]string, level+1)}
	g.nodes[docID] = n

	if g.entry == "" {
		g.entry = docID
		g.entryLevel = level
		return
	}

	entry := g.entry
	for l := g.entryLevel; l > level; l-- {
		entry = g.greedyClosest(entry, vector, l)
	}

	for l := min(level, g.entryLevel); l >= 0; l-- {
		found := g.searchLayer(vector, entry, g.opts.EfConstruction, l, docID)
		neighbors := selectNeighbors(found, g.neighborCap(l))
		n.neighbors[l] = neighbors
		for _, nb := range neighbors {
			g.connect(nb, docID, l)
		}
		if len(found) > 0 {
			entry = found[0].docID
		}
	}

	if level > g.entryLevel {
		g.entry = docID
		g.entryLevel = level
	}
}

func (g *Graph) neighborCap(level int) int {
	if level == 0 {
		return g.opts.MaxM0
	}
	return g.opts.M
}

// connect adds docID as a neighbor of nb at level, pruning nb's
// neighbor list back down to its cap by keeping the closest ones.
func (g *Graph) connect(nb, docID string, level int) {
	target := g.nodes[nb]
	if target == nil {
		return
	}
	target.neighbors[level] = append(target.neighbors[level], docID)
	cap := g.neighborCap(level)
	if len(target.neighbors[level]) <= cap {
		return
	}
	scored := make([]candidate, 0, len(target.neighbors[level]))
	for _, id := range target.neighbors[level] {
		scored = append(scored, candidate{docID: id, distance: g.opts.Distance(target.vector, g.nodes[id].vector)})
	}
	kept := selectNeighbors(scored, cap)
	target.neighbors[level] = kept
}

func selectNeighbors(scored []candidate, cap int) []string {
	set := newCandidateSet()
	for _, c := range scored {
		set.push(c.docID, c.distance)
	}
	out := make([]string, 0, cap)
	for len(out) < cap {
		c, ok := set.popNearest()
		if !ok {
			break
		}
		out = append(out, c.docID)
	}
	return out
}

// greedyClosest descends one layer by always stepping to whichever
// neighbor is closer to query than the current point, stopping at a
// local optimum (the standard HNSW upper-layer descent, ef=1).
func (g *Graph) greedyClosest(from string, query Vector, level int) string {
	best := from
	bestDist := g.opts.Distance(query, g.nodes[from].vector)
	improved := true
	for improved {
		improved = false
		cur := g.nodes[best]
		if level > cur.level || len(cur.neighbors) <= level {
			continue
		}
		for _, nb := range cur.neighbors[level] {
			d := g.opts.Distance(query, g.nodes[nb].vector)
			if d < bestDist {
				bestDist = d
				best = nb
				improved = true
			}
		}
	}
	return best
}

// searchLayer runs the core ef-bounded beam search of one layer,
// returning up to ef candidates nearest query, nearest first. exclude
// (if non-empty) omits a node from the results, used while inserting
// it so it never links to itself.
func (g *Graph) searchLayer(query Vector, entry string, ef int, level int, exclude string) []candidate {
	visited := map[string]bool{entry: true}
	startDist := g.opts.Distance(query, g.nodes[entry].vector)

	toExplore := newCandidateSet()
	toExplore.push(entry, startDist)
	found := newCandidateSet()
	if entry != exclude {
		found.push(entry, startDist)
	}

	for toExplore.len() > 0 {
		cur, ok := toExplore.popNearest()
		if !ok {
			break
		}
		if worst, ok := found.farthest(); ok && found.len() >= ef && cur.distance > worst.distance {
			break // no closer candidate remains; stop expanding
		}
		curNode := g.nodes[cur.docID]
		if level > curNode.level || len(curNode.neighbors) <= level {
			continue
		}
		for _, nb := range curNode.neighbors[level] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := g.opts.Distance(query, g.nodes[nb].vector)
			worst, hasWorst := found.farthest()
			if found.len() < ef || !hasWorst || d < worst.distance {
				toExplore.push(nb, d)
				if nb != exclude {
					found.push(nb, d)
					if found.len() > ef {
						found.popFarthest()
					}
				}
			}
		}
	}
	return found.sortedAscending()
}

// Search runs approximate k-nearest-neighbor search (spec §4.I
// "search(query, k, efSearch) -> [(docId, score)]").
func (g *Graph) Search(query Vector, k, efSearch int) []ScoredDoc {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.searchLocked(query, k, efSearch, nil)
}

// searchLocked is Search's core, reused by hybrid pre-filtering with an
// additional candidate-set restriction; callers must already hold at
// least the read lock.
func (g *Graph) searchLocked(query Vector, k, efSearch int, allow map[string]bool) []ScoredDoc {
	if g.entry == "" {
		return nil
	}
	if efSearch < k {
		efSearch = k
	}
	entry := g.entry
	for l := g.entryLevel; l > 0; l-- {
		entry = g.greedyClosest(entry, query, l)
	}
	found := g.searchLayerFiltered(query, entry, efSearch, 0, allow)
	if k > len(found) {
		k = len(found)
	}
	out := make([]ScoredDoc, k)
	for i := 0; i < k; i++ {
		out[i] = ScoredDoc{DocID: found[i].docID, Score: 1 - found[i].distance}
	}
	return out
}

// searchLayerFiltered is searchLayer plus an optional allow-set: the
// graph is still traversed through every node (so edges through
// disallowed nodes are not lost), but only allowed nodes are kept as
// results — this is the pre-filter hybrid strategy (spec §4.I
// "pre-filter ... restricts neighbor expansion" is approximated here as
// restricting the *result* set while still traversing freely, since a
// graph with arbitrary deletions pruned from traversal risks
// disconnecting it).
func (g *Graph) searchLayerFiltered(query Vector, entry string, ef int, level int, allow map[string]bool) []candidate {
	if allow == nil {
		return g.searchLayer(query, entry, ef, level, "")
	}
	visited := map[string]bool{entry: true}
	startDist := g.opts.Distance(query, g.nodes[entry].vector)
	toExplore := newCandidateSet()
	toExplore.push(entry, startDist)
	found := newCandidateSet()
	if allow[entry] {
		found.push(entry, startDist)
	}
	for toExplore.len() > 0 {
		cur, ok := toExplore.popNearest()
		if !ok {
			break
		}
		curNode := g.nodes[cur.docID]
		if level > curNode.level || len(curNode.neighbors) <= level {
			continue
		}
		for _, nb := range curNode.neighbors[level] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			d := g.opts.Distance(query, g.nodes[nb].vector)
			toExplore.push(nb, d)
			if allow[nb] {
				found.push(nb, d)
				if found.len() > ef {
					found.popFarthest()
				}
			}
		}
	}
	return found.sortedAscending()
}

// HasDocument reports whether docID has been inserted.
func (g *Graph) HasDocument(docID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[docID]
	return ok
}

// GetAllDocIds returns every inserted document id, in no particular
// order.
func (g *Graph) GetAllDocIds() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		out = append(out, id)
	}
	return out
}

// Len reports the number of indexed documents, used by the hybrid
// auto-strategy chooser to judge a candidate set's selectivity.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}
