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

import "github.com/google/btree"

// candidate is one graph node scored against the current query during a
// layer search.
type candidate struct {
	docID    string
	distance float64
}

func lessByDistance(a, b candidate) bool {
	if a.distance != b.distance {
		return a.distance < b.distance
	}
	return a.docID < b.docID // stable tie-break, same role as storage's alphabetical column tie-break
}

// candidateSet keeps the nodes a layer search still has to expand
// ordered nearest-first, the same ordered-btree-over-an-iteration-order
// shape storage.StorageIndex's deltaBtree uses for its own sorted scan.
// Popping the minimum is O(log n) instead of the O(n) rescan a slice
// would need on every step of the search.
type candidateSet struct {
	tree *btree.BTreeG[candidate]
}

func newCandidateSet() *candidateSet {
	return &candidateSet{tree: btree.NewG(32, lessByDistance)}
}

func (s *candidateSet) push(docID string, distance float64) {
	s.tree.ReplaceOrInsert(candidate{docID: docID, distance: distance})
}

func (s *candidateSet) len() int { return s.tree.Len() }

// popNearest removes and returns the closest remaining candidate.
func (s *candidateSet) popNearest() (candidate, bool) {
	c, ok := s.tree.Min()
	if !ok {
		return candidate{}, false
	}
	s.tree.Delete(c)
	return c, true
}

// farthest returns (without removing) the worst-scoring member, used to
// decide whether a newly found node is good enough to displace it.
func (s *candidateSet) farthest() (candidate, bool) {
	return s.tree.Max()
}

func (s *candidateSet) popFarthest() (candidate, bool) {
	c, ok := s.tree.Max()
	if !ok {
		return candidate{}, false
	}
	s.tree.Delete(c)
	return c, true
}

// sortedAscending drains the set nearest-first.
func (s *candidateSet) sortedAscending() []candidate {
	out := make([]candidate, 0, s.tree.Len())
	s.tree.Ascend(func(c candidate) bool {
		out = append(out, c)
		return true
	})
	return out
}
