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

package mview

import (
	"sync"

	"github.com/google/btree"
)

// catalogEntry orders the catalog broadest-views-first: a view
// covering more fields is tried before a narrower one, the same
// ordered-btree-over-an-iteration-order idea candidates.go borrows for
// HNSW layer search, here applied to MV candidate short-listing
// (spec §11 domain-stack assignment: "mview/catalog.go — MV catalog
// ordered by coverage score").
type catalogEntry struct {
	coverage int
	name     string
	view     *View
}

func lessByCoverage(a, b catalogEntry) bool {
	if a.coverage != b.coverage {
		return a.coverage > b.coverage // broadest first
	}
	return a.name < b.name
}

// Catalog holds the registered materialized views for one database.
type Catalog struct {
	mu   sync.RWMutex
	tree *btree.BTreeG[catalogEntry]
	byName map[string]catalogEntry
}

// NewCatalog constructs an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		tree:   btree.NewG(32, lessByCoverage),
		byName: make(map[string]catalogEntry),
	}
}

// Register adds or replaces a view definition.
func (c *Catalog) Register(v *View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byName[v.Name]; ok {
		c.tree.Delete(old)
	}
	entry := catalogEntry{coverage: v.fieldCoverage(), name: v.Name, view: v}
	c.tree.ReplaceOrInsert(entry)
	c.byName[v.Name] = entry
}

// Remove drops a view from the catalog.
func (c *Catalog) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.byName[name]; ok {
		c.tree.Delete(old)
		delete(c.byName, name)
	}
}

// Get returns a view by name.
func (c *Catalog) Get(name string) (*View, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byName[name]
	if !ok {
		return nil, false
	}
	return e.view, true
}

// ForNamespace returns every view whose $from matches namespace,
// broadest (by static field coverage) first.
func (c *Catalog) ForNamespace(namespace string) []*View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*View
	c.tree.Ascend(func(e catalogEntry) bool {
		if e.view.Def.From == namespace {
			out = append(out, e.view)
		}
		return true
	})
	return out
}
