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

// Package schemacache holds the database handle's (tableLocation,
// version) -> schema cache (spec §9: "Schema caches are keyed by
// (tableLocation, version) and live inside the database handle").
//
// It is a thin typed wrapper around the teacher's vendored
// NonLockingReadMap (third_party/NonLockingReadMap, originally written
// for memcp's own catalog/statistics caches): reads never block, writes
// rebuild a sorted slice under optimistic retry. Schema entries are
// written once per (table, version) and read very often by every
// scan/decode call, which is exactly the access pattern the map's
// doc comment says it's for.
package schemacache

import (
	"fmt"

	nlrm "github.com/launix-de/NonLockingReadMap"

	"github.com/launix-de/lakedoc/columnar"
)

// entry adapts columnar.Schema to NonLockingReadMap's KeyGetter
// contract: a comparable, orderable key plus an approximate size for
// ComputeSize-based memory accounting.
type entry struct {
	key    string
	schema columnar.Schema
}

func (e entry) GetKey() string { return e.key }

func (e entry) ComputeSize() uint {
	sz := uint(len(e.key)) + 16
	for _, f := range e.schema.Fields {
		sz += uint(len(f.Name)) + 24
	}
	return sz
}

// Cache is the (tableLocation, version) -> schema map. The zero value is
// not usable; construct with New.
type Cache struct {
	m nlrm.NonLockingReadMap[entry, string]
}

func New() *Cache {
	return &Cache{m: nlrm.New[entry, string]()}
}

func key(tableLocation string, version int64) string {
	return fmt.Sprintf("%s#%020d", tableLocation, version)
}

// Get returns the cached schema for (tableLocation, version), if present.
func (c *Cache) Get(tableLocation string, version int64) (columnar.Schema, bool) {
	e := c.m.Get(key(tableLocation, version))
	if e == nil {
		return columnar.Schema{}, false
	}
	return e.schema, true
}

// Put records the schema observed at (tableLocation, version). Schema
// records are append-only per table (spec §3), so once a version's
// schema is written it never needs to change; Put is idempotent.
func (c *Cache) Put(tableLocation string, version int64, schema columnar.Schema) {
	c.m.Set(&entry{key: key(tableLocation, version), schema: schema})
}

// Invalidate drops a single (tableLocation, version) entry. Nothing in
// this module calls it; blobstore/file.go's fsnotify watch is not wired
// to it.
func (c *Cache) Invalidate(tableLocation string, version int64) {
	c.m.Remove(key(tableLocation, version))
}
