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

package entity

import (
	"github.com/launix-de/lakedoc/errs"
	"github.com/launix-de/lakedoc/variant"
)

// ApplyUpdate applies an update operator document — {$set, $unset,
// $inc, $push, $pull, $addToSet} (spec.md §6) — against before and
// returns a brand-new document. before is never mutated: every touched
// array or map field is rebuilt as a fresh copy rather than written
// through in place, since OrderedMap.Clone is shallow and shares nested
// array/map backing storage with its source.
func ApplyUpdate(before *variant.OrderedMap, update variant.Value) (*variant.OrderedMap, error) {
	if update.Kind() != variant.KindMap {
		return nil, errs.Invalidf(errs.SubjectUpdate, "update document must be a map of operators")
	}
	doc := update.MapValue()
	after := before.Clone()

	applied := false
	for _, op := range doc.Keys() {
		v, _ := doc.Get(op)
		var err error
		switch op {
		case "$set":
			err = applySet(after, v)
		case "$unset":
			err = applyUnset(after, v)
		case "$inc":
			err = applyInc(after, v)
		case "$push":
			err = applyPush(after, v, false)
		case "$addToSet":
			err = applyPush(after, v, true)
		case "$pull":
			err = applyPull(after, v)
		default:
			return nil, errs.Invalidf(errs.SubjectUpdate, "unknown update operator %q", op)
		}
		if err != nil {
			return nil, err
		}
		applied = true
	}
	if !applied {
		return nil, errs.Invalidf(errs.SubjectUpdate, "update document has no operators")
	}
	return after, nil
}

func rejectReserved(field string) error {
	if reservedFields[field] {
		return errs.Invalidf(errs.SubjectUpdate, "field %q is reserved and cannot be modified directly", field)
	}
	return nil
}

func applySet(doc *variant.OrderedMap, spec variant.Value) error {
	if spec.Kind() != variant.KindMap {
		return errs.Invalidf(errs.SubjectUpdate, "$set requires a map of field to value")
	}
	m := spec.MapValue()
	for _, field := range m.Keys() {
		if err := rejectReserved(field); err != nil {
			return err
		}
		v, _ := m.Get(field)
		doc.Set(field, v)
	}
	return nil
}

func applyUnset(doc *variant.OrderedMap, spec variant.Value) error {
	if spec.Kind() != variant.KindMap {
		return errs.Invalidf(errs.SubjectUpdate, "$unset requires a map of field to anything")
	}
	m := spec.MapValue()
	for _, field := range m.Keys() {
		if err := rejectReserved(field); err != nil {
			return err
		}
		doc.Delete(field)
	}
	return nil
}

// applyInc treats an absent or null field as 0 and preserves int-vs-
// float typing: incrementing an int field by an int amount stays an
// int, any float operand promotes the result to float.
func applyInc(doc *variant.OrderedMap, spec variant.Value) error {
	if spec.Kind() != variant.KindMap {
		return errs.Invalidf(errs.SubjectUpdate, "$inc requires a map of field to numeric amount")
	}
	m := spec.MapValue()
	for _, field := range m.Keys() {
		if err := rejectReserved(field); err != nil {
			return err
		}
		amount, _ := m.Get(field)
		af, ok := amount.AsFloat64()
		if !ok {
			return errs.Invalidf(errs.SubjectUpdate, "$inc amount for %q must be numeric", field)
		}
		cur, exists := doc.Get(field)
		if !exists || cur.Kind() == variant.KindNull {
			doc.Set(field, amount)
			continue
		}
		cf, ok := cur.AsFloat64()
		if !ok {
			return errs.Invalidf(errs.SubjectUpdate, "field %q is not numeric", field)
		}
		if cur.Kind() == variant.KindInt && amount.Kind() == variant.KindInt {
			doc.Set(field, variant.Int(cur.Int()+amount.Int()))
		} else {
			doc.Set(field, variant.Float(cf+af))
		}
	}
	return nil
}

// applyPush appends each value in spec's array to the named array
// field, treating an absent or null field as an empty array. addToSet
// additionally skips any value already present (variant.Equal).
func applyPush(doc *variant.OrderedMap, spec variant.Value, addToSet bool) error {
	if spec.Kind() != variant.KindMap {
		return errs.Invalidf(errs.SubjectUpdate, "$push/$addToSet requires a map of field to value")
	}
	m := spec.MapValue()
	for _, field := range m.Keys() {
		if err := rejectReserved(field); err != nil {
			return err
		}
		add, _ := m.Get(field)
		cur, exists := doc.Get(field)
		var items []variant.Value
		if exists && cur.Kind() != variant.KindNull {
			if cur.Kind() != variant.KindArray {
				return errs.Invalidf(errs.SubjectUpdate, "field %q is not an array", field)
			}
			items = append(items, cur.Items()...)
		}
		toAdd := []variant.Value{add}
		if add.Kind() == variant.KindArray {
			toAdd = add.Items()
		}
		for _, item := range toAdd {
			if addToSet && containsValue(items, item) {
				continue
			}
			items = append(items, item)
		}
		doc.Set(field, variant.Array(items))
	}
	return nil
}

// applyPull removes every array element equal to spec's value for the
// named field.
func applyPull(doc *variant.OrderedMap, spec variant.Value) error {
	if spec.Kind() != variant.KindMap {
		return errs.Invalidf(errs.SubjectUpdate, "$pull requires a map of field to value")
	}
	m := spec.MapValue()
	for _, field := range m.Keys() {
		if err := rejectReserved(field); err != nil {
			return err
		}
		remove, _ := m.Get(field)
		cur, exists := doc.Get(field)
		if !exists || cur.Kind() == variant.KindNull {
			continue
		}
		if cur.Kind() != variant.KindArray {
			return errs.Invalidf(errs.SubjectUpdate, "field %q is not an array", field)
		}
		kept := make([]variant.Value, 0, len(cur.Items()))
		for _, item := range cur.Items() {
			if !variant.Equal(item, remove) {
				kept = append(kept, item)
			}
		}
		doc.Set(field, variant.Array(kept))
	}
	return nil
}

func containsValue(items []variant.Value, v variant.Value) bool {
	for _, item := range items {
		if variant.Equal(item, v) {
			return true
		}
	}
	return false
}
