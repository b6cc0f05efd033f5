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

package pushdown

import (
	"regexp"
	"strings"

	"github.com/launix-de/lakedoc/variant"
)

// Matches evaluates the full filter operator vocabulary (spec §6) over
// one decoded row, the residual pass spec §4.G step 3 runs after
// row-group-level skipping has already narrowed the candidate set.
// Pushdown already proved a predicate's row group "may" satisfy it;
// Matches is the ground truth. $text and $vector are resolved upstream
// by the full-text/vector search path (package vectorindex) before a
// row ever reaches here, so both always match at this layer — excluding
// either clause here would double-filter rows the caller already
// selected by relevance.
func Matches(filter variant.Value, row *variant.OrderedMap) bool {
	if filter.IsNull() {
		return true
	}
	m := filter.MapValue()
	if m == nil {
		return true
	}
	for _, key := range m.Keys() {
		v, _ := m.Get(key)
		if !matchKey(key, v, row) {
			return false
		}
	}
	return true
}

func matchKey(key string, value variant.Value, row *variant.OrderedMap) bool {
	switch key {
	case "$and":
		for _, clause := range value.Items() {
			if !Matches(clause, row) {
				return false
			}
		}
		return true
	case "$or":
		for _, clause := range value.Items() {
			if Matches(clause, row) {
				return true
			}
		}
		return len(value.Items()) == 0
	case "$nor":
		for _, clause := range value.Items() {
			if Matches(clause, row) {
				return false
			}
		}
		return true
	case "$not":
		return !Matches(value, row)
	case "$text", "$vector":
		return true
	default:
		fieldVal, present := lookupPath(row, key)
		return matchLeaf(value, fieldVal, present)
	}
}

func lookupPath(row *variant.OrderedMap, path string) (variant.Value, bool) {
	parts := strings.Split(path, ".")
	cur := variant.Map(row)
	for _, part := range parts {
		m := cur.MapValue()
		if m == nil {
			return variant.Null(), false
		}
		v, ok := m.Get(part)
		if !ok {
			return variant.Null(), false
		}
		cur = v
	}
	return cur, true
}

func matchLeaf(expected, actual variant.Value, present bool) bool {
	opMap := expected.MapValue()
	if expected.Kind() != variant.KindMap || opMap == nil || !hasOperatorKey(opMap) {
		return present && variant.Equal(expected, actual)
	}
	for _, opKey := range opMap.Keys() {
		opVal, _ := opMap.Get(opKey)
		if !matchOp(opKey, opVal, actual, present) {
			return false
		}
	}
	return true
}

func matchOp(op string, expected, actual variant.Value, present bool) bool {
	switch op {
	case "$eq":
		return present && variant.Equal(expected, actual)
	case "$ne":
		return !present || !variant.Equal(expected, actual)
	case "$gt":
		c, ok := variant.Compare(actual, expected)
		return present && ok && c > 0
	case "$gte":
		c, ok := variant.Compare(actual, expected)
		return present && ok && c >= 0
	case "$lt":
		c, ok := variant.Compare(actual, expected)
		return present && ok && c < 0
	case "$lte":
		c, ok := variant.Compare(actual, expected)
		return present && ok && c <= 0
	case "$in":
		if !present {
			return false
		}
		for _, item := range expected.Items() {
			if variant.Equal(item, actual) {
				return true
			}
		}
		return false
	case "$nin":
		if !present {
			return true
		}
		for _, item := range expected.Items() {
			if variant.Equal(item, actual) {
				return false
			}
		}
		return true
	case "$exists":
		return present == expected.Bool()
	case "$startsWith":
		return present && actual.Kind() == variant.KindString && strings.HasPrefix(actual.Str(), expected.Str())
	case "$regex":
		if !present || actual.Kind() != variant.KindString {
			return false
		}
		re, err := regexp.Compile(expected.Str())
		if err != nil {
			return false
		}
		return re.MatchString(actual.Str())
	default:
		return true
	}
}
