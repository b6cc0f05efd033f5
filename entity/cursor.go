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
	"encoding/base64"
	"encoding/json"
)

// cursor is the opaque pagination token spec.md §12 describes: it pins
// the snapshot version a page was read against, so paging through
// results stays consistent even if later pages are requested after
// concurrent writers have committed new snapshots.
type cursor struct {
	SnapshotVersion int64 `json:"v"`
	Skip            int   `json:"s"`
}

func encodeCursor(c cursor) (string, error) {
	raw, err := json.Marshal(c)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(token string) (cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor{}, err
	}
	var c cursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return cursor{}, err
	}
	return c, nil
}
