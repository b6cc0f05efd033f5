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

package blobstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store, mainly for tests and for embedding
// applications that don't need durability (PersistencyMode Memory in the
// teacher's vocabulary, storage/table.go).
type Memory struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

func (m *Memory) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := m.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *Memory) Write(_ context.Context, key string, data []byte, opts WriteOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if opts.IfNoneMatch == "*" {
		if _, exists := m.objects[key]; exists {
			return ErrAlreadyExists
		}
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	m.objects[key] = cp
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *Memory) List(_ context.Context, prefix string) (ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var keys []string
	seen := map[string]struct{}{}
	for k := range m.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if idx := strings.Index(rest, "/"); idx >= 0 {
			cp := prefix + rest[:idx+1]
			if _, ok := seen[cp]; !ok {
				seen[cp] = struct{}{}
			}
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var commonPrefixes []string
	for cp := range seen {
		commonPrefixes = append(commonPrefixes, cp)
	}
	sort.Strings(commonPrefixes)
	return ListResult{Keys: keys, CommonPrefixes: commonPrefixes}, nil
}
