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
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// File is a local-filesystem Store, the layout memcp's storage/
// persistence-files.go uses for the "data/[dbname]" backend. Keys map
// directly to paths under Basepath; directories are created on demand.
//
// ifNoneMatch:"*" is implemented with O_EXCL, which is the local
// filesystem's native atomic-create primitive and therefore the most
// direct way to honor the blobstore.Store contract on disk.
type File struct {
	Basepath string
}

func NewFile(basepath string) *File {
	return &File{Basepath: basepath}
}

func (f *File) path(key string) string {
	return filepath.Join(f.Basepath, filepath.FromSlash(key))
}

func (f *File) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, ErrTransient
	}
	return data, nil
}

func (f *File) OpenRead(_ context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, ErrTransient
	}
	return file, nil
}

func (f *File) Write(_ context.Context, key string, data []byte, opts WriteOptions) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0750); err != nil {
		return ErrTransient
	}
	if opts.IfNoneMatch == "*" {
		fh, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0640)
		if err != nil {
			if os.IsExist(err) {
				return ErrAlreadyExists
			}
			return ErrTransient
		}
		defer fh.Close()
		if _, err := fh.Write(data); err != nil {
			return ErrTransient
		}
		return fh.Sync()
	}
	// unconditional overwrite: write to a temp file and rename, so a
	// reader never observes a partial write.
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0640); err != nil {
		return ErrTransient
	}
	if err := os.Rename(tmp, p); err != nil {
		return ErrTransient
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return ErrTransient
	}
	return nil
}

func (f *File) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(f.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ErrTransient
}

func (f *File) List(_ context.Context, prefix string) (ListResult, error) {
	dir := filepath.Dir(f.path(prefix))
	if prefix == "" || strings.HasSuffix(prefix, "/") {
		dir = f.path(prefix)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return ListResult{}, nil
		}
		return ListResult{}, ErrTransient
	}
	rel, _ := filepath.Rel(f.Basepath, dir)
	if rel == "." {
		rel = ""
	} else {
		rel = filepath.ToSlash(rel) + "/"
	}
	var keys []string
	var commonPrefixes []string
	for _, e := range entries {
		key := rel + e.Name()
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e.IsDir() {
			commonPrefixes = append(commonPrefixes, key+"/")
		} else {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	sort.Strings(commonPrefixes)
	return ListResult{Keys: keys, CommonPrefixes: commonPrefixes}, nil
}

// Watch returns an fsnotify watcher registered on every directory under
// the store root, reporting events such as a schema.json or log file
// rewritten by a second process. Nothing in this module subscribes to
// it: the schema cache (package schemacache) is not invalidated by these
// events.
func (f *File) Watch() (*fsnotify.Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := filepath.WalkDir(f.Basepath, func(path string, d os.DirEntry, err error) error {
		if err != nil || d == nil || !d.IsDir() {
			return nil
		}
		return w.Add(path)
	}); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}
