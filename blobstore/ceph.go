//go:build ceph

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
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"github.com/ceph/go-ceph/rados"
)

// CephConfig configures a RADOS pool backed Store, generalizing memcp's
// storage/persistence-ceph.go from its per-shard column layout to
// lakedoc's flat key/value contract.
type CephConfig struct {
	UserName    string
	ClusterName string
	ConfFile    string
	Pool        string
	Prefix      string
}

// Ceph is a blobstore.Store backed by a RADOS pool. ifNoneMatch:"*" is
// implemented with a WriteOp that chains Create(exclusive) + WriteFull,
// which RADOS executes as a single atomic operation (the only primitive
// the engine needs out of a blob store, spec §4.A).
type Ceph struct {
	cfg CephConfig

	mu    sync.Mutex
	conn  *rados.Conn
	ioctx *rados.IOContext
	open  bool
}

func NewCeph(cfg CephConfig) *Ceph {
	return &Ceph{cfg: cfg}
}

func (c *Ceph) ensureOpen() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return nil
	}
	conn, err := rados.NewConnWithClusterAndUser(c.cfg.ClusterName, c.cfg.UserName)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	if c.cfg.ConfFile != "" {
		if err := conn.ReadConfigFile(c.cfg.ConfFile); err != nil {
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
	}
	if err := conn.Connect(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	ioctx, err := conn.OpenIOContext(c.cfg.Pool)
	if err != nil {
		conn.Shutdown()
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	c.conn = conn
	c.ioctx = ioctx
	c.open = true
	return nil
}

func (c *Ceph) obj(key string) string {
	pfx := strings.TrimSuffix(c.cfg.Prefix, "/")
	if pfx == "" {
		return key
	}
	return path.Join(pfx, key)
}

func (c *Ceph) Read(_ context.Context, key string) ([]byte, error) {
	if err := c.ensureOpen(); err != nil {
		return nil, err
	}
	obj := c.obj(key)
	stat, err := c.ioctx.Stat(obj)
	if err != nil {
		if err == rados.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	buf := make([]byte, stat.Size)
	n, err := c.ioctx.Read(obj, buf, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return buf[:n], nil
}

func (c *Ceph) OpenRead(ctx context.Context, key string) (io.ReadCloser, error) {
	data, err := c.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Ceph) Write(_ context.Context, key string, data []byte, opts WriteOptions) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	obj := c.obj(key)
	if opts.IfNoneMatch == "*" {
		op := rados.CreateWriteOp()
		defer op.Release()
		op.Create(true) // exclusive create: fails if the object already exists
		op.WriteFull(data)
		if err := op.Operate(c.ioctx, obj, rados.OperationNoFlag); err != nil {
			if err == rados.ErrObjectExists {
				return ErrAlreadyExists
			}
			return fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return nil
	}
	if err := c.ioctx.WriteFull(obj, data); err != nil {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

func (c *Ceph) Delete(_ context.Context, key string) error {
	if err := c.ensureOpen(); err != nil {
		return err
	}
	if err := c.ioctx.Delete(c.obj(key)); err != nil && err != rados.ErrNotFound {
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return nil
}

func (c *Ceph) Exists(_ context.Context, key string) (bool, error) {
	if err := c.ensureOpen(); err != nil {
		return false, err
	}
	_, err := c.ioctx.Stat(c.obj(key))
	if err == nil {
		return true, nil
	}
	if err == rados.ErrNotFound {
		return false, nil
	}
	return false, fmt.Errorf("%w: %v", ErrTransient, err)
}

func (c *Ceph) List(_ context.Context, prefix string) (ListResult, error) {
	if err := c.ensureOpen(); err != nil {
		return ListResult{}, err
	}
	iter, err := c.ioctx.Iter()
	if err != nil {
		return ListResult{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer iter.Close()

	full := c.obj(prefix)
	var out ListResult
	for iter.Next() {
		name := iter.Value()
		if strings.HasPrefix(name, full) {
			out.Keys = append(out.Keys, name)
		}
	}
	return out, nil
}
