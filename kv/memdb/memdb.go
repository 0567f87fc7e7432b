// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package memdb is an in-memory kv.RwDB. Every table is a copy-on-write
// b-tree, so read transactions are O(1) snapshots which never block the writer.
package memdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/btree"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
)

const degree = 32

var ErrClosed = errors.New("memdb: database closed")

type entry struct {
	k, v []byte
}

// newEntry copies k and v, an empty key is stored as a non-nil slice so cursors can return it.
func newEntry(k, v []byte) entry {
	return entry{k: append(make([]byte, 0, len(k)), k...), v: append(make([]byte, 0, len(v)), v...)}
}

func less(a, b entry) bool { return bytes.Compare(a.k, b.k) < 0 }

type tables map[string]*btree.BTreeG[entry]

// clone must be called with the owner's lock held: btree.Clone mutates the source's cow context.
func (t tables) clone() tables {
	c := make(tables, len(t))
	for name, tree := range t {
		c[name] = tree.Clone()
	}
	return c
}

type MemoryDB struct {
	mu     sync.Mutex
	writer sync.Mutex // held by the single open RwTx
	tables tables
	closed bool
}

func New() *MemoryDB {
	t := make(tables, len(kv.ChaindataTables))
	for _, name := range kv.ChaindataTables {
		t[name] = btree.NewG[entry](degree, less)
	}
	return &MemoryDB{tables: t}
}

func (db *MemoryDB) Close() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.closed = true
}

func (db *MemoryDB) snapshot() (tables, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.tables.clone(), nil
}

func (db *MemoryDB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	t, err := db.snapshot()
	if err != nil {
		return nil, err
	}
	return &tx{tables: t}, nil
}

func (db *MemoryDB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *MemoryDB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	db.writer.Lock()
	t, err := db.snapshot()
	if err != nil {
		db.writer.Unlock()
		return nil, err
	}
	return &rwTx{tx: tx{tables: t}, db: db}, nil
}

func (db *MemoryDB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

type tx struct {
	tables tables
}

func (tx *tx) table(name string) (*btree.BTreeG[entry], error) {
	if tx.tables == nil {
		return nil, errors.New("memdb: transaction closed")
	}
	t, ok := tx.tables[name]
	if !ok {
		return nil, fmt.Errorf("memdb: unknown table %s", name)
	}
	return t, nil
}

func (tx *tx) Has(table string, key []byte) (bool, error) {
	t, err := tx.table(table)
	if err != nil {
		return false, err
	}
	return t.Has(entry{k: key}), nil
}

func (tx *tx) GetOne(table string, key []byte) ([]byte, error) {
	t, err := tx.table(table)
	if err != nil {
		return nil, err
	}
	e, ok := t.Get(entry{k: key})
	if !ok {
		return nil, nil
	}
	return e.v, nil
}

func (tx *tx) ForEach(table string, fromPrefix []byte, walker func(k, v []byte) error) error {
	c, err := tx.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	return kv.ForEach(c, fromPrefix, walker)
}

func (tx *tx) ForPrefix(table string, prefix []byte, walker func(k, v []byte) error) error {
	c, err := tx.Cursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	return kv.ForPrefix(c, prefix, walker)
}

func (tx *tx) Count(table string) (uint64, error) {
	t, err := tx.table(table)
	if err != nil {
		return 0, err
	}
	return uint64(t.Len()), nil
}

func (tx *tx) Cursor(table string) (kv.Cursor, error) {
	t, err := tx.table(table)
	if err != nil {
		return nil, err
	}
	return &cursor{tree: t}, nil
}

func (tx *tx) Rollback() { tx.tables = nil }

type rwTx struct {
	tx
	db *MemoryDB
}

func (tx *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	t, err := tx.table(table)
	if err != nil {
		return nil, err
	}
	return &cursor{tree: t}, nil
}

func (tx *rwTx) Put(table string, k, v []byte) error {
	t, err := tx.table(table)
	if err != nil {
		return err
	}
	t.ReplaceOrInsert(newEntry(k, v))
	return nil
}

func (tx *rwTx) Delete(table string, k []byte) error {
	t, err := tx.table(table)
	if err != nil {
		return err
	}
	t.Delete(entry{k: k})
	return nil
}

func (tx *rwTx) ClearTable(table string) error {
	t, err := tx.table(table)
	if err != nil {
		return err
	}
	t.Clear(false)
	return nil
}

func (tx *rwTx) Commit() error {
	if tx.tables == nil {
		return errors.New("memdb: transaction closed")
	}
	tx.db.mu.Lock()
	tx.db.tables = tx.tables
	tx.db.mu.Unlock()
	tx.tables = nil
	tx.db.writer.Unlock()
	return nil
}

func (tx *rwTx) Rollback() {
	if tx.tables == nil {
		return
	}
	tx.tables = nil
	tx.db.writer.Unlock()
}

// cursor remembers the current key and re-descends the tree on every move,
// so it stays valid while the rw transaction modifies the same tree.
type cursor struct {
	tree *btree.BTreeG[entry]
	cur  *entry
}

func (c *cursor) set(e entry, found bool) ([]byte, []byte, error) {
	if !found {
		c.cur = nil
		return nil, nil, nil
	}
	c.cur = &e
	return e.k, e.v, nil
}

func (c *cursor) First() ([]byte, []byte, error) {
	e, ok := c.tree.Min()
	return c.set(e, ok)
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	var (
		res   entry
		found bool
	)
	c.tree.AscendGreaterOrEqual(entry{k: seek}, func(e entry) bool {
		res, found = e, true
		return false
	})
	return c.set(res, found)
}

func (c *cursor) SeekExact(key []byte) ([]byte, []byte, error) {
	e, ok := c.tree.Get(entry{k: key})
	if !ok {
		return nil, nil, nil
	}
	return c.set(e, true)
}

func (c *cursor) Next() ([]byte, []byte, error) {
	if c.cur == nil {
		return nil, nil, nil
	}
	var (
		res   entry
		found bool
	)
	from := c.cur.k
	c.tree.AscendGreaterOrEqual(entry{k: from}, func(e entry) bool {
		if bytes.Equal(e.k, from) {
			return true
		}
		res, found = e, true
		return false
	})
	return c.set(res, found)
}

func (c *cursor) Current() ([]byte, []byte, error) {
	if c.cur == nil {
		return nil, nil, nil
	}
	return c.cur.k, c.cur.v, nil
}

func (c *cursor) Put(k, v []byte) error {
	c.tree.ReplaceOrInsert(newEntry(k, v))
	return nil
}

func (c *cursor) Delete(k []byte) error {
	c.tree.Delete(entry{k: k})
	return nil
}

func (c *cursor) Close() { c.cur = nil }
