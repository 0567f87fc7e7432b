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

// Package boltdb is a persistent kv.RwDB on top of bbolt. Every table is a bucket.
//
// bbolt rejects empty keys while the trie stores its root node under the empty
// path, so every key is written with a one byte keyPrefix which cursors strip again.
package boltdb

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	bolt "go.etcd.io/bbolt"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
)

const keyPrefix = 0x00

type Opts struct {
	Path     string
	ReadOnly bool
	MapSize  datasize.ByteSize
	NoSync   bool
	Timeout  time.Duration
}

func NewOpts(path string) Opts {
	return Opts{Path: path, MapSize: 256 * datasize.MB, Timeout: time.Second}
}

func (opts Opts) WithReadOnly(ro bool) Opts            { opts.ReadOnly = ro; return opts }
func (opts Opts) WithMapSize(sz datasize.ByteSize) Opts { opts.MapSize = sz; return opts }
func (opts Opts) WithNoSync(noSync bool) Opts           { opts.NoSync = noSync; return opts }

type BoltDB struct {
	db     *bolt.DB
	opts   Opts
	logger log.Logger
}

// Open opens (and creates when writable) the database file and all its tables.
func Open(opts Opts, logger log.Logger) (*BoltDB, error) {
	db, err := bolt.Open(opts.Path, 0o644, &bolt.Options{
		Timeout:         opts.Timeout,
		ReadOnly:        opts.ReadOnly,
		InitialMmapSize: int(opts.MapSize.Bytes()),
		NoSync:          opts.NoSync,
		FreelistType:    bolt.FreelistMapType,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", kv.ErrStorageUnavailable, opts.Path, err)
	}
	if !opts.ReadOnly {
		if err := db.Update(func(tx *bolt.Tx) error {
			for _, name := range kv.ChaindataTables {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return err
				}
			}
			return nil
		}); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: create tables: %w", kv.ErrStorageUnavailable, err)
		}
	}
	logger.Debug("[db] opened", "path", opts.Path, "readonly", opts.ReadOnly, "mmap", opts.MapSize.HumanReadable())
	return &BoltDB{db: db, opts: opts, logger: logger}, nil
}

func (db *BoltDB) Close() {
	if err := db.db.Close(); err != nil {
		db.logger.Warn("[db] close", "path", db.opts.Path, "err", err)
	}
}

// Size returns the size of the database file.
func (db *BoltDB) Size() (datasize.ByteSize, error) {
	st, err := os.Stat(db.opts.Path)
	if err != nil {
		return 0, err
	}
	return datasize.ByteSize(st.Size()), nil
}

func (db *BoltDB) BeginRo(ctx context.Context) (kv.Tx, error) {
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	btx, err := db.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return &tx{btx: btx}, nil
}

func (db *BoltDB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *BoltDB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	btx, err := db.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &rwTx{tx: tx{btx: btx}}, nil
}

func (db *BoltDB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
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

func dbKey(k []byte) []byte {
	out := make([]byte, 1+len(k))
	out[0] = keyPrefix
	copy(out[1:], k)
	return out
}

func userKey(k []byte) []byte {
	if k == nil {
		return nil
	}
	return k[1:]
}

// tx serializes access to the underlying bolt transaction: bolt objects are not
// safe for concurrent use, while kv.Tx promises concurrent cursors.
type tx struct {
	mu  sync.Mutex
	btx *bolt.Tx
}

func (tx *tx) bucket(name string) (*bolt.Bucket, error) {
	b := tx.btx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("boltdb: table %s not found", name)
	}
	return b, nil
}

func (tx *tx) Has(table string, key []byte) (bool, error) {
	v, err := tx.GetOne(table, key)
	return v != nil, err
}

func (tx *tx) GetOne(table string, key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	b, err := tx.bucket(table)
	if err != nil {
		return nil, err
	}
	return b.Get(dbKey(key)), nil
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
	tx.mu.Lock()
	defer tx.mu.Unlock()
	b, err := tx.bucket(table)
	if err != nil {
		return 0, err
	}
	return uint64(b.Stats().KeyN), nil
}

func (tx *tx) Cursor(table string) (kv.Cursor, error) {
	return tx.newCursor(table)
}

func (tx *tx) newCursor(table string) (*cursor, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	b, err := tx.bucket(table)
	if err != nil {
		return nil, err
	}
	return &cursor{tx: tx, bucket: b}, nil
}

func (tx *tx) Rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	_ = tx.btx.Rollback() // ErrTxClosed after Commit is fine
}

type rwTx struct {
	tx
}

func (tx *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	return tx.newCursor(table)
}

func (tx *rwTx) Put(table string, k, v []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	b, err := tx.bucket(table)
	if err != nil {
		return err
	}
	return b.Put(dbKey(k), append([]byte{}, v...))
}

func (tx *rwTx) Delete(table string, k []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	b, err := tx.bucket(table)
	if err != nil {
		return err
	}
	return b.Delete(dbKey(k))
}

func (tx *rwTx) ClearTable(table string) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	name := []byte(table)
	if err := tx.btx.DeleteBucket(name); err != nil {
		return err
	}
	_, err := tx.btx.CreateBucket(name)
	return err
}

func (tx *rwTx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.btx.Commit()
}

// cursor keeps its own position as a key and re-seeks the bolt cursor on each
// move, so interleaved cursors and writes on one transaction don't disturb it.
type cursor struct {
	tx     *tx
	bucket *bolt.Bucket
	k, v   []byte
}

func (c *cursor) set(k, v []byte) ([]byte, []byte, error) {
	c.k, c.v = userKey(k), v
	return c.k, c.v, nil
}

func (c *cursor) First() ([]byte, []byte, error) {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	return c.set(c.bucket.Cursor().First())
}

func (c *cursor) Seek(seek []byte) ([]byte, []byte, error) {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	return c.set(c.bucket.Cursor().Seek(dbKey(seek)))
}

func (c *cursor) SeekExact(key []byte) ([]byte, []byte, error) {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	k, v := c.bucket.Cursor().Seek(dbKey(key))
	if k == nil || !bytes.Equal(k[1:], key) {
		return nil, nil, nil
	}
	return c.set(k, v)
}

func (c *cursor) Next() ([]byte, []byte, error) {
	if c.k == nil {
		return nil, nil, nil
	}
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	bc := c.bucket.Cursor()
	k, v := bc.Seek(dbKey(c.k))
	if k != nil && bytes.Equal(k[1:], c.k) {
		k, v = bc.Next()
	}
	return c.set(k, v)
}

func (c *cursor) Current() ([]byte, []byte, error) {
	return c.k, c.v, nil
}

func (c *cursor) Put(k, v []byte) error {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	return c.bucket.Put(dbKey(k), append([]byte{}, v...))
}

func (c *cursor) Delete(k []byte) error {
	c.tx.mu.Lock()
	defer c.tx.mu.Unlock()
	return c.bucket.Delete(dbKey(k))
}

func (c *cursor) Close() {}
