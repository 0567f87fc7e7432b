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

package trie

import (
	"bytes"
	"fmt"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
)

type dbCursorFactory struct {
	tx kv.Tx
}

// NewDBCursorFactory reads the tries and the hashed state from kv tables.
func NewDBCursorFactory(tx kv.Tx) CursorFactory {
	return &dbCursorFactory{tx: tx}
}

func (f *dbCursorFactory) AccountTrieCursor() (TrieCursor, error) {
	return f.trieCursor(kv.TrieOfAccounts, nil)
}

func (f *dbCursorFactory) StorageTrieCursor(addr common.Hash) (TrieCursor, error) {
	return f.trieCursor(kv.TrieOfStorage, common.Copy(addr[:]))
}

func (f *dbCursorFactory) HashedAccountCursor() (HashedCursor, error) {
	return f.hashedCursor(kv.HashedAccounts, nil)
}

func (f *dbCursorFactory) HashedStorageCursor(addr common.Hash) (HashedCursor, error) {
	return f.hashedCursor(kv.HashedStorage, common.Copy(addr[:]))
}

func (f *dbCursorFactory) trieCursor(table string, prefix []byte) (TrieCursor, error) {
	c, err := f.tx.Cursor(table)
	if err != nil {
		return nil, kv.WrapErr(table, err)
	}
	return &dbTrieCursor{c: c, table: table, prefix: prefix}, nil
}

func (f *dbCursorFactory) hashedCursor(table string, prefix []byte) (HashedCursor, error) {
	c, err := f.tx.Cursor(table)
	if err != nil {
		return nil, kv.WrapErr(table, err)
	}
	return &dbHashedCursor{c: c, table: table, prefix: prefix}, nil
}

// dbTrieCursor reads TrieOfAccounts, or the part of TrieOfStorage under one address.
type dbTrieCursor struct {
	c       kv.Cursor
	table   string
	prefix  []byte
	current Nibbles
	buf     []byte
}

func (c *dbTrieCursor) key(path Nibbles) []byte {
	c.buf = append(append(c.buf[:0], c.prefix...), path...)
	return c.buf
}

func (c *dbTrieCursor) Seek(key Nibbles) (Nibbles, *BranchNodeCompact, error) {
	return c.decode(c.c.Seek(c.key(key)))
}

func (c *dbTrieCursor) SeekExact(key Nibbles) (Nibbles, *BranchNodeCompact, error) {
	return c.decode(c.c.SeekExact(c.key(key)))
}

func (c *dbTrieCursor) Next() (Nibbles, *BranchNodeCompact, error) {
	if c.current == nil {
		return nil, nil, nil
	}
	return c.decode(c.c.Next())
}

func (c *dbTrieCursor) Current() (Nibbles, error) { return c.current, nil }

func (c *dbTrieCursor) Close() { c.c.Close() }

func (c *dbTrieCursor) decode(k, v []byte, err error) (Nibbles, *BranchNodeCompact, error) {
	if err != nil {
		return nil, nil, kv.WrapErr(c.table, err)
	}
	if k == nil || !bytes.HasPrefix(k, c.prefix) {
		c.current = nil
		return nil, nil, nil
	}
	node, err := DecodeBranchNodeCompact(v)
	if err != nil {
		return nil, nil, fmt.Errorf("%s %x: %w", c.table, k, err)
	}
	c.current = append(Nibbles{}, k[len(c.prefix):]...)
	return c.current, node, nil
}

// dbHashedCursor reads HashedAccounts, or the slots of one address in HashedStorage.
type dbHashedCursor struct {
	c      kv.Cursor
	table  string
	prefix []byte
	buf    []byte
}

func (c *dbHashedCursor) Seek(key []byte) ([]byte, []byte, error) {
	c.buf = append(append(c.buf[:0], c.prefix...), key...)
	return c.strip(c.c.Seek(c.buf))
}

func (c *dbHashedCursor) Next() ([]byte, []byte, error) {
	return c.strip(c.c.Next())
}

func (c *dbHashedCursor) Close() { c.c.Close() }

func (c *dbHashedCursor) strip(k, v []byte, err error) ([]byte, []byte, error) {
	if err != nil {
		return nil, nil, kv.WrapErr(c.table, err)
	}
	if k == nil || !bytes.HasPrefix(k, c.prefix) {
		return nil, nil, nil
	}
	return common.Copy(k[len(c.prefix):]), v, nil
}
