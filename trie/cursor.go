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
	"github.com/erigontech/trieroot/common"
)

// TrieCursor iterates persisted branch nodes of one trie in path order.
// A nil key means the cursor is exhausted.
type TrieCursor interface {
	// Seek positions at the first node with path >= key.
	Seek(key Nibbles) (Nibbles, *BranchNodeCompact, error)
	SeekExact(key Nibbles) (Nibbles, *BranchNodeCompact, error)
	Next() (Nibbles, *BranchNodeCompact, error)
	// Current returns the path of the last returned node.
	Current() (Nibbles, error)
	Close()
}

// HashedCursor iterates the leaves of one trie: 32-byte hashed keys and their raw values
// (account encoding, or the trimmed big-endian storage word). A nil key means exhausted.
type HashedCursor interface {
	Seek(key []byte) ([]byte, []byte, error)
	Next() ([]byte, []byte, error)
	Close()
}

// CursorFactory opens cursors on one consistent snapshot. Cursors it returns may be
// used from different goroutines, each cursor by one goroutine at a time.
type CursorFactory interface {
	AccountTrieCursor() (TrieCursor, error)
	StorageTrieCursor(addr common.Hash) (TrieCursor, error)
	HashedAccountCursor() (HashedCursor, error)
	HashedStorageCursor(addr common.Hash) (HashedCursor, error)
}

type emptyTrieCursor struct{}

func (emptyTrieCursor) Seek(Nibbles) (Nibbles, *BranchNodeCompact, error)      { return nil, nil, nil }
func (emptyTrieCursor) SeekExact(Nibbles) (Nibbles, *BranchNodeCompact, error) { return nil, nil, nil }
func (emptyTrieCursor) Next() (Nibbles, *BranchNodeCompact, error)             { return nil, nil, nil }
func (emptyTrieCursor) Current() (Nibbles, error)                              { return nil, nil }
func (emptyTrieCursor) Close()                                                 {}

type emptyHashedCursor struct{}

func (emptyHashedCursor) Seek([]byte) ([]byte, []byte, error) { return nil, nil, nil }
func (emptyHashedCursor) Next() ([]byte, []byte, error)       { return nil, nil, nil }
func (emptyHashedCursor) Close()                              {}

// seekHashedExact returns the value stored under key, nil if there is none.
func seekHashedExact(c HashedCursor, key []byte) ([]byte, error) {
	k, v, err := c.Seek(key)
	if err != nil {
		return nil, err
	}
	if k == nil || string(k) != string(key) {
		return nil, nil
	}
	return v, nil
}
