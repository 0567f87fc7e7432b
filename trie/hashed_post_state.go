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
	"sort"

	"github.com/erigontech/trieroot/common"
)

// HashedEntry is a leaf as it will be after the change. A nil Value is a deletion.
type HashedEntry struct {
	Key   common.Hash
	Value []byte
}

type HashedStorage struct {
	Wiped bool
	Slots []HashedEntry // sorted by key
}

// HashedPostState is the leaf-level view of a change: final account encodings and
// storage words, sorted, to be read through on top of a snapshot.
type HashedPostState struct {
	Accounts []HashedEntry // sorted by key
	Storages map[common.Hash]*HashedStorage
}

func NewHashedPostState() *HashedPostState {
	return &HashedPostState{Storages: map[common.Hash]*HashedStorage{}}
}

func newHashedStorage(s *StorageChangeset) *HashedStorage {
	hs := &HashedStorage{Wiped: s.Wiped, Slots: make([]HashedEntry, len(s.Slots))}
	for i, slot := range s.Slots {
		hs.Slots[i] = HashedEntry{Key: slot.Key, Value: storageValue(slot.Value)}
	}
	return hs
}

func sortEntries(entries []HashedEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key.Cmp(entries[j].Key) < 0 })
}

// entriesPrefixSet is the set of changed leaf paths for a trie walk.
func entriesPrefixSet(entries []HashedEntry, wiped bool) *PrefixSet {
	b := NewPrefixSetBuilder()
	for _, e := range entries {
		b.AddKey(Unpack(e.Key[:]))
	}
	if wiped {
		b.SetAll()
	}
	return b.Freeze()
}

type hashedPostStateCursorFactory struct {
	CursorFactory
	post *HashedPostState
}

// NewHashedPostStateCursorFactory overlays post on the leaves of base. Trie cursors are
// passed through.
func NewHashedPostStateCursorFactory(base CursorFactory, post *HashedPostState) CursorFactory {
	return &hashedPostStateCursorFactory{CursorFactory: base, post: post}
}

func (f *hashedPostStateCursorFactory) HashedAccountCursor() (HashedCursor, error) {
	base, err := f.CursorFactory.HashedAccountCursor()
	if err != nil {
		return nil, err
	}
	return newPostStateHashedCursor(base, f.post.Accounts), nil
}

func (f *hashedPostStateCursorFactory) HashedStorageCursor(addr common.Hash) (HashedCursor, error) {
	s, ok := f.post.Storages[addr]
	if !ok {
		return f.CursorFactory.HashedStorageCursor(addr)
	}
	if s.Wiped {
		return newPostStateHashedCursor(emptyHashedCursor{}, s.Slots), nil
	}
	base, err := f.CursorFactory.HashedStorageCursor(addr)
	if err != nil {
		return nil, err
	}
	return newPostStateHashedCursor(base, s.Slots), nil
}

// postStateHashedCursor merges a base cursor with sorted in-memory entries, the entries
// win on equal keys and deletions hide base leaves.
type postStateHashedCursor struct {
	base    HashedCursor
	entries []HashedEntry

	baseKey, baseValue []byte
	baseConsumed       bool
	idx                int
}

func newPostStateHashedCursor(base HashedCursor, entries []HashedEntry) *postStateHashedCursor {
	return &postStateHashedCursor{base: base, entries: entries}
}

func (c *postStateHashedCursor) Seek(key []byte) ([]byte, []byte, error) {
	k, v, err := c.base.Seek(key)
	if err != nil {
		return nil, nil, err
	}
	c.baseKey, c.baseValue, c.baseConsumed = k, v, false
	c.idx = sort.Search(len(c.entries), func(i int) bool { return bytes.Compare(c.entries[i].Key[:], key) >= 0 })
	return c.next()
}

func (c *postStateHashedCursor) Next() ([]byte, []byte, error) {
	return c.next()
}

func (c *postStateHashedCursor) next() ([]byte, []byte, error) {
	for {
		if c.baseConsumed {
			k, v, err := c.base.Next()
			if err != nil {
				return nil, nil, err
			}
			c.baseKey, c.baseValue, c.baseConsumed = k, v, false
		}
		var entry *HashedEntry
		if c.idx < len(c.entries) {
			entry = &c.entries[c.idx]
		}
		switch {
		case entry == nil && c.baseKey == nil:
			return nil, nil, nil
		case entry == nil:
			c.baseConsumed = true
			return c.baseKey, c.baseValue, nil
		case c.baseKey != nil && bytes.Compare(c.baseKey, entry.Key[:]) < 0:
			c.baseConsumed = true
			return c.baseKey, c.baseValue, nil
		}
		if c.baseKey != nil && bytes.Equal(c.baseKey, entry.Key[:]) {
			c.baseConsumed = true
		}
		c.idx++
		if entry.Value == nil {
			continue
		}
		return common.Copy(entry.Key[:]), entry.Value, nil
	}
}

func (c *postStateHashedCursor) Close() { c.base.Close() }
