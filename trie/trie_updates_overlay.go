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
	"sort"

	"github.com/erigontech/trieroot/common"
)

type trieUpdatesCursorFactory struct {
	CursorFactory
	updates *TrieUpdates
}

// NewTrieUpdatesCursorFactory overlays the branch nodes of updates on the tries of base,
// as if updates had been written. Leaf cursors are passed through: combine with
// NewHashedPostStateCursorFactory(f, updates.PostState()) for a complete post-update view.
func NewTrieUpdatesCursorFactory(base CursorFactory, updates *TrieUpdates) CursorFactory {
	return &trieUpdatesCursorFactory{CursorFactory: base, updates: updates}
}

func (f *trieUpdatesCursorFactory) AccountTrieCursor() (TrieCursor, error) {
	base, err := f.CursorFactory.AccountTrieCursor()
	if err != nil {
		return nil, err
	}
	return newUpdatesTrieCursor(base, f.updates.accountSet()), nil
}

func (f *trieUpdatesCursorFactory) StorageTrieCursor(addr common.Hash) (TrieCursor, error) {
	s, ok := f.updates.StorageTries[addr]
	if !ok {
		return f.CursorFactory.StorageTrieCursor(addr)
	}
	if s.Wiped {
		return newUpdatesTrieCursor(emptyTrieCursor{}, s.nodeSet), nil
	}
	base, err := f.CursorFactory.StorageTrieCursor(addr)
	if err != nil {
		return nil, err
	}
	return newUpdatesTrieCursor(base, s.nodeSet), nil
}

// updatesTrieCursor merges a base trie cursor with in-memory nodes: in-memory nodes win
// on equal paths and removed paths hide base nodes.
type updatesTrieCursor struct {
	base    TrieCursor
	set     nodeSet
	paths   []string // sorted keys of set.Nodes
	current Nibbles
}

func newUpdatesTrieCursor(base TrieCursor, set nodeSet) *updatesTrieCursor {
	return &updatesTrieCursor{base: base, set: set, paths: sortedPaths(set.Nodes)}
}

func (c *updatesTrieCursor) Seek(key Nibbles) (Nibbles, *BranchNodeCompact, error) {
	k, v, err := c.base.Seek(key)
	if err != nil {
		return nil, nil, err
	}
	// skip base nodes that are removed or overridden
	for k != nil {
		if _, removed := c.set.Removals[string(k)]; !removed {
			break
		}
		if k, v, err = c.base.Next(); err != nil {
			return nil, nil, err
		}
	}

	i := sort.SearchStrings(c.paths, string(key))
	if i < len(c.paths) && (k == nil || c.paths[i] <= string(k)) {
		p := c.paths[i]
		c.current = Nibbles(p)
		return c.current.Clone(), c.set.Nodes[p], nil
	}
	if k == nil {
		c.current = nil
		return nil, nil, nil
	}
	c.current = k.Clone()
	return k, v, nil
}

func (c *updatesTrieCursor) SeekExact(key Nibbles) (Nibbles, *BranchNodeCompact, error) {
	if n, ok := c.set.Nodes[string(key)]; ok {
		c.current = key.Clone()
		return key.Clone(), n, nil
	}
	if _, removed := c.set.Removals[string(key)]; removed {
		c.current = nil
		return nil, nil, nil
	}
	k, v, err := c.base.SeekExact(key)
	if err != nil {
		return nil, nil, err
	}
	c.current = k.Clone()
	return k, v, nil
}

func (c *updatesTrieCursor) Next() (Nibbles, *BranchNodeCompact, error) {
	if c.current == nil {
		return nil, nil, nil
	}
	// current‖0 is the smallest path after current
	return c.Seek(c.current.Concat(0))
}

func (c *updatesTrieCursor) Current() (Nibbles, error) { return c.current, nil }

func (c *updatesTrieCursor) Close() { c.base.Close() }
