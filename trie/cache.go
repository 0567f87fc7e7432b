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
	lru "github.com/hashicorp/golang-lru/v2"
)

type cachedLookup struct {
	key  Nibbles // nil if nothing was found
	node *BranchNodeCompact
}

// nodeCache remembers trie cursor lookups. One cache belongs to one proof generator and
// assumes the snapshot below it never changes.
type nodeCache struct {
	lookups *lru.Cache[string, cachedLookup]
}

func newNodeCache(size int) *nodeCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, cachedLookup](size)
	if err != nil {
		panic(err)
	}
	return &nodeCache{lookups: c}
}

// wrap returns a cursor serving lookups of the trie identified by id from the cache.
func (nc *nodeCache) wrap(id string, c TrieCursor) TrieCursor {
	if nc == nil {
		return c
	}
	return &cachedTrieCursor{base: c, cache: nc, id: id}
}

type cachedTrieCursor struct {
	base    TrieCursor
	cache   *nodeCache
	id      string
	current Nibbles
}

func (c *cachedTrieCursor) lookup(kind byte, key Nibbles, seek func(Nibbles) (Nibbles, *BranchNodeCompact, error)) (Nibbles, *BranchNodeCompact, error) {
	ck := c.id + string(kind) + string(key)
	if l, ok := c.cache.lookups.Get(ck); ok {
		mxProofCacheHits.Inc()
		c.current = l.key
		return l.key.Clone(), l.node, nil
	}
	k, n, err := seek(key)
	if err != nil {
		return nil, nil, err
	}
	c.cache.lookups.Add(ck, cachedLookup{key: k.Clone(), node: n})
	c.current = k.Clone()
	return k, n, nil
}

func (c *cachedTrieCursor) Seek(key Nibbles) (Nibbles, *BranchNodeCompact, error) {
	return c.lookup('s', key, c.base.Seek)
}

func (c *cachedTrieCursor) SeekExact(key Nibbles) (Nibbles, *BranchNodeCompact, error) {
	return c.lookup('e', key, c.base.SeekExact)
}

// Next is a seek past the current path, the base cursor may be elsewhere after cache hits.
func (c *cachedTrieCursor) Next() (Nibbles, *BranchNodeCompact, error) {
	if c.current == nil {
		return nil, nil, nil
	}
	return c.Seek(c.current.Concat(0))
}

func (c *cachedTrieCursor) Current() (Nibbles, error) { return c.current, nil }

func (c *cachedTrieCursor) Close() { c.base.Close() }
