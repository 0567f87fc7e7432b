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
	"github.com/google/btree"
)

// PrefixSetBuilder collects changed keys in any order.
type PrefixSetBuilder struct {
	keys *btree.BTreeG[Nibbles]
	all  bool
}

func NewPrefixSetBuilder() *PrefixSetBuilder {
	return &PrefixSetBuilder{keys: btree.NewG[Nibbles](16, func(a, b Nibbles) bool { return a.Compare(b) < 0 })}
}

func (b *PrefixSetBuilder) AddKey(key Nibbles) {
	b.keys.ReplaceOrInsert(key.Clone())
}

// SetAll marks every key as changed, as when a storage trie is wiped.
func (b *PrefixSetBuilder) SetAll() { b.all = true }

func (b *PrefixSetBuilder) Len() int { return b.keys.Len() }

// Freeze returns the sorted, deduplicated set. The builder can't be used afterwards.
func (b *PrefixSetBuilder) Freeze() *PrefixSet {
	keys := make([]Nibbles, 0, b.keys.Len())
	b.keys.Ascend(func(k Nibbles) bool {
		keys = append(keys, k)
		return true
	})
	b.keys = nil
	return &PrefixSet{keys: keys, all: b.all}
}

// PrefixSet answers "was any key below this path changed". It keeps the position of
// the previous lookup, so the ascending queries of a trie walk cost O(1) amortised.
// Not safe for concurrent use.
type PrefixSet struct {
	keys  []Nibbles
	index int
	all   bool
}

// NewPrefixSet is a shortcut for a set built from the given keys.
func NewPrefixSet(keys ...Nibbles) *PrefixSet {
	b := NewPrefixSetBuilder()
	for _, k := range keys {
		b.AddKey(k)
	}
	return b.Freeze()
}

func (s *PrefixSet) Len() int { return len(s.keys) }

func (s *PrefixSet) IsAll() bool { return s.all }

// Contains reports whether any changed key starts with prefix.
func (s *PrefixSet) Contains(prefix Nibbles) bool {
	if s.all {
		return true
	}
	for s.index > 0 && s.keys[s.index].Compare(prefix) > 0 {
		s.index--
	}
	for ; s.index < len(s.keys); s.index++ {
		k := s.keys[s.index]
		if k.HasPrefix(prefix) {
			return true
		}
		if k.Compare(prefix) > 0 {
			return false
		}
	}
	// park on the last key so the backwards scan above stays in range
	if s.index > 0 {
		s.index = len(s.keys) - 1
	}
	return false
}
