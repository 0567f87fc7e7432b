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

// TrieElement is either a reusable branch (IsBranch) or a leaf.
type TrieElement struct {
	IsBranch bool

	// branch
	Key            Nibbles
	Hash           common.Hash
	ChildrenInTrie bool

	// leaf
	LeafKey []byte // 32-byte hashed key
	Value   []byte
}

// NodeIter merges the walker, which knows the cached hashes of unchanged subtrees,
// with the leaves of the changed ones. Elements come out in ascending path order,
// ready to be fed to a HashBuilder.
type NodeIter struct {
	walker *Walker
	hashed HashedCursor

	currentHashedKey   []byte
	currentHashedValue []byte

	currentWalkerKeyChecked bool
}

func NewNodeIter(walker *Walker, hashed HashedCursor) *NodeIter {
	return &NodeIter{walker: walker, hashed: hashed}
}

// Next returns false once both sources are exhausted.
func (it *NodeIter) Next() (TrieElement, bool, error) {
	for {
		if key := it.walker.Key(); key != nil && !it.currentWalkerKeyChecked {
			it.currentWalkerKeyChecked = true
			if it.walker.CanSkipCurrentNode() {
				h, _ := it.walker.Hash()
				return TrieElement{IsBranch: true, Key: key.Clone(), Hash: h, ChildrenInTrie: it.walker.ChildrenInTrie()}, true, nil
			}
		}

		if it.currentHashedKey != nil {
			hashedKey, value := it.currentHashedKey, it.currentHashedValue
			it.currentHashedKey, it.currentHashedValue = nil, nil

			// the walker is behind: let it catch up first, the leaf will be found again by the seek
			if key := it.walker.Key(); key != nil && key.Compare(Unpack(hashedKey)) < 0 {
				it.currentWalkerKeyChecked = false
				continue
			}

			k, v, err := it.hashed.Next()
			if err != nil {
				return TrieElement{}, false, err
			}
			it.currentHashedKey, it.currentHashedValue = k, v
			return TrieElement{LeafKey: hashedKey, Value: value}, true, nil
		}

		seekKey, ok := it.walker.NextUnprocessedKey()
		if !ok {
			return TrieElement{}, false, nil
		}
		k, v, err := it.hashed.Seek(seekKey)
		if err != nil {
			return TrieElement{}, false, err
		}
		it.currentHashedKey, it.currentHashedValue = k, v
		if err := it.walker.Advance(); err != nil {
			return TrieElement{}, false, err
		}
	}
}
