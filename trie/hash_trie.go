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
	"context"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/rlp"
)

// trieWalk is one incremental hashing of a single trie: walker and leaves are merged by
// a NodeIter and folded by hb.
type trieWalk struct {
	trieCursor TrieCursor
	hashed     HashedCursor
	changes    *PrefixSet
	hb         *HashBuilder

	retainRemoved bool
	strict        bool

	// storage leaves hold the bare word, the trie commits to its rlp string encoding
	storage bool
	// ctx is checked between leaves when set
	ctx context.Context
	// progress, if set, is called with every leaf key
	progress func(key []byte)
}

type walkResult struct {
	root    common.Hash
	updates []NodeUpdate
	removed []Nibbles
	leaves  int
	skipped int
}

func (tw *trieWalk) run() (walkResult, error) {
	walker, err := newWalker(tw.trieCursor, tw.changes, tw.retainRemoved, tw.strict)
	if err != nil {
		return walkResult{}, err
	}
	it := NewNodeIter(walker, tw.hashed)

	var res walkResult
	var valueBuf []byte
	for {
		el, ok, err := it.Next()
		if err != nil {
			return walkResult{}, err
		}
		if !ok {
			break
		}
		if el.IsBranch {
			tw.hb.AddBranch(el.Key, el.Hash, el.ChildrenInTrie)
			res.skipped++
			continue
		}
		if tw.ctx != nil {
			if err := common.Stopped(tw.ctx); err != nil {
				return walkResult{}, err
			}
		}
		value := el.Value
		if tw.storage {
			valueBuf = rlp.AppendString(valueBuf[:0], el.Value)
			value = valueBuf
		}
		tw.hb.AddLeaf(Unpack(el.LeafKey), value)
		res.leaves++
		if tw.progress != nil {
			tw.progress(el.LeafKey)
		}
	}

	res.root = tw.hb.Root()
	res.updates = tw.hb.TakeUpdates()
	if err := tw.hb.Err(); err != nil {
		return walkResult{}, err
	}
	res.removed = walker.RemovedKeys()

	mxSkippedSubtrees.Add(float64(res.skipped))
	mxLeavesHashed.Add(float64(res.leaves))
	mxBranchNodesUpdated.Add(float64(len(res.updates)))
	mxBranchNodesRemoved.Add(float64(len(res.removed)))
	return res, nil
}
