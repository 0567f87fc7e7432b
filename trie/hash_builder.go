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
	"fmt"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/rlp"
)

// NodeUpdate is a branch node the hash builder wants persisted at Path.
type NodeUpdate struct {
	Path Nibbles
	Node *BranchNodeCompact
}

// HashBuilder folds a sorted stream of leaves and cached subtree hashes into the root
// hash. It is the structural step of the stream algorithm: comparing the current key
// with its predecessor (the `groups` stack) and its successor tells which prefix groups
// (branches) are closed, and each closed group is encoded, hashed and pushed back onto
// the node stack.
//
// Keys must be added in strictly ascending order.
type HashBuilder struct {
	key        Nibbles
	value      []byte // leaf value, or the hash when isHash
	isHash     bool
	storedInDB bool

	stack     [][]byte // node references
	groups    []TrieMask
	treeMasks []TrieMask
	hashMasks []TrieMask

	retainUpdates bool
	updates       []NodeUpdate
	proofs        *proofRetainer

	trace  bool
	logger log.Logger

	buf []byte
	err error // first invariant violation, see Err
}

func NewHashBuilder() *HashBuilder {
	return &HashBuilder{}
}

// WithUpdates makes the builder produce the BranchNodeCompact of every folded branch
// which has a tree or hash mask bit.
func (hb *HashBuilder) WithUpdates() *HashBuilder {
	hb.retainUpdates = true
	return hb
}

// WithProofRetainer keeps the encodings of all nodes on the paths to targets.
func (hb *HashBuilder) WithProofRetainer(targets ...Nibbles) *HashBuilder {
	hb.proofs = newProofRetainer(targets)
	return hb
}

func (hb *HashBuilder) WithTrace(logger log.Logger) *HashBuilder {
	hb.trace, hb.logger = true, logger
	return hb
}

func (hb *HashBuilder) AddLeaf(key Nibbles, value []byte) {
	if len(hb.key) > 0 && key.Compare(hb.key) <= 0 {
		panic(fmt.Sprintf("add leaf %s after %s", key, hb.key))
	}
	if len(hb.key) > 0 {
		hb.update(key)
	}
	hb.key, hb.value, hb.isHash = key.Clone(), common.Copy(value), false
	if hb.trace {
		hb.logger.Trace("[hb] leaf", "key", hb.key, "value", fmt.Sprintf("%x", value))
	}
}

// AddBranch adds a subtree known only by its hash. storedInDB tells whether the
// subtree's root is a persisted branch node (tree mask bit for the parent).
func (hb *HashBuilder) AddBranch(key Nibbles, hash common.Hash, storedInDB bool) {
	if len(hb.key) > 0 && key.Compare(hb.key) <= 0 {
		panic(fmt.Sprintf("add branch %s after %s", key, hb.key))
	}
	if len(hb.key) > 0 {
		hb.update(key)
	} else if len(key) == 0 {
		hb.stack = append(hb.stack, HashRef(hash))
	}
	hb.key, hb.value, hb.isHash = key.Clone(), common.Copy(hash[:]), true
	hb.storedInDB = storedInDB
	if hb.trace {
		hb.logger.Trace("[hb] branch", "key", hb.key, "hash", hash, "inDB", storedInDB)
	}
}

// Root finishes the fold and returns the root hash. EmptyRoot if nothing was added.
func (hb *HashBuilder) Root() common.Hash {
	if len(hb.key) > 0 {
		hb.update(Nibbles{})
		hb.key, hb.value = nil, nil
	}
	root := hb.currentRoot()
	if root == common.EmptyRoot && hb.proofs != nil {
		hb.proofs.retain(Nibbles{}, []byte{rlp.EmptyStringCode})
	}
	return root
}

func (hb *HashBuilder) currentRoot() common.Hash {
	if len(hb.stack) == 0 {
		return common.EmptyRoot
	}
	last := hb.stack[len(hb.stack)-1]
	if h, ok := refHash(last); ok {
		return h
	}
	return common.Keccak256Hash(last)
}

// Err returns the first internal invariant violation met while folding. Root and
// TakeUpdates results are meaningless once it is set.
func (hb *HashBuilder) Err() error {
	return hb.err
}

func (hb *HashBuilder) fail(err error) {
	if hb.err == nil {
		hb.err = err
	}
}

// TakeUpdates returns the collected branch nodes and forgets them.
func (hb *HashBuilder) TakeUpdates() []NodeUpdate {
	u := hb.updates
	hb.updates = nil
	return u
}

// TakeProofs returns the retained nodes sorted by path, root first.
func (hb *HashBuilder) TakeProofs() []ProofNode {
	if hb.proofs == nil {
		return nil
	}
	return hb.proofs.take()
}

func (hb *HashBuilder) update(succeeding Nibbles) {
	buildExtensions := false
	current := hb.key.Clone()

	for {
		precedingExists := len(hb.groups) > 0
		precedingLen := 0
		if precedingExists {
			precedingLen = len(hb.groups) - 1
		}
		commonPrefixLen := CommonPrefixLen(succeeding, current)
		l := max(precedingLen, commonPrefixLen)
		if l >= len(current) {
			panic(fmt.Sprintf("prefix length %d, current %s", l, current))
		}

		// state mask of the enclosing branch
		extraDigit := int(current[l])
		for len(hb.groups) <= l {
			hb.groups = append(hb.groups, 0)
		}
		hb.groups[l].Set(extraDigit)

		if len(hb.treeMasks) < len(current) {
			hb.resizeMasks(len(current))
		}

		lenFrom := l
		if len(succeeding) > 0 || precedingExists {
			lenFrom++
		}
		shortNodeKey := current[lenFrom:]

		if !buildExtensions {
			if !hb.isHash {
				hb.buf = encodeLeaf(hb.buf[:0], shortNodeKey, hb.value)
				hb.retainProof(current[:lenFrom])
				hb.stack = append(hb.stack, NodeRef(hb.buf))
			} else {
				hb.stack = append(hb.stack, rlp.AppendHash(nil, hb.value))
				last := len(current) - 1
				if hb.storedInDB {
					hb.treeMasks[last].Set(int(current[last]))
				}
				hb.hashMasks[last].Set(int(current[last]))
				buildExtensions = true
			}
		}

		if buildExtensions && len(shortNodeKey) > 0 {
			hb.updateMasks(current, lenFrom)
			child := hb.stack[len(hb.stack)-1]
			hb.buf = encodeExtension(hb.buf[:0], shortNodeKey, child)
			hb.retainProof(current[:lenFrom])
			hb.stack[len(hb.stack)-1] = NodeRef(hb.buf)
			hb.resizeMasks(lenFrom)
		}

		if precedingLen <= commonPrefixLen && len(succeeding) > 0 {
			return
		}

		if len(succeeding) > 0 || precedingExists {
			children := hb.pushBranchNode(current, l)
			hb.storeBranchNode(current, l, children)
		}

		hb.groups = hb.groups[:l]
		hb.resizeMasks(l)

		if precedingLen == 0 {
			return
		}

		current = current[:precedingLen]
		for len(hb.groups) > 0 && hb.groups[len(hb.groups)-1] == 0 {
			hb.groups = hb.groups[:len(hb.groups)-1]
		}
		buildExtensions = true
	}
}

// pushBranchNode replaces the children on top of the stack with their branch and
// returns the hashes of the children marked in the hash mask.
func (hb *HashBuilder) pushBranchNode(current Nibbles, l int) []common.Hash {
	stateMask := hb.groups[l]
	hashMask := hb.hashMasks[l]
	first := len(hb.stack) - stateMask.Count()
	children := hb.stack[first:]

	var hashes []common.Hash
	if hb.retainUpdates && !hashMask.IsEmpty() {
		hashes = make([]common.Hash, 0, hashMask.Count())
		i := 0
		for nibble := 0; nibble < 16; nibble++ {
			if !stateMask.IsSet(nibble) {
				continue
			}
			if hashMask.IsSet(nibble) {
				h, ok := refHash(children[i])
				if !ok {
					hb.fail(fmt.Errorf("%w: hash mask child %d of %s is inlined", ErrInternalInvariant, nibble, current[:l]))
				} else {
					hashes = append(hashes, h)
				}
			}
			i++
		}
	}

	hb.buf = encodeBranch(hb.buf[:0], stateMask, children, nil)
	hb.retainProof(current[:l])
	ref := NodeRef(hb.buf)
	hb.stack = append(hb.stack[:first], ref)
	if hb.trace {
		hb.logger.Trace("[hb] branch node", "path", current[:l], "state", stateMask, "ref", fmt.Sprintf("%x", ref))
	}
	return hashes
}

func (hb *HashBuilder) storeBranchNode(current Nibbles, l int, hashes []common.Hash) {
	if _, isHash := refHash(hb.stack[len(hb.stack)-1]); l > 0 && isHash {
		hb.hashMasks[l-1].Set(int(current[l-1]))
	}
	if hb.treeMasks[l].IsEmpty() && hb.hashMasks[l].IsEmpty() {
		return
	}
	if l > 0 {
		hb.treeMasks[l-1].Set(int(current[l-1]))
	}
	if !hb.retainUpdates {
		return
	}
	var rootHash *common.Hash
	if l == 0 {
		h := hb.currentRoot()
		rootHash = &h
	}
	node, err := NewBranchNodeCompact(hb.groups[l], hb.treeMasks[l], hb.hashMasks[l], hashes, rootHash)
	if err != nil {
		hb.fail(fmt.Errorf("branch %s: %w", current[:l], err))
		return
	}
	hb.updates = append(hb.updates, NodeUpdate{Path: current[:l].Clone(), Node: node})
}

func (hb *HashBuilder) updateMasks(current Nibbles, lenFrom int) {
	if lenFrom == 0 {
		return
	}
	nibble := int(current[lenFrom-1])
	hb.hashMasks[lenFrom-1].Unset(nibble)
	if !hb.treeMasks[len(current)-1].IsEmpty() {
		hb.treeMasks[lenFrom-1].Set(nibble)
	}
}

func (hb *HashBuilder) resizeMasks(n int) {
	hb.treeMasks = resizeMasks(hb.treeMasks, n)
	hb.hashMasks = resizeMasks(hb.hashMasks, n)
}

func resizeMasks(masks []TrieMask, n int) []TrieMask {
	if n <= len(masks) {
		return masks[:n]
	}
	for len(masks) < n {
		masks = append(masks, 0)
	}
	return masks
}

func (hb *HashBuilder) retainProof(path Nibbles) {
	if hb.proofs != nil {
		hb.proofs.retain(path, hb.buf)
	}
}
