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
	"encoding/binary"
	"fmt"
	"math/bits"
	"strings"

	"github.com/erigontech/trieroot/common"
)

// TrieMask has one bit per child nibble.
type TrieMask uint16

func (m TrieMask) IsSet(nibble int) bool { return m&(1<<nibble) != 0 }
func (m *TrieMask) Set(nibble int)       { *m |= 1 << nibble }
func (m *TrieMask) Unset(nibble int)     { *m &^= 1 << nibble }
func (m TrieMask) Count() int            { return bits.OnesCount16(uint16(m)) }
func (m TrieMask) IsEmpty() bool         { return m == 0 }

// First returns the lowest set nibble, or -1 for an empty mask.
func (m TrieMask) First() int {
	if m == 0 {
		return -1
	}
	return bits.TrailingZeros16(uint16(m))
}

// IsSubsetOf reports whether every bit of m is also set in other.
func (m TrieMask) IsSubsetOf(other TrieMask) bool { return m&^other == 0 }

func (m TrieMask) String() string { return fmt.Sprintf("%016b", uint16(m)) }

// BranchNodeCompact is the persisted form of a branch node: it doesn't keep the
// children themselves, only what's needed to skip unchanged subtrees.
//
//   - StateMask: children that exist
//   - TreeMask: children that are branches persisted in the trie table themselves
//   - HashMask: children whose hash is cached in Hashes, in nibble order
//   - RootHash: hash of the node itself, set only for the root of a trie
type BranchNodeCompact struct {
	StateMask TrieMask
	TreeMask  TrieMask
	HashMask  TrieMask
	Hashes    []common.Hash
	RootHash  *common.Hash
}

// NewBranchNodeCompact returns ErrInvalidBranchNode on inconsistent masks.
func NewBranchNodeCompact(stateMask, treeMask, hashMask TrieMask, hashes []common.Hash, rootHash *common.Hash) (*BranchNodeCompact, error) {
	n := &BranchNodeCompact{StateMask: stateMask, TreeMask: treeMask, HashMask: hashMask, Hashes: hashes, RootHash: rootHash}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *BranchNodeCompact) Validate() error {
	if n.StateMask.IsEmpty() {
		return fmt.Errorf("%w: empty state mask", ErrInvalidBranchNode)
	}
	if !n.TreeMask.IsSubsetOf(n.StateMask) {
		return fmt.Errorf("%w: tree mask %s is not a subset of state mask %s", ErrInvalidBranchNode, n.TreeMask, n.StateMask)
	}
	if !n.HashMask.IsSubsetOf(n.StateMask) {
		return fmt.Errorf("%w: hash mask %s is not a subset of state mask %s", ErrInvalidBranchNode, n.HashMask, n.StateMask)
	}
	if n.HashMask.Count() != len(n.Hashes) {
		return fmt.Errorf("%w: hash mask %s has %d bits, got %d hashes", ErrInvalidBranchNode, n.HashMask, n.HashMask.Count(), len(n.Hashes))
	}
	return nil
}

// HashForNibble returns the cached hash of the child. The bit must be set in HashMask.
func (n *BranchNodeCompact) HashForNibble(nibble int) common.Hash {
	below := n.HashMask & (1<<nibble - 1)
	return n.Hashes[below.Count()]
}

// Encode layout: state, tree and hash masks as big-endian uint16, then the optional
// root hash, then the child hashes. The root hash is recognised by the length.
func (n *BranchNodeCompact) Encode() []byte {
	size := 6 + len(n.Hashes)*common.HashLength
	if n.RootHash != nil {
		size += common.HashLength
	}
	buf := make([]byte, 6, size)
	binary.BigEndian.PutUint16(buf[0:], uint16(n.StateMask))
	binary.BigEndian.PutUint16(buf[2:], uint16(n.TreeMask))
	binary.BigEndian.PutUint16(buf[4:], uint16(n.HashMask))
	if n.RootHash != nil {
		buf = append(buf, n.RootHash[:]...)
	}
	for i := range n.Hashes {
		buf = append(buf, n.Hashes[i][:]...)
	}
	return buf
}

func DecodeBranchNodeCompact(enc []byte) (*BranchNodeCompact, error) {
	if len(enc) < 6 || (len(enc)-6)%common.HashLength != 0 {
		return nil, fmt.Errorf("%w: encoding of %d bytes", ErrInvalidBranchNode, len(enc))
	}
	n := &BranchNodeCompact{
		StateMask: TrieMask(binary.BigEndian.Uint16(enc[0:])),
		TreeMask:  TrieMask(binary.BigEndian.Uint16(enc[2:])),
		HashMask:  TrieMask(binary.BigEndian.Uint16(enc[4:])),
	}
	hashes := (len(enc) - 6) / common.HashLength
	pos := 6
	switch hashes - n.HashMask.Count() {
	case 0:
	case 1:
		root := common.BytesToHash(enc[pos : pos+common.HashLength])
		n.RootHash = &root
		pos += common.HashLength
	default:
		return nil, fmt.Errorf("%w: %d hashes for hash mask %s", ErrInvalidBranchNode, hashes, n.HashMask)
	}
	if cnt := n.HashMask.Count(); cnt > 0 {
		n.Hashes = make([]common.Hash, cnt)
		for i := range n.Hashes {
			copy(n.Hashes[i][:], enc[pos:pos+common.HashLength])
			pos += common.HashLength
		}
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *BranchNodeCompact) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "{state: %s, tree: %s, hash: %s", n.StateMask, n.TreeMask, n.HashMask)
	if n.RootHash != nil {
		fmt.Fprintf(&sb, ", root: %x", n.RootHash[:])
	}
	for i, h := range n.Hashes {
		fmt.Fprintf(&sb, ", h%d: %x", i, h[:4])
	}
	sb.WriteString("}")
	return sb.String()
}
