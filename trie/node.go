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

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/rlp"
)

// Node is one of LeafNode, ExtensionNode or BranchNode.
// Nodes never point at each other: children are held as references (see NodeRef).
type Node interface {
	node()
}

type LeafNode struct {
	Key   Nibbles // remaining path below the parent
	Value []byte
}

type ExtensionNode struct {
	Key   Nibbles
	Child []byte // NodeRef of the child
}

type BranchNode struct {
	Children [16][]byte // NodeRef per nibble, nil if absent
	Value    []byte
}

func (*LeafNode) node()      {}
func (*ExtensionNode) node() {}
func (*BranchNode) node()    {}

// NodeRef returns how a node with the given encoding is embedded into its parent:
// encodings shorter than common.HashLength are inlined, longer ones are replaced by
// the rlp string of their keccak hash.
func NodeRef(enc []byte) []byte {
	if len(enc) < common.HashLength {
		return common.Copy(enc)
	}
	return HashRef(common.Keccak256Hash(enc))
}

// HashRef is the reference to a node known only by its hash.
func HashRef(h common.Hash) []byte {
	return rlp.AppendHash(make([]byte, 0, 33), h[:])
}

// refHash returns the hash in a by-hash reference.
func refHash(ref []byte) (common.Hash, bool) {
	if len(ref) != 33 || ref[0] != rlp.EmptyStringCode+32 {
		return common.Hash{}, false
	}
	return common.BytesToHash(ref[1:]), true
}

// EncodeNode appends the rlp encoding of n to buf.
func EncodeNode(buf []byte, n Node) []byte {
	switch n := n.(type) {
	case *LeafNode:
		return encodeLeaf(buf, n.Key, n.Value)
	case *ExtensionNode:
		return encodeExtension(buf, n.Key, n.Child)
	case *BranchNode:
		var mask TrieMask
		children := make([][]byte, 0, 16)
		for i, c := range n.Children {
			if c != nil {
				mask.Set(i)
				children = append(children, c)
			}
		}
		return encodeBranch(buf, mask, children, n.Value)
	default:
		panic(fmt.Sprintf("unexpected node type %T", n))
	}
}

func encodeLeaf(buf []byte, key Nibbles, value []byte) []byte {
	path := key.EncodeCompact(true)
	buf = rlp.AppendListPrefix(buf, rlp.StringLen(path)+rlp.StringLen(value))
	buf = rlp.AppendString(buf, path)
	return rlp.AppendString(buf, value)
}

func encodeExtension(buf []byte, key Nibbles, child []byte) []byte {
	path := key.EncodeCompact(false)
	buf = rlp.AppendListPrefix(buf, rlp.StringLen(path)+len(child))
	buf = rlp.AppendString(buf, path)
	return append(buf, child...)
}

// encodeBranch encodes a branch whose present children (in nibble order) are given by
// mask and children. Children are node references, absent slots encode as empty strings.
func encodeBranch(buf []byte, mask TrieMask, children [][]byte, value []byte) []byte {
	payloadLen := 16 - mask.Count() + rlp.StringLen(value)
	for _, c := range children {
		payloadLen += len(c)
	}
	buf = rlp.AppendListPrefix(buf, payloadLen)
	next := 0
	for i := 0; i < 16; i++ {
		if mask.IsSet(i) {
			buf = append(buf, children[next]...)
			next++
		} else {
			buf = append(buf, rlp.EmptyStringCode)
		}
	}
	return rlp.AppendString(buf, value)
}

// DecodeNode parses a node encoding, as found in proofs.
func DecodeNode(enc []byte) (Node, error) {
	items, err := rlp.Items(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidProof, err)
	}
	switch len(items) {
	case 2:
		pos, l, err := rlp.String(items[0], 0)
		if err != nil {
			return nil, fmt.Errorf("%w: node path: %w", ErrInvalidProof, err)
		}
		key, isLeaf, err := DecodeCompact(items[0][pos : pos+l])
		if err != nil {
			return nil, err
		}
		if isLeaf {
			pos, l, err := rlp.String(items[1], 0)
			if err != nil {
				return nil, fmt.Errorf("%w: leaf value: %w", ErrInvalidProof, err)
			}
			return &LeafNode{Key: key, Value: items[1][pos : pos+l]}, nil
		}
		if err := checkRef(items[1]); err != nil {
			return nil, err
		}
		return &ExtensionNode{Key: key, Child: items[1]}, nil
	case 17:
		b := &BranchNode{}
		for i := 0; i < 16; i++ {
			if len(items[i]) == 1 && items[i][0] == rlp.EmptyStringCode {
				continue
			}
			if err := checkRef(items[i]); err != nil {
				return nil, err
			}
			b.Children[i] = items[i]
		}
		pos, l, err := rlp.String(items[16], 0)
		if err != nil {
			return nil, fmt.Errorf("%w: branch value: %w", ErrInvalidProof, err)
		}
		if l > 0 {
			b.Value = items[16][pos : pos+l]
		}
		return b, nil
	default:
		return nil, fmt.Errorf("%w: node with %d items", ErrInvalidProof, len(items))
	}
}

// checkRef accepts a 32-byte hash string or an inline node list shorter than a hash.
func checkRef(ref []byte) error {
	if _, ok := refHash(ref); ok {
		return nil
	}
	if len(ref) < common.HashLength && len(ref) > 0 && ref[0] >= rlp.EmptyListCode {
		return nil
	}
	return fmt.Errorf("%w: malformed child reference %x", ErrInvalidProof, ref)
}
