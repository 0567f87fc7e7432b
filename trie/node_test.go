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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erigontech/trieroot/common"
)

func TestNodeRef(t *testing.T) {
	short := EncodeNode(nil, &LeafNode{Key: Nibbles{1, 2}, Value: []byte("v")})
	require.Less(t, len(short), common.HashLength)
	require.Equal(t, short, NodeRef(short))
	_, isHash := refHash(NodeRef(short))
	require.False(t, isHash)

	long := EncodeNode(nil, &LeafNode{Key: Unpack(bytes.Repeat([]byte{0xab}, 32)), Value: []byte("value")})
	ref := NodeRef(long)
	require.Len(t, ref, 33)
	h, isHash := refHash(ref)
	require.True(t, isHash)
	require.Equal(t, common.Keccak256Hash(long), h)
}

func TestNodeEncodeDecode(t *testing.T) {
	leaf := &LeafNode{Key: Nibbles{3, 4, 5}, Value: []byte("hello")}
	ext := &ExtensionNode{Key: Nibbles{1, 2}, Child: HashRef(common.HexToHash("0x01"))}
	branch := &BranchNode{}
	branch.Children[0] = NodeRef(EncodeNode(nil, leaf))
	branch.Children[0xf] = HashRef(common.HexToHash("0x02"))

	for _, n := range []Node{leaf, ext, branch} {
		enc := EncodeNode(nil, n)
		decoded, err := DecodeNode(enc)
		require.NoError(t, err)
		require.Equal(t, n, decoded)
		require.Equal(t, enc, EncodeNode(nil, decoded))
	}
}

func TestBranchEncodingIsCanonical(t *testing.T) {
	// same children, different construction order: same bytes
	a, b := &BranchNode{}, &BranchNode{}
	refs := map[int][]byte{
		2:  HashRef(common.HexToHash("0xaa")),
		7:  NodeRef(EncodeNode(nil, &LeafNode{Key: Nibbles{1}, Value: []byte{1}})),
		11: HashRef(common.HexToHash("0xbb")),
	}
	for _, i := range []int{2, 7, 11} {
		a.Children[i] = refs[i]
	}
	for _, i := range []int{11, 2, 7} {
		b.Children[i] = refs[i]
	}
	require.Equal(t, EncodeNode(nil, a), EncodeNode(nil, b))
}

func TestDecodeNodeRejectsGarbage(t *testing.T) {
	for _, enc := range [][]byte{
		nil,
		{0x80},
		{0xc2, 0x80, 0x80, 0x80}, // trailing byte
		{0xc3, 0x80, 0x80, 0x80}, // three items
	} {
		_, err := DecodeNode(enc)
		require.ErrorIs(t, err, ErrInvalidProof, "%x", enc)
	}
}
