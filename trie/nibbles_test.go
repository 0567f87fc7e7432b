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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPackUnpack(t *testing.T) {
	require.Equal(t, Nibbles{0x1, 0x2, 0xa, 0xb}, Unpack([]byte{0x12, 0xab}))
	require.Equal(t, []byte{0x12, 0xab}, Nibbles{0x1, 0x2, 0xa, 0xb}.Pack())
	require.Equal(t, []byte{0x12, 0xa0}, Nibbles{0x1, 0x2, 0xa}.Pack())
	require.Equal(t, Nibbles{}, Unpack(nil))
}

func TestCompactEncoding(t *testing.T) {
	tests := []struct {
		path    Nibbles
		isLeaf  bool
		compact []byte
	}{
		// hex-prefix examples from the yellow paper
		{Nibbles{1, 2, 3, 4, 5}, false, []byte{0x11, 0x23, 0x45}},
		{Nibbles{0, 1, 2, 3, 4, 5}, false, []byte{0x00, 0x01, 0x23, 0x45}},
		{Nibbles{0, 0xf, 1, 0xc, 0xb, 8}, true, []byte{0x20, 0x0f, 0x1c, 0xb8}},
		{Nibbles{0xf, 1, 0xc, 0xb, 8}, true, []byte{0x3f, 0x1c, 0xb8}},
		{Nibbles{}, true, []byte{0x20}},
		{Nibbles{}, false, []byte{0x00}},
	}
	for _, tt := range tests {
		t.Run(tt.path.String(), func(t *testing.T) {
			require.Equal(t, tt.compact, tt.path.EncodeCompact(tt.isLeaf))
			path, isLeaf, err := DecodeCompact(tt.compact)
			require.NoError(t, err)
			require.Equal(t, tt.isLeaf, isLeaf)
			require.Equal(t, tt.path, path)
		})
	}

	_, _, err := DecodeCompact([]byte{0x40})
	require.ErrorIs(t, err, ErrInvalidProof)
	_, _, err = DecodeCompact([]byte{0x21})
	require.ErrorIs(t, err, ErrInvalidProof)
	_, _, err = DecodeCompact(nil)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestIncrement(t *testing.T) {
	next, ok := Nibbles{1, 2}.Increment()
	require.True(t, ok)
	require.Equal(t, Nibbles{1, 3}, next)

	next, ok = Nibbles{1, 0xf, 0xf}.Increment()
	require.True(t, ok)
	require.Equal(t, Nibbles{2, 0, 0}, next)

	_, ok = Nibbles{0xf, 0xf}.Increment()
	require.False(t, ok)
	_, ok = Nibbles{}.Increment()
	require.False(t, ok)
}

func TestPrefixHelpers(t *testing.T) {
	a := Nibbles{1, 2, 3, 4}
	require.True(t, a.HasPrefix(Nibbles{1, 2}))
	require.True(t, a.HasPrefix(Nibbles{}))
	require.False(t, a.HasPrefix(Nibbles{2}))
	require.Equal(t, 2, CommonPrefixLen(a, Nibbles{1, 2, 5}))
	require.Equal(t, 0, CommonPrefixLen(a, nil))
	require.Equal(t, -1, Nibbles{1, 2}.Compare(Nibbles{1, 2, 0}))
	require.Equal(t, 1, Nibbles{1, 3}.Compare(Nibbles{1, 2, 0xf}))

	c := a.Concat(5)
	c[0] = 9
	require.Equal(t, Nibbles{1, 2, 3, 4}, a)
	require.Equal(t, "1234", a.String())
}
