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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixSetContains(t *testing.T) {
	b := NewPrefixSetBuilder()
	b.AddKey(Nibbles{1, 2, 3})
	b.AddKey(Nibbles{1, 2, 4})
	b.AddKey(Nibbles{1, 2, 3}) // duplicate
	b.AddKey(Nibbles{5, 6})
	require.Equal(t, 3, b.Len())
	s := b.Freeze()
	require.Equal(t, 3, s.Len())

	require.True(t, s.Contains(Nibbles{}))
	require.True(t, s.Contains(Nibbles{1}))
	require.True(t, s.Contains(Nibbles{1, 2}))
	require.True(t, s.Contains(Nibbles{1, 2, 4}))
	require.False(t, s.Contains(Nibbles{1, 2, 5}))
	require.True(t, s.Contains(Nibbles{5}))
	require.False(t, s.Contains(Nibbles{6}))
	// going back
	require.True(t, s.Contains(Nibbles{1, 2, 3}))
	require.False(t, s.Contains(Nibbles{0}))
	require.False(t, s.Contains(Nibbles{1, 3}))
}

func TestPrefixSetAll(t *testing.T) {
	b := NewPrefixSetBuilder()
	b.SetAll()
	s := b.Freeze()
	require.True(t, s.IsAll())
	require.True(t, s.Contains(Nibbles{0xa, 0xb}))

	empty := NewPrefixSet()
	require.False(t, empty.Contains(Nibbles{}))
}

func TestPrefixSetMatchesNaive(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	randomPath := func(maxLen int) Nibbles {
		p := make(Nibbles, rnd.Intn(maxLen+1))
		for i := range p {
			p[i] = byte(rnd.Intn(4))
		}
		return p
	}
	var keys []Nibbles
	for i := 0; i < 50; i++ {
		keys = append(keys, randomPath(6))
	}
	s := NewPrefixSet(keys...)
	for i := 0; i < 2000; i++ {
		q := randomPath(4)
		want := false
		for _, k := range keys {
			if k.HasPrefix(q) {
				want = true
				break
			}
		}
		require.Equal(t, want, s.Contains(q), "query %s", q)
	}
}
