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
	"fmt"
	"strings"
)

// Nibbles is a trie path, one 4-bit nibble per element.
type Nibbles []byte

const hexChars = "0123456789abcdef"

// Unpack splits every byte of key into two nibbles, high half first.
func Unpack(key []byte) Nibbles {
	nibbles := make(Nibbles, len(key)*2)
	for i, b := range key {
		nibbles[i*2] = b >> 4
		nibbles[i*2+1] = b & 0x0f
	}
	return nibbles
}

// Pack is the inverse of Unpack, an odd trailing nibble goes to the high half of the last byte.
func (n Nibbles) Pack() []byte {
	out := make([]byte, (len(n)+1)/2)
	for i, nib := range n {
		if i%2 == 0 {
			out[i/2] = nib << 4
		} else {
			out[i/2] |= nib & 0x0f
		}
	}
	return out
}

func (n Nibbles) Compare(other Nibbles) int { return bytes.Compare(n, other) }

func (n Nibbles) HasPrefix(prefix Nibbles) bool { return bytes.HasPrefix(n, prefix) }

func (n Nibbles) Clone() Nibbles {
	if n == nil {
		return nil
	}
	return append(make(Nibbles, 0, len(n)), n...)
}

// Concat returns a fresh path, never aliasing n.
func (n Nibbles) Concat(suffix ...byte) Nibbles {
	out := make(Nibbles, 0, len(n)+len(suffix))
	out = append(out, n...)
	return append(out, suffix...)
}

func CommonPrefixLen(a, b Nibbles) int {
	var i int
	for i = 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			break
		}
	}
	return i
}

// Increment returns the next path of the same length, i.e. the first key after the
// subtree rooted at n. Returns false if every nibble is 0xf.
func (n Nibbles) Increment() (Nibbles, bool) {
	out := n.Clone()
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xf {
			out[i]++
			return out, true
		}
		out[i] = 0
	}
	return nil, false
}

// EncodeCompact is the hex-prefix encoding of the yellow paper. The flag nibble is
// 0 or 1 for an extension with an even or odd path, 2 or 3 for a leaf.
func (n Nibbles) EncodeCompact(isLeaf bool) []byte {
	var flag byte
	if isLeaf {
		flag = 0x20
	}
	buf := make([]byte, len(n)/2+1)
	keyPos := 0
	if len(n)%2 == 1 {
		flag |= 0x10 | n[0]
		keyPos = 1
	}
	buf[0] = flag
	for i, bi := keyPos, 1; i < len(n); i, bi = i+2, bi+1 {
		buf[bi] = n[i]<<4 | n[i+1]
	}
	return buf
}

// DecodeCompact reverses EncodeCompact.
func DecodeCompact(compact []byte) (Nibbles, bool, error) {
	if len(compact) == 0 {
		return nil, false, fmt.Errorf("%w: empty compact path", ErrInvalidProof)
	}
	flag := compact[0] >> 4
	if flag > 3 {
		return nil, false, fmt.Errorf("%w: compact path flag %d", ErrInvalidProof, flag)
	}
	isLeaf := flag&2 != 0
	nibbles := Unpack(compact[1:])
	if flag&1 == 1 {
		nibbles = append(Nibbles{compact[0] & 0x0f}, nibbles...)
	} else if compact[0]&0x0f != 0 {
		return nil, false, fmt.Errorf("%w: non-zero padding in compact path", ErrInvalidProof)
	}
	return nibbles, isLeaf, nil
}

func (n Nibbles) String() string {
	var sb strings.Builder
	sb.Grow(len(n))
	for _, nib := range n {
		sb.WriteByte(hexChars[nib&0x0f])
	}
	return sb.String()
}
