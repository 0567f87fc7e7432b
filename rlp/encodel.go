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

package rlp

import (
	"encoding/binary"
	"math/bits"

	"github.com/holiman/uint256"
)

// General design:
//      - rlp package doesn't manage memory beyond append: callers pass the buffer to grow.
//      - rlp has 2 data types: List and String (bytes array), and low-level funcs operate with these types.
//      - Append* functions write the encoding to the end of the given buffer and return it.
//      - *Len functions return the encoded size without encoding, they are pure and cheap.
//      - Parse functions (see parse.go) accept a position in payload and return the new position.

const (
	EmptyStringCode = 0x80
	EmptyListCode   = 0xC0
)

func beLen(n uint64) int { return (bits.Len64(n) + 7) / 8 }

func ListPrefixLen(dataLen int) int {
	if dataLen >= 56 {
		return 1 + beLen(uint64(dataLen))
	}
	return 1
}

// AppendListPrefix appends the header of a list whose payload is dataLen bytes long.
func AppendListPrefix(buf []byte, dataLen int) []byte {
	return appendPrefix(buf, EmptyListCode, dataLen)
}

func appendPrefix(buf []byte, base byte, dataLen int) []byte {
	if dataLen < 56 {
		return append(buf, base+byte(dataLen))
	}
	l := beLen(uint64(dataLen))
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(dataLen))
	buf = append(buf, base+55+byte(l))
	return append(buf, b[8-l:]...)
}

// StringLen returns the size of the RLP encoding of s.
func StringLen(s []byte) int {
	switch {
	case len(s) == 1 && s[0] < EmptyStringCode:
		return 1
	case len(s) < 56:
		return 1 + len(s)
	default:
		return 1 + beLen(uint64(len(s))) + len(s)
	}
}

// AppendString appends the RLP encoding of the byte string s.
func AppendString(buf []byte, s []byte) []byte {
	if len(s) == 1 && s[0] < EmptyStringCode {
		return append(buf, s[0])
	}
	buf = appendPrefix(buf, EmptyStringCode, len(s))
	return append(buf, s...)
}

func U64Len(i uint64) int {
	if i < EmptyStringCode {
		return 1
	}
	return 1 + beLen(i)
}

// AppendU64 appends the canonical (no leading zeroes) encoding of i.
func AppendU64(buf []byte, i uint64) []byte {
	if i == 0 {
		return append(buf, EmptyStringCode)
	}
	if i < EmptyStringCode {
		return append(buf, byte(i))
	}
	l := beLen(i)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], i)
	buf = append(buf, EmptyStringCode+byte(l))
	return append(buf, b[8-l:]...)
}

func U256Len(i *uint256.Int) int {
	if i == nil || i.IsZero() {
		return 1
	}
	if i.LtUint64(EmptyStringCode) {
		return 1
	}
	return 1 + i.ByteLen()
}

func AppendU256(buf []byte, i *uint256.Int) []byte {
	if i == nil || i.IsZero() {
		return append(buf, EmptyStringCode)
	}
	if i.LtUint64(EmptyStringCode) {
		return append(buf, byte(i.Uint64()))
	}
	b := i.Bytes()
	buf = append(buf, EmptyStringCode+byte(len(b)))
	return append(buf, b...)
}

// AppendHash appends a 32-byte string, the most common item of trie encodings.
func AppendHash(buf []byte, h []byte) []byte {
	buf = append(buf, EmptyStringCode+32)
	return append(buf, h[:32]...)
}
