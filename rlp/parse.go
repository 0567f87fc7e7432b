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
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrBase  = errors.New("rlp")
	ErrParse = fmt.Errorf("%w parse", ErrBase)
)

func lenOfBE(payload []byte, pos, n int) (int, error) {
	if n > 8 {
		return 0, fmt.Errorf("%w: length of length %d too big", ErrParse, n)
	}
	if pos+n > len(payload) {
		return 0, fmt.Errorf("%w: unexpected end of payload", ErrParse)
	}
	if payload[pos] == 0 {
		return 0, fmt.Errorf("%w: leading zero in length", ErrParse)
	}
	var l uint64
	for i := 0; i < n; i++ {
		l = l<<8 | uint64(payload[pos+i])
	}
	if l < 56 {
		return 0, fmt.Errorf("%w: non-canonical size %d", ErrParse, l)
	}
	if l > uint64(len(payload)) {
		return 0, fmt.Errorf("%w: size %d exceeds payload", ErrParse, l)
	}
	return int(l), nil
}

// Prefix parses the item header at pos and returns the position and length of its payload.
// For single-byte strings (< 0x80) the payload is the header byte itself.
func Prefix(payload []byte, pos int) (dataPos int, dataLen int, isList bool, err error) {
	if pos < 0 || pos >= len(payload) {
		return 0, 0, false, fmt.Errorf("%w: unexpected end of payload", ErrParse)
	}
	first := payload[pos]
	switch {
	case first < EmptyStringCode:
		dataPos, dataLen = pos, 1
	case first < 0xB8:
		dataPos, dataLen = pos+1, int(first-EmptyStringCode)
		if dataLen == 1 && dataPos < len(payload) && payload[dataPos] < EmptyStringCode {
			return 0, 0, false, fmt.Errorf("%w: non-canonical single byte string", ErrParse)
		}
	case first < EmptyListCode:
		n := int(first - 0xB7)
		if dataLen, err = lenOfBE(payload, pos+1, n); err != nil {
			return 0, 0, false, err
		}
		dataPos = pos + 1 + n
	case first < 0xF8:
		dataPos, dataLen, isList = pos+1, int(first-EmptyListCode), true
	default:
		n := int(first - 0xF7)
		if dataLen, err = lenOfBE(payload, pos+1, n); err != nil {
			return 0, 0, false, err
		}
		dataPos, isList = pos+1+n, true
	}
	if dataPos+dataLen > len(payload) {
		return 0, 0, false, fmt.Errorf("%w: item of %d bytes overflows payload of %d", ErrParse, dataLen, len(payload)-dataPos)
	}
	return dataPos, dataLen, isList, nil
}

// List parses a list header at pos.
func List(payload []byte, pos int) (dataPos, dataLen int, err error) {
	dataPos, dataLen, isList, err := Prefix(payload, pos)
	if err != nil {
		return 0, 0, err
	}
	if !isList {
		return 0, 0, fmt.Errorf("%w: must be a list", ErrParse)
	}
	return
}

// String parses a string header at pos.
func String(payload []byte, pos int) (dataPos, dataLen int, err error) {
	dataPos, dataLen, isList, err := Prefix(payload, pos)
	if err != nil {
		return 0, 0, err
	}
	if isList {
		return 0, 0, fmt.Errorf("%w: must be a string, instead of a list", ErrParse)
	}
	return
}

// StringOfLen parses a string that must be exactly expectedLen bytes long.
func StringOfLen(payload []byte, pos, expectedLen int) (dataPos int, err error) {
	dataPos, dataLen, err := String(payload, pos)
	if err != nil {
		return 0, err
	}
	if dataLen != expectedLen {
		return 0, fmt.Errorf("%w: expected string len %d, got %d", ErrParse, expectedLen, dataLen)
	}
	return dataPos, nil
}

// U64 parses a canonical unsigned integer and returns the position after it.
func U64(payload []byte, pos int) (int, uint64, error) {
	dataPos, dataLen, err := String(payload, pos)
	if err != nil {
		return 0, 0, err
	}
	if dataLen > 8 {
		return 0, 0, fmt.Errorf("%w: uint64 must not be more than 8 bytes long, got %d", ErrParse, dataLen)
	}
	if dataLen > 0 && payload[dataPos] == 0 {
		return 0, 0, fmt.Errorf("%w: integer encoding for RLP must not have leading zeros: %x", ErrParse, payload[dataPos:dataPos+dataLen])
	}
	var r uint64
	for _, b := range payload[dataPos : dataPos+dataLen] {
		r = r<<8 | uint64(b)
	}
	return dataPos + dataLen, r, nil
}

// U256 parses a canonical 256-bit integer into x and returns the position after it.
func U256(payload []byte, pos int, x *uint256.Int) (int, error) {
	dataPos, dataLen, err := String(payload, pos)
	if err != nil {
		return 0, err
	}
	if dataLen > 32 {
		return 0, fmt.Errorf("%w: uint256 must not be more than 32 bytes long, got %d", ErrParse, dataLen)
	}
	if dataLen > 0 && payload[dataPos] == 0 {
		return 0, fmt.Errorf("%w: integer encoding for RLP must not have leading zeros: %x", ErrParse, payload[dataPos:dataPos+dataLen])
	}
	x.SetBytes(payload[dataPos : dataPos+dataLen])
	return dataPos + dataLen, nil
}

// Items splits the payload of a list into the encodings of its elements.
func Items(list []byte) ([][]byte, error) {
	dataPos, dataLen, err := List(list, 0)
	if err != nil {
		return nil, err
	}
	if dataPos+dataLen != len(list) {
		return nil, fmt.Errorf("%w: %d trailing bytes after list", ErrParse, len(list)-dataPos-dataLen)
	}
	var items [][]byte
	for pos, end := dataPos, dataPos+dataLen; pos < end; {
		p, l, _, err := Prefix(list, pos)
		if err != nil {
			return nil, err
		}
		if p+l > end {
			return nil, fmt.Errorf("%w: element overflows list", ErrParse)
		}
		items = append(items, list[pos:p+l])
		pos = p + l
	}
	return items, nil
}
