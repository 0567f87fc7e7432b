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
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeHex(in string) []byte {
	payload, err := hex.DecodeString(in)
	if err != nil {
		panic(err)
	}
	return payload
}

var parseU64Tests = []struct {
	payload   []byte
	expectPos int
	expectRes uint64
	expectErr bool
}{
	{payload: decodeHex("820400"), expectPos: 3, expectRes: 1024},
	{payload: decodeHex("07"), expectPos: 1, expectRes: 7},
	{payload: decodeHex("80"), expectPos: 1, expectRes: 0},
	{payload: decodeHex("8180"), expectPos: 2, expectRes: 128},
	{payload: decodeHex("820004"), expectErr: true},
	{payload: decodeHex("8105"), expectErr: true},
	{payload: decodeHex("c0"), expectErr: true},
	{payload: decodeHex("89010203040506070809"), expectErr: true},
}

func TestPrimitives(t *testing.T) {
	for i, tt := range parseU64Tests {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			assert := assert.New(t)
			pos, res, err := U64(tt.payload, 0)
			if tt.expectErr {
				assert.ErrorIs(err, ErrParse)
				return
			}
			assert.NoError(err)
			assert.Equal(tt.expectPos, pos)
			assert.Equal(tt.expectRes, res)
		})
	}
}

func TestEncodeU64(t *testing.T) {
	for _, v := range []uint64{0, 1, 127, 128, 255, 256, 1024, 1<<56 + 3, ^uint64(0)} {
		enc := AppendU64(nil, v)
		require.Equal(t, U64Len(v), len(enc), "value %d", v)
		pos, res, err := U64(enc, 0)
		require.NoError(t, err)
		require.Equal(t, len(enc), pos)
		require.Equal(t, v, res)
	}
	require.Equal(t, decodeHex("8180"), AppendU64(nil, 128))
}

func TestEncodeU256(t *testing.T) {
	for _, hexVal := range []string{"0x0", "0x7f", "0x80", "0xdeadbeef", "0xffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffffff"} {
		v := uint256.MustFromHex(hexVal)
		enc := AppendU256(nil, v)
		require.Equal(t, U256Len(v), len(enc), hexVal)
		var back uint256.Int
		pos, err := U256(enc, 0, &back)
		require.NoError(t, err)
		require.Equal(t, len(enc), pos)
		require.True(t, v.Eq(&back), hexVal)
	}
}

func TestStrings(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		out  string
	}{
		{"empty", []byte{}, "80"},
		{"single low byte", []byte{0x7f}, "7f"},
		{"single high byte", []byte{0x80}, "8180"},
		{"dog", []byte("dog"), "83646f67"},
		{"long", bytes.Repeat([]byte{0xaa}, 56), "b838" + hex.EncodeToString(bytes.Repeat([]byte{0xaa}, 56))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			enc := AppendString(nil, tc.in)
			require.Equal(t, tc.out, hex.EncodeToString(enc))
			require.Equal(t, StringLen(tc.in), len(enc))
			dataPos, dataLen, err := String(enc, 0)
			require.NoError(t, err)
			require.Equal(t, tc.in, enc[dataPos:dataPos+dataLen])
		})
	}
}

func TestItems(t *testing.T) {
	// ["cat", "dog"]
	list := decodeHex("c88363617483646f67")
	items, err := Items(list)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, decodeHex("83636174"), items[0])
	require.Equal(t, decodeHex("83646f67"), items[1])

	var built []byte
	payload := append(AppendString(nil, []byte("cat")), AppendString(nil, []byte("dog"))...)
	built = AppendListPrefix(built, len(payload))
	built = append(built, payload...)
	require.Equal(t, list, built)

	_, err = Items(append(list, 0x00))
	require.ErrorIs(t, err, ErrParse)
	_, err = Items(decodeHex("83636174"))
	require.ErrorIs(t, err, ErrParse)
	_, err = Items(decodeHex("c98363617483646f67"))
	require.ErrorIs(t, err, ErrParse)
}

func TestLongList(t *testing.T) {
	var payload []byte
	for i := 0; i < 17; i++ {
		payload = AppendHash(payload, bytes.Repeat([]byte{byte(i)}, 32))
	}
	enc := AppendListPrefix(nil, len(payload))
	require.Equal(t, ListPrefixLen(len(payload)), len(enc))
	enc = append(enc, payload...)
	items, err := Items(enc)
	require.NoError(t, err)
	require.Len(t, items, 17)
	for i, it := range items {
		p, err := StringOfLen(it, 0, 32)
		require.NoError(t, err)
		require.Equal(t, byte(i), it[p])
	}
}
