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

package common

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashFormat(t *testing.T) {
	h := Hash{0xab}
	h[31] = 0xcd
	raw := "ab000000000000000000000000000000000000000000000000000000000000cd"

	tests := []struct {
		format string
		want   string
	}{
		{"%x", raw},
		{"%#x", "0x" + raw},
		{"%X", "AB000000000000000000000000000000000000000000000000000000000000CD"},
		{"%v", "0x" + raw},
		{"%s", "0x" + raw},
		{"%q", `"0x` + raw + `"`},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			require.Equal(t, tt.want, fmt.Sprintf(tt.format, h))
		})
	}
	require.Equal(t, "slot "+raw+" missing", fmt.Errorf("slot %x missing", h).Error())
	require.Equal(t, h.Hex(), h.String())
}

func TestHashTextRoundTrip(t *testing.T) {
	h := HexToHash("0x1234")
	text, err := h.MarshalText()
	require.NoError(t, err)
	var back Hash
	require.NoError(t, back.UnmarshalText(text))
	require.Equal(t, h, back)
	require.Error(t, back.UnmarshalText([]byte("0x12")))
}
