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

package kv

import (
	"bytes"
	"fmt"

	"github.com/erigontech/trieroot/common"
)

// NextSubtree does []byte++ and returns the smallest key which has no `in` prefix.
// Returns false if all bytes are 0xff.
func NextSubtree(in []byte) ([]byte, bool) {
	r := common.Copy(in)
	for i := len(r) - 1; i >= 0; i-- {
		if r[i] != 0xff {
			r[i]++
			return r[:i+1], true
		}
	}
	return nil, false
}

// WrapErr marks a store failure as ErrStorageUnavailable, keeping the original cause.
func WrapErr(table string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: table %s: %w", ErrStorageUnavailable, table, err)
}

// ForEach walks cursor c from fromPrefix to the end of the table.
func ForEach(c Cursor, fromPrefix []byte, walker func(k, v []byte) error) error {
	for k, v, err := c.Seek(fromPrefix); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if err := walker(k, v); err != nil {
			return err
		}
	}
	return nil
}

// ForPrefix walks cursor c over the keys starting with prefix.
func ForPrefix(c Cursor, prefix []byte, walker func(k, v []byte) error) error {
	for k, v, err := c.Seek(prefix); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if !bytes.HasPrefix(k, prefix) {
			break
		}
		if err := walker(k, v); err != nil {
			return err
		}
	}
	return nil
}
