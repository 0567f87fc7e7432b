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

	"github.com/holiman/uint256"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/types/accounts"
)

// AccountChange sets the account under a hashed address. A nil Account deletes it.
// Account.Root is ignored: the storage root is always computed.
type AccountChange struct {
	Key     common.Hash
	Account *accounts.Account
}

// SlotChange sets one storage slot. A nil or zero Value deletes it.
type SlotChange struct {
	Key   common.Hash
	Value *uint256.Int
}

// StorageChangeset holds the slot changes of one account. Wiped drops every slot
// stored before, Slots are applied on top of the empty storage then.
type StorageChangeset struct {
	Account common.Hash
	Wiped   bool
	Slots   []SlotChange
}

// Changeset is the input of one root computation. Accounts, Storage and every
// Slots list must be sorted by key without duplicates.
type Changeset struct {
	Accounts []AccountChange
	Storage  []StorageChangeset
}

func (c *Changeset) IsEmpty() bool {
	return c == nil || (len(c.Accounts) == 0 && len(c.Storage) == 0)
}

// Validate checks ordering and uniqueness of all keys, and that no storage is written
// for an account deleted in the same changeset.
func (c *Changeset) Validate() error {
	if c == nil {
		return nil
	}
	deleted := map[common.Hash]struct{}{}
	for i := range c.Accounts {
		if i > 0 {
			if err := checkOrder("account", c.Accounts[i-1].Key, c.Accounts[i].Key); err != nil {
				return err
			}
		}
		if c.Accounts[i].Account == nil {
			deleted[c.Accounts[i].Key] = struct{}{}
		}
	}
	for i := range c.Storage {
		s := &c.Storage[i]
		if i > 0 {
			if err := checkOrder("storage of", c.Storage[i-1].Account, s.Account); err != nil {
				return err
			}
		}
		if err := s.Validate(); err != nil {
			return err
		}
		if _, ok := deleted[s.Account]; ok && len(s.Slots) > 0 {
			return fmt.Errorf("%w: slots written for deleted account %x", ErrInvalidChangeset, s.Account)
		}
	}
	return nil
}

func (s *StorageChangeset) Validate() error {
	for i := 1; i < len(s.Slots); i++ {
		if err := checkOrder(fmt.Sprintf("slot of %x", s.Account), s.Slots[i-1].Key, s.Slots[i].Key); err != nil {
			return err
		}
	}
	return nil
}

func checkOrder(what string, prev, cur common.Hash) error {
	switch prev.Cmp(cur) {
	case 0:
		return fmt.Errorf("%w: %s %x", ErrDuplicateKey, what, cur)
	case 1:
		return fmt.Errorf("%w: %s %x after %x", ErrUnsortedInput, what, cur, prev)
	}
	return nil
}

// storageValue is the value kept in HashedStorage: the big-endian word without leading
// zeroes, nil for a deleted slot.
func storageValue(v *uint256.Int) []byte {
	if v == nil || v.IsZero() {
		return nil
	}
	return v.Bytes()
}
