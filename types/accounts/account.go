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

package accounts

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/rlp"
)

// Account is the Ethereum consensus representation of accounts.
// These objects are stored in the main account trie.
type Account struct {
	Nonce    uint64
	Balance  uint256.Int
	Root     common.Hash // merkle root of the storage trie
	CodeHash common.Hash
}

// NewAccount creates a new account w/o code nor storage.
func NewAccount() Account {
	return Account{
		Root:     common.EmptyRoot,
		CodeHash: common.EmptyCodeHash,
	}
}

func (a *Account) Copy() *Account {
	c := *a
	return &c
}

func (a *Account) Equals(b *Account) bool {
	return a.Nonce == b.Nonce && a.Balance.Eq(&b.Balance) && a.Root == b.Root && a.CodeHash == b.CodeHash
}

func (a *Account) IsEmptyCodeHash() bool {
	return a.CodeHash == common.EmptyCodeHash || a.CodeHash == common.Hash{}
}

func (a *Account) IsEmptyRoot() bool {
	return a.Root == common.EmptyRoot || a.Root == common.Hash{}
}

func (a *Account) payloadLength() int {
	return rlp.U64Len(a.Nonce) + rlp.U256Len(&a.Balance) + 33 + 33
}

// EncodingLengthForHashing returns the length of the trie leaf value of the account.
func (a *Account) EncodingLengthForHashing() int {
	l := a.payloadLength()
	return rlp.ListPrefixLen(l) + l
}

// EncodeForHashing appends the trie leaf value: rlp([nonce, balance, storageRoot, codeHash]).
// Zero root and code hash are normalised to their empty counterparts.
func (a *Account) EncodeForHashing(buf []byte) []byte {
	buf = rlp.AppendListPrefix(buf, a.payloadLength())
	buf = rlp.AppendU64(buf, a.Nonce)
	buf = rlp.AppendU256(buf, &a.Balance)
	root, codeHash := a.Root, a.CodeHash
	if a.IsEmptyRoot() {
		root = common.EmptyRoot
	}
	if a.IsEmptyCodeHash() {
		codeHash = common.EmptyCodeHash
	}
	buf = rlp.AppendHash(buf, root[:])
	buf = rlp.AppendHash(buf, codeHash[:])
	return buf
}

func (a *Account) DecodeForHashing(enc []byte) error {
	pos, l, err := rlp.List(enc, 0)
	if err != nil {
		return fmt.Errorf("account: %w", err)
	}
	if pos+l != len(enc) {
		return fmt.Errorf("account: %w: trailing bytes", rlp.ErrParse)
	}
	if pos, a.Nonce, err = rlp.U64(enc, pos); err != nil {
		return fmt.Errorf("account nonce: %w", err)
	}
	if pos, err = rlp.U256(enc, pos, &a.Balance); err != nil {
		return fmt.Errorf("account balance: %w", err)
	}
	if pos, err = rlp.StringOfLen(enc, pos, 32); err != nil {
		return fmt.Errorf("account root: %w", err)
	}
	copy(a.Root[:], enc[pos:pos+32])
	if pos, err = rlp.StringOfLen(enc, pos+32, 32); err != nil {
		return fmt.Errorf("account code hash: %w", err)
	}
	copy(a.CodeHash[:], enc[pos:pos+32])
	if pos+32 != len(enc) {
		return fmt.Errorf("account: %w: unexpected list elements", rlp.ErrParse)
	}
	return nil
}

// Decode returns nil for an empty encoding.
func Decode(enc []byte) (*Account, error) {
	if len(enc) == 0 {
		return nil, nil
	}
	a := new(Account)
	if err := a.DecodeForHashing(enc); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Account) String() string {
	return fmt.Sprintf("{Nonce: %d, Balance: %s, Root: %x, CodeHash: %x}", a.Nonce, a.Balance.Dec(), a.Root, a.CodeHash)
}
