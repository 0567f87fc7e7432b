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

package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/holiman/uint256"
	jsoniter "github.com/json-iterator/go"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/trie"
	"github.com/erigontech/trieroot/types/accounts"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// hexBytes marshals as a 0x prefixed hex string.
type hexBytes []byte

func (b hexBytes) MarshalText() ([]byte, error) {
	out := make([]byte, 2+2*len(b))
	copy(out, "0x")
	hex.Encode(out[2:], b)
	return out, nil
}

func (b *hexBytes) UnmarshalText(input []byte) error {
	raw := strings.TrimPrefix(string(input), "0x")
	dec, err := hex.DecodeString(raw)
	if err != nil {
		return fmt.Errorf("invalid hex %q: %w", input, err)
	}
	*b = dec
	return nil
}

type accountJSON struct {
	Key      common.Hash  `json:"key"`
	Deleted  bool         `json:"deleted,omitempty"`
	Nonce    uint64       `json:"nonce"`
	Balance  *uint256.Int `json:"balance,omitempty"`
	CodeHash *common.Hash `json:"codeHash,omitempty"`
}

type slotJSON struct {
	Key   common.Hash  `json:"key"`
	Value *uint256.Int `json:"value"`
}

type storageJSON struct {
	Account common.Hash `json:"account"`
	Wiped   bool        `json:"wiped,omitempty"`
	Slots   []slotJSON  `json:"slots"`
}

type changesetJSON struct {
	Accounts []accountJSON `json:"accounts"`
	Storage  []storageJSON `json:"storage"`
}

// decodeChangeset reads a JSON changeset. Entries may come in any order, they are
// sorted here. With hashed set keys are hashed with keccak256 first.
func decodeChangeset(r io.Reader, hashed bool) (*trie.Changeset, error) {
	var in changesetJSON
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("decode changeset: %w", err)
	}
	key := func(k common.Hash) common.Hash {
		if hashed {
			return common.Keccak256Hash(k[:])
		}
		return k
	}

	cs := &trie.Changeset{}
	for _, a := range in.Accounts {
		change := trie.AccountChange{Key: key(a.Key)}
		if !a.Deleted {
			acc := accounts.NewAccount()
			acc.Nonce = a.Nonce
			if a.Balance != nil {
				acc.Balance.Set(a.Balance)
			}
			if a.CodeHash != nil {
				acc.CodeHash = *a.CodeHash
			}
			change.Account = &acc
		}
		cs.Accounts = append(cs.Accounts, change)
	}
	for _, s := range in.Storage {
		sc := trie.StorageChangeset{Account: key(s.Account), Wiped: s.Wiped}
		for _, slot := range s.Slots {
			sc.Slots = append(sc.Slots, trie.SlotChange{Key: key(slot.Key), Value: slot.Value})
		}
		sort.SliceStable(sc.Slots, func(i, j int) bool { return sc.Slots[i].Key.Cmp(sc.Slots[j].Key) < 0 })
		cs.Storage = append(cs.Storage, sc)
	}
	sort.SliceStable(cs.Accounts, func(i, j int) bool { return cs.Accounts[i].Key.Cmp(cs.Accounts[j].Key) < 0 })
	sort.SliceStable(cs.Storage, func(i, j int) bool { return cs.Storage[i].Account.Cmp(cs.Storage[j].Account) < 0 })
	return cs, nil
}

type storageProofJSON struct {
	Key   common.Hash  `json:"key"`
	Value *uint256.Int `json:"value"`
	Proof []hexBytes   `json:"proof"`
}

type accountProofJSON struct {
	Address      common.Hash        `json:"address"`
	Nonce        *uint64            `json:"nonce,omitempty"`
	Balance      *uint256.Int       `json:"balance,omitempty"`
	CodeHash     *common.Hash       `json:"codeHash,omitempty"`
	StorageHash  common.Hash        `json:"storageHash"`
	AccountProof []hexBytes         `json:"accountProof"`
	StorageProof []storageProofJSON `json:"storageProof"`
}

func toHexList(nodes [][]byte) []hexBytes {
	out := make([]hexBytes, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

func fromHexList(nodes []hexBytes) [][]byte {
	out := make([][]byte, len(nodes))
	for i, n := range nodes {
		out[i] = n
	}
	return out
}

func marshalProof(p *trie.AccountProof) accountProofJSON {
	out := accountProofJSON{
		Address:      p.Address,
		StorageHash:  p.StorageRoot,
		AccountProof: toHexList(p.Proof),
		StorageProof: make([]storageProofJSON, 0, len(p.StorageProofs)),
	}
	if p.Account != nil {
		nonce, codeHash := p.Account.Nonce, p.Account.CodeHash
		out.Nonce, out.CodeHash = &nonce, &codeHash
		out.Balance = p.Account.Balance.Clone()
	}
	for _, sp := range p.StorageProofs {
		out.StorageProof = append(out.StorageProof, storageProofJSON{Key: sp.Key, Value: sp.Value, Proof: toHexList(sp.Proof)})
	}
	return out
}

func unmarshalProof(in accountProofJSON) *trie.AccountProof {
	p := &trie.AccountProof{
		Address:     in.Address,
		StorageRoot: in.StorageHash,
		Proof:       fromHexList(in.AccountProof),
	}
	if in.Nonce != nil {
		acc := accounts.NewAccount()
		acc.Nonce = *in.Nonce
		if in.Balance != nil {
			acc.Balance.Set(in.Balance)
		}
		if in.CodeHash != nil {
			acc.CodeHash = *in.CodeHash
		}
		acc.Root = in.StorageHash
		p.Account = &acc
	}
	for _, sp := range in.StorageProof {
		value := sp.Value
		if value == nil {
			value = new(uint256.Int)
		}
		p.StorageProofs = append(p.StorageProofs, trie.StorageProof{Key: sp.Key, Value: value, Proof: fromHexList(sp.Proof)})
	}
	return p
}

// parseHashes parses a comma separated list of hex keys.
func parseHashes(s string) ([]common.Hash, error) {
	var out []common.Hash
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		var h common.Hash
		if err := h.UnmarshalText([]byte(part)); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}
