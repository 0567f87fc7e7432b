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

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/rlp"
)

// VerifyProof checks proof for key against root and returns the leaf value, nil if the
// proof shows the key is absent. Every node of the proof must be used.
func VerifyProof(root common.Hash, key []byte, proof [][]byte) ([]byte, error) {
	if root == common.EmptyRoot {
		if len(proof) > 1 || (len(proof) == 1 && !bytes.Equal(proof[0], []byte{rlp.EmptyStringCode})) {
			return nil, fmt.Errorf("%w: non-empty proof for the empty root", ErrInvalidProof)
		}
		return nil, nil
	}

	path := Unpack(key)
	ref := HashRef(root)
	used := 0
	value, err := func() ([]byte, error) {
		for {
			enc := ref
			if h, ok := refHash(ref); ok {
				if used >= len(proof) {
					return nil, fmt.Errorf("%w: missing node %x", ErrInvalidProof, h)
				}
				enc = proof[used]
				used++
				if got := common.Keccak256Hash(enc); got != h {
					return nil, fmt.Errorf("%w: node %d hashes to %x, expected %x", ErrInvalidProof, used-1, got, h)
				}
			}
			n, err := DecodeNode(enc)
			if err != nil {
				return nil, err
			}
			switch n := n.(type) {
			case *LeafNode:
				if !bytes.Equal(path, n.Key) {
					return nil, nil
				}
				return n.Value, nil
			case *ExtensionNode:
				if !path.HasPrefix(n.Key) {
					return nil, nil
				}
				path, ref = path[len(n.Key):], n.Child
			case *BranchNode:
				if len(path) == 0 {
					return n.Value, nil
				}
				if n.Children[path[0]] == nil {
					return nil, nil
				}
				path, ref = path[1:], n.Children[path[0]]
			}
		}
	}()
	if err != nil {
		return nil, err
	}
	if used != len(proof) {
		return nil, fmt.Errorf("%w: %d unused nodes", ErrInvalidProof, len(proof)-used)
	}
	return value, nil
}

// Verify checks the account proof against stateRoot and every storage proof against
// the storage root of the account.
func (p *AccountProof) Verify(stateRoot common.Hash) error {
	value, err := VerifyProof(stateRoot, p.Address[:], p.Proof)
	if err != nil {
		return fmt.Errorf("account %x: %w", p.Address, err)
	}
	var expected []byte
	if p.Account != nil {
		expected = p.Account.EncodeForHashing(nil)
	}
	if !bytes.Equal(value, expected) {
		return fmt.Errorf("%w: account %x value mismatch", ErrInvalidProof, p.Address)
	}
	if p.Account == nil && p.StorageRoot != common.EmptyRoot {
		return fmt.Errorf("%w: absent account %x with storage root %x", ErrInvalidProof, p.Address, p.StorageRoot)
	}
	if p.Account != nil && p.Account.Root != p.StorageRoot {
		return fmt.Errorf("%w: account %x storage root mismatch", ErrInvalidProof, p.Address)
	}

	for _, sp := range p.StorageProofs {
		value, err := VerifyProof(p.StorageRoot, sp.Key[:], sp.Proof)
		if err != nil {
			return fmt.Errorf("slot %x of %x: %w", sp.Key, p.Address, err)
		}
		var expected []byte
		if v := storageValue(sp.Value); v != nil {
			expected = rlp.AppendString(nil, v)
		}
		if !bytes.Equal(value, expected) {
			return fmt.Errorf("%w: slot %x of %x value mismatch", ErrInvalidProof, sp.Key, p.Address)
		}
	}
	return nil
}
