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
	"context"
	"encoding/hex"
	"math/rand"
	"sort"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
	"github.com/erigontech/trieroot/rlp"
)

func proofFixture(t *testing.T, seed int64) (*testState, kv.RwDB, common.Hash) {
	rnd := rand.New(rand.NewSource(seed))
	model := newTestState()
	cs := randomChangeset(rnd, model, 400, 25)
	model.apply(cs)
	db := newTestDB(t)
	root := commit(t, db, cs, 4)
	require.Equal(t, model.root(), root)
	return model, db, root
}

func sortedKeys[V any](m map[common.Hash]V) []common.Hash {
	keys := make([]common.Hash, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Cmp(keys[j]) < 0 })
	return keys
}

func TestAccountProofs(t *testing.T) {
	model, db, root := proofFixture(t, 21)
	ctx := context.Background()

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		p := NewProof(NewDBCursorFactory(tx), DefaultConfig).WithExpectedRoot(root)
		for i, addr := range sortedKeys(model.accounts) {
			if i%7 != 0 {
				continue
			}
			slots := sortedKeys(model.storage[addr])
			absentSlot := hashOf(0xde, 0xad, byte(i))
			slots = append(slots, absentSlot)

			proof, err := p.AccountProof(ctx, addr, slots...)
			require.NoError(t, err)
			require.NotNil(t, proof.Account)
			require.NotEmpty(t, proof.Proof)
			require.Equal(t, model.storageRoot(addr), proof.StorageRoot)
			require.Len(t, proof.StorageProofs, len(slots))
			require.NoError(t, proof.Verify(root))

			for _, sp := range proof.StorageProofs {
				if want, ok := model.storage[addr][sp.Key]; ok {
					require.Equal(t, want, sp.Value)
				} else {
					require.True(t, sp.Value.IsZero())
				}
			}

			value, err := VerifyProof(root, addr[:], proof.Proof)
			require.NoError(t, err)
			require.Equal(t, proof.Account.EncodeForHashing(nil), value)
		}
		return nil
	}))
}

func TestAbsenceProof(t *testing.T) {
	model, db, root := proofFixture(t, 22)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(99))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		p := NewProof(NewDBCursorFactory(tx), DefaultConfig)
		for i := 0; i < 50; i++ {
			addr := randomHash(rnd)
			_, exists := model.accounts[addr]
			require.False(t, exists)

			proof, err := p.AccountProof(ctx, addr, hashOf(1))
			require.NoError(t, err)
			require.Nil(t, proof.Account)
			require.Equal(t, common.EmptyRoot, proof.StorageRoot)
			require.NoError(t, proof.Verify(root))

			value, err := VerifyProof(root, addr[:], proof.Proof)
			require.NoError(t, err)
			require.Nil(t, value)

			// no forged inclusion: claiming an account fails
			proof.Account = testAccount(1, 1)
			proof.Account.Root = common.EmptyRoot
			require.ErrorIs(t, proof.Verify(root), ErrInvalidProof)
		}
		return nil
	}))
}

func TestTamperedProof(t *testing.T) {
	model, db, root := proofFixture(t, 23)
	ctx := context.Background()
	addr := sortedKeys(model.accounts)[0]

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		proof, err := NewProof(NewDBCursorFactory(tx), DefaultConfig).AccountProof(ctx, addr)
		require.NoError(t, err)

		for i := range proof.Proof {
			tampered := make([][]byte, len(proof.Proof))
			copy(tampered, proof.Proof)
			node := common.Copy(tampered[i])
			node[len(node)-1] ^= 1
			tampered[i] = node
			_, err := VerifyProof(root, addr[:], tampered)
			require.ErrorIs(t, err, ErrInvalidProof, "node %d", i)
		}

		_, err = VerifyProof(root, addr[:], proof.Proof[:len(proof.Proof)-1])
		require.ErrorIs(t, err, ErrInvalidProof)
		_, err = VerifyProof(root, addr[:], append(proof.Proof, proof.Proof[0]))
		require.ErrorIs(t, err, ErrInvalidProof)

		other := common.HexToHash("0x1234")
		_, err = VerifyProof(other, addr[:], proof.Proof)
		require.ErrorIs(t, err, ErrInvalidProof)
		return nil
	}))
}

func TestProofAgainstWrongRoot(t *testing.T) {
	model, db, _ := proofFixture(t, 24)
	ctx := context.Background()
	addr := sortedKeys(model.accounts)[0]
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		_, err := NewProof(NewDBCursorFactory(tx), DefaultConfig).WithExpectedRoot(common.HexToHash("0x01")).AccountProof(ctx, addr)
		require.ErrorIs(t, err, ErrProofIncomplete)
		return nil
	}))
}

func TestEmptyTrieProof(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		proof, err := NewProof(NewDBCursorFactory(tx), DefaultConfig).AccountProof(ctx, hashOf(1))
		require.NoError(t, err)
		require.Equal(t, [][]byte{{0x80}}, proof.Proof)
		require.NoError(t, proof.Verify(common.EmptyRoot))
		return nil
	}))
}

func TestProofAfterUpdateWithoutWrite(t *testing.T) {
	model, db, _ := proofFixture(t, 25)
	ctx := context.Background()
	rnd := rand.New(rand.NewSource(100))
	next := randomChangeset(rnd, model, 30, 5)
	model.apply(next)

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		base := NewDBCursorFactory(tx)
		root, updates, err := NewStateRoot(base, next, testConfig(3), log.New()).RootWithUpdates(ctx)
		require.NoError(t, err)
		require.Equal(t, model.root(), root)

		f := NewHashedPostStateCursorFactory(NewTrieUpdatesCursorFactory(base, updates), updates.PostState())
		p := NewProof(f, DefaultConfig).WithExpectedRoot(root)
		for _, a := range next.Accounts {
			proof, err := p.AccountProof(ctx, a.Key, sortedKeys(model.storage[a.Key])...)
			require.NoError(t, err)
			require.NoError(t, proof.Verify(root))
			if a.Account == nil {
				require.Nil(t, proof.Account)
			} else {
				require.Equal(t, a.Account.Nonce, proof.Account.Nonce)
				require.Equal(t, model.storageRoot(a.Key), proof.StorageRoot)
			}
		}

		// the overlay also serves an unchanged root computation
		again, err := NewStateRoot(f, nil, testConfig(1), log.New()).Root(ctx)
		require.NoError(t, err)
		require.Equal(t, root, again)
		return nil
	}))
}

func TestStorageProofOfEmptyStorage(t *testing.T) {
	db := newTestDB(t)
	addr := hashOf(7)
	root := commit(t, db, &Changeset{Accounts: []AccountChange{{Key: addr, Account: testAccount(1, 1)}}}, 1)
	ctx := context.Background()
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		proof, err := NewProof(NewDBCursorFactory(tx), DefaultConfig).AccountProof(ctx, addr, hashOf(1), hashOf(2))
		require.NoError(t, err)
		require.Equal(t, common.EmptyRoot, proof.StorageRoot)
		for _, sp := range proof.StorageProofs {
			require.Equal(t, [][]byte{{0x80}}, sp.Proof)
			require.Equal(t, uint256.NewInt(0), sp.Value)
		}
		require.NoError(t, proof.Verify(root))
		return nil
	}))
}

func TestStorageProof(t *testing.T) {
	model, db, _ := proofFixture(t, 26)
	ctx := context.Background()

	var addr common.Hash
	for _, a := range sortedKeys(model.storage) {
		if len(model.storage[a]) > 1 {
			addr = a
			break
		}
	}
	require.NotEqual(t, common.Hash{}, addr)
	want := model.storageRoot(addr)
	present := sortedKeys(model.storage[addr])
	absent := hashOf(0xde, 0xad)
	_, exists := model.storage[addr][absent]
	require.False(t, exists)

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		p := NewProof(NewDBCursorFactory(tx), DefaultConfig)
		proofs, err := p.StorageProof(ctx, addr, want, append([]common.Hash{absent}, present...)...)
		require.NoError(t, err)
		require.Len(t, proofs, len(present)+1)

		require.Equal(t, absent, proofs[0].Key)
		require.True(t, proofs[0].Value.IsZero())
		value, err := VerifyProof(want, absent[:], proofs[0].Proof)
		require.NoError(t, err)
		require.Nil(t, value)

		for i, sp := range proofs[1:] {
			require.Equal(t, present[i], sp.Key)
			require.Equal(t, model.storage[addr][sp.Key], sp.Value)
			value, err := VerifyProof(want, sp.Key[:], sp.Proof)
			require.NoError(t, err)
			require.Equal(t, rlp.AppendString(nil, storageValue(sp.Value)), value)
		}

		wrong := hashOf(0x12)
		_, err = p.StorageProof(ctx, addr, wrong, present[0])
		require.ErrorIs(t, err, ErrProofIncomplete)
		require.Contains(t, err.Error(), hex.EncodeToString(wrong[:]))
		require.Contains(t, err.Error(), hex.EncodeToString(want[:]))
		return nil
	}))
}
