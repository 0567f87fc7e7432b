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
	"errors"
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
	"github.com/erigontech/trieroot/kv/memdb"
	"github.com/erigontech/trieroot/rlp"
	"github.com/erigontech/trieroot/types/accounts"
)

// refRoot builds the trie of leaves recursively, without any of the streaming
// machinery, and returns its root.
func refRoot(leaves map[common.Hash][]byte) common.Hash {
	keys := make([]Nibbles, 0, len(leaves))
	for k := range leaves {
		keys = append(keys, Unpack(common.Copy(k[:])))
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = leaves[common.BytesToHash(k.Pack())]
	}
	enc := refNode(keys, values, 0)
	if enc == nil {
		return common.EmptyRoot
	}
	return common.Keccak256Hash(enc)
}

func refNode(keys []Nibbles, values [][]byte, depth int) []byte {
	switch len(keys) {
	case 0:
		return nil
	case 1:
		return EncodeNode(nil, &LeafNode{Key: keys[0][depth:], Value: values[0]})
	}
	if cp := CommonPrefixLen(keys[0][depth:], keys[len(keys)-1][depth:]); cp > 0 {
		child := refNode(keys, values, depth+cp)
		return EncodeNode(nil, &ExtensionNode{Key: keys[0][depth : depth+cp], Child: NodeRef(child)})
	}
	b := &BranchNode{}
	for start := 0; start < len(keys); {
		nibble := keys[start][depth]
		end := start
		for end < len(keys) && keys[end][depth] == nibble {
			end++
		}
		b.Children[nibble] = NodeRef(refNode(keys[start:end], values[start:end], depth+1))
		start = end
	}
	return EncodeNode(nil, b)
}

// testState is the model the engine is checked against.
type testState struct {
	accounts map[common.Hash]*accounts.Account
	storage  map[common.Hash]map[common.Hash]*uint256.Int
}

func newTestState() *testState {
	return &testState{
		accounts: map[common.Hash]*accounts.Account{},
		storage:  map[common.Hash]map[common.Hash]*uint256.Int{},
	}
}

func (s *testState) apply(cs *Changeset) {
	for _, a := range cs.Accounts {
		if a.Account == nil {
			delete(s.accounts, a.Key)
			delete(s.storage, a.Key)
			continue
		}
		s.accounts[a.Key] = a.Account.Copy()
	}
	for _, st := range cs.Storage {
		if st.Wiped {
			delete(s.storage, st.Account)
		}
		for _, slot := range st.Slots {
			if slot.Value == nil || slot.Value.IsZero() {
				delete(s.storage[st.Account], slot.Key)
				continue
			}
			if s.storage[st.Account] == nil {
				s.storage[st.Account] = map[common.Hash]*uint256.Int{}
			}
			s.storage[st.Account][slot.Key] = slot.Value.Clone()
		}
	}
}

func (s *testState) storageRoot(addr common.Hash) common.Hash {
	leaves := map[common.Hash][]byte{}
	for k, v := range s.storage[addr] {
		leaves[k] = rlp.AppendString(nil, v.Bytes())
	}
	return refRoot(leaves)
}

func (s *testState) root() common.Hash {
	leaves := map[common.Hash][]byte{}
	for k, a := range s.accounts {
		acc := a.Copy()
		acc.Root = s.storageRoot(k)
		leaves[k] = acc.EncodeForHashing(nil)
	}
	return refRoot(leaves)
}

func testAccount(nonce, balance uint64) *accounts.Account {
	a := accounts.NewAccount()
	a.Nonce = nonce
	a.Balance.SetUint64(balance)
	return &a
}

func hashOf(b ...byte) common.Hash {
	var h common.Hash
	copy(h[:], b)
	return h
}

func randomHash(rnd *rand.Rand) common.Hash {
	var h common.Hash
	rnd.Read(h[:])
	return h
}

// randomChangeset creates accounts and slots, and updates or deletes some of those in s.
func randomChangeset(rnd *rand.Rand, s *testState, newAccounts, slotsPerAccount int) *Changeset {
	accs := map[common.Hash]*accounts.Account{}
	storage := map[common.Hash]map[common.Hash]*uint256.Int{}

	for i := 0; i < newAccounts; i++ {
		accs[randomHash(rnd)] = testAccount(rnd.Uint64()%100, rnd.Uint64())
	}
	for addr := range s.accounts {
		switch rnd.Intn(6) {
		case 0:
			accs[addr] = nil
		case 1:
			accs[addr] = testAccount(rnd.Uint64()%100, rnd.Uint64())
		case 2:
			storage[addr] = map[common.Hash]*uint256.Int{}
			for slot := range s.storage[addr] {
				if rnd.Intn(2) == 0 {
					storage[addr][slot] = nil
				} else {
					storage[addr][slot] = uint256.NewInt(rnd.Uint64())
				}
			}
		}
	}
	for addr, a := range accs {
		if a == nil || rnd.Intn(3) == 0 {
			continue
		}
		if storage[addr] == nil {
			storage[addr] = map[common.Hash]*uint256.Int{}
		}
		for i := 0; i < slotsPerAccount; i++ {
			storage[addr][randomHash(rnd)] = uint256.NewInt(rnd.Uint64()%1000 + 1)
		}
	}
	return buildChangeset(accs, storage)
}

func buildChangeset(accs map[common.Hash]*accounts.Account, storage map[common.Hash]map[common.Hash]*uint256.Int) *Changeset {
	cs := &Changeset{}
	for k, a := range accs {
		cs.Accounts = append(cs.Accounts, AccountChange{Key: k, Account: a})
	}
	sort.Slice(cs.Accounts, func(i, j int) bool { return cs.Accounts[i].Key.Cmp(cs.Accounts[j].Key) < 0 })
	for addr, slots := range storage {
		sc := StorageChangeset{Account: addr}
		for k, v := range slots {
			sc.Slots = append(sc.Slots, SlotChange{Key: k, Value: v})
		}
		sort.Slice(sc.Slots, func(i, j int) bool { return sc.Slots[i].Key.Cmp(sc.Slots[j].Key) < 0 })
		cs.Storage = append(cs.Storage, sc)
	}
	sort.Slice(cs.Storage, func(i, j int) bool { return cs.Storage[i].Account.Cmp(cs.Storage[j].Account) < 0 })
	return cs
}

func testConfig(workers int) Config {
	cfg := DefaultConfig
	cfg.Workers = workers
	return cfg
}

// commit computes the root of cs over db, writes the updates and returns the root.
func commit(t *testing.T, db kv.RwDB, cs *Changeset, workers int) common.Hash {
	t.Helper()
	ctx := context.Background()
	var (
		root    common.Hash
		updates *TrieUpdates
	)
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		root, updates, err = NewStateRoot(NewDBCursorFactory(tx), cs, testConfig(workers), log.New()).RootWithUpdates(ctx)
		return err
	}))
	require.Equal(t, root, updates.Root)
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error { return WriteUpdates(tx, updates) }))
	return root
}

// rootOf computes the root of cs over db without writing anything.
func rootOf(t *testing.T, db kv.RoDB, cs *Changeset, workers int) common.Hash {
	t.Helper()
	ctx := context.Background()
	var root common.Hash
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		var err error
		root, err = NewStateRoot(NewDBCursorFactory(tx), cs, testConfig(workers), log.New()).Root(ctx)
		return err
	}))
	return root
}

func newTestDB(t *testing.T) *memdb.MemoryDB {
	db := memdb.New()
	t.Cleanup(db.Close)
	return db
}

var errDiskGone = errors.New("disk gone")

// failingFactory fails every cursor after the first `after` reads.
type failingFactory struct {
	CursorFactory
	after int64
	reads atomic.Int64
}

func (f *failingFactory) read() error {
	if f.reads.Add(1) > f.after {
		return kv.WrapErr(kv.HashedStorage, errDiskGone)
	}
	return nil
}

func (f *failingFactory) HashedStorageCursor(addr common.Hash) (HashedCursor, error) {
	c, err := f.CursorFactory.HashedStorageCursor(addr)
	if err != nil {
		return nil, err
	}
	return &failingHashedCursor{HashedCursor: c, f: f}, nil
}

type failingHashedCursor struct {
	HashedCursor
	f *failingFactory
}

func (c *failingHashedCursor) Seek(key []byte) ([]byte, []byte, error) {
	if err := c.f.read(); err != nil {
		return nil, nil, err
	}
	return c.HashedCursor.Seek(key)
}

func (c *failingHashedCursor) Next() ([]byte, []byte, error) {
	if err := c.f.read(); err != nil {
		return nil, nil, err
	}
	return c.HashedCursor.Next()
}
