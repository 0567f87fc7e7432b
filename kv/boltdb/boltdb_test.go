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

package boltdb

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/stretchr/testify/require"

	"github.com/erigontech/trieroot/kv"
)

func newTestDB(t *testing.T) *BoltDB {
	t.Helper()
	opts := NewOpts(filepath.Join(t.TempDir(), "chaindata.db")).WithMapSize(16 * datasize.MB).WithNoSync(true)
	db, err := Open(opts, log.New())
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func TestEmptyKeyRoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		if err := tx.Put(kv.TrieOfAccounts, nil, []byte("root")); err != nil {
			return err
		}
		return tx.Put(kv.TrieOfAccounts, []byte{0x01}, []byte("child"))
	}))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		c, err := tx.Cursor(kv.TrieOfAccounts)
		require.NoError(t, err)
		defer c.Close()

		k, v, err := c.First()
		require.NoError(t, err)
		require.NotNil(t, k)
		require.Empty(t, k)
		require.Equal(t, []byte("root"), v)

		k, v, err = c.Next()
		require.NoError(t, err)
		require.Equal(t, []byte{0x01}, k)
		require.Equal(t, []byte("child"), v)

		k, _, err = c.Next()
		require.NoError(t, err)
		require.Nil(t, k)

		k, _, err = c.SeekExact([]byte{})
		require.NoError(t, err)
		require.NotNil(t, k)
		return nil
	}))
}

func TestCursorDeleteKeepsPosition(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		c, err := tx.RwCursor(kv.HashedAccounts)
		require.NoError(t, err)
		for i := byte(0); i < 10; i++ {
			require.NoError(t, c.Put([]byte{i}, []byte{i}))
		}
		var seen []byte
		for k, _, err := c.First(); k != nil; k, _, err = c.Next() {
			require.NoError(t, err)
			seen = append(seen, k[0])
			if k[0]%2 == 0 {
				require.NoError(t, c.Delete(k))
			}
		}
		require.Equal(t, []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, seen)
		return nil
	}))

	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		n, err := tx.Count(kv.HashedAccounts)
		require.NoError(t, err)
		require.Equal(t, uint64(5), n)
		return nil
	}))
}

func TestClearTable(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		require.NoError(t, tx.Put(kv.TrieOfStorage, []byte{1}, []byte{1}))
		return tx.ClearTable(kv.TrieOfStorage)
	}))
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		has, err := tx.Has(kv.TrieOfStorage, []byte{1})
		require.NoError(t, err)
		require.False(t, has)
		return nil
	}))
}

func TestConcurrentCursors(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Update(ctx, func(tx kv.RwTx) error {
		for i := 0; i < 500; i++ {
			if err := tx.Put(kv.HashedStorage, []byte{byte(i >> 8), byte(i)}, []byte{1}); err != nil {
				return err
			}
		}
		return nil
	}))

	tx, err := db.BeginRo(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	var wg sync.WaitGroup
	counts := make([]int, 4)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := tx.Cursor(kv.HashedStorage)
			if err != nil {
				return
			}
			defer c.Close()
			for k, _, err := c.First(); k != nil && err == nil; k, _, err = c.Next() {
				counts[i]++
			}
		}(i)
	}
	wg.Wait()
	for _, n := range counts {
		require.Equal(t, 500, n)
	}
}

func TestCommitSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chaindata.db")
	ctx := context.Background()

	db, err := Open(NewOpts(path), log.New())
	require.NoError(t, err)
	tx, err := db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.HashedAccounts, []byte{1}, []byte("committed")))
	require.NoError(t, tx.Commit())
	tx.Rollback()

	tx, err = db.BeginRw(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Put(kv.HashedAccounts, []byte{2}, []byte("rolled back")))
	tx.Rollback()
	db.Close()

	db, err = Open(NewOpts(path).WithReadOnly(true), log.New())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.View(ctx, func(tx kv.Tx) error {
		v, err := tx.GetOne(kv.HashedAccounts, []byte{1})
		require.NoError(t, err)
		require.Equal(t, []byte("committed"), v)
		has, err := tx.Has(kv.HashedAccounts, []byte{2})
		require.NoError(t, err)
		require.False(t, has)
		return nil
	}))
}
