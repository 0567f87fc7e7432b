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
	"fmt"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/metrics"
)

// StorageRoot computes the storage root of one account after applying changes, which
// may be nil, on top of the snapshot behind factory.
func StorageRoot(ctx context.Context, factory CursorFactory, addr common.Hash, changes *StorageChangeset) (common.Hash, *StorageTrieUpdates, error) {
	if err := common.Stopped(ctx); err != nil {
		return common.Hash{}, nil, err
	}
	post := &HashedStorage{}
	if changes != nil {
		if err := changes.Validate(); err != nil {
			return common.Hash{}, nil, err
		}
		post = newHashedStorage(changes)
	}
	u, err := storageRoot(factory, addr, post, NewHashBuilder().WithUpdates())
	if err != nil {
		return common.Hash{}, nil, err
	}
	return u.Root, u, nil
}

// storageRoot is one unit of work of the root engine. It owns hb and the returned
// updates, nothing is shared with other units.
func storageRoot(factory CursorFactory, addr common.Hash, post *HashedStorage, hb *HashBuilder) (*StorageTrieUpdates, error) {
	defer metrics.NewHistTimer(mxStorageRootDuration).PutSince()

	var (
		trieCursor TrieCursor   = emptyTrieCursor{}
		base       HashedCursor = emptyHashedCursor{}
		err        error
	)
	if !post.Wiped {
		if trieCursor, err = factory.StorageTrieCursor(addr); err != nil {
			return nil, err
		}
		if base, err = factory.HashedStorageCursor(addr); err != nil {
			trieCursor.Close()
			return nil, err
		}
	}
	defer trieCursor.Close()
	hashed := newPostStateHashedCursor(base, post.Slots)
	defer hashed.Close()

	tw := &trieWalk{
		trieCursor:    trieCursor,
		hashed:        hashed,
		changes:       entriesPrefixSet(post.Slots, post.Wiped),
		hb:            hb,
		retainRemoved: true,
		storage:       true,
	}
	res, err := tw.run()
	if err != nil {
		return nil, fmt.Errorf("storage root of %x: %w", addr, err)
	}

	u := NewStorageTrieUpdates()
	u.Wiped = post.Wiped
	u.Slots = post.Slots
	u.Root = res.root
	if err := u.apply(res.removed, res.updates); err != nil {
		return nil, fmt.Errorf("storage root of %x: %w", addr, err)
	}
	mxStorageRoots.Inc()
	return u, nil
}
