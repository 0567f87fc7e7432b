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

	"github.com/holiman/uint256"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/types/accounts"
)

type StorageProof struct {
	Key   common.Hash
	Value *uint256.Int // zero if the slot is absent
	Proof [][]byte
}

// AccountProof is the merkle proof of one account and some of its slots. Account is
// nil for an absent account, Proof then proves the absence.
type AccountProof struct {
	Address       common.Hash
	Account       *accounts.Account
	Proof         [][]byte
	StorageRoot   common.Hash
	StorageProofs []StorageProof
}

// Proof generates proofs from the persisted trie nodes behind a CursorFactory. To prove
// against a root that was computed but not written, wrap the factory with
// NewTrieUpdatesCursorFactory and NewHashedPostStateCursorFactory.
//
// A Proof is not safe for concurrent use.
type Proof struct {
	factory      CursorFactory
	expectedRoot *common.Hash
	cache        *nodeCache
}

func NewProof(factory CursorFactory, cfg Config) *Proof {
	return &Proof{factory: factory, cache: newNodeCache(cfg.ProofCacheSize)}
}

// WithExpectedRoot makes every account proof fail with ErrProofIncomplete when the
// nodes behind the factory do not hash to root.
func (p *Proof) WithExpectedRoot(root common.Hash) *Proof {
	p.expectedRoot = &root
	return p
}

func (p *Proof) AccountProof(ctx context.Context, addr common.Hash, slots ...common.Hash) (*AccountProof, error) {
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	trieCursor, err := p.factory.AccountTrieCursor()
	if err != nil {
		return nil, err
	}
	trieCursor = p.cache.wrap("a", trieCursor)
	defer trieCursor.Close()
	hashed, err := p.factory.HashedAccountCursor()
	if err != nil {
		return nil, err
	}
	defer hashed.Close()

	target := Unpack(addr[:])
	root, nodes, err := proofWalk(trieCursor, hashed, []Nibbles{target}, false)
	if err != nil {
		return nil, fmt.Errorf("account proof %x: %w", addr, err)
	}
	if p.expectedRoot != nil && root != *p.expectedRoot {
		return nil, fmt.Errorf("%w: state root %x, expected %x", ErrProofIncomplete, root, *p.expectedRoot)
	}

	res := &AccountProof{Address: addr, Proof: proofFor(nodes, target), StorageRoot: common.EmptyRoot}
	if res.Account, err = readAccount(hashed, addr); err != nil {
		return nil, err
	}
	if res.Account != nil {
		res.StorageRoot = res.Account.Root
	}
	if res.StorageProofs, err = p.storageProofs(ctx, addr, res.StorageRoot, slots); err != nil {
		return nil, err
	}
	mxProofs.Inc()
	return res, nil
}

// StorageProof proves slots of addr against the storage root want.
func (p *Proof) StorageProof(ctx context.Context, addr common.Hash, want common.Hash, slots ...common.Hash) ([]StorageProof, error) {
	return p.storageProofs(ctx, addr, want, slots)
}

func (p *Proof) storageProofs(ctx context.Context, addr, want common.Hash, slots []common.Hash) ([]StorageProof, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	trieCursor, err := p.factory.StorageTrieCursor(addr)
	if err != nil {
		return nil, err
	}
	trieCursor = p.cache.wrap("s"+string(addr[:]), trieCursor)
	defer trieCursor.Close()
	hashed, err := p.factory.HashedStorageCursor(addr)
	if err != nil {
		return nil, err
	}
	defer hashed.Close()

	targets := make([]Nibbles, len(slots))
	for i, s := range slots {
		targets[i] = Unpack(s[:])
	}
	root, nodes, err := proofWalk(trieCursor, hashed, targets, true)
	if err != nil {
		return nil, fmt.Errorf("storage proof %x: %w", addr, err)
	}
	if root != want {
		return nil, fmt.Errorf("%w: storage root of %x is %x, account has %x", ErrProofIncomplete, addr, root, want)
	}

	res := make([]StorageProof, len(slots))
	for i, s := range slots {
		v, err := seekHashedExact(hashed, s[:])
		if err != nil {
			return nil, err
		}
		res[i] = StorageProof{Key: s, Value: new(uint256.Int).SetBytes(v), Proof: proofFor(nodes, targets[i])}
	}
	return res, nil
}

// proofWalk recomputes the root of one trie, descending along the targets only, and
// keeps the nodes on their paths.
func proofWalk(trieCursor TrieCursor, hashed HashedCursor, targets []Nibbles, storage bool) (common.Hash, []ProofNode, error) {
	hb := NewHashBuilder().WithProofRetainer(targets...)
	tw := &trieWalk{
		trieCursor: trieCursor,
		hashed:     hashed,
		changes:    NewPrefixSet(targets...),
		hb:         hb,
		strict:     true,
		storage:    storage,
	}
	res, err := tw.run()
	if err != nil {
		return common.Hash{}, nil, err
	}
	return res.root, hb.TakeProofs(), nil
}
