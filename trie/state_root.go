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
	"runtime"
	"sort"
	"time"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/sync/errgroup"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/metrics"
	"github.com/erigontech/trieroot/types/accounts"
)

// StateRoot computes the state root for a changeset applied on top of the snapshot
// behind a CursorFactory. Storage roots of the touched accounts are computed in
// parallel first, the account trie is walked after.
type StateRoot struct {
	factory CursorFactory
	changes *Changeset
	cfg     Config
	logger  log.Logger
}

func NewStateRoot(factory CursorFactory, changes *Changeset, cfg Config, logger log.Logger) *StateRoot {
	if changes == nil {
		changes = &Changeset{}
	}
	return &StateRoot{factory: factory, changes: changes, cfg: cfg, logger: logger}
}

// Root returns the state root without collecting trie updates.
func (sr *StateRoot) Root(ctx context.Context) (common.Hash, error) {
	u, err := sr.compute(ctx, false)
	if err != nil {
		return common.Hash{}, err
	}
	return u.Root, nil
}

// RootWithUpdates returns the state root and everything that has to be written for the
// next computation to start from it.
func (sr *StateRoot) RootWithUpdates(ctx context.Context) (common.Hash, *TrieUpdates, error) {
	u, err := sr.compute(ctx, true)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return u.Root, u, nil
}

type storageJob struct {
	addr common.Hash
	post *HashedStorage
}

func (sr *StateRoot) compute(ctx context.Context, retainUpdates bool) (*TrieUpdates, error) {
	if err := sr.changes.Validate(); err != nil {
		return nil, err
	}
	defer metrics.NewHistTimer(mxStateRootDuration).PutSince()
	logPrefix := sr.cfg.LogPrefix

	baseAccounts, err := sr.factory.HashedAccountCursor()
	if err != nil {
		return nil, err
	}
	defer baseAccounts.Close()

	changed := make(map[common.Hash]*accounts.Account, len(sr.changes.Accounts))
	for _, a := range sr.changes.Accounts {
		changed[a.Key] = a.Account
	}

	// storage-only changes need the stored account to put the new root in
	storageOnly := map[common.Hash]*accounts.Account{}
	jobs := make([]storageJob, 0, len(sr.changes.Storage))
	hasJob := map[common.Hash]struct{}{}
	for i := range sr.changes.Storage {
		s := &sr.changes.Storage[i]
		post := newHashedStorage(s)
		acc, inChangeset := changed[s.Account]
		switch {
		case inChangeset && acc == nil:
			post.Wiped = true
		case !inChangeset:
			base, err := readAccount(baseAccounts, s.Account)
			if err != nil {
				return nil, err
			}
			if base == nil {
				return nil, fmt.Errorf("%w: storage changed for missing account %x", ErrInvalidChangeset, s.Account)
			}
			storageOnly[s.Account] = base
		}
		jobs = append(jobs, storageJob{addr: s.Account, post: post})
		hasJob[s.Account] = struct{}{}
	}
	for _, a := range sr.changes.Accounts {
		if _, ok := hasJob[a.Key]; a.Account == nil && !ok {
			jobs = append(jobs, storageJob{addr: a.Key, post: &HashedStorage{Wiped: true}})
		}
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].addr.Cmp(jobs[j].addr) < 0 })

	storage, err := sr.storageRoots(ctx, jobs, retainUpdates)
	if err != nil {
		return nil, err
	}

	post := NewHashedPostState()
	for i, job := range jobs {
		post.Storages[job.addr] = job.post
		if err := storage.MergeStorage(job.addr, storage.results[i]); err != nil {
			return nil, err
		}
	}

	for _, a := range sr.changes.Accounts {
		if a.Account == nil {
			post.Accounts = append(post.Accounts, HashedEntry{Key: a.Key})
			continue
		}
		acc := a.Account.Copy()
		if s, ok := storage.StorageTries[a.Key]; ok {
			acc.Root = s.Root
		} else {
			base, err := readAccount(baseAccounts, a.Key)
			if err != nil {
				return nil, err
			}
			acc.Root = common.EmptyRoot
			if base != nil {
				acc.Root = base.Root
			}
		}
		post.Accounts = append(post.Accounts, HashedEntry{Key: a.Key, Value: acc.EncodeForHashing(nil)})
	}
	for addr, acc := range storageOnly {
		acc.Root = storage.StorageTries[addr].Root
		post.Accounts = append(post.Accounts, HashedEntry{Key: addr, Value: acc.EncodeForHashing(nil)})
	}
	sortEntries(post.Accounts)

	f := NewHashedPostStateCursorFactory(sr.factory, post)
	trieCursor, err := f.AccountTrieCursor()
	if err != nil {
		return nil, err
	}
	defer trieCursor.Close()
	hashed, err := f.HashedAccountCursor()
	if err != nil {
		return nil, err
	}
	defer hashed.Close()

	hb := NewHashBuilder()
	if retainUpdates {
		hb.WithUpdates()
	}
	if sr.cfg.Trace {
		hb.WithTrace(sr.logger)
	}
	logEvery := time.NewTicker(sr.cfg.logEvery())
	defer logEvery.Stop()
	tw := &trieWalk{
		trieCursor:    trieCursor,
		hashed:        hashed,
		changes:       entriesPrefixSet(post.Accounts, false),
		hb:            hb,
		retainRemoved: retainUpdates,
		ctx:           ctx,
		progress: func(key []byte) {
			select {
			case <-logEvery.C:
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				sr.logger.Info(fmt.Sprintf("[%s] Calculating Merkle root", logPrefix), "current key", fmt.Sprintf("%x", key),
					"alloc", common.ByteCount(m.Alloc), "sys", common.ByteCount(m.Sys))
			default:
			}
		},
	}
	res, err := tw.run()
	if err != nil {
		return nil, fmt.Errorf("account trie: %w", err)
	}

	u := storage.TrieUpdates
	u.Root = res.root
	u.AccountLeaves = post.Accounts
	if retainUpdates {
		if err := u.accountSet().apply(res.removed, res.updates); err != nil {
			return nil, fmt.Errorf("account trie: %w", err)
		}
	}
	sr.logger.Debug(fmt.Sprintf("[%s] State root", logPrefix), "root", u.Root,
		"accounts", len(post.Accounts), "storage tries", len(jobs),
		"leaves hashed", res.leaves, "subtrees reused", res.skipped)
	return u, nil
}

type storageResults struct {
	*TrieUpdates
	results []*StorageTrieUpdates
}

// storageRoots runs the jobs on at most cfg.Workers goroutines. Each job gets its own
// hash builder and accumulator, results keep the job order.
func (sr *StateRoot) storageRoots(ctx context.Context, jobs []storageJob, retainUpdates bool) (*storageResults, error) {
	results := make([]*StorageTrieUpdates, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sr.cfg.workers())
	for i, job := range jobs {
		i, job := i, job
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := common.Stopped(gctx); err != nil {
				return err
			}
			hb := NewHashBuilder()
			if retainUpdates {
				hb.WithUpdates()
			}
			if sr.cfg.Trace {
				hb.WithTrace(sr.logger)
			}
			u, err := storageRoot(sr.factory, job.addr, job.post, hb)
			if err != nil {
				return err
			}
			if !retainUpdates {
				u.nodeSet = newNodeSet()
			}
			results[i] = u
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := common.Stopped(ctx); err != nil {
		return nil, err
	}
	return &storageResults{TrieUpdates: NewTrieUpdates(), results: results}, nil
}

func readAccount(c HashedCursor, addr common.Hash) (*accounts.Account, error) {
	enc, err := seekHashedExact(c, addr[:])
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	acc, err := accounts.Decode(enc)
	if err != nil {
		return nil, fmt.Errorf("%w: account %x: %w", ErrInternalInvariant, addr, err)
	}
	return acc, nil
}
