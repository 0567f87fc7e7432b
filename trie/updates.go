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
	"sort"

	"github.com/ledgerwatch/log/v3"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
)

// nodeSet is the branch node delta of one trie, keyed by string(path).
type nodeSet struct {
	Nodes    map[string]*BranchNodeCompact
	Removals map[string]struct{}
}

func newNodeSet() nodeSet {
	return nodeSet{Nodes: map[string]*BranchNodeCompact{}, Removals: map[string]struct{}{}}
}

// put records a node. Every path is resolved at most once per computation, a second
// put is a defect.
func (s nodeSet) put(path Nibbles, node *BranchNodeCompact) error {
	k := string(path)
	if _, ok := s.Nodes[k]; ok {
		return fmt.Errorf("%w: path %s", ErrDuplicateNodeWrite, path)
	}
	if err := node.Validate(); err != nil {
		return fmt.Errorf("path %s: %w", path, err)
	}
	delete(s.Removals, k)
	s.Nodes[k] = node
	return nil
}

func (s nodeSet) remove(path Nibbles) {
	k := string(path)
	if _, ok := s.Nodes[k]; ok {
		return
	}
	s.Removals[k] = struct{}{}
}

// apply records the outcome of one walk: the nodes the walker descended into are
// removed unless the hash builder wrote them again.
func (s nodeSet) apply(removed []Nibbles, updates []NodeUpdate) error {
	for _, p := range removed {
		s.remove(p)
	}
	for _, u := range updates {
		if err := s.put(u.Path, u.Node); err != nil {
			return err
		}
	}
	return nil
}

func sortedPaths[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// StorageTrieUpdates is the delta of one storage trie.
type StorageTrieUpdates struct {
	nodeSet
	// Wiped drops every node and slot stored before for the account.
	Wiped bool
	Slots []HashedEntry
	Root  common.Hash
}

func NewStorageTrieUpdates() *StorageTrieUpdates {
	return &StorageTrieUpdates{nodeSet: newNodeSet(), Root: common.EmptyRoot}
}

func (u *StorageTrieUpdates) PutNode(path Nibbles, node *BranchNodeCompact) error {
	return u.put(path, node)
}

func (u *StorageTrieUpdates) RemoveNode(path Nibbles) { u.remove(path) }

func (u *StorageTrieUpdates) Len() int { return len(u.Nodes) + len(u.Removals) }

// TrieUpdates is everything one root computation wants persisted. It is owned by the
// caller of the computation.
type TrieUpdates struct {
	AccountNodes    map[string]*BranchNodeCompact
	AccountRemovals map[string]struct{}
	// AccountLeaves are the final account encodings, nil for deleted accounts.
	AccountLeaves []HashedEntry
	StorageTries  map[common.Hash]*StorageTrieUpdates
	Root          common.Hash
}

func NewTrieUpdates() *TrieUpdates {
	s := newNodeSet()
	return &TrieUpdates{
		AccountNodes:    s.Nodes,
		AccountRemovals: s.Removals,
		StorageTries:    map[common.Hash]*StorageTrieUpdates{},
		Root:            common.EmptyRoot,
	}
}

func (u *TrieUpdates) accountSet() nodeSet {
	return nodeSet{Nodes: u.AccountNodes, Removals: u.AccountRemovals}
}

func (u *TrieUpdates) PutAccountNode(path Nibbles, node *BranchNodeCompact) error {
	return u.accountSet().put(path, node)
}

func (u *TrieUpdates) RemoveAccountNode(path Nibbles) { u.accountSet().remove(path) }

// MergeStorage fans in the result of one storage root worker.
func (u *TrieUpdates) MergeStorage(addr common.Hash, s *StorageTrieUpdates) error {
	if _, ok := u.StorageTries[addr]; ok {
		return fmt.Errorf("%w: storage trie %x computed twice", ErrInternalInvariant, addr)
	}
	u.StorageTries[addr] = s
	return nil
}

func (u *TrieUpdates) Len() int {
	n := len(u.AccountNodes) + len(u.AccountRemovals)
	for _, s := range u.StorageTries {
		n += s.Len()
	}
	return n
}

func (u *TrieUpdates) Log(logger log.Logger, prefix string) {
	storageNodes, storageRemovals, wiped := 0, 0, 0
	for _, s := range u.StorageTries {
		storageNodes += len(s.Nodes)
		storageRemovals += len(s.Removals)
		if s.Wiped {
			wiped++
		}
	}
	logger.Info(fmt.Sprintf("[%s] Trie updates", prefix),
		"root", u.Root,
		"account nodes", len(u.AccountNodes), "account removals", len(u.AccountRemovals),
		"accounts", len(u.AccountLeaves), "storage tries", len(u.StorageTries),
		"storage nodes", storageNodes, "storage removals", storageRemovals, "wiped", wiped)
}

// PostState is the leaf-level state the updates were computed for. Together with
// NewTrieUpdatesCursorFactory it lets proofs be taken against Root before anything
// is written.
func (u *TrieUpdates) PostState() *HashedPostState {
	post := NewHashedPostState()
	post.Accounts = u.AccountLeaves
	for addr, s := range u.StorageTries {
		post.Storages[addr] = &HashedStorage{Wiped: s.Wiped, Slots: s.Slots}
	}
	return post
}

// WriteUpdates persists u. Wiped storages are cleared first, then node removals are
// applied before node puts so a rewritten path ends up with its new value.
func WriteUpdates(tx kv.RwTx, u *TrieUpdates) error {
	addrs := make([]common.Hash, 0, len(u.StorageTries))
	for addr := range u.StorageTries {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Cmp(addrs[j]) < 0 })

	for _, addr := range addrs {
		s := u.StorageTries[addr]
		if s.Wiped {
			if err := clearPrefix(tx, kv.TrieOfStorage, addr[:]); err != nil {
				return err
			}
			if err := clearPrefix(tx, kv.HashedStorage, addr[:]); err != nil {
				return err
			}
		}
		if err := writeNodes(tx, kv.TrieOfStorage, addr[:], s.nodeSet); err != nil {
			return err
		}
		for _, e := range s.Slots {
			if err := writeLeaf(tx, kv.HashedStorage, common.Append(addr[:], e.Key[:]), e.Value); err != nil {
				return err
			}
		}
	}

	if err := writeNodes(tx, kv.TrieOfAccounts, nil, u.accountSet()); err != nil {
		return err
	}
	for _, e := range u.AccountLeaves {
		if err := writeLeaf(tx, kv.HashedAccounts, e.Key[:], e.Value); err != nil {
			return err
		}
	}
	return nil
}

func writeNodes(tx kv.RwTx, table string, prefix []byte, s nodeSet) error {
	for _, p := range sortedPaths(s.Removals) {
		if err := tx.Delete(table, common.Append(prefix, []byte(p))); err != nil {
			return kv.WrapErr(table, err)
		}
	}
	for _, p := range sortedPaths(s.Nodes) {
		if err := tx.Put(table, common.Append(prefix, []byte(p)), s.Nodes[p].Encode()); err != nil {
			return kv.WrapErr(table, err)
		}
	}
	return nil
}

func writeLeaf(tx kv.RwTx, table string, k, v []byte) error {
	var err error
	if v == nil {
		err = tx.Delete(table, k)
	} else {
		err = tx.Put(table, k, v)
	}
	return kv.WrapErr(table, err)
}

// clearPrefix deletes every key of table starting with prefix. The range ends at the
// next subtree of prefix, or at the end of the table for an all-0xff prefix.
func clearPrefix(tx kv.RwTx, table string, prefix []byte) error {
	end, bounded := kv.NextSubtree(prefix)
	c, err := tx.RwCursor(table)
	if err != nil {
		return kv.WrapErr(table, err)
	}
	defer c.Close()
	var keys [][]byte
	for k, _, err := c.Seek(prefix); k != nil; k, _, err = c.Next() {
		if err != nil {
			return kv.WrapErr(table, err)
		}
		if bounded && bytes.Compare(k, end) >= 0 {
			break
		}
		keys = append(keys, common.Copy(k))
	}
	for _, k := range keys {
		if err := c.Delete(k); err != nil {
			return kv.WrapErr(table, err)
		}
	}
	return nil
}
