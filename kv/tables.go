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

package kv

const (
	//HashedAccounts
	// key - address hash
	// value - account encoded for hashing (rlp list of nonce, balance, storage root, code hash)
	HashedAccounts = "HashedAccount"

	//HashedStorage
	// key - address hash + storage key hash
	// value - storage value, big-endian without leading zeroes
	HashedStorage = "HashedStorage"

	// TrieOfAccounts and TrieOfStorage hold intermediate hashes of the tries.
	// key - nibble path, one nibble per byte (for storage prefixed with the address hash)
	// value - trie.BranchNodeCompact encoding
	TrieOfAccounts = "TrieAccount"
	TrieOfStorage  = "TrieStorage"
)

// ChaindataTables - list of all tables of the database.
var ChaindataTables = []string{
	HashedAccounts,
	HashedStorage,
	TrieOfAccounts,
	TrieOfStorage,
}
