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
	"github.com/erigontech/trieroot/metrics"
)

var (
	mxSkippedSubtrees     = metrics.GetOrCreateCounter("trie_skipped_subtrees_total", "cached subtree hashes reused")
	mxLeavesHashed        = metrics.GetOrCreateCounter("trie_leaves_hashed_total", "leaves fed to the hash builder")
	mxBranchNodesUpdated  = metrics.GetOrCreateCounter("trie_branch_nodes_updated_total")
	mxBranchNodesRemoved  = metrics.GetOrCreateCounter("trie_branch_nodes_removed_total")
	mxStorageRoots        = metrics.GetOrCreateCounter("trie_storage_roots_total", "storage roots computed")
	mxProofs              = metrics.GetOrCreateCounter("trie_proofs_total", "account proofs generated")
	mxProofCacheHits      = metrics.GetOrCreateCounter("trie_proof_cache_hits_total")
	mxStateRootDuration   = metrics.GetOrCreateHistogram("trie_state_root_seconds", "state root computation time")
	mxStorageRootDuration = metrics.GetOrCreateHistogram("trie_storage_root_seconds", "storage root computation time")
)
