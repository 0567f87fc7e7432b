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
	"errors"
	"fmt"

	"github.com/erigontech/trieroot/kv"
)

var (
	// ErrStorageUnavailable is returned when a cursor read fails. The computation is aborted.
	ErrStorageUnavailable = kv.ErrStorageUnavailable

	// Caller contract violations, reported before any traversal starts.
	ErrDuplicateKey     = errors.New("duplicate key in changeset")
	ErrUnsortedInput    = errors.New("changeset is not sorted")
	ErrInvalidChangeset = errors.New("invalid changeset")

	// ErrInternalInvariant is a defect: never retried, never patched over.
	ErrInternalInvariant  = errors.New("internal invariant violation")
	ErrInvalidBranchNode  = fmt.Errorf("%w: invalid branch node", ErrInternalInvariant)
	ErrDuplicateNodeWrite = fmt.Errorf("%w: duplicate node write", ErrInternalInvariant)

	ErrProofIncomplete = errors.New("proof incomplete")
	ErrInvalidProof    = errors.New("invalid proof")
)
