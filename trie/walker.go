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
	"fmt"

	"github.com/erigontech/trieroot/common"
)

// cursorSubNode is one level of the walk: a persisted branch node (nil for the
// virtual root when nothing is persisted) and the child currently looked at.
// nibble == -1 means the walker is at the node itself.
type cursorSubNode struct {
	key     Nibbles
	nibble  int
	node    *BranchNodeCompact
	fullKey Nibbles
}

func newCursorSubNode(key Nibbles, node *BranchNodeCompact) *cursorSubNode {
	nibble := -1
	// only the root node carries its own hash, every other node starts at its first child
	if node != nil && node.RootHash == nil {
		nibble = node.StateMask.First()
	}
	s := &cursorSubNode{key: key, node: node}
	s.setNibble(nibble)
	return s
}

func (s *cursorSubNode) setNibble(nibble int) {
	s.nibble = nibble
	if nibble < 0 {
		s.fullKey = s.key
		return
	}
	s.fullKey = s.key.Concat(byte(nibble))
}

func (s *cursorSubNode) stateFlag() bool {
	return s.node == nil || s.nibble < 0 || s.node.StateMask.IsSet(s.nibble)
}

func (s *cursorSubNode) treeFlag() bool {
	return s.node == nil || s.nibble < 0 || s.node.TreeMask.IsSet(s.nibble)
}

func (s *cursorSubNode) hashFlag() bool {
	if s.node == nil {
		return false
	}
	if s.nibble < 0 {
		return s.node.RootHash != nil
	}
	return s.node.HashMask.IsSet(s.nibble)
}

func (s *cursorSubNode) hash() (common.Hash, bool) {
	if !s.hashFlag() {
		return common.Hash{}, false
	}
	if s.nibble < 0 {
		return *s.node.RootHash, true
	}
	return s.node.HashForNibble(s.nibble), true
}

// Walker traverses the persisted branch nodes of a trie depth-first in ascending path
// order and decides, for every position, whether the cached hash can be reused or the
// subtree has to be rebuilt from leaves.
type Walker struct {
	cursor  TrieCursor
	changes *PrefixSet
	stack   []*cursorSubNode

	canSkipCurrentNode bool

	// strict turns a missing child promised by a tree mask into ErrProofIncomplete.
	strict bool

	retainRemoved bool
	removedKeys   []Nibbles
}

// NewWalker positions the walker at the root of the trie.
func NewWalker(cursor TrieCursor, changes *PrefixSet) (*Walker, error) {
	return newWalker(cursor, changes, false, false)
}

func newWalker(cursor TrieCursor, changes *PrefixSet, retainRemoved, strict bool) (*Walker, error) {
	w := &Walker{
		cursor:        cursor,
		changes:       changes,
		stack:         []*cursorSubNode{newCursorSubNode(Nibbles{}, nil)},
		retainRemoved: retainRemoved,
		strict:        strict,
	}
	k, root, err := cursor.SeekExact(Nibbles{})
	if err != nil {
		return nil, err
	}
	if k != nil {
		w.stack[0] = newCursorSubNode(Nibbles{}, root)
	}
	w.updateSkipNode()
	if k != nil && !w.canSkipCurrentNode && w.retainRemoved {
		w.removedKeys = append(w.removedKeys, Nibbles{})
	}
	return w, nil
}

// Key is the path the walker is at, nil when done.
func (w *Walker) Key() Nibbles {
	if len(w.stack) == 0 {
		return nil
	}
	return w.stack[len(w.stack)-1].fullKey
}

func (w *Walker) Hash() (common.Hash, bool) {
	if len(w.stack) == 0 {
		return common.Hash{}, false
	}
	return w.stack[len(w.stack)-1].hash()
}

// ChildrenInTrie reports whether the current position is backed by persisted nodes below it.
func (w *Walker) ChildrenInTrie() bool {
	return len(w.stack) > 0 && w.stack[len(w.stack)-1].treeFlag()
}

func (w *Walker) CanSkipCurrentNode() bool { return w.canSkipCurrentNode }

// RemovedKeys are the persisted nodes the walker had to descend into: each one is either
// rewritten by the hash builder or must be deleted.
func (w *Walker) RemovedKeys() []Nibbles { return w.removedKeys }

// NextUnprocessedKey is the first hashed key not covered by the positions walked so
// far, padded to 32 bytes. Returns false when the whole key space is covered.
func (w *Walker) NextUnprocessedKey() ([]byte, bool) {
	key := w.Key()
	if key == nil {
		return nil, false
	}
	if w.canSkipCurrentNode {
		inc, ok := key.Increment()
		if !ok {
			return nil, false
		}
		key = inc
	}
	packed := key.Pack()
	out := make([]byte, common.HashLength)
	copy(out, packed)
	return out, true
}

// Advance moves to the next position: into the children of the current node when it
// must be rebuilt and has persisted children, to the next sibling otherwise.
func (w *Walker) Advance() error {
	if len(w.stack) == 0 {
		return nil
	}
	last := w.stack[len(w.stack)-1]
	var err error
	if !w.canSkipCurrentNode && w.ChildrenInTrie() {
		if last.nibble < 0 {
			err = w.moveToNextSibling(true)
		} else {
			err = w.consumeNode()
		}
	} else {
		err = w.moveToNextSibling(false)
	}
	if err != nil {
		return err
	}
	w.updateSkipNode()
	return nil
}

func (w *Walker) consumeNode() error {
	expected := w.Key()
	key, node, err := w.cursor.Seek(expected)
	if err != nil {
		return err
	}
	last := w.stack[len(w.stack)-1]
	promised := last.node != nil && last.nibble >= 0 && last.node.TreeMask.IsSet(last.nibble)
	if key == nil {
		if w.strict && promised {
			return fmt.Errorf("%w: branch node under %s is missing", ErrProofIncomplete, expected)
		}
		w.stack = w.stack[:0]
		return nil
	}

	// the virtual root follows the first nibble of whatever node is found
	if len(key) > 0 && w.stack[0].node == nil {
		w.stack[0].setNibble(int(key[0]))
	}

	if !key.HasPrefix(last.fullKey) {
		// the tree mask promised a node which is not there
		if w.strict && promised {
			return fmt.Errorf("%w: branch node under %s is missing, found %s", ErrProofIncomplete, expected, key)
		}
		return w.moveToNextSibling(false)
	}

	sub := newCursorSubNode(key, node)
	w.stack = append(w.stack, sub)
	w.updateSkipNode()

	if w.retainRemoved && (!w.canSkipCurrentNode || sub.nibble != -1) {
		w.removedKeys = append(w.removedKeys, key)
	}
	return nil
}

func (w *Walker) moveToNextSibling(allowRootToChild bool) error {
	for len(w.stack) > 0 {
		sub := w.stack[len(w.stack)-1]
		if sub.nibble >= 0xf || (sub.nibble < 0 && !allowRootToChild) {
			w.stack = w.stack[:len(w.stack)-1]
			allowRootToChild = false
			continue
		}
		sub.setNibble(sub.nibble + 1)
		if sub.node == nil {
			return w.consumeNode()
		}
		for {
			if sub.stateFlag() {
				return nil
			}
			if sub.nibble == 0xf {
				break
			}
			sub.setNibble(sub.nibble + 1)
		}
		w.stack = w.stack[:len(w.stack)-1]
		allowRootToChild = false
	}
	return nil
}

func (w *Walker) updateSkipNode() {
	if len(w.stack) == 0 {
		w.canSkipCurrentNode = false
		return
	}
	last := w.stack[len(w.stack)-1]
	w.canSkipCurrentNode = !w.changes.Contains(last.fullKey) && last.hashFlag()
}
