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
	"sort"

	"github.com/erigontech/trieroot/common"
)

// ProofNode is an encoded trie node and the path it sits at.
type ProofNode struct {
	Path Nibbles
	Enc  []byte
}

// proofRetainer decides which nodes are needed for the proofs of its targets:
// exactly those whose path is a prefix of some target.
type proofRetainer struct {
	targets []Nibbles
	nodes   map[string][]byte
}

func newProofRetainer(targets []Nibbles) *proofRetainer {
	return &proofRetainer{targets: targets, nodes: map[string][]byte{}}
}

func (r *proofRetainer) retain(path Nibbles, enc []byte) {
	for _, t := range r.targets {
		if t.HasPrefix(path) {
			r.nodes[string(path)] = common.Copy(enc)
			return
		}
	}
}

func (r *proofRetainer) take() []ProofNode {
	out := make([]ProofNode, 0, len(r.nodes))
	for p, enc := range r.nodes {
		out = append(out, ProofNode{Path: Nibbles(p), Enc: enc})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path.Compare(out[j].Path) < 0 })
	r.nodes = map[string][]byte{}
	return out
}

// proofFor selects the nodes on the path to target, root first. Nodes short enough
// to be inlined into their parent are left out, except the root which is always hashed.
func proofFor(nodes []ProofNode, target Nibbles) [][]byte {
	var proof [][]byte
	for _, n := range nodes {
		if !target.HasPrefix(n.Path) {
			continue
		}
		if len(n.Path) > 0 && len(n.Enc) < common.HashLength {
			continue
		}
		proof = append(proof, n.Enc)
	}
	return proof
}
