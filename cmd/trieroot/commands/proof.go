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

package commands

import (
	"context"
	"io"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
	"github.com/erigontech/trieroot/trie"
)

var cmdProof = &cobra.Command{
	Use:   "proof",
	Short: "Print the merkle proof of an account and some of its storage slots as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printProof(cmd.Context(), cmd.OutOrStdout(), log.Root())
	},
}

func init() {
	withAddress(cmdProof)
	withHashKeys(cmdProof)
	withProofCache(cmdProof)
}

func printProof(ctx context.Context, w io.Writer, logger log.Logger) error {
	addrs, err := parseHashes(addrStr)
	if err != nil {
		return err
	}
	if len(addrs) != 1 {
		return errBadAddress
	}
	slots, err := parseHashes(slotsStr)
	if err != nil {
		return err
	}
	addr := addrs[0]
	if hashKeys {
		addr = common.Keccak256Hash(addr[:])
		for i := range slots {
			slots[i] = common.Keccak256Hash(slots[i][:])
		}
	}

	db, err := openDB(true)
	if err != nil {
		return err
	}
	defer db.Close()

	cfg := trieConfig()
	cfg.ProofCacheSize = proofCache
	var proof *trie.AccountProof
	if err = db.View(ctx, func(tx kv.Tx) error {
		f := trie.NewDBCursorFactory(tx)
		p := trie.NewProof(f, cfg)
		if expectState {
			root, err := trie.NewStateRoot(f, nil, cfg, logger).Root(ctx)
			if err != nil {
				return err
			}
			p = p.WithExpectedRoot(root)
		}
		proof, err = p.AccountProof(ctx, addr, slots...)
		return err
	}); err != nil {
		return err
	}

	out, err := json.MarshalIndent(marshalProof(proof), "", "  ")
	if err != nil {
		return err
	}
	_, err = w.Write(append(out, '\n'))
	return err
}
