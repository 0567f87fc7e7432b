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
	"fmt"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/kv"
	"github.com/erigontech/trieroot/trie"
)

var cmdRoot = &cobra.Command{
	Use:   "root",
	Short: "Print the state root of the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := currentRoot(cmd.Context(), log.Root())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), root.Hex())
		return nil
	},
}

func currentRoot(ctx context.Context, logger log.Logger) (common.Hash, error) {
	db, err := openDB(true)
	if err != nil {
		return common.Hash{}, err
	}
	defer db.Close()

	var root common.Hash
	err = db.View(ctx, func(tx kv.Tx) error {
		root, err = trie.NewStateRoot(trie.NewDBCursorFactory(tx), nil, trieConfig(), logger).Root(ctx)
		return err
	})
	return root, err
}
