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
	"io"
	"os"
	"time"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"

	"github.com/erigontech/trieroot/common"
	"github.com/erigontech/trieroot/trie"
)

var cmdImport = &cobra.Command{
	Use:   "import",
	Short: "Apply a JSON changeset: compute the new state root, write hashed state and trie nodes",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := importChangeset(cmd.Context(), cmd.InOrStdin(), log.Root())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), root.Hex())
		return nil
	},
}

func init() {
	withInput(cmdImport)
	withHashKeys(cmdImport)
	withDryRun(cmdImport)
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path)
}

func importChangeset(ctx context.Context, stdin io.Reader, logger log.Logger) (root common.Hash, err error) {
	r, err := openInput(input, stdin)
	if err != nil {
		return root, err
	}
	cs, err := decodeChangeset(r, hashKeys)
	r.Close()
	if err != nil {
		return root, err
	}

	db, err := openDB(false)
	if err != nil {
		return root, err
	}
	defer db.Close()

	tx, err := db.BeginRw(ctx)
	if err != nil {
		return root, err
	}
	defer tx.Rollback()

	cfg := trieConfig()
	cfg.LogPrefix = "import"
	start := time.Now()
	hash, updates, err := trie.NewStateRoot(trie.NewDBCursorFactory(tx), cs, cfg, logger).RootWithUpdates(ctx)
	if err != nil {
		return root, err
	}
	updates.Log(logger, cfg.LogPrefix)
	if dryRun {
		logger.Info(fmt.Sprintf("[%s] dry run, nothing written", cfg.LogPrefix), "root", hash, "took", time.Since(start))
		return hash, nil
	}
	if err = trie.WriteUpdates(tx, updates); err != nil {
		return root, err
	}
	if err = tx.Commit(); err != nil {
		return root, err
	}
	logger.Info(fmt.Sprintf("[%s] committed", cfg.LogPrefix), "root", hash, "accounts", len(cs.Accounts), "storages", len(cs.Storage), "took", time.Since(start))
	return hash, nil
}
