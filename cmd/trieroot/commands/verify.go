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
	"errors"
	"fmt"
	"io"

	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"

	"github.com/erigontech/trieroot/common"
)

var errBadAddress = errors.New("--address takes exactly one key")

var cmdVerify = &cobra.Command{
	Use:   "verify",
	Short: "Verify a JSON proof against a state root",
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := verifyProof(cmd.Context(), cmd.InOrStdin(), log.Root())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "proof is valid for root %s\n", root.Hex())
		return nil
	},
}

func init() {
	withProofFile(cmdVerify)
	withStateRoot(cmdVerify)
}

func verifyProof(ctx context.Context, stdin io.Reader, logger log.Logger) (common.Hash, error) {
	r, err := openInput(proofFile, stdin)
	if err != nil {
		return common.Hash{}, err
	}
	var in accountProofJSON
	err = json.NewDecoder(r).Decode(&in)
	r.Close()
	if err != nil {
		return common.Hash{}, fmt.Errorf("decode proof: %w", err)
	}

	var root common.Hash
	if stateRoot != "" {
		if err := root.UnmarshalText([]byte(stateRoot)); err != nil {
			return common.Hash{}, fmt.Errorf("--root: %w", err)
		}
	} else if root, err = currentRoot(ctx, logger); err != nil {
		return common.Hash{}, err
	}
	if err := unmarshalProof(in).Verify(root); err != nil {
		return common.Hash{}, err
	}
	return root, nil
}
