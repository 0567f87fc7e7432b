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
	"time"

	"github.com/spf13/cobra"
)

var (
	datadir     string
	mapSizeStr  string
	noSync      bool
	workers     int
	logLevel    string
	logJSON     bool
	logDir      string
	logEvery    time.Duration
	configFile  string
	metricsAddr string

	input       string
	hashKeys    bool
	dryRun      bool
	addrStr     string
	slotsStr    string
	stateRoot   string
	proofFile   string
	proofCache  int
	expectState bool
)

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func withInput(cmd *cobra.Command) {
	cmd.Flags().StringVar(&input, "input", "", "path to a JSON changeset, - reads stdin")
	must(cmd.MarkFlagRequired("input"))
}

func withHashKeys(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&hashKeys, "hash-keys", false, "keys are plain addresses and slots, hash them with keccak256 before use")
}

func withDryRun(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compute the root but do not write anything")
}

func withAddress(cmd *cobra.Command) {
	cmd.Flags().StringVar(&addrStr, "address", "", "account key")
	must(cmd.MarkFlagRequired("address"))
	cmd.Flags().StringVar(&slotsStr, "slots", "", "comma separated storage keys of the account")
}

func withProofCache(cmd *cobra.Command) {
	cmd.Flags().IntVar(&proofCache, "proof.cache", 4096, "number of trie node lookups to remember while proving")
	cmd.Flags().BoolVar(&expectState, "check-root", true, "recompute the state root and refuse to prove against stale nodes")
}

func withStateRoot(cmd *cobra.Command) {
	cmd.Flags().StringVar(&stateRoot, "root", "", "state root to verify against, the current root of --datadir when empty")
}

func withProofFile(cmd *cobra.Command) {
	cmd.Flags().StringVar(&proofFile, "proof", "", "path to a JSON proof as printed by the proof command, - reads stdin")
	must(cmd.MarkFlagRequired("proof"))
}
