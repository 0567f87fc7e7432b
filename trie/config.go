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
	"runtime"
	"time"
)

type Config struct {
	// Workers bounds the number of storage roots computed in parallel.
	Workers   int
	LogPrefix string
	LogEvery  time.Duration
	Trace     bool
	// ProofCacheSize is the number of trie cursor lookups one proof generator remembers.
	ProofCacheSize int
}

var DefaultConfig = Config{
	Workers:        runtime.GOMAXPROCS(0),
	LogPrefix:      "trie",
	LogEvery:       20 * time.Second,
	ProofCacheSize: 4096,
}

func (cfg Config) workers() int {
	if cfg.Workers < 1 {
		return 1
	}
	return cfg.Workers
}

func (cfg Config) logEvery() time.Duration {
	if cfg.LogEvery <= 0 {
		return DefaultConfig.LogEvery
	}
	return cfg.LogEvery
}
