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
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/log/v3"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/erigontech/trieroot/kv/boltdb"
	"github.com/erigontech/trieroot/metrics"
	"github.com/erigontech/trieroot/trie"
)

const dbFileName = "trie.db"

var metricsServer *http.Server

var rootCmd = &cobra.Command{
	Use:   "trieroot",
	Short: "incremental state root and proofs over a hashed state database",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configFile != "" {
			if err := setFlagsFromConfigFile(cmd, configFile); err != nil {
				return fmt.Errorf("config %s: %w", configFile, err)
			}
		}
		if err := setupLogger(); err != nil {
			return err
		}
		if metricsAddr != "" {
			metricsServer = startMetrics(metricsAddr)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if metricsServer == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Warn("metrics server shutdown", "err", err)
		}
	},
	SilenceUsage: true,
}

func RootCommand() *cobra.Command {
	return rootCmd
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&datadir, "datadir", "", "data directory holding "+dbFileName)
	must(rootCmd.MarkPersistentFlagDirname("datadir"))
	f.StringVar(&mapSizeStr, "mmap.size", "256MB", "initial mmap size of the database")
	f.BoolVar(&noSync, "db.nosync", false, "skip fsync on commit")
	f.IntVar(&workers, "workers", trie.DefaultConfig.Workers, "storage roots computed in parallel")
	f.StringVar(&logLevel, "log.level", "info", "log level: crit, error, warn, info, debug, trace")
	f.BoolVar(&logJSON, "log.json", false, "log in json format")
	f.StringVar(&logDir, "log.dir", "", "also write logs to rotated files in this directory")
	f.DurationVar(&logEvery, "log.every", trie.DefaultConfig.LogEvery, "progress log interval")
	f.StringVar(&configFile, "config", "", "yaml or toml file with flag values, explicit flags win")
	f.StringVar(&metricsAddr, "metrics.addr", "", "serve prometheus metrics on this address")

	rootCmd.AddCommand(cmdImport, cmdRoot, cmdProof, cmdVerify)
}

func setupLogger() error {
	lvl, err := log.LvlFromString(logLevel)
	if err != nil {
		return err
	}
	if logJSON {
		log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.JsonFormat())))
	} else {
		log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))
	}
	if logDir == "" {
		return nil
	}
	if err := os.MkdirAll(logDir, 0o764); err != nil {
		return err
	}
	dirFormat := log.TerminalFormatNoColor()
	if logJSON {
		dirFormat = log.JsonFormat()
	}
	userLog := log.StreamHandler(&lumberjack.Logger{
		Filename:   filepath.Join(logDir, "trieroot.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}, dirFormat)
	log.Root().SetHandler(log.MultiHandler(log.Root().GetHandler(), log.LvlFilterHandler(lvl, userLog)))
	return nil
}

func startMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/debug/metrics/prometheus", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", "addr", addr, "err", err)
		}
	}()
	log.Info("Starting metrics server", "addr", fmt.Sprintf("http://%s/debug/metrics/prometheus", addr))
	return srv
}

func trieConfig() trie.Config {
	cfg := trie.DefaultConfig
	cfg.Workers = workers
	cfg.LogEvery = logEvery
	return cfg
}

// openDB opens the database under --datadir. A read only open of a database that
// does not exist yet falls back to creating it.
func openDB(readOnly bool) (*boltdb.BoltDB, error) {
	if datadir == "" {
		return nil, errors.New("--datadir is required")
	}
	if err := os.MkdirAll(datadir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(datadir, dbFileName)
	if _, err := os.Stat(path); err != nil {
		readOnly = false
	}
	opts := boltdb.NewOpts(path).WithReadOnly(readOnly).WithNoSync(noSync)
	if mapSizeStr != "" {
		var mapSize datasize.ByteSize
		if err := mapSize.UnmarshalText([]byte(mapSizeStr)); err != nil {
			return nil, fmt.Errorf("--mmap.size: %w", err)
		}
		opts = opts.WithMapSize(mapSize)
	}
	return boltdb.Open(opts, log.Root())
}
