// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/OpenPSG/wfdb"
	"github.com/OpenPSG/wfdb/internal/cliconfig"
)

var exampleUsage = strings.TrimSpace(`
  wfdb header 100s
  wfdb rdsamp 100s --from 0:10 --to 0:20 --physical
  wfdb rdann 100s atr --follow
  wfdb verify --search-path /data/mitdb 100 101 102
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// app is the state shared by every subcommand once the configuration has
// been resolved.
type app struct {
	cfg    cliconfig.Config
	logger zerolog.Logger
}

func (a *app) searchPath() wfdb.SearchPath {
	if a.cfg.SearchPath != "" {
		return wfdb.ParseSearchPath(a.cfg.SearchPath)
	}
	return wfdb.DefaultSearchPath()
}

// options returns the record options for the resolved configuration.
func (a *app) options() []wfdb.Option {
	opts := []wfdb.Option{
		wfdb.WithLogger(a.logger),
		wfdb.WithOutputDir(a.cfg.OutputDir),
	}
	if a.cfg.SearchPath != "" {
		opts = append(opts, wfdb.WithSearchPath(a.searchPath()))
	}
	return opts
}

// openRecord opens the named record. The caller closes it.
func (a *app) openRecord(name string) (*wfdb.Record, error) {
	rec := wfdb.NewRecord(name, a.options()...)
	if err := rec.Open(); err != nil {
		return nil, err
	}
	return rec, nil
}

func newRootCommand() *cobra.Command {
	a := &app{cfg: cliconfig.DefaultConfig(), logger: zerolog.Nop()}
	var cfgPath string

	root := &cobra.Command{
		Use:           "wfdb",
		Short:         "Read, write and check PhysioNet WFDB records",
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cliconfig.ApplyFileConfig(&a.cfg, fc, changed)
			}

			// Environment overrides the file, flags override both.
			if err := cliconfig.ApplyEnvConfig(&a.cfg, changed); err != nil {
				return err
			}

			if err := a.cfg.Validate(); err != nil {
				return err
			}

			a.logger = cliconfig.NewLogger(cmd.ErrOrStderr(), a.cfg.LogLevel)
			a.logger.Debug().Interface("config", a.cfg).Msg("configuration")
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.wfdb/config.toml)")
	flags.StringVar(&a.cfg.SearchPath, "search-path", a.cfg.SearchPath, "directories searched for records (default: $WFDB or .)")
	flags.StringVar(&a.cfg.CalibrationFile, "calibration", a.cfg.CalibrationFile, "calibration file (default: $WFDBCAL)")
	flags.StringVar(&a.cfg.OutputDir, "output-dir", a.cfg.OutputDir, "directory new records and annotation files are written to")
	flags.StringVar(&a.cfg.LogLevel, "log-level", a.cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.IntVar(&a.cfg.Workers, "workers", a.cfg.Workers, "records checked concurrently by verify")

	root.AddCommand(
		newHeaderCommand(a),
		newRdsampCommand(a),
		newRdannCommand(a),
		newVerifyCommand(a),
		newCalibCommand(a),
		newMit2WavCommand(a),
		newWav2MitCommand(a),
	)
	return root
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "wfdb: %v\n", err)
		os.Exit(1)
	}
}
