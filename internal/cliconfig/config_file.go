// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig is the TOML form of Config.
type FileConfig struct {
	SearchPath      string `toml:"search_path"`
	CalibrationFile string `toml:"calibration_file"`
	OutputDir       string `toml:"output_dir"`
	LogLevel        string `toml:"log_level"`
	Workers         int    `toml:"workers"`
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.wfdb/config.toml, or "" when there is no home
// directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".wfdb", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies fc to cfg, skipping values whose flag is in
// changed.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) {
	s := newConfigSetter(changed)

	s.setString("search-path", fc.SearchPath, &cfg.SearchPath)
	s.setString("calibration", fc.CalibrationFile, &cfg.CalibrationFile)
	s.setString("output-dir", fc.OutputDir, &cfg.OutputDir)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setInt("workers", fc.Workers, &cfg.Workers)
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
