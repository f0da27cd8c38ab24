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

	"github.com/OpenPSG/wfdb"
)

// ApplyEnvConfig applies the WFDB, WFDBCAL and WFDB_* environment
// variables, skipping values whose flag is in changed.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("search-path", os.Getenv(wfdb.SearchPathEnv), &cfg.SearchPath)
	s.setString("calibration", os.Getenv(wfdb.CalibrationEnv), &cfg.CalibrationFile)
	s.setString("output-dir", os.Getenv("WFDB_OUTPUT_DIR"), &cfg.OutputDir)
	s.setString("log-level", os.Getenv("WFDB_LOG_LEVEL"), &cfg.LogLevel)

	return s.setIntFromString("workers", os.Getenv("WFDB_WORKERS"), &cfg.Workers)
}
