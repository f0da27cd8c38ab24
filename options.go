// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfdb

import "github.com/rs/zerolog"

// Option configures a Record or a Writer.
type Option func(*options)

type options struct {
	searchPath SearchPath
	logger     zerolog.Logger
	outputDir  string
	annFreq    Frequency
}

func defaultOptions() *options {
	return &options{
		searchPath: DefaultSearchPath(),
		logger:     zerolog.Nop(),
		outputDir:  ".",
	}
}

func applyOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithSearchPath sets the directories searched for headers, data and
// annotation files. The default is taken from the WFDB environment variable.
func WithSearchPath(p SearchPath) Option {
	return func(o *options) {
		if len(p) > 0 {
			o.searchPath = p
		}
	}
}

// WithLogger sets the logger used for diagnostics. Nothing is logged by
// default.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithOutputDir sets the directory new headers, data and annotation files
// are created in.
func WithOutputDir(dir string) Option {
	return func(o *options) {
		if dir != "" {
			o.outputDir = dir
		}
	}
}

// WithAnnotationFrequency makes annotation files opened for writing record
// their time resolution, for annotators whose times are not counted in
// sample intervals of the record.
func WithAnnotationFrequency(f Frequency) Option {
	return func(o *options) {
		o.annFreq = f
	}
}
