// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfdb

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// SearchPathEnv names the environment variable holding the default search path.
const SearchPathEnv = "WFDB"

// maxIndirection bounds the nesting of @file entries.
const maxIndirection = 10

// SearchPath is an ordered list of directories searched for record files.
type SearchPath []string

// DefaultSearchPath returns the search path named by the WFDB environment
// variable, or the current directory.
func DefaultSearchPath() SearchPath {
	return ParseSearchPath(os.Getenv(SearchPathEnv))
}

// ParseSearchPath splits s into directories. Entries are separated by
// whitespace, ';' or ':' (a ':' followed by "//" belongs to a URL). An entry
// of the form @file is replaced by the search path that file contains. URL
// entries are dropped, since records are only read from local storage. An
// empty path is the current directory.
func ParseSearchPath(s string) SearchPath {
	p := parseSearchPath(s, 0)
	if len(p) == 0 {
		return SearchPath{"."}
	}
	return p
}

func parseSearchPath(s string, depth int) SearchPath {
	var p SearchPath
	for _, entry := range splitSearchPath(s) {
		switch {
		case strings.HasPrefix(entry, "@"):
			if depth >= maxIndirection {
				continue
			}
			b, err := os.ReadFile(entry[1:])
			if err != nil {
				continue
			}
			p = append(p, parseSearchPath(string(b), depth+1)...)
		case strings.Contains(entry, "://"):
			continue
		default:
			p = append(p, entry)
		}
	}
	return p
}

func splitSearchPath(s string) []string {
	var entries []string
	start := 0
	flush := func(end int) {
		if end > start {
			entries = append(entries, s[start:end])
		}
		start = end + 1
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\t', '\n', '\r', ';':
			flush(i)
		case ':':
			if strings.HasPrefix(s[i:], "://") {
				i += 2
				continue
			}
			flush(i)
		}
	}
	flush(len(s))
	return entries
}

// Find returns the first existing regular file called name in the
// directories of p. Absolute names are checked as they are.
func (p SearchPath) Find(name string) (string, error) {
	if filepath.IsAbs(name) {
		if isFile(name) {
			return name, nil
		}
		return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	for _, dir := range p {
		candidate := filepath.Join(dir, name)
		if isFile(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%s: %w", name, fs.ErrNotExist)
}

// String joins p the way ParseSearchPath splits it.
func (p SearchPath) String() string {
	return strings.Join(p, " ")
}

func isFile(name string) bool {
	fi, err := os.Stat(name)
	return err == nil && fi.Mode().IsRegular()
}
