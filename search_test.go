// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfdb_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/wfdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSearchPath(t *testing.T) {
	assert.Equal(t, wfdb.SearchPath{"."}, wfdb.ParseSearchPath(""))
	assert.Equal(t, wfdb.SearchPath{"a", "b", "c", "d"}, wfdb.ParseSearchPath("a;b:c d"))

	// Remote entries are skipped.
	assert.Equal(t, wfdb.SearchPath{".", "local"},
		wfdb.ParseSearchPath(". https://physionet.org/files/mitdb/1.0.0 local"))
}

func TestSearchPathIndirection(t *testing.T) {
	dir := t.TempDir()
	inner := filepath.Join(dir, "inner")
	require.NoError(t, os.WriteFile(inner, []byte("x\ny\n"), 0o644))
	outer := filepath.Join(dir, "outer")
	require.NoError(t, os.WriteFile(outer, []byte("w @"+inner+" z"), 0o644))

	assert.Equal(t, wfdb.SearchPath{"w", "x", "y", "z", "v"}, wfdb.ParseSearchPath("@"+outer+" v"))

	// Unreadable files and self reference do not break parsing.
	loop := filepath.Join(dir, "loop")
	require.NoError(t, os.WriteFile(loop, []byte("a @"+loop), 0o644))
	p := wfdb.ParseSearchPath("@" + loop + " @" + filepath.Join(dir, "missing"))
	assert.Contains(t, p, "a")
}

func TestSearchPathFind(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(b, "rec.hea"), []byte("rec 0\n"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(a, "dir.hea"), 0o755))

	p := wfdb.SearchPath{a, b}
	got, err := p.Find("rec.hea")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b, "rec.hea"), got)

	got, err = p.Find(filepath.Join(b, "rec.hea"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(b, "rec.hea"), got)

	_, err = p.Find("missing.hea")
	require.ErrorIs(t, err, fs.ErrNotExist)

	// Directories are not records.
	_, err = p.Find("dir.hea")
	require.ErrorIs(t, err, fs.ErrNotExist)

	assert.Equal(t, a+" "+b, p.String())
}

func TestDefaultSearchPath(t *testing.T) {
	t.Setenv(wfdb.SearchPathEnv, "one;two")
	assert.Equal(t, wfdb.SearchPath{"one", "two"}, wfdb.DefaultSearchPath())

	t.Setenv(wfdb.SearchPathEnv, "")
	assert.Equal(t, wfdb.SearchPath{"."}, wfdb.DefaultSearchPath())
}
