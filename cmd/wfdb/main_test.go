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
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OpenPSG/wfdb"
)

// isolate keeps the user's configuration and environment out of a test.
func isolate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("WFDB", "")
	t.Setenv("WFDBCAL", "")
	t.Setenv("WFDB_LOG_LEVEL", "")
	t.Setenv("WFDB_OUTPUT_DIR", "")
	t.Setenv("WFDB_WORKERS", "")
}

func run(t *testing.T, args ...string) (string, error) {
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// makeRecord writes a two signal record of 100 frames and an atr
// annotation file into dir.
func makeRecord(t *testing.T, dir, name string) {
	w, err := wfdb.Create(dir, wfdb.Header{
		Record:    name,
		Frequency: 100,
		Signals: []wfdb.Signal{
			{FileName: name + ".dat", Format: wfdb.Format212, Description: "MLII", ADCZero: 1024, Baseline: 1024, Gain: 200},
			{FileName: name + ".dat", Format: wfdb.Format212, Description: "V5", ADCZero: 1024, Baseline: 1024, Gain: 200},
		},
		Info: []string{" synthetic"},
	})
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		require.NoError(t, w.WriteFrame([]wfdb.Sample{wfdb.Sample(i), wfdb.Sample(-i)}))
	}
	require.NoError(t, w.Close())

	f, err := os.Create(filepath.Join(dir, name+".atr"))
	require.NoError(t, err)
	aw, err := wfdb.NewAnnotationWriter(f, 0)
	require.NoError(t, err)
	require.NoError(t, aw.Write(wfdb.Annotation{Time: 10, Type: wfdb.Normal}))
	require.NoError(t, aw.Write(wfdb.Annotation{Time: 50, Type: wfdb.PVC}))
	require.NoError(t, aw.Write(wfdb.Annotation{Time: 90, Type: wfdb.Rhythm, Aux: []byte("(N")}))
	require.NoError(t, aw.Close())
}

func TestHeaderCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	makeRecord(t, dir, "syn")

	out, err := run(t, "header", "--search-path", dir, "syn")
	require.NoError(t, err)
	assert.Contains(t, out, "Record syn")
	assert.Contains(t, out, "Sampling frequency: 100 Hz")
	assert.Contains(t, out, "Length: 100 frames")
	assert.Contains(t, out, "MLII")
	assert.Contains(t, out, "# synthetic")

	out, err = run(t, "header", "--raw", "--search-path", dir, "syn")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "syn 2 100 100"), out)
}

func TestRdsampCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	makeRecord(t, dir, "syn")

	out, err := run(t, "rdsamp", "--search-path", dir, "--from", "s5", "--to", "s8", "syn")
	require.NoError(t, err)
	assert.Equal(t, "5\t5\t-5\n6\t6\t-6\n7\t7\t-7\n", out)

	out, err = run(t, "rdsamp", "--search-path", dir, "--to", "s1", "--signals", "1", "--physical", "syn")
	require.NoError(t, err)
	assert.Equal(t, "0\t-5.120\n", out)
}

func TestRdannCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	makeRecord(t, dir, "syn")

	out, err := run(t, "rdann", "--search-path", dir, "syn", "atr")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "N")
	assert.Contains(t, lines[1], "V")
	assert.Contains(t, lines[2], "(N")

	out, err = run(t, "rdann", "--search-path", dir, "--from", "s20", "--to", "s60", "syn", "atr")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 1)
}

func TestVerifyCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	makeRecord(t, dir, "a")
	makeRecord(t, dir, "b")

	out, err := run(t, "verify", "--search-path", dir, "--workers", "2", "a", "b")
	require.NoError(t, err)
	assert.Contains(t, out, "a: ok, 100 frames")
	assert.Contains(t, out, "b: ok, 100 frames")

	// Corrupt the checksum of b's first signal.
	hea := filepath.Join(dir, "b.hea")
	hdr, err := wfdb.ReadHeader("b", wfdb.SearchPath{dir})
	require.NoError(t, err)
	hdr.Signals[0].CheckSum++
	require.NoError(t, wfdb.CreateHeader(dir, hdr))
	require.FileExists(t, hea)

	out, err = run(t, "verify", "--search-path", dir, "a", "b", "missing")
	require.Error(t, err)
	assert.Contains(t, out, "a: ok")
	assert.Contains(t, out, "b: wfdb: checksum mismatch in signal 0")
	assert.Contains(t, out, "missing: error")
}

func TestCalibCommand(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	makeRecord(t, dir, "syn")
	calFile := filepath.Join(dir, "wfdbcal")

	_, err := run(t, "calib", "add", "--calibration", calFile, "--shape", "square", "--high", "1", "--scale", "1", "ECG", "mV")
	require.NoError(t, err)
	_, err = run(t, "calib", "add", "--calibration", calFile, "--dc", "--low", "0", "--high", "100", "--scale", "100", "--shape", "square", "ABP", "mmHg")
	require.NoError(t, err)

	out, err := run(t, "calib", "--calibration", calFile)
	require.NoError(t, err)
	assert.Contains(t, out, "ECG")
	assert.Contains(t, out, "ABP")

	t.Setenv("WFDBCAL", calFile)
	out, err = run(t, "calib", "--search-path", dir, "syn")
	require.NoError(t, err)
	assert.Contains(t, out, "no calibration")
}

func TestWavCommands(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	makeRecord(t, dir, "syn")
	outDir := t.TempDir()
	wavPath := filepath.Join(outDir, "syn.wav")

	out, err := run(t, "mit2wav", "--search-path", dir, "syn", wavPath)
	require.NoError(t, err)
	assert.Contains(t, out, "100 frames")

	out, err = run(t, "wav2mit", "--output-dir", outDir, wavPath, "back")
	require.NoError(t, err)
	assert.Contains(t, out, "back: 2 signals at 100 Hz, 100 frames")

	out, err = run(t, "rdsamp", "--search-path", outDir, "--from", "s99", "back")
	require.NoError(t, err)
	assert.Equal(t, "99\t99\t-99\n", out)
}

func TestBadLogLevel(t *testing.T) {
	isolate(t)

	_, err := run(t, "header", "--log-level", "chatty", "x")
	require.Error(t, err)
}
