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
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/wfdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openFixture opens the 100s test record, a 60 second two signal excerpt in
// format 212.
func openFixture(t *testing.T, opts ...wfdb.Option) *wfdb.Record {
	t.Helper()

	rec := wfdb.NewRecord("100s", append([]wfdb.Option{wfdb.WithSearchPath(wfdb.SearchPath{"testdata"})}, opts...)...)
	require.NoError(t, rec.Open())
	t.Cleanup(func() {
		require.NoError(t, rec.Close())
	})
	return rec
}

// copyFixture copies the 100s test record into a temporary directory.
func copyFixture(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"100s.hea", "100s.dat"} {
		data, err := os.ReadFile(filepath.Join("testdata", name))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
	return dir
}

func TestRecordOpen(t *testing.T) {
	rec := wfdb.NewRecord("100s", wfdb.WithSearchPath(wfdb.SearchPath{"testdata"}))
	assert.True(t, rec.IsNew())
	assert.Nil(t, rec.Header())
	assert.Equal(t, wfdb.DefaultFrequency, rec.Frequency())

	require.NoError(t, rec.Open())
	assert.False(t, rec.IsNew())
	assert.Equal(t, wfdb.Frequency(360), rec.Frequency())
	assert.Equal(t, int64(21600), rec.NumberOfSamples())
	assert.Equal(t, 1, rec.Groups())
	assert.Equal(t, 2, rec.FrameSize())
	assert.Len(t, rec.Signals(), 2)
	assert.Len(t, rec.Info(), 3)

	sig, err := rec.Signal(1)
	require.NoError(t, err)
	assert.Equal(t, "V5", sig.Description)
	_, err = rec.Signal(2)
	require.ErrorIs(t, err, wfdb.ErrOutOfRange)

	require.ErrorIs(t, rec.Open(), wfdb.ErrInvalidOperation)

	require.NoError(t, rec.Close())
	assert.True(t, rec.IsNew())
	assert.Nil(t, rec.Header())
	require.ErrorIs(t, rec.ReadFrame(make([]wfdb.Sample, 2)), wfdb.ErrClosed)

	// A closed record can be opened again.
	require.NoError(t, rec.Open())
	require.NoError(t, rec.Close())
}

func TestRecordOpenMissing(t *testing.T) {
	rec := wfdb.NewRecord("nope", wfdb.WithSearchPath(wfdb.SearchPath{t.TempDir()}))
	require.ErrorIs(t, rec.Open(), wfdb.ErrNoInputFile)
	assert.True(t, rec.IsNew())
}

func TestRecordOpenMissingData(t *testing.T) {
	dir := copyFixture(t)
	require.NoError(t, os.Remove(filepath.Join(dir, "100s.dat")))

	rec := wfdb.NewRecord("100s", wfdb.WithSearchPath(wfdb.SearchPath{dir}))
	require.ErrorIs(t, rec.Open(), wfdb.ErrUnableToOpen)
	assert.Nil(t, rec.Header())
}

func TestRecordReadFrame(t *testing.T) {
	rec := openFixture(t)

	frame := make([]wfdb.Sample, 2)
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, []wfdb.Sample{995, 1011}, frame)
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, []wfdb.Sample{997, 1011}, frame)
	assert.Equal(t, wfdb.Time(2), rec.Time())

	require.ErrorIs(t, rec.ReadFrame(make([]wfdb.Sample, 1)), wfdb.ErrOutOfRange)
}

func TestRecordReadAll(t *testing.T) {
	rec := openFixture(t)

	var n int64
	var last []wfdb.Sample
	for frame, err := range rec.Frames() {
		require.NoError(t, err)
		last = append(last[:0], frame...)
		n++
	}
	assert.Equal(t, int64(21600), n)
	assert.Equal(t, []wfdb.Sample{993, 1011}, last)

	require.ErrorIs(t, rec.ReadFrame(make([]wfdb.Sample, 2)), wfdb.ErrEndOfData)
}

func TestRecordSeek(t *testing.T) {
	rec := openFixture(t)
	frame := make([]wfdb.Sample, 2)

	require.NoError(t, rec.Seek(90))
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, wfdb.Sample(1115), frame[0])

	require.NoError(t, rec.Seek(45))
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, wfdb.Sample(891), frame[1])

	// A seek past the end leaves the record where it was.
	require.ErrorIs(t, rec.Seek(21601), wfdb.ErrImproperSeek)
	assert.Equal(t, wfdb.Time(46), rec.Time())
	require.NoError(t, rec.ReadFrame(frame))
	want := make([]wfdb.Sample, 2)
	require.NoError(t, rec.Seek(46))
	require.NoError(t, rec.ReadFrame(want))
	assert.Equal(t, want, frame)

	require.NoError(t, rec.Seek(21600))
	require.ErrorIs(t, rec.ReadFrame(frame), io.EOF)
}

func TestRecordSeekDeterministic(t *testing.T) {
	read := func(rec *wfdb.Record, n int) [][]wfdb.Sample {
		var out [][]wfdb.Sample
		for i := 0; i < n; i++ {
			frame := make([]wfdb.Sample, 2)
			require.NoError(t, rec.ReadFrame(frame))
			out = append(out, frame)
		}
		return out
	}

	rec := openFixture(t)
	read(rec, 1000)
	sequential := read(rec, 50)

	require.NoError(t, rec.Seek(1000))
	assert.Equal(t, sequential, read(rec, 50))

	require.NoError(t, rec.Seek(3))
	require.NoError(t, rec.Seek(1000))
	assert.Equal(t, sequential, read(rec, 50))

	other := openFixture(t)
	require.NoError(t, other.Seek(1000))
	assert.Equal(t, sequential, read(other, 50))
}

func TestRecordSeekGroup(t *testing.T) {
	rec := openFixture(t)

	require.ErrorIs(t, rec.SeekGroup(1, 0), wfdb.ErrInvalidGroup)
	require.ErrorIs(t, rec.SeekGroup(-1, 0), wfdb.ErrInvalidGroup)

	require.NoError(t, rec.SeekGroup(0, 90))
	frame := make([]wfdb.Sample, 2)
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, wfdb.Sample(1115), frame[0])
}

func TestCursor(t *testing.T) {
	rec := openFixture(t)

	mlii, err := rec.Cursor(0)
	require.NoError(t, err)
	v5, err := rec.Cursor(1)
	require.NoError(t, err)
	assert.Equal(t, 1, v5.Signal())

	_, err = rec.Cursor(2)
	require.ErrorIs(t, err, wfdb.ErrOutOfRange)

	require.NoError(t, mlii.Seek(90))
	v, err := mlii.Next()
	require.NoError(t, err)
	assert.Equal(t, wfdb.Sample(1115), v)
	assert.Equal(t, wfdb.Time(91), mlii.Time())

	// The other cursor moves the shared group; each keeps its own place.
	require.NoError(t, v5.Seek(45))
	v, err = v5.Next()
	require.NoError(t, err)
	assert.Equal(t, wfdb.Sample(891), v)

	require.NoError(t, mlii.Seek(0))
	got, err := mlii.ReadN(3)
	require.NoError(t, err)
	assert.Equal(t, []wfdb.Sample{995, 997, 999}, got)

	// ReadFrame still reads from the record's own position.
	frame := make([]wfdb.Sample, 2)
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, []wfdb.Sample{995, 1011}, frame)

	v, err = v5.Next()
	require.NoError(t, err)
	assert.Equal(t, wfdb.Time(47), v5.Time())
	require.NoError(t, rec.Seek(46))
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, frame[1], v)
}

func TestCursorEnd(t *testing.T) {
	rec := openFixture(t)

	c, err := rec.Cursor(0)
	require.NoError(t, err)

	require.NoError(t, c.Seek(21598))
	assert.False(t, c.IsEOF())

	got, err := c.ReadN(5)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []wfdb.Sample{991, 993}, got)
	assert.True(t, c.IsEOF())

	_, err = c.Next()
	require.ErrorIs(t, err, io.EOF)

	require.ErrorIs(t, c.Seek(21601), wfdb.ErrImproperSeek)
	assert.Equal(t, wfdb.Time(21600), c.Time())
}

func TestCursorReadAll(t *testing.T) {
	rec := openFixture(t)

	c, err := rec.Cursor(1)
	require.NoError(t, err)
	all, err := c.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 21600)
	assert.Equal(t, wfdb.Sample(1011), all[0])
	assert.Equal(t, wfdb.Sample(891), all[45])
}

func TestCursorClosed(t *testing.T) {
	rec := wfdb.NewRecord("100s", wfdb.WithSearchPath(wfdb.SearchPath{"testdata"}))
	require.NoError(t, rec.Open())

	c, err := rec.Cursor(0)
	require.NoError(t, err)
	require.NoError(t, rec.Close())

	_, err = c.Next()
	require.ErrorIs(t, err, wfdb.ErrClosed)

	// Reopening does not revive cursors of the earlier session.
	require.NoError(t, rec.Open())
	t.Cleanup(func() { _ = rec.Close() })
	_, err = c.Next()
	require.ErrorIs(t, err, wfdb.ErrClosed)
	assert.True(t, c.IsEOF())
}

func TestRecordChecksumMismatch(t *testing.T) {
	dir := copyFixture(t)
	hdr, err := wfdb.ReadHeader("100s", wfdb.SearchPath{dir})
	require.NoError(t, err)
	hdr.Signals[1].CheckSum++
	require.NoError(t, wfdb.CreateHeader(dir, hdr))

	rec := wfdb.NewRecord("100s", wfdb.WithSearchPath(wfdb.SearchPath{dir}))
	require.NoError(t, rec.Open())
	t.Cleanup(func() { _ = rec.Close() })

	frame := make([]wfdb.Sample, 2)
	for i := 0; i < 21599; i++ {
		require.NoError(t, rec.ReadFrame(frame))
	}

	// The mismatch comes with the last frame.
	err = rec.ReadFrame(frame)
	require.ErrorIs(t, err, wfdb.ErrChecksumMismatch)
	var ce *wfdb.ChecksumError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Signal)
	assert.Equal(t, "V5", ce.Description)
	assert.Equal(t, int16(28832), ce.Got)
	assert.Equal(t, []wfdb.Sample{993, 1011}, frame)

	require.ErrorIs(t, rec.ReadFrame(frame), io.EOF)

	// Only a sequential pass from the start is verified.
	require.NoError(t, rec.Seek(100))
	for i := 100; i < 21600; i++ {
		require.NoError(t, rec.ReadFrame(frame))
	}
}

func TestRecordShortGroup(t *testing.T) {
	dir := t.TempDir()

	ew, err := wfdb.Create(dir, wfdb.Header{
		Record: "short",
		Signals: []wfdb.Signal{
			{FileName: "short_a.dat", Format: wfdb.Format16, Description: "A"},
			{FileName: "short_b.dat", Format: wfdb.Format16, Description: "B"},
		},
	})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		require.NoError(t, ew.WriteFrame([]wfdb.Sample{wfdb.Sample(i), wfdb.Sample(100 + i)}))
	}
	require.NoError(t, ew.Close())

	// Cut the second group off half way through frame 5.
	path := filepath.Join(dir, "short_b.dat")
	full, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, full[:11], 0o644))

	rec := wfdb.NewRecord("short", wfdb.WithSearchPath(wfdb.SearchPath{dir}))
	require.NoError(t, rec.Open())
	t.Cleanup(func() {
		require.NoError(t, rec.Close())
	})

	frame := make([]wfdb.Sample, 2)
	for i := 0; i < 5; i++ {
		require.NoError(t, rec.ReadFrame(frame))
	}
	require.ErrorIs(t, rec.ReadFrame(frame), wfdb.ErrPhysicalEOF)
	assert.Equal(t, wfdb.Time(5), rec.Time())

	// Once the data arrives both groups resume at frame 5.
	require.NoError(t, os.WriteFile(path, full, 0o644))
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, []wfdb.Sample{5, 105}, frame)
}

func TestRecordHighRes(t *testing.T) {
	dir := t.TempDir()
	w, err := wfdb.Create(dir, wfdb.Header{
		Record:    "hr",
		Frequency: 100,
		Signals: []wfdb.Signal{
			{FileName: "hr.dat", Format: wfdb.Format16, SamplesPerFrame: 2, Description: "fast"},
			{FileName: "hr.dat", Format: wfdb.Format16, Description: "slow"},
			{FileName: wfdb.NullFileName, Description: "absent"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, w.WriteFrameHighRes([]wfdb.Sample{1, 4, 10, 0}))
	require.NoError(t, w.WriteFrameHighRes([]wfdb.Sample{-1, -4, 11, 0}))
	require.NoError(t, w.WriteFrameHighRes([]wfdb.Sample{7, wfdb.InvalidSample, 12, 0}))
	require.NoError(t, w.Close())

	rec := wfdb.NewRecord("hr", wfdb.WithSearchPath(wfdb.SearchPath{dir}))
	require.NoError(t, rec.Open())
	t.Cleanup(func() { _ = rec.Close() })
	assert.Equal(t, 4, rec.FrameSize())
	assert.Equal(t, 2, rec.Groups())

	high := make([]wfdb.Sample, 4)
	require.NoError(t, rec.ReadFrameHighRes(high))
	assert.Equal(t, []wfdb.Sample{1, 4, 10, wfdb.InvalidSample}, high)

	// Sub-samples are averaged, truncating toward zero.
	frame := make([]wfdb.Sample, 3)
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, []wfdb.Sample{-2, 11, wfdb.InvalidSample}, frame)

	// One invalid sub-sample invalidates the average.
	require.NoError(t, rec.ReadFrame(frame))
	assert.Equal(t, []wfdb.Sample{wfdb.InvalidSample, 12, wfdb.InvalidSample}, frame)

	require.ErrorIs(t, rec.ReadFrame(frame), io.EOF)
	require.ErrorIs(t, rec.ReadFrameHighRes(make([]wfdb.Sample, 3)), wfdb.ErrOutOfRange)

	c, err := rec.Cursor(2)
	require.NoError(t, err)
	v, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, wfdb.InvalidSample, v)
}

func TestAnnotators(t *testing.T) {
	dir := copyFixture(t)
	rec := wfdb.NewRecord("100s",
		wfdb.WithSearchPath(wfdb.SearchPath{dir}),
		wfdb.WithOutputDir(dir))
	require.NoError(t, rec.Open())
	t.Cleanup(func() { _ = rec.Close() })

	atr, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "atr", Stat: wfdb.StatWrite})
	require.NoError(t, err)
	qrs, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "qrs", Stat: wfdb.StatWrite})
	require.NoError(t, err)
	assert.Equal(t, 0, atr.Number)
	assert.Equal(t, 1, qrs.Number)

	require.NoError(t, rec.WriteAnnotation(0, wfdb.Annotation{Time: 18, Type: wfdb.Normal}))
	require.NoError(t, rec.WriteAnnotation(0, wfdb.Annotation{Time: 370, Type: wfdb.PVC}))
	require.NoError(t, rec.WriteAnnotation(1, wfdb.Annotation{Time: 20, Type: wfdb.Normal}))
	require.ErrorIs(t, rec.WriteAnnotation(2, wfdb.Annotation{Time: 1, Type: wfdb.Normal}), wfdb.ErrIncorrectAnnotator)

	_, err = atr.IsEOF()
	require.ErrorIs(t, err, wfdb.ErrIllegalAccessMode)
	_, err = atr.Read()
	require.ErrorIs(t, err, wfdb.ErrIllegalAccessMode)

	_, err = rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "aha", Stat: wfdb.StatAHARead})
	require.ErrorIs(t, err, wfdb.ErrIllegalAccessMode)

	require.NoError(t, rec.CloseAnnotators())
	assert.Empty(t, rec.Annotators())

	// Numbering restarts once every annotator is closed.
	in, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "qrs", Stat: wfdb.StatRead})
	require.NoError(t, err)
	assert.Equal(t, 0, in.Number)
	in2, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "atr", Stat: wfdb.StatRead})
	require.NoError(t, err)
	assert.Equal(t, 1, in2.Number)

	found, err := rec.Annotator(1, wfdb.StatRead)
	require.NoError(t, err)
	assert.Same(t, in2, found)
	_, err = rec.Annotator(1, wfdb.StatWrite)
	require.ErrorIs(t, err, wfdb.ErrIncorrectAnnotator)

	a, err := rec.ReadAnnotation(1)
	require.NoError(t, err)
	assert.Equal(t, wfdb.Annotation{Time: 18, Type: wfdb.Normal, Annotator: 1}, a)

	eof, err := in2.IsEOF()
	require.NoError(t, err)
	assert.False(t, eof)

	rest, err := in2.ReadAll()
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, wfdb.PVC, rest[0].Type)

	require.NoError(t, in2.SeekTime(0))
	a, err = in2.Peek()
	require.NoError(t, err)
	assert.Equal(t, wfdb.Time(18), a.Time)

	require.ErrorIs(t, in.Write(wfdb.Annotation{Time: 1, Type: wfdb.Normal}), wfdb.ErrIllegalAccessMode)

	require.NoError(t, in.Close())
	_, err = in.Read()
	require.ErrorIs(t, err, wfdb.ErrInvalidOperation)
	assert.Len(t, rec.Annotators(), 1)

	_, err = rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "missing", Stat: wfdb.StatRead})
	require.ErrorIs(t, err, wfdb.ErrOpenInputAnnotation)
}

func TestAnnotatorFrequency(t *testing.T) {
	dir := copyFixture(t)
	rec := wfdb.NewRecord("100s",
		wfdb.WithSearchPath(wfdb.SearchPath{dir}),
		wfdb.WithOutputDir(dir),
		wfdb.WithAnnotationFrequency(1000))
	require.NoError(t, rec.Open())
	t.Cleanup(func() { _ = rec.Close() })

	out, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "hires", Stat: wfdb.StatWrite})
	require.NoError(t, err)
	require.NoError(t, out.Write(wfdb.Annotation{Time: 5000, Type: wfdb.Normal}))
	require.NoError(t, out.Close())

	in, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: "hires", Stat: wfdb.StatRead})
	require.NoError(t, err)
	assert.Equal(t, wfdb.Frequency(1000), in.Frequency())

	var got []wfdb.Annotation
	for a, err := range in.All() {
		require.NoError(t, err)
		got = append(got, a)
	}
	require.Len(t, got, 1)
	assert.Equal(t, wfdb.Time(5000), got[0].Time)
}
