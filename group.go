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
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// groupReader reads the frames of one signal group from its data file and
// tracks the group's position. All signals of the group share it.
type groupReader struct {
	f       *os.File // nil for a null group
	br      *bufio.Reader
	dec     *FrameDecoder
	format  Format
	offset  int64
	size    int64 // Data file size, for seek validation
	nframes int64 // Frame count from the header, 0 if unknown

	signals []int // Record signal numbers, in frame order
	spf     []int
	start   []int // Offset of each signal's first sub-sample in a frame
	frame   []Sample

	pos    int64 // Index of the next frame
	verify bool  // Read sequentially from frame 0 so far
	want   []int16
	descs  []string
}

func newGroupReader(f *os.File, hdr *Header, signals []int) (*groupReader, error) {
	first := hdr.Signals[signals[0]]
	g := &groupReader{
		f:       f,
		format:  first.Format,
		offset:  first.ByteOffset,
		nframes: hdr.NumberOfSamples,
		signals: signals,
		verify:  true,
	}

	init := make([]Sample, len(signals))
	frameLen := 0
	for i, s := range signals {
		sig := hdr.Signals[s]
		g.spf = append(g.spf, sig.SamplesPerFrame)
		g.start = append(g.start, frameLen)
		frameLen += sig.SamplesPerFrame
		init[i] = sig.InitValue
		g.descs = append(g.descs, sig.Description)
		if sig.HasChecksum {
			g.want = append(g.want, sig.CheckSum)
		}
	}
	if len(g.want) != len(signals) {
		g.want = nil
	}
	g.frame = make([]Sample, frameLen)

	var r io.Reader = eofReader{}
	if f != nil {
		fi, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("error reading data file size: %w", err)
		}
		g.size = fi.Size()
		if _, err := f.Seek(g.offset, io.SeekStart); err != nil {
			return nil, fmt.Errorf("error seeking to position: %w", err)
		}
		g.br = bufio.NewReader(f)
		r = g.br
	}
	g.dec = NewFrameDecoder(r, g.format, g.spf, init)

	return g, nil
}

func (g *groupReader) close() error {
	if g.f == nil {
		return nil
	}
	err := g.f.Close()
	g.f = nil
	return err
}

// null reports whether the group has no data file.
func (g *groupReader) null() bool { return g.format == FormatNull }

// readFrame decodes the next frame into g.frame. When the read completes a
// sequential pass over a group whose checksums are known, a mismatch is
// reported alongside the decoded frame.
func (g *groupReader) readFrame() error {
	if g.nframes > 0 && g.pos >= g.nframes {
		return io.EOF
	}
	if g.null() {
		for i := range g.frame {
			g.frame[i] = InvalidSample
		}
		g.pos++
		return nil
	}

	if err := g.dec.Decode(g.frame); err != nil {
		return err
	}
	g.pos++

	if g.verify && g.want != nil && g.pos == g.nframes {
		return g.checksumError()
	}
	return nil
}

func (g *groupReader) checksumError() error {
	var errs []error
	for i, got := range g.dec.Checksums() {
		if got != g.want[i] {
			errs = append(errs, &ChecksumError{
				Signal:      g.signals[i],
				Description: g.descs[i],
				Want:        g.want[i],
				Got:         got,
			})
		}
	}
	return errors.Join(errs...)
}

// sample returns signal i's sub-samples of the last frame read.
func (g *groupReader) sample(i int) []Sample {
	return g.frame[g.start[i] : g.start[i]+g.spf[i]]
}

// seek positions the group so that the next frame read is frame t. It checks
// t before touching any state, and restores the previous position if
// repositioning fails part way.
func (g *groupReader) seek(t int64) error {
	if t < 0 {
		return fmt.Errorf("%w: negative frame %d", ErrOutOfRange, t)
	}
	if g.nframes > 0 && t > g.nframes {
		return fmt.Errorf("%w: frame %d is past the end of the record", ErrImproperSeek, t)
	}
	if t == g.pos {
		return nil
	}
	if g.null() {
		g.pos = t
		g.verify = t == 0
		return nil
	}

	byteOff, _ := g.locate(t)
	if g.format != Format8 && byteOff > g.size {
		return fmt.Errorf("%w: frame %d is past the end of the data file", ErrImproperSeek, t)
	}

	prev := g.pos
	if err := g.reposition(t); err != nil {
		if prev != t {
			_ = g.reposition(prev)
		}
		return err
	}
	return nil
}

// locate returns the byte offset of the packing unit holding the first sample
// of frame t, and how many samples of that unit precede it.
func (g *groupReader) locate(t int64) (int64, int) {
	samples, size := g.format.unit()
	n := t * int64(len(g.frame))
	return g.offset + n/int64(samples)*int64(size), int(n % int64(samples))
}

func (g *groupReader) reposition(t int64) error {
	start := t
	if g.format == Format8 {
		// Differences depend on every earlier sample, so replay from the start.
		start = 0
	}

	byteOff, skip := g.locate(start)
	if _, err := g.f.Seek(byteOff, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}
	g.br.Reset(g.f)
	g.dec.Reset(g.br)
	if err := g.dec.skip(skip); err != nil {
		return fmt.Errorf("%w: %w", ErrImproperSeek, err)
	}

	for i := start; i < t; i++ {
		if err := g.dec.Decode(g.frame); err != nil {
			return fmt.Errorf("%w: %w", ErrImproperSeek, err)
		}
	}

	g.pos = t
	g.verify = t == 0
	return nil
}

// eofReader backs the decoder of a group without a data file.
type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }
