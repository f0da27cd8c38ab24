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
	"errors"
	"fmt"
	"io"
	"iter"
)

// SignalCursor reads one signal of an open record, one sample per frame.
//
// Signals of a group share a single position in the data file. A cursor
// keeps its own logical position and moves the group there before reading
// whenever something else (ReadFrame, another cursor) has moved it. Cursors
// must not be used from more than one goroutine.
type SignalCursor struct {
	r     *Record
	gen   int
	sig   int
	group int
	index int
	pos   int64
}

// Cursor returns a cursor over signal i positioned at frame 0.
func (r *Record) Cursor(i int) (*SignalCursor, error) {
	if r.state != stateOpen {
		return nil, ErrClosed
	}
	if i < 0 || i >= len(r.hdr.Signals) {
		return nil, fmt.Errorf("%w: signal %d of %d", ErrOutOfRange, i, len(r.hdr.Signals))
	}
	return &SignalCursor{
		r:     r,
		gen:   r.gen,
		sig:   i,
		group: r.sigGroup[i],
		index: r.sigIndex[i],
	}, nil
}

func (c *SignalCursor) groupReader() (*groupReader, error) {
	if c.r.state != stateOpen || c.r.gen != c.gen {
		return nil, ErrClosed
	}
	return c.r.groups[c.group], nil
}

// Signal returns the signal number the cursor reads.
func (c *SignalCursor) Signal() int { return c.sig }

// Time returns the frame the next Next call reads.
func (c *SignalCursor) Time() Time { return Time(c.pos) }

// Seek moves the cursor to frame t. A failed seek leaves the cursor where it
// was.
func (c *SignalCursor) Seek(t Time) error {
	g, err := c.groupReader()
	if err != nil {
		return err
	}
	target := int64(t.Abs())
	if err := g.seek(target); err != nil {
		return err
	}
	c.pos = target
	return nil
}

// Next reads the sample at the cursor and advances it. Oversampled signals
// are averaged over the frame. A checksum mismatch detected by the read is
// returned along with the sample.
func (c *SignalCursor) Next() (Sample, error) {
	g, err := c.groupReader()
	if err != nil {
		return 0, err
	}
	if g.null() && g.nframes == 0 {
		return 0, io.EOF
	}
	if g.pos != c.pos {
		if err := g.seek(c.pos); err != nil {
			return 0, err
		}
	}

	err = g.readFrame()
	if err != nil && !isChecksum(err) {
		return 0, err
	}
	c.pos++
	return average(g.sample(c.index)), err
}

// Read fills dst with consecutive samples. It returns the number read and
// io.EOF once the signal ends.
func (c *SignalCursor) Read(dst []Sample) (int, error) {
	var errs []error
	n := 0
	for n < len(dst) {
		v, err := c.Next()
		if err != nil && !isChecksum(err) {
			if len(errs) == 0 {
				return n, err
			}
			return n, errors.Join(append(errs, err)...)
		}
		if err != nil {
			errs = append(errs, err)
		}
		dst[n] = v
		n++
	}
	return n, errors.Join(errs...)
}

// ReadN reads up to n samples. Fewer are returned, with io.EOF, when the
// signal ends first.
func (c *SignalCursor) ReadN(n int) ([]Sample, error) {
	dst := make([]Sample, n)
	got, err := c.Read(dst)
	return dst[:got], err
}

// ReadAll reads the remaining samples. Reaching the end is not an error.
func (c *SignalCursor) ReadAll() ([]Sample, error) {
	var out []Sample
	var errs []error
	for v, err := range c.Samples() {
		if err != nil && !isChecksum(err) {
			return out, err
		}
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, v)
	}
	return out, errors.Join(errs...)
}

// IsEOF reports whether the cursor is past the last sample.
func (c *SignalCursor) IsEOF() bool {
	g, err := c.groupReader()
	if err != nil {
		return true
	}
	if g.nframes > 0 {
		return c.pos >= g.nframes
	}

	// Unknown length: try a read, then step back.
	pos := c.pos
	_, err = c.Next()
	if err != nil && !isChecksum(err) {
		return true
	}
	c.pos = pos
	return false
}

// Samples returns an iterator over the remaining samples. It stops quietly
// at the end of the signal.
func (c *SignalCursor) Samples() iter.Seq2[Sample, error] {
	return func(yield func(Sample, error) bool) {
		for {
			v, err := c.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil && !isChecksum(err) {
				yield(0, err)
				return
			}
			if !yield(v, err) {
				return
			}
		}
	}
}
