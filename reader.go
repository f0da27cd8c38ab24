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
	"io"
	"math"
)

// SignalReader reads continuous signal data in physical units.
type SignalReader struct {
	c   *SignalCursor
	sig Signal
	buf []Sample
}

// SignalReader creates a new SignalReader for signal i, positioned at
// frame 0.
func (r *Record) SignalReader(i int) (*SignalReader, error) {
	c, err := r.Cursor(i)
	if err != nil {
		return nil, err
	}
	return &SignalReader{c: c, sig: r.hdr.Signals[i]}, nil
}

// Signal returns the description of the signal being read.
func (sr *SignalReader) Signal() Signal { return sr.sig }

// Seek moves the reader to frame t.
func (sr *SignalReader) Seek(t Time) error { return sr.c.Seek(t) }

// Read fills data with physical values. Invalid samples read as NaN. It
// returns io.EOF once the signal ends.
func (sr *SignalReader) Read(data []float64) (int, error) {
	if cap(sr.buf) < len(data) {
		sr.buf = make([]Sample, len(data))
	}
	buf := sr.buf[:len(data)]

	n, err := sr.c.Read(buf)
	for i, v := range buf[:n] {
		data[i] = sr.sig.ToPhys(v)
	}
	if n > 0 && errors.Is(err, io.EOF) && !isChecksum(err) {
		// Report the end on the next call, as io.Reader does.
		return n, nil
	}
	return n, err
}

// ReadMicrovolts is like Read but converts to microvolts, whatever units
// the signal is recorded in. Invalid samples read as NaN.
func (sr *SignalReader) ReadMicrovolts(data []float64) (int, error) {
	n, err := sr.Read(data)
	for i := range data[:n] {
		if math.IsNaN(data[i]) {
			continue
		}
		data[i] *= sr.sig.microvoltScale()
	}
	return n, err
}
