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
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Writer writes a new record: one data file per signal group, and the
// header once the record is complete.
type Writer struct {
	dir    string
	hdr    *Header
	groups []*groupWriter
	order  [][]int // Record signal numbers of each group
	frames int64
	closed bool
	logger zerolog.Logger
}

type groupWriter struct {
	f   *os.File
	bw  *bufio.Writer
	enc *FrameEncoder
	buf []Sample
}

// Create starts a new record described by hdr in dir. The signals' file
// names decide the groups: signals naming the same file are multiplexed into
// it. Sample counts, checksums and initial values are filled in by Close.
func Create(dir string, hdr Header, opts ...Option) (*Writer, error) {
	o := applyOptions(append(opts, WithOutputDir(dir)))

	if hdr.Record == "" {
		return nil, fmt.Errorf("%w: missing record name", ErrOutOfRange)
	}
	if len(hdr.Signals) == 0 {
		return nil, fmt.Errorf("%w: record has no signals", ErrOutOfRange)
	}
	if hdr.Frequency == 0 {
		hdr.Frequency = DefaultFrequency
	}
	hdr.NumberOfSamples = 0
	hdr.Signals = append([]Signal(nil), hdr.Signals...)
	hdr.Info = append([]string(nil), hdr.Info...)

	ew := &Writer{dir: o.outputDir, hdr: &hdr, logger: o.logger}

	groupOf := map[string]int{}
	for i := range hdr.Signals {
		sig := &hdr.Signals[i]
		if sig.SamplesPerFrame == 0 {
			sig.SamplesPerFrame = 1
		}
		if sig.FileName == NullFileName {
			sig.Format = FormatNull
		}
		sig.Gain = sig.Gain.OrDefault()
		if sig.Units == "" {
			sig.Units = DefaultUnits
		}
		if sig.ADCResolution == 0 {
			sig.ADCResolution = sig.Format.DefaultADCResolution()
		}
		if err := sig.Validate(); err != nil {
			return nil, fmt.Errorf("error validating signal %d: %w", i, err)
		}

		g, ok := groupOf[sig.FileName]
		if !ok {
			g = len(ew.order)
			groupOf[sig.FileName] = g
			ew.order = append(ew.order, nil)
		} else if first := hdr.Signals[ew.order[g][0]]; first.Format != sig.Format {
			return nil, &HeaderError{Record: hdr.Record,
				Reason: fmt.Sprintf("signal %d uses format %d but its group uses format %d", i, sig.Format, first.Format)}
		}
		sig.Group = g
		ew.order[g] = append(ew.order[g], i)
	}

	for _, signals := range ew.order {
		gw, err := ew.openGroup(signals)
		if err != nil {
			_ = ew.closeFiles()
			return nil, err
		}
		ew.groups = append(ew.groups, gw)
	}

	ew.logger.Debug().Str("record", hdr.Record).Int("signals", len(hdr.Signals)).
		Int("groups", len(ew.groups)).Msg("Created record")

	return ew, nil
}

func (ew *Writer) openGroup(signals []int) (*groupWriter, error) {
	first := ew.hdr.Signals[signals[0]]

	spf := make([]int, len(signals))
	frameLen := 0
	for i, s := range signals {
		spf[i] = ew.hdr.Signals[s].SamplesPerFrame
		frameLen += spf[i]
	}
	gw := &groupWriter{buf: make([]Sample, frameLen)}
	if first.Format == FormatNull {
		return gw, nil
	}

	name := filepath.Join(ew.dir, first.FileName)
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnableToOpen, name, err)
	}
	gw.f = f
	gw.bw = bufio.NewWriter(f)

	// Leave room for whatever prolog the byte offset reserves.
	for n := first.ByteOffset; n > 0; n-- {
		if err := gw.bw.WriteByte(0); err != nil {
			return nil, fmt.Errorf("error writing sample data: %w", err)
		}
	}

	gw.enc = NewFrameEncoder(gw.bw, first.Format, spf, nil)
	return gw, nil
}

// Header returns the header as it stands. After Close it matches the header
// written to disk.
func (ew *Writer) Header() *Header {
	return ew.hdr
}

// WriteFrame writes one sample per signal, in signal order. Oversampled
// signals repeat the sample to fill their frame.
func (ew *Writer) WriteFrame(frame []Sample) error {
	if len(frame) != len(ew.hdr.Signals) {
		return fmt.Errorf("%w: expected %d signals, got %d", ErrOutOfRange, len(ew.hdr.Signals), len(frame))
	}

	high := make([]Sample, 0, len(frame))
	for i, v := range frame {
		for k := 0; k < ew.hdr.Signals[i].SamplesPerFrame; k++ {
			high = append(high, v)
		}
	}
	return ew.WriteFrameHighRes(high)
}

// WriteFrameHighRes writes every sub-sample of one frame, signal by signal
// in signal order.
func (ew *Writer) WriteFrameHighRes(frame []Sample) error {
	if ew.closed {
		return ErrClosed
	}

	// Index of each signal's first sub-sample in frame.
	offsets := make([]int, len(ew.hdr.Signals))
	n := 0
	for i := range ew.hdr.Signals {
		offsets[i] = n
		n += ew.hdr.Signals[i].SamplesPerFrame
	}
	if len(frame) != n {
		return fmt.Errorf("%w: expected %d samples per frame, got %d", ErrOutOfRange, n, len(frame))
	}

	for g, gw := range ew.groups {
		if gw.enc == nil {
			continue
		}
		k := 0
		for _, s := range ew.order[g] {
			spf := ew.hdr.Signals[s].SamplesPerFrame
			copy(gw.buf[k:k+spf], frame[offsets[s]:offsets[s]+spf])
			k += spf
		}
		if err := gw.enc.Encode(gw.buf); err != nil {
			return fmt.Errorf("error writing frame %d: %w", ew.frames, err)
		}
	}

	ew.frames++
	return nil
}

// Close finishes the data files and writes the header.
func (ew *Writer) Close() error {
	if ew.closed {
		return nil
	}
	ew.closed = true

	var errs []error
	for g, gw := range ew.groups {
		if gw.enc == nil {
			// Null signals carry a zero checksum so their descriptions fit.
			for _, s := range ew.order[g] {
				ew.hdr.Signals[s].CheckSum, ew.hdr.Signals[s].HasChecksum = 0, true
			}
			continue
		}
		if err := gw.enc.Flush(); err != nil {
			errs = append(errs, err)
			continue
		}

		sums := gw.enc.Checksums()
		init := gw.enc.InitValues()
		for i, s := range ew.order[g] {
			sig := &ew.hdr.Signals[s]
			sig.CheckSum = sums[i]
			sig.HasChecksum = true
			if ew.frames > 0 {
				sig.InitValue = init[i]
			}
		}
	}
	if err := ew.closeFiles(); err != nil {
		errs = append(errs, err)
	}

	ew.hdr.NumberOfSamples = ew.frames
	for i := range ew.hdr.Signals {
		ew.hdr.Signals[i].NumberOfSamples = ew.frames
	}
	if err := CreateHeader(ew.dir, ew.hdr); err != nil {
		errs = append(errs, fmt.Errorf("error writing header: %w", err))
	}

	ew.logger.Debug().Str("record", ew.hdr.Record).Int64("frames", ew.frames).Msg("Closed record")

	return errors.Join(errs...)
}

func (ew *Writer) closeFiles() error {
	var errs []error
	for _, gw := range ew.groups {
		if gw.f == nil {
			continue
		}
		if err := gw.bw.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("error writing sample data: %w", err))
		}
		if err := gw.f.Close(); err != nil {
			errs = append(errs, err)
		}
		gw.f = nil
	}
	return errors.Join(errs...)
}
