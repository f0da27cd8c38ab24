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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// FrameDecoder decodes the multiplexed frames of one signal group.
//
// A frame holds spf[i] consecutive samples of each signal i of the group, in
// signal order. Packed formats (212, 310, 311) pack the whole sample stream,
// so a packing unit may straddle two frames.
type FrameDecoder struct {
	r        io.Reader
	format   Format
	spf      []int
	frameLen int
	init     []Sample
	prev     []Sample // Last value of each signal, for format 8
	sums     []int16

	buf     [4]byte
	pending [3]Sample
	npend   int
	ipend   int
}

// NewFrameDecoder returns a decoder reading frames of the given format from r.
// spf holds the samples per frame of each signal in the group and init the
// value preceding each signal's first sample (used by format 8 only); a nil
// init means zero.
func NewFrameDecoder(r io.Reader, format Format, spf []int, init []Sample) *FrameDecoder {
	d := &FrameDecoder{
		format: format,
		spf:    append([]int(nil), spf...),
		init:   make([]Sample, len(spf)),
		prev:   make([]Sample, len(spf)),
		sums:   make([]int16, len(spf)),
	}
	copy(d.init, init)
	for _, n := range spf {
		d.frameLen += n
	}
	d.Reset(r)
	return d
}

// FrameLen returns the number of samples in one frame.
func (d *FrameDecoder) FrameLen() int { return d.frameLen }

// Checksums returns the running 16-bit sum of the samples of each signal
// decoded since the last Reset.
func (d *FrameDecoder) Checksums() []int16 {
	return append([]int16(nil), d.sums...)
}

// Reset discards all decoding state and continues from the start of r.
func (d *FrameDecoder) Reset(r io.Reader) {
	d.r = r
	copy(d.prev, d.init)
	for i := range d.sums {
		d.sums[i] = 0
	}
	d.npend, d.ipend = 0, 0
}

// Decode reads the next frame into dst, which must hold FrameLen samples. It
// returns io.EOF if the data ends cleanly before the frame and ErrPhysicalEOF
// if it ends inside it.
func (d *FrameDecoder) Decode(dst []Sample) error {
	if len(dst) < d.frameLen {
		return fmt.Errorf("%w: frame buffer holds %d samples, need %d", ErrOutOfRange, len(dst), d.frameLen)
	}

	n := 0
	for i, spf := range d.spf {
		for k := 0; k < spf; k++ {
			v, err := d.next()
			if err != nil {
				if errors.Is(err, io.EOF) && n == 0 {
					return io.EOF
				}
				if errors.Is(err, io.EOF) {
					return ErrPhysicalEOF
				}
				return err
			}
			if d.format == Format8 {
				d.prev[i] += v
				v = d.prev[i]
			}
			d.sums[i] += int16(v)
			dst[n] = v
			n++
		}
	}
	return nil
}

// skip discards n samples of the stream without decoding them into a frame.
// It is used to realign packed formats after a byte-level seek.
func (d *FrameDecoder) skip(n int) error {
	for ; n > 0; n-- {
		if _, err := d.next(); err != nil {
			if errors.Is(err, io.EOF) {
				return ErrPhysicalEOF
			}
			return err
		}
	}
	return nil
}

// next returns the next raw sample of the stream. For format 8 this is the
// difference from the previous sample.
func (d *FrameDecoder) next() (Sample, error) {
	if d.format == FormatNull {
		return InvalidSample, nil
	}
	if d.ipend < d.npend {
		v := d.pending[d.ipend]
		d.ipend++
		return v, nil
	}

	samples, size := d.format.unit()
	if _, err := io.ReadFull(d.r, d.buf[:size]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrPhysicalEOF
		}
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("error reading sample data: %w", err)
	}
	decodeUnit(d.format, d.buf[:size], d.pending[:samples])
	d.npend, d.ipend = samples, 1
	return d.pending[0], nil
}

// decodeUnit unpacks one packing unit of b into dst.
func decodeUnit(f Format, b []byte, dst []Sample) {
	switch f {
	case Format8:
		dst[0] = Sample(int8(b[0]))
	case Format16:
		dst[0] = Sample(int16(binary.LittleEndian.Uint16(b)))
	case Format61:
		dst[0] = Sample(int16(binary.BigEndian.Uint16(b)))
	case Format80:
		dst[0] = sentinel(int(b[0])-128, -128)
	case Format160:
		dst[0] = Sample(int(binary.LittleEndian.Uint16(b)) - 32768)
	case Format212:
		// The middle byte carries the high nibbles: low nibble for the
		// first sample, high nibble for the second.
		s0 := int(b[0]) | int(b[1]&0x0f)<<8
		s1 := int(b[2]) | int(b[1]&0xf0)<<4
		dst[0] = sentinel(signExtend(s0, 12), -2048)
		dst[1] = sentinel(signExtend(s1, 12), -2048)
	case Format310:
		x := int(binary.LittleEndian.Uint16(b[0:2]))
		y := int(binary.LittleEndian.Uint16(b[2:4]))
		dst[0] = sentinel(signExtend(x>>1&0x3ff, 10), -512)
		dst[1] = sentinel(signExtend(y>>1&0x3ff, 10), -512)
		dst[2] = sentinel(signExtend(x>>11&0x1f|y>>6&0x3e0, 10), -512)
	case Format311:
		w := int(binary.LittleEndian.Uint32(b))
		dst[0] = sentinel(signExtend(w&0x3ff, 10), -512)
		dst[1] = sentinel(signExtend(w>>10&0x3ff, 10), -512)
		dst[2] = sentinel(signExtend(w>>20&0x3ff, 10), -512)
	}
}

// sentinel maps a format's reserved minimum value to InvalidSample.
func sentinel(v, invalid int) Sample {
	if v == invalid {
		return InvalidSample
	}
	return Sample(v)
}

// FrameEncoder encodes multiplexed frames of one signal group.
type FrameEncoder struct {
	w        io.Writer
	format   Format
	spf      []int
	frameLen int
	init     []Sample
	prev     []Sample
	seeded   []bool
	first    []Sample
	sums     []int16
	frames   int64

	buf     [4]byte
	pending [3]int
	npend   int
}

// NewFrameEncoder returns an encoder writing frames of the given format to w.
// For format 8, init holds the value preceding each signal's first sample; a
// nil init seeds each signal with its own first sample.
func NewFrameEncoder(w io.Writer, format Format, spf []int, init []Sample) *FrameEncoder {
	e := &FrameEncoder{
		w:      w,
		format: format,
		spf:    append([]int(nil), spf...),
		prev:   make([]Sample, len(spf)),
		seeded: make([]bool, len(spf)),
		first:  make([]Sample, len(spf)),
		sums:   make([]int16, len(spf)),
	}
	if init != nil {
		e.init = make([]Sample, len(spf))
		copy(e.init, init)
		copy(e.prev, init)
		for i := range e.seeded {
			e.seeded[i] = true
		}
	}
	for _, n := range spf {
		e.frameLen += n
	}
	return e
}

// FrameLen returns the number of samples in one frame.
func (e *FrameEncoder) FrameLen() int { return e.frameLen }

// Frames returns the number of frames encoded so far.
func (e *FrameEncoder) Frames() int64 { return e.frames }

// Checksums returns the 16-bit sum of the samples of each signal as a decoder
// will see them, after clamping to the format's range.
func (e *FrameEncoder) Checksums() []int16 {
	return append([]int16(nil), e.sums...)
}

// FirstSamples returns the first value of each signal as stored.
func (e *FrameEncoder) FirstSamples() []Sample {
	return append([]Sample(nil), e.first...)
}

// InitValues returns the value each signal's differences are relative to.
// It only differs from FirstSamples for format 8.
func (e *FrameEncoder) InitValues() []Sample {
	if e.format == Format8 && e.init != nil {
		return append([]Sample(nil), e.init...)
	}
	return e.FirstSamples()
}

// Encode writes one frame of FrameLen samples.
func (e *FrameEncoder) Encode(frame []Sample) error {
	if len(frame) != e.frameLen {
		return fmt.Errorf("%w: expected %d samples per frame, got %d", ErrOutOfRange, e.frameLen, len(frame))
	}

	n := 0
	for i, spf := range e.spf {
		for k := 0; k < spf; k++ {
			stored, err := e.put(i, frame[n])
			if err != nil {
				return err
			}
			if e.frames == 0 && k == 0 {
				e.first[i] = stored
			}
			e.sums[i] += int16(stored)
			n++
		}
	}
	e.frames++
	return nil
}

// put encodes v for signal i and returns the value a decoder will read back.
func (e *FrameEncoder) put(i int, v Sample) (Sample, error) {
	lo, hi := e.format.bounds()
	var raw int
	var stored Sample

	switch e.format {
	case FormatNull:
		return InvalidSample, nil
	case Format8:
		if !e.seeded[i] {
			e.prev[i] = v
			e.seeded[i] = true
		}
		if v == InvalidSample {
			v = e.prev[i]
		}
		raw = clamp(int(v-e.prev[i]), lo, hi)
		e.prev[i] += Sample(raw)
		stored = e.prev[i]
	default:
		if v == InvalidSample {
			raw = lo - 1
			stored = InvalidSample
		} else {
			raw = clamp(int(v), lo, hi)
			stored = Sample(raw)
		}
	}

	e.pending[e.npend] = raw
	e.npend++
	if samples, _ := e.format.unit(); e.npend == samples {
		if err := e.emit(); err != nil {
			return 0, err
		}
	}
	return stored, nil
}

// Flush writes out a partially filled packing unit, padding it with zeros.
func (e *FrameEncoder) Flush() error {
	if e.npend == 0 {
		return nil
	}
	samples, _ := e.format.unit()
	for e.npend < samples {
		e.pending[e.npend] = 0
		e.npend++
	}
	return e.emit()
}

func (e *FrameEncoder) emit() error {
	_, size := e.format.unit()
	b := e.buf[:size]
	p := e.pending

	switch e.format {
	case Format8:
		b[0] = byte(int8(p[0]))
	case Format16:
		binary.LittleEndian.PutUint16(b, uint16(int16(p[0])))
	case Format61:
		binary.BigEndian.PutUint16(b, uint16(int16(p[0])))
	case Format80:
		b[0] = byte(p[0] + 128)
	case Format160:
		binary.LittleEndian.PutUint16(b, uint16(p[0]+32768))
	case Format212:
		b[0] = byte(p[0])
		b[1] = byte(p[0]>>8&0x0f) | byte(p[1]>>4&0xf0)
		b[2] = byte(p[1])
	case Format310:
		binary.LittleEndian.PutUint16(b[0:2], uint16((p[2]&0x1f)<<11|(p[0]&0x3ff)<<1))
		binary.LittleEndian.PutUint16(b[2:4], uint16((p[2]&0x3e0)<<6|(p[1]&0x3ff)<<1))
	case Format311:
		binary.LittleEndian.PutUint32(b, uint32(p[0]&0x3ff|(p[1]&0x3ff)<<10|(p[2]&0x3ff)<<20))
	}

	e.npend = 0
	if _, err := e.w.Write(b); err != nil {
		return fmt.Errorf("error writing sample data: %w", err)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
