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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// AnnotationWriter writes annotations in the MIT format.
type AnnotationWriter struct {
	w      io.Writer
	bw     *bufio.Writer
	time   Time
	num    int8
	chn    uint8
	count  int64
	closed bool
}

// NewAnnotationWriter returns a writer of annotations to w. A non-zero freq
// is recorded at the start of the file as the time resolution of the
// annotations.
func NewAnnotationWriter(w io.Writer, freq Frequency) (*AnnotationWriter, error) {
	aw := &AnnotationWriter{w: w, bw: bufio.NewWriter(w)}
	if freq > 0 {
		note := Annotation{Type: Note, Aux: []byte(timeResolutionPrefix + freq.String())}
		if err := aw.encode(note); err != nil {
			return nil, err
		}
	}
	return aw, nil
}

// Count returns the number of annotations written.
func (aw *AnnotationWriter) Count() int64 { return aw.count }

// Write appends a. Annotations are normally written in time order; earlier
// times are allowed but cost a long time difference.
func (aw *AnnotationWriter) Write(a Annotation) error {
	if aw.closed {
		return ErrClosed
	}
	if err := aw.encode(a); err != nil {
		return err
	}
	aw.count++
	return nil
}

func (aw *AnnotationWriter) encode(a Annotation) error {
	if !a.Type.Valid() {
		return fmt.Errorf("%w: annotation code %d", ErrOutOfRange, a.Type)
	}
	if len(a.Aux) > MaxAuxLength {
		return fmt.Errorf("%w: auxiliary data of %d bytes, at most %d allowed", ErrOutOfRange, len(a.Aux), MaxAuxLength)
	}

	at := a.Time.Abs()
	delta := int64(at - aw.time)
	skip := delta < 0 || delta > dataMask
	if skip && (delta < -1<<31 || delta > 1<<31-1) {
		return fmt.Errorf("%w: time difference %d does not fit", ErrOutOfRange, delta)
	}
	if a.Type == NotQRS && (skip || delta == 0) {
		// The word would read back as the end of file marker.
		return fmt.Errorf("%w: a NOTQRS annotation must follow the previous one within %d ticks", ErrInvalidOperation, dataMask)
	}

	if skip {
		if err := aw.putWord(word(codeSkip, 0)); err != nil {
			return err
		}
		// PDP-11 long: high 16-bit word first, each word little-endian.
		u := uint32(int32(delta))
		if err := aw.putWord(uint16(u >> 16)); err != nil {
			return err
		}
		if err := aw.putWord(uint16(u)); err != nil {
			return err
		}
		delta = 0
	}

	if err := aw.putWord(word(a.Type, int(delta))); err != nil {
		return err
	}
	aw.time = at

	if a.SubType != 0 {
		if err := aw.putWord(word(codeSub, int(uint8(a.SubType)))); err != nil {
			return err
		}
	}
	if a.Channel != aw.chn {
		if err := aw.putWord(word(codeChn, int(a.Channel))); err != nil {
			return err
		}
		aw.chn = a.Channel
	}
	if a.Num != aw.num {
		if err := aw.putWord(word(codeNum, int(uint8(a.Num)))); err != nil {
			return err
		}
		aw.num = a.Num
	}
	if len(a.Aux) > 0 {
		if err := aw.putWord(word(codeAux, len(a.Aux))); err != nil {
			return err
		}
		if _, err := aw.bw.Write(a.Aux); err != nil {
			return fmt.Errorf("error writing annotation: %w", err)
		}
		if len(a.Aux)%2 != 0 {
			if err := aw.bw.WriteByte(0); err != nil {
				return fmt.Errorf("error writing annotation: %w", err)
			}
		}
	}
	return nil
}

func (aw *AnnotationWriter) putWord(w uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], w)
	if _, err := aw.bw.Write(b[:]); err != nil {
		return fmt.Errorf("error writing annotation: %w", err)
	}
	return nil
}

// Flush writes buffered annotations to the underlying writer.
func (aw *AnnotationWriter) Flush() error {
	return aw.bw.Flush()
}

// Close writes the end of file marker and flushes. The underlying writer is
// closed if it is an io.Closer.
func (aw *AnnotationWriter) Close() error {
	if aw.closed {
		return nil
	}
	aw.closed = true

	var errs []error
	if err := aw.putWord(0); err != nil {
		errs = append(errs, err)
	}
	if err := aw.bw.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("error writing annotation: %w", err))
	}
	if c, ok := aw.w.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
