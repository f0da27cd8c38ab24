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
	"iter"
	"strconv"
	"strings"
)

// AnnotationReader reads annotations in the MIT format.
//
// It keeps a one-annotation look-ahead buffer, used by Peek, IsEOF and
// Unread, so the underlying stream is only ever read forward.
type AnnotationReader struct {
	r      io.Reader
	br     *bufio.Reader
	number int
	freq   Frequency

	time Time
	num  int8
	chn  uint8

	held    uint16 // Word read ahead while looking for modifiers
	hasHeld bool

	ahead    *Annotation
	aheadErr error
	count    int64 // Annotations delivered by Read
}

// NewAnnotationReader returns a reader of the annotations in r. If the file
// records its own time resolution, Frequency reports it; otherwise it is
// zero.
func NewAnnotationReader(r io.Reader) (*AnnotationReader, error) {
	ar := &AnnotationReader{r: r, br: bufio.NewReader(r)}
	if err := ar.prologue(); err != nil {
		return nil, err
	}
	return ar, nil
}

// prologue consumes the time resolution note a file may start with.
func (ar *AnnotationReader) prologue() error {
	a, err := ar.decode()
	if err != nil {
		if errors.Is(err, io.EOF) {
			ar.aheadErr = io.EOF
			return nil
		}
		return err
	}
	if a.Time == 0 && a.Type == Note && strings.HasPrefix(string(a.Aux), timeResolutionPrefix) {
		f, err := strconv.ParseFloat(strings.TrimSpace(string(a.Aux[len(timeResolutionPrefix):])), 64)
		if err == nil && f > 0 {
			ar.freq = Frequency(f)
			return nil
		}
	}
	ar.ahead = &a
	return nil
}

// Frequency returns the time resolution recorded in the file, or zero.
func (ar *AnnotationReader) Frequency() Frequency { return ar.freq }

// SetNumber sets the annotator number stamped on the annotations read.
func (ar *AnnotationReader) SetNumber(n int) { ar.number = n }

// Read returns the next annotation, or io.EOF after the last.
func (ar *AnnotationReader) Read() (Annotation, error) {
	a, err := ar.Peek()
	if err != nil {
		return a, err
	}
	ar.ahead = nil
	ar.count++
	return a, nil
}

// Peek returns the next annotation without consuming it.
func (ar *AnnotationReader) Peek() (Annotation, error) {
	if ar.ahead == nil {
		if ar.aheadErr != nil {
			return Annotation{}, ar.aheadErr
		}
		a, err := ar.decode()
		if err != nil {
			ar.aheadErr = err
			return Annotation{}, err
		}
		ar.ahead = &a
	}
	// Stamped on delivery: the prologue may decode before SetNumber.
	a := *ar.ahead
	a.Annotator = ar.number
	return a, nil
}

// Unread pushes a back so that it is returned by the next Read. Only one
// annotation can be pushed back, and only if nothing has been peeked since.
func (ar *AnnotationReader) Unread(a Annotation) error {
	if ar.ahead != nil {
		return fmt.Errorf("%w: an annotation is already waiting to be read", ErrInvalidOperation)
	}
	if ar.count > 0 {
		ar.count--
	}
	ar.ahead = &a
	return nil
}

// IsEOF reports whether the next Read would fail.
func (ar *AnnotationReader) IsEOF() bool {
	_, err := ar.Peek()
	return err != nil
}

// SeekTime positions the reader at the first annotation at or after t. The
// underlying reader must be an io.Seeker. If no such annotation exists the
// reader is left where it was and ErrImproperSeek is returned.
func (ar *AnnotationReader) SeekTime(t Time) error {
	if _, ok := ar.r.(io.Seeker); !ok {
		return fmt.Errorf("%w: annotation stream is not seekable", ErrInvalidOperation)
	}
	target := t.Abs()
	prev := ar.count

	if err := ar.rewind(); err != nil {
		return err
	}
	for {
		a, err := ar.Peek()
		if err != nil {
			if rerr := ar.restore(prev); rerr != nil {
				return errors.Join(err, rerr)
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("%w: no annotation at or after %d", ErrImproperSeek, target)
			}
			return err
		}
		if a.Time >= target {
			return nil
		}
		if _, err := ar.Read(); err != nil {
			return err
		}
	}
}

func (ar *AnnotationReader) rewind() error {
	if _, err := ar.r.(io.Seeker).Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}
	ar.br.Reset(ar.r)
	ar.time, ar.num, ar.chn = 0, 0, 0
	ar.hasHeld = false
	ar.ahead, ar.aheadErr = nil, nil
	ar.count = 0
	return ar.prologue()
}

// restore returns to the state after n annotations had been read.
func (ar *AnnotationReader) restore(n int64) error {
	if err := ar.rewind(); err != nil {
		return err
	}
	for ar.count < n {
		if _, err := ar.Read(); err != nil {
			return err
		}
	}
	return nil
}

// ReadN reads up to n annotations. Fewer are returned, along with io.EOF,
// when the file ends first.
func (ar *AnnotationReader) ReadN(n int) ([]Annotation, error) {
	var out []Annotation
	for len(out) < n {
		a, err := ar.Read()
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// ReadRange returns the annotations with from <= Time < to.
func (ar *AnnotationReader) ReadRange(from, to Time) ([]Annotation, error) {
	if err := ar.SeekTime(from); err != nil {
		if errors.Is(err, ErrImproperSeek) {
			return nil, nil
		}
		return nil, err
	}
	var out []Annotation
	for {
		a, err := ar.Peek()
		if errors.Is(err, io.EOF) || (err == nil && a.Time >= to.Abs()) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		_, _ = ar.Read()
		out = append(out, a)
	}
}

// ReadAll reads the remaining annotations.
func (ar *AnnotationReader) ReadAll() ([]Annotation, error) {
	var out []Annotation
	for a, err := range ar.All() {
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// All returns an iterator over the remaining annotations. It stops quietly at
// the end of the file, and yields any other error once before stopping.
func (ar *AnnotationReader) All() iter.Seq2[Annotation, error] {
	return func(yield func(Annotation, error) bool) {
		for {
			a, err := ar.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(a, err) || err != nil {
				return
			}
		}
	}
}

// Close closes the underlying reader if it is an io.Closer.
func (ar *AnnotationReader) Close() error {
	if c, ok := ar.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// decode reads one annotation from the stream.
func (ar *AnnotationReader) decode() (Annotation, error) {
	w, err := ar.nextWord()
	if err != nil {
		return Annotation{}, err
	}

	for {
		c, data := splitWord(w)
		switch {
		case w == 0:
			return Annotation{}, io.EOF
		case c == codeSkip:
			hi, err := ar.readWord()
			if err != nil {
				return Annotation{}, ar.physical(err)
			}
			lo, err := ar.readWord()
			if err != nil {
				return Annotation{}, ar.physical(err)
			}
			ar.time += Time(int32(uint32(hi)<<16 | uint32(lo)))
		case c > MaxCode:
			// Modifiers without an annotation to apply to.
			if c == codeAux {
				if _, err := ar.readAux(data); err != nil {
					return Annotation{}, err
				}
			} else {
				ar.applyPersistent(c, data)
			}
		default:
			ar.time += Time(data)
			return ar.modifiers(Annotation{Time: ar.time, Type: c})
		}

		if w, err = ar.readWord(); err != nil {
			return Annotation{}, ar.physical(err)
		}
	}
}

// modifiers reads the pseudo words that follow an annotation word.
func (ar *AnnotationReader) modifiers(a Annotation) (Annotation, error) {
	for {
		w, err := ar.readWord()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return a, ar.physical(err)
		}

		c, data := splitWord(w)
		switch c {
		case codeSub:
			a.SubType = int8(data)
			continue
		case codeChn, codeNum:
			ar.applyPersistent(c, data)
			continue
		case codeAux:
			aux, err := ar.readAux(data)
			if err != nil {
				return a, err
			}
			a.Aux = aux
			continue
		}

		ar.held, ar.hasHeld = w, true
		break
	}

	a.Channel = ar.chn
	a.Num = ar.num
	return a, nil
}

func (ar *AnnotationReader) applyPersistent(c Code, data int) {
	switch c {
	case codeChn:
		ar.chn = uint8(data)
	case codeNum:
		ar.num = int8(data)
	}
}

func (ar *AnnotationReader) readAux(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n+n%2)
	if _, err := io.ReadFull(ar.br, buf); err != nil {
		return nil, ar.physical(err)
	}
	return buf[:n], nil
}

func (ar *AnnotationReader) nextWord() (uint16, error) {
	if ar.hasHeld {
		ar.hasHeld = false
		return ar.held, nil
	}
	return ar.readWord()
}

func (ar *AnnotationReader) readWord() (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(ar.br, b[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return 0, ErrPhysicalEOF
		}
		if errors.Is(err, io.EOF) {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("error reading annotation: %w", err)
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// physical turns an end of file inside an annotation into ErrPhysicalEOF.
func (ar *AnnotationReader) physical(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrPhysicalEOF
	}
	return err
}
