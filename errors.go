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
)

var (
	ErrNoInputFile          = errors.New("wfdb: unable to read header file")
	ErrInvalidHeader        = errors.New("wfdb: incorrect header file format")
	ErrOpenInputAnnotation  = errors.New("wfdb: unable to open input annotation file")
	ErrOpenOutputAnnotation = errors.New("wfdb: unable to open output annotation file")
	ErrIllegalAccessMode    = errors.New("wfdb: illegal access mode for annotation file")
	ErrPhysicalEOF          = errors.New("wfdb: unexpected physical end of file")
	ErrChecksumMismatch     = errors.New("wfdb: checksum mismatch")
	ErrImproperSeek         = errors.New("wfdb: end of file reached or improper seek")
	ErrInvalidGroup         = errors.New("wfdb: incorrect signal group number")
	ErrOutOfRange           = errors.New("wfdb: argument out of range")
	ErrInvalidOperation     = errors.New("wfdb: invalid operation")
	ErrUnableToOpen         = errors.New("wfdb: unable to open file")
	ErrIncorrectAnnotator   = errors.New("wfdb: incorrect annotator number")
	ErrClosed               = errors.New("wfdb: record is not open")
)

// ErrEndOfData is returned when there is no more data to read. It is io.EOF so
// that readers compose with the standard library.
var ErrEndOfData = io.EOF

// HeaderError describes a malformed header line.
type HeaderError struct {
	Record string
	Line   int
	Reason string
}

func (e *HeaderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("wfdb: header %s line %d: %s", e.Record, e.Line, e.Reason)
	}
	return fmt.Sprintf("wfdb: header %s: %s", e.Record, e.Reason)
}

func (e *HeaderError) Unwrap() error { return ErrInvalidHeader }

// ChecksumError reports a signal whose decoded samples do not add up to the
// checksum declared in the header. The samples were still delivered.
type ChecksumError struct {
	Signal      int
	Description string
	Want        int16
	Got         int16
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("wfdb: checksum mismatch in signal %d (%s): header %d, data %d",
		e.Signal, e.Description, e.Want, e.Got)
}

func (e *ChecksumError) Unwrap() error { return ErrChecksumMismatch }
