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
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CalibrationEnv names the environment variable holding the default
// calibration file.
const CalibrationEnv = "WFDBCAL"

// CalType describes a calibration pulse: its coupling in bit 0, its shape
// in the bits above.
type CalType int

const (
	CalAC       CalType = 0
	CalDC       CalType = 1
	CalSquare   CalType = 2
	CalSine     CalType = 4
	CalSawtooth CalType = 6
	CalUndef    CalType = 8
)

// Coupling returns CalAC or CalDC.
func (t CalType) Coupling() CalType { return t & CalDC }

// Shape returns the pulse shape without the coupling bit.
func (t CalType) Shape() CalType { return t &^ CalDC }

var shapeNames = map[CalType]string{
	CalSquare:   "square",
	CalSine:     "sine",
	CalSawtooth: "sawtooth",
	CalUndef:    "undefined",
}

// Calibration describes how to calibrate signals of one type.
type Calibration struct {
	SignalType string  // Prefix of the descriptions of matching signals
	Units      string  // Physical units
	Scale      float64 // Customary plotting scale, physical units per cm
	Low        float64 // Pulse low level, DC coupled pulses only
	High       float64 // Pulse high level
	Type       CalType
}

// CalibrationList is an ordered list of calibrations. Lookups return the
// first match.
type CalibrationList struct {
	entries []Calibration
}

// LoadCalibration reads a calibration file.
func LoadCalibration(path string) (*CalibrationList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnableToOpen, path, err)
	}
	defer f.Close()

	return ReadCalibration(f)
}

// ReadCalibration parses calibration entries, one per line:
//
//	<signal type> TAB <low> <high> <pulse type> <scale> <units>
//
// A '-' low level marks an AC coupled pulse, a '-' high level an undefined
// one. Blank lines and lines starting with '#' are skipped.
func ReadCalibration(r io.Reader) (*CalibrationList, error) {
	l := &CalibrationList{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c, err := parseCalibration(line)
		if err != nil {
			return nil, fmt.Errorf("error parsing calibration line %d: %w", lineNo, err)
		}
		l.entries = append(l.entries, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading calibration: %w", err)
	}
	return l, nil
}

func parseCalibration(line string) (Calibration, error) {
	sigType, rest, ok := strings.Cut(line, "\t")
	if !ok {
		return Calibration{}, fmt.Errorf("%w: missing tab after signal type", ErrOutOfRange)
	}
	fields := strings.Fields(rest)
	if len(fields) != 5 {
		return Calibration{}, fmt.Errorf("%w: expected 5 fields after the signal type, got %d", ErrOutOfRange, len(fields))
	}

	c := Calibration{SignalType: strings.TrimSpace(sigType), Units: fields[4]}

	var err error
	if fields[0] == "-" {
		c.Type = CalAC
	} else {
		c.Type = CalDC
		if c.Low, err = strconv.ParseFloat(fields[0], 64); err != nil {
			return c, fmt.Errorf("%w: invalid low level %q", ErrOutOfRange, fields[0])
		}
	}

	shape := CalUndef
	for t, name := range shapeNames {
		if name == fields[2] {
			shape = t
		}
	}
	if fields[1] == "-" {
		shape = CalUndef
	} else if c.High, err = strconv.ParseFloat(fields[1], 64); err != nil {
		return c, fmt.Errorf("%w: invalid high level %q", ErrOutOfRange, fields[1])
	}
	c.Type |= shape

	if c.Scale, err = strconv.ParseFloat(fields[3], 64); err != nil {
		return c, fmt.Errorf("%w: invalid scale %q", ErrOutOfRange, fields[3])
	}
	return c, nil
}

// Len returns the number of entries.
func (l *CalibrationList) Len() int { return len(l.entries) }

// Entries returns a copy of the entries.
func (l *CalibrationList) Entries() []Calibration {
	return append([]Calibration(nil), l.entries...)
}

// Lookup returns the first entry whose signal type starts desc and whose
// units equal units. Empty units match any entry.
func (l *CalibrationList) Lookup(desc, units string) (Calibration, bool) {
	for _, c := range l.entries {
		if strings.HasPrefix(desc, c.SignalType) && (units == "" || units == c.Units) {
			return c, true
		}
	}
	return Calibration{}, false
}

// Put appends an entry.
func (l *CalibrationList) Put(c Calibration) error {
	if c.SignalType == "" || strings.ContainsAny(c.SignalType, "\t\n") {
		return fmt.Errorf("%w: invalid signal type %q", ErrOutOfRange, c.SignalType)
	}
	if c.Units == "" || strings.ContainsAny(c.Units, " \t\n") {
		return fmt.Errorf("%w: invalid units %q", ErrOutOfRange, c.Units)
	}
	l.entries = append(l.entries, c)
	return nil
}

// Flush removes every entry.
func (l *CalibrationList) Flush() {
	l.entries = nil
}

// WriteTo writes the list in the format ReadCalibration reads.
func (l *CalibrationList) WriteTo(w io.Writer) (int64, error) {
	writer := bufio.NewWriter(w)
	var total int64
	for _, c := range l.entries {
		low := "-"
		if c.Type.Coupling() == CalDC {
			low = strconv.FormatFloat(c.Low, 'g', -1, 64)
		}
		high := "-"
		shape := c.Type.Shape()
		if shape != CalUndef {
			high = strconv.FormatFloat(c.High, 'g', -1, 64)
		}
		name, ok := shapeNames[shape]
		if !ok {
			name = shapeNames[CalUndef]
		}

		n, err := fmt.Fprintf(writer, "%s\t%s %s %s %s %s\n", c.SignalType, low, high, name,
			strconv.FormatFloat(c.Scale, 'g', -1, 64), c.Units)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("error writing calibration: %w", err)
		}
	}
	return total, writer.Flush()
}

// Save writes the list to path.
func (l *CalibrationList) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnableToOpen, path, err)
	}
	if _, err := l.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
