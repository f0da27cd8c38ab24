// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfdb

import "time"

const (
	// MaxDescriptionLength is the longest signal description a header may carry.
	MaxDescriptionLength = 60
	// MaxUnitsLength is the longest physical units string a header may carry.
	MaxUnitsLength = 20
	// DefaultUnits is assumed when a signal line omits its units.
	DefaultUnits = "mV"
	// NullFileName marks a signal with no backing data file.
	NullFileName = "~"
)

// Header represents the contents of a WFDB (.hea) header file.
type Header struct {
	Record           string        // Record name (without directory)
	Frequency        Frequency     // Sampling frequency in frames per second
	CounterFrequency float64       // Counter frequency, 0 if not specified
	BaseCounter      float64       // Counter value at sample 0
	NumberOfSamples  int64         // Frames per signal, 0 if unknown
	BaseTime         time.Duration // Time of day of sample 0
	BaseDate         Date          // Date of sample 0, 0 if unknown
	Signals          []Signal      // Details of each signal
	Info             []string      // Free-text info lines, without the leading '#'
}

// Signal describes one signal of a record.
type Signal struct {
	FileName        string // Data file holding the signal, "~" for none
	Description     string // Description (e.g., MLII)
	Units           string // Physical units (e.g., mV)
	Gain            Gain   // ADC units per physical unit
	InitValue       Sample // Value of sample 0
	Group           int    // Signals sharing one data file share a group
	Format          Format // Storage format
	SamplesPerFrame int    // Samples per frame, >1 only for oversampled signals
	Skew            int    // Intersignal skew in frames (carried, not applied)
	ByteOffset      int64  // Bytes to skip at the start of the data file
	BlockSize       int    // Block size for block-structured devices, 0 otherwise
	ADCResolution   int    // ADC resolution in bits
	ADCZero         int    // ADC output for a 0 V input
	Baseline        int    // Sample value corresponding to 0 physical units
	NumberOfSamples int64  // Number of frames
	CheckSum        int16  // 16-bit additive checksum over all samples
	HasChecksum     bool   // Whether the header declared a checksum
}

// Stat is the access mode of an annotator.
type Stat int

const (
	StatRead Stat = iota
	StatWrite
	StatAHARead
	StatAHAWrite
)

func (s Stat) String() string {
	switch s {
	case StatRead:
		return "read"
	case StatWrite:
		return "write"
	case StatAHARead:
		return "aha-read"
	case StatAHAWrite:
		return "aha-write"
	default:
		return "unknown"
	}
}

// AnnotatorInfo names an annotation file of a record and how to open it.
type AnnotatorInfo struct {
	Name string // Annotator name, used as the file extension (e.g., atr)
	Stat Stat
}
