// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfdb

import "strconv"

// Format is a signal storage format code.
type Format int

const (
	FormatNull Format = 0   // No data file, samples read as InvalidSample
	Format8    Format = 8   // 8-bit first differences
	Format16   Format = 16  // 16-bit two's complement, little-endian
	Format61   Format = 61  // 16-bit two's complement, big-endian
	Format80   Format = 80  // 8-bit offset binary
	Format160  Format = 160 // 16-bit offset binary, little-endian
	Format212  Format = 212 // Pairs of 12-bit samples packed in 3 bytes
	Format310  Format = 310 // Triplets of 10-bit samples packed in two 16-bit words
	Format311  Format = 311 // Triplets of 10-bit samples packed in one 32-bit word
)

// Valid reports whether f is a supported storage format.
func (f Format) Valid() bool {
	switch f {
	case FormatNull, Format8, Format16, Format61, Format80, Format160, Format212, Format310, Format311:
		return true
	}
	return false
}

func (f Format) String() string {
	return strconv.Itoa(int(f))
}

// DefaultADCResolution is the ADC resolution assumed when a header omits it.
func (f Format) DefaultADCResolution() int {
	switch f {
	case Format8, Format80:
		return 8
	case Format212:
		return 12
	case Format310, Format311:
		return 10
	default:
		return 16
	}
}

// unit returns how many samples are packed into how many bytes.
func (f Format) unit() (samples, bytes int) {
	switch f {
	case Format8, Format80:
		return 1, 1
	case Format16, Format61, Format160:
		return 1, 2
	case Format212:
		return 2, 3
	case Format310, Format311:
		return 3, 4
	default:
		return 1, 0
	}
}

// bounds returns the range of valid (non-sentinel) sample values. Format 8
// stores differences, so its bounds apply to deltas rather than samples.
func (f Format) bounds() (lo, hi int) {
	switch f {
	case Format8:
		return -128, 127
	case Format80:
		return -127, 127
	case Format212:
		return -2047, 2047
	case Format310, Format311:
		return -511, 511
	default:
		return -32767, 32767
	}
}

// signExtend interprets the low bits of v as a two's complement number.
func signExtend(v, bits int) int {
	shift := 64 - bits
	return int(int64(v) << shift >> shift)
}
