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
	"fmt"
	"strconv"
	"strings"
)

// MaxAuxLength is the longest auxiliary payload an annotation can carry.
const MaxAuxLength = 255

// Annotation is one event of an annotation file.
type Annotation struct {
	Time      Time   // Sample interval the annotation applies to
	Type      Code   // Annotation code
	SubType   int8   // Context dependent subtype
	Channel   uint8  // Signal the annotation refers to
	Num       int8   // Context dependent number
	Annotator int    // Number of the annotator it was read from
	Aux       []byte // Optional payload, often text
}

// AuxString returns the auxiliary payload as text.
func (a Annotation) AuxString() string {
	return string(a.Aux)
}

func (a Annotation) String() string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatInt(int64(a.Time), 10))
	sb.WriteString(" " + a.Type.Mnemonic())
	fmt.Fprintf(&sb, " %d %d %d", a.SubType, a.Channel, a.Num)
	if len(a.Aux) > 0 {
		sb.WriteString(" " + string(a.Aux))
	}
	return sb.String()
}

// Layout of the 16-bit words of an annotation file: the code in the top six
// bits, a time difference or argument in the low ten.
const (
	codeShift = 10
	dataMask  = 0x3ff
)

// Pseudo codes carrying annotation fields that do not fit the basic word.
const (
	codeSkip Code = 59 // Followed by a 32-bit time difference
	codeNum  Code = 60 // Sets the num field of the preceding annotation
	codeSub  Code = 61 // Sets its subtype
	codeChn  Code = 62 // Sets its channel
	codeAux  Code = 63 // Followed by the given number of auxiliary bytes
)

// timeResolutionPrefix starts the comment some annotation files open with
// to record that their times count ticks of a clock other than the record's
// sampling frequency.
const timeResolutionPrefix = "## time resolution: "

func word(c Code, data int) uint16 {
	return uint16(c)<<codeShift | uint16(data&dataMask)
}

func splitWord(w uint16) (Code, int) {
	return Code(w >> codeShift), int(w & dataMask)
}
