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
	"sync"
)

// Code is an annotation type code.
type Code uint8

const (
	NotQRS   Code = 0  // Not-QRS (not a beat label)
	Normal   Code = 1  // Normal beat
	LBBB     Code = 2  // Left bundle branch block beat
	RBBB     Code = 3  // Right bundle branch block beat
	Aberr    Code = 4  // Aberrated atrial premature beat
	PVC      Code = 5  // Premature ventricular contraction
	Fusion   Code = 6  // Fusion of ventricular and normal beat
	NPC      Code = 7  // Nodal (junctional) premature beat
	APC      Code = 8  // Atrial premature contraction
	SVPB     Code = 9  // Premature or ectopic supraventricular beat
	VEsc     Code = 10 // Ventricular escape beat
	NEsc     Code = 11 // Nodal (junctional) escape beat
	Pace     Code = 12 // Paced beat
	Unknown  Code = 13 // Unclassifiable beat
	Noise    Code = 14 // Signal quality change
	Arfct    Code = 16 // Isolated QRS-like artifact
	STCh     Code = 18 // ST change
	TCh      Code = 19 // T-wave change
	Systole  Code = 20 // Systole
	Diastole Code = 21 // Diastole
	Note     Code = 22 // Comment annotation
	Measure  Code = 23 // Measurement annotation
	PWave    Code = 24 // P-wave peak
	BBB      Code = 25 // Left or right bundle branch block
	PaceSP   Code = 26 // Non-conducted pacer spike
	TWave    Code = 27 // T-wave peak
	Rhythm   Code = 28 // Rhythm change
	UWave    Code = 29 // U-wave peak
	Learn    Code = 30 // Learning
	FlWav    Code = 31 // Ventricular flutter wave
	VFOn     Code = 32 // Start of ventricular flutter/fibrillation
	VFOff    Code = 33 // End of ventricular flutter/fibrillation
	AEsc     Code = 34 // Atrial escape beat
	SVEsc    Code = 35 // Supraventricular escape beat
	Link     Code = 36 // Link to external data
	NAPC     Code = 37 // Non-conducted P-wave (blocked APB)
	PFus     Code = 38 // Fusion of paced and normal beat
	WFOn     Code = 39 // Waveform onset
	WFOff    Code = 40 // Waveform end
	ROnT     Code = 41 // R-on-T premature ventricular contraction

	// MaxCode is the largest annotation code.
	MaxCode Code = 49

	// PQ and JPt are the historical names of WFOn and WFOff.
	PQ  = WFOn
	JPt = WFOff
)

// Codes in this range may be given a meaning at run time.
const (
	firstUserCode Code = 42
	lastUserCode  Code = 48
)

// AnnotationPos suggests where an annotation is drawn relative to its signal.
type AnnotationPos int

const (
	PosUndefined AnnotationPos = iota
	PosStandard
	PosHigh
	PosLow
	PosAttached
	PosAttachedHigh
	PosAttachedLow
)

var mnemonics = [MaxCode + 1]string{
	" ", "N", "L", "R", "a", "V", "F", "J", "A", "S",
	"E", "j", "/", "Q", "~", "", "|", "", "s", "T",
	"*", "D", "\"", "=", "p", "B", "^", "t", "+", "u",
	"?", "!", "[", "]", "e", "n", "@", "x", "f", "(",
	")", "r",
}

var ecgNames = [MaxCode + 1]string{
	"NOTQRS", "NORMAL", "LBBB", "RBBB", "ABERR", "PVC", "FUSION", "NPC", "APC", "SVPB",
	"VESC", "NESC", "PACE", "UNKNOWN", "NOISE", "", "ARFCT", "", "STCH", "TCH",
	"SYSTOLE", "DIASTOLE", "NOTE", "MEASURE", "PWAVE", "BBB", "PACESP", "TWAVE", "RHYTHM", "UWAVE",
	"LEARN", "FLWAV", "VFON", "VFOFF", "AESC", "SVESC", "LINK", "NAPC", "PFUS", "WFON",
	"WFOFF", "RONT",
}

var descriptions = [MaxCode + 1]string{
	"",
	"Normal beat",
	"Left bundle branch block beat",
	"Right bundle branch block beat",
	"Aberrated atrial premature beat",
	"Premature ventricular contraction",
	"Fusion of ventricular and normal beat",
	"Nodal (junctional) premature beat",
	"Atrial premature beat",
	"Premature or ectopic supraventricular beat",
	"Ventricular escape beat",
	"Nodal (junctional) escape beat",
	"Paced beat",
	"Unclassifiable beat",
	"Change in signal quality",
	"",
	"Isolated QRS-like artifact",
	"",
	"ST change",
	"T-wave change",
	"Systole",
	"Diastole",
	"Comment annotation",
	"Measurement annotation",
	"P-wave peak",
	"Left or right bundle branch block",
	"Non-conducted pacer spike",
	"T-wave peak",
	"Rhythm change",
	"U-wave peak",
	"Learning",
	"Ventricular flutter wave",
	"Start of ventricular flutter/fibrillation",
	"End of ventricular flutter/fibrillation",
	"Atrial escape beat",
	"Supraventricular escape beat",
	"Link to external data (aux contains URL)",
	"Non-conducted P-wave (blocked APB)",
	"Fusion of paced and normal beat",
	"Waveform onset",
	"Waveform end",
	"R-on-T premature ventricular contraction",
}

var qrs = [MaxCode + 1]bool{
	Normal: true, LBBB: true, RBBB: true, Aberr: true, PVC: true,
	Fusion: true, NPC: true, APC: true, SVPB: true, VEsc: true,
	NEsc: true, Pace: true, Unknown: true, Arfct: true, BBB: true,
	Learn: true, FlWav: true, AEsc: true, SVEsc: true, PFus: true,
	ROnT: true,
}

var positions = [MaxCode + 1]AnnotationPos{
	PosUndefined, PosStandard, PosStandard, PosStandard, PosStandard,
	PosStandard, PosStandard, PosStandard, PosStandard, PosStandard,
	PosStandard, PosStandard, PosStandard, PosStandard, PosHigh,
	PosUndefined, PosHigh, PosUndefined, PosHigh, PosHigh,
	PosHigh, PosHigh, PosAttachedHigh, PosHigh, PosHigh,
	PosStandard, PosHigh, PosHigh, PosLow, PosHigh,
	PosStandard, PosStandard, PosHigh, PosHigh, PosStandard,
	PosStandard, PosHigh, PosHigh, PosStandard, PosHigh,
	PosHigh, PosStandard,
}

// map1 folds every code into NotQRS, Normal, PVC, Fusion or Learn.
var map1 = [MaxCode + 1]Code{
	NotQRS, Normal, Normal, Normal, Normal, PVC, Fusion, Normal, Normal, Normal,
	PVC, Normal, Normal, Normal, NotQRS, NotQRS, NotQRS, NotQRS, NotQRS, NotQRS,
	NotQRS, NotQRS, NotQRS, NotQRS, NotQRS, Normal, NotQRS, NotQRS, NotQRS, NotQRS,
	Learn, PVC, NotQRS, NotQRS, Normal, Normal, NotQRS, NotQRS, Fusion, NotQRS,
	NotQRS, PVC,
}

// map2 is map1 with supraventricular ectopic beats kept apart as SVPB.
var map2 = [MaxCode + 1]Code{
	NotQRS, Normal, Normal, Normal, SVPB, PVC, Fusion, SVPB, SVPB, SVPB,
	PVC, Normal, Normal, Normal, NotQRS, NotQRS, NotQRS, NotQRS, NotQRS, NotQRS,
	NotQRS, NotQRS, NotQRS, NotQRS, NotQRS, Normal, NotQRS, NotQRS, NotQRS, NotQRS,
	Learn, PVC, NotQRS, NotQRS, Normal, Normal, NotQRS, NotQRS, Fusion, NotQRS,
	NotQRS, PVC,
}

// mitToAHA holds the AHA code of each annotation code. Noise depends on the
// subtype and is handled by ToAHA.
var mitToAHA = [MaxCode + 1]byte{
	'O', 'N', 'N', 'N', 'N', 'V', 'F', 'N', 'N', 'N',
	'E', 'N', 'P', 'Q', 'U', 'O', 'O', 'O', 'O', 'O',
	'O', 'O', 'O', 'O', 'O', 'N', 'O', 'O', 'O', 'O',
	'Q', 'O', '[', ']', 'N', 'N', 'O', 'O', 'N', 'O',
	'O', 'R', 'O', 'O', 'O', 'O', 'O', 'O', 'O', 'O',
}

var ahaToMIT = map[byte]Code{
	'E': VEsc, 'F': Fusion, 'N': Normal, 'O': Note, 'P': Pace,
	'Q': Unknown, 'R': ROnT, 'U': Noise, 'V': PVC, '[': VFOn, ']': VFOff,
}

// CodeInfo is the run-time definition of a user-defined code.
type CodeInfo struct {
	Mnemonic    string
	Description string
	QRS         bool
	Pos         AnnotationPos
}

// CodeTable holds the definitions given to codes 42 to 48. The remaining
// codes have fixed meanings.
type CodeTable struct {
	mu   sync.RWMutex
	user map[Code]CodeInfo
}

// DefaultCodeTable is consulted by the methods of Code.
var DefaultCodeTable = &CodeTable{}

// Set defines code c.
func (t *CodeTable) Set(c Code, info CodeInfo) error {
	if c < firstUserCode || c > lastUserCode {
		return fmt.Errorf("%w: annotation code %d cannot be redefined", ErrOutOfRange, c)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.user == nil {
		t.user = make(map[Code]CodeInfo)
	}
	t.user[c] = info
	return nil
}

// Reset removes the definition of c.
func (t *CodeTable) Reset(c Code) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.user, c)
}

// Lookup returns the definition of a user-defined code.
func (t *CodeTable) Lookup(c Code) (CodeInfo, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	info, ok := t.user[c]
	return info, ok
}

// Valid reports whether c is a legal annotation code.
func (c Code) Valid() bool { return c <= MaxCode }

// Mnemonic returns the label conventionally printed for c.
func (c Code) Mnemonic() string {
	if info, ok := DefaultCodeTable.Lookup(c); ok && info.Mnemonic != "" {
		return info.Mnemonic
	}
	if c.Valid() && mnemonics[c] != "" {
		return mnemonics[c]
	}
	return "[" + strconv.Itoa(int(c)) + "]"
}

// ECGName returns the symbolic name of c, such as NORMAL or PVC.
func (c Code) ECGName() string {
	if c == MaxCode {
		return "ACMAX"
	}
	if c.Valid() && ecgNames[c] != "" {
		return ecgNames[c]
	}
	return "[" + strconv.Itoa(int(c)) + "]"
}

// Description returns a short English description of c.
func (c Code) Description() string {
	if info, ok := DefaultCodeTable.Lookup(c); ok {
		return info.Description
	}
	if c.Valid() {
		return descriptions[c]
	}
	return ""
}

// IsQRS reports whether c labels a beat.
func (c Code) IsQRS() bool {
	if info, ok := DefaultCodeTable.Lookup(c); ok {
		return info.QRS
	}
	return c.Valid() && qrs[c]
}

// Pos returns where an annotation of type c is drawn.
func (c Code) Pos() AnnotationPos {
	if info, ok := DefaultCodeTable.Lookup(c); ok {
		return info.Pos
	}
	if c.Valid() {
		return positions[c]
	}
	return PosUndefined
}

// Map1 reduces c to NotQRS, Normal, PVC, Fusion or Learn.
func (c Code) Map1() Code {
	if c.Valid() {
		return map1[c]
	}
	return NotQRS
}

// Map2 reduces c to NotQRS, Normal, SVPB, PVC, Fusion or Learn.
func (c Code) Map2() Code {
	if c.Valid() {
		return map2[c]
	}
	return NotQRS
}

// ToAHA returns the AHA code for c. The subtype only matters for Noise, which
// maps to 'U' (unreadable) when subtype is -1.
func (c Code) ToAHA(subtype int8) byte {
	if c == Noise {
		if subtype == -1 {
			return 'U'
		}
		return 'O'
	}
	if c.Valid() {
		return mitToAHA[c]
	}
	return 'O'
}

// CodeFromAHA returns the annotation code for an AHA code. Unknown AHA codes
// map to NotQRS.
func CodeFromAHA(b byte) Code {
	return ahaToMIT[b]
}

func (c Code) String() string { return c.Mnemonic() }

// ParseCode returns the code whose mnemonic is s.
func ParseCode(s string) (Code, error) {
	for c := Code(0); c <= MaxCode; c++ {
		if c.Mnemonic() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown annotation mnemonic %q", ErrOutOfRange, s)
}

// ParseECGName returns the code whose symbolic name is s.
func ParseECGName(s string) (Code, error) {
	for c := Code(0); c <= MaxCode; c++ {
		if c.ECGName() == s {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown annotation name %q", ErrOutOfRange, s)
}
