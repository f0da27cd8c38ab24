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
	"math"
	"strings"
)

// Sample is one digitized amplitude in ADC units.
type Sample int

// InvalidSample marks a slot with no data.
const InvalidSample Sample = -32768

// ToPhys converts v to physical units. InvalidSample converts to NaN.
func (s *Signal) ToPhys(v Sample) float64 {
	if v == InvalidSample {
		return math.NaN()
	}
	return float64(int(v)-s.Baseline) / float64(s.Gain.OrDefault())
}

// FromPhys converts a physical value to ADC units, rounding to the nearest
// unit. NaN converts to InvalidSample.
func (s *Signal) FromPhys(p float64) Sample {
	if math.IsNaN(p) {
		return InvalidSample
	}
	return Sample(int(math.Round(p*float64(s.Gain.OrDefault()))) + s.Baseline)
}

// ToMicrovolts converts an amplitude difference in ADC units into
// microvolts, taking the signal's units into account. The baseline does not
// apply. Units other than V, uV and nV are treated as millivolts.
func (s *Signal) ToMicrovolts(d Sample) float64 {
	return float64(d) / float64(s.Gain.OrDefault()) * s.microvoltScale()
}

// FromMicrovolts converts an amplitude difference in microvolts into ADC
// units.
func (s *Signal) FromMicrovolts(uv float64) Sample {
	return Sample(math.Round(uv / s.microvoltScale() * float64(s.Gain.OrDefault())))
}

func (s *Signal) microvoltScale() float64 {
	switch strings.TrimSpace(s.Units) {
	case "V":
		return 1e6
	case "uV", "µV":
		return 1
	case "nV":
		return 1e-3
	default:
		return 1e3
	}
}
