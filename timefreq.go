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
	"math"
	"strconv"
	"strings"
	"time"
)

// Frequency is a sampling frequency in Hz. It is never negative.
type Frequency float64

// DefaultFrequency is assumed when a header does not specify one.
const DefaultFrequency Frequency = 250

// NewFrequency returns f as a Frequency, rejecting negative values.
func NewFrequency(f float64) (Frequency, error) {
	if f < 0 || math.IsNaN(f) {
		return 0, fmt.Errorf("%w: negative frequency %g", ErrOutOfRange, f)
	}
	return Frequency(f), nil
}

func (f Frequency) String() string {
	return strconv.FormatFloat(float64(f), 'g', 12, 64)
}

// Gain is expressed in ADC units per physical unit.
type Gain float64

// DefaultGain is used for signals whose header leaves the gain unspecified.
const DefaultGain Gain = 200

// OrDefault returns DefaultGain in place of a zero gain.
func (g Gain) OrDefault() Gain {
	if g == 0 {
		return DefaultGain
	}
	return g
}

func (g Gain) String() string {
	return strconv.FormatFloat(float64(g), 'g', 12, 64)
}

// Time counts sample intervals. A non-negative Time is an interval from the
// start of the record; a negative Time is a time of day, encoded as the
// negated number of samples elapsed since the record's base time.
type Time int64

// IsClock reports whether t denotes an absolute time of day.
func (t Time) IsClock() bool { return t < 0 }

// Abs returns the number of samples t refers to, regardless of its encoding.
func (t Time) Abs() Time {
	if t < 0 {
		return -t
	}
	return t
}

// Date is a Julian day number. The zero Date means "unknown".
type Date int64

// julianUnixEpoch is the Julian day number of 1970-01-01.
const julianUnixEpoch = 2440588

// DateOf returns the Date of t's calendar day.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return Date(midnight.Unix()/86400 + julianUnixEpoch)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Unix((int64(d)-julianUnixEpoch)*86400, 0).UTC()
}

// String formats the date as dd/mm/yyyy, or "" when unknown.
func (d Date) String() string {
	if d == 0 {
		return ""
	}
	return d.Time().Format("02/01/2006")
}

// ParseDate parses a dd/mm/yyyy date. Two-digit years are taken as 19yy.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return 0, fmt.Errorf("%w: invalid date %q", ErrOutOfRange, s)
	}
	var v [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid date %q", ErrOutOfRange, s)
		}
		v[i] = n
	}
	day, month, year := v[0], v[1], v[2]
	if year < 100 {
		year += 1900
	}
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, fmt.Errorf("%w: invalid date %q", ErrOutOfRange, s)
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return 0, fmt.Errorf("%w: invalid date %q", ErrOutOfRange, s)
	}
	return DateOf(t), nil
}

// Clock ties sample counts to wall-clock time for one record.
type Clock struct {
	Frequency Frequency
	BaseTime  time.Duration // Time of day of sample 0
	BaseDate  Date
}

func (c Clock) freq() float64 {
	if c.Frequency <= 0 {
		return float64(DefaultFrequency)
	}
	return float64(c.Frequency)
}

// Seconds returns the number of seconds t spans.
func (c Clock) Seconds(t Time) float64 {
	return float64(t.Abs()) / c.freq()
}

// Duration returns the elapsed time t spans, rounded to the millisecond.
func (c Clock) Duration(t Time) time.Duration {
	return time.Duration(math.Round(c.Seconds(t)*1000)) * time.Millisecond
}

// Samples converts an elapsed duration into a sample count.
func (c Clock) Samples(d time.Duration) Time {
	return Time(math.Round(d.Seconds() * c.freq()))
}

// FormatTime formats t without milliseconds. Intervals are written as
// h:mm:ss (m:ss below one hour); times of day as [hh:mm:ss dd/mm/yyyy].
func (c Clock) FormatTime(t Time) string {
	return c.format(t, false)
}

// FormatTimeMS is like FormatTime with millisecond resolution.
func (c Clock) FormatTimeMS(t Time) string {
	return c.format(t, true)
}

func (c Clock) format(t Time, ms bool) string {
	if t >= 0 {
		return formatInterval(c.Duration(t), ms)
	}

	at := c.BaseTime + c.Duration(t)
	days := int64(at / (24 * time.Hour))
	at -= time.Duration(days) * 24 * time.Hour
	s := formatTimeOfDay(at, ms)
	if c.BaseDate != 0 {
		s += " " + (c.BaseDate + Date(days)).String()
	}
	return "[" + s + "]"
}

func formatInterval(d time.Duration, ms bool) string {
	total := d.Milliseconds()
	h := total / 3600000
	m := total / 60000 % 60
	s := total / 1000 % 60
	var out string
	if h > 0 {
		out = fmt.Sprintf("%d:%02d:%02d", h, m, s)
	} else {
		out = fmt.Sprintf("%d:%02d", m, s)
	}
	if ms {
		out += fmt.Sprintf(".%03d", total%1000)
	}
	return out
}

func formatTimeOfDay(d time.Duration, ms bool) string {
	total := d.Milliseconds()
	out := fmt.Sprintf("%02d:%02d:%02d", total/3600000, total/60000%60, total/1000%60)
	if ms {
		out += fmt.Sprintf(".%03d", total%1000)
	}
	return out
}

// ParseTime parses a time string. Accepted forms are "sNNN" (a sample
// number), "h:m:s", "m:s" and "s" intervals with optional fractional seconds,
// and "[hh:mm:ss dd/mm/yyyy]" times of day, which yield a negative Time.
func (c Clock) ParseTime(s string) (Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return 0, nil
	case s[0] == 's':
		n, err := strconv.ParseInt(s[1:], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: invalid sample number %q", ErrOutOfRange, s)
		}
		return Time(n), nil
	case s[0] == '[':
		return c.parseTimeOfDay(strings.Trim(s, "[]"))
	default:
		d, err := parseClock(s)
		if err != nil {
			return 0, err
		}
		return c.Samples(d), nil
	}
}

func (c Clock) parseTimeOfDay(s string) (Time, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 || len(fields) > 2 {
		return 0, fmt.Errorf("%w: invalid time of day %q", ErrOutOfRange, s)
	}
	at, err := parseClock(fields[0])
	if err != nil {
		return 0, err
	}
	elapsed := at - c.BaseTime
	if len(fields) == 2 && c.BaseDate != 0 {
		d, err := ParseDate(fields[1])
		if err != nil {
			return 0, err
		}
		elapsed += time.Duration(d-c.BaseDate) * 24 * time.Hour
	} else if elapsed < 0 {
		elapsed += 24 * time.Hour
	}
	if elapsed < 0 {
		return 0, fmt.Errorf("%w: time of day %q precedes the record", ErrOutOfRange, s)
	}
	return -c.Samples(elapsed), nil
}

// parseClock parses h:m:s, m:s or s with optional fractional seconds.
func parseClock(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: invalid time %q", ErrOutOfRange, s)
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || sec < 0 {
		return 0, fmt.Errorf("%w: invalid time %q", ErrOutOfRange, s)
	}
	d := time.Duration(math.Round(sec*1000)) * time.Millisecond
	unit := time.Minute
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.Atoi(parts[i])
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: invalid time %q", ErrOutOfRange, s)
		}
		d += time.Duration(n) * unit
		unit *= 60
	}
	return d, nil
}

// ParseBaseTime parses the base time field of a header record line.
func ParseBaseTime(s string) (time.Duration, error) {
	return parseClock(strings.Trim(s, "[]"))
}

// FormatBaseTime formats d for the base time field of a header record line.
func FormatBaseTime(d time.Duration) string {
	total := d.Milliseconds()
	out := fmt.Sprintf("%d:%02d:%02d", total/3600000, total/60000%60, total/1000%60)
	if total%1000 != 0 {
		out += fmt.Sprintf(".%03d", total%1000)
	}
	return out
}
