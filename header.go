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
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// HeaderExt is the file extension of header files.
const HeaderExt = ".hea"

// ReadHeader locates the header of record on path and parses it.
func ReadHeader(record string, path SearchPath) (*Header, error) {
	name, err := path.Find(record + HeaderExt)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoInputFile, record, err)
	}

	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoInputFile, record, err)
	}
	defer f.Close()

	return ParseHeader(f, filepath.Base(record))
}

// ParseHeader parses a header. If record is not empty, the header must
// describe a record of that name.
func ParseHeader(r io.Reader, record string) (*Header, error) {
	scanner := bufio.NewScanner(r)

	hdr := &Header{}
	lineNo := 0
	seenRecord := false
	nsig := 0
	prevFile := ""

	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "#") {
			// Comments are only kept once every signal has been described.
			if seenRecord && len(hdr.Signals) == nsig {
				hdr.Info = append(hdr.Info, strings.TrimPrefix(trimmed, "#"))
			}
			continue
		}
		if trimmed == "" {
			continue
		}

		if !seenRecord {
			var err error
			nsig, err = parseRecordLine(hdr, trimmed, record)
			if err != nil {
				return nil, &HeaderError{Record: record, Line: lineNo, Reason: err.Error()}
			}
			seenRecord = true
			continue
		}

		if len(hdr.Signals) == nsig {
			return nil, &HeaderError{Record: hdr.Record, Line: lineNo, Reason: "unexpected line after signal specifications"}
		}

		sig, err := parseSignalLine(trimmed, hdr.Record, len(hdr.Signals))
		if err != nil {
			return nil, &HeaderError{Record: hdr.Record, Line: lineNo, Reason: err.Error()}
		}
		sig.NumberOfSamples = hdr.NumberOfSamples

		if n := len(hdr.Signals); n > 0 && sig.FileName == prevFile {
			prev := hdr.Signals[n-1]
			sig.Group = prev.Group
			if sig.Format != prev.Format {
				return nil, &HeaderError{Record: hdr.Record, Line: lineNo,
					Reason: fmt.Sprintf("signal %d uses format %d but its group uses format %d", n, sig.Format, prev.Format)}
			}
		} else if n > 0 {
			sig.Group = hdr.Signals[n-1].Group + 1
		}
		prevFile = sig.FileName
		hdr.Signals = append(hdr.Signals, sig)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	if !seenRecord {
		return nil, &HeaderError{Record: record, Reason: "missing record line"}
	}
	if len(hdr.Signals) != nsig {
		return nil, &HeaderError{Record: hdr.Record,
			Reason: fmt.Sprintf("expected %d signal specifications, found %d", nsig, len(hdr.Signals))}
	}

	return hdr, nil
}

func parseRecordLine(hdr *Header, line, record string) (int, error) {
	fields := strings.Fields(line)

	name := fields[0]
	if strings.Contains(name, "/") {
		return 0, fmt.Errorf("multi-segment record %q is not supported", name)
	}
	if record != "" && name != record {
		return 0, fmt.Errorf("header describes record %q, not %q", name, record)
	}
	hdr.Record = name

	nsig := 0
	if len(fields) > 1 {
		var err error
		nsig, err = strconv.Atoi(fields[1])
		if err != nil || nsig < 0 {
			return 0, fmt.Errorf("invalid number of signals %q", fields[1])
		}
	}

	hdr.Frequency = DefaultFrequency
	if len(fields) > 2 {
		if err := parseFrequencyField(hdr, fields[2]); err != nil {
			return 0, err
		}
	}

	if len(fields) > 3 {
		n, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid number of samples %q", fields[3])
		}
		hdr.NumberOfSamples = n
	}

	if len(fields) > 4 {
		t, err := ParseBaseTime(fields[4])
		if err != nil {
			return 0, fmt.Errorf("invalid base time %q", fields[4])
		}
		hdr.BaseTime = t
	}

	if len(fields) > 5 {
		d, err := ParseDate(fields[5])
		if err != nil {
			return 0, fmt.Errorf("invalid base date %q", fields[5])
		}
		hdr.BaseDate = d
	}

	return nsig, nil
}

// parseFrequencyField parses freq[/cfreq[(base)]].
func parseFrequencyField(hdr *Header, s string) error {
	freq, counter, _ := strings.Cut(s, "/")

	f, err := strconv.ParseFloat(freq, 64)
	if err != nil {
		return fmt.Errorf("invalid sampling frequency %q", s)
	}
	hdr.Frequency, err = NewFrequency(f)
	if err != nil {
		return err
	}
	if hdr.Frequency == 0 {
		hdr.Frequency = DefaultFrequency
	}

	if counter == "" {
		return nil
	}
	counter, base, hasBase := strings.Cut(counter, "(")
	if hdr.CounterFrequency, err = strconv.ParseFloat(counter, 64); err != nil {
		return fmt.Errorf("invalid counter frequency %q", s)
	}
	if hasBase {
		if hdr.BaseCounter, err = strconv.ParseFloat(strings.TrimSuffix(base, ")"), 64); err != nil {
			return fmt.Errorf("invalid base counter value %q", s)
		}
	}
	return nil
}

func parseSignalLine(line, record string, index int) (Signal, error) {
	fields, desc := splitFields(line, 8)

	sig := Signal{
		FileName:        fields[0],
		SamplesPerFrame: 1,
		Gain:            DefaultGain,
		Units:           DefaultUnits,
	}

	if len(fields) < 2 {
		return sig, fmt.Errorf("signal %d has no storage format", index)
	}
	if err := parseFormatField(&sig, fields[1]); err != nil {
		return sig, err
	}
	if sig.FileName == NullFileName {
		sig.Format = FormatNull
	}

	hasBaseline := false
	if len(fields) > 2 {
		var err error
		if hasBaseline, err = parseGainField(&sig, fields[2]); err != nil {
			return sig, err
		}
	}

	ints := []*int{&sig.ADCResolution, &sig.ADCZero}
	for i, p := range ints {
		if len(fields) > 3+i {
			v, err := strconv.Atoi(fields[3+i])
			if err != nil {
				return sig, fmt.Errorf("invalid integer field %q", fields[3+i])
			}
			*p = v
		}
	}
	if sig.ADCResolution == 0 {
		sig.ADCResolution = sig.Format.DefaultADCResolution()
	}
	if !hasBaseline {
		sig.Baseline = sig.ADCZero
	}

	sig.InitValue = Sample(sig.ADCZero)
	if len(fields) > 5 {
		v, err := strconv.Atoi(fields[5])
		if err != nil {
			return sig, fmt.Errorf("invalid initial value %q", fields[5])
		}
		sig.InitValue = Sample(v)
	}

	if len(fields) > 6 {
		v, err := strconv.ParseInt(fields[6], 10, 32)
		if err != nil {
			return sig, fmt.Errorf("invalid checksum %q", fields[6])
		}
		sig.CheckSum = int16(v)
		sig.HasChecksum = true
	}

	if len(fields) > 7 {
		v, err := strconv.Atoi(fields[7])
		if err != nil || v < 0 {
			return sig, fmt.Errorf("invalid block size %q", fields[7])
		}
		sig.BlockSize = v
	}

	sig.Description = desc
	if sig.Description == "" {
		sig.Description = defaultDescription(record, index)
	}

	return sig, sig.Validate()
}

// parseFormatField parses fmt[xspf][:skew][+offset].
func parseFormatField(sig *Signal, s string) error {
	rest := s
	if i := strings.IndexByte(rest, '+'); i >= 0 {
		v, err := strconv.ParseInt(rest[i+1:], 10, 64)
		if err != nil || v < 0 {
			return fmt.Errorf("invalid byte offset in %q", s)
		}
		sig.ByteOffset = v
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		v, err := strconv.Atoi(rest[i+1:])
		if err != nil {
			return fmt.Errorf("invalid skew in %q", s)
		}
		sig.Skew = v
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, 'x'); i >= 0 {
		v, err := strconv.Atoi(rest[i+1:])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid samples per frame in %q", s)
		}
		sig.SamplesPerFrame = v
		rest = rest[:i]
	}
	v, err := strconv.Atoi(rest)
	if err != nil {
		return fmt.Errorf("invalid storage format %q", s)
	}
	sig.Format = Format(v)
	if !sig.Format.Valid() {
		return fmt.Errorf("unsupported storage format %d", v)
	}
	return nil
}

// parseGainField parses gain[(baseline)][/units] and reports whether a
// baseline was present.
func parseGainField(sig *Signal, s string) (bool, error) {
	rest, units, hasUnits := strings.Cut(s, "/")
	if hasUnits {
		sig.Units = units
	}

	hasBaseline := false
	if i := strings.IndexByte(rest, '('); i >= 0 {
		v, err := strconv.Atoi(strings.TrimSuffix(rest[i+1:], ")"))
		if err != nil {
			return false, fmt.Errorf("invalid baseline in %q", s)
		}
		sig.Baseline = v
		hasBaseline = true
		rest = rest[:i]
	}

	g, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return false, fmt.Errorf("invalid gain in %q", s)
	}
	sig.Gain = Gain(g).OrDefault()
	return hasBaseline, nil
}

// splitFields splits the first n whitespace separated fields off s and
// returns them along with the remainder, which keeps its inner spacing.
func splitFields(s string, n int) ([]string, string) {
	var fields []string
	for len(fields) < n {
		s = strings.TrimLeft(s, " \t")
		if s == "" {
			break
		}
		end := strings.IndexAny(s, " \t")
		if end < 0 {
			end = len(s)
		}
		fields = append(fields, s[:end])
		s = s[end:]
	}
	return fields, strings.TrimSpace(s)
}

func defaultDescription(record string, index int) string {
	return fmt.Sprintf("record %s, signal %d", record, index)
}

// Validate checks the parts of a signal description that a header cannot
// represent.
func (s *Signal) Validate() error {
	if !s.Format.Valid() {
		return fmt.Errorf("%w: unsupported storage format %d", ErrOutOfRange, s.Format)
	}
	if s.SamplesPerFrame < 1 {
		return fmt.Errorf("%w: samples per frame must be at least 1", ErrOutOfRange)
	}
	if len(s.Description) > MaxDescriptionLength {
		return fmt.Errorf("%w: description longer than %d bytes", ErrOutOfRange, MaxDescriptionLength)
	}
	if len(s.Units) > MaxUnitsLength {
		return fmt.Errorf("%w: units longer than %d bytes", ErrOutOfRange, MaxUnitsLength)
	}
	if strings.ContainsAny(s.Units, " \t") {
		return fmt.Errorf("%w: units %q contain a separator", ErrOutOfRange, s.Units)
	}
	if s.FileName == "" || strings.ContainsAny(s.FileName, " \t") {
		return fmt.Errorf("%w: invalid file name %q", ErrOutOfRange, s.FileName)
	}
	return nil
}

// CreateHeader writes the header of hdr.Record into dir.
func CreateHeader(dir string, hdr *Header) error {
	name := filepath.Join(dir, hdr.Record+HeaderExt)
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnableToOpen, name, err)
	}

	if err := WriteHeader(f, hdr); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing header: %w", err)
	}
	return nil
}

// WriteHeader writes hdr in the canonical layout. Signals are written
// ordered by group so that the members of a group are adjacent. A signal
// without a checksum ends at its initial value, so it cannot carry a block
// size or a description other than the default one.
func WriteHeader(w io.Writer, hdr *Header) error {
	if hdr.Record == "" || strings.ContainsAny(hdr.Record, " \t/") {
		return fmt.Errorf("%w: invalid record name %q", ErrOutOfRange, hdr.Record)
	}
	for i := range hdr.Signals {
		if err := hdr.Signals[i].Validate(); err != nil {
			return fmt.Errorf("error validating signal %d: %w", i, err)
		}
		// Checksum, block size and description are positional.
		sig := &hdr.Signals[i]
		custom := sig.Description != "" && sig.Description != defaultDescription(hdr.Record, i)
		if !sig.HasChecksum && (sig.BlockSize != 0 || custom) {
			return &HeaderError{Record: hdr.Record, Reason: fmt.Sprintf(
				"signal %d has a description or block size but no checksum", i)}
		}
	}

	writer := bufio.NewWriter(w)

	if _, err := writer.WriteString(formatRecordLine(hdr) + "\r\n"); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	order := make([]int, len(hdr.Signals))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return hdr.Signals[order[a]].Group < hdr.Signals[order[b]].Group
	})

	for _, i := range order {
		if _, err := writer.WriteString(formatSignalLine(&hdr.Signals[i]) + "\r\n"); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
	}

	for _, line := range hdr.Info {
		if _, err := writer.WriteString("#" + line + "\r\n"); err != nil {
			return fmt.Errorf("error writing header: %w", err)
		}
	}

	return writer.Flush()
}

func formatRecordLine(hdr *Header) string {
	var sb strings.Builder
	sb.WriteString(hdr.Record)
	fmt.Fprintf(&sb, " %d ", len(hdr.Signals))

	freq := hdr.Frequency
	if freq == 0 {
		freq = DefaultFrequency
	}
	sb.WriteString(freq.String())
	if hdr.CounterFrequency != 0 {
		sb.WriteString("/" + strconv.FormatFloat(hdr.CounterFrequency, 'g', 12, 64))
		if hdr.BaseCounter != 0 {
			sb.WriteString("(" + strconv.FormatFloat(hdr.BaseCounter, 'g', 12, 64) + ")")
		}
	}

	fmt.Fprintf(&sb, " %d", hdr.NumberOfSamples)
	if hdr.BaseTime != 0 || hdr.BaseDate != 0 {
		sb.WriteString(" " + FormatBaseTime(hdr.BaseTime))
		if hdr.BaseDate != 0 {
			sb.WriteString(" " + hdr.BaseDate.String())
		}
	}
	return sb.String()
}

func formatSignalLine(sig *Signal) string {
	var sb strings.Builder
	sb.WriteString(sig.FileName)

	fmt.Fprintf(&sb, " %d", sig.Format)
	if sig.SamplesPerFrame > 1 {
		fmt.Fprintf(&sb, "x%d", sig.SamplesPerFrame)
	}
	if sig.Skew != 0 {
		fmt.Fprintf(&sb, ":%d", sig.Skew)
	}
	if sig.ByteOffset != 0 {
		fmt.Fprintf(&sb, "+%d", sig.ByteOffset)
	}

	sb.WriteString(" " + sig.Gain.OrDefault().String())
	if sig.Baseline != sig.ADCZero {
		fmt.Fprintf(&sb, "(%d)", sig.Baseline)
	}
	if sig.Units != "" && sig.Units != DefaultUnits {
		sb.WriteString("/" + sig.Units)
	}

	fmt.Fprintf(&sb, " %d %d %d", sig.ADCResolution, sig.ADCZero, sig.InitValue)
	if !sig.HasChecksum {
		return sb.String()
	}
	fmt.Fprintf(&sb, " %d %d", sig.CheckSum, sig.BlockSize)
	if sig.Description != "" {
		sb.WriteString(" " + sig.Description)
	}
	return sb.String()
}
