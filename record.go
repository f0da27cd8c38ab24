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
	"iter"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// openMu serializes record opens.
var openMu sync.Mutex

type recordState int

const (
	stateClosed recordState = iota
	stateOpening
	stateOpen
)

// Record is a session over one record: its header, signal files and
// annotators.
//
// A Record is not safe for concurrent use. Distinct Records are independent.
type Record struct {
	name   string
	opts   *options
	logger zerolog.Logger

	state recordState
	isNew bool
	gen   int // Incremented on Close, invalidating cursors
	hdr   *Header
	dir   string

	groups   []*groupReader
	sigGroup []int   // Group of each signal
	sigIndex []int   // Index of each signal within its group
	gpos     []int64 // Record position of each group

	annotators []*Annotator
	nIn, nOut  int
}

// NewRecord returns a closed session for the record called name. The name
// may include a directory relative to the search path.
func NewRecord(name string, opts ...Option) *Record {
	o := applyOptions(opts)
	return &Record{
		name:   name,
		opts:   o,
		logger: o.logger.With().Str("record", name).Logger(),
		isNew:  true,
	}
}

// Open reads the header and opens the data file of every signal group.
// Opening an open record fails with ErrInvalidOperation. If any step fails,
// every file opened so far is closed and the record stays closed.
func (r *Record) Open() error {
	openMu.Lock()
	defer openMu.Unlock()

	if r.state != stateClosed {
		return fmt.Errorf("%w: record %s is already open", ErrInvalidOperation, r.name)
	}
	r.state = stateOpening

	if err := r.open(); err != nil {
		_ = r.release()
		r.state = stateClosed
		return err
	}

	r.state = stateOpen
	r.isNew = false
	r.logger.Debug().Int("signals", len(r.hdr.Signals)).Int("groups", len(r.groups)).
		Float64("frequency", float64(r.hdr.Frequency)).Msg("Opened record")
	return nil
}

func (r *Record) open() error {
	path, err := r.opts.searchPath.Find(r.name + HeaderExt)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoInputFile, r.name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNoInputFile, r.name, err)
	}
	hdr, err := ParseHeader(f, filepath.Base(r.name))
	_ = f.Close()
	if err != nil {
		return err
	}
	r.hdr = hdr
	r.dir = filepath.Dir(path)

	var members [][]int
	r.sigGroup = make([]int, len(hdr.Signals))
	r.sigIndex = make([]int, len(hdr.Signals))
	for i, sig := range hdr.Signals {
		for len(members) <= sig.Group {
			members = append(members, nil)
		}
		r.sigGroup[i] = sig.Group
		r.sigIndex[i] = len(members[sig.Group])
		members[sig.Group] = append(members[sig.Group], i)
	}

	for g, signals := range members {
		if len(signals) == 0 {
			return &HeaderError{Record: hdr.Record, Reason: fmt.Sprintf("signal group %d is empty", g)}
		}

		var data *os.File
		if name := hdr.Signals[signals[0]].FileName; name != NullFileName {
			data, err = r.openData(name)
			if err != nil {
				return err
			}
		}

		gr, err := newGroupReader(data, hdr, signals)
		if err != nil {
			if data != nil {
				_ = data.Close()
			}
			return err
		}
		r.groups = append(r.groups, gr)
	}
	r.gpos = make([]int64, len(r.groups))

	return nil
}

// openData opens a data file, looking next to the header first.
func (r *Record) openData(name string) (*os.File, error) {
	path, err := append(SearchPath{r.dir}, r.opts.searchPath...).Find(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnableToOpen, name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnableToOpen, name, err)
	}
	return f, nil
}

// release closes every signal file and forgets the header.
func (r *Record) release() error {
	var errs []error
	for _, g := range r.groups {
		if err := g.close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.groups = nil
	r.sigGroup, r.sigIndex, r.gpos = nil, nil, nil
	r.hdr = nil
	return errors.Join(errs...)
}

// Close releases every file of the session, including annotators, and
// invalidates cursors. The record can be opened again.
func (r *Record) Close() error {
	var errs []error
	if err := r.CloseAnnotators(); err != nil {
		errs = append(errs, err)
	}
	if r.state == stateOpen {
		if err := r.release(); err != nil {
			errs = append(errs, err)
		}
		r.logger.Debug().Msg("Closed record")
	}
	r.state = stateClosed
	r.isNew = true
	r.gen++
	return errors.Join(errs...)
}

// Name returns the record name.
func (r *Record) Name() string { return r.name }

// IsNew reports whether the record has not been opened yet, or was closed.
func (r *Record) IsNew() bool { return r.isNew }

// Header returns the parsed header, or nil when the record is not open.
func (r *Record) Header() *Header { return r.hdr }

// Signals returns the signal descriptions, in signal number order.
func (r *Record) Signals() []Signal {
	if r.hdr == nil {
		return nil
	}
	return append([]Signal(nil), r.hdr.Signals...)
}

// Signal returns the description of signal i.
func (r *Record) Signal(i int) (Signal, error) {
	if r.hdr == nil {
		return Signal{}, ErrClosed
	}
	if i < 0 || i >= len(r.hdr.Signals) {
		return Signal{}, fmt.Errorf("%w: signal %d of %d", ErrOutOfRange, i, len(r.hdr.Signals))
	}
	return r.hdr.Signals[i], nil
}

// Frequency returns the sampling frequency, or DefaultFrequency when closed.
func (r *Record) Frequency() Frequency {
	if r.hdr == nil {
		return DefaultFrequency
	}
	return r.hdr.Frequency
}

// Info returns the header's info lines.
func (r *Record) Info() []string {
	if r.hdr == nil {
		return nil
	}
	return append([]string(nil), r.hdr.Info...)
}

// Clock returns the clock of the record, for formatting and parsing times.
func (r *Record) Clock() Clock {
	if r.hdr == nil {
		return Clock{Frequency: DefaultFrequency}
	}
	return Clock{Frequency: r.hdr.Frequency, BaseTime: r.hdr.BaseTime, BaseDate: r.hdr.BaseDate}
}

// Time returns the position of the next frame ReadFrame returns.
func (r *Record) Time() Time {
	if len(r.gpos) == 0 {
		return 0
	}
	return Time(r.gpos[0])
}

// NumberOfSamples returns the frame count from the header, 0 if unknown.
func (r *Record) NumberOfSamples() int64 {
	if r.hdr == nil {
		return 0
	}
	return r.hdr.NumberOfSamples
}

// FrameSize returns the number of samples ReadFrameHighRes delivers.
func (r *Record) FrameSize() int {
	n := 0
	for _, sig := range r.Signals() {
		n += sig.SamplesPerFrame
	}
	return n
}

// ReadFrame reads one sample of every signal. Oversampled signals are
// averaged over the frame. It returns io.EOF at the end of the record. A
// checksum mismatch found on the last frame is returned with the frame
// filled in.
func (r *Record) ReadFrame(dst []Sample) error {
	if r.state != stateOpen {
		return ErrClosed
	}
	if len(dst) < len(r.hdr.Signals) {
		return fmt.Errorf("%w: frame buffer holds %d samples, need %d", ErrOutOfRange, len(dst), len(r.hdr.Signals))
	}

	err := r.readGroups()
	if err != nil && !isChecksum(err) {
		return err
	}
	for i := range r.hdr.Signals {
		dst[i] = average(r.groups[r.sigGroup[i]].sample(r.sigIndex[i]))
	}
	return err
}

// ReadFrameHighRes reads every sub-sample of one frame, signal by signal.
func (r *Record) ReadFrameHighRes(dst []Sample) error {
	if r.state != stateOpen {
		return ErrClosed
	}
	if n := r.FrameSize(); len(dst) < n {
		return fmt.Errorf("%w: frame buffer holds %d samples, need %d", ErrOutOfRange, len(dst), n)
	}

	err := r.readGroups()
	if err != nil && !isChecksum(err) {
		return err
	}
	n := 0
	for i := range r.hdr.Signals {
		n += copy(dst[n:], r.groups[r.sigGroup[i]].sample(r.sigIndex[i]))
	}
	return err
}

// readGroups reads the next frame of every group, first moving any group a
// cursor has displaced back to the record position.
func (r *Record) readGroups() error {
	allNull := true
	for _, g := range r.groups {
		allNull = allNull && g.null()
	}
	if len(r.groups) == 0 || (allNull && r.hdr.NumberOfSamples == 0) {
		return io.EOF
	}

	// Positions are committed only once every group has its frame; groups
	// already read are moved back by the next call.
	var errs []error
	for i, g := range r.groups {
		if g.pos != r.gpos[i] {
			if err := g.seek(r.gpos[i]); err != nil {
				return err
			}
		}
		err := g.readFrame()
		if err != nil && !isChecksum(err) {
			if !errors.Is(err, io.EOF) && !g.null() {
				// Drop any partly decoded frame.
				_ = g.reposition(g.pos)
			}
			return err
		}
		if err != nil {
			r.logger.Warn().Err(err).Int("group", i).Msg("Checksum mismatch")
			errs = append(errs, err)
		}
	}
	for i := range r.gpos {
		r.gpos[i]++
	}
	return errors.Join(errs...)
}

// Frames returns an iterator over the remaining frames, as ReadFrame reads
// them. Each yielded slice is reused by the next iteration.
func (r *Record) Frames() iter.Seq2[[]Sample, error] {
	return func(yield func([]Sample, error) bool) {
		frame := make([]Sample, len(r.Signals()))
		for {
			err := r.ReadFrame(frame)
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil && !isChecksum(err) {
				yield(nil, err)
				return
			}
			if !yield(frame, err) {
				return
			}
		}
	}
}

// Seek moves every signal group to frame t. Negative (time of day) values
// are measured from the base time. Groups are only moved if all of them can
// be.
func (r *Record) Seek(t Time) error {
	if r.state != stateOpen {
		return ErrClosed
	}

	target := int64(t.Abs())
	prev := make([]int64, len(r.groups))
	for i, g := range r.groups {
		prev[i] = g.pos
		if err := g.seek(target); err != nil {
			// Put the groups already moved back.
			for j := 0; j < i; j++ {
				_ = r.groups[j].seek(prev[j])
			}
			return err
		}
	}
	for i := range r.gpos {
		r.gpos[i] = target
	}

	r.logger.Debug().Int64("frame", target).Msg("Seek")
	return nil
}

// SeekGroup moves only group g to frame t, leaving the others where they
// are.
func (r *Record) SeekGroup(g int, t Time) error {
	if r.state != stateOpen {
		return ErrClosed
	}
	if g < 0 || g >= len(r.groups) {
		return fmt.Errorf("%w: %d", ErrInvalidGroup, g)
	}
	target := int64(t.Abs())
	if err := r.groups[g].seek(target); err != nil {
		return err
	}
	r.gpos[g] = target
	return nil
}

// Groups returns the number of signal groups.
func (r *Record) Groups() int { return len(r.groups) }

func average(v []Sample) Sample {
	if len(v) == 1 {
		return v[0]
	}
	sum := 0
	for _, s := range v {
		if s == InvalidSample {
			return InvalidSample
		}
		sum += int(s)
	}
	return Sample(sum / len(v))
}

func isChecksum(err error) bool {
	var ce *ChecksumError
	return errors.As(err, &ce)
}
