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
	"iter"
	"os"
	"path/filepath"
)

// Annotator is an annotation file of a record, open for reading or writing.
// Input and output annotators are numbered separately, in the order they
// were opened.
type Annotator struct {
	Number int
	Info   AnnotatorInfo

	r      *AnnotationReader
	w      *AnnotationWriter
	closed bool
}

// OpenAnnotator opens the annotation file of the record named by info.Name,
// which is also the file's extension. AHA format files are not supported.
func (r *Record) OpenAnnotator(info AnnotatorInfo) (*Annotator, error) {
	switch info.Stat {
	case StatRead:
		return r.openInput(info)
	case StatWrite:
		return r.openOutput(info)
	default:
		return nil, fmt.Errorf("%w: %s", ErrIllegalAccessMode, info.Stat)
	}
}

func (r *Record) openInput(info AnnotatorInfo) (*Annotator, error) {
	name := r.name + "." + info.Name
	dirs := r.opts.searchPath
	if r.dir != "" {
		dirs = append(SearchPath{r.dir}, dirs...)
	}
	path, err := dirs.Find(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenInputAnnotation, name, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenInputAnnotation, name, err)
	}

	ar, err := NewAnnotationReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenInputAnnotation, name, err)
	}

	a := &Annotator{Number: r.nIn, Info: info, r: ar}
	ar.SetNumber(a.Number)
	r.nIn++
	r.annotators = append(r.annotators, a)

	r.logger.Debug().Str("annotator", info.Name).Int("number", a.Number).Msg("Opened input annotator")
	return a, nil
}

func (r *Record) openOutput(info AnnotatorInfo) (*Annotator, error) {
	name := filepath.Join(r.opts.outputDir, filepath.Base(r.name)+"."+info.Name)
	f, err := os.Create(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenOutputAnnotation, name, err)
	}

	aw, err := NewAnnotationWriter(f, r.opts.annFreq)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrOpenOutputAnnotation, name, err)
	}

	a := &Annotator{Number: r.nOut, Info: info, w: aw}
	r.nOut++
	r.annotators = append(r.annotators, a)

	r.logger.Debug().Str("annotator", info.Name).Int("number", a.Number).Msg("Opened output annotator")
	return a, nil
}

// Annotators returns the annotators opened and not yet closed.
func (r *Record) Annotators() []*Annotator {
	var out []*Annotator
	for _, a := range r.annotators {
		if !a.closed {
			out = append(out, a)
		}
	}
	return out
}

// Annotator returns the open annotator with the given number and direction.
func (r *Record) Annotator(n int, stat Stat) (*Annotator, error) {
	for _, a := range r.annotators {
		if !a.closed && a.Number == n && a.Info.Stat == stat {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s annotator %d", ErrIncorrectAnnotator, stat, n)
}

// ReadAnnotation reads the next annotation of input annotator n.
func (r *Record) ReadAnnotation(n int) (Annotation, error) {
	a, err := r.Annotator(n, StatRead)
	if err != nil {
		return Annotation{}, err
	}
	return a.Read()
}

// WriteAnnotation writes ann to output annotator n.
func (r *Record) WriteAnnotation(n int, ann Annotation) error {
	a, err := r.Annotator(n, StatWrite)
	if err != nil {
		return err
	}
	return a.Write(ann)
}

// CloseAnnotators closes every annotator. Numbering restarts from zero.
func (r *Record) CloseAnnotators() error {
	var errs []error
	for _, a := range r.annotators {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.annotators = nil
	r.nIn, r.nOut = 0, 0
	return errors.Join(errs...)
}

// Frequency returns the time resolution of the annotator's times, when the
// file records one; zero otherwise.
func (a *Annotator) Frequency() Frequency {
	if a.r != nil {
		return a.r.Frequency()
	}
	return 0
}

func (a *Annotator) reader() (*AnnotationReader, error) {
	if a.closed {
		return nil, fmt.Errorf("%w: annotator %s is closed", ErrInvalidOperation, a.Info.Name)
	}
	if a.r == nil {
		return nil, fmt.Errorf("%w: annotator %s is open for writing", ErrIllegalAccessMode, a.Info.Name)
	}
	return a.r, nil
}

// Read returns the next annotation, or io.EOF after the last.
func (a *Annotator) Read() (Annotation, error) {
	ar, err := a.reader()
	if err != nil {
		return Annotation{}, err
	}
	return ar.Read()
}

// Peek returns the next annotation without consuming it.
func (a *Annotator) Peek() (Annotation, error) {
	ar, err := a.reader()
	if err != nil {
		return Annotation{}, err
	}
	return ar.Peek()
}

// Unread pushes one annotation back.
func (a *Annotator) Unread(ann Annotation) error {
	ar, err := a.reader()
	if err != nil {
		return err
	}
	return ar.Unread(ann)
}

// IsEOF reports whether the next Read would fail. Output annotators have no
// end to test for and return ErrIllegalAccessMode.
func (a *Annotator) IsEOF() (bool, error) {
	ar, err := a.reader()
	if err != nil {
		return false, err
	}
	return ar.IsEOF(), nil
}

// SeekTime positions the annotator at the first annotation at or after t.
func (a *Annotator) SeekTime(t Time) error {
	ar, err := a.reader()
	if err != nil {
		return err
	}
	return ar.SeekTime(t)
}

// ReadAll reads the remaining annotations.
func (a *Annotator) ReadAll() ([]Annotation, error) {
	ar, err := a.reader()
	if err != nil {
		return nil, err
	}
	return ar.ReadAll()
}

// All returns an iterator over the remaining annotations.
func (a *Annotator) All() iter.Seq2[Annotation, error] {
	ar, err := a.reader()
	if err != nil {
		return func(yield func(Annotation, error) bool) {
			yield(Annotation{}, err)
		}
	}
	return ar.All()
}

// Write appends an annotation to an output annotator.
func (a *Annotator) Write(ann Annotation) error {
	if a.closed {
		return fmt.Errorf("%w: annotator %s is closed", ErrInvalidOperation, a.Info.Name)
	}
	if a.w == nil {
		return fmt.Errorf("%w: annotator %s is open for reading", ErrIllegalAccessMode, a.Info.Name)
	}
	return a.w.Write(ann)
}

// Close closes the annotation file. Output files get their end marker.
func (a *Annotator) Close() error {
	if a.closed {
		return nil
	}
	a.closed = true
	if a.w != nil {
		return a.w.Close()
	}
	return a.r.Close()
}
