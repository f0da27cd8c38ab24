// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/OpenPSG/wfdb"
)

func newRdannCommand(a *app) *cobra.Command {
	var (
		from, to string
		follow   bool
	)

	cmd := &cobra.Command{
		Use:   "rdann RECORD ANNOTATOR",
		Short: "Print the annotations of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.openRecord(args[0])
			if err != nil {
				return err
			}
			defer rec.Close()

			ann, err := rec.OpenAnnotator(wfdb.AnnotatorInfo{Name: args[1], Stat: wfdb.StatRead})
			if err != nil {
				return err
			}

			clock := rec.Clock()
			if f := ann.Frequency(); f > 0 {
				clock.Frequency = f
			}
			start, err := clock.ParseTime(from)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
			end := wfdb.Time(math.MaxInt64)
			if to != "" {
				if end, err = clock.ParseTime(to); err != nil {
					return fmt.Errorf("invalid --to: %w", err)
				}
				end = end.Abs()
			}

			out := cmd.OutOrStdout()
			emit := func(an wfdb.Annotation) bool {
				if an.Time >= end {
					return false
				}
				if an.Time >= start.Abs() {
					printAnnotation(out, clock, an)
				}
				return true
			}

			count := 0
			for an, err := range ann.All() {
				if follow && errors.Is(err, wfdb.ErrPhysicalEOF) {
					break
				}
				if err != nil {
					return err
				}
				count++
				if !emit(an) {
					return nil
				}
			}
			if !follow {
				return nil
			}

			// Annotation files are looked up next to the header first.
			hea, err := a.searchPath().Find(args[0] + wfdb.HeaderExt)
			if err != nil {
				return err
			}
			path := filepath.Join(filepath.Dir(hea), filepath.Base(args[0])+"."+args[1])

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a.logger.Info().Str("file", path).Msg("Following annotations")
			return followAnnotations(ctx, path, count, emit)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "print annotations from this time on")
	cmd.Flags().StringVar(&to, "to", "", "stop at this time")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep printing annotations appended to the file")
	return cmd
}

func printAnnotation(w io.Writer, clock wfdb.Clock, an wfdb.Annotation) {
	fmt.Fprintf(w, "%12s %8d %5s %4d %4d %4d", clock.FormatTimeMS(an.Time), an.Time, an.Type.Mnemonic(),
		an.SubType, an.Channel, an.Num)
	if len(an.Aux) > 0 {
		fmt.Fprintf(w, "\t%s", an.AuxString())
	}
	fmt.Fprintln(w)
}

// followAnnotations waits for path to change and passes every annotation
// past the first seen ones to emit, until emit returns false or ctx ends. A
// file still being written ends mid-annotation, which is not an error.
func followAnnotations(ctx context.Context, path string, seen int, emit func(wfdb.Annotation) bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("error creating watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so files replaced by rename are followed too.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("error watching %s: %w", path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			more, n, err := readSince(path, seen, emit)
			if err != nil {
				return err
			}
			seen = n
			if !more {
				return nil
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("error watching %s: %w", path, err)
		}
	}
}

// readSince rereads path, skipping the first seen annotations. It returns
// whether emit wants more and the number of annotations read in total.
func readSince(path string, seen int, emit func(wfdb.Annotation) bool) (bool, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return true, seen, fmt.Errorf("%w: %s: %w", wfdb.ErrOpenInputAnnotation, path, err)
	}
	ar, err := wfdb.NewAnnotationReader(f)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, wfdb.ErrPhysicalEOF) {
			return true, seen, nil
		}
		return true, seen, err
	}
	defer ar.Close()

	n := 0
	for an, err := range ar.All() {
		if errors.Is(err, wfdb.ErrPhysicalEOF) {
			break
		}
		if err != nil {
			return true, max(n, seen), err
		}
		n++
		if n <= seen {
			continue
		}
		if !emit(an) {
			return false, n, nil
		}
	}
	return true, max(n, seen), nil
}
