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

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/OpenPSG/wfdb"
)

// verifyResult is the outcome of reading one record from start to finish.
type verifyResult struct {
	frames    int64
	mismatch  []*wfdb.ChecksumError
	err       error
	checksums bool
}

func newVerifyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify RECORD...",
		Short: "Read records completely and check their checksums",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.verifyAll(cmd.Context(), args)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			failed := 0
			for i, name := range args {
				res := results[i]
				switch {
				case res.err != nil:
					failed++
					fmt.Fprintf(out, "%s: error: %v\n", name, res.err)
				case len(res.mismatch) > 0:
					failed++
					for _, ce := range res.mismatch {
						fmt.Fprintf(out, "%s: %v\n", name, ce)
					}
				case !res.checksums:
					fmt.Fprintf(out, "%s: %s frames read, no checksums to verify\n", name, humanize.Comma(res.frames))
				default:
					fmt.Fprintf(out, "%s: ok, %s frames\n", name, humanize.Comma(res.frames))
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d records failed verification", failed, len(args))
			}
			return nil
		},
	}
}

// verifyAll verifies records concurrently. Failures of individual records
// are reported in their results; only cancellation aborts the run.
func (a *app) verifyAll(ctx context.Context, names []string) ([]verifyResult, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.Workers)

	results := make([]verifyResult, len(names))
	for i, name := range names {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			results[i] = a.verify(name)
			a.logger.Debug().Str("record", name).Int64("frames", results[i].frames).Msg("Verified record")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (a *app) verify(name string) (res verifyResult) {
	rec, err := a.openRecord(name)
	if err != nil {
		res.err = err
		return res
	}
	defer func() {
		if err := rec.Close(); err != nil && res.err == nil {
			res.err = err
		}
	}()

	for _, sig := range rec.Signals() {
		res.checksums = res.checksums || sig.HasChecksum
	}
	if rec.NumberOfSamples() == 0 {
		res.checksums = false
	}

	frame := make([]wfdb.Sample, len(rec.Signals()))
	for {
		err := rec.ReadFrame(frame)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var ce *wfdb.ChecksumError
			if !errors.As(err, &ce) {
				res.err = fmt.Errorf("frame %d: %w", res.frames, err)
				return res
			}
			res.mismatch = append(res.mismatch, checksumErrors(err)...)
		}
		res.frames++
	}
	return res
}

// checksumErrors unpacks the checksum errors joined into err.
func checksumErrors(err error) []*wfdb.ChecksumError {
	var out []*wfdb.ChecksumError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, checksumErrors(e)...)
		}
		return out
	}
	var ce *wfdb.ChecksumError
	if errors.As(err, &ce) {
		out = append(out, ce)
	}
	return out
}
