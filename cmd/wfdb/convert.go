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
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/OpenPSG/wfdb/wav"
)

func newMit2WavCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mit2wav RECORD OUTPUT.wav",
		Short: "Convert a record to a 16-bit PCM WAV file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.openRecord(args[0])
			if err != nil {
				return err
			}
			defer rec.Close()

			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("error creating %s: %w", args[1], err)
			}

			frames, err := wav.Encode(f, rec)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}

			var size uint64
			if fi, err := os.Stat(args[1]); err == nil {
				size = uint64(fi.Size())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s frames, %s\n", args[1], humanize.Comma(frames), humanize.IBytes(size))
			return nil
		},
	}
}

func newWav2MitCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wav2mit INPUT.wav RECORD",
		Short: "Convert a 16-bit PCM WAV file to a format 16 record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("error opening %s: %w", args[0], err)
			}
			defer f.Close()

			hdr, err := wav.Decode(f, a.cfg.OutputDir, args[1], a.options()...)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d signals at %s Hz, %s frames\n",
				hdr.Record, len(hdr.Signals), hdr.Frequency, humanize.Comma(hdr.NumberOfSamples))
			return nil
		},
	}
}
