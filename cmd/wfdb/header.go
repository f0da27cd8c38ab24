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
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/OpenPSG/wfdb"
)

func newHeaderCommand(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "header RECORD...",
		Short: "Describe the records' headers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for i, name := range args {
				rec, err := a.openRecord(name)
				if err != nil {
					return err
				}

				if i > 0 {
					fmt.Fprintln(out)
				}
				if raw {
					err = wfdb.WriteHeader(out, rec.Header())
				} else {
					err = describe(out, rec)
				}
				if cerr := rec.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print the header in .hea form")
	return cmd
}

func describe(w io.Writer, rec *wfdb.Record) error {
	hdr := rec.Header()
	clock := rec.Clock()

	fmt.Fprintf(w, "Record %s\n", hdr.Record)
	fmt.Fprintf(w, "Sampling frequency: %s Hz\n", hdr.Frequency)
	if hdr.NumberOfSamples > 0 {
		fmt.Fprintf(w, "Length: %s frames (%s)\n",
			humanize.Comma(hdr.NumberOfSamples), clock.FormatTimeMS(wfdb.Time(hdr.NumberOfSamples)))
	} else {
		fmt.Fprintln(w, "Length: not specified")
	}
	if hdr.BaseTime != 0 || hdr.BaseDate != 0 {
		fmt.Fprintf(w, "Starting time: %s\n", startingTime(clock))
	}
	fmt.Fprintf(w, "Signals: %d in %d group(s)\n", len(hdr.Signals), rec.Groups())

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDescription\tFile\tFormat\tGain\tUnits\tADC zero\tInitial\tChecksum")
	for i, sig := range hdr.Signals {
		checksum := "-"
		if sig.HasChecksum {
			checksum = fmt.Sprint(sig.CheckSum)
		}
		format := sig.Format.String()
		if sig.SamplesPerFrame > 1 {
			format += fmt.Sprintf("x%d", sig.SamplesPerFrame)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			i, sig.Description, sig.FileName, format, sig.Gain, sig.Units, sig.ADCZero, sig.InitValue, checksum)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, line := range hdr.Info {
		fmt.Fprintf(w, "#%s\n", line)
	}
	return nil
}

func startingTime(clock wfdb.Clock) string {
	s := wfdb.FormatBaseTime(clock.BaseTime)
	if clock.BaseDate != 0 {
		s += " " + clock.BaseDate.String()
	}
	return s
}
