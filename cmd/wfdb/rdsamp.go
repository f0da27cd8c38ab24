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
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/OpenPSG/wfdb"
)

func newRdsampCommand(a *app) *cobra.Command {
	var (
		from, to string
		signals  []int
		physical bool
		showTime bool
	)

	cmd := &cobra.Command{
		Use:   "rdsamp RECORD",
		Short: "Print samples of a record, one frame per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rec, err := a.openRecord(args[0])
			if err != nil {
				return err
			}
			defer rec.Close()

			clock := rec.Clock()
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

			sigs := rec.Signals()
			if len(signals) == 0 {
				for i := range sigs {
					signals = append(signals, i)
				}
			}
			for _, s := range signals {
				if s < 0 || s >= len(sigs) {
					return fmt.Errorf("%w: signal %d of %d", wfdb.ErrOutOfRange, s, len(sigs))
				}
			}

			if start != 0 {
				if err := rec.Seek(start); err != nil {
					return err
				}
			}

			out := bufio.NewWriter(cmd.OutOrStdout())
			frame := make([]wfdb.Sample, len(sigs))
			for t := start.Abs(); t < end; t++ {
				err := rec.ReadFrame(frame)
				if errors.Is(err, io.EOF) {
					break
				}
				var ce *wfdb.ChecksumError
				if errors.As(err, &ce) {
					a.logger.Warn().Err(err).Msg("Checksum mismatch")
				} else if err != nil {
					return err
				}

				if showTime {
					_, _ = out.WriteString(clock.FormatTimeMS(t))
				} else {
					_, _ = out.WriteString(strconv.FormatInt(int64(t), 10))
				}
				for _, s := range signals {
					_ = out.WriteByte('\t')
					_, _ = out.WriteString(formatSample(&sigs[s], frame[s], physical))
				}
				_ = out.WriteByte('\n')
			}
			return out.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "first frame, as a time or sNNN")
	cmd.Flags().StringVar(&to, "to", "", "stop before this frame, as a time or sNNN")
	cmd.Flags().IntSliceVar(&signals, "signals", nil, "signal numbers to print (default: all)")
	cmd.Flags().BoolVar(&physical, "physical", false, "print physical units instead of ADC units")
	cmd.Flags().BoolVar(&showTime, "time", false, "print elapsed time instead of the frame number")
	return cmd
}

func formatSample(sig *wfdb.Signal, v wfdb.Sample, physical bool) string {
	if v == wfdb.InvalidSample {
		return "-"
	}
	if physical {
		return strconv.FormatFloat(sig.ToPhys(v), 'f', 3, 64)
	}
	return strconv.Itoa(int(v))
}
