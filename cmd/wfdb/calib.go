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
	"errors"
	"fmt"
	"io/fs"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/OpenPSG/wfdb"
)

func (a *app) loadCalibration() (*wfdb.CalibrationList, error) {
	if a.cfg.CalibrationFile == "" {
		return nil, fmt.Errorf("no calibration file: set --calibration or %s", wfdb.CalibrationEnv)
	}
	return wfdb.LoadCalibration(a.cfg.CalibrationFile)
}

func newCalibCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calib [RECORD...]",
		Short: "List calibrations, or show those matching the signals of records",
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.loadCalibration()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 0 {
				_, err := cal.WriteTo(tw)
				if err != nil {
					return err
				}
				return tw.Flush()
			}

			for _, name := range args {
				rec, err := a.openRecord(name)
				if err != nil {
					return err
				}
				for i, sig := range rec.Signals() {
					c, ok := cal.Lookup(sig.Description, sig.Units)
					if !ok {
						fmt.Fprintf(tw, "%s\t%d\t%s\t%s\tno calibration\n", name, i, sig.Description, sig.Units)
						continue
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%g %s/cm\n", name, i, sig.Description, sig.Units,
						c.SignalType, c.Scale, c.Units)
				}
				if err := rec.Close(); err != nil {
					return err
				}
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(newCalibAddCommand(a))
	return cmd
}

func newCalibAddCommand(a *app) *cobra.Command {
	var (
		c       wfdb.Calibration
		shape   string
		dc      bool
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "add SIGNAL-TYPE UNITS",
		Short: "Add a calibration to the calibration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cal, err := a.loadCalibration()
			if errors.Is(err, fs.ErrNotExist) {
				cal, err = &wfdb.CalibrationList{}, nil
			}
			if err != nil {
				return err
			}
			if replace {
				cal.Flush()
			}

			c.SignalType, c.Units = args[0], args[1]
			switch shape {
			case "square":
				c.Type = wfdb.CalSquare
			case "sine":
				c.Type = wfdb.CalSine
			case "sawtooth":
				c.Type = wfdb.CalSawtooth
			case "undefined":
				c.Type = wfdb.CalUndef
			default:
				return fmt.Errorf("%w: pulse shape %q", wfdb.ErrOutOfRange, shape)
			}
			if dc {
				c.Type |= wfdb.CalDC
			}

			if err := cal.Put(c); err != nil {
				return err
			}
			if err := cal.Save(a.cfg.CalibrationFile); err != nil {
				return err
			}
			a.logger.Info().Str("file", a.cfg.CalibrationFile).Int("entries", cal.Len()).Msg("Saved calibration")
			return nil
		},
	}

	cmd.Flags().Float64Var(&c.Low, "low", 0, "pulse low level (DC coupled pulses)")
	cmd.Flags().Float64Var(&c.High, "high", 0, "pulse high level")
	cmd.Flags().Float64Var(&c.Scale, "scale", 1, "customary plotting scale, units per cm")
	cmd.Flags().StringVar(&shape, "shape", "undefined", "pulse shape: square, sine, sawtooth or undefined")
	cmd.Flags().BoolVar(&dc, "dc", false, "the pulse is DC coupled")
	cmd.Flags().BoolVar(&replace, "replace", false, "discard the existing entries first")
	return cmd
}
