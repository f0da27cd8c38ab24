// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfdb_test

import (
	"testing"
	"time"

	"github.com/OpenPSG/wfdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClockFormatInterval(t *testing.T) {
	c := wfdb.Clock{Frequency: 360}

	assert.Equal(t, "0:00", c.FormatTime(0))
	assert.Equal(t, "1:05", c.FormatTime(360*65))
	assert.Equal(t, "1:00:01", c.FormatTime(360*3601))
	assert.Equal(t, "0:00.500", c.FormatTimeMS(180))
	assert.Equal(t, 2.5, c.Seconds(900))
	assert.Equal(t, 1500*time.Millisecond, c.Duration(540))
	assert.Equal(t, wfdb.Time(720), c.Samples(2*time.Second))
}

func TestClockParseTime(t *testing.T) {
	c := wfdb.Clock{Frequency: 360}

	tests := []struct {
		in   string
		want wfdb.Time
	}{
		{"", 0},
		{"s100", 100},
		{"1:05", 23400},
		{"2.5", 900},
		{"1:00:00", 1296000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := c.ParseTime(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"sx", "s-1", "1:2:3:4", "a:00", "-5"} {
		_, err := c.ParseTime(bad)
		require.ErrorIs(t, err, wfdb.ErrOutOfRange, bad)
	}
}

func TestClockTimeOfDay(t *testing.T) {
	c := wfdb.Clock{Frequency: 100, BaseTime: 8 * time.Hour, BaseDate: mustDate(t, "01/02/2020")}

	got, err := c.ParseTime("[08:00:10]")
	require.NoError(t, err)
	assert.Equal(t, wfdb.Time(-1000), got)
	assert.True(t, got.IsClock())
	assert.Equal(t, wfdb.Time(1000), got.Abs())
	assert.Equal(t, "[08:00:10 01/02/2020]", c.FormatTime(got))

	// The next day, by date or by wrapping past midnight.
	got, err = c.ParseTime("[07:00:00 02/02/2020]")
	require.NoError(t, err)
	assert.Equal(t, wfdb.Time(-8280000), got)
	assert.Equal(t, "[07:00:00 02/02/2020]", c.FormatTime(got))

	wrapped, err := c.ParseTime("[07:00:00]")
	require.NoError(t, err)
	assert.Equal(t, got, wrapped)

	_, err = c.ParseTime("[07:00:00 01/02/2020]")
	require.ErrorIs(t, err, wfdb.ErrOutOfRange)
}

func TestDate(t *testing.T) {
	d := mustDate(t, "25/12/2020")
	assert.Equal(t, "25/12/2020", d.String())
	assert.Equal(t, d, wfdb.DateOf(time.Date(2020, 12, 25, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2020, 12, 25, 0, 0, 0, 0, time.UTC), d.Time())

	assert.Equal(t, "25/12/1920", mustDate(t, "25/12/20").String())
	assert.Empty(t, wfdb.Date(0).String())

	for _, bad := range []string{"31/02/2020", "1/13/2020", "2020-01-01", "a/b/c"} {
		_, err := wfdb.ParseDate(bad)
		require.ErrorIs(t, err, wfdb.ErrOutOfRange, bad)
	}
}

func TestBaseTime(t *testing.T) {
	d, err := wfdb.ParseBaseTime("[8:00:00.5]")
	require.NoError(t, err)
	assert.Equal(t, 8*time.Hour+500*time.Millisecond, d)
	assert.Equal(t, "8:00:00.500", wfdb.FormatBaseTime(d))
	assert.Equal(t, "0:01:05", wfdb.FormatBaseTime(65*time.Second))
}

func TestFrequencyAndGain(t *testing.T) {
	f, err := wfdb.NewFrequency(128)
	require.NoError(t, err)
	assert.Equal(t, "128", f.String())

	_, err = wfdb.NewFrequency(-1)
	require.ErrorIs(t, err, wfdb.ErrOutOfRange)

	assert.Equal(t, wfdb.DefaultGain, wfdb.Gain(0).OrDefault())
	assert.Equal(t, wfdb.Gain(12.5), wfdb.Gain(12.5).OrDefault())
	assert.Equal(t, "12.5", wfdb.Gain(12.5).String())
}
