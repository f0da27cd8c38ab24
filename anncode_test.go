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

	"github.com/OpenPSG/wfdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeNames(t *testing.T) {
	assert.Equal(t, "N", wfdb.Normal.Mnemonic())
	assert.Equal(t, "V", wfdb.PVC.String())
	assert.Equal(t, "PVC", wfdb.PVC.ECGName())
	assert.Equal(t, "Premature ventricular contraction", wfdb.PVC.Description())
	assert.Equal(t, "ACMAX", wfdb.MaxCode.ECGName())
	assert.Equal(t, "[45]", wfdb.Code(45).Mnemonic())

	c, err := wfdb.ParseCode("+")
	require.NoError(t, err)
	assert.Equal(t, wfdb.Rhythm, c)

	c, err = wfdb.ParseECGName("VFON")
	require.NoError(t, err)
	assert.Equal(t, wfdb.VFOn, c)

	_, err = wfdb.ParseCode("nope")
	require.ErrorIs(t, err, wfdb.ErrOutOfRange)
}

func TestCodeClasses(t *testing.T) {
	assert.True(t, wfdb.Normal.IsQRS())
	assert.True(t, wfdb.Arfct.IsQRS())
	assert.False(t, wfdb.Rhythm.IsQRS())
	assert.False(t, wfdb.Code(60).IsQRS())

	assert.Equal(t, wfdb.PosStandard, wfdb.PVC.Pos())
	assert.Equal(t, wfdb.PosAttachedHigh, wfdb.Note.Pos())
}

func TestCodeMaps(t *testing.T) {
	tests := []struct {
		code       wfdb.Code
		map1, map2 wfdb.Code
	}{
		{wfdb.LBBB, wfdb.Normal, wfdb.Normal},
		{wfdb.APC, wfdb.Normal, wfdb.SVPB},
		{wfdb.VEsc, wfdb.PVC, wfdb.PVC},
		{wfdb.PFus, wfdb.Fusion, wfdb.Fusion},
		{wfdb.Learn, wfdb.Learn, wfdb.Learn},
		{wfdb.Noise, wfdb.NotQRS, wfdb.NotQRS},
	}

	for _, tt := range tests {
		t.Run(tt.code.ECGName(), func(t *testing.T) {
			assert.Equal(t, tt.map1, tt.code.Map1())
			assert.Equal(t, tt.map2, tt.code.Map2())
		})
	}
}

func TestCodeAHA(t *testing.T) {
	assert.Equal(t, byte('N'), wfdb.LBBB.ToAHA(0))
	assert.Equal(t, byte('V'), wfdb.PVC.ToAHA(0))
	assert.Equal(t, byte('U'), wfdb.Noise.ToAHA(-1))
	assert.Equal(t, byte('O'), wfdb.Noise.ToAHA(0))
	assert.Equal(t, byte('R'), wfdb.ROnT.ToAHA(0))

	assert.Equal(t, wfdb.VFOn, wfdb.CodeFromAHA('['))
	assert.Equal(t, wfdb.Noise, wfdb.CodeFromAHA('U'))
	assert.Equal(t, wfdb.NotQRS, wfdb.CodeFromAHA('z'))
}

func TestCodeTable(t *testing.T) {
	t.Cleanup(func() { wfdb.DefaultCodeTable.Reset(42) })

	require.NoError(t, wfdb.DefaultCodeTable.Set(42, wfdb.CodeInfo{
		Mnemonic:    "k",
		Description: "Custom beat",
		QRS:         true,
		Pos:         wfdb.PosStandard,
	}))
	assert.Equal(t, "k", wfdb.Code(42).Mnemonic())
	assert.Equal(t, "Custom beat", wfdb.Code(42).Description())
	assert.True(t, wfdb.Code(42).IsQRS())

	c, err := wfdb.ParseCode("k")
	require.NoError(t, err)
	assert.Equal(t, wfdb.Code(42), c)

	require.ErrorIs(t, wfdb.DefaultCodeTable.Set(wfdb.Normal, wfdb.CodeInfo{Mnemonic: "x"}), wfdb.ErrOutOfRange)
	require.ErrorIs(t, wfdb.DefaultCodeTable.Set(49, wfdb.CodeInfo{Mnemonic: "x"}), wfdb.ErrOutOfRange)

	wfdb.DefaultCodeTable.Reset(42)
	assert.Equal(t, "[42]", wfdb.Code(42).Mnemonic())
	assert.False(t, wfdb.Code(42).IsQRS())
}
