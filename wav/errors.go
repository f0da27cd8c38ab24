// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wav

import "errors"

var (
	// ErrNotWavFile indicates the input is not a RIFF/WAVE file.
	ErrNotWavFile = errors.New("not a WAV file")
	// ErrOnlyPCM16bitSupported indicates only 16-bit integer PCM is handled.
	ErrOnlyPCM16bitSupported = errors.New("only 16-bit PCM WAV is supported")
	// ErrUnsupportedRate indicates a sampling frequency WAV cannot carry.
	ErrUnsupportedRate = errors.New("sampling frequency is not a positive whole number")
)
