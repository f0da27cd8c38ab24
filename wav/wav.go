// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package wav converts WFDB records to and from 16-bit PCM RIFF/WAVE files.
//
// Each signal becomes one channel and each frame one WAV frame. Samples are
// stored unscaled, so a WAV file converted back yields the original ADC
// values. Oversampled signals are averaged to one sample per frame.
package wav

import (
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/OpenPSG/wfdb"
)

const (
	bitDepth       = 16
	pcmAudioFormat = 1
	chunkFrames    = 4096
)

// Encode writes every remaining frame of the open record rec to w. It
// returns the number of frames written. Samples outside the 16-bit range,
// including invalid samples, are clamped.
func Encode(w io.WriteSeeker, rec *wfdb.Record) (int64, error) {
	signals := rec.Signals()
	if len(signals) == 0 {
		return 0, fmt.Errorf("%w: record has no signals", wfdb.ErrOutOfRange)
	}
	rate, err := sampleRate(rec.Frequency())
	if err != nil {
		return 0, err
	}

	enc := gowav.NewEncoder(w, rate, bitDepth, len(signals), pcmAudioFormat)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: len(signals), SampleRate: rate},
		Data:           make([]int, 0, chunkFrames*len(signals)),
		SourceBitDepth: bitDepth,
	}

	var frames int64
	for frame, err := range rec.Frames() {
		if err != nil {
			var ce *wfdb.ChecksumError
			if !errors.As(err, &ce) {
				_ = enc.Close()
				return frames, err
			}
		}
		for _, v := range frame {
			buf.Data = append(buf.Data, clamp16(int(v)))
		}
		frames++

		if len(buf.Data) == cap(buf.Data) {
			if err := enc.Write(buf); err != nil {
				_ = enc.Close()
				return frames, fmt.Errorf("error writing wav data: %w", err)
			}
			buf.Data = buf.Data[:0]
		}
	}

	if len(buf.Data) > 0 {
		if err := enc.Write(buf); err != nil {
			_ = enc.Close()
			return frames, fmt.Errorf("error writing wav data: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return frames, fmt.Errorf("error finalizing wav file: %w", err)
	}
	return frames, nil
}

// Decode reads a 16-bit PCM WAV file and writes it as a new format 16
// record called record into dir. The header of the new record is returned.
func Decode(r io.ReadSeeker, dir, record string, opts ...wfdb.Option) (*wfdb.Header, error) {
	dec := gowav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("error reading wav header: %w", err)
	}
	if dec.WavAudioFormat != pcmAudioFormat || dec.BitDepth != bitDepth {
		return nil, ErrOnlyPCM16bitSupported
	}
	channels := int(dec.NumChans)
	if channels == 0 || dec.SampleRate == 0 {
		return nil, ErrNotWavFile
	}

	hdr := wfdb.Header{
		Record:    record,
		Frequency: wfdb.Frequency(dec.SampleRate),
	}
	for i := 0; i < channels; i++ {
		hdr.Signals = append(hdr.Signals, wfdb.Signal{
			FileName:      record + ".dat",
			Format:        wfdb.Format16,
			Description:   fmt.Sprintf("channel %d", i),
			ADCResolution: bitDepth,
		})
	}

	w, err := wfdb.Create(dir, hdr, opts...)
	if err != nil {
		return nil, err
	}

	buf := &goaudio.IntBuffer{
		Format: dec.Format(),
		Data:   make([]int, chunkFrames*channels),
	}
	frame := make([]wfdb.Sample, channels)
	for {
		n, err := dec.PCMBuffer(buf)
		if err != nil && !errors.Is(err, io.EOF) {
			_ = w.Close()
			return nil, fmt.Errorf("error reading wav data: %w", err)
		}
		if n == 0 {
			break
		}

		// A trailing partial frame is dropped.
		for i := 0; i+channels <= n; i += channels {
			for c := 0; c < channels; c++ {
				frame[c] = wfdb.Sample(buf.Data[i+c])
			}
			if err := w.WriteFrame(frame); err != nil {
				_ = w.Close()
				return nil, err
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}

	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Header(), nil
}

func sampleRate(f wfdb.Frequency) (int, error) {
	rate := math.Round(float64(f))
	if rate < 1 || rate > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedRate, f)
	}
	return int(rate), nil
}

func clamp16(v int) int {
	return max(math.MinInt16, min(math.MaxInt16, v))
}
