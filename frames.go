// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfm

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ExtractFrames slices the curve buffer of data into frames and scales their
// raw codes to volts. data is the whole file, hdr its parsed header. Either
// every frame is extracted or an error is returned.
func ExtractFrames(hdr *Header, data []byte) ([]Frame, error) {
	if err := checkLayout(hdr, int64(len(data))); err != nil {
		return nil, err
	}
	samplesPerFrame := hdr.SamplesPerFrame()

	// Bounds are checked for every frame before anything is allocated.
	for i := 0; i < hdr.NumFrames; i++ {
		start, end := frameWindow(hdr, i)
		if end > int64(len(data)) {
			return nil, formatError(ErrFrameOutOfBounds, "frame record", start,
				fmt.Sprintf("frame %d ending at %d", i, end), fmt.Sprintf("buffer length %d", len(data)))
		}
	}

	arena := make([]float64, hdr.NumFrames*samplesPerFrame)
	frames := make([]Frame, hdr.NumFrames)
	for i := range frames {
		start, _ := frameWindow(hdr, i)
		raw := data[start+hdr.DataStart : start+hdr.PostChargeStart]

		samples := arena[i*samplesPerFrame : (i+1)*samplesPerFrame : (i+1)*samplesPerFrame]
		for n, b := range raw {
			samples[n] = scaleVoltage(int8(b), hdr.VoltageScale, hdr.VoltageOffset)
		}

		frames[i] = Frame{Index: i, Samples: samples}
		if i < len(hdr.Triggers) {
			frames[i].Trigger = hdr.Triggers[i]
		}
	}

	return frames, nil
}

// checkLayout rejects headers whose record layout cannot be sliced out of a
// buffer of size bytes.
func checkLayout(hdr *Header, size int64) error {
	if hdr == nil {
		return formatError(ErrCorruptHeader, "header", 0, "parsed header", nil)
	}
	if hdr.NumFrames < 0 {
		return formatError(ErrCorruptHeader, "frame count", offFrameCount, ">= 0", hdr.NumFrames)
	}
	if hdr.DataStart < 0 {
		return formatError(ErrCorruptHeader, "data start", offDataStart, ">= 0", hdr.DataStart)
	}
	if hdr.PostChargeStart <= hdr.DataStart {
		return formatError(ErrCorruptHeader, "post-charge start", offPostChargeStart,
			fmt.Sprintf("> %d", hdr.DataStart), hdr.PostChargeStart)
	}
	if hdr.FrameRecordLength < hdr.PostChargeStart {
		return formatError(ErrCorruptHeader, "frame record length", offEndOfCurve,
			fmt.Sprintf(">= %d", hdr.PostChargeStart), hdr.FrameRecordLength)
	}
	if hdr.CurveBufferOffset < 0 {
		return formatError(ErrCorruptHeader, "curve buffer offset", offCurveOffset, ">= 0", hdr.CurveBufferOffset)
	}
	// Keeps the per-frame window arithmetic from overflowing.
	if hdr.NumFrames > 0 && (hdr.CurveBufferOffset > size || hdr.FrameRecordLength > size-hdr.CurveBufferOffset) {
		return formatError(ErrFrameOutOfBounds, "frame record", hdr.CurveBufferOffset,
			fmt.Sprintf("%d byte record at %d", hdr.FrameRecordLength, hdr.CurveBufferOffset),
			fmt.Sprintf("buffer length %d", size))
	}
	return nil
}

// frameWindow returns the absolute byte range of frame i's record.
func frameWindow(hdr *Header, i int) (start, end int64) {
	start = hdr.CurveBufferOffset + int64(i)*hdr.FrameRecordLength
	return start, start + hdr.FrameRecordLength
}

// scaleVoltage converts a raw code to volts.
func scaleVoltage(code int8, scale, offset float64) float64 {
	// The explicit conversion rounds the product and keeps it from being
	// fused into a multiply-add, so results are identical on every platform.
	return float64(float64(code)*scale) + offset
}

// Stats summarises the samples of a frame.
type Stats struct {
	Min    float64
	Max    float64
	Mean   float64
	StdDev float64
}

// Stats computes summary statistics of the frame's samples.
func (f Frame) Stats() Stats {
	if len(f.Samples) == 0 {
		return Stats{}
	}
	mean, std := stat.MeanStdDev(f.Samples, nil)
	if len(f.Samples) == 1 {
		std = 0
	}
	return Stats{
		Min:    floats.Min(f.Samples),
		Max:    floats.Max(f.Samples),
		Mean:   mean,
		StdDev: std,
	}
}
