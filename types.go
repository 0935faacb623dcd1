// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfm

import "time"

const (
	// Version3 is the version tag of the only supported WFM revision.
	Version3 = ":WFM#003"

	// ByteOrderLittleEndian is the byte order marker written by Intel hosts.
	ByteOrderLittleEndian uint16 = 0x0F0F

	// HeaderSize is the size of the fixed WFM v3 header in bytes.
	HeaderSize = 838

	updateSpecSize = 24
	curveSpecSize  = 30
	frameSpecSize  = updateSpecSize + curveSpecSize
)

// Header represents a parsed WFM v3 file header.
type Header struct {
	ByteOrderMarker   uint16  // Byte order verification tag (0x0F0F)
	Version           string  // Version tag, always ":WFM#003"
	BytesPerPoint     int     // Bytes per stored sample
	Label             string  // User assigned waveform label
	NumFrames         int     // Number of FastFrames in the file
	ImplicitDims      int     // Number of implicit (time) dimensions
	ExplicitDims      int     // Number of explicit (voltage) dimensions
	RecordType        int     // Waveform record type
	TimeBase          int     // Time base type (0 = BASE_TIME)
	VoltageScale      float64 // Volts per raw code
	VoltageOffset     float64 // Volts added after scaling
	VerticalUnits     string  // Units of the explicit dimension (e.g. V)
	TimeScale         float64 // Seconds per sample
	TimeStart         float64 // Time of the first sample in seconds
	HorizontalUnits   string  // Units of the implicit dimension (e.g. s)
	CurveBufferOffset int64   // Byte offset of the curve buffer in the file
	CurveBufferLength int64   // Length of the curve buffer in bytes
	FrameRecordLength int64   // Length of one frame record in bytes
	PreChargeStart    int64   // Frame relative offset of the pre-charge region
	DataStart         int64   // Frame relative offset of the first usable sample
	PostChargeStart   int64   // Frame relative offset of the post-charge region
	PostChargeStop    int64   // Frame relative end of the post-charge region
	Triggers          []Trigger
}

// SamplesPerFrame returns the number of usable samples in every frame.
func (h *Header) SamplesPerFrame() int {
	return int(h.PostChargeStart - h.DataStart)
}

// SampleRate returns the acquisition rate in samples per second.
func (h *Header) SampleRate() float64 {
	return 1 / h.TimeScale
}

// Time returns the time in seconds of sample n of any frame.
func (h *Header) Time(n int) float64 {
	// The explicit conversion rounds the product and keeps it from being
	// fused into a multiply-add.
	return h.TimeStart + float64(float64(n)*h.TimeScale)
}

// Trigger holds the timing of a single FastFrame acquisition.
type Trigger struct {
	PointOffset uint32    // Offset of the trigger point within the record
	Offset      float64   // Trigger time offset as a fraction of a sample
	Time        time.Time // Absolute trigger time (UTC)
}

// Frame is one FastFrame record scaled to volts.
type Frame struct {
	Index   int
	Samples []float64 // Shared with the owning File, must not be modified
	Trigger Trigger
}

// Layout selects the CSV arrangement of the frame table.
type Layout int

const (
	// LayoutSamples writes one row per sample: time, then one voltage per frame.
	LayoutSamples Layout = iota
	// LayoutFrames writes the sample index, then one column per frame.
	LayoutFrames
	// LayoutRecords writes one row per sample per frame: frame, sample, time, voltage.
	LayoutRecords
)

func (l Layout) String() string {
	switch l {
	case LayoutSamples:
		return "samples"
	case LayoutFrames:
		return "frames"
	case LayoutRecords:
		return "records"
	default:
		return "unknown"
	}
}
