// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package wfmtest builds synthetic WFM v3 FastFrame captures for tests.
package wfmtest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/wfm"
	"github.com/stretchr/testify/require"
)

// Header offsets used to build and corrupt synthetic captures.
const (
	OffMarker          = 0x000
	OffVersion         = 0x002
	OffBytesPerPoint   = 0x00f
	OffCurveOffset     = 0x010
	OffLabel           = 0x028
	OffFrameCount      = 0x048
	OffSetType         = 0x04e
	OffImplicitDims    = 0x072
	OffExplicitDims    = 0x076
	OffVoltageScale    = 0x0a8
	OffVoltageOffset   = 0x0b0
	OffVerticalUnits   = 0x0bc
	OffTimeScale       = 0x1e8
	OffTimeStart       = 0x1f0
	OffHorizontalUnits = 0x1fc
	OffTimeBase        = 0x308
	OffUpdateSpec      = 0x310
	OffPreChargeStart  = 0x332
	OffDataStart       = 0x336
	OffPostChargeStart = 0x33a
	OffPostChargeStop  = 0x33e
	OffEndOfCurve      = 0x342
)

// Capture describes a synthetic WFM v3 FastFrame file.
type Capture struct {
	Label         string
	VoltageScale  float64
	VoltageOffset float64
	TimeScale     float64
	TimeStart     float64
	PreCharge     int
	PostCharge    int
	Frames        [][]int8
	TriggerSecs   []int32 // GMT trigger second of each frame
}

// NewCapture returns a capture of the given frames with 2 pre-charge and 3
// post-charge bytes per record, 10 mV per code and 1 ns per sample.
func NewCapture(frames ...[]int8) Capture {
	return Capture{
		Label:        "CH1",
		VoltageScale: 0.01,
		TimeScale:    1e-9,
		TimeStart:    -5e-6,
		PreCharge:    2,
		PostCharge:   3,
		Frames:       frames,
	}
}

// RecordLength returns the byte length of one frame record.
func (c Capture) RecordLength() int {
	return c.PreCharge + len(c.Frames[0]) + c.PostCharge
}

// CurveOffset returns the file offset of the curve buffer.
func (c Capture) CurveOffset() int {
	return wfm.HeaderSize + (len(c.Frames)-1)*54
}

// Bytes encodes the capture.
func (c Capture) Bytes() []byte {
	n := len(c.Frames)
	samples := len(c.Frames[0])
	recordLen := c.RecordLength()

	b := make([]byte, c.CurveOffset()+n*recordLen)
	le := binary.LittleEndian

	le.PutUint16(b[OffMarker:], 0x0F0F)
	copy(b[OffVersion:], ":WFM#003")
	b[OffBytesPerPoint] = 1
	le.PutUint32(b[OffCurveOffset:], uint32(c.CurveOffset()))
	copy(b[OffLabel:OffLabel+32], c.Label)
	le.PutUint32(b[OffFrameCount:], uint32(n-1))
	le.PutUint32(b[OffSetType:], 1)
	le.PutUint32(b[OffImplicitDims:], 1)
	le.PutUint32(b[OffExplicitDims:], 1)
	le.PutUint64(b[OffVoltageScale:], math.Float64bits(c.VoltageScale))
	le.PutUint64(b[OffVoltageOffset:], math.Float64bits(c.VoltageOffset))
	copy(b[OffVerticalUnits:], "V")
	le.PutUint64(b[OffTimeScale:], math.Float64bits(c.TimeScale))
	le.PutUint64(b[OffTimeStart:], math.Float64bits(c.TimeStart))
	copy(b[OffHorizontalUnits:], "s")
	le.PutUint32(b[OffTimeBase:], 0)

	le.PutUint32(b[OffPreChargeStart:], 0)
	le.PutUint32(b[OffDataStart:], uint32(c.PreCharge))
	le.PutUint32(b[OffPostChargeStart:], uint32(c.PreCharge+samples))
	le.PutUint32(b[OffPostChargeStop:], uint32(recordLen))
	le.PutUint32(b[OffEndOfCurve:], uint32(recordLen))

	for i := 0; i < n; i++ {
		off := OffUpdateSpec
		if i > 0 {
			off = wfm.HeaderSize + (i-1)*24
		}
		le.PutUint32(b[off:], uint32(c.PreCharge))
		le.PutUint64(b[off+4:], math.Float64bits(0.25))
		le.PutUint64(b[off+12:], math.Float64bits(0.5))
		if i < len(c.TriggerSecs) {
			le.PutUint32(b[off+20:], uint32(c.TriggerSecs[i]))
		}
	}

	for i, frame := range c.Frames {
		record := b[c.CurveOffset()+i*recordLen:]
		// Charge regions are filled with codes that must never show up in samples.
		for j := 0; j < c.PreCharge; j++ {
			record[j] = 0x7f
		}
		for j, code := range frame {
			record[c.PreCharge+j] = byte(code)
		}
		for j := 0; j < c.PostCharge; j++ {
			record[c.PreCharge+samples+j] = 0x80
		}
	}

	return b
}

// WriteFile writes data to name inside a fresh temporary directory.
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// PutU32 stores a little-endian uint32 at off.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:], v)
}

// PutF64 stores a little-endian float64 at off.
func PutF64(b []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(b[off:], math.Float64bits(v))
}
