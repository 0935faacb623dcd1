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
	"encoding/binary"
	"fmt"
	"math"
	"time"
)

// Fixed header field offsets of the WFM v3 layout.
const (
	offVersion         = 0x002
	offBytesPerPoint   = 0x00f
	offCurveOffset     = 0x010
	offLabel           = 0x028
	offFrameCount      = 0x048
	offSetType         = 0x04e
	offImplicitDims    = 0x072
	offExplicitDims    = 0x076
	offRecordType      = 0x07a
	offVoltageScale    = 0x0a8
	offVoltageOffset   = 0x0b0
	offVerticalUnits   = 0x0bc
	offTimeScale       = 0x1e8
	offTimeStart       = 0x1f0
	offHorizontalUnits = 0x1fc
	offTimeBase        = 0x308
	offUpdateSpec      = 0x310
	offPreChargeStart  = 0x332
	offDataStart       = 0x336
	offPostChargeStart = 0x33a
	offPostChargeStop  = 0x33e
	offEndOfCurve      = 0x342

	labelSize = 32
	unitsSize = 20

	setTypeFastFrame = 1
	timeBaseTime     = 0
)

// ParseHeader decodes and validates the header of a WFM v3 file. data must
// hold at least the fixed header and the per-frame update/curve spec tables
// that follow it.
func ParseHeader(data []byte) (*Header, error) {
	return parseHeader(newByteCursor(data, binary.LittleEndian))
}

func parseHeader(c *byteCursor) (*Header, error) {
	hdr := &Header{}

	var err error
	hdr.ByteOrderMarker, err = c.u16()
	if err != nil {
		return nil, fmt.Errorf("error reading byte order marker: %w", err)
	}
	if hdr.ByteOrderMarker != ByteOrderLittleEndian {
		return nil, formatError(ErrInvalidMagic, "byte order marker", 0,
			fmt.Sprintf("%#06x", ByteOrderLittleEndian), fmt.Sprintf("%#06x", hdr.ByteOrderMarker))
	}

	version, err := c.fixed(len(Version3))
	if err != nil {
		return nil, fmt.Errorf("error reading version: %w", err)
	}
	if string(version) != Version3 {
		return nil, formatError(ErrUnsupportedVersion, "version", offVersion, Version3, fmt.Sprintf("%q", version))
	}
	hdr.Version = string(version)

	if len(c.b) < HeaderSize {
		return nil, formatError(ErrUnexpectedEOF, "header", int64(len(c.b)), HeaderSize, len(c.b))
	}

	setType, err := c.u32At(offSetType)
	if err != nil {
		return nil, fmt.Errorf("error reading set type: %w", err)
	}
	if setType != setTypeFastFrame {
		return nil, formatError(ErrNoFastFrameData, "set type", offSetType, setTypeFastFrame, setType)
	}

	// The file stores the frame count minus one.
	frameCount, err := c.u32At(offFrameCount)
	if err != nil {
		return nil, fmt.Errorf("error reading frame count: %w", err)
	}
	if frameCount == math.MaxUint32 {
		return nil, formatError(ErrNoFastFrameData, "frame count", offFrameCount, "at least 1 frame", 0)
	}
	hdr.NumFrames = int(frameCount) + 1

	implicitDims, err := c.u32At(offImplicitDims)
	if err != nil {
		return nil, fmt.Errorf("error reading implicit dimension count: %w", err)
	}
	explicitDims, err := c.u32At(offExplicitDims)
	if err != nil {
		return nil, fmt.Errorf("error reading explicit dimension count: %w", err)
	}
	if implicitDims != 1 || explicitDims != 1 {
		return nil, formatError(ErrInvalidDimensions, "dimension count", offImplicitDims,
			"1 implicit, 1 explicit", fmt.Sprintf("%d implicit, %d explicit", implicitDims, explicitDims))
	}
	hdr.ImplicitDims = int(implicitDims)
	hdr.ExplicitDims = int(explicitDims)

	timeBase, err := c.u32At(offTimeBase)
	if err != nil {
		return nil, fmt.Errorf("error reading time base: %w", err)
	}
	if timeBase != timeBaseTime {
		return nil, formatError(ErrUnsupportedTimeBase, "time base", offTimeBase, timeBaseTime, timeBase)
	}
	hdr.TimeBase = int(timeBase)

	recordType, err := c.u32At(offRecordType)
	if err != nil {
		return nil, fmt.Errorf("error reading record type: %w", err)
	}
	hdr.RecordType = int(recordType)

	if err := c.seek(offBytesPerPoint); err != nil {
		return nil, err
	}
	bytesPerPoint, err := c.u8()
	if err != nil {
		return nil, fmt.Errorf("error reading bytes per point: %w", err)
	}
	hdr.BytesPerPoint = int(bytesPerPoint)

	if hdr.Label, err = c.stringAt(offLabel, labelSize); err != nil {
		return nil, fmt.Errorf("error reading label: %w", err)
	}
	if hdr.VerticalUnits, err = c.stringAt(offVerticalUnits, unitsSize); err != nil {
		return nil, fmt.Errorf("error reading vertical units: %w", err)
	}
	if hdr.HorizontalUnits, err = c.stringAt(offHorizontalUnits, unitsSize); err != nil {
		return nil, fmt.Errorf("error reading horizontal units: %w", err)
	}

	if err := readScaling(c, hdr); err != nil {
		return nil, err
	}
	if err := readCurveLayout(c, hdr); err != nil {
		return nil, err
	}
	if err := readTriggers(c, hdr); err != nil {
		return nil, err
	}

	return hdr, nil
}

func readScaling(c *byteCursor, hdr *Header) error {
	fields := []struct {
		name string
		off  int64
		dst  *float64
	}{
		{"voltage scale", offVoltageScale, &hdr.VoltageScale},
		{"voltage offset", offVoltageOffset, &hdr.VoltageOffset},
		{"time scale", offTimeScale, &hdr.TimeScale},
		{"time start", offTimeStart, &hdr.TimeStart},
	}
	for _, f := range fields {
		v, err := c.f64At(f.off)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", f.name, err)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return formatError(ErrCorruptHeader, f.name, f.off, "finite value", v)
		}
		*f.dst = v
	}

	if hdr.TimeScale <= 0 {
		return formatError(ErrCorruptHeader, "time scale", offTimeScale, "positive value", hdr.TimeScale)
	}
	return nil
}

// readCurveLayout reads frame 0's curve spec. Every frame record in the curve
// buffer shares this layout.
func readCurveLayout(c *byteCursor, hdr *Header) error {
	curveOffset, err := c.u32At(offCurveOffset)
	if err != nil {
		return fmt.Errorf("error reading curve buffer offset: %w", err)
	}
	hdr.CurveBufferOffset = int64(curveOffset)

	minCurveOffset := int64(HeaderSize) + int64(hdr.NumFrames-1)*frameSpecSize
	if hdr.CurveBufferOffset < minCurveOffset {
		return formatError(ErrCorruptHeader, "curve buffer offset", offCurveOffset,
			fmt.Sprintf(">= %d", minCurveOffset), hdr.CurveBufferOffset)
	}

	fields := []struct {
		name string
		off  int64
		dst  *int64
	}{
		{"pre-charge start", offPreChargeStart, &hdr.PreChargeStart},
		{"data start", offDataStart, &hdr.DataStart},
		{"post-charge start", offPostChargeStart, &hdr.PostChargeStart},
		{"post-charge stop", offPostChargeStop, &hdr.PostChargeStop},
		{"frame record length", offEndOfCurve, &hdr.FrameRecordLength},
	}
	for _, f := range fields {
		v, err := c.u32At(f.off)
		if err != nil {
			return fmt.Errorf("error reading %s: %w", f.name, err)
		}
		*f.dst = int64(v)
	}

	// Some writers leave the end-of-curve offset unset, the post-charge stop
	// then closes the record.
	if hdr.FrameRecordLength == 0 {
		hdr.FrameRecordLength = hdr.PostChargeStop
	}
	hdr.CurveBufferLength = int64(hdr.NumFrames) * hdr.FrameRecordLength

	// Offsets are frame relative and must be ordered inside one record.
	bounds := []struct {
		name  string
		off   int64
		lo    int64
		value int64
	}{
		{"data start", offDataStart, hdr.PreChargeStart, hdr.DataStart},
		{"post-charge start", offPostChargeStart, hdr.DataStart + 1, hdr.PostChargeStart},
		{"post-charge stop", offPostChargeStop, hdr.PostChargeStart, hdr.PostChargeStop},
		{"frame record length", offEndOfCurve, hdr.PostChargeStop, hdr.FrameRecordLength},
	}
	for _, b := range bounds {
		if b.value < b.lo {
			return formatError(ErrCorruptHeader, b.name, b.off, fmt.Sprintf(">= %d", b.lo), b.value)
		}
	}
	return nil
}

// readTriggers reads frame 0's update spec from the fixed header and the
// update specs of the remaining frames from the table following the header.
func readTriggers(c *byteCursor, hdr *Header) error {
	tableEnd := int64(HeaderSize) + int64(hdr.NumFrames-1)*frameSpecSize
	if tableEnd > int64(len(c.b)) {
		return formatError(ErrUnexpectedEOF, "frame spec table", int64(len(c.b)), tableEnd, len(c.b))
	}

	hdr.Triggers = make([]Trigger, hdr.NumFrames)
	for i := range hdr.Triggers {
		off := int64(offUpdateSpec)
		if i > 0 {
			off = int64(HeaderSize) + int64(i-1)*updateSpecSize
		}
		if err := c.seek(off); err != nil {
			return err
		}
		trig, err := readUpdateSpec(c)
		if err != nil {
			return fmt.Errorf("error reading update spec of frame %d: %w", i, err)
		}
		hdr.Triggers[i] = trig
	}
	return nil
}

func readUpdateSpec(c *byteCursor) (Trigger, error) {
	pointOffset, err := c.u32()
	if err != nil {
		return Trigger{}, err
	}
	ttOffset, err := c.f64()
	if err != nil {
		return Trigger{}, err
	}
	fracSec, err := c.f64()
	if err != nil {
		return Trigger{}, err
	}
	gmtSec, err := c.i32()
	if err != nil {
		return Trigger{}, err
	}

	var nsec int64
	if fracSec >= 0 && fracSec < 1 {
		nsec = int64(fracSec * float64(time.Second))
	}
	return Trigger{
		PointOffset: pointOffset,
		Offset:      ttOffset,
		Time:        time.Unix(int64(gmtSec), nsec).UTC(),
	}, nil
}
