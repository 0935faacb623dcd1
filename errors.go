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
	"errors"
	"fmt"
)

var (
	ErrIO                  = errors.New("wfm: i/o failure")
	ErrInvalidMagic        = errors.New("wfm: invalid byte order marker")
	ErrUnsupportedVersion  = errors.New("wfm: unsupported version")
	ErrNoFastFrameData     = errors.New("wfm: no fastframe data")
	ErrInvalidDimensions   = errors.New("wfm: unsupported dimension count")
	ErrUnsupportedTimeBase = errors.New("wfm: unsupported time base")
	ErrCorruptHeader       = errors.New("wfm: corrupt header")
	ErrFrameOutOfBounds    = errors.New("wfm: frame out of bounds")
	ErrUnexpectedEOF       = errors.New("wfm: unexpected end of data")
	ErrOffsetOutOfRange    = errors.New("wfm: offset out of range")
	ErrNotLoaded           = errors.New("wfm: no capture loaded")
)

// FormatError describes a structural problem found while decoding a file.
type FormatError struct {
	Kind     error  // One of the Err* sentinels
	Field    string // Field or region being decoded
	Offset   int64  // Byte offset where the problem was detected
	Expected any
	Actual   any
}

func (e *FormatError) Error() string {
	msg := fmt.Sprintf("%v: %s at offset %d", e.Kind, e.Field, e.Offset)
	if e.Expected != nil || e.Actual != nil {
		msg += fmt.Sprintf(" (expected %v, got %v)", e.Expected, e.Actual)
	}
	return msg
}

func (e *FormatError) Unwrap() error {
	return e.Kind
}

func formatError(kind error, field string, offset int64, expected, actual any) *FormatError {
	return &FormatError{
		Kind:     kind,
		Field:    field,
		Offset:   offset,
		Expected: expected,
		Actual:   actual,
	}
}
