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
	"bytes"
	"encoding/binary"
	"math"
	"strings"
)

// byteCursor is a bounds checked sequential reader over an in-memory buffer.
// All multi-byte reads use the cursor's byte order.
type byteCursor struct {
	b     []byte
	pos   int64
	order binary.ByteOrder
}

func newByteCursor(b []byte, order binary.ByteOrder) *byteCursor {
	return &byteCursor{b: b, order: order}
}

func (c *byteCursor) offset() int64 {
	return c.pos
}

func (c *byteCursor) remaining() int64 {
	return int64(len(c.b)) - c.pos
}

// seek moves the cursor to an absolute offset. Seeking to the end of the
// buffer is allowed, any further is not.
func (c *byteCursor) seek(off int64) error {
	if off < 0 || off > int64(len(c.b)) {
		return formatError(ErrOffsetOutOfRange, "seek", off, int64(len(c.b)), off)
	}
	c.pos = off
	return nil
}

func (c *byteCursor) fixed(n int) ([]byte, error) {
	if n < 0 || int64(n) > c.remaining() {
		return nil, formatError(ErrUnexpectedEOF, "read", c.pos, n, c.remaining())
	}
	b := c.b[c.pos : c.pos+int64(n)]
	c.pos += int64(n)
	return b, nil
}

func (c *byteCursor) u8() (uint8, error) {
	b, err := c.fixed(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (c *byteCursor) i8() (int8, error) {
	v, err := c.u8()
	return int8(v), err
}

func (c *byteCursor) u16() (uint16, error) {
	b, err := c.fixed(2)
	if err != nil {
		return 0, err
	}
	return c.order.Uint16(b), nil
}

func (c *byteCursor) u32() (uint32, error) {
	b, err := c.fixed(4)
	if err != nil {
		return 0, err
	}
	return c.order.Uint32(b), nil
}

func (c *byteCursor) i32() (int32, error) {
	v, err := c.u32()
	return int32(v), err
}

func (c *byteCursor) f64() (float64, error) {
	b, err := c.fixed(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(c.order.Uint64(b)), nil
}

func (c *byteCursor) u32At(off int64) (uint32, error) {
	if err := c.seek(off); err != nil {
		return 0, err
	}
	return c.u32()
}

func (c *byteCursor) f64At(off int64) (float64, error) {
	if err := c.seek(off); err != nil {
		return 0, err
	}
	return c.f64()
}

// stringAt reads a fixed width, NUL padded text field.
func (c *byteCursor) stringAt(off int64, n int) (string, error) {
	if err := c.seek(off); err != nil {
		return "", err
	}
	b, err := c.fixed(n)
	if err != nil {
		return "", err
	}
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b)), nil
}
