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
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/DataDog/zstd"
	"github.com/dgryski/go-farm"
	"github.com/rs/zerolog"
)

// zstdMagic prefixes every zstd frame.
var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// File is a WFM v3 FastFrame capture held entirely in memory.
// The zero value is not usable, create one with New.
type File struct {
	path   string
	data   []byte
	hdr    *Header
	frames []Frame
	log    zerolog.Logger
}

// Option configures a File.
type Option func(*File)

// WithLogger sets the logger used to report load progress.
func WithLogger(l zerolog.Logger) Option {
	return func(f *File) {
		f.log = l
	}
}

// New returns an empty File.
func New(opts ...Option) *File {
	f := &File{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Open creates a File and loads the capture at path into it.
func Open(path string, opts ...Option) (*File, error) {
	f := New(opts...)
	if err := f.LoadFile(path); err != nil {
		return nil, err
	}
	return f, nil
}

// LoadFile reads the whole file at path and decodes it. On failure the
// previously loaded capture, if any, is left untouched.
func (f *File) LoadFile(path string) error {
	data, err := readFile(path)
	if err != nil {
		return err
	}
	if err := f.load(path, data); err != nil {
		return fmt.Errorf("error loading %s: %w", path, err)
	}
	return nil
}

// Load decodes a capture already held in memory. zstd compressed captures
// are decompressed first. data must not be modified afterwards.
func (f *File) Load(data []byte) error {
	return f.load("", data)
}

func (f *File) load(path string, data []byte) error {
	if bytes.HasPrefix(data, zstdMagic) {
		plain, err := zstd.Decompress(nil, data)
		if err != nil {
			return fmt.Errorf("%w: error decompressing capture: %w", ErrIO, err)
		}
		f.log.Debug().Int("compressed", len(data)).Int("bytes", len(plain)).Msg("Decompressed capture")
		data = plain
	}

	hdr, err := ParseHeader(data)
	if err != nil {
		return fmt.Errorf("error parsing header: %w", err)
	}

	frames, err := ExtractFrames(hdr, data)
	if err != nil {
		return fmt.Errorf("error extracting frames: %w", err)
	}

	f.path = path
	f.data = data
	f.hdr = hdr
	f.frames = frames

	f.log.Debug().
		Str("path", path).
		Int("frames", hdr.NumFrames).
		Int("samplesPerFrame", hdr.SamplesPerFrame()).
		Int("bytes", len(data)).
		Msg("Loaded capture")

	return nil
}

func readFile(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	defer fh.Close()

	data, err := io.ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading %s: %w", ErrIO, path, err)
	}
	return data, nil
}

// Loaded reports whether a capture has been loaded.
func (f *File) Loaded() bool {
	return f.hdr != nil
}

// Path returns the path of the loaded capture, empty when it was loaded from memory.
func (f *File) Path() string {
	return f.path
}

// Header returns a copy of the parsed header. It is the zero Header until a
// capture has been loaded.
func (f *File) Header() Header {
	if f.hdr == nil {
		return Header{}
	}
	h := *f.hdr
	h.Triggers = slices.Clone(h.Triggers)
	return h
}

// NumFrames returns the number of frames in the loaded capture.
func (f *File) NumFrames() int {
	return len(f.frames)
}

// Frame returns frame i. ok is false when i is out of range.
func (f *File) Frame(i int) (frame Frame, ok bool) {
	if i < 0 || i >= len(f.frames) {
		return Frame{}, false
	}
	return f.frames[i], true
}

// Frames returns all frames in acquisition order. Only the slice is copied,
// the Samples of each frame still alias the File's samples and must not be
// modified.
func (f *File) Frames() []Frame {
	return append([]Frame(nil), f.frames...)
}

// RawFrame returns a copy of the raw codes of frame i's usable samples.
func (f *File) RawFrame(i int) ([]int8, bool) {
	if i < 0 || i >= len(f.frames) {
		return nil, false
	}
	start, _ := frameWindow(f.hdr, i)
	raw := f.data[start+f.hdr.DataStart : start+f.hdr.PostChargeStart]

	codes := make([]int8, len(raw))
	for n, b := range raw {
		codes[n] = int8(b)
	}
	return codes, true
}

// Time returns the time in seconds of sample n. Every frame shares the same
// time axis.
func (f *File) Time(n int) float64 {
	if f.hdr == nil {
		return 0
	}
	return f.hdr.Time(n)
}

// Fingerprint returns a stable 64-bit hash of the curve buffer, zero when
// nothing is loaded.
func (f *File) Fingerprint() uint64 {
	if f.hdr == nil {
		return 0
	}
	curve := f.data[f.hdr.CurveBufferOffset : f.hdr.CurveBufferOffset+f.hdr.CurveBufferLength]
	return farm.Fingerprint64(curve)
}
