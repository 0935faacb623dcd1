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
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DataDog/zstd"
)

// CSVOptions controls CSV formatting.
type CSVOptions struct {
	Comma     rune // Field delimiter
	Precision int  // Significant digits, 0 or -1 for the shortest exact representation
	Header    bool // Write a header row
	Compress  bool // zstd compress the output file
}

// DefaultCSVOptions returns comma separated output with a header row and
// exact float formatting.
func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Comma:     ',',
		Precision: -1,
		Header:    true,
	}
}

// Format formats v with the configured precision.
func (o CSVOptions) Format(v float64) string {
	prec := o.Precision
	if prec == 0 {
		prec = -1
	}
	return strconv.FormatFloat(v, 'g', prec, 64)
}

// WriteCSV writes the frame table to path using the default options.
func (f *File) WriteCSV(path string, layout Layout) error {
	return f.WriteCSVWithOptions(path, layout, DefaultCSVOptions())
}

// WriteCSVWithOptions writes the frame table to path. The output is written
// to a temporary file that replaces path only once it is complete. Paths
// ending in .zst are always compressed.
func (f *File) WriteCSVWithOptions(path string, layout Layout, opts CSVOptions) error {
	if f.hdr == nil {
		return ErrNotLoaded
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: error creating output: %w", ErrIO, err)
	}
	defer func() {
		// No-op once the output has been renamed into place.
		_ = os.Remove(tmp.Name())
	}()

	if err := f.writeCSVTo(tmp, layout, opts, opts.Compress || strings.HasSuffix(path, ".zst")); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: error closing output: %w", ErrIO, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: error renaming output: %w", ErrIO, err)
	}
	return nil
}

func (f *File) writeCSVTo(w io.Writer, layout Layout, opts CSVOptions, compress bool) error {
	if !compress {
		return f.EncodeCSV(w, layout, opts)
	}

	zw := zstd.NewWriter(w)
	if err := f.EncodeCSV(zw, layout, opts); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("%w: error compressing output: %w", ErrIO, err)
	}
	return nil
}

// EncodeCSV writes the frame table to w in the given layout.
func (f *File) EncodeCSV(w io.Writer, layout Layout, opts CSVOptions) error {
	if f.hdr == nil {
		return ErrNotLoaded
	}

	bw := bufio.NewWriter(w)
	cw := csv.NewWriter(bw)
	if opts.Comma != 0 {
		cw.Comma = opts.Comma
	}

	enc := csvEncoder{f: f, cw: cw, opts: opts}
	var err error
	switch layout {
	case LayoutSamples:
		err = enc.samples(opts.Header)
	case LayoutFrames:
		err = enc.frames(opts.Header)
	case LayoutRecords:
		err = enc.records(opts.Header)
	default:
		return fmt.Errorf("unknown csv layout %d", layout)
	}
	if err != nil {
		return fmt.Errorf("error writing csv: %w", err)
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("error writing csv: %w", err)
	}
	return bw.Flush()
}

type csvEncoder struct {
	f    *File
	cw   *csv.Writer
	opts CSVOptions
}

func (e *csvEncoder) format(v float64) string {
	return e.opts.Format(v)
}

func (e *csvEncoder) frameColumns(first string) []string {
	row := make([]string, 0, len(e.f.frames)+1)
	row = append(row, first)
	for i := range e.f.frames {
		row = append(row, "Frame"+strconv.Itoa(i))
	}
	return row
}

// samples writes one row per sample: the sample time followed by the
// sample's voltage in every frame.
func (e *csvEncoder) samples(header bool) error {
	if header {
		if err := e.cw.Write(e.frameColumns("Time")); err != nil {
			return err
		}
	}

	row := make([]string, len(e.f.frames)+1)
	for n := 0; n < e.f.hdr.SamplesPerFrame(); n++ {
		row[0] = e.format(e.f.hdr.Time(n))
		for i, frame := range e.f.frames {
			row[i+1] = e.format(frame.Samples[n])
		}
		if err := e.cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// frames writes the sample index followed by one column per frame.
func (e *csvEncoder) frames(header bool) error {
	if header {
		if err := e.cw.Write(e.frameColumns("Sample")); err != nil {
			return err
		}
	}

	row := make([]string, len(e.f.frames)+1)
	for n := 0; n < e.f.hdr.SamplesPerFrame(); n++ {
		row[0] = strconv.Itoa(n)
		for i, frame := range e.f.frames {
			row[i+1] = e.format(frame.Samples[n])
		}
		if err := e.cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// records writes one row per sample of every frame, frame by frame.
func (e *csvEncoder) records(header bool) error {
	if header {
		if err := e.cw.Write([]string{"Frame", "Sample", "Time", "Voltage"}); err != nil {
			return err
		}
	}

	row := make([]string, 4)
	for i, frame := range e.f.frames {
		row[0] = strconv.Itoa(i)
		for n, v := range frame.Samples {
			row[1] = strconv.Itoa(n)
			row[2] = e.format(e.f.hdr.Time(n))
			row[3] = e.format(v)
			if err := e.cw.Write(row); err != nil {
				return err
			}
		}
	}
	return nil
}
