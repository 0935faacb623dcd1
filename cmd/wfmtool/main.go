// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Command wfmtool inspects and converts Tektronix WFM v3 FastFrame captures.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/OpenPSG/wfm"
	"github.com/OpenPSG/wfm/internal/logging"
	"github.com/rs/zerolog"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

var usages = map[string]string{
	"info":    "info [-stats] <file>",
	"convert": "convert [-long] <file> <out.csv>",
	"frames":  "frames <file> <out.csv>",
	"extract": "extract [-time] <file> <frame_index>",
}

var commands = map[string]func(t *tool, args []string) int{
	"info":    (*tool).info,
	"convert": (*tool).convert,
	"frames":  (*tool).frames,
	"extract": (*tool).extract,
}

var commandOrder = []string{"info", "convert", "frames", "extract"}

type tool struct {
	cfg    config
	log    zerolog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("wfmtool", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to a TOML config file")
	logLevel := fs.String("log-level", "", "Log level (trace, debug, info, warn, error, disabled)")
	verbose := fs.Bool("v", false, "Verbose output, same as -log-level debug")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "Usage: wfmtool [flags] <command> [args]")
		fmt.Fprintln(stderr, "\nCommands:")
		for _, name := range commandOrder {
			fmt.Fprintf(stderr, "  %s\n", usages[name])
		}
		fmt.Fprintln(stderr, "\nFlags:")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "wfmtool: %v\n", err)
		return exitFailure
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *verbose {
		cfg.LogLevel = "debug"
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "wfmtool: %v\n", err)
		return exitUsage
	}

	cmd, ok := commands[fs.Arg(0)]
	if !ok {
		fmt.Fprintf(stderr, "wfmtool: unknown command %q\n", fs.Arg(0))
		fs.Usage()
		return exitUsage
	}

	t := &tool{
		cfg:    cfg,
		log:    logging.New(stderr, level, "wfmtool"),
		stdout: stdout,
		stderr: stderr,
	}
	return cmd(t, fs.Args()[1:])
}

// flags returns a flag set for a subcommand that reports usage errors to stderr.
func (t *tool) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(t.stderr)
	fs.Usage = func() {
		fmt.Fprintf(t.stderr, "Usage: wfmtool %s\n", usages[name])
		fs.PrintDefaults()
	}
	return fs
}

// parse parses a subcommand's arguments and checks the positional count.
func (t *tool) parse(fs *flag.FlagSet, args []string, want int) bool {
	if err := fs.Parse(args); err != nil {
		return false
	}
	if fs.NArg() != want {
		fs.Usage()
		return false
	}
	return true
}

func (t *tool) open(path string) (*wfm.File, bool) {
	f, err := wfm.Open(path, wfm.WithLogger(t.log))
	if err != nil {
		t.fail(err)
		return nil, false
	}
	return f, true
}

func (t *tool) fail(err error) int {
	fmt.Fprintf(t.stderr, "wfmtool: %s: %v\n", describe(err), err)
	return exitFailure
}

// describe maps an error to a short explanation for the user.
func describe(err error) string {
	switch {
	case errors.Is(err, wfm.ErrInvalidMagic):
		return "not a WFM file"
	case errors.Is(err, wfm.ErrUnsupportedVersion):
		return "unsupported WFM version, only version 3 is supported"
	case errors.Is(err, wfm.ErrNoFastFrameData):
		return "capture contains no FastFrame data"
	case errors.Is(err, wfm.ErrInvalidDimensions):
		return "capture has more than one voltage or time dimension"
	case errors.Is(err, wfm.ErrUnsupportedTimeBase):
		return "capture does not use a sampled time base"
	case errors.Is(err, wfm.ErrCorruptHeader):
		return "corrupt header"
	case errors.Is(err, wfm.ErrFrameOutOfBounds):
		return "frame data extends past the end of the file"
	case errors.Is(err, wfm.ErrUnexpectedEOF):
		return "file is truncated"
	case errors.Is(err, wfm.ErrOffsetOutOfRange):
		return "offset out of range"
	case errors.Is(err, wfm.ErrIO):
		return "i/o error"
	default:
		return "error"
	}
}

func (t *tool) info(args []string) int {
	fs := t.flags("info")
	stats := fs.Bool("stats", false, "Print per-frame statistics")
	if !t.parse(fs, args, 1) {
		return exitUsage
	}

	f, ok := t.open(fs.Arg(0))
	if !ok {
		return exitFailure
	}
	hdr := f.Header()

	tw := tabwriter.NewWriter(t.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", f.Path())
	fmt.Fprintf(tw, "Version:\t%s\n", hdr.Version)
	fmt.Fprintf(tw, "Label:\t%s\n", hdr.Label)
	fmt.Fprintf(tw, "Frames:\t%d\n", hdr.NumFrames)
	fmt.Fprintf(tw, "Samples per frame:\t%d\n", hdr.SamplesPerFrame())
	fmt.Fprintf(tw, "Bytes per point:\t%d\n", hdr.BytesPerPoint)
	fmt.Fprintf(tw, "Frame record length:\t%d\n", hdr.FrameRecordLength)
	fmt.Fprintf(tw, "Curve buffer:\t%d bytes at offset %d\n", hdr.CurveBufferLength, hdr.CurveBufferOffset)
	fmt.Fprintf(tw, "Data region:\t[%d, %d)\n", hdr.DataStart, hdr.PostChargeStart)
	fmt.Fprintf(tw, "Voltage scale:\t%g %s\n", hdr.VoltageScale, hdr.VerticalUnits)
	fmt.Fprintf(tw, "Voltage offset:\t%g %s\n", hdr.VoltageOffset, hdr.VerticalUnits)
	fmt.Fprintf(tw, "Time scale:\t%g %s\n", hdr.TimeScale, hdr.HorizontalUnits)
	fmt.Fprintf(tw, "Time start:\t%g %s\n", hdr.TimeStart, hdr.HorizontalUnits)
	fmt.Fprintf(tw, "Sample rate:\t%g Hz\n", hdr.SampleRate())
	fmt.Fprintf(tw, "Fingerprint:\t%016x\n", f.Fingerprint())

	if *stats {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "Frame\tTrigger\tMin\tMax\tMean\tStdDev")
		for _, frame := range f.Frames() {
			s := frame.Stats()
			fmt.Fprintf(tw, "%d\t%s\t%g\t%g\t%g\t%g\n",
				frame.Index, frame.Trigger.Time.UTC().Format("2006-01-02T15:04:05.000000000Z"),
				s.Min, s.Max, s.Mean, s.StdDev)
		}
	}

	if err := tw.Flush(); err != nil {
		return t.fail(fmt.Errorf("%w: %w", wfm.ErrIO, err))
	}
	return exitOK
}

func (t *tool) convert(args []string) int {
	fs := t.flags("convert")
	long := fs.Bool("long", false, "Write one row per frame sample instead of one row per sample")
	if !t.parse(fs, args, 2) {
		return exitUsage
	}

	layout := wfm.LayoutSamples
	if *long {
		layout = wfm.LayoutRecords
	}
	return t.writeCSV(fs.Arg(0), fs.Arg(1), layout)
}

func (t *tool) frames(args []string) int {
	fs := t.flags("frames")
	if !t.parse(fs, args, 2) {
		return exitUsage
	}
	return t.writeCSV(fs.Arg(0), fs.Arg(1), wfm.LayoutFrames)
}

func (t *tool) writeCSV(in, out string, layout wfm.Layout) int {
	f, ok := t.open(in)
	if !ok {
		return exitFailure
	}
	if err := f.WriteCSVWithOptions(out, layout, t.cfg.CSV); err != nil {
		return t.fail(err)
	}

	t.log.Info().
		Str("input", in).
		Str("output", out).
		Stringer("layout", layout).
		Int("frames", f.NumFrames()).
		Msg("Wrote csv")
	return exitOK
}

func (t *tool) extract(args []string) int {
	fs := t.flags("extract")
	withTime := fs.Bool("time", false, "Prefix each sample with its time")
	if !t.parse(fs, args, 2) {
		return exitUsage
	}

	idx, err := strconv.Atoi(fs.Arg(1))
	if err != nil {
		fmt.Fprintf(t.stderr, "wfmtool: invalid frame index %q\n", fs.Arg(1))
		return exitUsage
	}

	f, ok := t.open(fs.Arg(0))
	if !ok {
		return exitFailure
	}
	frame, ok := f.Frame(idx)
	if !ok {
		fmt.Fprintf(t.stderr, "wfmtool: frame %d out of range, capture has %d frames\n", idx, f.NumFrames())
		return exitFailure
	}

	sep := string(t.cfg.CSV.Comma)
	w := bufio.NewWriter(t.stdout)
	for n, v := range frame.Samples {
		if *withTime {
			w.WriteString(t.cfg.CSV.Format(f.Time(n)))
			w.WriteString(sep)
		}
		w.WriteString(t.cfg.CSV.Format(v))
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return t.fail(fmt.Errorf("%w: %w", wfm.ErrIO, err))
	}
	return exitOK
}
