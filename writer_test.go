// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package wfm_test

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/DataDog/zstd"
	"github.com/OpenPSG/wfm"
	"github.com/OpenPSG/wfm/internal/wfmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoFrameCapture is the 2-frame, 4-sample capture scaled by 0.1 V per code.
func twoFrameCapture(t *testing.T) (*wfm.File, wfmtest.Capture) {
	t.Helper()
	c := wfmtest.NewCapture([]int8{10, 20, 30, 40}, []int8{-10, -20, -30, -40})
	c.VoltageScale = 0.1
	c.VoltageOffset = 0

	f := wfm.New()
	require.NoError(t, f.Load(c.Bytes()))
	return f, c
}

func readCSV(t *testing.T, data []byte, comma rune) [][]string {
	t.Helper()
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = comma
	rows, err := r.ReadAll()
	require.NoError(t, err)
	return rows
}

func parseFloat(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	require.NoError(t, err)
	return v
}

func TestWriteCSVSamples(t *testing.T) {
	f, c := twoFrameCapture(t)
	path := filepath.Join(t.TempDir(), "out.csv")

	require.NoError(t, f.WriteCSV(path, wfm.LayoutSamples))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readCSV(t, data, ',')

	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Time", "Frame0", "Frame1"}, rows[0])
	assert.Equal(t, []string{"1", "-1"}, rows[1][1:])
	assert.Equal(t, []string{"2", "-2"}, rows[2][1:])

	for n, row := range rows[1:] {
		require.Len(t, row, 3)
		assert.Equal(t, c.TimeStart+float64(float64(n)*c.TimeScale), parseFloat(t, row[0]))
		for i, frame := range c.Frames {
			want := float64(float64(frame[n])*c.VoltageScale) + c.VoltageOffset
			assert.Equal(t, want, parseFloat(t, row[i+1]), "sample %d frame %d", n, i)
		}
	}

	// Nothing but the output is left in the directory.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteCSVFrames(t *testing.T) {
	f, c := twoFrameCapture(t)
	path := filepath.Join(t.TempDir(), "frames.csv")

	require.NoError(t, f.WriteCSV(path, wfm.LayoutFrames))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	rows := readCSV(t, data, ',')

	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Sample", "Frame0", "Frame1"}, rows[0])
	for n, row := range rows[1:] {
		require.Len(t, row, 3)
		assert.Equal(t, strconv.Itoa(n), row[0])
		for i, frame := range c.Frames {
			want := float64(float64(frame[n]) * c.VoltageScale)
			assert.Equal(t, want, parseFloat(t, row[i+1]))
		}
	}
}

func TestWriteCSVRecords(t *testing.T) {
	f, c := twoFrameCapture(t)

	var buf bytes.Buffer
	require.NoError(t, f.EncodeCSV(&buf, wfm.LayoutRecords, wfm.DefaultCSVOptions()))
	rows := readCSV(t, buf.Bytes(), ',')

	require.Len(t, rows, 9)
	assert.Equal(t, []string{"Frame", "Sample", "Time", "Voltage"}, rows[0])
	for k, row := range rows[1:] {
		i, n := k/4, k%4
		assert.Equal(t, strconv.Itoa(i), row[0])
		assert.Equal(t, strconv.Itoa(n), row[1])
		assert.Equal(t, f.Time(n), parseFloat(t, row[2]))
		assert.Equal(t, float64(float64(c.Frames[i][n])*c.VoltageScale), parseFloat(t, row[3]))
	}
}

func TestEncodeCSVOptions(t *testing.T) {
	f, _ := twoFrameCapture(t)

	opts := wfm.CSVOptions{Comma: ';', Precision: 3, Header: false}
	var buf bytes.Buffer
	require.NoError(t, f.EncodeCSV(&buf, wfm.LayoutFrames, opts))

	rows := readCSV(t, buf.Bytes(), ';')
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"0", "1", "-1"}, rows[0])
	assert.Equal(t, []string{"3", "3", "-3"}, rows[2])

	assert.Error(t, f.EncodeCSV(&buf, wfm.Layout(42), opts))
}

func TestEncodeCSVZeroPrecisionIsExact(t *testing.T) {
	f, _ := twoFrameCapture(t)

	var exact, zero bytes.Buffer
	require.NoError(t, f.EncodeCSV(&exact, wfm.LayoutSamples, wfm.DefaultCSVOptions()))
	require.NoError(t, f.EncodeCSV(&zero, wfm.LayoutSamples, wfm.CSVOptions{Header: true}))
	assert.Equal(t, exact.String(), zero.String())

	rows := readCSV(t, zero.Bytes(), ',')
	require.Len(t, rows, 5)
	assert.NotEqual(t, rows[1][0], rows[2][0])
	assert.Equal(t, f.Time(1), parseFloat(t, rows[2][0]))
}

func TestWriteCSVCompressed(t *testing.T) {
	f, _ := twoFrameCapture(t)
	path := filepath.Join(t.TempDir(), "out.csv.zst")

	require.NoError(t, f.WriteCSV(path, wfm.LayoutSamples))

	compressed, err := os.ReadFile(path)
	require.NoError(t, err)
	data, err := zstd.Decompress(nil, compressed)
	require.NoError(t, err)

	var plain bytes.Buffer
	require.NoError(t, f.EncodeCSV(&plain, wfm.LayoutSamples, wfm.DefaultCSVOptions()))
	assert.Equal(t, plain.String(), string(data))
}

func TestWriteCSVNotLoaded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	err := wfm.New().WriteCSV(path, wfm.LayoutSamples)
	require.ErrorIs(t, err, wfm.ErrNotLoaded)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestWriteCSVMissingDirectory(t *testing.T) {
	f, _ := twoFrameCapture(t)

	err := f.WriteCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), wfm.LayoutSamples)
	require.ErrorIs(t, err, wfm.ErrIO)
}
