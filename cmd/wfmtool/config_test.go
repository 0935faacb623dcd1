// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/OpenPSG/wfm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wfmtool.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, wfm.DefaultCSVOptions(), cfg.CSV)

	// An empty file keeps every default.
	cfg, err = loadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfig(t, `
log_level = " debug "
precision = 6
delimiter = "\t"
header = false
compress = true
`)

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, wfm.CSVOptions{
		Comma:     '\t',
		Precision: 6,
		Header:    false,
		Compress:  true,
	}, cfg.CSV)
}

func TestLoadConfigPartialOverlay(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `delimiter = ";"`))
	require.NoError(t, err)

	want := defaultConfig()
	want.CSV.Comma = ';'
	assert.Equal(t, want, cfg)
}

func TestLoadConfigEscapedTab(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `delimiter = '\t'`))
	require.NoError(t, err)
	assert.Equal(t, '\t', cfg.CSV.Comma)
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"long delimiter", `delimiter = "ab"`},
		{"empty delimiter", `delimiter = ""`},
		{"quote delimiter", `delimiter = '"'`},
		{"negative precision", `precision = -2`},
		{"unknown key", `colour = true`},
		{"bad syntax", `precision = `},
		{"wrong type", `header = "yes"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "load wfmtool config")
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
