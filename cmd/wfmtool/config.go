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
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
	"github.com/OpenPSG/wfm"
)

// wfmtool config.toml keys.
type fileConfig struct {
	LogLevel  string `toml:"log_level"`
	Precision int    `toml:"precision"`
	Delimiter string `toml:"delimiter"`
	Header    bool   `toml:"header"`
	Compress  bool   `toml:"compress"`
}

type config struct {
	LogLevel string
	CSV      wfm.CSVOptions
}

func defaultConfig() config {
	return config{
		LogLevel: "info",
		CSV:      wfm.DefaultCSVOptions(),
	}
}

// loadConfig overlays the keys set in the TOML file at path onto the
// defaults. An empty path returns the defaults.
func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return config{}, fmt.Errorf("load wfmtool config: %w", err)
	}

	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("precision") {
		if raw.Precision < -1 {
			return config{}, fmt.Errorf("load wfmtool config: precision must be -1 or greater, got %d", raw.Precision)
		}
		cfg.CSV.Precision = raw.Precision
	}
	if meta.IsDefined("delimiter") {
		comma, err := parseDelimiter(raw.Delimiter)
		if err != nil {
			return config{}, fmt.Errorf("load wfmtool config: %w", err)
		}
		cfg.CSV.Comma = comma
	}
	if meta.IsDefined("header") {
		cfg.CSV.Header = raw.Header
	}
	if meta.IsDefined("compress") {
		cfg.CSV.Compress = raw.Compress
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return config{}, fmt.Errorf("load wfmtool config: unknown key %q", undecoded[0].String())
	}

	return cfg, nil
}

func parseDelimiter(raw string) (rune, error) {
	if raw == `\t` {
		return '\t', nil
	}
	if utf8.RuneCountInString(raw) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", raw)
	}
	r, _ := utf8.DecodeRuneInString(raw)
	if r == '"' || r == '\r' || r == '\n' || r == utf8.RuneError {
		return 0, fmt.Errorf("invalid delimiter %q", raw)
	}
	return r, nil
}
