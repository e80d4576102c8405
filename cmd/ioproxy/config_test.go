// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseJSONConfigSuccess(t *testing.T) {
	path := writeTempConfig(t, `{"listen":"0.0.0.0:3000","target":"127.0.0.1:8080","max-conns":64,"multiplex":true,"stats":"stats.csv","stats-interval":10}`)

	var cfg Config
	if err := parseJSONConfig(&cfg, path); err != nil {
		t.Fatalf("parseJSONConfig returned error: %v", err)
	}

	if cfg.Listen != "0.0.0.0:3000" || cfg.Target != "127.0.0.1:8080" {
		t.Fatalf("unexpected addresses: %+v", cfg)
	}
	if cfg.MaxConns != 64 || !cfg.Multiplex {
		t.Fatalf("unexpected max-conns/multiplex: %+v", cfg)
	}
	if cfg.Stats != "stats.csv" || cfg.StatsInterval != 10 {
		t.Fatalf("unexpected stats fields: %+v", cfg)
	}
}

func TestParseJSONConfigMissingFile(t *testing.T) {
	var cfg Config
	missing := filepath.Join(t.TempDir(), "missing.json")
	if err := parseJSONConfig(&cfg, missing); err == nil {
		t.Fatalf("parseJSONConfig expected error for missing file")
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}
