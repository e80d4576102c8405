// Copyright (c) 2024 The ioreactor Authors. Use of this source code is
// governed by an MIT license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"os"
)

// Config mirrors the CLI flag surface so a JSON file can override it, the
// same "file trumps flags" shape kcptun's own Config/parseJSONConfig pair
// uses. Only keys present in the file are overridden; the rest keep their
// flag values.
type Config struct {
	Listen        string `json:"listen"`
	Target        string `json:"target"`
	MaxConns      int    `json:"max-conns"`
	Multiplex     bool   `json:"multiplex"`
	Stats         string `json:"stats"`
	StatsInterval int    `json:"stats-interval"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path) // For read access.
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
