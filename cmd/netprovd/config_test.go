//----------------------------------------------------------------------
// This file is part of netprov.
// Copyright (C) 2024-present Bernd Fix   >Y<
//
// netprov is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License,
// or (at your option) any later version.
//
// netprov is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.
//
// SPDX-License-Identifier: AGPL3.0-or-later
//----------------------------------------------------------------------

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "netprov.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.EqualValues(t, 3333, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.Timeout)

	ap, err := cfg.APConfig()
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.1", ap.Gateway().String())
	assert.Equal(t, 1, ap.MaxPeers)
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
port: 4444
timeout: 5s
log_level: debug
store:
  path: /tmp/x.nvs
networks:
  - ssid: Home
    passphrase: secret123
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.EqualValues(t, 4444, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "/tmp/x.nvs", cfg.Store.Path)
	assert.EqualValues(t, 4096, cfg.Store.BlockSize)
	assert.Equal(t, map[string]string{"Home": "secret123"}, cfg.SimNetworks())
}

func TestLoadConfigEmptyFile(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.EqualValues(t, 3333, cfg.Port)
}

func TestLoadConfigUnknownField(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, "bogus: 1\n"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	for name, mod := range map[string]func(*Config){
		"port":      func(c *Config) { c.Port = 0 },
		"timeout":   func(c *Config) { c.Timeout = 0 },
		"store":     func(c *Config) { c.Store.Blocks = 1 },
		"log level": func(c *Config) { c.LogLevel = "loud" },
		"ap addr":   func(c *Config) { c.AccessPoint.Address = "nonsense" },
		"ap pass":   func(c *Config) { c.AccessPoint.Passphrase = "short" },
		"network":   func(c *Config) { c.Networks = []NetworkConfig{{SSID: " "}} },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mod(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestApplyFlags(t *testing.T) {
	cmd := newRootCommand()
	cmd.RunE = func(*cobra.Command, []string) error { return nil }
	require.NoError(t, cmd.ParseFlags([]string{"--port", "4000", "--network", "Home=secret123", "--ninep", ":5640"}))

	cfg := DefaultConfig()
	require.NoError(t, applyFlags(cmd, cfg))
	assert.EqualValues(t, 4000, cfg.Port)
	assert.Equal(t, ":5640", cfg.NineP)
	assert.Equal(t, "secret123", cfg.SimNetworks()["Home"])

	cmd = newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--network", "nopass"}))
	assert.Error(t, applyFlags(cmd, DefaultConfig()))
}
