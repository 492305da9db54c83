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
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/bfix/netprov"
	"gopkg.in/yaml.v3"
)

// Config of the host daemon.
type Config struct {
	Listen      string          `yaml:"listen"`
	Port        uint16          `yaml:"port"`
	NineP       string          `yaml:"ninep"`
	Timeout     time.Duration   `yaml:"timeout"`
	LogLevel    string          `yaml:"log_level"`
	Store       StoreConfig     `yaml:"store"`
	AccessPoint AccessPointConf `yaml:"access_point"`
	MDNS        MDNSConfig      `yaml:"mdns"`
	Networks    []NetworkConfig `yaml:"networks"`
}

// StoreConfig describes the file emulating the flash partition.
type StoreConfig struct {
	Path      string `yaml:"path"`
	Blocks    int64  `yaml:"blocks"`
	BlockSize int64  `yaml:"block_size"`
}

// AccessPointConf is the fallback access point.
type AccessPointConf struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
	Channel    int    `yaml:"channel"`
	MaxPeers   int    `yaml:"max_peers"`
	Address    string `yaml:"address"`
	PoolStart  string `yaml:"pool_start"`
	PoolSize   int    `yaml:"pool_size"`
}

// MDNSConfig controls service announcement.
type MDNSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Instance  string `yaml:"instance"`
	Interface string `yaml:"interface"`
}

// NetworkConfig is a network known to the simulated radio.
type NetworkConfig struct {
	SSID       string `yaml:"ssid"`
	Passphrase string `yaml:"passphrase"`
}

// DefaultConfig returns the firmware defaults.
func DefaultConfig() *Config {
	ap := netprov.DefaultAPConfig()
	return &Config{
		Port:     netprov.DefaultPort,
		Timeout:  netprov.ConnectTimeout,
		LogLevel: "info",
		Store: StoreConfig{
			Path:      "netprov.nvs",
			Blocks:    4,
			BlockSize: 4096,
		},
		AccessPoint: AccessPointConf{
			SSID:       ap.SSID,
			Passphrase: ap.Passphrase,
			Channel:    ap.Channel,
			MaxPeers:   ap.MaxPeers,
			Address:    ap.Addr.String(),
			PoolStart:  ap.PoolStart.String(),
			PoolSize:   ap.PoolSize,
		},
		MDNS: MDNSConfig{
			Instance: "netprov",
		},
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err = dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// APConfig converts the access point section.
func (cfg *Config) APConfig() (ap netprov.APConfig, err error) {
	c := cfg.AccessPoint
	ap = netprov.APConfig{
		SSID:       c.SSID,
		Passphrase: c.Passphrase,
		Channel:    c.Channel,
		MaxPeers:   c.MaxPeers,
		PoolSize:   c.PoolSize,
	}
	if ap.Addr, err = netip.ParsePrefix(c.Address); err != nil {
		return
	}
	if ap.PoolStart, err = netip.ParseAddr(c.PoolStart); err != nil {
		return
	}
	err = ap.Validate()
	return
}

// SimNetworks returns the simulated network table.
func (cfg *Config) SimNetworks() map[string]string {
	nets := make(map[string]string, len(cfg.Networks))
	for _, n := range cfg.Networks {
		nets[n.SSID] = n.Passphrase
	}
	return nets
}

// Level returns the configured log level.
func (cfg *Config) Level() (slog.Level, error) {
	var lvl slog.Level
	err := lvl.UnmarshalText([]byte(cfg.LogLevel))
	return lvl, err
}

// Validate checks the configuration.
func (cfg *Config) Validate() error {
	if cfg.Port == 0 {
		return errors.New("port must not be 0")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if cfg.Store.Path == "" || cfg.Store.Blocks < 2 || cfg.Store.BlockSize <= 0 {
		return errors.New("invalid store geometry")
	}
	if _, err := cfg.Level(); err != nil {
		return err
	}
	if _, err := cfg.APConfig(); err != nil {
		return err
	}
	for _, n := range cfg.Networks {
		if strings.TrimSpace(n.SSID) == "" {
			return errors.New("simulated network without ssid")
		}
	}
	return nil
}
