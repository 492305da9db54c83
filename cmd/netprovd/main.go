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

// netprovd runs the connectivity manager on a host with a simulated
// radio: credentials are persisted in a file emulating the flash
// partition, provisioning clients connect on port 3333.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bfix/netprov"
	"github.com/bfix/netprov/mdns"
	"github.com/bfix/netprov/nvs"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "netprovd:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "netprovd",
		Short:         "Wi-Fi connectivity manager with provisioning service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringP("config", "c", "", "YAML configuration file")
	cmd.Flags().Uint16P("port", "p", 0, "provisioning port (overrides config)")
	cmd.Flags().String("store", "", "store file (overrides config)")
	cmd.Flags().String("ninep", "", "9P status listen address, e.g. :5640 (overrides config)")
	cmd.Flags().Bool("mdns", false, "announce service via mDNS in station mode")
	cmd.Flags().StringArray("network", nil, "simulated network SSID=PASSPHRASE (repeatable)")
	cmd.Flags().String("log-level", "", "log level (debug|info|warn|error)")
	return cmd
}

// applyFlags overrides configuration values with explicitly set flags.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetUint16("port")
	}
	if flags.Changed("store") {
		cfg.Store.Path, _ = flags.GetString("store")
	}
	if flags.Changed("ninep") {
		cfg.NineP, _ = flags.GetString("ninep")
	}
	if flags.Changed("mdns") {
		cfg.MDNS.Enabled, _ = flags.GetBool("mdns")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	nets, _ := flags.GetStringArray("network")
	for _, n := range nets {
		ssid, pass, ok := strings.Cut(n, "=")
		if !ok {
			return fmt.Errorf("invalid network %q (want SSID=PASSPHRASE)", n)
		}
		cfg.Networks = append(cfg.Networks, NetworkConfig{SSID: ssid, Passphrase: pass})
	}
	return cfg.Validate()
}

func run(cmd *cobra.Command, _ []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := LoadConfig(path)
	if err != nil {
		return err
	}
	if err = applyFlags(cmd, cfg); err != nil {
		return err
	}
	lvl, _ := cfg.Level()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	ap, _ := cfg.APConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// device and status display
	dev := netprov.NewLinuxDevice(netprov.NewSimRadio(cfg.SimNetworks(), logger), cfg.Listen)
	status := netprov.NewStatus(ctx, dev)

	// persistent store (failure is fatal)
	medium, err := nvs.OpenFileMedium(cfg.Store.Path, cfg.Store.Blocks, cfg.Store.BlockSize)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer medium.Close()
	flash, err := nvs.Init(medium)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	ns, err := flash.Namespace(netprov.StoreNamespace)
	if err != nil {
		return err
	}
	store := netprov.NewCredentialStore(ns)

	// connection management
	station := netprov.NewStation(dev.Radio(), store, netprov.StationConfig{
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	mcfg := netprov.ManagerConfig{
		AccessPoint: ap,
		Status:      status,
		Logger:      logger,
	}
	if cfg.MDNS.Enabled {
		mcfg.Announcer = mdns.New(mdns.Config{
			Instance:  cfg.MDNS.Instance,
			Port:      int(cfg.Port),
			Interface: cfg.MDNS.Interface,
		})
	}
	mgr := netprov.NewManager(station, store, mcfg)
	go func() {
		if err := station.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("event loop terminated", slog.String("err", err.Error()))
		}
	}()

	// status filesystem
	if cfg.NineP != "" {
		fs, err := netprov.NewStatusNamespace(station, status)
		if err != nil {
			status.Set(netprov.StatNS, 0)
			return err
		}
		go func() {
			if err := fs.Serve(cfg.NineP); err != nil {
				logger.Error("9P server failed", slog.String("err", err.Error()))
			}
		}()
	}

	lst, err := dev.Listen(cfg.Port)
	if err != nil {
		status.Set(netprov.StatLISTEN, 0)
		return fmt.Errorf("listen: %w", err)
	}
	mgr.Boot(ctx)

	srv := netprov.NewServer(lst, mgr, store, status, logger)
	if err = srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("stopped")
	return nil
}
