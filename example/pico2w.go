//go:build rp2350

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
	"context"
	"log/slog"
	"machine"
	"strconv"
	"time"

	"github.com/bfix/netprov"
	"github.com/bfix/netprov/nvs"
)

// set with -ldflags "-X main.Host=..."
var (
	Host      string = "netprov"
	Port      string = "3333"
	NinePPort string = "564"
	APSSID    string
	APPasswd  string
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{Level: slog.LevelInfo}))
	time.Sleep(2 * time.Second)

	// access device
	dev, err := netprov.InitDevice(logger)
	if err != nil {
		logger.Error("device init failed", slog.String("err", err.Error()))
		return
	}
	if pico, ok := dev.(*netprov.Pico2WDevice); ok {
		pico.SetHostname(Host)
	}
	state := netprov.NewStatus(ctx, dev)
	defer state.Trap(30 * time.Second)

	// open persistent store; failure is fatal
	flash, err := nvs.Init(machine.Flash)
	if err != nil {
		state.Set(netprov.StatSTORE, 0)
		return
	}
	ns, err := flash.Namespace(netprov.StoreNamespace)
	if err != nil {
		state.Set(netprov.StatSTORE, 0)
		return
	}
	store := netprov.NewCredentialStore(ns)

	ap := netprov.DefaultAPConfig()
	if APSSID != "" {
		ap.SSID = APSSID
	}
	if APPasswd != "" {
		ap.Passphrase = APPasswd
	}
	station := netprov.NewStation(dev.Radio(), store, netprov.StationConfig{Logger: logger})
	mgr := netprov.NewManager(station, store, netprov.ManagerConfig{
		AccessPoint: ap,
		Status:      state,
		Logger:      logger,
	})
	go station.Run(ctx)

	port, err := strconv.ParseUint(Port, 10, 16)
	if err != nil {
		state.Set(netprov.StatPORT, 0)
		return
	}
	lst, err := dev.Listen(uint16(port))
	if err != nil {
		state.Set(netprov.StatLISTEN, 0)
		return
	}

	// status filesystem via 9p
	if p, err := strconv.ParseUint(NinePPort, 10, 16); err == nil && p > 0 {
		go serveStatus(dev, uint16(p), station, state, logger)
	}

	mgr.Boot(ctx)
	srv := netprov.NewServer(lst, mgr, store, state, logger)
	srv.Serve(ctx)
}

// serveStatus accepts 9p clients for the status namespace. From Plan 9:
//
//	srv tcp!<host>!564 netprov
//	mount /srv/netprov /n/netprov
//	cat /n/netprov/wifi/state
func serveStatus(dev netprov.Device, port uint16, station *netprov.Station, state *netprov.Status, logger *slog.Logger) {
	fs, err := netprov.NewStatusNamespace(station, state)
	if err != nil {
		state.Set(netprov.StatNS, 0)
		return
	}
	lst, err := dev.Listen(port)
	if err != nil {
		logger.Error("9p listener failed", slog.String("err", err.Error()))
		return
	}
	for {
		c, err := lst.Accept()
		if err != nil {
			state.Set(netprov.StatSRV, 3)
			continue
		}
		fs.ServeConn(c)
		c.Close()
	}
}
