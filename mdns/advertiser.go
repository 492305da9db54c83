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

// Package mdns announces the provisioning service via multicast DNS
// while the device is connected in station mode.
package mdns

import (
	"fmt"
	"net"
	"net/netip"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// Service parameters
const (
	ServiceType = "_netprov._tcp"
	Domain      = "local."
)

// Config of an Advertiser.
type Config struct {
	Instance  string // instance name (e.g. host name)
	Port      int    // provisioning port
	Interface string // network interface ("" = all)
	TTL       uint32 // record TTL in seconds (0 = library default)
}

// Advertiser registers the service with zeroconf.
type Advertiser struct {
	cfg    Config
	mu     sync.Mutex
	server *zeroconf.Server
}

// New creates an advertiser; nothing is announced until Announce.
func New(cfg Config) *Advertiser {
	return &Advertiser{cfg: cfg}
}

func (a *Advertiser) interfaces() []net.Interface {
	if a.cfg.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.cfg.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Announce (re-)registers the service for the given station address.
func (a *Advertiser) Announce(addr netip.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	txt := []string{"addr=" + addr.String()}
	var opts []zeroconf.ServerOption
	if a.cfg.TTL > 0 {
		opts = append(opts, zeroconf.TTL(a.cfg.TTL))
	}
	server, err := zeroconf.Register(a.cfg.Instance, ServiceType, Domain, a.cfg.Port, txt, a.interfaces(), opts...)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	a.server = server
	return nil
}

// Withdraw stops announcing the service.
func (a *Advertiser) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}
