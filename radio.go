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

package netprov

import (
	"errors"
	"fmt"
	"net/netip"
)

// EventKind enumerates radio notifications.
type EventKind int

const (
	EventStationStarted      EventKind = iota // station interface is up
	EventStationDisconnected                  // link lost or join failed
	EventAddressAcquired                      // DHCP lease obtained
)

func (k EventKind) String() string {
	switch k {
	case EventStationStarted:
		return "station-started"
	case EventStationDisconnected:
		return "station-disconnected"
	case EventAddressAcquired:
		return "address-acquired"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event delivered by a radio.
type Event struct {
	Kind EventKind
	Addr netip.Addr // assigned address (EventAddressAcquired only)
}

// Mode of the radio
type Mode int

const (
	ModeOff Mode = iota
	ModeStation
	ModeAccessPoint
)

func (m Mode) String() string {
	switch m {
	case ModeStation:
		return "station"
	case ModeAccessPoint:
		return "access-point"
	}
	return "off"
}

// Radio is a wireless driver with mutually exclusive station and
// access-point configurations. Switching modes requires Stop first.
type Radio interface {
	// Stop tears down the active mode.
	Stop() error
	// StartStation configures the station credential and starts the
	// interface; completion is signalled with EventStationStarted.
	StartStation(c Credential) error
	// Connect issues a join request for the configured credential.
	// The outcome is signalled with an event.
	Connect() error
	// StartAccessPoint activates the local access point.
	StartAccessPoint(cfg APConfig) error
	// Events returns the notification channel.
	Events() <-chan Event
}

//----------------------------------------------------------------------

var ErrAPConfig = errors.New("invalid access point configuration")

// APConfig is the local access point identity and addressing.
type APConfig struct {
	SSID       string
	Passphrase string
	Channel    int
	MaxPeers   int
	Addr       netip.Prefix // local address and subnet
	PoolStart  netip.Addr   // first DHCP lease
	PoolSize   int          // number of DHCP leases
}

// DefaultAPConfig returns the fallback access point settings.
func DefaultAPConfig() APConfig {
	return APConfig{
		SSID:       "NETPROV_AP",
		Passphrase: "12345678",
		Channel:    1,
		MaxPeers:   1,
		Addr:       netip.MustParsePrefix("192.168.1.1/24"),
		PoolStart:  netip.MustParseAddr("192.168.1.2"),
		PoolSize:   1,
	}
}

// Gateway address announced to peers (the access point itself).
func (cfg APConfig) Gateway() netip.Addr {
	return cfg.Addr.Addr()
}

// Validate the settings.
func (cfg APConfig) Validate() error {
	switch {
	case len(cfg.SSID) == 0 || len(cfg.SSID) >= NameCapacity:
		return fmt.Errorf("%w: ssid", ErrAPConfig)
	case len(cfg.Passphrase) < 8 || len(cfg.Passphrase) >= SecretCapacity:
		return fmt.Errorf("%w: passphrase length", ErrAPConfig)
	case cfg.Channel < 1 || cfg.Channel > 13:
		return fmt.Errorf("%w: channel %d", ErrAPConfig, cfg.Channel)
	case cfg.MaxPeers < 1 || cfg.PoolSize < 1 || cfg.PoolSize < cfg.MaxPeers:
		return fmt.Errorf("%w: peers/pool size", ErrAPConfig)
	case !cfg.Addr.IsValid() || !cfg.Addr.Addr().Is4():
		return fmt.Errorf("%w: address", ErrAPConfig)
	case !cfg.Addr.Contains(cfg.PoolStart) || cfg.PoolStart == cfg.Addr.Addr():
		return fmt.Errorf("%w: pool start", ErrAPConfig)
	}
	last := cfg.PoolStart
	for range cfg.PoolSize - 1 {
		last = last.Next()
	}
	if !cfg.Addr.Contains(last) {
		return fmt.Errorf("%w: pool exceeds subnet", ErrAPConfig)
	}
	return nil
}
