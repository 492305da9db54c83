//go:build !rp2350

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
	"io"
	"log/slog"
	"net/netip"
	"sync"
)

var (
	errNotStation = errors.New("radio not in station mode")
	errRadioOff   = errors.New("radio stopped")
)

// SimRadio emulates a wireless driver. A join succeeds if the network
// is in the table of known networks and the passphrase matches.
type SimRadio struct {
	mu       sync.Mutex
	networks map[string]string // known networks (ssid -> passphrase)
	events   chan Event
	mode     Mode
	cred     Credential
	ap       APConfig
	addr     netip.Addr // next address to hand out
	linked   bool
	log      *slog.Logger
}

// NewSimRadio creates a simulated radio for the given networks.
func NewSimRadio(networks map[string]string, logger *slog.Logger) *SimRadio {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	r := &SimRadio{
		networks: make(map[string]string),
		events:   make(chan Event, 32),
		addr:     netip.MustParseAddr("10.0.0.100"),
		log:      logger,
	}
	for ssid, pass := range networks {
		r.networks[ssid] = pass
	}
	return r
}

// AddNetwork makes a network joinable.
func (r *SimRadio) AddNetwork(ssid, pass string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.networks[ssid] = pass
}

// RemoveNetwork takes a network down; an established link is lost.
func (r *SimRadio) RemoveNetwork(ssid string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.networks, ssid)
	if r.mode == ModeStation && r.linked && r.cred.SSID == ssid {
		r.linked = false
		r.emit(Event{Kind: EventStationDisconnected})
	}
}

// Mode returns the active radio mode.
func (r *SimRadio) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

// AccessPoint returns the last access point configuration.
func (r *SimRadio) AccessPoint() APConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ap
}

// Stop drops the link and switches the radio off.
func (r *SimRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeOff
	r.linked = false
	return nil
}

// StartStation configures the credential and reports EventStationStarted.
func (r *SimRadio) StartStation(c Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeStation
	r.cred = c
	r.linked = false
	r.emit(Event{Kind: EventStationStarted})
	return nil
}

// Connect joins the configured network if it is known and the
// passphrase matches; otherwise a disconnect is reported.
func (r *SimRadio) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.mode == ModeOff:
		return errRadioOff
	case r.mode != ModeStation:
		return errNotStation
	}
	if pass, ok := r.networks[r.cred.SSID]; ok && pass == r.cred.Passphrase {
		r.linked = true
		r.emit(Event{Kind: EventAddressAcquired, Addr: r.addr})
		r.addr = r.addr.Next()
		return nil
	}
	r.emit(Event{Kind: EventStationDisconnected})
	return nil
}

// StartAccessPoint records the access point configuration.
func (r *SimRadio) StartAccessPoint(cfg APConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = ModeAccessPoint
	r.ap = cfg
	r.linked = false
	return nil
}

// Events returns the notification channel.
func (r *SimRadio) Events() <-chan Event {
	return r.events
}

// emit an event without blocking the caller.
func (r *SimRadio) emit(ev Event) {
	select {
	case r.events <- ev:
	default:
		r.log.Warn("event dropped", slog.String("event", ev.Kind.String()))
	}
}
