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
	"context"
	"errors"
	"io"
	"log/slog"
	"net/netip"
)

// Announcer publishes the provisioning service while the device is
// reachable in station mode.
type Announcer interface {
	Announce(addr netip.Addr) error
	Withdraw()
}

// ManagerConfig holds the optional parts of a Manager.
type ManagerConfig struct {
	AccessPoint APConfig
	Status      *Status   // LED status (may be nil)
	Announcer   Announcer // service announcement (may be nil)
	Logger      *slog.Logger
}

// Manager decides between station and access point mode.
type Manager struct {
	station  *Station
	store    *CredentialStore
	ap       APConfig
	status   *Status
	announce Announcer
	log      *slog.Logger
}

// NewManager combines the station state machine and the credential
// store. Exhausted retries of the station trigger the access point.
func NewManager(station *Station, store *CredentialStore, cfg ManagerConfig) *Manager {
	if !cfg.AccessPoint.Addr.IsValid() {
		cfg.AccessPoint = DefaultAPConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	m := &Manager{
		station:  station,
		store:    store,
		ap:       cfg.AccessPoint,
		status:   cfg.Status,
		announce: cfg.Announcer,
		log:      logger,
	}
	station.OnFailed(m.fallback)
	station.OnConnected(m.connected)
	return m
}

// Station returns the managed state machine.
func (m *Manager) Station() *Station {
	return m.station
}

// Boot joins the stored network or, if there is none or joining fails,
// starts the access point.
func (m *Manager) Boot(ctx context.Context) Outcome {
	c, err := m.store.Read()
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			m.log.Info("no registered credential, switching to access point mode")
		} else {
			m.log.Error("reading credential failed", slog.String("err", err.Error()))
		}
		m.fallback()
		return OutcomeTimedOut
	}
	m.log.Info("found registered credential, connecting", slog.String("ssid", c.SSID))
	return m.Connect(ctx, c)
}

// Connect requests a station connection; on timeout the access point
// is activated.
func (m *Manager) Connect(ctx context.Context, c Credential) Outcome {
	if m.announce != nil {
		m.announce.Withdraw()
	}
	res := m.station.Request(ctx, c)
	if res != OutcomeConnected {
		m.status.Set(StatCONNECT, 3)
		m.fallback()
	}
	return res
}

// fallback starts the access point.
func (m *Manager) fallback() {
	if m.announce != nil {
		m.announce.Withdraw()
	}
	if err := m.station.StartAccessPoint(m.ap); err != nil {
		m.log.Error("access point failed", slog.String("err", err.Error()))
		m.status.Set(StatAP, 0)
	}
}

// connected is called by the station on an acquired address.
func (m *Manager) connected(addr netip.Addr) {
	m.status.Set(StatOK, 0)
	if m.announce == nil {
		return
	}
	if err := m.announce.Announce(addr); err != nil {
		m.log.Warn("service announcement failed", slog.String("err", err.Error()))
	}
}
