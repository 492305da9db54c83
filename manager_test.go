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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, networks map[string]string) (*Manager, *countingRadio, *CredentialStore, *fakeAnnouncer, *Status) {
	t.Helper()
	radio := &countingRadio{SimRadio: NewSimRadio(networks, nil)}
	store := newTestStore(t)
	st := NewStation(radio, store, StationConfig{Timeout: testTimeout})
	runStation(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	status := NewStatus(ctx, &ledDevice{})
	ann := &fakeAnnouncer{}
	mgr := NewManager(st, store, ManagerConfig{
		Status:    status,
		Announcer: ann,
	})
	return mgr, radio, store, ann, status
}

func TestBootWithoutCredential(t *testing.T) {
	mgr, radio, _, ann, _ := newTestManager(t, nil)

	assert.Equal(t, OutcomeTimedOut, mgr.Boot(context.Background()))
	assert.Equal(t, ModeAccessPoint, radio.Mode())
	assert.Equal(t, DefaultAPConfig(), radio.AccessPoint())
	assert.Zero(t, radio.starts.Load())
	assert.Zero(t, ann.announced())
	assert.Equal(t, ModeAccessPoint, mgr.Station().Status().Mode)
}

func TestBootWithCredential(t *testing.T) {
	mgr, radio, store, ann, status := newTestManager(t, map[string]string{"Home": "secret123"})
	require.NoError(t, store.Write(Credential{SSID: "Home", Passphrase: "secret123"}))

	assert.Equal(t, OutcomeConnected, mgr.Boot(context.Background()))
	assert.Equal(t, ModeStation, radio.Mode())
	assert.EqualValues(t, 1, radio.starts.Load())
	assert.Equal(t, 1, ann.announced())
	code, _ := status.Get()
	assert.Equal(t, StatOK, code)
}

func TestBootFallsBack(t *testing.T) {
	mgr, radio, store, ann, status := newTestManager(t, nil)
	require.NoError(t, store.Write(Credential{SSID: "Gone", Passphrase: "secret123"}))

	assert.Equal(t, OutcomeTimedOut, mgr.Boot(context.Background()))
	assert.Equal(t, ModeAccessPoint, radio.Mode())
	assert.Zero(t, ann.announced())
	code, repeat := status.Get()
	assert.Equal(t, StatCONNECT, code)
	assert.Equal(t, 3, repeat)

	// stored credential is kept for the next boot
	c, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, "Gone", c.SSID)
}

func TestLinkLossFallsBack(t *testing.T) {
	mgr, radio, _, ann, _ := newTestManager(t, map[string]string{"Home": "secret123"})
	require.Equal(t, OutcomeConnected, mgr.Connect(context.Background(), Credential{SSID: "Home", Passphrase: "secret123"}))
	require.Equal(t, ModeStation, radio.Mode())
	connects := radio.connects.Load()

	radio.RemoveNetwork("Home")
	require.Eventually(t, func() bool {
		return radio.Mode() == ModeAccessPoint
	}, time.Second, 10*time.Millisecond)

	// four reconnects after the link was lost
	assert.EqualValues(t, MaxRetry-1, radio.connects.Load()-connects)
	assert.GreaterOrEqual(t, ann.withdrawals(), 1)
}

func TestAccessPointFailure(t *testing.T) {
	radio := NewSimRadio(nil, nil)
	st := NewStation(radio, nil, StationConfig{Timeout: testTimeout})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	status := NewStatus(ctx, &ledDevice{})
	ap := DefaultAPConfig()
	ap.Channel = 42
	mgr := NewManager(st, newTestStore(t), ManagerConfig{AccessPoint: ap, Status: status})

	mgr.Boot(context.Background())
	code, _ := status.Get()
	assert.Equal(t, StatAP, code)
	assert.Equal(t, ModeOff, radio.Mode())
}
