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
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bfix/netprov/nvs"
	"github.com/stretchr/testify/require"
)

const testTimeout = 300 * time.Millisecond

// newTestStore returns a credential store on an in-memory medium.
func newTestStore(t *testing.T) *CredentialStore {
	t.Helper()
	fl, err := nvs.Init(nvs.NewMemMedium(4, 256))
	require.NoError(t, err)
	ns, err := fl.Namespace(StoreNamespace)
	require.NoError(t, err)
	return NewCredentialStore(ns)
}

// countingRadio counts commands passed to a simulated radio.
type countingRadio struct {
	*SimRadio
	starts   atomic.Int32
	connects atomic.Int32
}

func (r *countingRadio) StartStation(c Credential) error {
	r.starts.Add(1)
	return r.SimRadio.StartStation(c)
}

func (r *countingRadio) Connect() error {
	r.connects.Add(1)
	return r.SimRadio.Connect()
}

// runStation starts the event loop of a station for the test duration.
func runStation(t *testing.T, st *Station) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		st.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// fakeRadio records commands and emits nothing by itself.
type fakeRadio struct {
	mu       sync.Mutex
	events   chan Event
	connects int
	stops    int
	ap       int
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{events: make(chan Event, 8)}
}

func (r *fakeRadio) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stops++
	return nil
}

func (r *fakeRadio) StartStation(Credential) error { return nil }

func (r *fakeRadio) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connects++
	return nil
}

func (r *fakeRadio) StartAccessPoint(APConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ap++
	return nil
}

func (r *fakeRadio) Events() <-chan Event { return r.events }

// fakeConnector returns a fixed outcome.
type fakeConnector struct {
	outcome Outcome
	calls   []Credential
}

func (c *fakeConnector) Connect(_ context.Context, cred Credential) Outcome {
	c.calls = append(c.calls, cred)
	return c.outcome
}

// fakeWriter records credentials or fails.
type fakeWriter struct {
	mu    sync.Mutex
	err   error
	saved []Credential
}

func (w *fakeWriter) Write(c Credential) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.saved = append(w.saved, c)
	return nil
}

var errWriteFault = errors.New("write fault")

// fakeAnnouncer records announcements.
type fakeAnnouncer struct {
	mu        sync.Mutex
	addrs     []netip.Addr
	withdrawn int
}

func (a *fakeAnnouncer) Announce(addr netip.Addr) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.addrs = append(a.addrs, addr)
	return nil
}

func (a *fakeAnnouncer) Withdraw() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.withdrawn++
}

func (a *fakeAnnouncer) announced() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.addrs)
}

// ledDevice records LED switching.
type ledDevice struct {
	toggles atomic.Int32
}

func (d *ledDevice) LED(on bool) {
	if on {
		d.toggles.Add(1)
	}
}

func (d *ledDevice) Radio() Radio { return nil }

func (d *ledDevice) Listen(uint16) (net.Listener, error) { return nil, errors.New("no network") }

func (a *fakeAnnouncer) withdrawals() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.withdrawn
}
