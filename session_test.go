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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionProvisions(t *testing.T) {
	radio := NewSimRadio(map[string]string{"Home": "secret123"}, nil)
	store := newTestStore(t)
	st := NewStation(radio, store, StationConfig{Timeout: time.Second})
	runStation(t, st)
	mgr := NewManager(st, store, ManagerConfig{})

	sess := NewSession(mgr, store, nil)
	ctx := context.Background()
	assert.Equal(t, ReplyNameOK, sess.Handle(ctx, []byte(`{"wifi_name":"Home"}`)))
	assert.Equal(t, AwaitingSecret, sess.Phase())
	assert.Equal(t, ReplySaved, sess.Handle(ctx, []byte(`{"wifi_password":"secret123"}`)))
	assert.Equal(t, AwaitingName, sess.Phase())

	c, err := store.Read()
	require.NoError(t, err)
	assert.Equal(t, Credential{SSID: "Home", Passphrase: "secret123"}, c)
	assert.Equal(t, ModeStation, radio.Mode())
}

func TestSessionRejectsName(t *testing.T) {
	conn := &fakeConnector{outcome: OutcomeConnected}
	sess := NewSession(conn, &fakeWriter{}, nil)
	ctx := context.Background()
	for _, msg := range []string{
		`{"ssid":"Home"}`,
		`{"wifi_password":"secret123"}`,
		`{"wifi_name":"` + string(make([]byte, NameCapacity)) + `"}`,
		``,
	} {
		assert.Equal(t, ReplyNameInvalid, sess.Handle(ctx, []byte(msg)))
		assert.Equal(t, AwaitingName, sess.Phase())
	}
	assert.Empty(t, conn.calls)
}

func TestSessionRejectsSecret(t *testing.T) {
	conn := &fakeConnector{outcome: OutcomeConnected}
	w := &fakeWriter{}
	sess := NewSession(conn, w, nil)
	ctx := context.Background()
	require.Equal(t, ReplyNameOK, sess.Handle(ctx, []byte(`{"wifi_name":"Home"}`)))

	// bad messages keep the phase and the name
	for range 3 {
		assert.Equal(t, ReplySecretInvalid, sess.Handle(ctx, []byte(`{"wifi_name":"Other"}`)))
		assert.Equal(t, AwaitingSecret, sess.Phase())
	}
	assert.Empty(t, conn.calls)

	assert.Equal(t, ReplySaved, sess.Handle(ctx, []byte(`{"wifi_password":"secret123"}`)))
	require.Len(t, conn.calls, 1)
	assert.Equal(t, "Home", conn.calls[0].SSID)
	assert.Equal(t, []Credential{{SSID: "Home", Passphrase: "secret123"}}, w.saved)
}

func TestSessionConnectFailed(t *testing.T) {
	conn := &fakeConnector{outcome: OutcomeTimedOut}
	w := &fakeWriter{}
	sess := NewSession(conn, w, nil)
	ctx := context.Background()
	require.Equal(t, ReplyNameOK, sess.Handle(ctx, []byte(`{"wifi_name":"Home"}`)))
	assert.Equal(t, ReplyConnectFailed, sess.Handle(ctx, []byte(`{"wifi_password":"wrong"}`)))
	assert.Equal(t, AwaitingName, sess.Phase())
	assert.Empty(t, w.saved)
}

func TestSessionNotSaved(t *testing.T) {
	conn := &fakeConnector{outcome: OutcomeConnected}
	sess := NewSession(conn, &fakeWriter{err: errWriteFault}, nil)
	ctx := context.Background()
	require.Equal(t, ReplyNameOK, sess.Handle(ctx, []byte(`{"wifi_name":"Open"}`)))
	assert.Equal(t, ReplyNotSaved, sess.Handle(ctx, []byte(`{"wifi_password":""}`)))
	assert.Equal(t, AwaitingName, sess.Phase())
}

func TestSessionRun(t *testing.T) {
	conn := &fakeConnector{outcome: OutcomeConnected}
	sess := NewSession(conn, &fakeWriter{}, nil)
	client, server := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- sess.Run(context.Background(), server)
		server.Close()
	}()

	buf := make([]byte, MaxMessage)
	exchange := func(msg string) string {
		_, err := client.Write([]byte(msg))
		require.NoError(t, err)
		n, err := client.Read(buf)
		require.NoError(t, err)
		return string(buf[:n])
	}
	assert.Equal(t, ReplyNameInvalid, exchange(`{}`))
	assert.Equal(t, ReplyNameOK, exchange(`{"wifi_name":"Home"}`))
	assert.Equal(t, ReplySaved, exchange(`{"wifi_password":"secret123"}`))

	require.NoError(t, client.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("session did not end")
	}
}
