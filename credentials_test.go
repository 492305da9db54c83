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
	"strings"
	"testing"

	"github.com/bfix/netprov/nvs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingKV fails the commit.
type failingKV struct {
	*nvs.Namespace
}

func (kv failingKV) Commit() error {
	return errWriteFault
}

func TestCredentialRoundTrip(t *testing.T) {
	cs := newTestStore(t)
	_, err := cs.Read()
	require.ErrorIs(t, err, ErrNoCredential)

	want := Credential{SSID: "Home", Passphrase: "secret123"}
	require.NoError(t, cs.Write(want))
	got, err := cs.Read()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// overwritten wholesale
	want = Credential{SSID: "Office", Passphrase: "другой"}
	require.NoError(t, cs.Write(want))
	got, err = cs.Read()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestCredentialSurvivesReopen(t *testing.T) {
	m := nvs.NewMemMedium(4, 256)
	fl, err := nvs.Init(m)
	require.NoError(t, err)
	ns, _ := fl.Namespace(StoreNamespace)
	require.NoError(t, NewCredentialStore(ns).Write(Credential{SSID: "Home", Passphrase: "secret123"}))

	fl, err = nvs.Init(m)
	require.NoError(t, err)
	ns, _ = fl.Namespace(StoreNamespace)
	got, err := NewCredentialStore(ns).Read()
	require.NoError(t, err)
	assert.Equal(t, "Home", got.SSID)
	assert.Equal(t, "secret123", got.Passphrase)
}

func TestCredentialPartialRecord(t *testing.T) {
	fl, err := nvs.Init(nvs.NewMemMedium(4, 256))
	require.NoError(t, err)
	ns, _ := fl.Namespace(StoreNamespace)
	require.NoError(t, ns.SetString(keySSID, "Home"))
	require.NoError(t, ns.Commit())

	_, err = NewCredentialStore(ns).Read()
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestCredentialWriteFailureKeepsPrevious(t *testing.T) {
	fl, err := nvs.Init(nvs.NewMemMedium(4, 256))
	require.NoError(t, err)
	ns, _ := fl.Namespace(StoreNamespace)
	require.NoError(t, NewCredentialStore(ns).Write(Credential{SSID: "Home", Passphrase: "secret123"}))

	bad := NewCredentialStore(failingKV{ns})
	require.ErrorIs(t, bad.Write(Credential{SSID: "Other", Passphrase: "other123"}), errWriteFault)

	got, err := NewCredentialStore(ns).Read()
	require.NoError(t, err)
	assert.Equal(t, "Home", got.SSID)
	assert.Equal(t, "secret123", got.Passphrase)
}

func TestCredentialValidate(t *testing.T) {
	for name, c := range map[string]Credential{
		"empty name":   {Passphrase: "secret123"},
		"empty secret": {SSID: "Home"},
		"long name":    {SSID: strings.Repeat("n", NameCapacity), Passphrase: "x"},
		"long secret":  {SSID: "Home", Passphrase: strings.Repeat("s", SecretCapacity)},
	} {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, c.Validate(), ErrInvalidCredential)
			assert.ErrorIs(t, newTestStore(t).Write(c), ErrInvalidCredential)
		})
	}
	assert.NoError(t, Credential{
		SSID:       strings.Repeat("n", NameCapacity-1),
		Passphrase: strings.Repeat("s", SecretCapacity-1),
	}.Validate())
}

func TestCredentialStringMasksSecret(t *testing.T) {
	s := Credential{SSID: "Home", Passphrase: "secret123"}.String()
	assert.Contains(t, s, "Home")
	assert.NotContains(t, s, "secret123")
}
