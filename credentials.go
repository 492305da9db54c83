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
)

// Storage layout of the credential record
const (
	StoreNamespace = "wifi_table"
	keySSID        = "wifi_ssid"
	keyPass        = "wifi_pass"
)

var (
	ErrNoCredential      = errors.New("no stored credential")
	ErrInvalidCredential = errors.New("invalid credential")
)

// Credential to join a wireless network in station mode.
type Credential struct {
	SSID       string
	Passphrase string
}

// Validate checks that both fields are set and fit into their buffers.
func (c Credential) Validate() error {
	switch {
	case len(c.SSID) == 0 || len(c.SSID) >= NameCapacity:
		return fmt.Errorf("%w: network name length %d", ErrInvalidCredential, len(c.SSID))
	case len(c.Passphrase) == 0 || len(c.Passphrase) >= SecretCapacity:
		return fmt.Errorf("%w: secret length %d", ErrInvalidCredential, len(c.Passphrase))
	}
	return nil
}

// String returns a loggable form (secret masked).
func (c Credential) String() string {
	return fmt.Sprintf("%q/(%d bytes)", c.SSID, len(c.Passphrase))
}

//----------------------------------------------------------------------

// KV is a transactional string store (see nvs.Namespace).
type KV interface {
	SetString(key, val string) error
	GetString(key string) (string, error)
	Commit() error
	Rollback()
}

// CredentialStore persists exactly one credential.
type CredentialStore struct {
	kv KV
}

// NewCredentialStore wraps a key/value namespace.
func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv}
}

// Write replaces the stored credential. Either both fields are
// committed or the previous record stays untouched.
func (cs *CredentialStore) Write(c Credential) (err error) {
	if err = c.Validate(); err != nil {
		return
	}
	defer func() {
		if err != nil {
			cs.kv.Rollback()
		}
	}()
	if err = cs.kv.SetString(keySSID, c.SSID); err != nil {
		return
	}
	if err = cs.kv.SetString(keyPass, c.Passphrase); err != nil {
		return
	}
	return cs.kv.Commit()
}

// Read returns the stored credential; a record with a missing field
// counts as absent.
func (cs *CredentialStore) Read() (c Credential, err error) {
	if c.SSID, err = cs.kv.GetString(keySSID); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	if c.Passphrase, err = cs.kv.GetString(keyPass); err != nil {
		return Credential{}, fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	return
}
