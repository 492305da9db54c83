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

import "bytes"

// Buffer capacities of the credential fields. A value must be strictly
// shorter than its capacity (room for the terminator on the device).
const (
	NameCapacity   = 32
	SecretCapacity = 64
)

// Field keys recognized by the provisioning protocol.
const (
	KeyName   = "wifi_name"
	KeySecret = "wifi_password"
)

// Extract scans input for the pattern `"key"` ... `:` ... `"value"` and
// returns value with every control byte (< 0x20) replaced by '_'. The
// lookup fails if a marker is missing or if the value does not fit into
// a buffer of the given capacity (len(value) >= capacity).
//
// Only the four markers are inspected; anything around them is ignored.
func Extract(input []byte, key string, capacity int) (string, bool) {
	// quoted key
	pos := bytes.Index(input, []byte(`"`+key+`"`))
	if pos < 0 {
		return "", false
	}
	rest := input[pos+len(key)+2:]

	// separator
	if pos = bytes.IndexByte(rest, ':'); pos < 0 {
		return "", false
	}
	rest = rest[pos+1:]

	// value delimiters
	if pos = bytes.IndexByte(rest, '"'); pos < 0 {
		return "", false
	}
	rest = rest[pos+1:]
	end := bytes.IndexByte(rest, '"')
	if end < 0 || end >= capacity {
		return "", false
	}
	return string(Sanitize(rest[:end])), true
}

// Sanitize returns a copy of buf with all control bytes replaced by '_'.
func Sanitize(buf []byte) []byte {
	out := make([]byte, len(buf))
	for i, b := range buf {
		if b < 0x20 {
			b = '_'
		}
		out[i] = b
	}
	return out
}
