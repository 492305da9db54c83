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
	"context"
	"fmt"
	"net"
)

// LinuxDevice runs the manager on a host with a simulated radio.
type LinuxDevice struct {
	radio *SimRadio
	addr  string // listen host
}

// LED is not available on a host.
func (dev *LinuxDevice) LED(on bool) {}

// NewLinuxDevice creates a host device listening on 'host'.
func NewLinuxDevice(radio *SimRadio, host string) *LinuxDevice {
	return &LinuxDevice{
		radio: radio,
		addr:  host,
	}
}

// Radio returns the simulated radio.
func (dev *LinuxDevice) Radio() Radio {
	return dev.radio
}

// Listen on a TCP port.
func (dev *LinuxDevice) Listen(port uint16) (net.Listener, error) {
	ctx := context.Background()
	cfg := new(net.ListenConfig)
	return cfg.Listen(ctx, "tcp", net.JoinHostPort(dev.addr, fmt.Sprint(port)))
}
