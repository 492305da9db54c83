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
	"sync/atomic"
	"time"
)

// status codes (number of LED blinks)
const (
	StatUNK     = iota // unknown status (init)
	StatOK             // processing active
	StatDEV            // device failure
	StatSTORE          // persistent store unusable
	StatNS             // status namespace failed
	StatSRV            // accept failed
	StatIP             // invalid IP address
	StatWIFI           // radio initialization failed
	StatCONNECT        // station connection failed
	StatAP             // access point failed
	StatDHCP           // no DHCP lease
	StatLISTEN         // failed to create listener
	StatPORT           // invalid port specified
	StatEXCP           // exception (panic) occured
)

var statNames = [...]string{
	"unknown", "ok", "device", "store", "namespace", "accept", "ip",
	"wifi", "connect", "access-point", "dhcp", "listen", "port", "exception",
}

// StatusText returns the name of a status code.
func StatusText(code int) string {
	if code >= 0 && code < len(statNames) {
		return statNames[code]
	}
	return fmt.Sprintf("status(%d)", code)
}

// Status handler.
// Show current status depending on hardware device.
type Status struct {
	dev    Device       // reference to device
	curr   atomic.Int32 // current state
	repeat atomic.Int32 // current repeat counter
}

// NewStatus creates a new status display. The current code is blinked
// every five seconds until ctx is done.
func NewStatus(ctx context.Context, dev Device) (state *Status) {
	state = new(Status)
	state.dev = dev
	state.curr.Store(StatOK)
	go state.blink(ctx, 5*time.Second)
	return
}

// blink LED <state>; <repeat> times (0: until changed)
func (state *Status) blink(ctx context.Context, period time.Duration) {
	pause := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}
	for pause(period) {
		num := state.curr.Load()
		for num > 5 {
			state.dev.LED(true)
			pause(1000 * time.Millisecond)
			state.dev.LED(false)
			pause(300 * time.Millisecond)
			num -= 5
		}
		for range num {
			state.dev.LED(true)
			pause(150 * time.Millisecond)
			state.dev.LED(false)
			pause(150 * time.Millisecond)
		}
		if state.repeat.Add(-1) == 0 {
			state.curr.Store(StatOK)
		}
	}
}

// Set status and repeat <num> times.
func (state *Status) Set(flag, num int) {
	if state != nil {
		state.curr.Store(int32(flag))
		state.repeat.Store(int32(num))
	}
}

// Get current state and repeat counter
func (state *Status) Get() (int, int) {
	if state == nil {
		return StatUNK, 0
	}
	return int(state.curr.Load()), int(state.repeat.Load())
}

// Trap critical failures (panic)
func (state *Status) Trap(t time.Duration) {
	s, _ := state.Get()
	if r := recover(); r != nil {
		fmt.Printf("EXCP: %v\n", r)
		if s == StatOK {
			state.Set(StatEXCP, 0)
		}
	} else if s == StatOK {
		state.Set(StatUNK, 0)
	}
	time.Sleep(t)
}
