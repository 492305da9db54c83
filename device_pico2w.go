//go:build rp2350

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
	"net"
	"net/netip"
	"sync"
	"time"

	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

const mtu = cyw43439.MTU

var (
	errWifi = errors.New("wifi initialization failed")
	errNoAP = errors.New("access point mode not supported by driver")
)

// Pico2WDevice is a Raspberry Pi Pico 2W with its CYW43439 radio.
type Pico2WDevice struct {
	ref    *cyw43439.Device    // reference to device
	stack  *stacks.PortStack   // TCP/IP stack
	dhcp   *stacks.DHCPClient  // station address acquisition
	events chan Event          // radio notifications
	log    *slog.Logger

	mu   sync.Mutex
	mode Mode
	cred Credential
	host string // DHCP hostname
	gen  int    // bumped by Stop to abandon joins in flight
}

// LED on the radio chip
func (dev *Pico2WDevice) LED(on bool) {
	dev.ref.GPIOSet(0, on)
}

// InitDevice initializes the radio and the network stack.
func InitDevice(logger *slog.Logger) (Device, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127), // Make temporary logger that does no logging.
		}))
	}
	dev := &Pico2WDevice{
		ref:    cyw43439.NewPicoWDevice(),
		events: make(chan Event, 8),
		log:    logger,
	}
	wificfg := cyw43439.DefaultWifiConfig()
	wificfg.Logger = logger
	logger.Info("initializing pico W device...")
	devInitTime := time.Now()
	if err := dev.ref.Init(wificfg); err != nil {
		return nil, errWifi
	}
	logger.Info("cyw43439:Init", slog.Duration("duration", time.Since(devInitTime)))

	mac, _ := dev.ref.HardwareAddr6()
	dev.stack = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac,
		MaxOpenPortsUDP: 1, // DHCP client
		MaxOpenPortsTCP: 2, // provisioning and 9P
		MTU:             mtu,
		Logger:          logger,
	})
	dev.ref.RecvEthHandle(dev.stack.RecvEth)
	dev.dhcp = stacks.NewDHCPClient(dev.stack, dhcp.DefaultClientPort)

	// Begin asynchronous packet handling.
	go nicLoop(dev.ref, dev.stack)
	return dev, nil
}

// SetHostname sets the name requested in DHCP.
func (dev *Pico2WDevice) SetHostname(name string) {
	dev.mu.Lock()
	dev.host = name
	dev.mu.Unlock()
}

// Radio returns the device itself.
func (dev *Pico2WDevice) Radio() Radio {
	return dev
}

// Listen for TCP connections on port.
func (dev *Pico2WDevice) Listen(port uint16) (net.Listener, error) {
	listener, err := stacks.NewTCPListener(dev.stack, stacks.TCPListenerConfig{
		MaxConnections: 1,
		ConnTxBufSize:  MaxMessage,
		ConnRxBufSize:  MaxMessage,
	})
	if err != nil {
		return nil, err
	}
	if err = listener.StartListening(port); err != nil {
		return nil, err
	}
	return listener, nil
}

//----------------------------------------------------------------------
// Radio implementation
//----------------------------------------------------------------------

// Stop abandons the current mode. The driver has no leave command;
// an established link is dropped by releasing the address.
func (dev *Pico2WDevice) Stop() error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.gen++
	dev.mode = ModeOff
	dev.dhcp.Abort()
	return nil
}

func (dev *Pico2WDevice) StartStation(c Credential) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.mode = ModeStation
	dev.cred = c
	dev.emit(Event{Kind: EventStationStarted})
	return nil
}

// Connect joins the configured network and requests an address. The
// blocking join runs in its own goroutine.
func (dev *Pico2WDevice) Connect() error {
	dev.mu.Lock()
	if dev.mode != ModeStation {
		dev.mu.Unlock()
		return errors.New("radio not in station mode")
	}
	gen, cred, host := dev.gen, dev.cred, dev.host
	dev.mu.Unlock()

	go func() {
		addr, err := dev.join(cred, host)
		dev.mu.Lock()
		defer dev.mu.Unlock()
		if gen != dev.gen {
			return
		}
		if err != nil {
			dev.log.Error("wifi join failed", slog.String("err", err.Error()))
			dev.emit(Event{Kind: EventStationDisconnected})
			return
		}
		dev.emit(Event{Kind: EventAddressAcquired, Addr: addr})
	}()
	return nil
}

// join the network and run DHCP.
func (dev *Pico2WDevice) join(c Credential, host string) (netip.Addr, error) {
	logger := dev.log
	logger.Info("joining WPA secure network", slog.String("ssid", c.SSID), slog.Int("passlen", len(c.Passphrase)))
	if err := dev.ref.JoinWPA2(c.SSID, c.Passphrase); err != nil {
		return netip.Addr{}, err
	}
	mac, _ := dev.ref.HardwareAddr6()
	logger.Info("wifi join success!", slog.String("mac", net.HardwareAddr(mac[:]).String()))

	// Perform DHCP request.
	err := dev.dhcp.BeginRequest(stacks.DHCPRequestConfig{
		Xid:      uint32(time.Now().Nanosecond()),
		Hostname: host,
	})
	if err != nil {
		return netip.Addr{}, err
	}
	for i := 0; dev.dhcp.State() != dhcp.StateBound; i++ {
		if i > 15 {
			return netip.Addr{}, errors.New("no DHCP reply")
		}
		logger.Info("DHCP ongoing...")
		time.Sleep(time.Second / 2)
	}
	ip := dev.dhcp.Offer()
	logger.Info("DHCP complete",
		slog.Uint64("cidrbits", uint64(dev.dhcp.CIDRBits())),
		slog.String("ourIP", ip.String()),
		slog.String("gateway", dev.dhcp.Gateway().String()),
		slog.Duration("lease", dev.dhcp.IPLeaseTime()),
	)
	dev.stack.SetAddr(ip) // It's important to set the IP address after DHCP completes.
	return ip, nil
}

// StartAccessPoint assigns the access point address to the stack. The
// CYW43439 driver offers no soft-AP, so the call reports errNoAP.
func (dev *Pico2WDevice) StartAccessPoint(cfg APConfig) error {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	dev.mode = ModeAccessPoint
	dev.stack.SetAddr(cfg.Gateway())
	return errNoAP
}

func (dev *Pico2WDevice) Events() <-chan Event {
	return dev.events
}

func (dev *Pico2WDevice) emit(ev Event) {
	select {
	case dev.events <- ev:
	default:
		dev.log.Warn("event dropped", slog.String("event", ev.Kind.String()))
	}
}

//----------------------------------------------------------------------

func nicLoop(dev *cyw43439.Device, Stack *stacks.PortStack) {
	// Maximum number of packets to queue before sending them.
	const (
		queueSize                = 3
		maxRetriesBeforeDropping = 3
	)
	var queue [queueSize][mtu]byte
	var lenBuf [queueSize]int
	var retries [queueSize]int
	markSent := func(i int) {
		lenBuf[i] = 0
		retries[i] = 0
	}
	for {
		stallRx := true
		// Poll for incoming packets.
		gotPacket, err := dev.PollOne()
		if err != nil {
			println("poll error:", err.Error())
		}
		if gotPacket {
			stallRx = false
		}

		// Queue packets to be sent.
		for i := range queue {
			if retries[i] != 0 {
				continue // Packet currently queued for retransmission.
			}
			lenBuf[i], err = Stack.HandleEth(queue[i][:])
			if err != nil {
				println("stack error n(should be 0)=", lenBuf[i], "err=", err.Error())
				lenBuf[i] = 0
				continue
			}
			if lenBuf[i] == 0 {
				break
			}
		}
		if lenBuf == [queueSize]int{} {
			if stallRx {
				// Avoid busy waiting when both Rx and Tx stall.
				time.Sleep(51 * time.Millisecond)
			}
			continue
		}

		// Send queued packets.
		for i := range queue {
			n := lenBuf[i]
			if n <= 0 {
				continue
			}
			if err := dev.SendEth(queue[i][:n]); err != nil {
				// Queue packet for retransmission.
				retries[i]++
				if retries[i] > maxRetriesBeforeDropping {
					markSent(i)
					println("dropped outgoing packet:", err.Error())
				}
			} else {
				markSent(i)
			}
		}
	}
}
