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
	"io"
	"log/slog"
	"net/netip"
	"sync"
	"time"
)

// Station mode connection parameters
const (
	MaxRetry       = 5                // consecutive disconnects before giving up
	ConnectTimeout = 30 * time.Second // max. wait for an address
)

// State of the station connection
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Outcome of a connection request
type Outcome int

const (
	OutcomeConnected Outcome = iota
	OutcomeTimedOut
)

func (o Outcome) String() string {
	if o == OutcomeConnected {
		return "connected"
	}
	return "timed-out"
}

// CredentialWriter persists a validated credential.
type CredentialWriter interface {
	Write(c Credential) error
}

//----------------------------------------------------------------------

// signal is a resettable flag waiters can block on.
type signal struct {
	mu  sync.Mutex
	set bool
	ch  chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{})}
}

func (s *signal) Set() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		s.set = true
		close(s.ch)
	}
}

func (s *signal) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.set {
		s.set = false
		s.ch = make(chan struct{})
	}
}

func (s *signal) IsSet() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.set
}

// Wait until the flag is set, the timeout expires or ctx is done.
func (s *signal) Wait(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ch:
		return true
	case <-t.C:
	case <-ctx.Done():
	}
	return false
}

//----------------------------------------------------------------------

// StationConfig holds optional parameters of a Station.
type StationConfig struct {
	Timeout time.Duration // default: ConnectTimeout
	Logger  *slog.Logger
}

// StationStatus is a point-in-time view of the state machine.
type StationStatus struct {
	State   State
	Mode    Mode
	Attempt int
	SSID    string
	Addr    netip.Addr
}

// Station drives the radio through the connection states. It is the
// only component issuing radio commands.
type Station struct {
	radio     Radio
	store     CredentialWriter
	log       *slog.Logger
	timeout   time.Duration
	connected *signal

	mu          sync.Mutex
	state       State
	mode        Mode
	attempt     int
	active      Credential // credential the radio is configured with
	addr        netip.Addr
	pending     bool // a Request is waiting for the outcome
	onFailed    func()
	onConnected func(netip.Addr)
}

// NewStation creates the state machine for a radio. Credentials that
// lead to an address are written to store (may be nil).
func NewStation(radio Radio, store CredentialWriter, cfg StationConfig) *Station {
	if cfg.Timeout <= 0 {
		cfg.Timeout = ConnectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Station{
		radio:     radio,
		store:     store,
		log:       logger,
		timeout:   cfg.Timeout,
		connected: newSignal(),
	}
}

// OnFailed registers a callback for exhausted retries outside of a
// pending Request. Called from the event loop.
func (s *Station) OnFailed(fn func()) {
	s.mu.Lock()
	s.onFailed = fn
	s.mu.Unlock()
}

// OnConnected registers a callback for an acquired address. Called
// from the event loop.
func (s *Station) OnConnected(fn func(netip.Addr)) {
	s.mu.Lock()
	s.onConnected = fn
	s.mu.Unlock()
}

// Status returns the current state.
func (s *Station) Status() StationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StationStatus{
		State:   s.state,
		Mode:    s.mode,
		Attempt: s.attempt,
		SSID:    s.active.SSID,
		Addr:    s.addr,
	}
}

// Request joins the network described by c. It blocks until an address
// is acquired or the timeout expires; on timeout the radio is stopped.
// A new request supersedes any attempt in progress.
func (s *Station) Request(ctx context.Context, c Credential) Outcome {
	s.mu.Lock()
	s.pending = true
	s.attempt = 0
	s.active = c
	s.addr = netip.Addr{}
	s.state = StateConnecting
	s.mode = ModeOff
	s.connected.Clear()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.pending = false
		s.mu.Unlock()
	}()

	if err := s.radio.Stop(); err != nil {
		s.log.Warn("radio stop failed", slog.String("err", err.Error()))
	}
	s.setMode(ModeStation)
	s.log.Info("trying to connect", slog.String("ssid", c.SSID))
	if err := s.radio.StartStation(c); err != nil {
		s.log.Error("station start failed", slog.String("err", err.Error()))
	} else if s.connected.Wait(ctx, s.timeout) {
		s.log.Info("connection successful", slog.String("ssid", c.SSID))
		return OutcomeConnected
	} else {
		s.log.Error("connection failed: timeout", slog.Duration("timeout", s.timeout))
	}
	if err := s.radio.Stop(); err != nil {
		s.log.Warn("radio stop failed", slog.String("err", err.Error()))
	}
	s.mu.Lock()
	s.mode = ModeOff
	s.state = StateFailed
	s.mu.Unlock()
	return OutcomeTimedOut
}

// StartAccessPoint switches the radio into access point mode.
func (s *Station) StartAccessPoint(cfg APConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.mode = ModeOff
	s.state = StateIdle
	s.attempt = 0
	s.addr = netip.Addr{}
	s.mu.Unlock()
	s.connected.Clear()

	if err := s.radio.Stop(); err != nil {
		s.log.Warn("radio stop failed", slog.String("err", err.Error()))
	}
	if err := s.radio.StartAccessPoint(cfg); err != nil {
		return err
	}
	s.setMode(ModeAccessPoint)
	s.log.Info("access point started",
		slog.String("ssid", cfg.SSID),
		slog.String("gateway", cfg.Gateway().String()),
		slog.Int("channel", cfg.Channel),
	)
	return nil
}

func (s *Station) setMode(m Mode) {
	s.mu.Lock()
	s.mode = m
	s.mu.Unlock()
}

// Run consumes radio events until ctx is done or the event channel
// is closed.
func (s *Station) Run(ctx context.Context) error {
	events := s.radio.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handle(ev)
		}
	}
}

// handle a single radio event.
func (s *Station) handle(ev Event) {
	s.mu.Lock()
	if s.mode != ModeStation {
		s.mu.Unlock()
		s.log.Debug("event ignored", slog.String("event", ev.Kind.String()))
		return
	}
	switch ev.Kind {
	case EventStationStarted:
		s.state = StateConnecting
		s.mu.Unlock()
		s.log.Info("station started, connecting")
		s.connect()

	case EventStationDisconnected:
		if s.state == StateFailed {
			s.mu.Unlock()
			s.log.Debug("disconnect ignored, retries exhausted")
			return
		}
		s.attempt++
		if s.attempt < MaxRetry {
			s.state = StateConnecting
			attempt := s.attempt
			s.mu.Unlock()
			s.log.Info("connection lost, reconnecting", slog.Int("attempt", attempt))
			s.connect()
			return
		}
		s.state = StateFailed
		s.addr = netip.Addr{}
		hook := s.onFailed
		if s.pending {
			hook = nil
		}
		s.mu.Unlock()
		s.connected.Clear()
		s.log.Error("connection attempts exhausted", slog.Int("attempts", MaxRetry))
		if hook != nil {
			hook()
		}

	case EventAddressAcquired:
		s.state = StateConnected
		s.attempt = 0
		s.addr = ev.Addr
		cred := s.active
		hook := s.onConnected
		s.mu.Unlock()
		s.log.Info("connected", slog.String("ssid", cred.SSID), slog.String("ip", ev.Addr.String()))
		if s.store != nil {
			if err := s.store.Write(cred); err != nil {
				s.log.Error("failed to save credential", slog.String("err", err.Error()))
			} else {
				s.log.Info("credential saved")
			}
		}
		if hook != nil {
			hook(ev.Addr)
		}
		s.connected.Set()

	default:
		s.mu.Unlock()
		s.log.Warn("unknown event", slog.String("event", ev.Kind.String()))
	}
}

func (s *Station) connect() {
	if err := s.radio.Connect(); err != nil {
		s.log.Error("connect request failed", slog.String("err", err.Error()))
	}
}
