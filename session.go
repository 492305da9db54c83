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
	"io"
	"log/slog"
)

// MaxMessage is the size of the receive buffer; a single read is one
// protocol message.
const MaxMessage = 512

// Protocol replies
const (
	ReplyNameOK        = "SSID received. Waiting for password...\n"
	ReplyNameInvalid   = "Invalid or missing SSID information!\n"
	ReplySecretInvalid = "Invalid or missing password information!\n"
	ReplySaved         = "Connected to the network and information saved.\n"
	ReplyNotSaved      = "Connected but could not save information!\n"
	ReplyConnectFailed = "Failed to connect to the network. Please check the information.\n"
)

// Phase of a provisioning session
type Phase int

const (
	AwaitingName Phase = iota
	AwaitingSecret
)

func (p Phase) String() string {
	if p == AwaitingSecret {
		return "awaiting-secret"
	}
	return "awaiting-name"
}

// Connector joins a network (see Manager.Connect).
type Connector interface {
	Connect(ctx context.Context, c Credential) Outcome
}

// Session is the two-phase provisioning exchange with one client.
type Session struct {
	conn    Connector
	store   CredentialWriter
	log     *slog.Logger
	phase   Phase
	pending string // network name received in phase 1
}

// NewSession starts a session in phase AwaitingName.
func NewSession(conn Connector, store CredentialWriter, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Session{
		conn:  conn,
		store: store,
		log:   logger,
		phase: AwaitingName,
	}
}

// Phase returns the current protocol phase.
func (s *Session) Phase() Phase {
	return s.phase
}

// Handle processes one message and returns the reply.
func (s *Session) Handle(ctx context.Context, msg []byte) string {
	if s.phase == AwaitingName {
		name, ok := Extract(msg, KeyName, NameCapacity)
		if !ok {
			return ReplyNameInvalid
		}
		s.pending = name
		s.phase = AwaitingSecret
		s.log.Info("network name received", slog.String("ssid", name))
		return ReplyNameOK
	}
	secret, ok := Extract(msg, KeySecret, SecretCapacity)
	if !ok {
		return ReplySecretInvalid
	}
	c := Credential{SSID: s.pending, Passphrase: secret}
	s.phase = AwaitingName
	s.pending = ""
	if s.conn.Connect(ctx, c) != OutcomeConnected {
		return ReplyConnectFailed
	}
	if err := s.store.Write(c); err != nil {
		s.log.Error("saving credential failed", slog.String("err", err.Error()))
		return ReplyNotSaved
	}
	return ReplySaved
}

// Run serves the session on rw until the peer closes the stream or a
// transfer fails.
func (s *Session) Run(ctx context.Context, rw io.ReadWriter) error {
	buf := make([]byte, MaxMessage)
	for {
		n, err := rw.Read(buf)
		if n > 0 {
			s.log.Debug("received", slog.String("data", string(Sanitize(buf[:n]))))
			reply := s.Handle(ctx, buf[:n])
			if _, werr := io.WriteString(rw, reply); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
