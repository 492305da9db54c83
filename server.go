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
	"io"
	"log/slog"
	"net"

	"github.com/google/uuid"
)

// DefaultPort of the provisioning service
const DefaultPort = 3333

// Server accepts provisioning clients one at a time.
type Server struct {
	lst    net.Listener
	conn   Connector
	store  CredentialWriter
	status *Status
	log    *slog.Logger
}

// NewServer creates a provisioning server on an established listener.
func NewServer(lst net.Listener, conn Connector, store CredentialWriter, status *Status, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	return &Server{
		lst:    lst,
		conn:   conn,
		store:  store,
		status: status,
		log:    logger,
	}
}

// Serve runs the accept loop until ctx is done or the listener is
// closed. Each client is served to completion before the next one is
// accepted.
func (srv *Server) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		srv.lst.Close()
	})
	defer stop()
	srv.log.Info("provisioning server started", slog.String("addr", srv.lst.Addr().String()))
	for {
		srv.log.Debug("waiting for connection")
		c, err := srv.lst.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			srv.log.Error("accept failed", slog.String("err", err.Error()))
			srv.status.Set(StatSRV, 3)
			continue
		}
		srv.handle(ctx, c)
	}
}

// handle a single client connection.
func (srv *Server) handle(ctx context.Context, c net.Conn) {
	defer c.Close()
	// unblock the session read on shutdown
	stop := context.AfterFunc(ctx, func() {
		c.Close()
	})
	defer stop()
	logger := srv.log.With(slog.String("session", uuid.NewString()))
	logger.Info("client connected", slog.String("peer", c.RemoteAddr().String()))
	sess := NewSession(srv.conn, srv.store, logger)
	if err := sess.Run(ctx, c); err != nil {
		logger.Warn("session aborted", slog.String("err", err.Error()))
		return
	}
	logger.Info("client disconnected")
}
