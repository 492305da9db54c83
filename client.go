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
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"time"
)

var (
	ErrValue    = errors.New("value not transferable")
	ErrRejected = errors.New("rejected by device")
)

// Client talks to a provisioning server.
type Client struct {
	conn net.Conn
	rd   *bufio.Reader
}

// Dial connects to a provisioning server ("host:port").
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{
		conn: conn,
		rd:   bufio.NewReader(conn),
	}
}

// Close the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Send transfers a single field and returns the reply line.
func (c *Client) Send(ctx context.Context, key, val string) (string, error) {
	if strings.ContainsAny(val, "\"\n") {
		return "", ErrValue
	}
	msg := `{"` + key + `":"` + val + `"}`
	if len(msg) > MaxMessage {
		return "", ErrValue
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Time{}
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", err
	}
	if _, err := c.conn.Write([]byte(msg)); err != nil {
		return "", err
	}
	return c.rd.ReadString('\n')
}

// Provision sends a network name and secret. It returns the final reply
// of the device; ErrRejected is returned if the name was not accepted.
func (c *Client) Provision(ctx context.Context, ssid, secret string) (string, error) {
	reply, err := c.Send(ctx, KeyName, ssid)
	if err != nil {
		return reply, err
	}
	if reply != ReplyNameOK {
		return reply, ErrRejected
	}
	return c.Send(ctx, KeySecret, secret)
}

// Succeeded reports whether a reply signals a successful connection.
func Succeeded(reply string) bool {
	return reply == ReplySaved || reply == ReplyNotSaved
}
