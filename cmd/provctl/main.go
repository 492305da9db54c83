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

// provctl sends network credentials to a provisioning server. Without
// --ssid it prompts for the values interactively.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bfix/netprov"
	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "provctl:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "provctl",
		Short:         "Provision Wi-Fi credentials to a device",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().StringP("addr", "a", fmt.Sprintf("192.168.1.1:%d", netprov.DefaultPort), "device address")
	cmd.Flags().String("ssid", "", "network name")
	cmd.Flags().String("password", "", "network passphrase")
	cmd.Flags().Duration("timeout", 45*time.Second, "max. time per request")
	return cmd
}

func run(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	addr, _ := flags.GetString("addr")
	ssid, _ := flags.GetString("ssid")
	pass, _ := flags.GetString("password")
	timeout, _ := flags.GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	cl, err := netprov.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer cl.Close()

	if ssid != "" {
		reply, err := cl.Provision(ctx, ssid, pass)
		fmt.Fprint(cmd.OutOrStdout(), reply)
		if err != nil {
			return err
		}
		if !netprov.Succeeded(reply) {
			return errors.New("provisioning failed")
		}
		return nil
	}
	return interactive(cmd, cl, timeout)
}

// interactive prompts for name and passphrase until the device reports
// a connection or the user quits.
func interactive(cmd *cobra.Command, cl *netprov.Client, timeout time.Duration) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "ssid> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	out := rl.Stdout()

	send := func(key, val string) (string, error) {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return cl.Send(ctx, key, val)
	}
	for {
		rl.SetPrompt("ssid> ")
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		ssid := strings.TrimSpace(line)
		if ssid == "" {
			continue
		}
		reply, err := send(netprov.KeyName, ssid)
		if err != nil {
			return err
		}
		fmt.Fprint(out, reply)
		if reply != netprov.ReplyNameOK {
			continue
		}

		pass, err := rl.ReadPassword("password> ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "connecting...")
		if reply, err = send(netprov.KeySecret, string(pass)); err != nil {
			return err
		}
		fmt.Fprint(out, reply)
		if netprov.Succeeded(reply) {
			return nil
		}
	}
}
