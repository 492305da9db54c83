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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "ok", StatusText(StatOK))
	assert.Equal(t, "exception", StatusText(StatEXCP))
	assert.Equal(t, "status(99)", StatusText(99))
}

func TestStatusNil(t *testing.T) {
	var s *Status
	s.Set(StatAP, 0)
	code, repeat := s.Get()
	assert.Equal(t, StatUNK, code)
	assert.Equal(t, 0, repeat)
}

func TestStatusBlink(t *testing.T) {
	dev := &ledDevice{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := &Status{dev: dev}
	s.Set(StatDEV, 1)
	go s.blink(ctx, 10*time.Millisecond)

	// one round of two blinks, then back to ok
	assert.Eventually(t, func() bool {
		code, _ := s.Get()
		return code == StatOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, dev.toggles.Load(), int32(StatDEV))
}
