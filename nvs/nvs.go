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

// Package nvs implements a small namespaced key/value store on top of a
// flash-like block device.
//
// The medium is split into two slots. A commit always writes the slot
// not holding the current record, payload first and header last, so an
// interrupted commit leaves the previous record in place.
package nvs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"maps"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// Version of the on-medium record format.
const Version = 1

const (
	magic    = 0x3153564e // "NVS1"
	hdrSize  = 20
	maxIdent = 15 // max. length of namespace and key names
)

// Error codes
var (
	ErrNotFound   = errors.New("key not found")
	ErrCorrupt    = errors.New("storage corrupt")
	ErrNewVersion = errors.New("storage version mismatch")
	ErrTooLarge   = errors.New("record exceeds slot size")
	ErrMedium     = errors.New("medium too small")
	ErrIdent      = errors.New("invalid namespace or key name")
)

// record is the persistent content: namespaces of string entries.
type record struct {
	Spaces map[string]map[string]string `cbor:"1,keyasint"`
}

func (r *record) clone() *record {
	out := &record{Spaces: make(map[string]map[string]string, len(r.Spaces))}
	for name, kv := range r.Spaces {
		out.Spaces[name] = maps.Clone(kv)
	}
	return out
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}
	if encMode, err = encOpts.EncMode(); err != nil {
		panic(fmt.Sprintf("nvs: cbor encoder mode: %v", err))
	}
	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	}
	if decMode, err = decOpts.DecMode(); err != nil {
		panic(fmt.Sprintf("nvs: cbor decoder mode: %v", err))
	}
}

//----------------------------------------------------------------------

// header precedes the payload in a slot.
type header struct {
	Magic   uint32
	Version uint16
	Flags   uint16
	Seq     uint32
	Len     uint32
	CRC     uint32
}

func (h *header) marshal() []byte {
	buf := make([]byte, hdrSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint16(buf[4:], h.Version)
	binary.LittleEndian.PutUint16(buf[6:], h.Flags)
	binary.LittleEndian.PutUint32(buf[8:], h.Seq)
	binary.LittleEndian.PutUint32(buf[12:], h.Len)
	binary.LittleEndian.PutUint32(buf[16:], h.CRC)
	return buf
}

func (h *header) unmarshal(buf []byte) {
	h.Magic = binary.LittleEndian.Uint32(buf[0:])
	h.Version = binary.LittleEndian.Uint16(buf[4:])
	h.Flags = binary.LittleEndian.Uint16(buf[6:])
	h.Seq = binary.LittleEndian.Uint32(buf[8:])
	h.Len = binary.LittleEndian.Uint32(buf[12:])
	h.CRC = binary.LittleEndian.Uint32(buf[16:])
}

// slot states
const (
	slotEmpty = iota
	slotValid
	slotCorrupt
	slotVersion
)

//----------------------------------------------------------------------

// Flash is an opened store.
type Flash struct {
	mu       sync.Mutex
	m        Medium
	blocks   int64   // erase blocks per slot
	slotSize int64   // bytes per slot
	active   int     // slot holding the committed record (-1: none)
	seq      uint32  // sequence number of the committed record
	cur      *record // committed content
	staged   *record // working copy
}

// Open reads the current record from the medium. ErrCorrupt and
// ErrNewVersion signal a medium that needs to be erased.
func Open(m Medium) (*Flash, error) {
	bs := m.EraseBlockSize()
	if bs <= 0 {
		return nil, ErrMedium
	}
	fl := &Flash{
		m:      m,
		blocks: m.Size() / bs / 2,
		active: -1,
		cur:    &record{Spaces: make(map[string]map[string]string)},
	}
	fl.slotSize = fl.blocks * bs
	if fl.blocks == 0 || fl.slotSize <= hdrSize {
		return nil, ErrMedium
	}
	var (
		state [2]int
		hdrs  [2]header
		recs  [2]*record
	)
	for i := range 2 {
		state[i], hdrs[i], recs[i] = fl.readSlot(i)
		if state[i] == slotVersion {
			return nil, ErrNewVersion
		}
	}
	switch {
	case state[0] == slotValid && state[1] == slotValid:
		fl.active = 0
		if int32(hdrs[1].Seq-hdrs[0].Seq) > 0 {
			fl.active = 1
		}
	case state[0] == slotValid:
		fl.active = 0
	case state[1] == slotValid:
		fl.active = 1
	case state[0] == slotEmpty && state[1] == slotEmpty:
	default:
		return nil, ErrCorrupt
	}
	if fl.active >= 0 {
		fl.seq = hdrs[fl.active].Seq
		fl.cur = recs[fl.active]
	}
	fl.staged = fl.cur.clone()
	return fl, nil
}

// Init opens the store; a corrupt or outdated medium is erased and
// reinitialized (losing its content).
func Init(m Medium) (*Flash, error) {
	fl, err := Open(m)
	if errors.Is(err, ErrCorrupt) || errors.Is(err, ErrNewVersion) {
		bs := m.EraseBlockSize()
		if err = m.EraseBlocks(0, m.Size()/bs); err != nil {
			return nil, err
		}
		fl, err = Open(m)
	}
	return fl, err
}

// readSlot inspects slot i.
func (fl *Flash) readSlot(i int) (state int, h header, rec *record) {
	off := int64(i) * fl.slotSize
	buf := make([]byte, hdrSize)
	if _, err := fl.m.ReadAt(buf, off); err != nil {
		return slotCorrupt, h, nil
	}
	h.unmarshal(buf)
	if h.Magic == 0xffffffff {
		for _, b := range buf {
			if b != 0xff {
				return slotCorrupt, h, nil
			}
		}
		return slotEmpty, h, nil
	}
	if h.Magic != magic {
		return slotCorrupt, h, nil
	}
	if h.Version != Version {
		return slotVersion, h, nil
	}
	if int64(h.Len) > fl.slotSize-hdrSize {
		return slotCorrupt, h, nil
	}
	data := make([]byte, h.Len)
	if _, err := fl.m.ReadAt(data, off+hdrSize); err != nil {
		return slotCorrupt, h, nil
	}
	if crc32.ChecksumIEEE(data) != h.CRC {
		return slotCorrupt, h, nil
	}
	rec = new(record)
	if err := decMode.Unmarshal(data, rec); err != nil {
		return slotCorrupt, h, nil
	}
	if rec.Spaces == nil {
		rec.Spaces = make(map[string]map[string]string)
	}
	return slotValid, h, rec
}

// commit writes the staged record into the inactive slot.
func (fl *Flash) commit() error {
	data, err := encMode.Marshal(fl.staged)
	if err != nil {
		return err
	}
	if int64(len(data)) > fl.slotSize-hdrSize {
		return ErrTooLarge
	}
	target := 0
	if fl.active == 0 {
		target = 1
	}
	off := int64(target) * fl.slotSize
	if err = fl.m.EraseBlocks(int64(target)*fl.blocks, fl.blocks); err != nil {
		return err
	}
	if _, err = fl.m.WriteAt(data, off+hdrSize); err != nil {
		return err
	}
	h := &header{
		Magic:   magic,
		Version: Version,
		Seq:     fl.seq + 1,
		Len:     uint32(len(data)),
		CRC:     crc32.ChecksumIEEE(data),
	}
	if _, err = fl.m.WriteAt(h.marshal(), off); err != nil {
		return err
	}
	if s, ok := fl.m.(syncer); ok {
		if err = s.Sync(); err != nil {
			return err
		}
	}
	fl.active = target
	fl.seq = h.Seq
	fl.cur = fl.staged.clone()
	return nil
}

// Namespace returns a handle for the named namespace.
func (fl *Flash) Namespace(name string) (*Namespace, error) {
	if !validIdent(name) {
		return nil, ErrIdent
	}
	return &Namespace{fl: fl, name: name}, nil
}

func validIdent(s string) bool {
	return len(s) > 0 && len(s) <= maxIdent
}

//----------------------------------------------------------------------

// Namespace is a view on the entries of one namespace. Changes are
// staged until Commit.
type Namespace struct {
	fl   *Flash
	name string
}

// SetString stages a value.
func (ns *Namespace) SetString(key, val string) error {
	if !validIdent(key) {
		return ErrIdent
	}
	ns.fl.mu.Lock()
	defer ns.fl.mu.Unlock()
	kv := ns.fl.staged.Spaces[ns.name]
	if kv == nil {
		kv = make(map[string]string)
		ns.fl.staged.Spaces[ns.name] = kv
	}
	kv[key] = val
	return nil
}

// GetString returns a (staged or committed) value.
func (ns *Namespace) GetString(key string) (string, error) {
	ns.fl.mu.Lock()
	defer ns.fl.mu.Unlock()
	val, ok := ns.fl.staged.Spaces[ns.name][key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

// Commit persists all staged changes of the store.
func (ns *Namespace) Commit() error {
	ns.fl.mu.Lock()
	defer ns.fl.mu.Unlock()
	return ns.fl.commit()
}

// Rollback discards staged changes of this namespace.
func (ns *Namespace) Rollback() {
	ns.fl.mu.Lock()
	defer ns.fl.mu.Unlock()
	if kv, ok := ns.fl.cur.Spaces[ns.name]; ok {
		ns.fl.staged.Spaces[ns.name] = maps.Clone(kv)
	} else {
		delete(ns.fl.staged.Spaces, ns.name)
	}
}

