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
	"net"
	"strconv"
	"strings"

	"git.sr.ht/~moody/ninep"
)

// Error codes
var (
	errNoRoot = errors.New("no root directory")
	errNoFile = errors.New("no such file or directory")
	errNoDir  = errors.New("not a directory")
	errNoAbs  = errors.New("no absolute path")
)

//----------------------------------------------------------------------

// Entry in the namespace (file or directory)
type Entry struct {
	ref      *ninep.Dir        // 9p reference
	children map[string]*Entry // list of children (for folders) or nil
	file     File              // file implementation or nil (for folders)
}

// IsDir returns true if the entry is a directory
func (e *Entry) IsDir() bool {
	return e.children != nil
}

// NewFile creates a file entry.
func NewFile(name, user, group string, perm uint32, impl File) *Entry {
	return newEntry(name, user, group, perm, impl)
}

// NewDir creates a directory entry.
func NewDir(name, user, group string, perm uint32) *Entry {
	return newEntry(name, user, group, perm, nil)
}

func newEntry(name, user, group string, perm uint32, impl File) *Entry {
	e := new(Entry)
	kind := ninep.QTFile
	if impl == nil {
		kind = ninep.QTDir
		e.children = make(map[string]*Entry)
		perm |= ninep.DMDir
	} else {
		e.file = impl
	}
	e.ref = &ninep.Dir{
		Qid: ninep.Qid{
			Vers: 0,
			Type: byte(kind),
		},
		Name: name,
		Mode: perm,
		Uid:  user,
		Gid:  group,
		Muid: user,
	}
	return e
}

//----------------------------------------------------------------------

// Namespace is a 9p filesystem
type Namespace struct {
	ninep.NopFS                   // use default handlers where needed
	dict        map[uint64]*Entry // map Qid.Path to filesystem entry
	nextID      uint64            // next Qid.Path to assign
	user, group string            // owner of entries
}

// NewNamespace creates an empty filesystem (only root directory)
func NewNamespace(user, group string, perm uint32) *Namespace {
	ns := &Namespace{
		dict:  make(map[uint64]*Entry),
		user:  user,
		group: group,
	}
	e := NewDir("/", user, group, perm)
	ns.register(e)
	return ns
}

func (ns *Namespace) register(e *Entry) {
	e.ref.Path = ns.nextID
	ns.nextID++
	ns.dict[e.ref.Path] = e
}

// Root directory of the namespace
func (ns *Namespace) Root() *Entry {
	return ns.dict[0]
}

// Get the entry for a given path
func (ns *Namespace) Get(path string) (*Entry, error) {
	if len(path) == 0 || path[0] != '/' {
		return nil, errNoAbs
	}
	curr := ns.Root()
	for _, label := range strings.Split(path[1:], "/") {
		if len(label) == 0 {
			continue
		}
		if curr.children == nil {
			return nil, errNoDir
		}
		next, ok := curr.children[label]
		if !ok {
			return nil, errNoFile
		}
		curr = next
	}
	return curr, nil
}

// AddChild adds an entry to a directory
func (ns *Namespace) AddChild(parent, child *Entry) error {
	if parent.children == nil {
		return errNoDir
	}
	ns.register(child)
	parent.children[child.ref.Name] = child
	return nil
}

// AddFile creates a read-only file with given path in an existing
// directory.
func (ns *Namespace) AddFile(path string, impl File) error {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return errNoAbs
	}
	dir, err := ns.Get(path[:idx+1])
	if err != nil {
		return err
	}
	return ns.AddChild(dir, NewFile(path[idx+1:], ns.user, ns.group, 0444, impl))
}

// AddDir creates a directory at path.
func (ns *Namespace) AddDir(path string) error {
	idx := strings.LastIndexByte(path, '/')
	if idx < 0 {
		return errNoAbs
	}
	dir, err := ns.Get(path[:idx+1])
	if err != nil {
		return err
	}
	return ns.AddChild(dir, NewDir(path[idx+1:], ns.user, ns.group, 0555))
}

// ReadFile returns the content of the file at path.
func (ns *Namespace) ReadFile(path string) ([]byte, error) {
	e, err := ns.Get(path)
	if err != nil {
		return nil, err
	}
	if e.IsDir() {
		return nil, errNoFile
	}
	return e.file.Read()
}

// Serve namespace on a listen address
func (ns *Namespace) Serve(listen string) error {
	srv := ninep.NewSrv(func() ninep.FS { return ns })
	return srv.ListenAndServe(listen)
}

// ServeConn serves the namespace on an established connection.
func (ns *Namespace) ServeConn(c net.Conn) {
	srv := ninep.NewSrv(func() ninep.FS { return ns })
	srv.ServeIO(c, c)
}

//----------------------------------------------------------------------
// 9p handlers
//----------------------------------------------------------------------

// Attach to namespace
func (ns *Namespace) Attach(t *ninep.Tattach) {
	if e, ok := ns.dict[0]; ok {
		t.Respond(&e.ref.Qid)
	} else {
		t.Err(errNoRoot)
	}
}

// Walk to next entry
func (ns *Namespace) Walk(cur *ninep.Qid, next string) *ninep.Qid {
	e, ok := ns.dict[cur.Path]
	if !ok {
		return nil
	}
	if c, ok := e.children[next]; ok {
		return &c.ref.Qid
	}
	return nil
}

// Open entry
func (ns *Namespace) Open(t *ninep.Topen, q *ninep.Qid) {
	t.Respond(q, 8192)
}

// Read from entry
func (ns *Namespace) Read(t *ninep.Tread, q *ninep.Qid) {
	e, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
		return
	}
	if e.children != nil {
		var kids []ninep.Dir
		for _, c := range e.children {
			kids = append(kids, *c.ref)
		}
		ninep.ReadDir(t, kids)
		return
	}
	data, err := e.file.Read()
	if err != nil {
		t.Err(err)
	} else {
		ninep.ReadBuf(t, data)
	}
}

// Stat entry
func (ns *Namespace) Stat(t *ninep.Tstat, q *ninep.Qid) {
	e, ok := ns.dict[q.Path]
	if !ok {
		t.Err(errNoFile)
	} else {
		t.Respond(e.ref)
	}
}

//----------------------------------------------------------------------

// NewStatusNamespace exposes the connection state as a read-only tree:
//
//	/status          LED status code name
//	/wifi/state      connection state
//	/wifi/mode       radio mode
//	/wifi/ssid       configured network name
//	/wifi/attempt    current join attempt
//	/wifi/addr       station address
func NewStatusNamespace(st *Station, status *Status) (*Namespace, error) {
	ns := NewNamespace("sys", "sys", 0555)
	files := []struct {
		path string
		fcn  func() string
	}{
		{"/status", func() string {
			s, _ := status.Get()
			return StatusText(s)
		}},
		{"/wifi/state", func() string { return st.Status().State.String() }},
		{"/wifi/mode", func() string { return st.Status().Mode.String() }},
		{"/wifi/ssid", func() string { return st.Status().SSID }},
		{"/wifi/attempt", func() string { return strconv.Itoa(st.Status().Attempt) }},
		{"/wifi/addr", func() string {
			if a := st.Status().Addr; a.IsValid() {
				return a.String()
			}
			return ""
		}},
	}
	if err := ns.AddDir("/wifi"); err != nil {
		return nil, err
	}
	for _, f := range files {
		if err := ns.AddFile(f.path, LineFile(f.fcn)); err != nil {
			return nil, err
		}
	}
	return ns, nil
}
