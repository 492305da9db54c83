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

// File is the content of a namespace entry.
type File interface {
	Read() ([]byte, error)
	Write([]byte) error
}

//----------------------------------------------------------------------

// NopFile is empty and ignores writes.
type NopFile struct{}

func (f *NopFile) Read() (data []byte, err error) {
	return
}

func (f *NopFile) Write([]byte) (err error) {
	return
}

//----------------------------------------------------------------------

// TextFile has constant content.
type TextFile struct {
	NopFile
	body string
}

func NewTextFile(content string) *TextFile {
	return &TextFile{
		body: content,
	}
}

func (f *TextFile) Read() ([]byte, error) {
	return []byte(f.body), nil
}

//----------------------------------------------------------------------

// FuncFile computes its content on every read.
type FuncFile struct {
	NopFile
	fcn func() ([]byte, error)
}

func NewFuncFile(fcn func() ([]byte, error)) *FuncFile {
	return &FuncFile{
		fcn: fcn,
	}
}

func (f *FuncFile) Read() ([]byte, error) {
	return f.fcn()
}

// LineFile returns the value of a function followed by a newline.
func LineFile(fcn func() string) *FuncFile {
	return NewFuncFile(func() ([]byte, error) {
		return []byte(fcn() + "\n"), nil
	})
}
