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

package nvs

import (
	"errors"
	"io"
	"os"
)

// Medium is a block device with erase semantics. TinyGo's machine.Flash
// satisfies it; erased bytes read back as 0xFF.
type Medium interface {
	io.ReaderAt
	io.WriterAt

	// Size of the medium in bytes
	Size() int64
	// EraseBlockSize is the smallest erasable unit in bytes
	EraseBlockSize() int64
	// EraseBlocks erases 'length' blocks starting at block 'start'
	EraseBlocks(start, length int64) error
}

// syncer is implemented by media that buffer writes.
type syncer interface {
	Sync() error
}

var errRange = errors.New("access beyond end of medium")

//----------------------------------------------------------------------

// MemMedium keeps the device contents in RAM.
type MemMedium struct {
	data  []byte
	block int64
}

// NewMemMedium returns an erased in-memory medium of 'blocks' erase blocks.
func NewMemMedium(blocks, blockSize int64) *MemMedium {
	m := &MemMedium{
		data:  make([]byte, blocks*blockSize),
		block: blockSize,
	}
	fill(m.data)
	return m
}

func (m *MemMedium) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, errRange
	}
	return copy(p, m.data[off:]), nil
}

func (m *MemMedium) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, errRange
	}
	return copy(m.data[off:], p), nil
}

func (m *MemMedium) Size() int64 {
	return int64(len(m.data))
}

func (m *MemMedium) EraseBlockSize() int64 {
	return m.block
}

func (m *MemMedium) EraseBlocks(start, length int64) error {
	from, to := start*m.block, (start+length)*m.block
	if from < 0 || to > int64(len(m.data)) {
		return errRange
	}
	fill(m.data[from:to])
	return nil
}

//----------------------------------------------------------------------

// FileMedium emulates a flash partition with a regular file.
type FileMedium struct {
	f     *os.File
	size  int64
	block int64
}

// OpenFileMedium opens (or creates) a file-backed medium. A new or
// short file is extended with erased blocks.
func OpenFileMedium(path string, blocks, blockSize int64) (*FileMedium, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, err
	}
	m := &FileMedium{
		f:     f,
		size:  blocks * blockSize,
		block: blockSize,
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if have := fi.Size(); have < m.size {
		first := have / blockSize
		if err = m.EraseBlocks(first, blocks-first); err != nil {
			f.Close()
			return nil, err
		}
	}
	return m, nil
}

func (m *FileMedium) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > m.size {
		return 0, errRange
	}
	return m.f.ReadAt(p, off)
}

func (m *FileMedium) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > m.size {
		return 0, errRange
	}
	return m.f.WriteAt(p, off)
}

func (m *FileMedium) Size() int64 {
	return m.size
}

func (m *FileMedium) EraseBlockSize() int64 {
	return m.block
}

func (m *FileMedium) EraseBlocks(start, length int64) error {
	if start < 0 || (start+length)*m.block > m.size {
		return errRange
	}
	buf := make([]byte, m.block)
	fill(buf)
	for i := start; i < start+length; i++ {
		if _, err := m.f.WriteAt(buf, i*m.block); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes the file to stable storage.
func (m *FileMedium) Sync() error {
	return m.f.Sync()
}

// Close the underlying file.
func (m *FileMedium) Close() error {
	return m.f.Close()
}

func fill(buf []byte) {
	for i := range buf {
		buf[i] = 0xff
	}
}
