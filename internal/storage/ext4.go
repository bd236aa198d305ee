// Copyright 2026 Google LLC. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dsoprea/go-ext4"
)

// Partition is an ext4 filesystem starting at Offset on Dev.
type Partition struct {
	Dev    io.ReaderAt
	Offset int64
	Size   int64

	pos int64
}

func (d *Partition) getBlockGroupDescriptor(inode int) (bgd *ext4.BlockGroupDescriptor, err error) {
	_, err = d.Seek(ext4.Superblock0Offset, io.SeekStart)
	if err != nil {
		return
	}

	sb, err := ext4.NewSuperblockWithReader(d)
	if err != nil {
		return
	}

	bgdl, err := ext4.NewBlockGroupDescriptorListWithReadSeeker(d, sb)
	if err != nil {
		return
	}

	return bgdl.GetWithAbsoluteInode(inode)
}

// Read implements io.Reader.
func (d *Partition) Read(p []byte) (n int, err error) {
	if rem := d.Offset + d.Size - d.pos; int64(len(p)) > rem {
		if rem <= 0 {
			return 0, io.EOF
		}
		p = p[:rem]
	}

	n, err = d.Dev.ReadAt(p, d.pos)
	d.pos += int64(n)
	if err == io.EOF && n > 0 {
		err = nil
	}
	return
}

// Seek implements io.Seeker.
func (d *Partition) Seek(offset int64, whence int) (int64, error) {
	pos := d.pos

	switch whence {
	case io.SeekStart:
		pos = d.Offset + offset
	case io.SeekCurrent:
		pos += offset
	case io.SeekEnd:
		pos = d.Offset + d.Size + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}

	if pos > d.Offset+d.Size || pos < d.Offset {
		return 0, fmt.Errorf("invalid offset %d (%d)", pos, offset)
	}

	d.pos = pos
	return pos - d.Offset, nil
}

// ReadAll returns the content of the file at fullPath.
func (d *Partition) ReadAll(ctx context.Context, fullPath string) ([]byte, error) {
	path := strings.Split(strings.Trim(fullPath, "/"), "/")

	bgd, err := d.getBlockGroupDescriptor(ext4.InodeRootDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	dw, err := ext4.NewDirectoryWalk(d, bgd, ext4.InodeRootDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory: %w", err)
	}

	var i, inodeNumber int
	for inodeNumber == 0 {
		p, de, err := dw.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, err
		}

		if p != path[i] {
			continue
		}

		deInode := int(de.Data().Inode)
		bgd, err = d.getBlockGroupDescriptor(deInode)
		if err != nil {
			return nil, err
		}

		if i == len(path)-1 {
			inodeNumber = deInode
			break
		}

		dw, err = ext4.NewDirectoryWalk(d, bgd, deInode)
		if err != nil {
			return nil, err
		}
		i++
	}

	if inodeNumber == 0 {
		return nil, errors.New("file not found")
	}

	inode, err := ext4.NewInodeWithReadSeeker(bgd, d, inodeNumber)
	if err != nil {
		return nil, err
	}

	en := ext4.NewExtentNavigatorWithReadSeeker(d, inode)
	return readAbortable(ctx, ext4.NewInodeReader(en))
}
