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

// Package storage reads files from the numbered partitions of the boot media.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/api"
)

// transferChunk is the number of bytes moved between two abort checks.
const transferChunk = 64 << 10

// Device reads ext4 filesystems from the partitions of a block device.
type Device struct {
	// Pattern turns a partition index into the path of its block device,
	// e.g. "/dev/mmcblk0p%d".
	Pattern string
}

// Read returns the content of path on the given partition.
func (d Device) Read(ctx context.Context, p api.PartitionIndex, path string) ([]byte, error) {
	dev := fmt.Sprintf(d.Pattern, p)
	f, err := os.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("failed to open partition %d: %w", p, err)
	}
	defer f.Close()

	fi, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to size partition %d: %w", p, err)
	}
	part := &Partition{Dev: f, Size: fi}
	return part.ReadAll(ctx, path)
}

// Dir keeps each partition as a directory named part<N> below Root.
type Dir struct {
	Root string
}

// Read returns the content of path on the given partition.
func (d Dir) Read(ctx context.Context, p api.PartitionIndex, path string) ([]byte, error) {
	full := filepath.Join(d.Root, fmt.Sprintf("part%d", p), filepath.Clean("/"+path))
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("failed to open %q: %w", full, err)
	}
	defer f.Close()
	return readAbortable(ctx, f)
}

// readAbortable reads r to EOF, checking for a user abort between chunks.
func readAbortable(ctx context.Context, r io.Reader) ([]byte, error) {
	var out []byte
	buf := make([]byte, transferChunk)
	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("transfer aborted after %d bytes: %w", len(out), err)
		}
		n, err := r.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			glog.V(2).Infof("transferred %d bytes", len(out))
			return out, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
