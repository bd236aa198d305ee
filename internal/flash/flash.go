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

// Package flash writes firmware images into raw flash.
package flash

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"
)

// DefaultChunkSize is the number of bytes written between two abort checks.
const DefaultChunkSize = 64 << 10

// Device is raw flash accessed through an io.WriterAt, typically the
// mtdblock device of the whole flash chip which takes care of erasing.
type Device struct {
	W         io.WriterAt
	ChunkSize int

	closer io.Closer
}

// Open opens the raw flash device at path for writing.
func Open(path string) (*Device, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash %q: %w", path, err)
	}
	return &Device{W: f, closer: f}, nil
}

// Close releases the underlying device, if Open created it.
func (d *Device) Close() error {
	if d.closer == nil {
		return nil
	}
	return d.closer.Close()
}

// WriteFlash writes b to flash at offset.
//
// The data is written in chunks and ctx is checked before each of them, so a
// user abort stops the transfer between two chunks. A short write is reported
// as an error.
func (d *Device) WriteFlash(ctx context.Context, offset int64, b []byte) error {
	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = DefaultChunkSize
	}

	for written := 0; written < len(b); {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("flash write aborted at 0x%x: %w", offset+int64(written), err)
		}
		end := written + chunk
		if end > len(b) {
			end = len(b)
		}
		at := offset + int64(written)
		n, err := d.W.WriteAt(b[written:end], at)
		if err != nil {
			return fmt.Errorf("flash write failed at 0x%x: %w", at, err)
		}
		if n != end-written {
			return fmt.Errorf("short flash write at 0x%x: %d of %d bytes", at, n, end-written)
		}
		written = end
		glog.V(2).Infof("flashed %d/%d bytes at 0x%x", written, len(b), offset)
	}

	return nil
}
