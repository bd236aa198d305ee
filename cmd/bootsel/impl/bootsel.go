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

//go:build linux

// Package impl wires the boot selector to the hardware of a zsipos device.
package impl

import (
	"context"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/internal/boot"
	"github.com/zsipos/bootsel/internal/devicetree"
	"github.com/zsipos/bootsel/internal/flash"
	"github.com/zsipos/bootsel/internal/hw"
	"github.com/zsipos/bootsel/internal/kexec"
	"github.com/zsipos/bootsel/internal/storage"
)

// BootselOpts encapsulates the parameters for running the boot selector.
type BootselOpts struct {
	// PartitionDev turns a partition index into its block device path.
	PartitionDev string
	// FlashDev is the raw flash device images are written to.
	FlashDev string
	// FlashNode is the device tree path of the flash chip.
	FlashNode string
	// DeviceTree is the device tree blob describing the board.
	DeviceTree string

	Config boot.Config
}

// lazyFlash opens the flash device on the first write, so that a boot which
// does not update firmware never touches it.
type lazyFlash struct {
	path string
	dev  *flash.Device
}

func (l *lazyFlash) WriteFlash(ctx context.Context, offset int64, b []byte) error {
	if l.dev == nil {
		d, err := flash.Open(l.path)
		if err != nil {
			return err
		}
		l.dev = d
	}
	return l.dev.WriteFlash(ctx, offset, b)
}

// Main runs one boot attempt on the device.
//
// It returns only if the attempt failed. The error is either unrecoverable
// or a halt, see boot.Run.
func Main(ctx context.Context, opts BootselOpts) error {
	dtb, err := os.ReadFile(opts.DeviceTree)
	if err != nil {
		return boot.Unrecoverable(fmt.Errorf("failed to read device tree: %w", err))
	}
	tree, err := devicetree.Load(dtb)
	if err != nil {
		return boot.Unrecoverable(err)
	}

	fl := &lazyFlash{path: opts.FlashDev}
	defer func() {
		if fl.dev != nil {
			fl.dev.Close()
		}
	}()

	dev := boot.Device{
		Storage:    storage.Device{Pattern: opts.PartitionDev},
		Flash:      fl,
		FlashTable: devicetree.FlashTable{Tree: tree, Flash: opts.FlashNode},
		Tree:       tree,
		Registers:  hw.MMIO{},
		Executor:   kexec.Executor{},
	}

	r, err := boot.New(dev, opts.Config).Run(ctx)
	if err != nil {
		return fmt.Errorf("boot attempt stopped in state %v: %w", r.State, err)
	}
	glog.Warningf("kernel returned from handover")
	return fmt.Errorf("%w: kernel returned", boot.ErrHalt)
}
