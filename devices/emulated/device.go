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

// Package emulated provides a device backed by files on the host, which the
// boot selector can run against end to end.
//
// The device storage directory holds:
//
//	part1/, part2/   the two storage partitions
//	flash.bin        raw flash
//	registers.json   register values, keyed by address
//	device.dtb       the device tree of the board
//	handover.dtb     the device tree handed to the kernel by the last boot
package emulated

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/golang/glog"
	"github.com/marcinbor85/gohex"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/boot"
	"github.com/zsipos/bootsel/internal/devicetree"
	"github.com/zsipos/bootsel/internal/flash"
	"github.com/zsipos/bootsel/internal/hw"
	"github.com/zsipos/bootsel/internal/storage"
)

const (
	flashPath     = "flash.bin"
	registersPath = "registers.json"
	dtbPath       = "device.dtb"
	handoverPath  = "handover.dtb"
)

// Region is a range of flash written during a boot attempt.
type Region struct {
	Offset int64
	Data   []byte
}

// Handover records the kernel handover of a boot attempt.
type Handover struct {
	Kernel     []byte
	KernelAddr uint64
	DTB        []byte
	DTBAddr    uint64
}

// Device is an emulated board using the local filesystem for storage.
type Device struct {
	storage string

	Regs  *hw.Memory
	Tree  *devicetree.Tree
	file  *os.File
	flash *flash.Device

	// Written lists the flash regions written so far, oldest first.
	Written []Region
	// Handover is set once the boot selector started a kernel.
	Handover *Handover
}

var (
	_ boot.Flash    = &Device{}
	_ boot.Executor = &Device{}
)

// New opens the emulated device kept in the storage directory.
func New(storage string) (*Device, error) {
	dStat, err := os.Stat(storage)
	if err != nil {
		return nil, fmt.Errorf("unable to stat device storage dir %q: %w", storage, err)
	}
	if !dStat.Mode().IsDir() {
		return nil, fmt.Errorf("device storage %q is not a directory", storage)
	}

	d := &Device{storage: storage}

	if d.Regs, err = loadRegisters(filepath.Join(storage, registersPath)); err != nil {
		return nil, err
	}

	dtb, err := os.ReadFile(filepath.Join(storage, dtbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read device tree: %w", err)
	}
	if d.Tree, err = devicetree.Load(dtb); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(storage, flashPath), os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open flash: %w", err)
	}
	d.file = f
	d.flash = &flash.Device{W: f}
	return d, nil
}

// Close releases the flash file.
func (d *Device) Close() error {
	return d.file.Close()
}

// Boot returns the hardware view the boot selector drives.
func (d *Device) Boot() boot.Device {
	return boot.Device{
		Storage:    storage.Dir{Root: d.storage},
		Flash:      d,
		FlashTable: devicetree.FlashTable{Tree: d.Tree, Flash: FlashNode},
		Tree:       d.Tree,
		Registers:  d.Regs,
		Executor:   d,
	}
}

// WriteFlash writes to flash.bin and records the region.
func (d *Device) WriteFlash(ctx context.Context, offset int64, b []byte) error {
	if err := d.flash.WriteFlash(ctx, offset, b); err != nil {
		return err
	}
	d.Written = append(d.Written, Region{Offset: offset, Data: append([]byte(nil), b...)})
	return nil
}

// VerifyImage checks the header-protected image flashed at offset against
// its length and CRC32.
func (d *Device) VerifyImage(offset int64) (api.ImageHeader, error) {
	fi, err := d.file.Stat()
	if err != nil {
		return api.ImageHeader{}, err
	}
	b := make([]byte, api.ImageHeaderSize)
	if _, err := d.file.ReadAt(b, offset); err != nil {
		return api.ImageHeader{}, fmt.Errorf("failed to read image header at 0x%x: %w", offset, err)
	}
	h, err := api.ParseImageHeader(b)
	if err != nil {
		return h, err
	}
	start := offset + api.ImageHeaderSize
	if int64(h.Length) > fi.Size()-start {
		return h, fmt.Errorf("image at 0x%x claims %d bytes, flash ends at 0x%x", offset, h.Length, fi.Size())
	}
	payload := make([]byte, h.Length)
	if _, err := d.file.ReadAt(payload, start); err != nil {
		return h, fmt.Errorf("failed to read image at 0x%x: %w", offset, err)
	}
	if err := h.Verify(payload); err != nil {
		return h, fmt.Errorf("image at 0x%x: %w", offset, err)
	}
	return h, nil
}

// Exec records the handover and stores the device tree passed to the kernel.
func (d *Device) Exec(kernel []byte, kernelAddr uint64, dtb []byte, dtbAddr uint64) error {
	d.Handover = &Handover{
		Kernel:     append([]byte(nil), kernel...),
		KernelAddr: kernelAddr,
		DTB:        append([]byte(nil), dtb...),
		DTBAddr:    dtbAddr,
	}
	glog.Infof("kernel handover: %d byte kernel@%x, %d byte dtb@%x", len(kernel), kernelAddr, len(dtb), dtbAddr)
	return os.WriteFile(filepath.Join(d.storage, handoverPath), dtb, 0o644)
}

// Reset emulates the power cycle which follows an FPGA reconfiguration: the
// configuration engine reports a settled, non-fallback status.
func (d *Device) Reset(statusAddr uint64) error {
	d.Regs.Set(statusAddr, 0)
	return saveRegisters(filepath.Join(d.storage, registersPath), d.Regs, []uint64{statusAddr})
}

// DumpHex writes the flash regions written so far as Intel HEX.
func (d *Device) DumpHex(w io.Writer) error {
	mem := gohex.NewMemory()
	for _, r := range d.Written {
		if err := mem.AddBinary(uint32(r.Offset), r.Data); err != nil {
			return fmt.Errorf("failed to add region at 0x%x: %w", r.Offset, err)
		}
	}
	return mem.DumpIntelHex(w, 16)
}

// registerFile is the on-disk form of the register values.
type registerFile map[string][]uint32

func loadRegisters(path string) (*hw.Memory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registers: %w", err)
	}
	var rf registerFile
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse registers: %w", err)
	}
	init := make(map[uint64][]uint32)
	for k, v := range rf {
		a, err := strconv.ParseUint(k, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid register address %q: %w", k, err)
		}
		init[a] = v
	}
	return hw.NewMemory(init), nil
}

// saveRegisters updates the given addresses of the register file at path with
// their current values in m.
func saveRegisters(path string, m *hw.Memory, addrs []uint64) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read registers: %w", err)
	}
	rf := registerFile{}
	if err := json.Unmarshal(raw, &rf); err != nil {
		return fmt.Errorf("failed to parse registers: %w", err)
	}
	for _, a := range addrs {
		v, err := m.Read32(a)
		if err != nil {
			return err
		}
		rf[fmt.Sprintf("0x%08x", a)] = []uint32{v}
	}
	return writeJSON(path, rf)
}

func writeJSON(path string, v interface{}) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
