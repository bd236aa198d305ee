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

package emulated

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/u-root/u-root/pkg/dt"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/devicetree"
)

// Board layout of the emulated device.
const (
	FlashNode = "/soc/spi@0/flash@0"

	GPIOAddr   = 0x10012000
	StatusAddr = 0x20000000
	// ControlAddr follows the status register of the configuration engine.
	ControlAddr = StatusAddr + 4

	// BitstreamOffset and LoaderOffset are the offsets of flash partitions
	// 0 and 1.
	BitstreamOffset = 0x0
	LoaderOffset    = 0x400000
	FlashSize       = 0x500000
)

func prop(name string, v ...uint32) dt.Property {
	var b []byte
	for _, c := range v {
		b = append(b, devicetree.U32(c)...)
	}
	return dt.Property{Name: name, Value: b}
}

func cellCounts(address, size uint32) []dt.Property {
	return []dt.Property{prop("#address-cells", address), prop("#size-cells", size)}
}

// DefaultTree returns the device tree of the emulated board.
func DefaultTree() *devicetree.Tree {
	partition := func(name string, start, size uint32) *dt.Node {
		return &dt.Node{
			Name:       fmt.Sprintf("partition@%x", start),
			Properties: []dt.Property{prop("reg", start, size), {Name: "label", Value: append([]byte(name), 0)}},
		}
	}
	flash := &dt.Node{
		Name:       "flash@0",
		Properties: append(cellCounts(1, 1), prop("reg", 0)),
		Children: []*dt.Node{
			partition("bitstream", BitstreamOffset, LoaderOffset-BitstreamOffset),
			partition("bootloader", LoaderOffset, FlashSize-LoaderOffset),
		},
	}
	soc := &dt.Node{
		Name:       "soc",
		Properties: cellCounts(1, 1),
		Children: []*dt.Node{
			{Name: "gpio@1", Properties: []dt.Property{prop("reg", GPIOAddr, 0x1000)}},
			{Name: "icap@0", Properties: []dt.Property{prop("reg", StatusAddr, 0x100)}},
			{Name: "spi@0", Properties: append(cellCounts(1, 0), prop("reg", 0x10040000, 0x1000)), Children: []*dt.Node{flash}},
			{Name: "display@0", Properties: []dt.Property{prop("reg", 0x10050000, 0x1000)}},
		},
	}
	root := &dt.Node{
		Properties: cellCounts(1, 1),
		Children:   []*dt.Node{soc, {Name: "chosen"}},
	}
	return devicetree.FromRoot(root)
}

// Init creates a fresh device in the storage directory: empty partitions,
// erased flash, the default device tree, a released override button and a
// configuration engine which settles after a few polls.
func Init(storage string) error {
	for _, p := range []api.PartitionIndex{api.PartitionOne, api.PartitionTwo} {
		if err := os.MkdirAll(filepath.Join(storage, fmt.Sprintf("part%d", p)), 0o755); err != nil {
			return fmt.Errorf("failed to create partition %d: %w", p, err)
		}
	}

	dtb, err := DefaultTree().Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(storage, dtbPath), dtb, 0o644); err != nil {
		return fmt.Errorf("failed to write device tree: %w", err)
	}

	f, err := os.Create(filepath.Join(storage, flashPath))
	if err != nil {
		return fmt.Errorf("failed to create flash: %w", err)
	}
	if err := f.Truncate(FlashSize); err != nil {
		f.Close()
		return fmt.Errorf("failed to size flash: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	regs := registerFile{
		fmt.Sprintf("0x%08x", GPIOAddr):    {1},
		fmt.Sprintf("0x%08x", StatusAddr):  {uint32(api.StatusNotValid), uint32(api.StatusNotValid), 0},
		fmt.Sprintf("0x%08x", ControlAddr): {0},
	}
	return writeJSON(filepath.Join(storage, registersPath), regs)
}
