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

// Package boot selects the partition a device boots from, keeps the flashed
// FPGA bitstream and secondary boot loader in line with it, and hands over to
// the kernel.
//
// One call to Bootloader.Run is one boot attempt. An attempt which updates
// the firmware ends by reconfiguring the FPGA, which resets the device; the
// next attempt starts from scratch and reads every input again.
package boot

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/hw"
	"github.com/zsipos/bootsel/internal/retry"
	"golang.org/x/mod/sumdb/note"
)

// Storage reads files from the storage partitions.
type Storage interface {
	Read(ctx context.Context, p api.PartitionIndex, path string) ([]byte, error)
}

// Flash writes a contiguous region of raw flash.
type Flash interface {
	WriteFlash(ctx context.Context, offset int64, b []byte) error
}

// FlashTable resolves flash partition indices to byte offsets.
type FlashTable interface {
	FlashOffset(index int) (int64, error)
}

// DeviceTree is the device tree handed over to the kernel.
type DeviceTree interface {
	SetProperty(path, name string, value []byte) error
	ResolveAddress(path string) (uint64, error)
	Bytes() ([]byte, error)
}

// Executor transfers control to a loaded kernel. On real hardware a
// successful Exec does not return.
type Executor interface {
	Exec(kernel []byte, kernelAddr uint64, dtb []byte, dtbAddr uint64) error
}

// Device bundles the hardware a Bootloader drives.
type Device struct {
	Storage    Storage
	Flash      Flash
	FlashTable FlashTable
	Tree       DeviceTree
	Registers  hw.Registers
	Executor   Executor
}

// Config holds the file layout, hardware descriptors and policies.
type Config struct {
	// Files on each storage partition.
	VersionPath         string
	FirmwareVersionPath string
	OrientationPath     string
	KernelPath          string
	ManifestPath        string

	// Images are flashed in order when the firmware needs an update.
	Images []api.FirmwareImage

	// ExpectedFirmwareVersion is the firmware version this loader was built for.
	ExpectedFirmwareVersion int
	// BootVersion is recorded in the chosen node for the kernel.
	BootVersion uint32

	// ScratchSize is the size of the load arena of one attempt.
	ScratchSize int

	OverrideNode string

	// StatusNode locates the FPGA configuration engine. Its status and
	// control registers live at the given offsets.
	StatusNode         string
	StatusOffset       uint64
	ControlOffset      uint64
	ReconfigureCommand uint32

	DisplayNode    string
	RotateProperty string
	ChosenNode     string

	KernelAddress     uint64
	DeviceTreeAddress uint64

	StatusPoll        retry.Policy
	ReconfigureSettle time.Duration
	ReconfigureLoop   retry.Policy

	// ManifestVerifiers, when set, require a signed manifest covering every
	// image before anything is written to flash.
	ManifestVerifiers note.Verifiers
}

// ParseBootVersion parses a boot version given as decimal text. Values which
// do not fit the 32-bit chosen property are rejected.
func ParseBootVersion(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid boot version %q: %w", s, err)
	}
	return uint32(v), nil
}

// DefaultExpectedFirmwareVersion is used when the build does not supply one.
const DefaultExpectedFirmwareVersion = 3

// DefaultConfig returns the configuration of a production device.
func DefaultConfig() Config {
	return Config{
		VersionPath:         "/root/version",
		FirmwareVersionPath: "/root/fwversion",
		OrientationPath:     "/root/rotate",
		KernelPath:          "sel4+linux",
		ManifestPath:        "/root/firmware.note",

		Images: []api.FirmwareImage{
			{Path: "/root/bitstream.bin", FlashPartition: 0},
			{Path: "/root/bootloader.bin", FlashPartition: 1, Header: true},
		},

		ExpectedFirmwareVersion: DefaultExpectedFirmwareVersion,

		ScratchSize: 64 << 20,

		OverrideNode: "/soc/gpio@1",

		StatusNode:         "/soc/icap@0",
		StatusOffset:       0x0,
		ControlOffset:      0x4,
		ReconfigureCommand: 0xf,

		DisplayNode:    "/soc/display@0",
		RotateProperty: "rotate",
		ChosenNode:     "/chosen",

		KernelAddress:     0x90000000,
		DeviceTreeAddress: 0x8f000000,

		StatusPoll:        retry.Forever(time.Millisecond),
		ReconfigureSettle: 100 * time.Millisecond,
		ReconfigureLoop:   retry.Forever(time.Second),
	}
}
