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

// emulator runs the boot selector against an emulated device kept in a
// directory on the host.
//
// Storage partitions are the part1/ and part2/ directories, flash is
// flash.bin and the hardware registers live in registers.json. When the
// selected partition carries firmware the device was not built for, the
// emulator flashes it, emulates the resulting reset and boots again.
//
// Usage:
//
//	go run ./cmd/emulator --logtostderr --device_storage_dir=/tmp/zsipos --init
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/cmd/emulator/impl"
	"github.com/zsipos/bootsel/internal/boot"
	"github.com/zsipos/bootsel/internal/manifest"
)

var (
	deviceStorage = flag.String("device_storage_dir", "/tmp/zsipos", "Directory holding the emulated device")
	initDevice    = flag.Bool("init", false, "Create a fresh device in --device_storage_dir before booting")
	expected      = flag.Int("expected_fw_version", boot.DefaultExpectedFirmwareVersion, "Firmware version the initial boot loader was built for")
	bootVersion   = flag.String("boot_version", "0", "Boot loader version recorded for the kernel")
	manifestKey   = flag.String("manifest_key", "", "If set, firmware updates require a manifest signed by this key")
	keyType       = flag.String("manifest_key_type", manifest.Note, "Type of --manifest_key, one of note or ecdsa")
	maxResets     = flag.Int("max_resets", 3, "Number of FPGA reconfigurations to emulate before giving up")
	pollAttempts  = flag.Uint64("poll_attempts", 100, "Status register polls per boot attempt, 0 polls forever")
	flashHexOut   = flag.String("flash_hex_out", "", "If set, write flash updates to this file as Intel HEX")
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := impl.Main(ctx, impl.EmulatorOpts{
		DeviceStorage:           *deviceStorage,
		Init:                    *initDevice,
		ExpectedFirmwareVersion: *expected,
		BootVersion:             *bootVersion,
		ManifestKey:             *manifestKey,
		ManifestKeyType:         *keyType,
		MaxResets:               *maxResets,
		PollAttempts:            *pollAttempts,
		FlashHexOut:             *flashHexOut,
	}); err != nil {
		glog.Exitf("emulator: %v", err)
	}
}
