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

// bootsel selects the partition a zsipos device boots from, keeps the FPGA
// firmware in flash in line with it and hands over to the selected kernel.
//
// The firmware version the binary was built for and its own boot version
// are set at link time:
//
//	go build -ldflags "-X main.ExpectedFirmwareVersion=3 -X main.BootVersion=7" ./cmd/bootsel
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/cmd/bootsel/impl"
	"github.com/zsipos/bootsel/internal/boot"
	"github.com/zsipos/bootsel/internal/manifest"
	"golang.org/x/mod/sumdb/note"
)

var Build string
var Revision string

var ExpectedFirmwareVersion = "3"
var BootVersion = "0"

var (
	partitionDev = flag.String("partition_dev", "/dev/mmcblk0p%d", "Block device of a storage partition, %d is the partition index")
	flashDev     = flag.String("flash_dev", "/dev/mtdblock0", "Raw flash device firmware images are written to")
	flashNode    = flag.String("flash_node", "/soc/spi@0/flash@0", "Device tree path of the flash chip")
	dtbPath      = flag.String("dtb", "/sys/firmware/fdt", "Device tree blob of the board")
	manifestKey  = flag.String("manifest_key", "", "If set, firmware updates require a manifest signed by this key")
	keyType      = flag.String("manifest_key_type", manifest.Note, "Type of --manifest_key, one of note or ecdsa")
)

func main() {
	flag.Parse()
	glog.Infof("bootsel %s (%s)", Revision, Build)

	cfg := boot.DefaultConfig()
	if ExpectedFirmwareVersion != "" {
		v, err := strconv.Atoi(ExpectedFirmwareVersion)
		if err != nil {
			glog.Exitf("invalid expected firmware version %q: %v", ExpectedFirmwareVersion, err)
		}
		cfg.ExpectedFirmwareVersion = v
	}
	if BootVersion != "" {
		v, err := boot.ParseBootVersion(BootVersion)
		if err != nil {
			glog.Exitf("%v", err)
		}
		cfg.BootVersion = v
	}
	if *manifestKey != "" {
		v, err := manifest.NewVerifier(*keyType, *manifestKey)
		if err != nil {
			glog.Exitf("invalid manifest key: %v", err)
		}
		cfg.ManifestVerifiers = note.VerifierList(v)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	err := impl.Main(ctx, impl.BootselOpts{
		PartitionDev: *partitionDev,
		FlashDev:     *flashDev,
		FlashNode:    *flashNode,
		DeviceTree:   *dtbPath,
		Config:       cfg,
	})
	if boot.IsUnrecoverable(err) {
		glog.Exitf("bootsel: %v", err)
	}
	glog.Warningf("bootsel: %v", err)
	glog.Flush()
	os.Exit(1)
}
