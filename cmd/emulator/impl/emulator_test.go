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

package impl

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/devices/emulated"
	"github.com/zsipos/bootsel/internal/boot"
)

const (
	bitstream = "fpga bitstream"
	loader    = "secondary boot loader"
)

func put(t *testing.T, dir string, p int, path, data string) {
	t.Helper()
	full := filepath.Join(dir, fmt.Sprintf("part%d", p), path)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newStorage returns an initialised device whose partition 2 carries the
// newest system along with firmware version 4.
func newStorage(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := emulated.Init(dir); err != nil {
		t.Fatalf("Init: %v", err)
	}
	for p := 1; p <= 2; p++ {
		put(t, dir, p, "root/version", fmt.Sprint(p))
		put(t, dir, p, "root/fwversion", "3")
		put(t, dir, p, "sel4+linux", "kernel")
		put(t, dir, p, "root/bitstream.bin", bitstream)
		put(t, dir, p, "root/bootloader.bin", loader)
	}
	put(t, dir, 2, "root/fwversion", "4")
	return dir
}

func opts(dir string) EmulatorOpts {
	return EmulatorOpts{
		DeviceStorage:           dir,
		ExpectedFirmwareVersion: 3,
		BootVersion:             "7",
		MaxResets:               2,
		PollAttempts:            10,
	}
}

func TestRunUpdatesThenBoots(t *testing.T) {
	dir := newStorage(t)
	o := opts(dir)
	o.FlashHexOut = filepath.Join(dir, "flash.hex")

	r, err := Run(context.Background(), o)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Resets != 1 {
		t.Errorf("got %d resets, want 1", r.Resets)
	}
	if got, want := r.Report.Decision.Selected, api.PartitionTwo; got != want {
		t.Errorf("booted partition %d, want %d", got, want)
	}
	if r.Report.State != boot.StateExecute {
		t.Errorf("final state %v, want %v", r.Report.State, boot.StateExecute)
	}
	if r.Handover == nil || string(r.Handover.Kernel) != "kernel" {
		t.Fatalf("unexpected handover %+v", r.Handover)
	}

	flash, err := os.ReadFile(filepath.Join(dir, "flash.bin"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(flash[emulated.BitstreamOffset : emulated.BitstreamOffset+len(bitstream)]); got != bitstream {
		t.Errorf("bitstream partition holds %q", got)
	}
	h, err := api.ParseImageHeader(flash[emulated.LoaderOffset:])
	if err != nil {
		t.Fatalf("ParseImageHeader: %v", err)
	}
	want := api.ImageHeader{Length: uint32(len(loader)), CRC32: crc32.ChecksumIEEE([]byte(loader))}
	if diff := cmp.Diff(want, h); diff != "" {
		t.Errorf("loader header diff (-want +got):\n%s", diff)
	}
	if _, err := os.Stat(o.FlashHexOut); err != nil {
		t.Errorf("no Intel HEX written: %v", err)
	}
}

func TestRunBootsWithoutUpdate(t *testing.T) {
	dir := newStorage(t)
	put(t, dir, 2, "root/fwversion", "3")

	r, err := Run(context.Background(), opts(dir))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.Resets != 0 {
		t.Errorf("got %d resets, want 0", r.Resets)
	}
	if r.Report.Integrity.NeedsUpdate {
		t.Error("firmware unexpectedly updated")
	}
	if _, err := os.Stat(filepath.Join(dir, "handover.dtb")); err != nil {
		t.Errorf("no handover device tree: %v", err)
	}
}

func TestRunGivesUp(t *testing.T) {
	dir := newStorage(t)
	o := opts(dir)
	o.MaxResets = 0

	_, err := Run(context.Background(), o)
	if !errors.Is(err, boot.ErrNoReset) {
		t.Fatalf("got error %v, want %v", err, boot.ErrNoReset)
	}
}

func TestRunMissingStorage(t *testing.T) {
	_, err := Run(context.Background(), opts(filepath.Join(t.TempDir(), "missing")))
	if !boot.IsUnrecoverable(err) {
		t.Fatalf("got error %v, want unrecoverable", err)
	}
}

func TestRunInvalidManifestKey(t *testing.T) {
	o := opts(newStorage(t))
	o.ManifestKey = "not a key"
	if _, err := Run(context.Background(), o); err == nil {
		t.Fatal("Run succeeded with an invalid manifest key")
	}
}

func TestRunInvalidBootVersion(t *testing.T) {
	for _, v := range []string{"4294967296", "-1", "seven"} {
		t.Run(v, func(t *testing.T) {
			o := opts(newStorage(t))
			o.BootVersion = v
			if _, err := Run(context.Background(), o); err == nil {
				t.Fatalf("Run succeeded with boot version %q", v)
			}
		})
	}
}
