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

// Package impl is the implementation of the emulator for the boot selector.
package impl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/devices/emulated"
	"github.com/zsipos/bootsel/internal/boot"
	"github.com/zsipos/bootsel/internal/manifest"
	"github.com/zsipos/bootsel/internal/retry"
	"golang.org/x/mod/sumdb/note"
)

// EmulatorOpts encapsulates the parameters for running the emulator.
type EmulatorOpts struct {
	DeviceStorage string
	// Init creates a fresh device in DeviceStorage first.
	Init bool

	ExpectedFirmwareVersion int
	// BootVersion is the decimal boot version recorded for the kernel.
	BootVersion string
	// ManifestKey, when set, is the key firmware manifests must be signed
	// with. ManifestKeyType is one of the manifest key types.
	ManifestKey     string
	ManifestKeyType string

	// MaxResets bounds the number of FPGA reconfigurations emulated.
	MaxResets int
	// PollAttempts bounds the status register polls of each attempt.
	PollAttempts uint64
	// FlashHexOut, if set, receives the flash writes of the last attempt as
	// Intel HEX.
	FlashHexOut string
}

// Result describes how an emulated boot ended.
type Result struct {
	Report boot.Report
	Resets int
	// Handover is the kernel handover of the final attempt, if any.
	Handover *emulated.Handover
}

func (o EmulatorOpts) config() (boot.Config, error) {
	cfg := boot.DefaultConfig()
	cfg.ExpectedFirmwareVersion = o.ExpectedFirmwareVersion
	if o.BootVersion != "" {
		v, err := boot.ParseBootVersion(o.BootVersion)
		if err != nil {
			return cfg, err
		}
		cfg.BootVersion = v
	}
	cfg.StatusPoll = retry.Policy{Delay: time.Millisecond, MaxAttempts: o.PollAttempts}
	cfg.ReconfigureSettle = 0
	// The emulated engine never resets the device on its own.
	cfg.ReconfigureLoop = retry.Policy{MaxAttempts: 1}

	if o.ManifestKey != "" {
		v, err := manifest.NewVerifier(o.ManifestKeyType, o.ManifestKey)
		if err != nil {
			return cfg, fmt.Errorf("invalid manifest key: %w", err)
		}
		cfg.ManifestVerifiers = note.VerifierList(v)
	}
	return cfg, nil
}

// Main is the entry point for the emulator.
func Main(ctx context.Context, opts EmulatorOpts) error {
	r, err := Run(ctx, opts)
	if err != nil {
		return err
	}
	glog.Infof("booted partition %d after %d reset(s)", r.Report.Decision.Selected, r.Resets)
	return nil
}

// Run boots the emulated device, emulating the reset which follows each
// firmware update, until an attempt launches a kernel or fails.
func Run(ctx context.Context, opts EmulatorOpts) (Result, error) {
	if opts.Init {
		if err := emulated.Init(opts.DeviceStorage); err != nil {
			return Result{}, fmt.Errorf("failed to init device: %w", err)
		}
	}
	cfg, err := opts.config()
	if err != nil {
		return Result{}, err
	}

	for resets := 0; ; resets++ {
		res, err := attempt(ctx, opts, cfg)
		res.Resets = resets
		if !errors.Is(err, boot.ErrNoReset) {
			return res, err
		}
		if resets >= opts.MaxResets {
			return res, fmt.Errorf("giving up after %d resets: %w", resets, err)
		}
		// The freshly flashed loader was built for the firmware it was
		// flashed with.
		cfg.ExpectedFirmwareVersion = res.Report.Integrity.Version
		glog.Infof("----RESET---- expecting firmware version %d", cfg.ExpectedFirmwareVersion)
	}
}

// attempt runs one boot attempt against a freshly opened device.
func attempt(ctx context.Context, opts EmulatorOpts, cfg boot.Config) (Result, error) {
	dev, err := emulated.New(opts.DeviceStorage)
	if err != nil {
		return Result{}, boot.Unrecoverable(err)
	}
	defer dev.Close()

	r, err := boot.New(dev.Boot(), cfg).Run(ctx)
	res := Result{Report: r, Handover: dev.Handover}

	if opts.FlashHexOut != "" && len(dev.Written) > 0 {
		if herr := dumpHex(dev, opts.FlashHexOut); herr != nil {
			glog.Warningf("failed to write %q: %v", opts.FlashHexOut, herr)
		}
	}

	if errors.Is(err, boot.ErrNoReset) {
		if verr := verifyFlash(dev, cfg); verr != nil {
			return res, boot.Unrecoverable(verr)
		}
		status, rerr := dev.Tree.ResolveAddress(cfg.StatusNode)
		if rerr != nil {
			return res, boot.Unrecoverable(rerr)
		}
		if rerr := dev.Reset(status + cfg.StatusOffset); rerr != nil {
			return res, boot.Unrecoverable(rerr)
		}
	}
	return res, err
}

// verifyFlash checks the header-protected images of cfg as they ended up in
// flash, the way the loader booted after the reset reads them.
func verifyFlash(dev *emulated.Device, cfg boot.Config) error {
	table := dev.Boot().FlashTable
	for _, img := range cfg.Images {
		if !img.Header {
			continue
		}
		off, err := table.FlashOffset(img.FlashPartition)
		if err != nil {
			return err
		}
		h, err := dev.VerifyImage(off)
		if err != nil {
			return fmt.Errorf("flashed %s: %w", img.Path, err)
		}
		glog.Infof("flashed %s verified: length %d crc 0x%08x", img.Path, h.Length, h.CRC32)
	}
	return nil
}

func dumpHex(dev *emulated.Device, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := dev.DumpHex(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
