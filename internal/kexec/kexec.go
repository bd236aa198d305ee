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

// Package kexec hands a loaded kernel and its device tree over to the kernel
// through kexec.
package kexec

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/u-root/u-root/pkg/boot/kexec"
)

// Executor places the kernel and the device tree at fixed physical addresses
// and reboots into the kernel.
type Executor struct{}

func pageAlign(n int) uint {
	ps := os.Getpagesize()
	return uint((n + ps - 1) / ps * ps)
}

// Exec loads kernel at kernelAddr and dtb at dtbAddr, then jumps to
// kernelAddr. It only returns on failure.
func (Executor) Exec(kernel []byte, kernelAddr uint64, dtb []byte, dtbAddr uint64) error {
	segments := kexec.Segments{
		kexec.NewSegment(kernel, kexec.Range{Start: uintptr(kernelAddr), Size: pageAlign(len(kernel))}),
		kexec.NewSegment(dtb, kexec.Range{Start: uintptr(dtbAddr), Size: pageAlign(len(dtb))}),
	}
	if err := kexec.Load(uintptr(kernelAddr), segments, 0); err != nil {
		return fmt.Errorf("kexec load: %w", err)
	}
	glog.Flush()
	if err := kexec.Reboot(); err != nil {
		return fmt.Errorf("kexec reboot: %w", err)
	}
	return errors.New("kexec reboot returned")
}
