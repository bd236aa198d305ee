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

package hw

import (
	"fmt"

	"github.com/u-root/u-root/pkg/memio"
)

// MMIO accesses physical registers through /dev/mem.
type MMIO struct{}

var _ Registers = MMIO{}

// Read32 implements Registers.
func (MMIO) Read32(addr uint64) (uint32, error) {
	var v memio.Uint32
	if err := memio.Read(int64(addr), &v); err != nil {
		return 0, fmt.Errorf("read register 0x%08x: %w", addr, err)
	}
	return uint32(v), nil
}

// Write32 implements Registers.
func (MMIO) Write32(addr uint64, val uint32) error {
	v := memio.Uint32(val)
	if err := memio.Write(int64(addr), &v); err != nil {
		return fmt.Errorf("write register 0x%08x: %w", addr, err)
	}
	return nil
}
