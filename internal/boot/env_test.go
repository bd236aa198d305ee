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

package boot

//go:generate mockgen -write_package_comment=false -self_package github.com/zsipos/bootsel/internal/boot -package boot -destination mock_flash_test.go github.com/zsipos/bootsel/internal/boot Flash

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/hw"
	"github.com/zsipos/bootsel/internal/retry"
)

const (
	gpioAddr = 0x10012000
	icapAddr = 0x20000000
)

type fakeStorage map[api.PartitionIndex]map[string][]byte

func (f fakeStorage) Read(_ context.Context, p api.PartitionIndex, path string) ([]byte, error) {
	b, ok := f[p][path]
	if !ok {
		return nil, fmt.Errorf("partition %d: %s: %w", p, path, os.ErrNotExist)
	}
	return b, nil
}

func (f fakeStorage) put(p api.PartitionIndex, path string, data string) {
	if f[p] == nil {
		f[p] = make(map[string][]byte)
	}
	f[p][path] = []byte(data)
}

type fakeTree struct {
	addrs    map[string]uint64
	props    map[string][]byte
	bytesErr error
}

func (t *fakeTree) SetProperty(path, name string, value []byte) error {
	if _, ok := t.addrs[path]; !ok {
		return fmt.Errorf("node %q not found", path)
	}
	t.props[path+":"+name] = append([]byte(nil), value...)
	return nil
}

func (t *fakeTree) ResolveAddress(path string) (uint64, error) {
	a, ok := t.addrs[path]
	if !ok {
		return 0, fmt.Errorf("node %q not found", path)
	}
	return a, nil
}

func (t *fakeTree) Bytes() ([]byte, error) {
	return []byte("dtb"), t.bytesErr
}

type fakeFlashTable map[int]int64

func (f fakeFlashTable) FlashOffset(index int) (int64, error) {
	o, ok := f[index]
	if !ok {
		return 0, fmt.Errorf("no flash partition %d", index)
	}
	return o, nil
}

type fakeExecutor struct {
	calls            int
	kernel, dtb      []byte
	kernAddr, dtAddr uint64
	err              error
}

func (e *fakeExecutor) Exec(kernel []byte, kernelAddr uint64, dtb []byte, dtbAddr uint64) error {
	e.calls++
	e.kernel = append([]byte(nil), kernel...)
	e.dtb = append([]byte(nil), dtb...)
	e.kernAddr, e.dtAddr = kernelAddr, dtbAddr
	return e.err
}

// testEnv is a device in a known good state: both partitions carry version
// files, partition 1 the current firmware, and the touch screen is released.
type testEnv struct {
	cfg     Config
	storage fakeStorage
	tree    *fakeTree
	regs    *hw.Memory
	table   fakeFlashTable
	exec    *fakeExecutor
	flash   *MockFlash
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := DefaultConfig()
	cfg.ScratchSize = 1 << 16
	cfg.BootVersion = 5
	cfg.StatusPoll = retry.Policy{MaxAttempts: 5}
	cfg.ReconfigureSettle = 0
	cfg.ReconfigureLoop = retry.Policy{MaxAttempts: 3}

	e := &testEnv{
		cfg:     cfg,
		storage: fakeStorage{},
		tree: &fakeTree{
			addrs: map[string]uint64{
				cfg.OverrideNode: gpioAddr,
				cfg.StatusNode:   icapAddr,
				cfg.ChosenNode:   0,
				cfg.DisplayNode:  0,
			},
			props: map[string][]byte{},
		},
		regs: hw.NewMemory(map[uint64][]uint32{
			gpioAddr: {1},
			icapAddr: {0},
		}),
		table: fakeFlashTable{0: 0, 1: 0x400000},
		exec:  &fakeExecutor{},
		flash: NewMockFlash(gomock.NewController(t)),
	}
	for _, p := range []api.PartitionIndex{1, 2} {
		e.storage.put(p, cfg.VersionPath, fmt.Sprintf("%d", p))
		e.storage.put(p, cfg.KernelPath, fmt.Sprintf("kernel %d", p))
	}
	return e
}

func (e *testEnv) bootloader() *Bootloader {
	return New(Device{
		Storage:    e.storage,
		Flash:      e.flash,
		FlashTable: e.table,
		Tree:       e.tree,
		Registers:  e.regs,
		Executor:   e.exec,
	}, e.cfg)
}

func (e *testEnv) scratch() *Scratch {
	return NewScratch(e.cfg.ScratchSize)
}

// reads returns the number of reads of addr.
func (e *testEnv) reads(addr uint64) int {
	n := 0
	for _, a := range e.regs.Log {
		if !a.Write && a.Addr == addr {
			n++
		}
	}
	return n
}
