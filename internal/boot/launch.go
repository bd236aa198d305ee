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

import (
	"context"
	"fmt"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/devicetree"
)

// Launch records the boot choice in the device tree, loads the kernel of
// partition p and hands over to it.
//
// Failures before the handover are returned wrapped in ErrHalt so the caller
// can report them and retry. On real hardware a successful handover does not
// return.
func (b *Bootloader) Launch(ctx context.Context, s *Scratch, p api.PartitionIndex) error {
	for _, prop := range []struct {
		name string
		val  uint32
	}{
		{name: "partition", val: uint32(p)},
		{name: "bootversion", val: b.cfg.BootVersion},
	} {
		if err := b.dev.Tree.SetProperty(b.cfg.ChosenNode, prop.name, devicetree.U32(prop.val)); err != nil {
			return fmt.Errorf("%w: cannot set %s/%s: %w", ErrHalt, b.cfg.ChosenNode, prop.name, err)
		}
	}

	kernel, err := s.Load(ctx, b.dev.Storage, p, b.cfg.KernelPath, 0)
	if err != nil {
		glog.Warningf("cannot load kernel image from partition %d: %v", p, err)
		return fmt.Errorf("%w: failed to load %s from partition %d: %w", ErrHalt, b.cfg.KernelPath, p, err)
	}

	dtb, err := b.dev.Tree.Bytes()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHalt, err)
	}

	glog.Infof("starting kernel@%x params@%x", b.cfg.KernelAddress, b.cfg.DeviceTreeAddress)
	glog.Flush()
	if err := b.dev.Executor.Exec(kernel, b.cfg.KernelAddress, dtb, b.cfg.DeviceTreeAddress); err != nil {
		return fmt.Errorf("%w: kernel handover failed: %w", ErrHalt, err)
	}
	return nil
}
