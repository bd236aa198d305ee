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
	"strconv"

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/hw"
)

// parseVersion parses the leading run of ASCII digits of b. Anything after
// the digits is ignored. It returns api.NoVersion if b does not start with a
// digit or the number does not fit an int.
func parseVersion(b []byte) int {
	i := 0
	for i < len(b) && b[i] >= '0' && b[i] <= '9' {
		i++
	}
	if i == 0 {
		return api.NoVersion
	}
	v, err := strconv.Atoi(string(b[:i]))
	if err != nil {
		return api.NoVersion
	}
	return v
}

// ReadVersion returns the version recorded in path on partition p, or
// api.NoVersion if the file cannot be loaded or parsed.
func (b *Bootloader) ReadVersion(ctx context.Context, s *Scratch, p api.PartitionIndex, path string) int {
	raw, err := s.Load(ctx, b.dev.Storage, p, path, 0)
	if err != nil {
		glog.Warningf("no version on partition %d: %v", p, err)
		return api.NoVersion
	}
	glog.Infof("content is %q", raw)
	return parseVersion(raw)
}

// ReadOverride returns true while the touch screen is pressed. The input is
// active low.
func (b *Bootloader) ReadOverride() bool {
	addr, err := b.dev.Tree.ResolveAddress(b.cfg.OverrideNode)
	if err != nil {
		glog.Warningf("cannot locate touch screen input: %v", err)
		return false
	}
	v, err := b.dev.Registers.Read32(addr)
	if err != nil {
		glog.Warningf("cannot read touch screen input: %v", err)
		return false
	}

	pressed := !hw.Bit(v, 0)
	if pressed {
		glog.Info("touch screen is pressed")
	} else {
		glog.Info("touch screen is not pressed")
	}
	return pressed
}

// SelectPartition ranks the partitions by version and picks the higher one,
// or the lower one when override is set.
//
// Only a strictly lower version on partition 1 ranks it lower, so on equal
// versions partition 2 is the lower one.
func SelectPartition(v1, v2 int, override bool) api.BootDecision {
	d := api.BootDecision{
		Versions: [2]int{v1, v2},
		Override: override,
		Lower:    api.PartitionTwo,
		Higher:   api.PartitionOne,
	}
	if v1 < v2 {
		d.Lower, d.Higher = api.PartitionOne, api.PartitionTwo
	}

	d.Selected = d.Higher
	if override {
		d.Selected = d.Lower
	}
	return d
}
