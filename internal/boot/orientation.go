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

	"github.com/golang/glog"
	"github.com/zsipos/bootsel/api"
	"github.com/zsipos/bootsel/internal/devicetree"
)

// ApplyOrientation rotates the display in the device tree if partition p asks
// for it. A missing or unreadable flag leaves the tree untouched, as does a
// failure to edit it. It returns true if the rotation was applied.
func (b *Bootloader) ApplyOrientation(ctx context.Context, s *Scratch, p api.PartitionIndex) bool {
	flag := api.OrientationFlag(0)
	if raw, err := s.Load(ctx, b.dev.Storage, p, b.cfg.OrientationPath, 0); err != nil {
		glog.Infof("no orientation flag on partition %d: %v", p, err)
	} else {
		flag = api.OrientationFlag(parseVersion(raw))
	}
	if !flag.Rotated() {
		return false
	}

	if err := b.dev.Tree.SetProperty(b.cfg.DisplayNode, b.cfg.RotateProperty, devicetree.U32(api.RotatedDegrees)); err != nil {
		glog.Warningf("cannot rotate display: %v", err)
		return false
	}
	glog.Infof("display rotated by %d degrees", api.RotatedDegrees)
	return true
}
