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
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"
)

var errStillRunning = errors.New("still running")

// Reconfigure makes the FPGA reload its configuration, which resets the
// device.
//
// After the settle delay the reconfigure command is written over and over
// according to the ReconfigureLoop policy. With the production policy this
// never returns; callers must not place any work after it. Should a bounded
// policy run out, ErrNoReset is returned in the unrecoverable class.
func (b *Bootloader) Reconfigure() error {
	base, err := b.dev.Tree.ResolveAddress(b.cfg.StatusNode)
	if err != nil {
		return Unrecoverable(fmt.Errorf("cannot locate configuration engine: %w", err))
	}
	addr := base + b.cfg.ControlOffset

	glog.Infof("reconfiguring FPGA, waiting for reset")
	glog.Flush()
	time.Sleep(b.cfg.ReconfigureSettle)

	writes := 0
	_ = b.cfg.ReconfigureLoop.Do(func() error {
		writes++
		if err := b.dev.Registers.Write32(addr, b.cfg.ReconfigureCommand); err != nil {
			glog.Warningf("reconfigure command %d: %v", writes, err)
		}
		return errStillRunning
	})

	return Unrecoverable(fmt.Errorf("%w (%d reconfigure commands written)", ErrNoReset, writes))
}
