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
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/glog"
	"github.com/zsipos/bootsel/api"
)

var errStatusNotValid = errors.New("bootstrap status not valid yet")

// Integrity is the result of checking the flashed firmware against a
// partition.
type Integrity struct {
	Version     int
	Status      api.BootstrapStatus
	NeedsUpdate bool
}

// NeedsUpdate returns true if the firmware version differs from the expected
// one or the configuration engine fell back to its backup bitstream.
func NeedsUpdate(version, expected int, status api.BootstrapStatus) bool {
	return version != expected || status.Fallback()
}

// CheckFirmware decides whether the firmware of partition p must be flashed.
//
// A missing firmware version file is unrecoverable. The bootstrap status is
// polled according to the StatusPoll policy, which in production never gives
// up.
func (b *Bootloader) CheckFirmware(ctx context.Context, s *Scratch, p api.PartitionIndex) (Integrity, error) {
	raw, err := s.Load(ctx, b.dev.Storage, p, b.cfg.FirmwareVersionPath, 0)
	if err != nil {
		return Integrity{}, Unrecoverable(fmt.Errorf("firmware version %s missing on partition %d: %w", b.cfg.FirmwareVersionPath, p, err))
	}
	version := parseVersion(raw)

	status, err := b.pollStatus()
	if err != nil {
		return Integrity{}, Unrecoverable(err)
	}

	r := Integrity{
		Version:     version,
		Status:      status,
		NeedsUpdate: NeedsUpdate(version, b.cfg.ExpectedFirmwareVersion, status),
	}
	glog.Infof("firmware version %d (want %d), bootstrap status 0x%08x, fallback %t", version, b.cfg.ExpectedFirmwareVersion, uint32(status), status.Fallback())
	return r, nil
}

// pollStatus reads the bootstrap status register until it holds a valid value.
func (b *Bootloader) pollStatus() (api.BootstrapStatus, error) {
	base, err := b.dev.Tree.ResolveAddress(b.cfg.StatusNode)
	if err != nil {
		return 0, fmt.Errorf("cannot locate configuration engine: %w", err)
	}
	addr := base + b.cfg.StatusOffset

	var status api.BootstrapStatus
	polls := 0
	err = b.cfg.StatusPoll.Do(func() error {
		polls++
		v, err := b.dev.Registers.Read32(addr)
		if err != nil {
			return backoff.Permanent(err)
		}
		status = api.BootstrapStatus(v)
		if !status.Valid() {
			glog.V(2).Infof("bootstrap status not valid after %d polls", polls)
			return errStatusNotValid
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("bootstrap status at 0x%08x after %d polls: %w", addr, polls, err)
	}
	return status, nil
}
