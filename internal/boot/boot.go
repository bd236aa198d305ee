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
)

// State is a step of a boot attempt.
type State int

const (
	StateStart State = iota
	StateReadVersions
	StateSelect
	StateCheckFirmware
	// StateUpdateAndReconfigure ends with the device resetting.
	StateUpdateAndReconfigure
	StateApplyOrientation
	StateLaunch
	// StateExecute is reached once control went to the kernel.
	StateExecute
	// StateHalt is reached when the kernel could not be started.
	StateHalt
)

var stateNames = map[State]string{
	StateStart:                "START",
	StateReadVersions:         "READ_VERSIONS",
	StateSelect:               "SELECT",
	StateCheckFirmware:        "CHECK_FIRMWARE",
	StateUpdateAndReconfigure: "UPDATE_AND_RECONFIGURE",
	StateApplyOrientation:     "APPLY_ORIENTATION",
	StateLaunch:               "LAUNCH",
	StateExecute:              "EXECUTE",
	StateHalt:                 "HALT",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "UNKNOWN"
}

// Report describes how far a boot attempt went.
type Report struct {
	State     State
	Decision  api.BootDecision
	Integrity Integrity
	Rotated   bool
}

func (r *Report) enter(s State) {
	glog.V(1).Infof("%v -> %v", r.State, s)
	r.State = s
}

// Bootloader runs boot attempts on a device.
type Bootloader struct {
	dev Device
	cfg Config
}

// New returns a Bootloader driving dev.
func New(dev Device, cfg Config) *Bootloader {
	return &Bootloader{dev: dev, cfg: cfg}
}

// Run performs one boot attempt.
//
// On hardware Run only returns on failure: an update ends in a reset and a
// launch in the kernel. The returned error is unrecoverable (see
// IsUnrecoverable) or wraps ErrHalt. A nil error means the executor returned
// after a successful handover, which only emulated devices do.
func (b *Bootloader) Run(ctx context.Context) (Report, error) {
	r := Report{State: StateStart}
	s := NewScratch(b.cfg.ScratchSize)

	r.enter(StateReadVersions)
	v1 := b.ReadVersion(ctx, s, api.PartitionOne, b.cfg.VersionPath)
	v2 := b.ReadVersion(ctx, s, api.PartitionTwo, b.cfg.VersionPath)

	r.enter(StateSelect)
	r.Decision = SelectPartition(v1, v2, b.ReadOverride())
	p := r.Decision.Selected
	glog.Infof("select partition %d (%v)", p, r.Decision)

	r.enter(StateCheckFirmware)
	var err error
	if r.Integrity, err = b.CheckFirmware(ctx, s, p); err != nil {
		return r, err
	}

	if r.Integrity.NeedsUpdate {
		r.enter(StateUpdateAndReconfigure)
		if err := b.UpdateFirmware(ctx, s, p); err != nil {
			return r, err
		}
		return r, b.Reconfigure()
	}

	r.enter(StateApplyOrientation)
	r.Rotated = b.ApplyOrientation(ctx, s, p)

	r.enter(StateLaunch)
	if err := b.Launch(ctx, s, p); err != nil {
		r.enter(StateHalt)
		return r, err
	}
	r.enter(StateExecute)
	return r, nil
}
