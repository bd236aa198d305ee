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
	"testing"

	"github.com/zsipos/bootsel/api"
)

func TestNeedsUpdate(t *testing.T) {
	for _, test := range []struct {
		version, expected int
		status            api.BootstrapStatus
		want              bool
	}{
		{version: 3, expected: 3, status: 0, want: false},
		{version: 3, expected: 3, status: 0x1, want: false},
		{version: 3, expected: 3, status: 0x2, want: true},
		{version: 2, expected: 3, status: 0, want: true},
		{version: 4, expected: 3, status: 0, want: true},
		{version: -1, expected: 3, status: 0, want: true},
		{version: 2, expected: 3, status: 0x2, want: true},
	} {
		if got := NeedsUpdate(test.version, test.expected, test.status); got != test.want {
			t.Errorf("NeedsUpdate(%d, %d, 0x%x) = %t, want %t", test.version, test.expected, test.status, got, test.want)
		}
	}
}

func TestCheckFirmware(t *testing.T) {
	for _, test := range []struct {
		desc      string
		fwVersion string
		status    []uint32
		want      Integrity
		wantReads int
		wantErr   bool
	}{
		{
			desc:      "current",
			fwVersion: "3",
			status:    []uint32{0},
			want:      Integrity{Version: 3, Status: 0},
			wantReads: 1,
		}, {
			desc:      "stale",
			fwVersion: "2",
			status:    []uint32{0},
			want:      Integrity{Version: 2, Status: 0, NeedsUpdate: true},
			wantReads: 1,
		}, {
			desc:      "malformed version",
			fwVersion: "three",
			status:    []uint32{0},
			want:      Integrity{Version: -1, Status: 0, NeedsUpdate: true},
			wantReads: 1,
		}, {
			desc:      "fallback after settling",
			fwVersion: "3",
			status:    []uint32{0xffffffff, 0xffffffff, 0xffffffff, 0x2},
			want:      Integrity{Version: 3, Status: 0x2, NeedsUpdate: true},
			wantReads: 4,
		}, {
			desc:      "never settles under a bounded poll",
			fwVersion: "3",
			status:    []uint32{0xffffffff},
			wantReads: 5,
			wantErr:   true,
		},
	} {
		t.Run(test.desc, func(t *testing.T) {
			e := newEnv(t)
			e.storage.put(1, e.cfg.FirmwareVersionPath, test.fwVersion)
			e.regs.Set(icapAddr, test.status...)

			got, err := e.bootloader().CheckFirmware(context.Background(), e.scratch(), 1)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("CheckFirmware() = %v, want err %t", err, test.wantErr)
			}
			if err != nil && !IsUnrecoverable(err) {
				t.Errorf("CheckFirmware() = %v, want unrecoverable", err)
			}
			if got != test.want {
				t.Errorf("CheckFirmware() = %+v, want %+v", got, test.want)
			}
			if r := e.reads(icapAddr); r != test.wantReads {
				t.Errorf("got %d status reads, want %d", r, test.wantReads)
			}
		})
	}
}

func TestCheckFirmwareMissingVersion(t *testing.T) {
	e := newEnv(t)
	_, err := e.bootloader().CheckFirmware(context.Background(), e.scratch(), 2)
	if !IsUnrecoverable(err) {
		t.Fatalf("CheckFirmware() = %v, want unrecoverable", err)
	}
	if r := e.reads(icapAddr); r != 0 {
		t.Errorf("got %d status reads, want none", r)
	}
}

func TestCheckFirmwareUnreadableStatus(t *testing.T) {
	e := newEnv(t)
	e.storage.put(1, e.cfg.FirmwareVersionPath, "3")
	e.tree.addrs[e.cfg.StatusNode] = 0x30000000

	_, err := e.bootloader().CheckFirmware(context.Background(), e.scratch(), 1)
	if !IsUnrecoverable(err) {
		t.Fatalf("CheckFirmware() = %v, want unrecoverable", err)
	}
	if errors.Is(err, errStatusNotValid) {
		t.Errorf("CheckFirmware() = %v, want a register error rather than a poll timeout", err)
	}
}
