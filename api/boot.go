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

// Package api contains the data types shared between the boot selector
// components and the tooling which prepares devices for it.
package api

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/usbarmory/tamago/bits"
)

// PartitionIndex identifies one of the two redundant storage partitions.
type PartitionIndex int

const (
	// PartitionOne is the first storage partition.
	PartitionOne PartitionIndex = 1
	// PartitionTwo is the second storage partition.
	PartitionTwo PartitionIndex = 2
)

// Valid returns true if p names one of the two storage partitions.
func (p PartitionIndex) Valid() bool {
	return p == PartitionOne || p == PartitionTwo
}

// NoVersion is the version record of a partition whose version file is
// absent or unreadable. It orders below every real version.
const NoVersion = -1

// BootDecision is the outcome of partition selection for one boot attempt.
type BootDecision struct {
	// Versions holds the version records read from partitions 1 and 2.
	Versions [2]int
	// Override is true when the physical override signal was active.
	Override bool
	// Lower and Higher are the partitions ranked by version.
	Lower, Higher PartitionIndex
	// Selected is the partition the rest of the attempt uses.
	Selected PartitionIndex
}

// String returns a one line summary of the decision.
func (d BootDecision) String() string {
	return fmt.Sprintf("versions=%v override=%t lower=%d higher=%d selected=%d", d.Versions, d.Override, d.Lower, d.Higher, d.Selected)
}

// BootstrapStatus is the value of the configuration engine status register.
type BootstrapStatus uint32

const (
	// StatusNotValid is reported until the configuration engine has settled.
	StatusNotValid BootstrapStatus = 0xffffffff

	fallbackBit = 1
)

// Valid returns false while the configuration engine has not yet settled.
func (s BootstrapStatus) Valid() bool {
	return s != StatusNotValid
}

// Fallback returns true if the configuration engine reverted to the backup
// bitstream after failing to load the primary one.
func (s BootstrapStatus) Fallback() bool {
	v := uint32(s)
	return bits.IsSet(&v, fallbackBit)
}

// OrientationFlag is the persisted display rotation setting.
type OrientationFlag int

// RotatedDegrees is the display rotation applied for a positive flag.
const RotatedDegrees = 270

// Rotated returns true if the display must be rotated.
func (o OrientationFlag) Rotated() bool {
	return o > 0
}

// ImageHeaderSize is the size of the header prepended to protected images.
const ImageHeaderSize = 8

// ImageHeader precedes the payload of a header-protected firmware image on
// flash. Both fields are stored little-endian.
type ImageHeader struct {
	Length uint32
	CRC32  uint32
}

// NewImageHeader returns the header describing payload.
func NewImageHeader(payload []byte) ImageHeader {
	return ImageHeader{
		Length: uint32(len(payload)),
		CRC32:  crc32.ChecksumIEEE(payload),
	}
}

// Put encodes the header into the first ImageHeaderSize bytes of b.
func (h ImageHeader) Put(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], h.Length)
	binary.LittleEndian.PutUint32(b[4:8], h.CRC32)
}

// ParseImageHeader decodes the header at the start of b.
func ParseImageHeader(b []byte) (ImageHeader, error) {
	if len(b) < ImageHeaderSize {
		return ImageHeader{}, fmt.Errorf("image header needs %d bytes, got %d", ImageHeaderSize, len(b))
	}
	return ImageHeader{
		Length: binary.LittleEndian.Uint32(b[0:4]),
		CRC32:  binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// Verify checks that payload matches the length and checksum in the header.
func (h ImageHeader) Verify(payload []byte) error {
	if int(h.Length) != len(payload) {
		return fmt.Errorf("length mismatch: header says %d, payload has %d", h.Length, len(payload))
	}
	if got := crc32.ChecksumIEEE(payload); got != h.CRC32 {
		return fmt.Errorf("crc mismatch: header says 0x%08x, payload has 0x%08x", h.CRC32, got)
	}
	return nil
}

// FirmwareImage describes one image the updater copies from a storage
// partition into raw flash.
type FirmwareImage struct {
	// Path is the file holding the image on the storage partition.
	Path string
	// FlashPartition is the index of the destination flash partition.
	FlashPartition int
	// Header is true for images stored with an ImageHeader.
	Header bool
}

// HeaderSize returns the number of bytes reserved in front of the payload.
func (i FirmwareImage) HeaderSize() int {
	if i.Header {
		return ImageHeaderSize
	}
	return 0
}
