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
	"github.com/zsipos/bootsel/internal/manifest"
)

// UpdateFirmware copies the configured images from partition p into flash.
//
// Every failure is unrecoverable: the attempt must stop rather than go on
// with a partially written image. When manifest verifiers are configured all
// images are checked against the signed manifest before the first write.
func (b *Bootloader) UpdateFirmware(ctx context.Context, s *Scratch, p api.PartitionIndex) error {
	var m *manifest.Manifest
	if b.cfg.ManifestVerifiers != nil {
		var err error
		if m, err = b.verifyImages(ctx, s, p); err != nil {
			return Unrecoverable(err)
		}
	}

	for _, img := range b.cfg.Images {
		if err := b.flashImage(ctx, s, p, img, m); err != nil {
			return Unrecoverable(err)
		}
	}
	glog.Infof("firmware from partition %d flashed", p)
	return nil
}

// verifyImages opens the signed manifest of partition p and checks every
// image against it.
func (b *Bootloader) verifyImages(ctx context.Context, s *Scratch, p api.PartitionIndex) (*manifest.Manifest, error) {
	raw, err := s.Load(ctx, b.dev.Storage, p, b.cfg.ManifestPath, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to load manifest: %w", err)
	}
	m, err := manifest.Open(raw, b.cfg.ManifestVerifiers)
	if err != nil {
		return nil, err
	}
	for _, img := range b.cfg.Images {
		payload, err := s.Load(ctx, b.dev.Storage, p, img.Path, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", img.Path, err)
		}
		if err := m.Check(img.Path, payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// flashImage loads one image behind room for its header, frames it and writes
// header and payload to flash as a single region.
func (b *Bootloader) flashImage(ctx context.Context, s *Scratch, p api.PartitionIndex, img api.FirmwareImage, m *manifest.Manifest) error {
	hs := img.HeaderSize()
	payload, err := s.Load(ctx, b.dev.Storage, p, img.Path, hs)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", img.Path, err)
	}
	if m != nil {
		if err := m.Check(img.Path, payload); err != nil {
			return err
		}
	}

	region := s.Region(0, hs+len(payload))
	if img.Header {
		h := api.NewImageHeader(payload)
		h.Put(region)
		glog.Infof("%s: length %d crc 0x%08x", img.Path, h.Length, h.CRC32)
	}

	offset, err := b.dev.FlashTable.FlashOffset(img.FlashPartition)
	if err != nil {
		return fmt.Errorf("cannot locate flash partition %d: %w", img.FlashPartition, err)
	}

	glog.Infof("writing %s (%d bytes) to flash partition %d at 0x%x", img.Path, len(region), img.FlashPartition, offset)
	if err := b.dev.Flash.WriteFlash(ctx, offset, region); err != nil {
		return fmt.Errorf("failed to write %s to flash: %w", img.Path, err)
	}
	return nil
}
