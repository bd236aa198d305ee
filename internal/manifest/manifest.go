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

// Package manifest verifies signed firmware manifests.
//
// A manifest is a signed note whose text lists one image per line as
//
//	<hex sha256> <path>
//
// where path is the location of the image on the storage partition.
package manifest

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/mod/sumdb/note"
)

// Manifest maps image paths to their expected SHA-256.
type Manifest struct {
	hashes map[string][]byte
}

// Open verifies the signature on msg and parses the manifest it carries.
func Open(msg []byte, verifiers note.Verifiers) (*Manifest, error) {
	n, err := note.Open(msg, verifiers)
	if err != nil {
		return nil, fmt.Errorf("failed to verify manifest: %w", err)
	}
	return Parse(n.Text)
}

// Parse decodes the text of a manifest.
func Parse(text string) (*Manifest, error) {
	m := &Manifest{hashes: make(map[string][]byte)}
	for i, l := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if l == "" {
			continue
		}
		h, path, ok := strings.Cut(l, " ")
		if !ok || path == "" {
			return nil, fmt.Errorf("line %d: want \"<sha256> <path>\", got %q", i+1, l)
		}
		b, err := hex.DecodeString(h)
		if err != nil || len(b) != sha256.Size {
			return nil, fmt.Errorf("line %d: invalid sha256 %q", i+1, h)
		}
		if _, dup := m.hashes[path]; dup {
			return nil, fmt.Errorf("line %d: duplicate entry for %q", i+1, path)
		}
		m.hashes[path] = b
	}
	if len(m.hashes) == 0 {
		return nil, errors.New("manifest lists no images")
	}
	return m, nil
}

// Check returns an error unless img is the image the manifest lists for path.
func (m *Manifest) Check(path string, img []byte) error {
	want, ok := m.hashes[path]
	if !ok {
		return fmt.Errorf("%q is not listed in the manifest", path)
	}
	got := sha256.Sum256(img)
	if !bytes.Equal(got[:], want) {
		return fmt.Errorf("%q has sha256 %x, manifest says %x", path, got, want)
	}
	return nil
}

// Line formats the manifest entry for img stored at path.
func Line(path string, img []byte) string {
	h := sha256.Sum256(img)
	return fmt.Sprintf("%x %s\n", h, path)
}
