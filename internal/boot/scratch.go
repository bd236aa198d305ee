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
)

// Scratch is the load arena of one boot attempt. Every load overwrites it,
// so slices returned by Load are only valid until the next load.
type Scratch struct {
	buf []byte
}

// NewScratch allocates an arena of size bytes.
func NewScratch(size int) *Scratch {
	return &Scratch{buf: make([]byte, size)}
}

// Load reads path from partition p into the arena at off and returns the
// loaded bytes.
func (s *Scratch) Load(ctx context.Context, st Storage, p api.PartitionIndex, path string, off int) ([]byte, error) {
	glog.Infof("loading %s from partition %d", path, p)

	b, err := st.Read(ctx, p, path)
	if err != nil {
		return nil, err
	}
	if off < 0 || off+len(b) > len(s.buf) {
		return nil, fmt.Errorf("%s: %d bytes at offset %d do not fit the %d byte scratch area", path, len(b), off, len(s.buf))
	}
	n := copy(s.buf[off:], b)
	return s.Region(off, n), nil
}

// Region returns n bytes of the arena starting at off.
func (s *Scratch) Region(off, n int) []byte {
	return s.buf[off : off+n : off+n]
}
