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
)

var (
	// ErrUnrecoverable marks errors after which the boot attempt must not
	// continue in any form. The outermost caller terminates the process.
	ErrUnrecoverable = errors.New("unrecoverable")

	// ErrHalt marks a reported halt: the attempt stopped before handing over
	// to the kernel, and the caller may retry.
	ErrHalt = errors.New("boot halted")

	// ErrNoReset is returned when a bounded reconfigure policy runs out
	// without the hardware having reset the device.
	ErrNoReset = errors.New("device did not reset after reconfiguration")
)

// Unrecoverable wraps err into the unrecoverable class.
func Unrecoverable(err error) error {
	if err == nil || errors.Is(err, ErrUnrecoverable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnrecoverable, err)
}

// IsUnrecoverable returns true if err belongs to the unrecoverable class.
func IsUnrecoverable(err error) bool {
	return errors.Is(err, ErrUnrecoverable)
}
