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

// Package retry holds the fixed-delay retry policy used by the hardware
// polling loops of the boot selector.
//
// The production policies are unbounded: the loops they drive rely on the
// hardware eventually changing state and have no deadline. Tests and the
// emulator inject bounded policies instead.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy describes how often and how many times an operation is attempted.
type Policy struct {
	// Delay is the fixed pause between two attempts.
	Delay time.Duration
	// MaxAttempts bounds the number of attempts. Zero means unbounded.
	MaxAttempts uint64
}

// Forever returns an unbounded policy with the given delay.
func Forever(delay time.Duration) Policy {
	return Policy{Delay: delay}
}

// Bounded returns true if the policy gives up after MaxAttempts.
func (p Policy) Bounded() bool {
	return p.MaxAttempts > 0
}

// BackOff returns a fresh backoff.BackOff implementing the policy.
func (p Policy) BackOff() backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Delay)
	if p.Bounded() {
		b = backoff.WithMaxRetries(b, p.MaxAttempts-1)
	}
	return b
}

// Do calls op until it returns nil or a backoff.Permanent error, or until the
// policy is exhausted, in which case the last error from op is returned.
//
// Do observes no context. Callers which must be abortable check one inside op.
func (p Policy) Do(op func() error) error {
	return backoff.Retry(op, p.BackOff())
}
