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

// Package hw provides access to 32-bit memory-mapped hardware registers.
package hw

import (
	"fmt"

	"github.com/usbarmory/tamago/bits"
)

// Registers reads and writes 32-bit hardware registers.
//
// Implementations must not cache, merge or reorder accesses: every call is
// one access to the device.
type Registers interface {
	Read32(addr uint64) (uint32, error)
	Write32(addr uint64, val uint32) error
}

// Bit returns true if bit pos of v is set.
func Bit(v uint32, pos int) bool {
	return bits.IsSet(&v, pos)
}

// Access is a single register access recorded by Memory.
type Access struct {
	Addr  uint64
	Value uint32
	Write bool
}

func (a Access) String() string {
	op := "R"
	if a.Write {
		op = "W"
	}
	return fmt.Sprintf("%s 0x%08x=0x%08x", op, a.Addr, a.Value)
}

// Memory is a register file held in memory.
//
// Each address holds a queue of values: reads consume the queue and the last
// value sticks, which models a status register changing state over time.
// Writes replace the queue with the written value.
type Memory struct {
	values map[uint64][]uint32
	// Log records every access in order.
	Log []Access
}

// NewMemory returns a register file with the given initial values.
func NewMemory(init map[uint64][]uint32) *Memory {
	m := &Memory{values: make(map[uint64][]uint32)}
	for a, v := range init {
		m.values[a] = append([]uint32(nil), v...)
	}
	return m
}

// Read32 implements Registers.
func (m *Memory) Read32(addr uint64) (uint32, error) {
	q, ok := m.values[addr]
	if !ok || len(q) == 0 {
		return 0, fmt.Errorf("no register at 0x%08x", addr)
	}
	v := q[0]
	if len(q) > 1 {
		m.values[addr] = q[1:]
	}
	m.Log = append(m.Log, Access{Addr: addr, Value: v})
	return v, nil
}

// Write32 implements Registers.
func (m *Memory) Write32(addr uint64, val uint32) error {
	m.values[addr] = []uint32{val}
	m.Log = append(m.Log, Access{Addr: addr, Value: val, Write: true})
	return nil
}

// Set replaces the value queue of addr.
func (m *Memory) Set(addr uint64, vals ...uint32) {
	m.values[addr] = append([]uint32(nil), vals...)
}

// Writes returns the values written to addr, oldest first.
func (m *Memory) Writes(addr uint64) []uint32 {
	var r []uint32
	for _, a := range m.Log {
		if a.Write && a.Addr == addr {
			r = append(r, a.Value)
		}
	}
	return r
}
