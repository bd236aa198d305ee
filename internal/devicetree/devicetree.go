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

// Package devicetree edits flattened device trees and resolves the hardware
// descriptors the boot selector needs from them.
package devicetree

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/u-root/u-root/pkg/dt"
)

const (
	fdtMagic = 0xd00dfeed

	// DT defaults when a parent node carries no cell count properties.
	defaultAddressCells = 2
	defaultSizeCells    = 1
)

// Tree is a mutable device tree.
type Tree struct {
	fdt *dt.FDT
}

// New wraps an already parsed device tree.
func New(fdt *dt.FDT) *Tree {
	return &Tree{fdt: fdt}
}

// FromRoot returns a tree made of the given root node.
func FromRoot(root *dt.Node) *Tree {
	return New(&dt.FDT{
		Header:   dt.Header{Magic: fdtMagic, Version: 17, LastCompVersion: 16},
		RootNode: root,
	})
}

// Load parses a flattened device tree blob.
func Load(dtb []byte) (*Tree, error) {
	fdt, err := dt.ReadFDT(bytes.NewReader(dtb))
	if err != nil {
		return nil, fmt.Errorf("invalid device tree: %w", err)
	}
	return New(fdt), nil
}

// Bytes serialises the tree into a flattened device tree blob.
func (t *Tree) Bytes() ([]byte, error) {
	b := new(bytes.Buffer)
	if _, err := t.fdt.Write(b); err != nil {
		return nil, fmt.Errorf("failed to write device tree: %w", err)
	}
	return b.Bytes(), nil
}

// lookup returns the node at path along with its parent.
func (t *Tree) lookup(path string) (node, parent *dt.Node, err error) {
	node = t.fdt.RootNode
	if node == nil {
		return nil, nil, fmt.Errorf("device tree has no root node")
	}
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		child := findChild(node, name)
		if child == nil {
			return nil, nil, fmt.Errorf("node %q not found", path)
		}
		parent, node = node, child
	}
	return node, parent, nil
}

// findChild matches either the full node name or the name without its unit
// address.
func findChild(n *dt.Node, name string) *dt.Node {
	for _, c := range n.Children {
		if c.Name == name {
			return c
		}
	}
	if strings.Contains(name, "@") {
		return nil
	}
	for _, c := range n.Children {
		if base, _, _ := strings.Cut(c.Name, "@"); base == name {
			return c
		}
	}
	return nil
}

func findProperty(n *dt.Node, name string) *dt.Property {
	for i := range n.Properties {
		if n.Properties[i].Name == name {
			return &n.Properties[i]
		}
	}
	return nil
}

// Property returns the raw value of the named property of the node at path.
func (t *Tree) Property(path, name string) ([]byte, error) {
	n, _, err := t.lookup(path)
	if err != nil {
		return nil, err
	}
	p := findProperty(n, name)
	if p == nil {
		return nil, fmt.Errorf("node %q has no property %q", path, name)
	}
	return p.Value, nil
}

// SetProperty sets the named property of the node at path, adding it if it
// does not exist yet.
func (t *Tree) SetProperty(path, name string, value []byte) error {
	n, _, err := t.lookup(path)
	if err != nil {
		return err
	}
	if p := findProperty(n, name); p != nil {
		p.Value = value
		return nil
	}
	n.Properties = append(n.Properties, dt.Property{Name: name, Value: value})
	return nil
}

// U32 encodes v as a single device tree cell.
func U32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func cells(n *dt.Node, name string, def int) int {
	if n == nil {
		return def
	}
	p := findProperty(n, name)
	if p == nil || len(p.Value) != 4 {
		return def
	}
	return int(binary.BigEndian.Uint32(p.Value))
}

// readCells decodes a number made of count big-endian cells.
func readCells(b []byte, count int) (uint64, []byte, error) {
	if count < 1 || count > 2 || len(b) < 4*count {
		return 0, nil, fmt.Errorf("cannot read %d cells from %d bytes", count, len(b))
	}
	var v uint64
	for i := 0; i < count; i++ {
		v = v<<32 | uint64(binary.BigEndian.Uint32(b[4*i:]))
	}
	return v, b[4*count:], nil
}

// Region is an address range taken from a reg property.
type Region struct {
	Start, Size uint64
}

// Reg decodes the first entry of the reg property of the node at path, using
// the cell counts declared by its parent.
func (t *Tree) Reg(path string) (Region, error) {
	n, parent, err := t.lookup(path)
	if err != nil {
		return Region{}, err
	}
	p := findProperty(n, "reg")
	if p == nil {
		return Region{}, fmt.Errorf("node %q has no reg property", path)
	}
	ac := cells(parent, "#address-cells", defaultAddressCells)
	sc := cells(parent, "#size-cells", defaultSizeCells)

	start, rest, err := readCells(p.Value, ac)
	if err != nil {
		return Region{}, fmt.Errorf("node %q: invalid reg: %w", path, err)
	}
	var size uint64
	if sc > 0 {
		if size, _, err = readCells(rest, sc); err != nil {
			return Region{}, fmt.Errorf("node %q: invalid reg: %w", path, err)
		}
	}
	return Region{Start: start, Size: size}, nil
}

// ResolveAddress returns the hardware address of the node at path.
func (t *Tree) ResolveAddress(path string) (uint64, error) {
	r, err := t.Reg(path)
	if err != nil {
		return 0, err
	}
	return r.Start, nil
}

// FlashTable resolves flash partition offsets from the partition@ children of
// a flash node.
type FlashTable struct {
	Tree *Tree
	// Flash is the path of the flash node.
	Flash string
}

// FlashOffset returns the byte offset of the index-th flash partition.
func (f FlashTable) FlashOffset(index int) (int64, error) {
	n, _, err := f.Tree.lookup(f.Flash)
	if err != nil {
		return 0, err
	}
	i := 0
	for _, c := range n.Children {
		if base, _, _ := strings.Cut(c.Name, "@"); base != "partition" {
			continue
		}
		if i == index {
			r, err := f.Tree.Reg(f.Flash + "/" + c.Name)
			if err != nil {
				return 0, err
			}
			return int64(r.Start), nil
		}
		i++
	}
	return 0, fmt.Errorf("flash %q has no partition %d", f.Flash, index)
}
