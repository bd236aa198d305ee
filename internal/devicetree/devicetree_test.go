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

package devicetree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/u-root/u-root/pkg/dt"
)

func u64(v uint64) []byte {
	return append(U32(uint32(v>>32)), U32(uint32(v))...)
}

func testTree() *Tree {
	return FromRoot(&dt.Node{
		Properties: []dt.Property{
			{Name: "#address-cells", Value: U32(2)},
			{Name: "#size-cells", Value: U32(2)},
		},
		Children: []*dt.Node{
			{Name: "chosen"},
			{
				Name: "soc",
				Properties: []dt.Property{
					{Name: "#address-cells", Value: U32(1)},
					{Name: "#size-cells", Value: U32(1)},
				},
				Children: []*dt.Node{
					{Name: "gpio@10012000", Properties: []dt.Property{{Name: "reg", Value: append(U32(0x10012000), U32(0x1000)...)}}},
					{Name: "noreg@0"},
					{
						Name: "spi@0",
						Properties: []dt.Property{
							{Name: "#address-cells", Value: U32(1)},
							{Name: "#size-cells", Value: U32(0)},
						},
						Children: []*dt.Node{{
							Name: "flash@0",
							Properties: []dt.Property{
								{Name: "#address-cells", Value: U32(1)},
								{Name: "#size-cells", Value: U32(1)},
							},
							Children: []*dt.Node{
								{Name: "partition@0", Properties: []dt.Property{{Name: "reg", Value: append(U32(0), U32(0x400000)...)}}},
								{Name: "other"},
								{Name: "partition@400000", Properties: []dt.Property{{Name: "reg", Value: append(U32(0x400000), U32(0x100000)...)}}},
							},
						}},
					},
				},
			},
			{Name: "memory@80000000", Properties: []dt.Property{{Name: "reg", Value: append(u64(0x80000000), u64(0x40000000)...)}}},
		},
	})
}

func TestResolveAddress(t *testing.T) {
	tree := testTree()
	for _, test := range []struct {
		desc    string
		path    string
		want    uint64
		wantErr bool
	}{
		{desc: "one cell", path: "/soc/gpio@10012000", want: 0x10012000},
		{desc: "without unit address", path: "/soc/gpio", want: 0x10012000},
		{desc: "two cells", path: "/memory@80000000", want: 0x80000000},
		{desc: "missing node", path: "/soc/gpio@1", wantErr: true},
		{desc: "missing reg", path: "/soc/noreg@0", wantErr: true},
		{desc: "root", path: "/", wantErr: true},
	} {
		t.Run(test.desc, func(t *testing.T) {
			got, err := tree.ResolveAddress(test.path)
			if gotErr := err != nil; gotErr != test.wantErr {
				t.Fatalf("ResolveAddress(%q) err = %v, want err %t", test.path, err, test.wantErr)
			}
			if got != test.want {
				t.Errorf("ResolveAddress(%q) = 0x%x, want 0x%x", test.path, got, test.want)
			}
		})
	}
}

func TestReg(t *testing.T) {
	got, err := testTree().Reg("/memory")
	if err != nil {
		t.Fatalf("Reg(): %v", err)
	}
	if want := (Region{Start: 0x80000000, Size: 0x40000000}); got != want {
		t.Errorf("Reg() = %+v, want %+v", got, want)
	}
}

func TestSetProperty(t *testing.T) {
	tree := testTree()

	if err := tree.SetProperty("/chosen", "partition", U32(2)); err != nil {
		t.Fatalf("SetProperty(): %v", err)
	}
	if err := tree.SetProperty("/chosen", "partition", U32(1)); err != nil {
		t.Fatalf("SetProperty(): %v", err)
	}
	got, err := tree.Property("/chosen", "partition")
	if err != nil {
		t.Fatalf("Property(): %v", err)
	}
	if diff := cmp.Diff([]byte{0, 0, 0, 1}, got); diff != "" {
		t.Errorf("partition diff (-want +got):\n%s", diff)
	}
	n, _, _ := tree.lookup("/chosen")
	if l := len(n.Properties); l != 1 {
		t.Errorf("chosen has %d properties, want 1", l)
	}

	if err := tree.SetProperty("/display@0", "rotate", U32(270)); err == nil {
		t.Error("SetProperty() on a missing node succeeded")
	}
	if _, err := tree.Property("/chosen", "bootargs"); err == nil {
		t.Error("Property() of a missing property succeeded")
	}
}

func TestFlashOffset(t *testing.T) {
	ft := FlashTable{Tree: testTree(), Flash: "/soc/spi@0/flash@0"}
	for _, test := range []struct {
		index   int
		want    int64
		wantErr bool
	}{
		{index: 0, want: 0},
		{index: 1, want: 0x400000},
		{index: 2, wantErr: true},
	} {
		got, err := ft.FlashOffset(test.index)
		if gotErr := err != nil; gotErr != test.wantErr {
			t.Fatalf("FlashOffset(%d) err = %v, want err %t", test.index, err, test.wantErr)
		}
		if got != test.want {
			t.Errorf("FlashOffset(%d) = 0x%x, want 0x%x", test.index, got, test.want)
		}
	}

	if _, err := (FlashTable{Tree: testTree(), Flash: "/soc/spi@1/flash@0"}).FlashOffset(0); err == nil {
		t.Error("FlashOffset() on a missing flash node succeeded")
	}
}

func TestRoundTrip(t *testing.T) {
	tree := testTree()
	if err := tree.SetProperty("/chosen", "bootversion", U32(7)); err != nil {
		t.Fatalf("SetProperty(): %v", err)
	}
	b, err := tree.Bytes()
	if err != nil {
		t.Fatalf("Bytes(): %v", err)
	}
	loaded, err := Load(b)
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	got, err := loaded.Property("/chosen", "bootversion")
	if err != nil {
		t.Fatalf("Property(): %v", err)
	}
	if diff := cmp.Diff(U32(7), got); diff != "" {
		t.Errorf("bootversion diff (-want +got):\n%s", diff)
	}
	if addr, err := loaded.ResolveAddress("/soc/gpio@10012000"); err != nil || addr != 0x10012000 {
		t.Errorf("ResolveAddress() = 0x%x, %v, want 0x10012000, nil", addr, err)
	}

	if _, err := Load([]byte("not a dtb")); err == nil {
		t.Error("Load() of garbage succeeded")
	}
}
