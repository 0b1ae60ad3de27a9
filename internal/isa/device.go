// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package isa

import "golang.org/x/sys/cpu"

// Device names one GCN generation the device-generation table can target.
type Device struct {
	Name       string
	Generation int
	Is64Bit    bool
}

// Devices is the GCN device-generation table the `-d/--device` flag
// resolves against.
var Devices = []Device{
	{Name: "tahiti", Generation: 1},
	{Name: "pitcairn", Generation: 1},
	{Name: "bonaire", Generation: 2},
	{Name: "hawaii", Generation: 2},
	{Name: "tonga", Generation: 3},
	{Name: "fiji", Generation: 3},
	{Name: "polaris10", Generation: 4},
	{Name: "vega10", Generation: 5},
	{Name: "vega20", Generation: 5},
	{Name: "gfx1010", Generation: 10},
}

// Lookup returns the device entry matching name, if any.
func Lookup(name string) (Device, bool) {
	for _, d := range Devices {
		if d.Name == name {
			return d, true
		}
	}
	return Device{}, false
}

// DefaultDevice picks a fallback device when the user passes no `-d` flag:
// the newest generation in the table, with 64-bit addressing when this
// binary is built for a 64-bit architecture. On a 32-bit build the choice
// falls to cpu.X86.HasAVX2 (golang.org/x/sys/cpu), following
// ajroetker-goat's main.go pattern of consulting the host CPU probe to pick
// a target default (there cpu.RISCV64.HasV).
func DefaultDevice() Device {
	d := Devices[len(Devices)-1]
	d.Is64Bit = hostIs64Bit()
	return d
}

func hostIs64Bit() bool {
	const uintSize = 32 << (^uint(0) >> 63)
	if uintSize == 64 {
		return true
	}
	return cpu.X86.HasAVX2
}
