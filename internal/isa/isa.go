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

// Package isa defines the thin contract the driver consumes from a per-ISA
// instruction encoder, per spec.md §1: "The per-ISA instruction encoder
// (GCN opcode tables) — only its abstract contract" is in scope here, not a
// concrete GCN opcode table.
package isa

import "github.com/clrx-go/gcnasm/internal/section"

// Operand is one parsed instruction operand, already reduced to either a
// resolved literal or an unresolved reference the encoder records as a
// relocation/regvar usage.
type Operand struct {
	Text string
	// RegVar is set when this operand names a virtual register range
	// rather than a literal or already-resolved immediate.
	RegVar   string
	RStart   int
	REnd     int
	RWFlags  section.RWFlags
}

// EncodeResult is what an encoder returns for one successfully encoded
// instruction.
type EncodeResult struct {
	Bytes      []byte
	Usages     []section.RegVarUsage
	DelayedOps []section.DelayedOp
}

// Encoder is the abstract contract spec.md §1 scopes out: given a mnemonic
// and its parsed operands, produce the instruction's machine bytes plus the
// side-table records the register allocator and wait scheduler need.
// Concrete GCN generation-specific opcode tables implement this outside the
// core; this package supplies only the device catalog used to pick one.
type Encoder interface {
	Encode(mnemonic string, operands []Operand) (EncodeResult, error)
	// Mnemonics lists every instruction this encoder recognizes. The
	// driver does not consult it when dispatching a statement.
	Mnemonics() []string
}
