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

// Package section implements spec.md §3's Section/CodeFlowEntry data model:
// per-section byte buffers, code-flow edges for CFG construction, and the
// compressed per-instruction side tables (regvar usage, linear
// dependencies, delayed ops, wait instructions) that the register allocator
// and wait scheduler consume after the last source line is read.
package section

import "github.com/clrx-go/gcnasm/internal/srcpos"

// Type names the kind of section content, per spec.md §3.
type Type int

const (
	TypeCode Type = iota
	TypeData
	TypeConfig
)

// Flags are the writeable/addressable/absolute-addressable bits from
// spec.md §3.
type Flags uint8

const (
	FlagWriteable Flags = 1 << iota
	FlagAddressable
	FlagAbsAddressable
)

// CFEntryType enumerates the code-flow entry kinds from spec.md §3.
type CFEntryType int

const (
	CFStart CFEntryType = iota
	CFEnd
	CFJump
	CFCJump
	CFCall
	CFReturn
)

// CodeFlowEntry records one control-flow edge emitted by a `.cf_*`
// pseudo-op or a control-flow instruction, per spec.md §3.
type CodeFlowEntry struct {
	Type   CFEntryType
	Offset int
	Target int // meaningful for Jump/CJump/Call
}

// RWFlags tags whether a regvar usage reads, writes, or both.
type RWFlags uint8

const (
	RWRead RWFlags = 1 << iota
	RWWrite
)

// RegVarUsage is one instruction's record of which virtual register range
// it reads, writes, or read-modify-writes, per spec.md §3.
type RegVarUsage struct {
	Offset   int
	RegVar   string
	RStart   int
	REnd     int
	RegField int
	RWFlags  RWFlags
	Align    int
}

// DelayedOpType enumerates the wait-queue categories an instruction's
// delayed effect can enqueue onto (spec.md §3/§4.5; concrete queue names
// such as memory/LGKM/export/vector-memory are ISA-specific and supplied by
// the caller as small integers via the Queue field).
type DelayedOpType int

// DelayedOp is one instruction's record of an in-flight operation that the
// wait scheduler must eventually observe completed, per spec.md §3.
type DelayedOp struct {
	Offset  int
	Queue   int
	Type    DelayedOpType
	RegVar  string
	RStart  int
	REnd    int
	RWFlags RWFlags
}

// WaitInstr is a user- or scheduler-inserted wait instruction naming the
// maximum allowed in-flight depth per queue, per spec.md §3/GLOSSARY.
type WaitInstr struct {
	Offset int
	Waits  map[int]int // queue -> max allowed depth
}

// LinearDep links two regvar ranges (e.g. parts of a multi-register
// operand), per spec.md §4.4(e). The allocator turns it into lane-by-lane
// interference edges, so the ranges get distinct registers; it does not make
// them physically consecutive.
type LinearDep struct {
	A, B string
}

// EqualTo coalesces two regvars into one color, per spec.md §4.4(e).
type EqualTo struct {
	A, B string
}

// Section is one named output section, per spec.md §3.
type Section struct {
	Name     string
	KernelID int
	Type     Type
	Flags    Flags
	Align    int

	Content []byte

	CodeFlow    []CodeFlowEntry
	Usages      []RegVarUsage
	DelayedOps  []DelayedOp
	WaitInstrs  []WaitInstr
	LinearDeps  []LinearDep
	EqualTos    []EqualTo

	Positions *srcpos.Handler
}

// New returns an empty section ready to accumulate content.
func New(name string, typ Type, flags Flags) *Section {
	return &Section{Name: name, Type: typ, Flags: flags, Positions: srcpos.NewHandler()}
}

// Offset returns the current write offset (end of content).
func (s *Section) Offset() int { return len(s.Content) }

// Write appends data and records its source position.
func (s *Section) Write(data []byte, pos srcpos.Pos, frames []srcpos.Frame) {
	s.Positions.Record(s.Offset(), pos, frames)
	s.Content = append(s.Content, data...)
}

// RecordCodeFlow appends a code-flow edge.
func (s *Section) RecordCodeFlow(e CodeFlowEntry) { s.CodeFlow = append(s.CodeFlow, e) }

// RecordUsage appends a regvar usage record.
func (s *Section) RecordUsage(u RegVarUsage) { s.Usages = append(s.Usages, u) }

// RecordDelayedOp appends a delayed-op record.
func (s *Section) RecordDelayedOp(d DelayedOp) { s.DelayedOps = append(s.DelayedOps, d) }

// RecordWait appends (or, at an existing offset, element-wise-minimum
// combines with) a wait instruction, per spec.md §4.5's "If a user-supplied
// wait instruction already exists at this offset, combine by element-wise
// minimum."
func (s *Section) RecordWait(w WaitInstr) {
	for i, existing := range s.WaitInstrs {
		if existing.Offset == w.Offset {
			merged := map[int]int{}
			for q, v := range existing.Waits {
				merged[q] = v
			}
			for q, v := range w.Waits {
				if cur, ok := merged[q]; !ok || v < cur {
					merged[q] = v
				}
			}
			s.WaitInstrs[i].Waits = merged
			return
		}
	}
	s.WaitInstrs = append(s.WaitInstrs, w)
}
