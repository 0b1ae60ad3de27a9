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

// Package regalloc implements spec.md §4.4's register allocator: code-block
// construction from recorded code-flow edges, SSA construction over the
// block graph, SSA-conflict resolution, liveness analysis, interference
// graph construction, and SDO/LDO graph coloring onto physical register
// ranges.
//
// The block/worklist traversal state machine (unvisited -> processing ->
// processed, with loop-head re-entry triggering a dedicated fill pass) is
// grounded on y1yang0-falcon's compile/ssa/loop.go and domtree.go CFG-walk
// idiom, adapted from falcon's dominator-tree bookkeeping to the direct
// successor-list walk spec.md describes.
package regalloc

import (
	"sort"

	"github.com/samber/lo"

	"github.com/clrx-go/gcnasm/internal/section"
)

// Block is one code-block: a contiguous byte range inside a section plus
// its successor edges, per spec.md §3's "Code block".
type Block struct {
	ID    int
	Start int
	End   int

	Nexts []Edge

	HaveCalls  bool
	HaveReturn bool
	HaveEnd    bool

	// ssaInfoMap: singleVReg -> SSAInfo, filled in by BuildSSA.
	SSAInfo map[SingleVReg]*SSAInfo
}

// Edge is a successor edge out of a Block, tagged whether it is a call.
type Edge struct {
	To     int // block ID
	IsCall bool
}

// SingleVReg is a (regvar, lane-index) pair, the finest-grained SSA
// tracking unit from spec.md GLOSSARY.
type SingleVReg struct {
	RegVar string
	Lane   int
}

// SSAInfo per spec.md §3's Code block description.
type SSAInfo struct {
	SSAIDBefore  int // valid if ReadBeforeWrite
	SSAIDFirst   int
	SSAID        int
	SSAIDLast    int
	SSAIDChange  bool
	ReadBeforeWrite bool
	FirstPos     int
	LastPos      int
}

// visitState implements the "unvisited -> processing -> processed" machine
// from spec.md §4.4.
type visitState int

const (
	unvisited visitState = iota
	processing
	processed
)

// BuildBlocks implements spec.md §4.4(a): computes block boundaries from
// every jump/cjump target, every instruction-after position for cjump/call,
// and every start/end marker; sorts, deduplicates, and emits blocks
// [start, end).
func BuildBlocks(sec *section.Section, nextInstrOffset func(offset int) int) []*Block {
	boundarySet := map[int]bool{0: true, len(sec.Content): true}
	for _, e := range sec.CodeFlow {
		switch e.Type {
		case section.CFStart, section.CFEnd:
			boundarySet[e.Offset] = true
		case section.CFJump, section.CFCJump, section.CFCall:
			boundarySet[e.Target] = true
			if e.Type == section.CFCJump || e.Type == section.CFCall {
				boundarySet[nextInstrOffset(e.Offset)] = true
			}
		case section.CFReturn:
			boundarySet[nextInstrOffset(e.Offset)] = true
		}
	}
	boundaries := lo.Keys(boundarySet)
	sort.Ints(boundaries)
	boundaries = lo.Uniq(boundaries)

	blocks := make([]*Block, 0, len(boundaries)-1)
	startOf := map[int]int{} // section offset -> block id
	for i := 0; i+1 < len(boundaries); i++ {
		b := &Block{ID: i, Start: boundaries[i], End: boundaries[i+1], SSAInfo: map[SingleVReg]*SSAInfo{}}
		blocks = append(blocks, b)
		startOf[b.Start] = b.ID
	}

	blockOf := func(offset int) int {
		// last block whose Start <= offset
		idx := sort.Search(len(blocks), func(i int) bool { return blocks[i].Start > offset }) - 1
		if idx < 0 {
			idx = 0
		}
		return idx
	}

	for _, e := range sec.CodeFlow {
		switch e.Type {
		case section.CFJump:
			id := blockOf(e.Offset)
			blocks[id].Nexts = append(blocks[id].Nexts, Edge{To: startOf[e.Target]})
			blocks[id].HaveEnd = true
		case section.CFCJump:
			id := blockOf(e.Offset)
			blocks[id].Nexts = append(blocks[id].Nexts, Edge{To: startOf[e.Target]})
			if next, ok := startOf[nextInstrOffset(e.Offset)]; ok {
				blocks[id].Nexts = append(blocks[id].Nexts, Edge{To: next})
			}
		case section.CFCall:
			id := blockOf(e.Offset)
			blocks[id].Nexts = append(blocks[id].Nexts, Edge{To: startOf[e.Target], IsCall: true})
			blocks[id].HaveCalls = true
			if next, ok := startOf[nextInstrOffset(e.Offset)]; ok {
				blocks[id].Nexts = append(blocks[id].Nexts, Edge{To: next})
			}
		case section.CFReturn:
			id := blockOf(e.Offset)
			blocks[id].HaveReturn = true
		case section.CFEnd:
			id := blockOf(e.Offset)
			blocks[id].HaveEnd = true
		}
	}
	// Fall-through edges: a block with no explicit terminator edge flows
	// into the next block in offset order.
	for i, b := range blocks {
		if !b.HaveEnd && !b.HaveReturn && i+1 < len(blocks) {
			hasExplicit := false
			for _, n := range b.Nexts {
				if !n.IsCall {
					hasExplicit = true
				}
			}
			if !hasExplicit {
				b.Nexts = append(b.Nexts, Edge{To: blocks[i+1].ID})
			}
		}
	}
	return blocks
}
