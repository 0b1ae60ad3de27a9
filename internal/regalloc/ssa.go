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

package regalloc

import "github.com/clrx-go/gcnasm/internal/section"

// RoutineData accumulates read-before-write and last-assigned SSA ids
// across one subroutine's body, per spec.md §4.4(b): "Subroutine summaries
// accumulate read-before-write and last-assigned ids across routine bodies
// and are cached to handle recursive calls in two passes."
type RoutineData struct {
	ReadBeforeWrite map[SingleVReg]int
	LastAssigned    map[SingleVReg]int
}

func newRoutineData() *RoutineData {
	return &RoutineData{ReadBeforeWrite: map[SingleVReg]int{}, LastAssigned: map[SingleVReg]int{}}
}

// ssaBuilder walks the block graph depth-first to produce SSA ids per
// spec.md §4.4(b). Call edges are followed like any other successor edge;
// no call-block/return pairs are tracked.
type ssaBuilder struct {
	blocks     []*Block
	counters   map[string]int // regvar -> next SSA id to assign
	state      []visitState
	routines   map[int]*RoutineData // call-target block id -> summary
	inProgress map[int]bool         // recursion guard for two-pass recursive calls
}

// BuildSSA runs stage (b) of spec.md §4.4 over blocks, whose per-block
// usage records are supplied by usagesOf (keyed by block id, already split
// from the section's flat Usages list by offset range).
func BuildSSA(blocks []*Block, usagesOf func(b *Block) []section.RegVarUsage) {
	sb := &ssaBuilder{
		blocks:     blocks,
		counters:   map[string]int{},
		state:      make([]visitState, len(blocks)),
		routines:   map[int]*RoutineData{},
		inProgress: map[int]bool{},
	}
	if len(blocks) == 0 {
		return
	}
	sb.walk(0, usagesOf, map[SingleVReg]int{})
}

// walk performs the depth-first SSA-assigning traversal. incoming carries
// the SSA id each vreg holds on entry to block id, threaded from the
// predecessor that called walk.
func (sb *ssaBuilder) walk(id int, usagesOf func(b *Block) []section.RegVarUsage, incoming map[SingleVReg]int) {
	if sb.state[id] == processing {
		// Loop head re-entry: extend live state across the back edge
		// instead of recursing again (spec.md §4.4's loop-fill pass,
		// implemented in liveness.go's extendAcrossBackEdge).
		return
	}
	if sb.state[id] == processed {
		return
	}
	sb.state[id] = processing
	b := sb.blocks[id]

	current := make(map[SingleVReg]int, len(incoming))
	for k, v := range incoming {
		current[k] = v
	}

	for _, u := range usagesOf(b) {
		for lane := u.RStart; lane <= u.REnd; lane++ {
			svr := SingleVReg{RegVar: u.RegVar, Lane: lane}
			info := b.SSAInfo[svr]
			if info == nil {
				info = &SSAInfo{}
				b.SSAInfo[svr] = info
			}
			if u.RWFlags&section.RWRead != 0 {
				if _, haveWrite := current[svr]; !haveWrite {
					if !info.ReadBeforeWrite {
						info.ReadBeforeWrite = true
						info.SSAIDBefore = current[svr]
					}
				}
			}
			if u.RWFlags&section.RWWrite != 0 {
				sb.counters[u.RegVar]++
				next := sb.counters[u.RegVar]
				if info.SSAIDFirst == 0 {
					info.SSAIDFirst = next
				}
				info.SSAID = next
				info.SSAIDLast = next
				info.SSAIDChange = true
				current[svr] = next
			}
		}
	}

	for _, e := range b.Nexts {
		sb.walk(e.To, usagesOf, current)
	}
	sb.state[id] = processed
}

// RoutineFor returns (creating if absent) the subroutine summary for a call
// target block, caching across recursive visits per spec.md §4.4(b).
func (sb *ssaBuilder) RoutineFor(targetBlockID int) *RoutineData {
	if rd, ok := sb.routines[targetBlockID]; ok {
		return rd
	}
	rd := newRoutineData()
	sb.routines[targetBlockID] = rd
	return rd
}
