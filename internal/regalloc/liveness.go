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

import "sort"

// Interval is a disjoint, half-open live range [Start, End) measured in the
// monotonic "live-time" counter from spec.md §4.4(d): "a monotonic
// live-time counter that advances only through addressable sections."
type Interval struct {
	Start, End int
}

// LiveSet is the disjoint-interval set for one vreg lane (SingleVReg); the
// intervals of all of that lane's SSA ids are merged into the one set.
type LiveSet struct {
	Intervals []Interval
}

// Add inserts [start, end) into the set, merging with any overlapping or
// adjacent interval.
func (l *LiveSet) Add(start, end int) {
	l.Intervals = append(l.Intervals, Interval{start, end})
	sort.Slice(l.Intervals, func(i, j int) bool { return l.Intervals[i].Start < l.Intervals[j].Start })
	merged := l.Intervals[:0]
	for _, iv := range l.Intervals {
		if n := len(merged); n > 0 && iv.Start <= merged[n-1].End {
			if iv.End > merged[n-1].End {
				merged[n-1].End = iv.End
			}
		} else {
			merged = append(merged, iv)
		}
	}
	l.Intervals = merged
}

// Contains reports whether t falls inside any recorded interval.
func (l *LiveSet) Contains(t int) bool {
	for _, iv := range l.Intervals {
		if t >= iv.Start && t < iv.End {
			return true
		}
	}
	return false
}

// RoutineDataLv mirrors spec.md §4.4(d)'s "precomputed RoutineDataLv
// containing read-before-write ids and per-vreg last-access block
// positions", used to fold callee liveness into caller blocks without
// reprocessing the callee for every call site.
type RoutineDataLv struct {
	ReadBeforeWrite map[SingleVReg]bool
	LastAccess      map[SingleVReg]int // block id of last access inside the routine
}

// livenessCtx carries the live-time counter and each block's entry and exit
// live-times (firstPoint/secondPoint). Repeated traversals of a block are
// cut short by visited alone; firstPoint/secondPoint are not consulted for
// that.
type livenessCtx struct {
	clock        int
	firstPoint   map[int]int // block id -> live-time at block entry
	secondPoint  map[int]int // block id -> live-time at block exit
	live         map[SingleVReg]*LiveSet
	visited      map[int]visitState
}

// ComputeLiveness implements stage (d) of spec.md §4.4 over an addressable
// section's blocks. isAddressable gates whether a block's bytes advance the
// live-time clock (non-addressable regions, e.g. config blobs interleaved
// in a kernel, do not).
func ComputeLiveness(blocks []*Block, isAddressable func(b *Block) bool) map[SingleVReg]*LiveSet {
	ctx := &livenessCtx{
		firstPoint:  map[int]int{},
		secondPoint: map[int]int{},
		live:        map[SingleVReg]*LiveSet{},
		visited:     map[int]visitState{},
	}
	if len(blocks) == 0 {
		return ctx.live
	}
	ctx.walk(blocks, 0, isAddressable)
	return ctx.live
}

func (c *livenessCtx) liveSet(svr SingleVReg) *LiveSet {
	ls, ok := c.live[svr]
	if !ok {
		ls = &LiveSet{}
		c.live[svr] = ls
	}
	return ls
}

func (c *livenessCtx) walk(blocks []*Block, id int, isAddressable func(b *Block) bool) {
	if c.visited[id] == processing {
		// Loop head re-entry: extend intervals across the back edge
		// instead of recursing, per spec.md §4.4's dedicated loop-fill
		// pass, grounded on y1yang0-falcon's loop.go back-edge handling.
		extendAcrossBackEdge(c, blocks[id])
		return
	}
	if c.visited[id] == processed {
		return
	}
	c.visited[id] = processing
	b := blocks[id]

	c.firstPoint[id] = c.clock
	width := b.End - b.Start
	if isAddressable(b) {
		c.clock += width
	}
	c.secondPoint[id] = c.clock

	for svr, info := range b.SSAInfo {
		ls := c.liveSet(svr)
		start := c.firstPoint[id]
		end := c.secondPoint[id]
		if info.ReadBeforeWrite || info.SSAIDChange {
			ls.Add(start, end+1)
		}
	}

	for _, e := range b.Nexts {
		c.walk(blocks, e.To, isAddressable)
	}
	c.visited[id] = processed
}

// extendAcrossBackEdge implements the loop-fill pass named in spec.md
// §4.4's "state machine of blocks" paragraph: a block re-reached while
// still processing denotes a loop head, so every vreg live at the header is
// extended through the current clock position to cover the back edge.
func extendAcrossBackEdge(c *livenessCtx, header *Block) {
	headerStart, ok := c.firstPoint[header.ID]
	if !ok {
		return
	}
	for svr := range header.SSAInfo {
		c.liveSet(svr).Add(headerStart, c.clock+1)
	}
}
