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

package wait

import (
	"sort"

	"github.com/clrx-go/gcnasm/internal/regalloc"
	"github.com/clrx-go/gcnasm/internal/section"
)

// Scheduler runs spec.md §4.5's wait-state scheduling over one or more
// sections, deriving and inserting wait instructions for delayed ops and
// merging them with any user-supplied wait at the same offset.
type Scheduler struct {
	// MaxQueueSize bounds each queue's ordered deque; queues not present
	// default to this size.
	MaxQueueSize map[int]int
	DefaultSize  int
}

// NewScheduler returns a scheduler with the given default per-queue size.
func NewScheduler(defaultSize int) *Scheduler {
	return &Scheduler{MaxQueueSize: map[int]int{}, DefaultSize: defaultSize}
}

func (s *Scheduler) sizeFor(queue int) int {
	if n, ok := s.MaxQueueSize[queue]; ok {
		return n
	}
	return s.DefaultSize
}

// Run schedules every section independently; sections have disjoint offset
// spaces so no cross-section join occurs, per spec.md §4.5's "per section"
// framing.
func (s *Scheduler) Run(sections []*section.Section) {
	for _, sec := range sections {
		s.runSection(sec)
	}
}

func (s *Scheduler) runSection(sec *section.Section) {
	blocks := regalloc.BuildBlocks(sec, func(offset int) int { return offset + 4 })
	if len(blocks) == 0 {
		return
	}

	cfgBlocks := make([]CFGBlock, len(blocks))
	predsOf := map[int][]int{}
	for _, b := range blocks {
		for _, e := range b.Nexts {
			predsOf[e.To] = append(predsOf[e.To], b.ID)
		}
	}
	for i, b := range blocks {
		cfgBlocks[i] = CFGBlock{ID: b.ID, Preds: predsOf[b.ID]}
	}

	queueIDs := map[int]bool{}
	opsByOffset := map[int][]section.DelayedOp{}
	for _, op := range sec.DelayedOps {
		queueIDs[op.Queue] = true
		opsByOffset[op.Offset] = append(opsByOffset[op.Offset], op)
	}
	usagesByOffset := map[int][]section.RegVarUsage{}
	for _, u := range sec.Usages {
		usagesByOffset[u.Offset] = append(usagesByOffset[u.Offset], u)
	}

	entry := BlockState{}
	for q := range queueIDs {
		entry[q] = NewQueueState(s.sizeFor(q))
	}

	RunJoinPass(cfgBlocks, func(id int) []int { return predsOf[id] }, entry, func(id int, in BlockState) BlockState {
		cur := CloneBlockState(in)
		b := blocks[id]
		var offsets []int
		for off := b.Start; off < b.End; off++ {
			if len(opsByOffset[off]) > 0 || len(usagesByOffset[off]) > 0 {
				offsets = append(offsets, off)
			}
		}
		sort.Ints(offsets)

		for _, off := range offsets {
			accessedByQueue := map[int][]QReg{}
			for _, u := range usagesByOffset[off] {
				for lane := u.RStart; lane <= u.REnd; lane++ {
					for q := range cur {
						accessedByQueue[q] = append(accessedByQueue[q], QReg{RegVar: u.RegVar, Lane: lane, Write: u.RWFlags&section.RWWrite != 0})
					}
				}
			}
			if len(accessedByQueue) > 0 {
				waits := map[int]int{}
				for q, st := range cur {
					if accessed, ok := accessedByQueue[q]; ok {
						waits[q] = st.RequiredWait(accessed)
					}
				}
				if len(waits) > 0 {
					sec.RecordWait(section.WaitInstr{Offset: off, Waits: waits})
				}
			}

			for _, op := range opsByOffset[off] {
				st, ok := cur[op.Queue]
				if !ok {
					st = NewQueueState(s.sizeFor(op.Queue))
					cur[op.Queue] = st
				}
				regs := map[QReg]bool{}
				for lane := op.RStart; lane <= op.REnd; lane++ {
					regs[QReg{RegVar: op.RegVar, Lane: lane, Write: op.RWFlags&section.RWWrite != 0}] = true
				}
				st.PushOrdered(regs, true)
			}
		}
		return cur
	})
}
