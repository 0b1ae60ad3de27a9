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

// BlockState is the set of per-queue states live at one CFG block boundary.
type BlockState map[int]*QueueState // queue id -> state

// CloneBlockState deep-copies a BlockState so predecessor states are never
// mutated in place by a join.
func CloneBlockState(bs BlockState) BlockState {
	out := make(BlockState, len(bs))
	for q, st := range bs {
		clone := NewQueueState(st.MaxSize)
		clone.Ordered = append([]*Entry(nil), st.Ordered...)
		clone.Random = append([]*Entry(nil), st.Random...)
		for r, p := range st.RegPlaces {
			clone.RegPlaces[r] = p
		}
		clone.RequestedQueueSize = st.RequestedQueueSize
		clone.FirstFlush = st.FirstFlush
		out[q] = clone
	}
	return out
}

// CFGBlock is the minimal shape join.go needs from a control-flow block,
// satisfied by regalloc.Block via an adapter in the driver package so
// internal/wait does not need to import internal/regalloc.
type CFGBlock struct {
	ID    int
	Preds []int
}

// JoinPlan implements the "first a visit counting and loop-point discovery
// pass" half of spec.md §4.5's two-pass CFG join: it counts how many times
// each block is reachable as a predecessor and flags loop headers (blocks
// that are their own ancestor through some path, detected here simply as
// blocks with a predecessor of equal or greater id, which is how this
// system's jump/cjump back-edges surface in block id order).
type JoinPlan struct {
	VisitCount map[int]int
	LoopHeader map[int]bool
}

// DiscoverJoinPlan runs the first pass over blocks.
func DiscoverJoinPlan(blocks []CFGBlock) *JoinPlan {
	plan := &JoinPlan{VisitCount: map[int]int{}, LoopHeader: map[int]bool{}}
	for _, b := range blocks {
		for _, p := range b.Preds {
			plan.VisitCount[b.ID]++
			if p >= b.ID {
				plan.LoopHeader[b.ID] = true
			}
		}
	}
	return plan
}

// mergeQueueState merges b into a in place, per spec.md §4.5: "merges each
// block's incoming queue state (per predecessor, take per-queue longest
// queue and highest requestedQueueSize, merging regPlaces)."
func mergeQueueState(a, b *QueueState) bool {
	changed := false
	if len(b.Ordered) > len(a.Ordered) {
		a.Ordered = append([]*Entry(nil), b.Ordered...)
		changed = true
	}
	if b.RequestedQueueSize > a.RequestedQueueSize {
		a.RequestedQueueSize = b.RequestedQueueSize
		changed = true
	}
	for r, pos := range b.RegPlaces {
		if cur, ok := a.RegPlaces[r]; !ok || pos > cur {
			a.RegPlaces[r] = pos
			changed = true
		}
	}
	return changed
}

// JoinIncoming merges every predecessor's BlockState for a block, returning
// the merged state and whether it differs from prior (used to decide
// whether to re-schedule the block in the second pass).
func JoinIncoming(prior BlockState, incoming []BlockState) (BlockState, bool) {
	merged := CloneBlockState(prior)
	changed := false
	for _, in := range incoming {
		for q, st := range in {
			cur, ok := merged[q]
			if !ok {
				merged[q] = CloneBlockState(BlockState{q: st})[q]
				changed = true
				continue
			}
			if mergeQueueState(cur, st) {
				changed = true
			}
		}
	}
	return merged, changed
}

// RunJoinPass implements the second "join pass" over blocks in id order,
// re-scheduling (invoking schedule) only when a block's incoming state
// changed from what was previously recorded, per spec.md §4.5. predsOf and
// outgoingOf adapt the caller's CFG representation; schedule processes one
// block given its joined entry state and returns its exit state.
func RunJoinPass(blocks []CFGBlock, predsOf func(id int) []int, entry BlockState, schedule func(id int, in BlockState) BlockState) map[int]BlockState {
	outgoing := map[int]BlockState{}
	incoming := map[int]BlockState{}
	for _, b := range blocks {
		incoming[b.ID] = BlockState{}
	}
	if len(blocks) > 0 {
		incoming[blocks[0].ID] = entry
	}

	worklist := make([]int, len(blocks))
	for i, b := range blocks {
		worklist[i] = b.ID
	}

	visited := map[int]bool{}
	for len(worklist) > 0 {
		id := worklist[0]
		worklist = worklist[1:]

		preds := predsOf(id)
		var predStates []BlockState
		for _, p := range preds {
			if out, ok := outgoing[p]; ok {
				predStates = append(predStates, out)
			}
		}
		joined, changed := JoinIncoming(incoming[id], predStates)
		if !visited[id] {
			changed = true
			visited[id] = true
		}
		incoming[id] = joined
		if !changed {
			continue
		}
		outgoing[id] = schedule(id, joined)
	}
	return outgoing
}
