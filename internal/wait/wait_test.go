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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrx-go/gcnasm/internal/section"
)

func TestQueueStatePushAndFind(t *testing.T) {
	q := NewQueueState(8)
	r := QReg{RegVar: "v0", Lane: 0}
	q.PushOrdered(map[QReg]bool{r: true}, true)
	assert.Equal(t, 1, q.FindMinQueueSizeForReg(r))

	other := QReg{RegVar: "v1", Lane: 0}
	q.PushOrdered(map[QReg]bool{other: true}, true)
	assert.Equal(t, 2, q.FindMinQueueSizeForReg(r))
	assert.Equal(t, 1, q.FindMinQueueSizeForReg(other))
}

func TestQueueStateMergesOldestWhenOverMaxSize(t *testing.T) {
	q := NewQueueState(2)
	a := QReg{RegVar: "v0", Lane: 0}
	b := QReg{RegVar: "v1", Lane: 0}
	c := QReg{RegVar: "v2", Lane: 0}
	q.PushOrdered(map[QReg]bool{a: true}, true)
	q.PushOrdered(map[QReg]bool{b: true}, true)
	q.PushOrdered(map[QReg]bool{c: true}, true)
	require.Len(t, q.Ordered, 2)
	assert.True(t, q.Ordered[0].Regs[a], "merged oldest entry must retain a's registration")
	assert.True(t, q.Ordered[0].Regs[b])
}

func TestQueueStateFlushToSize(t *testing.T) {
	q := NewQueueState(8)
	a := QReg{RegVar: "v0", Lane: 0}
	b := QReg{RegVar: "v1", Lane: 0}
	q.PushOrdered(map[QReg]bool{a: true}, true)
	q.PushOrdered(map[QReg]bool{b: true}, true)
	q.FlushToSize(1)
	require.Len(t, q.Ordered, 1)
	_, stillThere := q.RegPlaces[a]
	assert.False(t, stillThere)
	_, bThere := q.RegPlaces[b]
	assert.True(t, bThere)
}

func TestQueueStateRequestShrinkOnlyTightens(t *testing.T) {
	q := NewQueueState(8)
	q.RequestShrink(4)
	assert.Equal(t, 4, q.RequestedQueueSize)
	q.RequestShrink(6) // looser than current request: ignored
	assert.Equal(t, 4, q.RequestedQueueSize)
	q.RequestShrink(2) // tighter: applied
	assert.Equal(t, 2, q.RequestedQueueSize)
}

func TestRequiredWaitIsElementwiseMinimum(t *testing.T) {
	q := NewQueueState(8)
	a := QReg{RegVar: "v0", Lane: 0}
	b := QReg{RegVar: "v1", Lane: 0}
	q.PushOrdered(map[QReg]bool{a: true}, true)
	q.PushOrdered(map[QReg]bool{b: true}, true)
	assert.Equal(t, 1, q.RequiredWait([]QReg{a, b}))
}

func TestDiscoverJoinPlanFlagsLoopHeader(t *testing.T) {
	blocks := []CFGBlock{{ID: 0}, {ID: 1, Preds: []int{0, 1}}}
	plan := DiscoverJoinPlan(blocks)
	assert.True(t, plan.LoopHeader[1])
}

func TestJoinIncomingTakesLongerQueue(t *testing.T) {
	short := NewQueueState(8)
	long := NewQueueState(8)
	long.PushOrdered(map[QReg]bool{{RegVar: "v0"}: true}, true)

	merged, changed := JoinIncoming(BlockState{}, []BlockState{{0: short}, {0: long}})
	assert.True(t, changed)
	require.Contains(t, merged, 0)
	assert.Len(t, merged[0].Ordered, 1)
}

func TestSchedulerRunRecordsWaitInstruction(t *testing.T) {
	sec := section.New("text", section.TypeCode, section.FlagAddressable)
	sec.Content = make([]byte, 8)
	sec.RecordDelayedOp(section.DelayedOp{Offset: 0, Queue: 0, RegVar: "v0", RStart: 0, REnd: 0, RWFlags: section.RWWrite})
	sec.RecordUsage(section.RegVarUsage{Offset: 4, RegVar: "v0", RStart: 0, REnd: 0, RWFlags: section.RWRead})

	s := NewScheduler(16)
	s.Run([]*section.Section{sec})

	require.Len(t, sec.WaitInstrs, 1)
	assert.Equal(t, 4, sec.WaitInstrs[0].Offset)
}
