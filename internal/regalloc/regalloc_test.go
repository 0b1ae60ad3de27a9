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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrx-go/gcnasm/internal/section"
)

func straightLineBlocks() *section.Section {
	sec := section.New("text", section.TypeCode, section.FlagAddressable)
	sec.Content = make([]byte, 12)
	sec.RecordUsage(section.RegVarUsage{Offset: 0, RegVar: "v0", RStart: 0, REnd: 0, RWFlags: section.RWWrite})
	sec.RecordUsage(section.RegVarUsage{Offset: 4, RegVar: "v0", RStart: 0, REnd: 0, RWFlags: section.RWRead})
	sec.RecordUsage(section.RegVarUsage{Offset: 4, RegVar: "v1", RStart: 0, REnd: 0, RWFlags: section.RWWrite})
	sec.RecordUsage(section.RegVarUsage{Offset: 8, RegVar: "v1", RStart: 0, REnd: 0, RWFlags: section.RWRead})
	return sec
}

func nextInstr4(offset int) int { return offset + 4 }

func TestBuildBlocksStraightLine(t *testing.T) {
	sec := straightLineBlocks()
	blocks := BuildBlocks(sec, nextInstr4)
	require.Len(t, blocks, 1)
	assert.Equal(t, 0, blocks[0].Start)
	assert.Equal(t, 12, blocks[0].End)
}

func TestBuildBlocksSplitsOnJumpTarget(t *testing.T) {
	sec := straightLineBlocks()
	sec.RecordCodeFlow(section.CodeFlowEntry{Type: section.CFJump, Offset: 0, Target: 8})
	blocks := BuildBlocks(sec, nextInstr4)
	require.Len(t, blocks, 2)
	assert.Equal(t, 0, blocks[0].Start)
	assert.Equal(t, 8, blocks[0].End)
	assert.True(t, blocks[0].HaveEnd)
	require.Len(t, blocks[0].Nexts, 1)
	assert.Equal(t, blocks[1].ID, blocks[0].Nexts[0].To)
}

func usagesOfSection(sec *section.Section, blocks []*Block) func(b *Block) []section.RegVarUsage {
	return func(b *Block) []section.RegVarUsage {
		var out []section.RegVarUsage
		for _, u := range sec.Usages {
			if u.Offset >= b.Start && u.Offset < b.End {
				out = append(out, u)
			}
		}
		return out
	}
}

func TestBuildSSAAssignsIncreasingIds(t *testing.T) {
	sec := straightLineBlocks()
	blocks := BuildBlocks(sec, nextInstr4)
	BuildSSA(blocks, usagesOfSection(sec, blocks))

	v0 := SingleVReg{RegVar: "v0", Lane: 0}
	v1 := SingleVReg{RegVar: "v1", Lane: 0}
	require.NotNil(t, blocks[0].SSAInfo[v0])
	assert.Equal(t, 1, blocks[0].SSAInfo[v0].SSAID)
	require.NotNil(t, blocks[0].SSAInfo[v1])
	assert.Equal(t, 1, blocks[0].SSAInfo[v1].SSAID)
}

func TestApplySSAReplacesIsIdempotent(t *testing.T) {
	sec := straightLineBlocks()
	blocks := BuildBlocks(sec, nextInstr4)
	BuildSSA(blocks, usagesOfSection(sec, blocks))

	conflicts := [][2]ssaNode{{{Reg: "v0", ID: 2}, {Reg: "v0", ID: 1}}}
	repl := ResolveSSAConflicts(blocks, conflicts)

	snapshot := map[SingleVReg]int{}
	for svr, info := range blocks[0].SSAInfo {
		snapshot[svr] = info.SSAID
	}
	applySSAReplaces(blocks, repl)
	for svr, info := range blocks[0].SSAInfo {
		assert.Equal(t, snapshot[svr], info.SSAID, "re-applying the replacement map must be a no-op")
	}
}

func TestConflictUFSmallerWins(t *testing.T) {
	uf := newConflictUF()
	a := ssaNode{Reg: "v0", ID: 5}
	b := ssaNode{Reg: "v0", ID: 2}
	uf.union(a, b)
	assert.Equal(t, b, uf.find(a))
	assert.Equal(t, b, uf.find(b))
}

func TestComputeLivenessStraightLine(t *testing.T) {
	sec := straightLineBlocks()
	blocks := BuildBlocks(sec, nextInstr4)
	BuildSSA(blocks, usagesOfSection(sec, blocks))

	live := ComputeLiveness(blocks, func(b *Block) bool { return true })
	v0 := SingleVReg{RegVar: "v0", Lane: 0}
	require.Contains(t, live, v0)
	assert.NotEmpty(t, live[v0].Intervals)
}

func TestBuildInterferenceGraphOverlapEdge(t *testing.T) {
	live := map[SingleVReg]*LiveSet{
		{RegVar: "v0", Lane: 0}: {Intervals: []Interval{{0, 10}}},
		{RegVar: "v1", Lane: 0}: {Intervals: []Interval{{5, 15}}},
		{RegVar: "v2", Lane: 0}: {Intervals: []Interval{{20, 30}}},
	}
	g := BuildInterferenceGraph(live, nil, nil, func(string) int { return 1 })
	assert.True(t, g.Adjacency[SingleVReg{RegVar: "v0", Lane: 0}][SingleVReg{RegVar: "v1", Lane: 0}])
	assert.False(t, g.Adjacency[SingleVReg{RegVar: "v0", Lane: 0}][SingleVReg{RegVar: "v2", Lane: 0}])
}

func TestBuildInterferenceGraphLinearDepForcesEdge(t *testing.T) {
	live := map[SingleVReg]*LiveSet{
		{RegVar: "v0", Lane: 0}: {Intervals: []Interval{{0, 5}}},
		{RegVar: "v1", Lane: 0}: {Intervals: []Interval{{100, 105}}},
	}
	deps := []section.LinearDep{{A: "v0", B: "v1"}}
	g := BuildInterferenceGraph(live, deps, nil, func(string) int { return 1 })
	assert.True(t, g.Adjacency[SingleVReg{RegVar: "v0", Lane: 0}][SingleVReg{RegVar: "v1", Lane: 0}])
}

func TestBuildInterferenceGraphCoalescesEqualTo(t *testing.T) {
	live := map[SingleVReg]*LiveSet{
		{RegVar: "v0", Lane: 0}: {Intervals: []Interval{{0, 5}}},
		{RegVar: "v1", Lane: 0}: {Intervals: []Interval{{0, 5}}},
		{RegVar: "v2", Lane: 0}: {Intervals: []Interval{{0, 5}}},
	}
	eqs := []section.EqualTo{{A: "v0", B: "v1"}}
	g := BuildInterferenceGraph(live, nil, eqs, func(string) int { return 1 })
	assert.Equal(t, SingleVReg{RegVar: "v0", Lane: 0}, g.root(SingleVReg{RegVar: "v1", Lane: 0}))
}

func TestColorGraphAssignsDistinctColorsToOverlapping(t *testing.T) {
	live := map[SingleVReg]*LiveSet{
		{RegVar: "v0", Lane: 0}: {Intervals: []Interval{{0, 10}}},
		{RegVar: "v1", Lane: 0}: {Intervals: []Interval{{5, 15}}},
	}
	g := BuildInterferenceGraph(live, nil, nil, func(string) int { return 1 })
	coloring, ok := ColorGraph(g, nil, 4)
	require.True(t, ok)
	assert.NotEqual(t, coloring[SingleVReg{RegVar: "v0", Lane: 0}], coloring[SingleVReg{RegVar: "v1", Lane: 0}])
}

func TestColorGraphRespectsPrecoloring(t *testing.T) {
	live := map[SingleVReg]*LiveSet{
		{RegVar: "v0", Lane: 0}: {Intervals: []Interval{{0, 10}}},
		{RegVar: "v1", Lane: 0}: {Intervals: []Interval{{5, 15}}},
	}
	g := BuildInterferenceGraph(live, nil, nil, func(string) int { return 1 })
	pre := map[SingleVReg]int{{RegVar: "v0", Lane: 0}: 2}
	coloring, ok := ColorGraph(g, pre, 4)
	require.True(t, ok)
	assert.Equal(t, 2, coloring[SingleVReg{RegVar: "v0", Lane: 0}])
	assert.NotEqual(t, 2, coloring[SingleVReg{RegVar: "v1", Lane: 0}])
}

func TestDetectJoinConflictsFindsDivergingPredecessors(t *testing.T) {
	v0 := SingleVReg{RegVar: "v0", Lane: 0}
	b0 := &Block{ID: 0, Nexts: []Edge{{To: 2}}, SSAInfo: map[SingleVReg]*SSAInfo{v0: {SSAIDLast: 1}}}
	b1 := &Block{ID: 1, Nexts: []Edge{{To: 2}}, SSAInfo: map[SingleVReg]*SSAInfo{v0: {SSAIDLast: 2}}}
	b2 := &Block{ID: 2, SSAInfo: map[SingleVReg]*SSAInfo{}}
	blocks := []*Block{b0, b1, b2}

	conflicts := DetectJoinConflicts(blocks)
	require.Len(t, conflicts, 1)
	got := map[ssaNode]bool{conflicts[0][0]: true, conflicts[0][1]: true}
	assert.True(t, got[ssaNode{Reg: "v0", ID: 1}])
	assert.True(t, got[ssaNode{Reg: "v0", ID: 2}])
}

func TestDetectJoinConflictsIgnoresAgreeingPredecessors(t *testing.T) {
	v0 := SingleVReg{RegVar: "v0", Lane: 0}
	b0 := &Block{ID: 0, Nexts: []Edge{{To: 2}}, SSAInfo: map[SingleVReg]*SSAInfo{v0: {SSAIDLast: 3}}}
	b1 := &Block{ID: 1, Nexts: []Edge{{To: 2}}, SSAInfo: map[SingleVReg]*SSAInfo{v0: {SSAIDLast: 3}}}
	b2 := &Block{ID: 2, SSAInfo: map[SingleVReg]*SSAInfo{}}
	blocks := []*Block{b0, b1, b2}

	assert.Empty(t, DetectJoinConflicts(blocks))
}

func TestColorGraphFailsWhenRegisterFileTooSmall(t *testing.T) {
	live := map[SingleVReg]*LiveSet{
		{RegVar: "v0", Lane: 0}: {Intervals: []Interval{{0, 10}}},
		{RegVar: "v1", Lane: 0}: {Intervals: []Interval{{5, 15}}},
	}
	g := BuildInterferenceGraph(live, nil, nil, func(string) int { return 1 })
	_, ok := ColorGraph(g, nil, 1)
	assert.False(t, ok)
}
