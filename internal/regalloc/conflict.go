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

// ssaNode identifies one (vreg, ssa id) pair for union-find purposes.
type ssaNode struct {
	Reg string
	ID  int
}

// conflictUF is a union-find over ssaNode used to minimize the replacement
// map built when merging paths assign differing incoming SSA ids at the
// same read point, per spec.md §4.4(c): "A union-find-style minimization
// selects a single representative id per equivalence class using a
// directed 'smaller wins' relation."
type conflictUF struct {
	parent map[ssaNode]ssaNode
}

func newConflictUF() *conflictUF {
	return &conflictUF{parent: map[ssaNode]ssaNode{}}
}

func (u *conflictUF) find(n ssaNode) ssaNode {
	p, ok := u.parent[n]
	if !ok {
		return n
	}
	if p == n {
		return n
	}
	root := u.find(p)
	u.parent[n] = root
	return root
}

// union merges a and b, always keeping the node with the smaller ID as
// representative ("smaller wins"), per spec.md §4.4(c).
func (u *conflictUF) union(a, b ssaNode) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra.ID <= rb.ID {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// ResolveSSAConflicts implements stage (c) of spec.md §4.4. conflicts lists
// pairs of (vreg, ssaIdA) / (vreg, ssaIdB) that reached the same read point
// via different paths; the returned map rewrites every id to its chosen
// representative.
func ResolveSSAConflicts(blocks []*Block, conflicts [][2]ssaNode) map[ssaNode]ssaNode {
	uf := newConflictUF()
	for _, c := range conflicts {
		uf.union(c[0], c[1])
	}
	repl := map[ssaNode]ssaNode{}
	for _, c := range conflicts {
		repl[c[0]] = uf.find(c[0])
		repl[c[1]] = uf.find(c[1])
	}
	applySSAReplaces(blocks, repl)
	return repl
}

// DetectJoinConflicts finds, for every block with more than one
// predecessor, the vregs whose incoming SSAIDLast differs across
// predecessors — spec.md §4.4(c)'s "after merging paths, differing
// incoming ssa ids at the same read point" — and returns them as
// ResolveSSAConflicts input pairs.
func DetectJoinConflicts(blocks []*Block) [][2]ssaNode {
	preds := make(map[int][]int, len(blocks))
	for _, b := range blocks {
		for _, e := range b.Nexts {
			preds[e.To] = append(preds[e.To], b.ID)
		}
	}

	var conflicts [][2]ssaNode
	for _, b := range blocks {
		ps := preds[b.ID]
		if len(ps) < 2 {
			continue
		}
		seen := map[string]int{}
		for _, pid := range ps {
			for svr, info := range blocks[pid].SSAInfo {
				if info.SSAIDLast == 0 {
					continue
				}
				if first, ok := seen[svr.RegVar]; ok {
					if first != info.SSAIDLast {
						conflicts = append(conflicts, [2]ssaNode{
							{Reg: svr.RegVar, ID: first},
							{Reg: svr.RegVar, ID: info.SSAIDLast},
						})
					}
					continue
				}
				seen[svr.RegVar] = info.SSAIDLast
			}
		}
	}
	return conflicts
}

// applySSAReplaces rewrites every block's ssaInfoMap ids through repl. It is
// idempotent: re-applying it with the same map is a no-op, which is the
// property spec.md §8 ("SSA acyclicity after resolution") requires.
func applySSAReplaces(blocks []*Block, repl map[ssaNode]ssaNode) {
	rewrite := func(reg string, id int) int {
		if id == 0 {
			return 0
		}
		n := ssaNode{Reg: reg, ID: id}
		if r, ok := repl[n]; ok {
			return r.ID
		}
		return id
	}
	for _, b := range blocks {
		for svr, info := range b.SSAInfo {
			if info.ReadBeforeWrite {
				info.SSAIDBefore = rewrite(svr.RegVar, info.SSAIDBefore)
			}
			info.SSAIDFirst = rewrite(svr.RegVar, info.SSAIDFirst)
			info.SSAID = rewrite(svr.RegVar, info.SSAID)
			info.SSAIDLast = rewrite(svr.RegVar, info.SSAIDLast)
		}
	}
}
