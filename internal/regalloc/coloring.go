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

// Coloring maps each graph node onto a physical register number.
type Coloring map[SingleVReg]int

// colorState tracks the working data for one saturation-degree-ordering
// coloring pass over a Graph.
type colorState struct {
	g         *Graph
	colored   Coloring
	forbidden map[SingleVReg]map[int]bool
}

// ColorGraph implements stage (f) of spec.md §4.4: "Color the interference
// graph using saturation-degree ordering, falling back to largest-degree
// ordering to break ties; physical registers pre-assigned by `.regvar`
// clauses are colored first and their color excluded from every
// interfering node's candidate set." precolored supplies any node whose
// physical register is fixed in advance (explicit `.regvar` binding);
// maxColor bounds the register file size the allocator may use.
func ColorGraph(g *Graph, precolored map[SingleVReg]int, maxColor int) (Coloring, bool) {
	cs := &colorState{g: g, colored: Coloring{}, forbidden: map[SingleVReg]map[int]bool{}}
	for _, n := range g.Nodes {
		cs.forbidden[n] = map[int]bool{}
	}

	for n, c := range precolored {
		n = g.root(n)
		cs.assign(n, c)
	}

	remaining := make([]SingleVReg, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		if _, done := cs.colored[n]; !done {
			remaining = append(remaining, n)
		}
	}

	for len(remaining) > 0 {
		sort.Slice(remaining, func(i, j int) bool {
			si, sj := len(cs.forbidden[remaining[i]]), len(cs.forbidden[remaining[j]])
			if si != sj {
				return si > sj // saturation-degree ordering: most-constrained first
			}
			di, dj := len(g.Adjacency[remaining[i]]), len(g.Adjacency[remaining[j]])
			if di != dj {
				return di > dj // largest-degree ordering tiebreak
			}
			if remaining[i].RegVar != remaining[j].RegVar {
				return remaining[i].RegVar < remaining[j].RegVar
			}
			return remaining[i].Lane < remaining[j].Lane
		})
		n := remaining[0]
		remaining = remaining[1:]

		c := firstFree(cs.forbidden[n], maxColor)
		if c < 0 {
			return cs.colored, false
		}
		cs.assign(n, c)
	}

	return cs.colored, true
}

func (cs *colorState) assign(n SingleVReg, c int) {
	cs.colored[n] = c
	for peer := range cs.g.Adjacency[n] {
		if cs.forbidden[peer] == nil {
			cs.forbidden[peer] = map[int]bool{}
		}
		cs.forbidden[peer][c] = true
	}
}

func firstFree(forbidden map[int]bool, maxColor int) int {
	for c := 0; c < maxColor; c++ {
		if !forbidden[c] {
			return c
		}
	}
	return -1
}
