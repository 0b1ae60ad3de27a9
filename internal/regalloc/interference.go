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
	"sort"

	"github.com/samber/lo"

	"github.com/clrx-go/gcnasm/internal/section"
)

// Graph is an undirected interference graph over SingleVReg nodes, per
// spec.md §4.4(e): "Sweep the liveness intervals to add an edge between any
// two vregs simultaneously live; linear dependencies force adjacency
// regardless of overlap, and equal-to pairs are coalesced into one node
// before coloring."
type Graph struct {
	Nodes     []SingleVReg
	Adjacency map[SingleVReg]map[SingleVReg]bool
	// Coalesced maps an eliminated node onto the representative node it was
	// merged into via an EqualTo pair.
	Coalesced map[SingleVReg]SingleVReg
}

func newGraph() *Graph {
	return &Graph{Adjacency: map[SingleVReg]map[SingleVReg]bool{}, Coalesced: map[SingleVReg]SingleVReg{}}
}

func (g *Graph) addNode(n SingleVReg) {
	if _, ok := g.Adjacency[n]; !ok {
		g.Adjacency[n] = map[SingleVReg]bool{}
		g.Nodes = append(g.Nodes, n)
	}
}

func (g *Graph) addEdge(a, b SingleVReg) {
	if a == b {
		return
	}
	g.addNode(a)
	g.addNode(b)
	g.Adjacency[a][b] = true
	g.Adjacency[b][a] = true
}

// BuildInterferenceGraph implements stage (e) of spec.md §4.4. live is the
// per-vreg disjoint-interval set produced by ComputeLiveness; linearDeps and
// equalTos come from the section's recorded side tables, expanded across
// lanes by laneCountOf.
func BuildInterferenceGraph(live map[SingleVReg]*LiveSet, linearDeps []section.LinearDep, equalTos []section.EqualTo, laneCountOf func(regvar string) int) *Graph {
	g := newGraph()
	for n := range live {
		g.addNode(n)
	}

	// Overlap sweep: two vregs interfere if any pair of their intervals
	// overlaps. Sort nodes for determinism.
	nodes := append([]SingleVReg(nil), g.Nodes...)
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].RegVar != nodes[j].RegVar {
			return nodes[i].RegVar < nodes[j].RegVar
		}
		return nodes[i].Lane < nodes[j].Lane
	})
	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			if intervalsOverlap(live[nodes[i]], live[nodes[j]]) {
				g.addEdge(nodes[i], nodes[j])
			}
		}
	}

	// Linear dependencies force adjacency lane-by-lane regardless of
	// liveness overlap, per spec.md §4.4(e).
	for _, ld := range linearDeps {
		lanes := lo.Max([]int{laneCountOf(ld.A), laneCountOf(ld.B)})
		for lane := 0; lane < lanes; lane++ {
			g.addEdge(SingleVReg{RegVar: ld.A, Lane: lane}, SingleVReg{RegVar: ld.B, Lane: lane})
		}
	}

	// Equal-to coalescing merges b into a for every lane, per spec.md
	// §4.4(e). Coalescing runs after interference edges are recorded so the
	// merged node inherits the union of both sides' adjacency.
	for _, eq := range equalTos {
		lanes := lo.Max([]int{laneCountOf(eq.A), laneCountOf(eq.B)})
		for lane := 0; lane < lanes; lane++ {
			a := SingleVReg{RegVar: eq.A, Lane: lane}
			b := SingleVReg{RegVar: eq.B, Lane: lane}
			g.coalesce(a, b)
		}
	}

	return g
}

func intervalsOverlap(a, b *LiveSet) bool {
	if a == nil || b == nil {
		return false
	}
	for _, ia := range a.Intervals {
		for _, ib := range b.Intervals {
			if ia.Start < ib.End && ib.Start < ia.End {
				return true
			}
		}
	}
	return false
}

// coalesce merges b into a: a inherits b's adjacency, and subsequent
// addEdge(b, x) calls should resolve through Coalesced. Self-merges and
// merges into an already-coalesced node resolve to their root first.
func (g *Graph) coalesce(a, b SingleVReg) {
	a = g.root(a)
	b = g.root(b)
	if a == b {
		return
	}
	g.addNode(a)
	g.addNode(b)
	for peer := range g.Adjacency[b] {
		peer = g.root(peer)
		if peer != a {
			g.addEdge(a, peer)
		}
	}
	delete(g.Adjacency, b)
	for _, adj := range g.Adjacency {
		delete(adj, b)
	}
	g.Nodes = lo.Filter(g.Nodes, func(n SingleVReg, _ int) bool { return n != b })
	g.Coalesced[b] = a
}

// root follows the Coalesced chain to the live representative node.
func (g *Graph) root(n SingleVReg) SingleVReg {
	for {
		r, ok := g.Coalesced[n]
		if !ok {
			return n
		}
		n = r
	}
}
