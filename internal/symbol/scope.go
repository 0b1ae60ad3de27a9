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

package symbol

import (
	"strings"

	"github.com/samber/lo"
)

// RegVar is a named virtual register range declared by .regvar (spec.md
// GLOSSARY), prior to allocation onto a physical range.
type RegVar struct {
	Name  string
	Lanes int
}

// Scope is a mapping from name to Symbol plus a mapping from name to child
// Scope plus a mapping from name to RegVar plus an ordered list of
// `.using`-imported scopes, per spec.md §4.3.
type Scope struct {
	Name     string
	Parent   *Scope
	Symbols  map[string]*Symbol
	Children map[string]*Scope
	RegVars  map[string]*RegVar
	Using    []*Scope

	Temporary bool
	Abandoned bool
}

// NewScope creates an empty scope; parent may be nil for the global scope.
func NewScope(name string, parent *Scope) *Scope {
	return &Scope{
		Name:     name,
		Parent:   parent,
		Symbols:  map[string]*Symbol{},
		Children: map[string]*Scope{},
		RegVars:  map[string]*RegVar{},
	}
}

// Use adds s to this scope's `.using` import list, if not already present.
func (sc *Scope) Use(s *Scope) {
	for _, u := range sc.Using {
		if u == s {
			return
		}
	}
	sc.Using = append(sc.Using, s)
}

// Unuse removes s from this scope's `.using` import list.
func (sc *Scope) Unuse(s *Scope) {
	sc.Using = lo.Filter(sc.Using, func(u *Scope, _ int) bool { return u != s })
}

// lookupLocal searches sc's own symbol map and transitively its `.using`
// set (but not enclosing scopes) for name.
func (sc *Scope) lookupLocal(name string, seen map[*Scope]bool) (*Symbol, bool) {
	if seen[sc] {
		return nil, false
	}
	seen[sc] = true
	if s, ok := sc.Symbols[name]; ok {
		return s, true
	}
	for _, u := range sc.Using {
		if s, ok := u.lookupLocal(name, seen); ok {
			return s, true
		}
	}
	return nil, false
}

// childLocal searches sc and its transitive `.using` set for a child scope
// named name (used while descending through a qualified path).
func (sc *Scope) childLocal(name string, seen map[*Scope]bool) (*Scope, bool) {
	if seen[sc] {
		return nil, false
	}
	seen[sc] = true
	if c, ok := sc.Children[name]; ok {
		return c, true
	}
	for _, u := range sc.Using {
		if c, ok := u.childLocal(name, seen); ok {
			return c, true
		}
	}
	return nil, false
}

// FindRegVarInTree searches sc and every descendant scope (depth-first) for
// a `.regvar` declaration named name. Used once assembly has finished, when
// the declaring scope may be a nested `.scope` block no longer current.
func (sc *Scope) FindRegVarInTree(name string) (*RegVar, bool) {
	if rv, ok := sc.RegVars[name]; ok {
		return rv, true
	}
	for _, c := range sc.Children {
		if rv, ok := c.FindRegVarInTree(name); ok {
			return rv, true
		}
	}
	return nil, false
}

// FindScope resolves a scope path ("A::B") for `.using`/`.unusing`: walk
// outward from sc through enclosing scopes searching each scope and its
// transitive `.using` set for the first path element, then descend through
// the remaining elements as child scopes, mirroring Resolve's multi-segment
// qualified-name walk.
func (sc *Scope) FindScope(path []string) (*Scope, bool) {
	if len(path) == 0 {
		return nil, false
	}
	var base *Scope
	for cur := sc; cur != nil; cur = cur.Parent {
		if c, ok := cur.childLocal(path[0], map[*Scope]bool{}); ok {
			base = c
			break
		}
	}
	if base == nil {
		return nil, false
	}
	for _, name := range path[1:] {
		c, ok := base.childLocal(name, map[*Scope]bool{})
		if !ok {
			return nil, false
		}
		base = c
	}
	return base, true
}

// Resolve implements spec.md §4.3's qualified-name lookup: "A::B::C starts
// from the current scope, walks outward through enclosing scopes searching
// each scope and its transitive `.using` set for A; if found, descent
// continues into A and must find B, then C."
func (sc *Scope) Resolve(path []string) (*Symbol, bool) {
	if len(path) == 0 {
		return nil, false
	}
	if len(path) == 1 {
		for cur := sc; cur != nil; cur = cur.Parent {
			if s, ok := cur.lookupLocal(path[0], map[*Scope]bool{}); ok {
				return s, true
			}
		}
		return nil, false
	}
	var base *Scope
	for cur := sc; cur != nil; cur = cur.Parent {
		if c, ok := cur.childLocal(path[0], map[*Scope]bool{}); ok {
			base = c
			break
		}
	}
	if base == nil {
		return nil, false
	}
	for _, name := range path[1 : len(path)-1] {
		c, ok := base.childLocal(name, map[*Scope]bool{})
		if !ok {
			return nil, false
		}
		base = c
	}
	return base.lookupLocal(path[len(path)-1], map[*Scope]bool{})
}

// ParseQualified splits "A::B::C" into its path components.
func ParseQualified(name string) []string {
	return strings.Split(name, "::")
}

// GetOrCreate returns the symbol named name in sc, creating an undefined
// placeholder (spec.md §3's "created on first forward reference") if
// absent.
func (sc *Scope) GetOrCreate(name string) *Symbol {
	if s, ok := sc.Symbols[name]; ok {
		return s
	}
	s := &Symbol{Name: name, Kind: KindUndefined}
	sc.Symbols[name] = s
	return s
}

// OpenChild creates (or reopens) a named child scope.
func (sc *Scope) OpenChild(name string) *Scope {
	if c, ok := sc.Children[name]; ok {
		return c
	}
	c := NewScope(name, sc)
	sc.Children[name] = c
	return c
}

// OpenTemporary creates an anonymous temporary scope for `.scope`/`.ends`,
// per spec.md §4.3.
func (sc *Scope) OpenTemporary(anonName string) *Scope {
	c := NewScope(anonName, sc)
	c.Temporary = true
	sc.Children[anonName] = c
	return c
}

// Close implements the temporary-scope lifecycle from spec.md §4.3: "resolve
// eagerly on close ... then move into an abandoned list so that any
// still-live occurrence references remain valid until overall assembly
// completion." The caller (driver) is responsible for the eager-resolve
// pass; Close only performs the bookkeeping move.
func (sc *Scope) Close(reg *AbandonedRegistry) {
	sc.Abandoned = true
	reg.Add(sc)
}
