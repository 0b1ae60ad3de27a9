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

import "github.com/clrx-go/gcnasm/internal/expr"

// AbandonedRegistry holds temporary scopes (`.scope`/`.ends`) after they
// close, so that occurrence references created while they were live remain
// valid until end-of-assembly, per spec.md §4.3.
type AbandonedRegistry struct {
	scopes []*Scope
}

// Add records a closed temporary scope.
func (r *AbandonedRegistry) Add(s *Scope) { r.scopes = append(r.scopes, s) }

// Scopes returns every abandoned scope recorded so far.
func (r *AbandonedRegistry) Scopes() []*Scope { return r.scopes }

// CloneRegistry owns detached symbol clones created when a symbol with
// still-pending occurrences is overwritten, per spec.md §4.3's "Symbol
// cloning" and §5's "Cloned and snapshot symbols are owned by the registry
// that holds them until end-of-assembly."
type CloneRegistry struct {
	clones []*Symbol
}

// Clone detaches orig into a fresh Symbol that keeps orig's occurrences and
// expression, registers it, and returns it. The live scope entry is left
// for the caller to overwrite with a fresh definition.
func (r *CloneRegistry) Clone(orig *Symbol) *Symbol {
	c := &Symbol{
		Name:        orig.Name,
		Kind:        orig.Kind,
		Value:       orig.Value,
		Resolved:    orig.Resolved,
		Expr:        orig.Expr,
		Occurrences: orig.Occurrences,
	}
	orig.Occurrences = nil
	r.clones = append(r.clones, c)
	return c
}

// Clones returns every clone created so far.
func (r *CloneRegistry) Clones() []*Symbol { return r.clones }

// SnapshotRegistry owns detached `.eqv` base-expression snapshots, per
// spec.md §4.2's Snapshots and §5's drain-at-end-of-assembly rule.
type SnapshotRegistry struct {
	snapshots []*expr.Expr
}

// Add registers a snapshot expression.
func (r *SnapshotRegistry) Add(e *expr.Expr) { r.snapshots = append(r.snapshots, e) }

// Snapshots returns every registered snapshot.
func (r *SnapshotRegistry) Snapshots() []*expr.Expr { return r.snapshots }

// MaybeClone implements spec.md §4.3's overwrite rule: "when a symbol about
// to be overwritten still has pending occurrences whose expressions are not
// fully resolved, the original is detached into a clone that keeps the
// occurrences and the prior expression; new assignments write only to the
// live entry."
//
// The overwrite case that matters is an expression-bound symbol (spec.md
// §3's "Expression-bound" kind) being redefined while its own defining
// expression has not finished resolving: something else (e.g. a `.eqv`
// snapshot taken before the redefinition) may still be waiting to observe
// the old expression's eventual value. Cloning preserves that expression
// and its dependents on a detached object while the live scope entry is
// free to take the new definition. It returns true if a clone was made.
func (r *CloneRegistry) MaybeClone(s *Symbol) bool {
	if s.Kind != KindExprBound || s.Expr == nil || !s.Expr.Unresolved() {
		return false
	}
	r.Clone(s)
	s.Expr = nil
	return true
}
