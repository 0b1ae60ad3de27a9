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
	"fmt"

	"github.com/clrx-go/gcnasm/internal/expr"
)

// LocalLabels implements spec.md §4.3's local numeric labels: "1, 2, …
// live only in the global scope under the names <n>b (backward) and <n>f
// (forward); each definition resolves the <n>f form and then moves it to
// <n>b, clearing the <n>f definition."
type LocalLabels struct {
	global *Scope
}

// NewLocalLabels binds local-label bookkeeping to the global scope.
func NewLocalLabels(global *Scope) *LocalLabels {
	return &LocalLabels{global: global}
}

func forwardName(n int) string  { return fmt.Sprintf("%df", n) }
func backwardName(n int) string { return fmt.Sprintf("%db", n) }

// Define handles "n:" — resolves any pending forward reference <n>f to v,
// then replaces <n>b with a fresh symbol holding v, per spec.md §4.3.
func (l *LocalLabels) Define(n int, v expr.Value) {
	fname, bname := forwardName(n), backwardName(n)
	if fsym, ok := l.global.Symbols[fname]; ok {
		fsym.Resolve(v)
		delete(l.global.Symbols, fname)
	}
	l.global.Symbols[bname] = &Symbol{Name: bname, Kind: KindValue, Value: v, Resolved: true}
}

// Backward looks up "<n>b" (must already be defined, or it is an error at
// the driver level — local labels only resolve backward references to a
// label that has already occurred).
func (l *LocalLabels) Backward(n int) (*Symbol, bool) {
	s, ok := l.global.Symbols[backwardName(n)]
	return s, ok
}

// Forward returns (creating if necessary) the placeholder for "<n>f", the
// next not-yet-seen occurrence of label n.
func (l *LocalLabels) Forward(n int) *Symbol {
	name := forwardName(n)
	return l.global.GetOrCreate(name)
}
