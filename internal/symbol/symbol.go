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

// Package symbol implements the nested scope and symbol model of spec.md
// §3/§4.3: undefined placeholders, resolved values, expression-bound
// symbols, register ranges, `.using` scope import, qualified-name
// resolution, local numeric labels, and the clone/snapshot registries that
// keep in-flight expression occurrences valid across redefinition.
package symbol

import (
	"fmt"

	"github.com/clrx-go/gcnasm/internal/expr"
)

// Kind distinguishes the symbol variants from spec.md §3.
type Kind int

const (
	KindUndefined Kind = iota
	KindValue
	KindExprBound
	KindRegisterRange
)

// Symbol is one named entity in a Scope.
type Symbol struct {
	Name string
	Kind Kind

	Value      expr.Value
	Resolved   bool
	OnceOnly   bool // true for label definitions: a second definition is an error
	Expr       *expr.Expr
	RegStart   int
	RegEnd     int
	RegVarName string

	// Occurrences lists every expression argument slot that refers to this
	// symbol, notified (and cleared) when the symbol resolves.
	Occurrences []expr.Occurrence

	DefinedOnce bool // becomes true after the first definition when OnceOnly
}

// AddOccurrence registers an expression slot that depends on this symbol,
// per spec.md §3's ExprSymbolOccurrence.
func (s *Symbol) AddOccurrence(o expr.Occurrence) {
	s.Occurrences = append(s.Occurrences, o)
}

// Resolve assigns v as the symbol's value, notifies every pending
// occurrence (substituting the value into its expression slot), and clears
// the occurrence list, per spec.md §4.2/§4.3.
func (s *Symbol) Resolve(v expr.Value) {
	s.Value = v
	s.Resolved = true
	occs := s.Occurrences
	s.Occurrences = nil
	for _, o := range occs {
		o.Expr.ResolveArg(o.ArgIndex, v)
	}
}

// Redefine implements the once-defined label rule: if OnceOnly and already
// defined, it returns an error instead of mutating the symbol.
func (s *Symbol) Redefine(v expr.Value) error {
	if s.OnceOnly && s.DefinedOnce {
		return fmt.Errorf("symbol %q already defined", s.Name)
	}
	s.DefinedOnce = true
	s.Resolve(v)
	return nil
}
