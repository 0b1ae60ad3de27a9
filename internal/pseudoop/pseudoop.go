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

// Package pseudoop implements the textual pseudo-op dispatcher spec.md §1
// scopes out of the core ("only the interface it consumes from the core"):
// a directive table and clause stack covering the directives spec.md names
// as consumed contracts, thin and correct for that contract rather than
// exhaustive GNU-as compatibility.
package pseudoop

import (
	"fmt"

	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// Context is the minimal surface a Handler needs from the driver: label/
// symbol registration, byte emission, scope handling, code-flow and regvar
// records, includes, and section switching. Kept narrow so pseudoop does
// not import internal/driver (the driver imports pseudoop, not the
// reverse).
type Context interface {
	Evaluate(expr string, pos srcpos.Pos) (int64, bool, error)
	DefineSymbol(name string, value int64, onceOnly bool) error
	// DefineBaseExpr implements `.eqv`/`.equiv`: binds name to an
	// unevaluated base expression that deep-copies itself into the
	// snapshot registry the first time something looks the symbol up,
	// per spec.md §4.2, rather than evaluating exprText immediately.
	DefineBaseExpr(name, exprText string, pos srcpos.Pos, onceOnly bool) error
	SwitchSection(name string) error
	OpenScope(name string)
	CloseScope()
	// UseScope implements `.using`: imports the named scope into the
	// current scope's lookup path, per spec.md §4.3.
	UseScope(name string) error
	// UnuseScope implements `.unusing`, reversing a prior UseScope.
	UnuseScope(name string) error
	Pos() srcpos.Pos
	// EmitBytes appends raw data to the current section at the current
	// position. `.byte`/`.short`/`.long`/`.quad` go through EmitSizedExpr.
	EmitBytes(data []byte)
	// EmitSizedExpr evaluates expr and appends its little-endian width-byte
	// encoding to the current section. Unlike Evaluate, an unresolved
	// (forward-referenced) expr is not an error here: width zero bytes are
	// emitted now and patched in place once the expression resolves, per
	// spec.md §4.2's deferred-target model. Only a hard parse/eval error
	// (not "still pending") is returned.
	EmitSizedExpr(expr string, pos srcpos.Pos, width int) error
	// DeclareRegVar registers a `.regvar` virtual register range.
	DeclareRegVar(name string, lanes int) error
	// RecordCodeFlow records a `.cf_*` control-flow edge; kind is one of
	// "start"/"end"/"jump"/"cjump"/"call"/"ret" and target is the jump/
	// call/cjump symbol name (empty for start/end/ret).
	RecordCodeFlow(kind, target string) error
	// Include pushes a new source file onto the input stack for
	// `.include`.
	Include(path string) error
}

// Handler implements one directive's behavior. args is the directive's
// operand text, unparsed beyond whitespace trimming.
type Handler func(ctx Context, args string) error

// Table is the directive dispatch table spec.md §6 calls a consumed
// contract: `map[string]Handler` keyed by directive name including
// the leading dot, grounded on ajroetker-goat's `arch.go` registry-of-
// parsers pattern (`parsers map[string]ArchParser`), adapted from an
// architecture registry to a directive registry.
type Table struct {
	handlers map[string]Handler
}

// NewTable returns an empty table. RegisterDirectives adds the non-clause
// directives; clause-opening directives (.if/.macro/.rept/.irp/.for/.scope)
// are not registered here and are handled by the driver's own dispatch.
func NewTable() *Table {
	return &Table{handlers: map[string]Handler{}}
}

// Register adds or replaces the handler for name.
func (t *Table) Register(name string, h Handler) {
	t.handlers[name] = h
}

// Dispatch invokes the handler registered for name, or reports an
// unrecognized-directive error.
func (t *Table) Dispatch(ctx Context, name, args string) error {
	h, ok := t.handlers[name]
	if !ok {
		return fmt.Errorf("unrecognized directive %q", name)
	}
	return h(ctx, args)
}

// Known reports whether name is a registered directive.
func (t *Table) Known(name string) bool {
	_, ok := t.handlers[name]
	return ok
}
