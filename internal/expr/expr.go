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

package expr

import "github.com/clrx-go/gcnasm/internal/srcpos"

// Arg is one argument slot of an expression: either an already-known literal
// (Resolved=true from parse time) or a symbol-dependent slot awaiting
// resolution (Resolved=false until an Occurrence callback fills it in).
type Arg struct {
	Value    Value
	Resolved bool
}

// Target receives the final value once an expression's pending-symbol
// counter reaches zero, per spec.md §4.2's "target action" (symbol
// assignment, data write, code-flow target write, or relocation patch).
type Target interface {
	Apply(v Value, good bool)
}

// Expr is a parsed expression: a postfix-ish operator list (see OpPushArg)
// plus parallel argument slots and per-operator source positions for
// diagnostics, mirroring AsmExpression.cpp's ops/args/messagePositions
// triple (spec.md §3 "Expression").
type Expr struct {
	Ops    []Op
	OpPos  []srcpos.Pos // len(OpPos) == len(Ops); meaningful only for real operators
	Args   []Arg
	Target Target

	PendingCount int
	HasRelative  bool
	BaseExpr     bool // true for .eqv-style base expressions (snapshot targets)

	// Diags accumulates diagnostics from the most recent Eval call.
	Diags []Diag

	// SourcePos anchors diagnostics for the expression as a whole (e.g.
	// "unresolved symbol" reported once the expression is fully built but
	// never reaches zero pending).
	SourcePos srcpos.Pos
}

// New builds an Expr from already-assembled operator/argument arrays. It is
// the counterpart of AsmExpression::setParams: the Builder (builder.go)
// produces these arrays from shunting-yard parsing.
func New(ops []Op, opPos []srcpos.Pos, args []Arg, baseExpr bool, pos srcpos.Pos) *Expr {
	e := &Expr{Ops: ops, OpPos: opPos, Args: args, BaseExpr: baseExpr, SourcePos: pos}
	for _, a := range args {
		if !a.Resolved {
			e.PendingCount++
		}
		if a.Resolved && !a.Value.IsAbsolute() {
			e.HasRelative = true
		}
	}
	return e
}

// Occurrence is a back-reference stored on a symbol: "expression E's
// argument slot argIndex refers to me". Symbol storage lives in package
// symbol, which imports this type (spec.md §3's ExprSymbolOccurrence,
// §9's "resolve occurrences by index, not pointer identity").
type Occurrence struct {
	Expr     *Expr
	ArgIndex int
}

// ResolveArg fills in argument argIndex with v and decrements the pending
// counter. When the counter reaches zero the expression is fully resolved
// and, if a Target was attached, the target action fires immediately.
func (e *Expr) ResolveArg(argIndex int, v Value) {
	if e.Args[argIndex].Resolved {
		return
	}
	e.Args[argIndex] = Arg{Value: v, Resolved: true}
	if !v.IsAbsolute() {
		e.HasRelative = true
	}
	e.PendingCount--
	if e.PendingCount == 0 && e.Target != nil {
		val, status := e.Eval()
		e.Target.Apply(val, status == StatusOK)
	}
}

// Unresolved reports whether the expression still has pending symbol slots.
func (e *Expr) Unresolved() bool { return e.PendingCount > 0 }

// DiagPos returns the source position of the operator that raised d,
// falling back to the expression's own SourcePos for argument-related
// diagnostics.
func (e *Expr) DiagPos(d Diag) srcpos.Pos {
	if d.OpIndex >= 0 && d.OpIndex < len(e.OpPos) {
		if p := e.OpPos[d.OpIndex]; p.File != "" {
			return p
		}
	}
	return e.SourcePos
}
