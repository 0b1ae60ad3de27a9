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

package driver

import (
	"encoding/binary"
	"fmt"

	"github.com/clrx-go/gcnasm/internal/diag"
	"github.com/clrx-go/gcnasm/internal/expr"
	"github.com/clrx-go/gcnasm/internal/input"
	"github.com/clrx-go/gcnasm/internal/section"
	"github.com/clrx-go/gcnasm/internal/srcpos"
	"github.com/clrx-go/gcnasm/internal/symbol"
)

// This file implements pseudoop.Context on *Assembler, plus the
// expr.SymbolLookup callback wired into the shared expr.Builder. Keeping
// the two together mirrors how tightly they cooperate: every directive
// that evaluates an expression and every bare identifier an expression
// encounters both resolve through the same scope.

func (a *Assembler) builder() *expr.Builder {
	if a.exprBuilder == nil {
		a.exprBuilder = expr.NewBuilder(a.lookupSymbol)
	}
	return a.exprBuilder
}

// lookupSymbol is the expr.SymbolLookup the shared Builder calls for every
// bare identifier token: "." resolves to the current write position,
// "<n>b"/"<n>f" resolve through LocalLabels, everything else resolves (or
// is created as a forward-reference placeholder in) the current scope.
func (a *Assembler) lookupSymbol(name string) (expr.Value, bool, func(expr.Occurrence)) {
	if name == "." {
		return a.currentValue(), true, nil
	}
	if n, backward, ok := parseLocalLabelRef(name); ok {
		if backward {
			sym, found := a.Locals.Backward(n)
			if !found {
				a.Diags.Errorf(a.chain(0), diag.KindSemantic, "undefined backward label %db", n)
				return expr.Absolute(0), true, nil
			}
			return sym.Value, sym.Resolved, sym.AddOccurrence
		}
		sym := a.Locals.Forward(n)
		return sym.Value, sym.Resolved, sym.AddOccurrence
	}
	path := symbol.ParseQualified(name)
	sym, found := a.CurScope.Resolve(path)
	if !found {
		sym = a.CurScope.GetOrCreate(name)
	}
	if sym.Kind == symbol.KindExprBound && sym.Expr != nil {
		a.snapshotBaseExpr(sym)
	}
	return sym.Value, sym.Resolved, sym.AddOccurrence
}

// snapshotBaseExpr implements spec.md §4.2's "at first use" timing for
// `.eqv`/`.equiv`: sym's base expression deep-copies itself into a
// detached, already-evaluated snapshot, the snapshot is registered so it
// drains at Finalize, and sym itself starts behaving like a plain resolved
// (or still-pending, if the base expression was not yet resolvable) value.
func (a *Assembler) snapshotBaseExpr(sym *symbol.Symbol) {
	clone, v, status := sym.Expr.Snapshot()
	a.Snapshots.Add(clone)
	sym.Expr = nil
	sym.Kind = symbol.KindValue
	if status == expr.StatusOK {
		sym.Resolve(v)
	}
}

// parseLocalLabelRef recognizes the "<n>b"/"<n>f" token shape the
// expression tokenizer produces for numeric local-label references.
func parseLocalLabelRef(name string) (n int, backward bool, ok bool) {
	if len(name) < 2 {
		return 0, false, false
	}
	suffix := name[len(name)-1]
	if suffix != 'b' && suffix != 'f' {
		return 0, false, false
	}
	digits := name[:len(name)-1]
	v := 0
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false, false
		}
		v = v*10 + int(digits[i]-'0')
	}
	return v, suffix == 'b', true
}

// reportExprDiags copies an expression's per-operator diagnostics into the
// assembler's sink, anchoring each at its operator's source position.
func (a *Assembler) reportExprDiags(e *expr.Expr, pos srcpos.Pos) {
	base := a.chain(pos.Col)
	for _, d := range e.Diags {
		c := base
		c.Pos = e.DiagPos(d)
		if d.Warning {
			a.Diags.Warnf(c, diag.KindArithmetic, true, "%s", d.Message)
		} else {
			a.Diags.Errorf(c, diag.KindArithmetic, "%s", d.Message)
		}
	}
}

// Evaluate implements pseudoop.Context: parses and evaluates expr text
// immediately, reporting any operator diagnostics. A not-yet-resolved
// (StatusPending) or not-yet-resolvable-until-layout (StatusDeferred)
// expression is reported as "not ok" rather than an error — callers like
// .set currently require an immediately resolvable value; directives that
// need true deferred patching use EmitSizedExpr instead.
func (a *Assembler) Evaluate(exprText string, pos srcpos.Pos) (int64, bool, error) {
	e, _, err := a.builder().Parse(exprText, pos)
	if err != nil {
		return 0, false, err
	}
	v, status := e.Eval()
	a.reportExprDiags(e, pos)
	switch status {
	case expr.StatusOK:
		return int64(v.V), true, nil
	default:
		return 0, false, nil
	}
}

// sizedTarget patches a fixed-width little-endian field once its governing
// expression resolves; it implements expr.Target.
type sizedTarget struct {
	sec    *section.Section
	offset int
	width  int
}

func (t *sizedTarget) Apply(v expr.Value, good bool) {
	if !good {
		return
	}
	buf := make([]byte, t.width)
	switch t.width {
	case 1:
		buf[0] = byte(v.V)
	case 2:
		binary.LittleEndian.PutUint16(buf, uint16(v.V))
	case 4:
		binary.LittleEndian.PutUint32(buf, uint32(v.V))
	case 8:
		binary.LittleEndian.PutUint64(buf, uint64(v.V))
	}
	copy(t.sec.Content[t.offset:t.offset+t.width], buf)
}

// EmitSizedExpr implements pseudoop.Context: reserves width zero bytes now
// (so the section's length/layout is correct even before resolution), then
// either patches them immediately (expression already resolvable) or
// attaches a sizedTarget so a later symbol definition finishes the job via
// Expr.ResolveArg's automatic Target.Apply call, per spec.md §4.2's
// forward-reference model.
func (a *Assembler) EmitSizedExpr(exprText string, pos srcpos.Pos, width int) error {
	e, _, err := a.builder().Parse(exprText, pos)
	if err != nil {
		return err
	}
	off := a.CurSection.Offset()
	a.CurSection.Write(make([]byte, width), pos, a.chain(pos.Col).Frames)
	target := &sizedTarget{sec: a.CurSection, offset: off, width: width}

	if e.PendingCount > 0 {
		e.Target = target
		return nil
	}
	v, status := e.Eval()
	a.reportExprDiags(e, pos)
	target.Apply(v, status == expr.StatusOK)
	return nil
}

// DefineSymbol implements pseudoop.Context for `.set`/`.equ` and the bare
// "name = expr" assignment form.
func (a *Assembler) DefineSymbol(name string, value int64, onceOnly bool) error {
	sym := a.CurScope.GetOrCreate(name)
	if onceOnly {
		sym.OnceOnly = true
	}
	return sym.Redefine(expr.Absolute(uint64(value)))
}

// DefineBaseExpr implements pseudoop.Context for `.eqv`/`.equiv`: it parses
// exprText but, unlike DefineSymbol, never evaluates it — the symbol is
// bound as expression-bound and only snapshotted the first time lookupSymbol
// reads it, per spec.md §4.2.
func (a *Assembler) DefineBaseExpr(name, exprText string, pos srcpos.Pos, onceOnly bool) error {
	e, _, err := a.builder().Parse(exprText, pos)
	if err != nil {
		return err
	}
	e.BaseExpr = true

	sym := a.CurScope.GetOrCreate(name)
	if sym.OnceOnly && sym.DefinedOnce {
		return fmt.Errorf("symbol %q already defined", name)
	}
	a.Clones.MaybeClone(sym)
	sym.Kind = symbol.KindExprBound
	sym.Expr = e
	sym.Resolved = false
	sym.OnceOnly = onceOnly
	sym.DefinedOnce = true
	return nil
}

// SwitchSection implements pseudoop.Context for `.section`.
func (a *Assembler) SwitchSection(name string) error {
	typ, flags := section.TypeData, section.FlagWriteable|section.FlagAddressable
	if name == ".text" {
		typ, flags = section.TypeCode, section.FlagAddressable
	}
	a.CurSection = a.section(name, typ, flags)
	return nil
}

// OpenScope implements pseudoop.Context for `.scope`: an empty name opens
// an anonymous temporary scope, per spec.md §4.3; a named scope persists
// across its close.
func (a *Assembler) OpenScope(name string) {
	if name == "" {
		a.CurScope = a.CurScope.OpenTemporary(fmt.Sprintf("$scope%d", a.localSeq))
		a.localSeq++
		return
	}
	a.CurScope = a.CurScope.OpenChild(name)
}

// CloseScope implements pseudoop.Context for `.ends`.
func (a *Assembler) CloseScope() {
	if a.CurScope.Parent == nil {
		return
	}
	sc := a.CurScope
	a.CurScope = sc.Parent
	if sc.Temporary {
		sc.Close(a.Abandoned)
	}
}

// UseScope implements pseudoop.Context for `.using`: it resolves name the
// way a qualified symbol path resolves (outward through enclosing scopes,
// then down through child scopes) and imports the result into the current
// scope's lookup path, per spec.md §4.3.
func (a *Assembler) UseScope(name string) error {
	sc, ok := a.CurScope.FindScope(symbol.ParseQualified(name))
	if !ok {
		return fmt.Errorf(".using: scope %q not found", name)
	}
	a.CurScope.Use(sc)
	return nil
}

// UnuseScope implements pseudoop.Context for `.unusing`.
func (a *Assembler) UnuseScope(name string) error {
	sc, ok := a.CurScope.FindScope(symbol.ParseQualified(name))
	if !ok {
		return fmt.Errorf(".unusing: scope %q not found", name)
	}
	a.CurScope.Unuse(sc)
	return nil
}

// Pos implements pseudoop.Context.
func (a *Assembler) Pos() srcpos.Pos { return a.posHere() }

// EmitBytes implements pseudoop.Context for directives that already know
// their final bytes (no deferred patching needed).
func (a *Assembler) EmitBytes(data []byte) {
	pos := a.posHere()
	a.CurSection.Write(data, pos, a.chain(pos.Col).Frames)
}

// DeclareRegVar implements pseudoop.Context for `.regvar`.
func (a *Assembler) DeclareRegVar(name string, lanes int) error {
	if _, exists := a.CurScope.RegVars[name]; exists {
		return fmt.Errorf("regvar %q already declared", name)
	}
	a.CurScope.RegVars[name] = &symbol.RegVar{Name: name, Lanes: lanes}
	return nil
}

// RecordCodeFlow implements pseudoop.Context for `.cf_*`. The jump/call
// target is resolved against the current scope when already known;
// forward-referenced control-flow targets are a documented limitation
// (DESIGN.md) since the allocator's CFG construction runs once, at
// end-of-assembly, after every label in the section has been defined.
func (a *Assembler) RecordCodeFlow(kind, target string) error {
	var t section.CFEntryType
	switch kind {
	case "start":
		t = section.CFStart
	case "end":
		t = section.CFEnd
	case "jump":
		t = section.CFJump
	case "cjump":
		t = section.CFCJump
	case "call":
		t = section.CFCall
	case "ret":
		t = section.CFReturn
	default:
		return fmt.Errorf("unknown code-flow kind %q", kind)
	}
	off := a.CurSection.Offset()
	targetOff := 0
	if target != "" {
		if sym, ok := a.CurScope.Resolve(symbol.ParseQualified(target)); ok && sym.Resolved {
			targetOff = int(sym.Value.V)
		}
	}
	a.CurSection.RecordCodeFlow(section.CodeFlowEntry{Type: t, Offset: off, Target: targetOff})
	return nil
}

// Include implements pseudoop.Context for `.include`, pushing the opened
// file as a new StreamFilter per spec.md §4.1's include-depth bookkeeping.
func (a *Assembler) Include(path string) error {
	if a.Opener == nil {
		return fmt.Errorf("include %q: no file opener configured", path)
	}
	r, err := a.Opener(path)
	if err != nil {
		return err
	}
	return a.Stack.PushInclude(input.NewStreamFilter(path, r, a.Diags))
}
