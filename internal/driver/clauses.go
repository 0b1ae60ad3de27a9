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
	"strings"

	"github.com/clrx-go/gcnasm/internal/diag"
	"github.com/clrx-go/gcnasm/internal/input"
	"github.com/clrx-go/gcnasm/internal/pseudoop"
	"github.com/clrx-go/gcnasm/internal/symbol"
)

// bodyCollector accumulates the raw, unexecuted lines of a `.macro`/
// `.rept`/`.irp`/`.irpc`/`.for` body, per spec.md §4.1: these bodies are
// captured verbatim and replayed later (once per macro call, or once per
// repeat/iteration value), so nested directives inside them are not
// dispatched at definition time — only counted, to find the matching close.
type bodyCollector struct {
	openTokens map[string]bool
	closeToken string
	depth      int

	macroName  string
	paramsText string

	reptCount int

	irpSymbol string
	irpValues []string
	irpChars  string
	irpChar   bool

	forCondText string
	forNextText string
}

// feed appends one raw line to the clause's accumulated body, or reports
// completion (true) when the matching close token balances the opener.
func (c *bodyCollector) feed(a *Assembler, line string) bool {
	tok, _ := splitFirstToken(strings.TrimSpace(line))
	switch {
	case c.openTokens[tok]:
		c.depth++
	case tok == c.closeToken:
		c.depth--
		if c.depth == 0 {
			return true
		}
	}
	a.Clauses.AppendBody(line)
	return false
}

// dispatchDirective handles every `.`-prefixed directive: clause-opening
// and clause-closing forms are driven here directly (opening one changes
// how subsequent lines are read), everything else delegates to the
// Pseudo table.
func (a *Assembler) dispatchDirective(name, args string) {
	switch name {
	case ".macro":
		a.beginMacroDef(args)
		return
	case ".endm":
		a.Diags.Errorf(a.chain(0), diag.KindParse, ".endm without matching .macro")
		return
	case ".rept":
		a.beginRept(args)
		return
	case ".irp":
		a.beginIRP(args, false)
		return
	case ".irpc":
		a.beginIRP(args, true)
		return
	case ".endr":
		a.Diags.Errorf(a.chain(0), diag.KindParse, ".endr without matching .rept/.irp/.irpc")
		return
	case ".for":
		a.beginFor(args)
		return
	case ".endfor":
		a.Diags.Errorf(a.chain(0), diag.KindParse, ".endfor without matching .for")
		return
	case ".if":
		ok, err := a.evalBool(args)
		if err != nil {
			a.Diags.Errorf(a.chain(0), diag.KindArithmetic, "%s", err)
		}
		a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseIf, Active: ok, TakenAny: ok})
		return
	case ".ifdef":
		_, found := a.CurScope.Resolve(symbol.ParseQualified(strings.TrimSpace(args)))
		a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseIf, Active: found, TakenAny: found})
		return
	case ".ifndef":
		_, found := a.CurScope.Resolve(symbol.ParseQualified(strings.TrimSpace(args)))
		a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseIf, Active: !found, TakenAny: !found})
		return
	case ".elseif":
		top := a.Clauses.Top()
		if top == nil || top.Kind != pseudoop.ClauseIf {
			a.Diags.Errorf(a.chain(0), diag.KindParse, ".elseif without matching .if")
			return
		}
		if top.TakenAny {
			top.Active = false
			return
		}
		ok, err := a.evalBool(args)
		if err != nil {
			a.Diags.Errorf(a.chain(0), diag.KindArithmetic, "%s", err)
		}
		top.Active = ok
		top.TakenAny = ok
		return
	case ".else":
		top := a.Clauses.Top()
		if top == nil || top.Kind != pseudoop.ClauseIf {
			a.Diags.Errorf(a.chain(0), diag.KindParse, ".else without matching .if")
			return
		}
		top.Active = !top.TakenAny
		top.TakenAny = true
		return
	case ".endif":
		top := a.Clauses.Pop()
		if top == nil || top.Kind != pseudoop.ClauseIf {
			a.Diags.Errorf(a.chain(0), diag.KindParse, ".endif without matching .if")
		}
		return
	case ".scope":
		name := strings.TrimSpace(args)
		a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseScope, Name: name})
		a.OpenScope(name)
		return
	case ".ends":
		top := a.Clauses.Pop()
		if top == nil || top.Kind != pseudoop.ClauseScope {
			a.Diags.Errorf(a.chain(0), diag.KindParse, ".ends without matching .scope")
			return
		}
		a.CloseScope()
		return
	}

	before := len(a.Diags.Diagnostics)
	if err := a.Pseudo.Dispatch(a, name, args); err != nil && len(a.Diags.Diagnostics) == before {
		a.Diags.Errorf(a.chain(0), diag.KindParse, "%s", err)
	}
}

func (a *Assembler) beginMacroDef(args string) {
	name, paramsText := splitFirstToken(args)
	a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseMacro, Name: name})
	a.collecting = &bodyCollector{
		openTokens: map[string]bool{".macro": true},
		closeToken: ".endm",
		depth:      1,
		macroName:  name,
		paramsText: paramsText,
	}
}

func (a *Assembler) beginRept(args string) {
	n, ok, err := a.Evaluate(strings.TrimSpace(args), a.posHere())
	if err != nil {
		a.Diags.Errorf(a.chain(0), diag.KindArithmetic, "%s", err)
	}
	if !ok {
		n = 0
	}
	a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseRept})
	a.collecting = &bodyCollector{
		openTokens: map[string]bool{".rept": true},
		closeToken: ".endr",
		depth:      1,
		reptCount:  int(n),
	}
}

func (a *Assembler) beginIRP(args string, isChar bool) {
	parts := strings.SplitN(args, ",", 2)
	symName := strings.TrimSpace(parts[0])
	rest := ""
	if len(parts) == 2 {
		rest = parts[1]
	}
	c := &bodyCollector{
		openTokens: map[string]bool{".irp": true, ".irpc": true},
		closeToken: ".endr",
		depth:      1,
		irpSymbol:  symName,
		irpChar:    isChar,
	}
	if isChar {
		c.irpChars = strings.TrimSpace(rest)
	} else {
		c.irpValues = splitArgs(rest, a.Config.AlternateMacro)
	}
	a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseIRP})
	a.collecting = c
}

// beginFor opens a `.for init, cond, next` clause: init runs once,
// immediately, as a plain assignment; cond/next are re-evaluated by the
// pushed ForFilter on every iteration boundary.
func (a *Assembler) beginFor(args string) {
	parts := strings.SplitN(args, ",", 3)
	if len(parts) == 3 {
		if name, exprText, ok := splitAssignment(strings.TrimSpace(parts[0])); ok {
			a.doAssign(name, exprText, false)
		}
	}
	cond, next := "", ""
	if len(parts) >= 2 {
		cond = strings.TrimSpace(parts[1])
	}
	if len(parts) == 3 {
		next = strings.TrimSpace(parts[2])
	}
	a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseFor})
	a.collecting = &bodyCollector{
		openTokens:  map[string]bool{".for": true},
		closeToken:  ".endfor",
		depth:       1,
		forCondText: cond,
		forNextText: next,
	}
}

// finishCollecting turns the just-closed clause's accumulated body into the
// appropriate stored definition (macro) or replay filter (rept/irp/for),
// per spec.md §4.1.
func (a *Assembler) finishCollecting() {
	c := a.collecting
	a.collecting = nil
	top := a.Clauses.Pop()
	if top == nil {
		return
	}
	lines := top.Body
	pos := a.posHere()

	switch top.Kind {
	case pseudoop.ClauseMacro:
		params := splitArgs(c.paramsText, a.Config.AlternateMacro)
		a.MacroDefs[c.macroName] = &input.MacroDef{
			Name:     c.macroName,
			Params:   params,
			Defaults: map[string]string{},
			Lines:    lines,
			LocalPos: pos,
		}
	case pseudoop.ClauseRept:
		a.Stack.PushReplay(input.NewRepeatFilter(lines, c.reptCount, pos))
	case pseudoop.ClauseIRP:
		if c.irpChar {
			a.Stack.PushReplay(input.NewIRPCFilter(lines, c.irpSymbol, c.irpChars, pos))
		} else {
			a.Stack.PushReplay(input.NewIRPFilter(lines, c.irpSymbol, c.irpValues, pos))
		}
	case pseudoop.ClauseFor:
		condText, nextText := c.forCondText, c.forNextText
		cond := func() (bool, error) {
			v, ok, err := a.Evaluate(condText, pos)
			if err != nil {
				return false, err
			}
			return ok && v != 0, nil
		}
		next := func() error {
			_, _, err := a.Evaluate(nextText, pos)
			return err
		}
		a.Stack.PushReplay(input.NewForFilter(lines, cond, next, pos))
	}
}

// expandMacro implements spec.md §4.1's macro-call expansion: split the
// invocation's argument text, bind it against the declared parameter list
// (positional, `:vararg`, defaults), and push a replaying MacroFilter.
func (a *Assembler) expandMacro(def *input.MacroDef, argsText string) {
	invocation := splitArgs(argsText, a.Config.AlternateMacro)
	args := bindMacroArgs(def.Params, invocation)
	a.invocation++
	mf := input.NewMacroFilter(def, args, a.invocation, a.Config.AlternateMacro, a.posHere())
	if err := a.Stack.PushMacro(mf); err != nil {
		a.Diags.Errorf(a.chain(0), diag.KindResource, "%s", err)
	}
}
