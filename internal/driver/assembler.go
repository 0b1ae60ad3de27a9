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

// Package driver threads every other package into the single-pass read
// loop spec.md §4.6 describes: pull a logical line from the input filter
// stack, classify it as a label, an assignment, a pseudo-op, a macro call,
// or an instruction, and at end-of-assembly run the register allocator,
// wait scheduler, and format handler over the accumulated sections.
package driver

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/clrx-go/gcnasm/internal/diag"
	"github.com/clrx-go/gcnasm/internal/expr"
	"github.com/clrx-go/gcnasm/internal/format"
	"github.com/clrx-go/gcnasm/internal/input"
	"github.com/clrx-go/gcnasm/internal/isa"
	"github.com/clrx-go/gcnasm/internal/pseudoop"
	"github.com/clrx-go/gcnasm/internal/regalloc"
	"github.com/clrx-go/gcnasm/internal/section"
	"github.com/clrx-go/gcnasm/internal/srcpos"
	"github.com/clrx-go/gcnasm/internal/symbol"
	"github.com/clrx-go/gcnasm/internal/wait"
)

// Config mirrors spec.md §9's "explicit configuration" design note: the
// recognized command-line switches, carried on the Assembler instead of
// scattered package-level flags.
type Config struct {
	Format         format.Kind
	Device         string
	Bits64         bool
	Warnings       bool
	AlternateMacro bool
	BuggyFPLit     bool
	MacroNoCase    bool
	OldModParam    bool
	TestRun        bool
	TestResolve    bool
	IncludeDirs    []string
	DefSyms        []DefSym
}

// DefSym is one command-line `-D name=value` symbol define, seeded into
// the global scope before assembly, per spec.md §6.
type DefSym struct {
	Name  string
	Value int64
}

// Assembler is the single mutable context spec.md §9 calls for: "current
// section, current kernel, current out position, flags belong on a single
// Assembler context passed explicitly to every subsystem; no process-wide
// statics."
type Assembler struct {
	Config Config

	Diags     *diag.Sink
	Global    *symbol.Scope
	CurScope  *symbol.Scope
	Locals    *symbol.LocalLabels
	Abandoned *symbol.AbandonedRegistry
	// Clones and Snapshots own, respectively, symbol clones detached by a
	// `.eqv` redefinition racing a pending occurrence and the `.eqv`
	// snapshot expressions themselves, per spec.md §4.2/§4.3's drain-at-
	// end-of-assembly rule. Both are drained in Finalize.
	Clones    *symbol.CloneRegistry
	Snapshots *symbol.SnapshotRegistry

	Sections     map[string]*section.Section
	sectionOrder []string
	sectionIDs   map[string]int
	CurSection   *section.Section

	Stack      *input.Stack
	Pseudo     *pseudoop.Table
	Clauses    *pseudoop.ClauseStack
	collecting *bodyCollector

	MacroDefs  map[string]*input.MacroDef
	invocation int
	localSeq   int

	Encoder isa.Encoder
	Fmt     format.Handler

	// Coloring holds the register allocator's output per code section,
	// keyed by section name, filled in by Finalize. Exposed for callers
	// (the listing output, tests) that want to inspect the assignment
	// without re-running the allocator.
	Coloring map[string]regalloc.Coloring

	// Opener resolves an `.include` path (or an initial RunFiles name) to
	// its content; RunFiles callers supply it directly, Include reuses it.
	Opener func(name string) (io.Reader, error)

	exprBuilder *expr.Builder

	curLine    string
	curLineLen int
}

// New returns an assembler whose only initial section is ".text" (code),
// seeded with cfg's command-line symbol defines.
func New(cfg Config, fmtHandler format.Handler, enc isa.Encoder) *Assembler {
	global := symbol.NewScope("", nil)
	a := &Assembler{
		Config:     cfg,
		Diags:      diag.NewSink(cfg.Warnings),
		Global:     global,
		CurScope:   global,
		Locals:     symbol.NewLocalLabels(global),
		Abandoned:  &symbol.AbandonedRegistry{},
		Clones:     &symbol.CloneRegistry{},
		Snapshots:  &symbol.SnapshotRegistry{},
		Sections:   map[string]*section.Section{},
		sectionIDs: map[string]int{},
		Stack:      input.NewStack(),
		Pseudo:     pseudoop.NewTable(),
		Clauses:    pseudoop.NewClauseStack(),
		MacroDefs:  map[string]*input.MacroDef{},
		Encoder:    enc,
		Fmt:        fmtHandler,
	}
	pseudoop.RegisterDirectives(a.Pseudo)
	a.CurSection = a.section(".text", section.TypeCode, section.FlagWriteable|section.FlagAddressable)
	for _, d := range cfg.DefSyms {
		if d.Name == "." {
			a.Diags.Warnf(srcpos.Chain{}, diag.KindSemantic, true, "defining \".\" is not allowed")
			continue
		}
		sym := a.Global.GetOrCreate(d.Name)
		sym.Resolve(expr.Absolute(uint64(d.Value)))
	}
	return a
}

// section returns the named section, creating it (with a fresh id) if
// this is the first reference.
func (a *Assembler) section(name string, typ section.Type, flags section.Flags) *section.Section {
	if s, ok := a.Sections[name]; ok {
		return s
	}
	s := section.New(name, typ, flags)
	a.Sections[name] = s
	a.sectionIDs[name] = len(a.sectionOrder)
	a.sectionOrder = append(a.sectionOrder, name)
	return s
}

func (a *Assembler) curSectionID() int { return a.sectionIDs[a.CurSection.Name] }

// maxRegisterFile bounds the colors ColorGraph may hand out. GCN exposes up
// to 256 VGPRs per wavefront lane and up to 256 SGPRs per wave, so 256 colors
// cover every allocatable class a `.regvar` range can name regardless of
// which physical file it ultimately lands in.
const maxRegisterFile = 256

// allocateRegisters runs spec.md §4.4's full (a)-(f) pipeline over one code
// section's recorded side tables and returns the resulting coloring. A
// failed coloring (the register file is oversubscribed) is reported through
// a.Diags rather than returned as an error, matching how every other
// end-of-assembly check in Finalize surfaces failure.
func (a *Assembler) allocateRegisters(s *section.Section) regalloc.Coloring {
	blocks := regalloc.BuildBlocks(s, func(off int) int { return off + 4 })

	usagesOf := func(b *regalloc.Block) []section.RegVarUsage {
		var out []section.RegVarUsage
		for _, u := range s.Usages {
			if u.Offset >= b.Start && u.Offset < b.End {
				out = append(out, u)
			}
		}
		return out
	}
	regalloc.BuildSSA(blocks, usagesOf)
	regalloc.ResolveSSAConflicts(blocks, regalloc.DetectJoinConflicts(blocks))

	isAddressable := func(b *regalloc.Block) bool { return true }
	live := regalloc.ComputeLiveness(blocks, isAddressable)

	laneCountOf := func(regvar string) int {
		if rv, ok := a.Global.FindRegVarInTree(regvar); ok && rv.Lanes > 0 {
			return rv.Lanes
		}
		return 1
	}
	graph := regalloc.BuildInterferenceGraph(live, s.LinearDeps, s.EqualTos, laneCountOf)

	// No pseudo-op in this repo binds a .regvar to a fixed physical
	// register yet, so there is nothing to precolor with.
	coloring, ok := regalloc.ColorGraph(graph, nil, maxRegisterFile)
	if !ok {
		a.Diags.Errorf(srcpos.Chain{}, diag.KindSemantic, "section %q needs more than %d physical registers to allocate", s.Name, maxRegisterFile)
	}
	return coloring
}

// OrderedSections returns every section in first-reference order, for
// callers (the CLI's listing output, tests) that need a stable ordering
// without reaching into the assembler's unexported bookkeeping.
func (a *Assembler) OrderedSections() []*section.Section {
	secs := make([]*section.Section, 0, len(a.sectionOrder))
	for _, name := range a.sectionOrder {
		secs = append(secs, a.Sections[name])
	}
	return secs
}

// currentValue returns "." — the current write offset in the current
// section, as a section-relative Value.
func (a *Assembler) currentValue() expr.Value {
	return expr.Value{V: uint64(a.CurSection.Offset()), Rel: []expr.Relative{{Section: a.curSectionID(), Multiplier: 1}}}
}

// RunFiles assembles each named file in turn (spec.md §6's "a list of
// input file paths"), pushing each as a fresh StreamFilter, then runs
// end-of-assembly finalization.
func (a *Assembler) RunFiles(opens func(name string) (io.Reader, error), names []string) ([]byte, error) {
	a.Opener = opens
	for _, n := range names {
		r, err := opens(n)
		if err != nil {
			return nil, fmt.Errorf("opening %q: %w", n, err)
		}
		if err := a.Stack.PushInclude(input.NewStreamFilter(n, r, a.Diags)); err != nil {
			return nil, err
		}
		a.mainLoop()
	}
	return a.Finalize()
}

// RunReader assembles a single in-memory source, named for diagnostics.
func (a *Assembler) RunReader(name string, r io.Reader) ([]byte, error) {
	if err := a.Stack.PushInclude(input.NewStreamFilter(name, r, a.Diags)); err != nil {
		return nil, err
	}
	a.mainLoop()
	return a.Finalize()
}

// mainLoop implements spec.md §4.6 steps 1-5 for every line available from
// the filter stack.
func (a *Assembler) mainLoop() {
	for {
		line, _, ok, err := a.Stack.ReadLine()
		if err != nil {
			a.Diags.Errorf(a.chain(0), diag.KindParse, "%s", err)
			continue
		}
		if !ok {
			return
		}
		a.processLine(line)
	}
}

func (a *Assembler) chain(col int) srcpos.Chain {
	return a.Stack.TranslatePos(col)
}

// processLine is one pass of spec.md §4.6 steps 2-5 over a single logical
// line already cleaned by the input filter stack.
func (a *Assembler) processLine(line string) {
	a.curLine = line
	a.curLineLen = len(line)

	if a.collecting != nil {
		if a.collecting.feed(a, line) {
			a.finishCollecting()
		}
		return
	}

	rest := line
	for {
		name, after, ok := leadingLabel(rest)
		if !ok {
			break
		}
		a.defineLabel(name)
		rest = after
	}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return
	}
	if !a.Clauses.ActiveIf() {
		a.skipInactive(rest)
		return
	}

	if name, exprText, ok := splitAssignment(rest); ok {
		a.doAssign(name, exprText, false)
		return
	}

	tok, args := splitFirstToken(rest)
	if strings.HasPrefix(tok, ".") {
		a.dispatchDirective(tok, args)
		return
	}

	if def, ok := a.lookupMacro(tok); ok {
		a.expandMacro(def, args)
		return
	}

	a.encodeInstruction(tok, args)
}

// skipInactive advances clause bookkeeping for .if/.else/.endif structure
// while the current branch is not taken, without executing anything else.
func (a *Assembler) skipInactive(rest string) {
	tok, args := splitFirstToken(rest)
	switch tok {
	case ".if", ".ifdef", ".ifndef":
		a.Clauses.Push(&pseudoop.Clause{Kind: pseudoop.ClauseIf, Active: false})
	case ".else":
		if top := a.Clauses.Top(); top != nil && top.Kind == pseudoop.ClauseIf {
			top.Active = !top.TakenAny
			top.TakenAny = true
		}
	case ".elseif":
		if top := a.Clauses.Top(); top != nil && top.Kind == pseudoop.ClauseIf && !top.TakenAny {
			ok, _ := a.evalBool(args)
			top.Active = ok
			if ok {
				top.TakenAny = true
			}
		}
	case ".endif":
		a.Clauses.Pop()
	}
}

func (a *Assembler) evalBool(text string) (bool, error) {
	v, ok, err := a.Evaluate(text, a.posHere())
	return ok && v != 0, err
}

func (a *Assembler) posHere() srcpos.Pos { return a.chain(0).Pos }

// defineLabel implements spec.md §4.6 step 2 for one leading label: named
// labels resolve once (the once-defined label rule); purely numeric labels
// go through LocalLabels per spec.md §4.3.
func (a *Assembler) defineLabel(name string) {
	if n, err := strconv.Atoi(name); err == nil {
		a.Locals.Define(n, a.currentValue())
		return
	}
	sym := a.CurScope.GetOrCreate(name)
	sym.OnceOnly = true
	if err := sym.Redefine(a.currentValue()); err != nil {
		a.Diags.Errorf(a.chain(0), diag.KindSemantic, "%s", err)
	}
}

// leadingLabel strips one "name:" or "N:" prefix from the remainder of the
// line, if present, returning the label name and what follows.
func leadingLabel(s string) (name, rest string, ok bool) {
	s = strings.TrimLeft(s, " \t")
	i := 0
	for i < len(s) && isLabelChar(s[i]) {
		i++
	}
	if i == 0 || i >= len(s) || s[i] != ':' {
		return "", s, false
	}
	return s[:i], s[i+1:], true
}

func isLabelChar(c byte) bool {
	return c == '_' || c == '.' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// splitAssignment recognizes spec.md §4.6 step 3's "name = expr" form.
func splitAssignment(s string) (name, exprText string, ok bool) {
	i := 0
	for i < len(s) && isLabelChar(s[i]) {
		i++
	}
	if i == 0 {
		return "", "", false
	}
	j := i
	for j < len(s) && (s[j] == ' ' || s[j] == '\t') {
		j++
	}
	if j >= len(s) || s[j] != '=' || (j+1 < len(s) && s[j+1] == '=') {
		return "", "", false
	}
	return s[:i], s[j+1:], true
}

func splitFirstToken(s string) (tok, rest string) {
	i := 0
	for i < len(s) && s[i] != ' ' && s[i] != '\t' {
		i++
	}
	return s[:i], strings.TrimSpace(s[i:])
}

func (a *Assembler) doAssign(name, exprText string, onceOnly bool) {
	v, ok, err := a.Evaluate(exprText, a.posHere())
	if err != nil {
		a.Diags.Errorf(a.chain(0), diag.KindArithmetic, "%s", err)
		return
	}
	if !ok {
		return
	}
	if err := a.DefineSymbol(name, v, onceOnly); err != nil {
		a.Diags.Errorf(a.chain(0), diag.KindSemantic, "%s", err)
	}
}

func (a *Assembler) lookupMacro(name string) (*input.MacroDef, bool) {
	if a.Config.MacroNoCase {
		name = strings.ToLower(name)
		for k, v := range a.MacroDefs {
			if strings.ToLower(k) == name {
				return v, true
			}
		}
		return nil, false
	}
	d, ok := a.MacroDefs[name]
	return d, ok
}

// encodeInstruction hands a non-directive, non-macro line to the ISA
// encoder, recording its side-tables into the current section. Concrete
// opcode tables live outside this module (spec.md §1); without one
// configured, unrecognized mnemonics are reported as parse errors.
func (a *Assembler) encodeInstruction(mnemonic string, operandText string) {
	if a.Encoder == nil {
		a.Diags.Errorf(a.chain(0), diag.KindParse, "no instruction encoder configured for %q", mnemonic)
		return
	}
	operands := a.parseOperands(operandText)
	res, err := a.Encoder.Encode(mnemonic, operands)
	if err != nil {
		a.Diags.Errorf(a.chain(0), diag.KindParse, "%s", err)
		return
	}
	pos := a.posHere()
	frames := a.chain(0).Frames
	off := a.CurSection.Offset()
	a.CurSection.Write(res.Bytes, pos, frames)
	for _, u := range res.Usages {
		u.Offset += off
		a.CurSection.RecordUsage(u)
	}
	for _, d := range res.DelayedOps {
		d.Offset += off
		a.CurSection.RecordDelayedOp(d)
	}
}

func (a *Assembler) parseOperands(text string) []isa.Operand {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, ",")
	out := make([]isa.Operand, 0, len(parts))
	for _, p := range parts {
		out = append(out, isa.Operand{Text: strings.TrimSpace(p)})
	}
	return out
}

// Finalize implements spec.md §4.6 step 6: symbol/expression resolution is
// continuous (occurrence notification happens as each symbol resolves), so
// what remains at end-of-assembly is running the allocator and scheduler
// per section and asking the format handler to serialize the result.
func (a *Assembler) Finalize() ([]byte, error) {
	if d := a.Clauses.Depth(); d > 0 {
		a.Diags.Errorf(srcpos.Chain{}, diag.KindParse, "%d clause(s) left open at end of assembly", d)
	}
	secs := a.OrderedSections()
	sched := wait.NewScheduler(16)
	a.Coloring = map[string]regalloc.Coloring{}
	for _, s := range secs {
		if s.Type == section.TypeCode {
			a.Coloring[s.Name] = a.allocateRegisters(s)
		}
	}
	sched.Run(secs)

	for _, e := range a.Snapshots.Snapshots() {
		if e.Unresolved() {
			a.Diags.Errorf(srcpos.Chain{Pos: e.SourcePos}, diag.KindSemantic, "eqv snapshot never resolved")
		}
	}
	for _, c := range a.Clones.Clones() {
		if c.Expr != nil && c.Expr.Unresolved() {
			a.Diags.Errorf(srcpos.Chain{Pos: c.Expr.SourcePos}, diag.KindSemantic, "symbol %q abandoned while still unresolved", c.Name)
		}
	}
	if a.Config.TestResolve {
		var scan func(sc *symbol.Scope)
		scan = func(sc *symbol.Scope) {
			for name, s := range sc.Symbols {
				if s.Kind == symbol.KindUndefined && !s.Resolved {
					a.Diags.Errorf(srcpos.Chain{}, diag.KindSemantic, "symbol %q left unresolved at end of assembly", name)
				}
			}
			for _, c := range sc.Children {
				scan(c)
			}
		}
		scan(a.Global)
	}

	if a.Diags.Failed() {
		return nil, fmt.Errorf("assembly failed")
	}
	if a.Config.TestRun {
		return nil, nil
	}
	if a.Fmt == nil {
		return nil, fmt.Errorf("no format handler configured")
	}
	return a.Fmt.Finalize(secs)
}
