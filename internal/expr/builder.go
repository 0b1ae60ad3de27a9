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

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// SymbolLookup resolves an identifier encountered while building an
// expression. It returns the symbol's current value (valid is false if the
// symbol is not yet defined) and an AddOccurrence hook the Builder calls
// once it knows which (expr, argIndex) slot the identifier landed in. This
// indirection is how package expr stays symbol-agnostic (see DESIGN.md).
type SymbolLookup func(name string) (value Value, valid bool, addOccurrence func(Occurrence))

// token is one lexical unit fed to the shunting-yard algorithm.
type token struct {
	kind    tokKind
	op      Op
	num     uint64
	name    string
	pos     srcpos.Pos
	paren   rune // '(' or ')'
}

type tokKind int

const (
	tokNumber tokKind = iota
	tokIdent
	tokOp
	tokParen
	tokQuestion
	tokColon
)

// Builder parses infix assembly-expression source into an *Expr using the
// shunting-yard algorithm with the priority table from spec.md §4.2:
// "(", ")" raise priority by 8 per nesting level; "?" pushes a choice-start
// marker that the matching ":" pops down to.
type Builder struct {
	lookup SymbolLookup
}

// NewBuilder returns a Builder that resolves bare identifiers via lookup.
func NewBuilder(lookup SymbolLookup) *Builder {
	return &Builder{lookup: lookup}
}

type opStackEntry struct {
	op            Op
	priority      int
	pos           srcpos.Pos
	isChoiceStart bool
}

// Parse tokenizes and parses src starting at the given source position,
// returning the built expression, the number of bytes consumed, and any
// hard parse error.
func (b *Builder) Parse(src string, pos srcpos.Pos) (*Expr, int, error) {
	toks, consumed, err := tokenize(src, pos)
	if err != nil {
		return nil, consumed, err
	}
	if len(toks) == 0 {
		return nil, consumed, fmt.Errorf("empty expression")
	}
	if e, ok := b.tryFastPath(toks, pos); ok {
		return e, consumed, nil
	}

	var ops []Op
	var opPos []srcpos.Pos
	var args []Arg
	var occurrences []func(Occurrence)

	var opStack []opStackEntry
	parenLevel := 0
	prevWasOperand := false

	pushOutputOp := func(o Op, p srcpos.Pos) {
		ops = append(ops, o)
		opPos = append(opPos, p)
	}
	popToPriority := func(threshold int, rightAssoc bool) {
		for len(opStack) > 0 {
			top := opStack[len(opStack)-1]
			if top.isChoiceStart {
				break
			}
			if rightAssoc {
				if top.priority < threshold {
					break
				}
			} else if top.priority < threshold {
				break
			}
			pushOutputOp(top.op, top.pos)
			opStack = opStack[:len(opStack)-1]
		}
	}

	pushArg := func(a Arg, occ func(Occurrence)) {
		ops = append(ops, OpPushArg)
		opPos = append(opPos, srcpos.Pos{})
		args = append(args, a)
		occurrences = append(occurrences, occ)
		prevWasOperand = true
	}

	for _, t := range toks {
		switch t.kind {
		case tokNumber:
			pushArg(Arg{Value: Absolute(t.num), Resolved: true}, nil)
		case tokIdent:
			val, valid, addOcc := b.lookup(t.name)
			pushArg(Arg{Value: val, Resolved: valid}, addOcc)
		case tokParen:
			if t.paren == '(' {
				parenLevel++
				prevWasOperand = false
			} else {
				parenLevel--
				// pop until matching '(' sentinel; we model parens purely
				// via the +8-per-level priority boost, so nothing to pop
				// here beyond normal operator precedence.
				prevWasOperand = true
			}
		case tokQuestion:
			popToPriority(OpChoice.priority()+1, false)
			opStack = append(opStack, opStackEntry{isChoiceStart: true})
			prevWasOperand = false
		case tokColon:
			for len(opStack) > 0 && !opStack[len(opStack)-1].isChoiceStart {
				top := opStack[len(opStack)-1]
				pushOutputOp(top.op, top.pos)
				opStack = opStack[:len(opStack)-1]
			}
			if len(opStack) > 0 {
				marker := opStack[len(opStack)-1]
				opStack = opStack[:len(opStack)-1] // drop the choice-start marker
				// Defer emitting OpChoice until the false-branch operand is
				// fully parsed: push it back with the choice's own (lowest)
				// priority so later operators still bind inside the branch.
				opStack = append(opStack, opStackEntry{op: OpChoice, priority: OpChoice.priority(), pos: marker.pos})
			}
			prevWasOperand = false
		case tokOp:
			op := t.op
			unary := op.isUnary() || (!prevWasOperand && (op == OpSub || op == OpAdd))
			if unary && !op.isUnary() {
				if op == OpSub {
					op = OpNeg
				} else {
					prevWasOperand = false
					continue // unary '+' is a no-op
				}
			}
			basePriority := op.priority()
			effPriority := basePriority + parenLevel*8
			if !unary {
				popToPriority(effPriority, false)
			}
			opStack = append(opStack, opStackEntry{op: op, priority: effPriority, pos: t.pos})
			prevWasOperand = false
		}
	}
	for len(opStack) > 0 {
		top := opStack[len(opStack)-1]
		pushOutputOp(top.op, top.pos)
		opStack = opStack[:len(opStack)-1]
	}

	e := New(ops, opPos, args, false, pos)
	// Wire occurrences now that argument indices are final.
	argIdx := 0
	for i, o := range ops {
		if o == OpPushArg {
			if occurrences[argIdx] != nil {
				occurrences[argIdx](Occurrence{Expr: e, ArgIndex: argIdx})
			}
			argIdx++
			_ = i
		}
	}
	return e, consumed, nil
}

// tryFastPath recognizes a pure literal +/- chain (spec.md §4.2's "fast
// path"): a run of numeric tokens joined only by unary/binary +/- with no
// identifiers, parentheses, or other operators.
func (b *Builder) tryFastPath(toks []token, pos srcpos.Pos) (*Expr, bool) {
	if len(toks) == 0 {
		return nil, false
	}
	sign := int64(1)
	var total uint64
	i := 0
	sawNumber := false
	for i < len(toks) {
		t := toks[i]
		switch t.kind {
		case tokOp:
			if t.op != OpAdd && t.op != OpSub {
				return nil, false
			}
			if t.op == OpSub {
				sign = -sign
			}
			i++
		case tokNumber:
			total += uint64(sign) * t.num
			sign = 1
			sawNumber = true
			i++
		default:
			return nil, false
		}
	}
	if !sawNumber {
		return nil, false
	}
	return New([]Op{OpPushArg}, []srcpos.Pos{{}}, []Arg{{Value: Absolute(total), Resolved: true}}, false, pos), true
}

func tokenize(src string, pos srcpos.Pos) ([]token, int, error) {
	var toks []token
	i := 0
	n := len(src)
	col := pos.Col
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t':
			i++
			col++
		case c == '(' || c == ')':
			toks = append(toks, token{kind: tokParen, paren: rune(c), pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
			i++
			col++
		case c == '?':
			toks = append(toks, token{kind: tokQuestion, pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
			i++
			col++
		case c == ':':
			toks = append(toks, token{kind: tokColon, pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
			i++
			col++
		case c >= '0' && c <= '9':
			start := i
			if end, ok := localLabelRefEnd(src, i); ok {
				toks = append(toks, token{kind: tokIdent, name: src[start:end], pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
				col += end - start
				i = end
				continue
			}
			for i < n && isNumChar(src[i]) {
				i++
			}
			lit := src[start:i]
			v, err := parseNumber(lit)
			if err != nil {
				return nil, i, fmt.Errorf("invalid numeric literal %q: %w", lit, err)
			}
			toks = append(toks, token{kind: tokNumber, num: v, pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
			col += i - start
		case isIdentStart(c):
			start := i
			for i < n && isIdentChar(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, name: src[start:i], pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
			col += i - start
		default:
			op, width, ok := matchOperator(src[i:])
			if !ok {
				return toks, i, nil // stop at first unrecognized byte (e.g. ',' delimiter)
			}
			toks = append(toks, token{kind: tokOp, op: op, pos: srcpos.Pos{File: pos.File, Line: pos.Line, Col: col}})
			i += width
			col += width
		}
	}
	return toks, i, nil
}

// localLabelRefEnd recognizes a numeric local-label reference (`1b`, `10f`)
// starting at i: a run of decimal digits immediately followed by a single
// 'b' or 'f' that is not itself the start of a longer identifier-like run
// (so "0x1f" and "1beef" still tokenize as numbers, not label refs).
func localLabelRefEnd(src string, i int) (int, bool) {
	n := len(src)
	j := i
	for j < n && src[j] >= '0' && src[j] <= '9' {
		j++
	}
	if j == i || j >= n || (src[j] != 'b' && src[j] != 'f') {
		return 0, false
	}
	end := j + 1
	if end < n && isIdentChar(src[end]) {
		return 0, false
	}
	return end, true
}

func isNumChar(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') || c == 'x' || c == 'X' || c == '.'
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '.' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == ':'
}

func parseNumber(lit string) (uint64, error) {
	if strings.HasPrefix(lit, "0x") || strings.HasPrefix(lit, "0X") {
		return strconv.ParseUint(lit[2:], 16, 64)
	}
	if len(lit) > 1 && lit[0] == '0' {
		if v, err := strconv.ParseUint(lit[1:], 8, 64); err == nil {
			return v, nil
		}
	}
	return strconv.ParseUint(lit, 10, 64)
}

var multiCharOps = []struct {
	text string
	op   Op
}{
	{"<<", OpShl},
	{">>", OpSar},
	{"==", OpEq},
	{"!=", OpNe},
	{"<=", OpLe},
	{">=", OpGe},
	{"&&", OpLogAnd},
	{"||", OpLogOr},
}

var singleCharOps = map[byte]Op{
	'+': OpAdd,
	'-': OpSub,
	'*': OpMul,
	'/': OpDiv,
	'%': OpMod,
	'&': OpAnd,
	'|': OpOr,
	'^': OpXor,
	'~': OpBitNot,
	'!': OpLogNot,
	'<': OpLt,
	'>': OpGt,
}

func matchOperator(s string) (Op, int, bool) {
	for _, m := range multiCharOps {
		if strings.HasPrefix(s, m.text) {
			return m.op, len(m.text), true
		}
	}
	if op, ok := singleCharOps[s[0]]; ok {
		return op, 1, true
	}
	return 0, 0, false
}
