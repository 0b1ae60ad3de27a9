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

package input

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// MacroDef is the pre-stored content of one `.macro` definition, captured
// verbatim at definition time per spec.md §4.1.
type MacroDef struct {
	Name      string
	Params    []string
	Defaults  map[string]string
	Lines     []string
	LocalPos  srcpos.Pos
}

// MacroFilter replays a macro's stored lines, substituting `\name`
// arguments (or, in alternate-macro mode, bare identifiers matching
// argument/local names), `\@` invocation counters, and `\()` no-op
// separators, per spec.md §4.1.
type MacroFilter struct {
	def        *MacroDef
	args       map[string]string
	locals     map[string]string
	invocation int
	alternate  bool

	lineIdx int
	callPos srcpos.Pos
}

// NewMacroFilter starts one expansion of def with the given positional/
// named arguments already resolved into a name->text map (default values
// already applied by the caller), at invocation count n (feeding `\@`).
func NewMacroFilter(def *MacroDef, args map[string]string, n int, alternate bool, callPos srcpos.Pos) *MacroFilter {
	return &MacroFilter{def: def, args: args, locals: map[string]string{}, invocation: n, alternate: alternate, callPos: callPos}
}

// DeclareLocal implements spec.md §4.1's alternate-macro `local NAME[,
// NAME...]` statement: each listed name is assigned a unique `.LL<n>`
// expansion for this invocation.
func (m *MacroFilter) DeclareLocal(names []string, uniqueSeq func() int) {
	for _, n := range names {
		m.locals[strings.TrimSpace(n)] = fmt.Sprintf(".LL%d", uniqueSeq())
	}
}

// ReadLine implements Filter.
func (m *MacroFilter) ReadLine() (string, []ColEntry, bool, error) {
	if m.lineIdx >= len(m.def.Lines) {
		return "", nil, false, nil
	}
	raw := m.def.Lines[m.lineIdx]
	m.lineIdx++
	return m.substitute(raw), []ColEntry{{DstPos: 0, SrcLineNo: m.lineIdx}}, true, nil
}

// substitute expands `\name`, `\@`, and `\()` per spec.md §4.1, plus bare
// alternate-macro identifiers matching an argument or local name.
func (m *MacroFilter) substitute(line string) string {
	var out strings.Builder
	runes := []rune(line)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c == '\\' && i+1 < len(runes) {
			switch {
			case runes[i+1] == '@':
				out.WriteString(strconv.Itoa(m.invocation))
				i++
				continue
			case runes[i+1] == '(' && i+2 < len(runes) && runes[i+2] == ')':
				i += 2
				continue
			default:
				name, consumed := readIdent(runes[i+1:])
				if consumed > 0 {
					out.WriteString(m.lookup(name))
					i += consumed
					continue
				}
			}
		}
		if m.alternate && isIdentStartRune(c) {
			name, consumed := readIdent(runes[i:])
			if v, ok := m.lookupAlternate(name); ok {
				out.WriteString(v)
				i += consumed - 1
				continue
			}
		}
		out.WriteRune(c)
	}
	return out.String()
}

func (m *MacroFilter) lookup(name string) string {
	if v, ok := m.locals[name]; ok {
		return v
	}
	if v, ok := m.args[name]; ok {
		return v
	}
	if v, ok := m.def.Defaults[name]; ok {
		return v
	}
	return ""
}

func (m *MacroFilter) lookupAlternate(name string) (string, bool) {
	if v, ok := m.locals[name]; ok {
		return v, true
	}
	if v, ok := m.args[name]; ok {
		return v, true
	}
	return "", false
}

func readIdent(r []rune) (string, int) {
	i := 0
	for i < len(r) && (isIdentStartRune(r[i]) || (i > 0 && r[i] >= '0' && r[i] <= '9')) {
		i++
	}
	return string(r[:i]), i
}

func isIdentStartRune(c rune) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// TranslatePos implements Filter: every position within a macro expansion
// maps back to the macro's call-site position (spec.md's diagnostic chain
// then shows the macro-expansion frame, added by the caller).
func (m *MacroFilter) TranslatePos(dstPos int) srcpos.Pos {
	pos := m.callPos
	pos.Col = dstPos
	return pos
}

// Source implements Filter.
func (m *MacroFilter) Source() string { return m.def.Name }

// ParseArgs implements spec.md §4.1's argument-token-classification rule: a
// run of same-class non-space characters forms one argument; `"..."` and
// `<...>` (alternate-macro) quote the remainder of one argument.
func ParseArgs(s string, alternate bool) []string {
	var args []string
	i, n := 0, len(s)
	for i < n {
		for i < n && s[i] == ' ' {
			i++
		}
		if i >= n {
			break
		}
		start := i
		switch {
		case s[i] == '"':
			i++
			for i < n && s[i] != '"' {
				if s[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
			args = append(args, s[start:i])
		case alternate && s[i] == '<':
			depth := 1
			i++
			for i < n && depth > 0 {
				if s[i] == '<' {
					depth++
				} else if s[i] == '>' {
					depth--
				}
				i++
			}
			args = append(args, s[start:i])
		default:
			for i < n && s[i] != ' ' && s[i] != ',' {
				i++
			}
			args = append(args, s[start:i])
		}
		for i < n && (s[i] == ' ' || s[i] == ',') {
			i++
		}
	}
	return lo.Map(args, func(a string, _ int) string { return strings.TrimSpace(a) })
}
