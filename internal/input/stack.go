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

	"github.com/samber/lo"

	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// entryKind classifies a pushed filter for depth-limit accounting: include
// depth and macro depth are counted independently per spec.md §4.1.
type entryKind int

const (
	kindInclude entryKind = iota
	kindMacro
	kindOther // .rept/.irp/.for: replay filters that don't count against either limit
)

type stackEntry struct {
	filter Filter
	kind   entryKind
}

// Stack is the filter stack the driver's main read loop pulls from: the
// top filter serves ReadLine, popping back to the next filter down when it
// reports end-of-content, per spec.md §4.1.
type Stack struct {
	entries      []stackEntry
	includeDepth int
	macroDepth   int
}

// NewStack returns an empty filter stack.
func NewStack() *Stack { return &Stack{} }

// PushInclude pushes f as a `.include` frame, enforcing spec.md §4.1's
// MaxIncludeDepth.
func (s *Stack) PushInclude(f Filter) error {
	if s.includeDepth >= MaxIncludeDepth {
		return fmt.Errorf("include depth exceeds %d", MaxIncludeDepth)
	}
	s.includeDepth++
	s.entries = append(s.entries, stackEntry{filter: f, kind: kindInclude})
	return nil
}

// PushMacro pushes f as a macro-expansion frame, enforcing spec.md §4.1's
// MaxMacroDepth.
func (s *Stack) PushMacro(f Filter) error {
	if s.macroDepth >= MaxMacroDepth {
		return fmt.Errorf("macro expansion depth exceeds %d", MaxMacroDepth)
	}
	s.macroDepth++
	s.entries = append(s.entries, stackEntry{filter: f, kind: kindMacro})
	return nil
}

// PushReplay pushes f as a `.rept`/`.irp`/`.for` replay frame. These don't
// count against either depth limit per spec.md §4.1 (only inclusion and
// macro substitution are bounded).
func (s *Stack) PushReplay(f Filter) {
	s.entries = append(s.entries, stackEntry{filter: f, kind: kindOther})
}

func (s *Stack) pop() {
	n := len(s.entries) - 1
	e := s.entries[n]
	s.entries = s.entries[:n]
	switch e.kind {
	case kindInclude:
		s.includeDepth--
	case kindMacro:
		s.macroDepth--
	}
}

// ReadLine pulls the next logical line from the top of the stack, popping
// exhausted filters until one yields a line or the stack empties.
func (s *Stack) ReadLine() (string, []ColEntry, bool, error) {
	for len(s.entries) > 0 {
		top := s.entries[len(s.entries)-1].filter
		line, cols, ok, err := top.ReadLine()
		if err != nil {
			return "", nil, false, err
		}
		if ok {
			return line, cols, true, nil
		}
		s.pop()
	}
	return "", nil, false, nil
}

// TranslatePos resolves dstPos against the current top filter and appends a
// Frame for every enclosing filter below it, per spec.md §3's source-chain
// model.
func (s *Stack) TranslatePos(dstPos int) srcpos.Chain {
	if len(s.entries) == 0 {
		return srcpos.Chain{}
	}
	top := s.entries[len(s.entries)-1]
	pos := top.filter.TranslatePos(dstPos)

	frames := lo.Map(lo.Reverse(s.entries[:len(s.entries)-1]), func(e stackEntry, _ int) srcpos.Frame {
		return srcpos.Frame{Kind: frameKindOf(e.kind), At: e.filter.TranslatePos(0), Name: e.filter.Source()}
	})
	return srcpos.Chain{Pos: pos, Frames: frames}
}

func frameKindOf(k entryKind) srcpos.FrameKind {
	switch k {
	case kindInclude:
		return srcpos.FrameInclude
	case kindMacro:
		return srcpos.FrameMacro
	default:
		return srcpos.FrameRepeat
	}
}

// Depth returns the current include and macro nesting depths.
func (s *Stack) Depth() (include, macro int) { return s.includeDepth, s.macroDepth }
