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

import "github.com/clrx-go/gcnasm/internal/srcpos"

// ForFilter replays its content until a condition expression evaluates to
// zero, executing a next-expression after each iteration, per spec.md
// §4.1: "each iteration creates a fresh evaluation context. The
// next-expression and condition use the same expression engine." Because
// expression evaluation needs the live symbol table, ForFilter doesn't
// parse or evaluate expressions itself — it calls back into cond/next,
// supplied by the driver, which re-parse their expression text into a new
// expression on each call and evaluate it in the assembler's current scope.
type ForFilter struct {
	lines   []string
	cond    func() (bool, error)
	next    func() error
	pos     srcpos.Pos
	lineIdx int
	started bool
	done    bool
	err     error
}

// NewForFilter returns a .for filter. cond reports whether another
// iteration should run; next runs after each full pass over lines.
func NewForFilter(lines []string, cond func() (bool, error), next func() error, pos srcpos.Pos) *ForFilter {
	return &ForFilter{lines: lines, cond: cond, next: next, pos: pos}
}

// Err returns any error raised by cond/next during replay.
func (f *ForFilter) Err() error { return f.err }

// ReadLine implements Filter.
func (f *ForFilter) ReadLine() (string, []ColEntry, bool, error) {
	for {
		if f.done {
			return "", nil, false, nil
		}
		if !f.started {
			ok, err := f.cond()
			if err != nil {
				f.err = err
				f.done = true
				return "", nil, false, err
			}
			if !ok {
				f.done = true
				return "", nil, false, nil
			}
			f.started = true
		}
		if f.lineIdx < len(f.lines) {
			line := f.lines[f.lineIdx]
			srcLine := f.lineIdx + 1
			f.lineIdx++
			return line, []ColEntry{{DstPos: 0, SrcLineNo: srcLine}}, true, nil
		}
		if err := f.next(); err != nil {
			f.err = err
			f.done = true
			return "", nil, false, err
		}
		f.lineIdx = 0
		f.started = false
	}
}

// TranslatePos implements Filter.
func (f *ForFilter) TranslatePos(dstPos int) srcpos.Pos {
	pos := f.pos
	pos.Col = dstPos
	return pos
}

// Source implements Filter.
func (f *ForFilter) Source() string { return ".for" }
