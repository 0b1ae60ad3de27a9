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

// RepeatFilter replays its stored content N times, per spec.md §4.1's
// "Repeat filter replays its content N times with a repetition counter
// available to outer sources for line numbering."
type RepeatFilter struct {
	lines    []string
	n        int
	pos      srcpos.Pos
	iter     int
	lineIdx  int
}

// NewRepeatFilter returns a filter that replays lines n times.
func NewRepeatFilter(lines []string, n int, pos srcpos.Pos) *RepeatFilter {
	return &RepeatFilter{lines: lines, n: n, pos: pos}
}

// Iteration returns the current 0-based repetition counter, exposed to
// outer sources for line numbering per spec.md §4.1.
func (r *RepeatFilter) Iteration() int { return r.iter }

// ReadLine implements Filter.
func (r *RepeatFilter) ReadLine() (string, []ColEntry, bool, error) {
	for r.iter < r.n {
		if r.lineIdx < len(r.lines) {
			line := r.lines[r.lineIdx]
			srcLine := r.lineIdx + 1
			r.lineIdx++
			return line, []ColEntry{{DstPos: 0, SrcLineNo: srcLine}}, true, nil
		}
		r.iter++
		r.lineIdx = 0
	}
	return "", nil, false, nil
}

// TranslatePos implements Filter.
func (r *RepeatFilter) TranslatePos(dstPos int) srcpos.Pos {
	pos := r.pos
	pos.Col = dstPos
	return pos
}

// Source implements Filter.
func (r *RepeatFilter) Source() string { return ".rept" }
