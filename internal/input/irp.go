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
	"strings"

	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// IRPFilter replays its content once per value in a value list (or, for
// irpc, once per character), substituting the named symbol with each
// value, per spec.md §4.1.
type IRPFilter struct {
	lines    []string
	symbol   string
	values   []string
	pos      srcpos.Pos
	valueIdx int
	lineIdx  int
}

// NewIRPFilter returns an .irp filter over one value per list entry.
func NewIRPFilter(lines []string, symbol string, values []string, pos srcpos.Pos) *IRPFilter {
	return &IRPFilter{lines: lines, symbol: symbol, values: values, pos: pos}
}

// NewIRPCFilter returns an .irpc filter, iterating one character at a time.
func NewIRPCFilter(lines []string, symbol string, chars string, pos srcpos.Pos) *IRPFilter {
	values := make([]string, 0, len(chars))
	for _, c := range chars {
		values = append(values, string(c))
	}
	return NewIRPFilter(lines, symbol, values, pos)
}

// CurrentValue returns the value bound to the iteration symbol for the
// iteration currently being read.
func (f *IRPFilter) CurrentValue() string {
	if f.valueIdx >= len(f.values) {
		return ""
	}
	return f.values[f.valueIdx]
}

// ReadLine implements Filter.
func (f *IRPFilter) ReadLine() (string, []ColEntry, bool, error) {
	for f.valueIdx < len(f.values) {
		if f.lineIdx < len(f.lines) {
			line := strings.ReplaceAll(f.lines[f.lineIdx], "\\"+f.symbol, f.values[f.valueIdx])
			srcLine := f.lineIdx + 1
			f.lineIdx++
			return line, []ColEntry{{DstPos: 0, SrcLineNo: srcLine}}, true, nil
		}
		f.valueIdx++
		f.lineIdx = 0
	}
	return "", nil, false, nil
}

// TranslatePos implements Filter.
func (f *IRPFilter) TranslatePos(dstPos int) srcpos.Pos {
	pos := f.pos
	pos.Col = dstPos
	return pos
}

// Source implements Filter.
func (f *IRPFilter) Source() string { return ".irp" }
