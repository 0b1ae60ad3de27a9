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

// Package input implements spec.md §4.1's input-filter stack: the stream,
// macro, repeat, irp, and for filters that feed the driver's main read
// loop one logical assembly line at a time, plus the include/macro depth
// limits that bound the stack's growth.
package input

import "github.com/clrx-go/gcnasm/internal/srcpos"

// ColEntry is one entry of a readLine column-translation table, mapping a
// destination position in the logical line back to the source line it came
// from, per spec.md §4.1.
type ColEntry struct {
	DstPos    int
	SrcLineNo int
}

// Filter is the common contract every input-filter kind implements.
type Filter interface {
	// ReadLine returns the next logical line, its column-translation table,
	// and whether a line was available (false signals end of this filter's
	// content, causing the stack to pop back to the next filter down).
	ReadLine() (line string, cols []ColEntry, ok bool, err error)
	// TranslatePos maps a position in the last line ReadLine returned back
	// to a source position, consulting cols and the filter's own frame.
	TranslatePos(dstPos int) srcpos.Pos
	// Source names this filter for diagnostics (file path, macro name,
	// ".rept", etc).
	Source() string
}

const (
	// MaxIncludeDepth is spec.md §4.1's inclusion depth limit.
	MaxIncludeDepth = 500
	// MaxMacroDepth is spec.md §4.1's macro substitution depth limit.
	MaxMacroDepth = 1000
)
