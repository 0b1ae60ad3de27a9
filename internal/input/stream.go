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
	"bufio"
	"io"

	"github.com/clrx-go/gcnasm/internal/diag"
	"github.com/clrx-go/gcnasm/internal/srcpos"
)

// StreamFilter reads raw lines from an underlying file, applying the
// comment/continuation/quoting cleanup shared by every filter, per spec.md
// §4.1's "Stream filter reads from a file, applying the above
// tokenization-neutral cleanup". Grounded on y1yang0-falcon's
// ast.Lexer.Init/next byte-cursor shape, adapted from a byte cursor to a
// line-buffered bufio.Scanner since this filter works a line at a time
// rather than a byte at a time.
type StreamFilter struct {
	name    string
	scanner *bufio.Scanner
	state   cleanState
	lineNo  int
	diags   *diag.Sink
}

// NewStreamFilter wraps r (typically an *os.File) as a stream filter named
// name for diagnostics. diags receives the "newline inside string literal"
// warning spec.md §4.1 calls for.
func NewStreamFilter(name string, r io.Reader, diags *diag.Sink) *StreamFilter {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &StreamFilter{name: name, scanner: sc, diags: diags}
}

func (f *StreamFilter) rawLine() (string, bool) {
	if !f.scanner.Scan() {
		return "", false
	}
	f.lineNo++
	return f.scanner.Text(), true
}

// ReadLine implements Filter.
func (f *StreamFilter) ReadLine() (string, []ColEntry, bool, error) {
	raw, ok := f.rawLine()
	if !ok {
		if err := f.scanner.Err(); err != nil {
			return "", nil, false, err
		}
		return "", nil, false, nil
	}
	startLine := f.lineNo

	joined, _ := joinContinuations(raw, f.rawLine)
	cleaned, openLiteral := f.state.cleanLine(joined)
	for openLiteral {
		more, ok := f.rawLine()
		if !ok {
			break
		}
		if f.diags != nil {
			f.diags.Warnf(srcpos.Chain{Pos: srcpos.Pos{File: f.name, Line: f.lineNo}}, diag.KindParse, false,
				"newline inserted inside string or character literal")
		}
		var extra string
		extra, openLiteral = f.state.cleanLine(more)
		cleaned += "\n" + extra
	}

	cols := []ColEntry{{DstPos: 0, SrcLineNo: startLine}}
	return cleaned, cols, true, nil
}

// TranslatePos implements Filter: every position in a StreamFilter line
// maps to the line's own starting source line (multi-raw-line joins are
// resolved by the caller consulting the returned ColEntry table instead).
func (f *StreamFilter) TranslatePos(dstPos int) srcpos.Pos {
	return srcpos.Pos{File: f.name, Line: f.lineNo, Col: dstPos}
}

// Source implements Filter.
func (f *StreamFilter) Source() string { return f.name }
