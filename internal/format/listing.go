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

package format

import (
	"fmt"
	"strings"

	"github.com/klauspost/asmfmt"

	"github.com/clrx-go/gcnasm/internal/section"
)

// Listing renders a human-readable textual listing of the accumulated
// sections (address and bytes; no source text is rendered), then
// passes it through asmfmt for the same assembly-aware alignment the
// teacher applies to its own generated Go-assembly output in
// arm64_parser.go/parser_amd64.go/riscv64_parser.go/loong64_parser.go.
func Listing(sections []*section.Section) (string, error) {
	var raw strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&raw, "TEXT %s(SB), NOSPLIT, $0\n", strings.ToUpper(s.Name))
		for off := 0; off < len(s.Content); off += 8 {
			end := off + 8
			if end > len(s.Content) {
				end = len(s.Content)
			}
			fmt.Fprintf(&raw, "\t// %#06x: % x\n", off, s.Content[off:end])
		}
	}

	formatted, err := asmfmt.Format(strings.NewReader(raw.String()))
	if err != nil {
		return raw.String(), err
	}
	return string(formatted), nil
}
