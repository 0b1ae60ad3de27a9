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

package diag

import (
	"bytes"
	"testing"

	"github.com/clrx-go/gcnasm/internal/srcpos"
	"github.com/stretchr/testify/assert"
)

func TestWarningsGatedByFlag(t *testing.T) {
	s := NewSink(false)
	chain := srcpos.Chain{Pos: srcpos.Pos{File: "a.s", Line: 1, Col: 1}}
	s.Warnf(chain, KindSemantic, false, "value out of range")
	assert.Empty(t, s.Diagnostics, "warning should be suppressed when warnings are off")

	s.Warnf(chain, KindArithmetic, true, "shift count out of range")
	assert.Len(t, s.Diagnostics, 1, "forced warning should always be recorded")
}

func TestFailedTracksErrorsOnly(t *testing.T) {
	s := NewSink(true)
	chain := srcpos.Chain{Pos: srcpos.Pos{File: "a.s", Line: 1, Col: 1}}
	s.Warnf(chain, KindSemantic, false, "just a warning")
	assert.False(t, s.Failed())
	s.Errorf(chain, KindArithmetic, "division by zero")
	assert.True(t, s.Failed())
}

func TestDiagnosticFormat(t *testing.T) {
	chain := srcpos.Chain{Pos: srcpos.Pos{File: "a.s", Line: 4, Col: 9}}
	d := Diagnostic{Severity: SeverityError, Kind: KindArithmetic, Chain: chain, Message: "Division by zero"}
	assert.Equal(t, "a.s:4:9: Error: Division by zero", d.Error())
}

func TestWriteTo(t *testing.T) {
	s := NewSink(true)
	chain := srcpos.Chain{Pos: srcpos.Pos{File: "a.s", Line: 1, Col: 1}}
	s.Errorf(chain, KindParse, "bad token")
	var buf bytes.Buffer
	s.WriteTo(&buf)
	assert.Contains(t, buf.String(), "bad token")
}
