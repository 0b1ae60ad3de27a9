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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrx-go/gcnasm/internal/diag"
	"github.com/clrx-go/gcnasm/internal/srcpos"
)

func TestCleanLineStripsHashComment(t *testing.T) {
	var s cleanState
	out, open := s.cleanLine("mov v0, v1 # comment")
	assert.Equal(t, "mov v0, v1 ", out)
	assert.False(t, open)
}

func TestCleanLineStripsBlockCommentAcrossCalls(t *testing.T) {
	var s cleanState
	out1, _ := s.cleanLine("mov v0 /* start")
	assert.Equal(t, "mov v0 ", out1)
	assert.True(t, s.inBlockComment)
	out2, _ := s.cleanLine("still comment */ add v1")
	assert.Equal(t, " add v1", out2)
	assert.False(t, s.inBlockComment)
}

func TestCleanLineKeepsHashInsideString(t *testing.T) {
	var s cleanState
	out, open := s.cleanLine(`.ascii "a#b"`)
	assert.Equal(t, `.ascii "a#b"`, out)
	assert.False(t, open)
}

func TestCleanLineReportsOpenStringLiteral(t *testing.T) {
	var s cleanState
	_, open := s.cleanLine(`.ascii "unterminated`)
	assert.True(t, open)
}

func TestSplitStatementsOnSemicolon(t *testing.T) {
	parts := splitStatements("mov v0, v1; add v2, v3")
	require.Len(t, parts, 2)
	assert.Equal(t, "mov v0, v1", parts[0])
	assert.Equal(t, " add v2, v3", parts[1])
}

func TestJoinContinuations(t *testing.T) {
	i := 0
	rest := []string{" v1", " add"}
	next := func() (string, bool) {
		if i >= len(rest) {
			return "", false
		}
		v := rest[i]
		i++
		return v, true
	}
	joined, n := joinContinuations("mov v0,\\", next)
	assert.Equal(t, "mov v0, v1", joined)
	assert.Equal(t, 2, n)
}

func TestStreamFilterReadLine(t *testing.T) {
	sink := diag.NewSink(true)
	f := NewStreamFilter("t.s", strings.NewReader("mov v0, v1 # c\nadd v2, v3\n"), sink)
	line, _, ok, err := f.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "mov v0, v1 ", line)

	line2, _, ok2, err2 := f.ReadLine()
	require.NoError(t, err2)
	require.True(t, ok2)
	assert.Equal(t, "add v2, v3", line2)

	_, _, ok3, _ := f.ReadLine()
	assert.False(t, ok3)
}

func TestStreamFilterWarnsOnNewlineInsideString(t *testing.T) {
	sink := diag.NewSink(true)
	f := NewStreamFilter("t.s", strings.NewReader(".ascii \"abc\ndef\"\n"), sink)
	line, _, ok, err := f.ReadLine()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ".ascii \"abc\ndef\"", line)
	require.Len(t, sink.Diagnostics, 1)
}

func TestMacroFilterSubstitutesArgsAndInvocationCounter(t *testing.T) {
	def := &MacroDef{Name: "m", Lines: []string{`mov \dst, \src`, `add \dst, \@`}}
	mf := NewMacroFilter(def, map[string]string{"dst": "v0", "src": "v1"}, 3, false, srcpos.Pos{File: "t.s", Line: 5})
	l1, _, ok1, _ := mf.ReadLine()
	require.True(t, ok1)
	assert.Equal(t, "mov v0, v1", l1)
	l2, _, ok2, _ := mf.ReadLine()
	require.True(t, ok2)
	assert.Equal(t, "add v0, 3", l2)
	_, _, ok3, _ := mf.ReadLine()
	assert.False(t, ok3)
}

func TestMacroFilterAlternateModeBareIdent(t *testing.T) {
	def := &MacroDef{Name: "m", Lines: []string{"mov dst, src"}}
	mf := NewMacroFilter(def, map[string]string{"dst": "v0", "src": "v1"}, 0, true, srcpos.Pos{})
	l, _, ok, _ := mf.ReadLine()
	require.True(t, ok)
	assert.Equal(t, "mov v0, v1", l)
}

func TestMacroFilterLocalDeclaration(t *testing.T) {
	def := &MacroDef{Name: "m", Lines: []string{"x"}}
	mf := NewMacroFilter(def, nil, 0, true, srcpos.Pos{})
	seq := 0
	mf.DeclareLocal([]string{"x"}, func() int { seq++; return seq })
	l, _, ok, _ := mf.ReadLine()
	require.True(t, ok)
	assert.Equal(t, ".LL1", l)
}

func TestParseArgsQuotedAndPlain(t *testing.T) {
	args := ParseArgs(`v0, "a b", v1`, false)
	require.Len(t, args, 3)
	assert.Equal(t, "v0", args[0])
	assert.Equal(t, `"a b"`, args[1])
	assert.Equal(t, "v1", args[2])
}

func TestParseArgsAlternateAngleQuote(t *testing.T) {
	args := ParseArgs(`<a, b>, v1`, true)
	require.Len(t, args, 2)
	assert.Equal(t, "<a, b>", args[0])
}

func TestRepeatFilterReplaysNTimes(t *testing.T) {
	rf := NewRepeatFilter([]string{"nop"}, 3, srcpos.Pos{File: "t.s", Line: 1})
	count := 0
	for {
		_, _, ok, _ := rf.ReadLine()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 3, count)
}

func TestIRPFilterSubstitutesEachValue(t *testing.T) {
	f := NewIRPFilter([]string{`mov \x, v0`}, "x", []string{"v1", "v2"}, srcpos.Pos{})
	l1, _, ok1, _ := f.ReadLine()
	require.True(t, ok1)
	assert.Equal(t, "mov v1, v0", l1)
	l2, _, ok2, _ := f.ReadLine()
	require.True(t, ok2)
	assert.Equal(t, "mov v2, v0", l2)
	_, _, ok3, _ := f.ReadLine()
	assert.False(t, ok3)
}

func TestIRPCFilterIteratesCharacters(t *testing.T) {
	f := NewIRPCFilter([]string{`db \c`}, "c", "ab", srcpos.Pos{})
	l1, _, _, _ := f.ReadLine()
	assert.Equal(t, "db a", l1)
	l2, _, _, _ := f.ReadLine()
	assert.Equal(t, "db b", l2)
}

func TestForFilterStopsWhenConditionFalse(t *testing.T) {
	i := 0
	cond := func() (bool, error) { return i < 2, nil }
	next := func() error { i++; return nil }
	f := NewForFilter([]string{"nop"}, cond, next, srcpos.Pos{})
	count := 0
	for {
		_, _, ok, err := f.ReadLine()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

func TestStackPopsExhaustedFilters(t *testing.T) {
	s := NewStack()
	rf := NewRepeatFilter([]string{"a"}, 1, srcpos.Pos{File: "r", Line: 1})
	s.PushReplay(rf)
	sf := NewStreamFilter("base.s", strings.NewReader("b\n"), diag.NewSink(false))
	s.PushInclude(sf)

	line1, _, ok1, _ := s.ReadLine()
	require.True(t, ok1)
	assert.Equal(t, "b", line1, "the most recently pushed filter (sf) is on top")

	line2, _, ok2, _ := s.ReadLine()
	require.True(t, ok2)
	assert.Equal(t, "a", line2, "once sf is exhausted the stack falls back to rf")

	_, _, ok3, _ := s.ReadLine()
	assert.False(t, ok3)
}

func TestStackEnforcesIncludeDepth(t *testing.T) {
	s := NewStack()
	for i := 0; i < MaxIncludeDepth; i++ {
		require.NoError(t, s.PushInclude(NewStreamFilter("a", strings.NewReader(""), diag.NewSink(false))))
	}
	err := s.PushInclude(NewStreamFilter("a", strings.NewReader(""), diag.NewSink(false)))
	assert.Error(t, err)
}
