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

package expr

import (
	"testing"

	"github.com/clrx-go/gcnasm/internal/srcpos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noSymbols(name string) (Value, bool, func(Occurrence)) {
	return Value{}, false, nil
}

func TestFastPathLiteralChain(t *testing.T) {
	b := NewBuilder(noSymbols)
	e, n, err := b.Parse("1+2-3+10", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(10), v.V)
}

func TestOperatorPrecedence(t *testing.T) {
	b := NewBuilder(noSymbols)
	e, _, err := b.Parse("2+3*4", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(14), v.V)
}

func TestParentheses(t *testing.T) {
	b := NewBuilder(noSymbols)
	e, _, err := b.Parse("(2+3)*4", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(20), v.V)
}

func TestTernary(t *testing.T) {
	b := NewBuilder(noSymbols)
	e, _, err := b.Parse("1?2:3", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(2), v.V)
}

func TestDivisionByZeroIsError(t *testing.T) {
	b := NewBuilder(noSymbols)
	e, _, err := b.Parse("5/0", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	_, status := e.Eval()
	assert.Equal(t, StatusError, status)
	require.Len(t, e.Diags, 1)
	assert.Equal(t, "Division by zero", e.Diags[0].Message)
}

func TestShiftOutOfRangeWarns(t *testing.T) {
	b := NewBuilder(noSymbols)
	e, _, err := b.Parse("1<<64", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(0), v.V)
	require.Len(t, e.Diags, 1)
	assert.True(t, e.Diags[0].Warning)
}

func TestForwardSymbolOccurrenceResolves(t *testing.T) {
	var occ Occurrence
	lookup := func(name string) (Value, bool, func(Occurrence)) {
		if name == "L0" {
			return Value{}, false, func(o Occurrence) { occ = o }
		}
		return Absolute(0), true, nil
	}
	b := NewBuilder(lookup)
	e, _, err := b.Parse("L0-0", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	assert.True(t, e.Unresolved())

	occ.Expr.ResolveArg(occ.ArgIndex, Absolute(4))
	assert.False(t, e.Unresolved())
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.Equal(t, uint64(4), v.V)
}

func TestRelativeSubtractionSameSectionIsAbsolute(t *testing.T) {
	lookup := func(name string) (Value, bool, func(Occurrence)) {
		return Value{V: 4, Rel: []Relative{{Section: 1, Multiplier: 1}}}, true, nil
	}
	b := NewBuilder(lookup)
	e, _, err := b.Parse("L0 - here", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.True(t, v.IsAbsolute())
	assert.Equal(t, uint64(0), v.V)
}

func TestBitwiseIdentityOnRelative(t *testing.T) {
	lookup := func(name string) (Value, bool, func(Occurrence)) {
		return Value{V: 4, Rel: []Relative{{Section: 1, Multiplier: 1}}}, true, nil
	}
	b := NewBuilder(lookup)
	e, _, err := b.Parse("sym & 0xFFFFFFFFFFFFFFFF", srcpos.Pos{File: "a.s", Line: 1, Col: 1})
	require.NoError(t, err)
	v, status := e.Eval()
	require.Equal(t, StatusOK, status)
	assert.False(t, v.IsAbsolute())
}
