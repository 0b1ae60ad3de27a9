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

package symbol

import (
	"testing"

	"github.com/clrx-go/gcnasm/internal/expr"
	"github.com/clrx-go/gcnasm/internal/srcpos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsingScopeResolution(t *testing.T) {
	global := NewScope("", nil)
	ns := global.OpenChild("ns")
	ns.Symbols["foo"] = &Symbol{Name: "foo", Kind: KindValue, Value: expr.Absolute(42), Resolved: true}

	user := global.OpenChild("user")
	user.Use(ns)

	s, ok := user.Resolve([]string{"foo"})
	require.True(t, ok)
	assert.Equal(t, uint64(42), s.Value.V)
}

func TestQualifiedLookup(t *testing.T) {
	global := NewScope("", nil)
	a := global.OpenChild("A")
	b := a.OpenChild("B")
	b.Symbols["C"] = &Symbol{Name: "C", Kind: KindValue, Value: expr.Absolute(7), Resolved: true}

	s, ok := global.Resolve(ParseQualified("A::B::C"))
	require.True(t, ok)
	assert.Equal(t, uint64(7), s.Value.V)
}

func TestOnceOnlyRedefinitionFails(t *testing.T) {
	s := &Symbol{Name: "L", OnceOnly: true}
	require.NoError(t, s.Redefine(expr.Absolute(1)))
	err := s.Redefine(expr.Absolute(2))
	assert.Error(t, err)
}

func TestLocalLabelsForwardThenBackward(t *testing.T) {
	global := NewScope("", nil)
	ll := NewLocalLabels(global)

	fwd := ll.Forward(1)
	assert.False(t, fwd.Resolved)

	ll.Define(1, expr.Absolute(100))
	assert.True(t, fwd.Resolved, "defining label 1 should resolve the pending forward reference")

	back, ok := ll.Backward(1)
	require.True(t, ok)
	assert.Equal(t, uint64(100), back.Value.V)

	_, stillForward := global.Symbols["1f"]
	assert.False(t, stillForward, "the forward entry should be cleared after resolution")
}

func TestCloneRegistryPreservesPendingExprBound(t *testing.T) {
	var reg CloneRegistry
	pending := expr.New([]expr.Op{expr.OpPushArg}, make([]srcpos.Pos, 1), []expr.Arg{{Resolved: false}}, false, srcpos.Pos{})
	s := &Symbol{Name: "x", Kind: KindExprBound, Expr: pending}

	cloned := reg.MaybeClone(s)
	require.True(t, cloned)
	assert.Nil(t, s.Expr, "live symbol should be freed for a new definition")
	require.Len(t, reg.Clones(), 1)
	assert.Same(t, pending, reg.Clones()[0].Expr, "clone should keep the original pending expression")
}
