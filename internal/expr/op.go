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

// Op enumerates expression operators, following the postfix operator list
// described in spec.md §3/§4.2. OpPushArg is not a real operator: it marks
// "consume the next argument slot", mirroring the original's ARG_VALUE /
// ARG_SYMBOL markers interleaved with real operators in the ops array.
type Op int

const (
	OpPushArg Op = iota

	OpNeg    // unary -
	OpBitNot // unary ~
	OpLogNot // unary !

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpSignedDiv
	OpMod
	OpSignedMod

	OpAnd
	OpOr
	OpXor
	OpOrNot

	OpLogAnd
	OpLogOr

	OpShl
	OpShr
	OpSar // signed (arithmetic) shift right

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpSignedLt
	OpSignedLe
	OpSignedGt
	OpSignedGe

	OpChoice // ternary ?:
)

// priority implements spec.md §4.2's shunting-yard priority table. Unary
// operators sit one priority band above their binary counterparts.
func (o Op) priority() int {
	switch o {
	case OpChoice:
		return 0
	case OpLogAnd, OpLogOr:
		return 1
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpSignedLt, OpSignedLe, OpSignedGt, OpSignedGe:
		return 2
	case OpAdd, OpSub:
		return 3
	case OpAnd, OpOr, OpXor, OpOrNot:
		return 4
	case OpMul, OpDiv, OpSignedDiv, OpMod, OpSignedMod, OpShl, OpShr, OpSar:
		return 5
	case OpNeg, OpBitNot, OpLogNot:
		return 6 // one band above the highest binary band
	default:
		return 0
	}
}

func (o Op) isUnary() bool {
	switch o {
	case OpNeg, OpBitNot, OpLogNot:
		return true
	default:
		return false
	}
}

func (o Op) arity() int {
	switch {
	case o == OpPushArg:
		return 0
	case o == OpChoice:
		return 3
	case o.isUnary():
		return 1
	default:
		return 2
	}
}
