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

// Status reports the outcome of evaluating an expression.
type Status int

const (
	StatusOK Status = iota
	StatusPending  // one or more argument slots are still unresolved
	StatusDeferred // relative arithmetic that can only be resolved at layout time
	StatusError    // a hard arithmetic/type error (division by zero, etc.)
)

// Diag is a single diagnostic raised during evaluation, carrying the
// operator's source position per spec.md §4.2's per-operator message
// positions.
type Diag struct {
	OpIndex int
	Warning bool
	Message string
}

type cell = Value

// Eval runs the stack machine described in spec.md §4.2 over e's postfix
// operator list. It returns the resulting value and status; diagnostics
// raised along the way are appended to e's Diags for the caller to report
// (division by zero is always an error, shift-out-of-range is always a
// warning, per spec.md §7).
func (e *Expr) Eval() (Value, Status) {
	e.Diags = e.Diags[:0]
	if e.PendingCount > 0 {
		return Value{}, StatusPending
	}

	var stack []cell
	argIdx := 0
	deferred := false

	push := func(v Value) { stack = append(stack, v) }
	pop := func() cell {
		n := len(stack)
		v := stack[n-1]
		stack = stack[:n-1]
		return v
	}

	for i, op := range e.Ops {
		if op == OpPushArg {
			push(e.Args[argIdx].Value)
			argIdx++
			continue
		}
		switch op.arity() {
		case 1:
			a := pop()
			v, st := e.evalUnary(op, a, i)
			if st == StatusError {
				return Value{}, st
			}
			if st == StatusDeferred {
				deferred = true
			}
			push(v)
		case 2:
			b := pop()
			a := pop()
			v, st := e.evalBinary(op, a, b, i)
			if st == StatusError {
				return Value{}, st
			}
			if st == StatusDeferred {
				deferred = true
			}
			push(v)
		case 3:
			c := pop()
			b := pop()
			a := pop()
			if !a.IsAbsolute() {
				e.addDiag(i, false, "ternary condition must be absolute")
				return Value{}, StatusError
			}
			if a.V != 0 {
				push(b)
			} else {
				push(c)
			}
		}
	}
	if len(stack) != 1 {
		return Value{}, StatusError
	}
	result := stack[0]
	if deferred {
		return result, StatusDeferred
	}
	return result, StatusOK
}

func (e *Expr) addDiag(opIndex int, warning bool, msg string) {
	e.Diags = append(e.Diags, Diag{OpIndex: opIndex, Warning: warning, Message: msg})
}

func (e *Expr) evalUnary(op Op, a cell, opIndex int) (Value, Status) {
	switch op {
	case OpNeg:
		return Value{V: -a.V, Rel: scaleRel(a.Rel, -1)}, StatusOK
	case OpBitNot:
		if !a.IsAbsolute() {
			e.addDiag(opIndex, false, "bitwise NOT of relative value")
			return Value{}, StatusError
		}
		return Absolute(^a.V), StatusOK
	case OpLogNot:
		if !a.IsAbsolute() {
			e.addDiag(opIndex, false, "logical NOT of relative value")
			return Value{}, StatusError
		}
		if a.V == 0 {
			return Absolute(^uint64(0)), StatusOK
		}
		return Absolute(0), StatusOK
	}
	return Value{}, StatusError
}

// isIdentityOrZero reports whether an absolute constant acts as the
// identity (all-ones) or annihilator (zero) for bitwise AND/OR, per
// spec.md §4.2's "allowed for relatives only when the absolute operand is
// an identity or zeroing constant" rule.
func isIdentityOrZero(v uint64) (zero, allOnes bool) {
	return v == 0, v == ^uint64(0)
}

func (e *Expr) evalBinary(op Op, a, b cell, opIndex int) (Value, Status) {
	switch op {
	case OpAdd:
		return Value{V: a.V + b.V, Rel: addRel(a.Rel, b.Rel, 1)}, StatusOK
	case OpSub:
		return Value{V: a.V - b.V, Rel: addRel(a.Rel, b.Rel, -1)}, StatusOK
	case OpMul:
		return e.evalMul(a, b, opIndex)
	case OpDiv, OpSignedDiv:
		return e.evalDiv(op, a, b, opIndex)
	case OpMod, OpSignedMod:
		return e.evalMod(op, a, b, opIndex)
	case OpAnd:
		return e.evalBitwiseAndOr(a, b, opIndex, true)
	case OpOr:
		return e.evalBitwiseAndOr(a, b, opIndex, false)
	case OpXor:
		if !a.IsAbsolute() || !b.IsAbsolute() {
			e.addDiag(opIndex, false, "XOR of relative value")
			return Value{}, StatusError
		}
		return Absolute(a.V ^ b.V), StatusOK
	case OpOrNot:
		if !a.IsAbsolute() || !b.IsAbsolute() {
			e.addDiag(opIndex, false, "OR-NOT of relative value")
			return Value{}, StatusError
		}
		return Absolute(a.V | ^b.V), StatusOK
	case OpLogAnd:
		if !a.IsAbsolute() || !b.IsAbsolute() {
			e.addDiag(opIndex, false, "logical AND of relative value")
			return Value{}, StatusError
		}
		return boolVal(a.V != 0 && b.V != 0), StatusOK
	case OpLogOr:
		if !a.IsAbsolute() || !b.IsAbsolute() {
			e.addDiag(opIndex, false, "logical OR of relative value")
			return Value{}, StatusError
		}
		return boolVal(a.V != 0 || b.V != 0), StatusOK
	case OpShl, OpShr, OpSar:
		return e.evalShift(op, a, b, opIndex)
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe, OpSignedLt, OpSignedLe, OpSignedGt, OpSignedGe:
		return e.evalCompare(op, a, b, opIndex)
	}
	return Value{}, StatusError
}

func boolVal(b bool) Value {
	if b {
		return Absolute(^uint64(0))
	}
	return Absolute(0)
}

func (e *Expr) evalMul(a, b cell, opIndex int) (Value, Status) {
	if a.IsAbsolute() && b.IsAbsolute() {
		return Absolute(a.V * b.V), StatusOK
	}
	if !a.IsAbsolute() && !b.IsAbsolute() {
		// Two relative operands: only resolvable if their relocation
		// footprints live in one shift-resolvable "relocation space".
		// Deferred to final layout, per spec.md §4.2.
		return Value{}, StatusDeferred
	}
	// exactly one side relative: scale its multipliers by the scalar.
	if a.IsAbsolute() {
		return Value{V: a.V * b.V, Rel: scaleRel(b.Rel, int64(a.V))}, StatusOK
	}
	return Value{V: a.V * b.V, Rel: scaleRel(a.Rel, int64(b.V))}, StatusOK
}

func (e *Expr) evalDiv(op Op, a, b cell, opIndex int) (Value, Status) {
	if !a.IsAbsolute() || !b.IsAbsolute() {
		return Value{}, StatusDeferred
	}
	if b.V == 0 {
		e.addDiag(opIndex, false, "Division by zero")
		return Absolute(0), StatusError
	}
	if op == OpSignedDiv {
		return Absolute(uint64(int64(a.V) / int64(b.V))), StatusOK
	}
	return Absolute(a.V / b.V), StatusOK
}

func (e *Expr) evalMod(op Op, a, b cell, opIndex int) (Value, Status) {
	if !a.IsAbsolute() || !b.IsAbsolute() {
		return Value{}, StatusDeferred
	}
	if b.V == 0 {
		e.addDiag(opIndex, false, "Division by zero")
		return Absolute(0), StatusError
	}
	if op == OpSignedMod {
		return Absolute(uint64(int64(a.V) % int64(b.V))), StatusOK
	}
	return Absolute(a.V % b.V), StatusOK
}

func (e *Expr) evalBitwiseAndOr(a, b cell, opIndex int, isAnd bool) (Value, Status) {
	if a.IsAbsolute() && b.IsAbsolute() {
		if isAnd {
			return Absolute(a.V & b.V), StatusOK
		}
		return Absolute(a.V | b.V), StatusOK
	}
	// exactly one (or both) relative: only ok when the absolute side is
	// the identity or annihilator constant for the operator.
	abs, rel, absIsA := a, b, true
	if a.IsAbsolute() {
		abs, rel = a, b
	} else if b.IsAbsolute() {
		abs, rel, absIsA = b, a, false
	} else {
		e.addDiag(opIndex, false, "bitwise operation between two relative values")
		return Value{}, StatusError
	}
	_ = absIsA
	zero, allOnes := isIdentityOrZero(abs.V)
	if isAnd {
		if zero {
			return Absolute(0), StatusOK
		}
		if allOnes {
			return rel, StatusOK
		}
	} else {
		if allOnes {
			return Absolute(^uint64(0)), StatusOK
		}
		if zero {
			return rel, StatusOK
		}
	}
	e.addDiag(opIndex, false, "illegal bitwise operation on relative value")
	return Value{}, StatusError
}

func (e *Expr) evalShift(op Op, a, b cell, opIndex int) (Value, Status) {
	if !a.IsAbsolute() || !b.IsAbsolute() {
		return Value{}, StatusDeferred
	}
	count := b.V
	if count >= 64 {
		e.addDiag(opIndex, true, "Shift count out of range (between 0 and 63)")
		if op == OpSar && int64(a.V) < 0 {
			return Absolute(^uint64(0)), StatusOK
		}
		return Absolute(0), StatusOK
	}
	switch op {
	case OpShl:
		return Absolute(a.V << count), StatusOK
	case OpShr:
		return Absolute(a.V >> count), StatusOK
	case OpSar:
		return Absolute(uint64(int64(a.V) >> count)), StatusOK
	}
	return Value{}, StatusError
}

func (e *Expr) evalCompare(op Op, a, b cell, opIndex int) (Value, Status) {
	if !sameFootprint(a.Rel, b.Rel) {
		e.addDiag(opIndex, false, "comparison of values with different relocation footprints")
		return Value{}, StatusError
	}
	switch op {
	case OpEq:
		return boolVal(a.V == b.V), StatusOK
	case OpNe:
		return boolVal(a.V != b.V), StatusOK
	case OpLt:
		return boolVal(a.V < b.V), StatusOK
	case OpLe:
		return boolVal(a.V <= b.V), StatusOK
	case OpGt:
		return boolVal(a.V > b.V), StatusOK
	case OpGe:
		return boolVal(a.V >= b.V), StatusOK
	case OpSignedLt:
		return boolVal(int64(a.V) < int64(b.V)), StatusOK
	case OpSignedLe:
		return boolVal(int64(a.V) <= int64(b.V)), StatusOK
	case OpSignedGt:
		return boolVal(int64(a.V) > int64(b.V)), StatusOK
	case OpSignedGe:
		return boolVal(int64(a.V) >= int64(b.V)), StatusOK
	}
	return Value{}, StatusError
}

// sameFootprint reports whether a and b carry the same relocation
// multipliers, i.e. a-b would be absolute.
func sameFootprint(a, b []Relative) bool {
	return len(addRel(a, b, -1)) == 0
}
