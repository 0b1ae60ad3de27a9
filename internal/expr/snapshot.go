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

import "github.com/clrx-go/gcnasm/internal/srcpos"

// Snapshot deep-copies e into a detached, already-evaluated expression,
// implementing the `.eqv` semantics of spec.md §4.2: "base expressions
// deep-copy themselves ... at first use. Snapshots evaluate once and then
// act as plain symbols."
//
// The snapshot is taken at the moment this function is called — which
// DESIGN.md records as "first use", matching AsmExpression.cpp's timing
// exactly (see spec.md §9's open question about baseExpr timing).
func (e *Expr) Snapshot() (*Expr, Value, Status) {
	v, status := e.Eval()
	clone := &Expr{
		Ops:       []Op{OpPushArg},
		OpPos:     []srcpos.Pos{e.SourcePos},
		Args:      []Arg{{Value: v, Resolved: status == StatusOK}},
		BaseExpr:  false,
		SourcePos: e.SourcePos,
	}
	if status != StatusOK {
		clone.PendingCount = 1
	}
	return clone, v, status
}
