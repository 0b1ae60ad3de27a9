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

// Package srcpos tracks (file, line, column) provenance for every byte of
// assembler output, plus the chain of enclosing include/macro/rept/for/expr
// frames needed to render a diagnostic source chain.
package srcpos

import "fmt"

// FrameKind names the kind of source-position frame enclosing a position.
type FrameKind int

const (
	// FrameInclude marks a frame pushed by .include.
	FrameInclude FrameKind = iota
	// FrameMacro marks a frame pushed by a macro expansion.
	FrameMacro
	// FrameRepeat marks a frame pushed by .rept/.irp/.irpc.
	FrameRepeat
	// FrameFor marks a frame pushed by .for/.while.
	FrameFor
	// FrameExpr marks a frame pushed while evaluating an expression.
	FrameExpr
)

// Pos is a single (file, line, column) location.
type Pos struct {
	File string
	Line int
	Col  int
}

func (p Pos) String() string {
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// Frame is one link of the enclosing-context chain attached to a Pos.
type Frame struct {
	Kind FrameKind
	At   Pos
	Name string // macro/repeat name, empty for plain include
}

// Chain is the full source-position chain for one diagnostic: the innermost
// position first, then each enclosing frame outward.
type Chain struct {
	Pos    Pos
	Frames []Frame
}

// String renders "<source-chain>: " in the format spec.md §6 requires,
// without the trailing severity/message (the caller appends those).
func (c Chain) String() string {
	s := c.Pos.String()
	for _, f := range c.Frames {
		s += " (" + frameLabel(f.Kind) + " at " + f.At.String() + ")"
	}
	return s
}

func frameLabel(k FrameKind) string {
	switch k {
	case FrameInclude:
		return "included from"
	case FrameMacro:
		return "macro expanded from"
	case FrameRepeat:
		return "repeat expanded from"
	case FrameFor:
		return "for-loop expanded from"
	case FrameExpr:
		return "expression evaluated from"
	default:
		return "from"
	}
}

// chunk is a run of consecutive output offsets sharing the same Pos and
// Frame stack; offsets inside a chunk advance column by offset-chunk.Start.
type chunk struct {
	start int
	pos   Pos
	frame []Frame
}

// Handler records a compact, run-length-encoded offset -> Chain mapping for
// one section's content buffer. A naive one-entry-per-byte map would be
// wasteful: most runs of bytes (e.g. bytes inside one .byte directive, or an
// instruction's encoding) share one source position.
type Handler struct {
	chunks []chunk
}

// NewHandler returns an empty position handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Record associates offset (and every following offset up to the next
// Record call) with pos and the given enclosing frame chain. Calls must be
// made in non-decreasing offset order.
func (h *Handler) Record(offset int, pos Pos, frames []Frame) {
	if n := len(h.chunks); n > 0 {
		last := h.chunks[n-1]
		if last.start == offset {
			h.chunks[n-1] = chunk{start: offset, pos: pos, frame: frames}
			return
		}
		if last.pos == pos && sameFrames(last.frame, frames) {
			return // extend the previous chunk, nothing to add
		}
	}
	h.chunks = append(h.chunks, chunk{start: offset, pos: pos, frame: frames})
}

// Lookup returns the Chain recorded for offset, or the zero Chain if offset
// precedes the first recorded chunk.
func (h *Handler) Lookup(offset int) (Chain, bool) {
	// chunks are recorded in increasing offset order; binary search the
	// last chunk whose start <= offset.
	lo, hi := 0, len(h.chunks)-1
	found := -1
	for lo <= hi {
		mid := (lo + hi) / 2
		if h.chunks[mid].start <= offset {
			found = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	if found < 0 {
		return Chain{}, false
	}
	c := h.chunks[found]
	delta := offset - c.start
	pos := c.pos
	pos.Col += delta
	return Chain{Pos: pos, Frames: c.frame}, true
}

// Len reports how many chunks are stored; exposed for tests that assert the
// compact encoding doesn't degrade to one chunk per byte.
func (h *Handler) Len() int { return len(h.chunks) }

func sameFrames(a, b []Frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
