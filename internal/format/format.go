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

// Package format defines the thin external-collaborator contract spec.md
// §1 scopes out of the core: "The container-format writers (AMD/ROCm/
// Gallium ELF layout, metadata, kernel config blobs)." Only the interface
// the driver consumes, plus small stub implementations enough to exercise
// it end to end, live here.
package format

import "github.com/clrx-go/gcnasm/internal/section"

// Kind enumerates the binary container formats spec.md §1/§6 names.
type Kind int

const (
	KindRawCode Kind = iota
	KindAMD
	KindAMDCL2
	KindGallium
	KindROCm
)

func (k Kind) String() string {
	switch k {
	case KindRawCode:
		return "raw"
	case KindAMD:
		return "amd"
	case KindAMDCL2:
		return "amdcl2"
	case KindGallium:
		return "gallium"
	case KindROCm:
		return "rocm"
	default:
		return "unknown"
	}
}

// Handler is the contract the driver's end-of-assembly finalization step
// (spec.md §4.6 step 6, "ask the format handler to finalize the binary")
// consumes.
type Handler interface {
	Kind() Kind
	// AcceptsKernel reports whether this format allows defining a kernel
	// code region at all (spec.md §7's Format diagnostic kind cites
	// "defining a kernel in raw-code output" as the canonical rejection).
	AcceptsKernel() bool
	// SupportsSectionDiffs answers spec.md §9's open question: whether
	// cross-section relative-value diffs resolve immediately or must stay
	// deferred until this format's final layout pass fixes every section's
	// address. Decided in DESIGN.md: true for multi-section-loadable
	// formats (AMDCL2/ROCm/Gallium), false for single-blob formats
	// (raw/AMD).
	SupportsSectionDiffs() bool
	// Finalize serializes the accumulated sections into the container's
	// binary layout.
	Finalize(sections []*section.Section) ([]byte, error)
}
