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
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/clrx-go/gcnasm/internal/section"
)

// RawHandler emits every section's bytes, concatenated in order, with no
// container at all, per spec.md §1's "raw code" format.
type RawHandler struct{}

func (RawHandler) Kind() Kind                { return KindRawCode }
func (RawHandler) AcceptsKernel() bool       { return false }
func (RawHandler) SupportsSectionDiffs() bool { return false }

func (RawHandler) Finalize(sections []*section.Section) ([]byte, error) {
	for _, s := range sections {
		if s.Type == section.TypeConfig {
			return nil, fmt.Errorf("raw format cannot emit a kernel config region")
		}
	}
	var buf bytes.Buffer
	for _, s := range sections {
		buf.Write(s.Content)
	}
	return buf.Bytes(), nil
}

// AMDHandler emits the legacy AMD Catalyst container: a small section
// table followed by each section's bytes. Real ELF/metadata layout is out
// of scope per spec.md §1; this is a faithful-enough stub to exercise the
// Handler contract end to end.
type AMDHandler struct{}

func (AMDHandler) Kind() Kind                { return KindAMD }
func (AMDHandler) AcceptsKernel() bool       { return false }
func (AMDHandler) SupportsSectionDiffs() bool { return false }

func (AMDHandler) Finalize(sections []*section.Section) ([]byte, error) {
	return writeSectionTable(sections)
}

// AMDCL2Handler emits the AMD OpenCL 2 container, which carries multiple
// independently-loaded sections (kernel code plus per-kernel config
// blobs) whose relative layout must be fixed before any inter-section
// offset resolves — hence SupportsSectionDiffs is true, per DESIGN.md's
// Open Question decision.
type AMDCL2Handler struct{}

func (AMDCL2Handler) Kind() Kind                { return KindAMDCL2 }
func (AMDCL2Handler) AcceptsKernel() bool       { return true }
func (AMDCL2Handler) SupportsSectionDiffs() bool { return true }

func (AMDCL2Handler) Finalize(sections []*section.Section) ([]byte, error) {
	return writeSectionTable(sections)
}

// GalliumHandler emits the Gallium container (Mesa's GPU-compute ABI).
type GalliumHandler struct{}

func (GalliumHandler) Kind() Kind                { return KindGallium }
func (GalliumHandler) AcceptsKernel() bool       { return true }
func (GalliumHandler) SupportsSectionDiffs() bool { return true }

func (GalliumHandler) Finalize(sections []*section.Section) ([]byte, error) {
	return writeSectionTable(sections)
}

// ROCmHandler emits the ROCm container.
type ROCmHandler struct{}

func (ROCmHandler) Kind() Kind                { return KindROCm }
func (ROCmHandler) AcceptsKernel() bool       { return true }
func (ROCmHandler) SupportsSectionDiffs() bool { return true }

func (ROCmHandler) Finalize(sections []*section.Section) ([]byte, error) {
	return writeSectionTable(sections)
}

// writeSectionTable is the shared stub layout for every non-raw format: a
// fixed-width header per section (name length, name, content length)
// followed by content, good enough to round-trip through the Handler
// contract without claiming bit-exact compatibility with any real
// container spec (out of scope per spec.md §1).
func writeSectionTable(sections []*section.Section) ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(sections))); err != nil {
		return nil, err
	}
	for _, s := range sections {
		name := []byte(s.Name)
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(name))); err != nil {
			return nil, err
		}
		buf.Write(name)
		if err := binary.Write(&buf, binary.LittleEndian, uint32(len(s.Content))); err != nil {
			return nil, err
		}
		buf.Write(s.Content)
	}
	return buf.Bytes(), nil
}

// ByKind returns the stub handler for k.
func ByKind(k Kind) (Handler, error) {
	switch k {
	case KindRawCode:
		return RawHandler{}, nil
	case KindAMD:
		return AMDHandler{}, nil
	case KindAMDCL2:
		return AMDCL2Handler{}, nil
	case KindGallium:
		return GalliumHandler{}, nil
	case KindROCm:
		return ROCmHandler{}, nil
	default:
		return nil, fmt.Errorf("unknown format kind %d", k)
	}
}
