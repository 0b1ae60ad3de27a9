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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clrx-go/gcnasm/internal/section"
)

func TestRawHandlerRejectsKernelConfig(t *testing.T) {
	sec := section.New("config", section.TypeConfig, 0)
	_, err := RawHandler{}.Finalize([]*section.Section{sec})
	assert.Error(t, err)
}

func TestRawHandlerConcatenatesSections(t *testing.T) {
	a := section.New("text", section.TypeCode, section.FlagAddressable)
	a.Content = []byte{1, 2, 3}
	b := section.New("data", section.TypeData, 0)
	b.Content = []byte{4, 5}
	out, err := RawHandler{}.Finalize([]*section.Section{a, b})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, out)
}

func TestAMDCL2HandlerAcceptsKernelAndSupportsSectionDiffs(t *testing.T) {
	h := AMDCL2Handler{}
	assert.True(t, h.AcceptsKernel())
	assert.True(t, h.SupportsSectionDiffs())
}

func TestRawHandlerDoesNotSupportSectionDiffs(t *testing.T) {
	assert.False(t, RawHandler{}.SupportsSectionDiffs())
}

func TestByKindResolvesEveryFormat(t *testing.T) {
	for _, k := range []Kind{KindRawCode, KindAMD, KindAMDCL2, KindGallium, KindROCm} {
		h, err := ByKind(k)
		require.NoError(t, err)
		assert.Equal(t, k, h.Kind())
	}
}

func TestListingProducesNonEmptyOutput(t *testing.T) {
	sec := section.New("text", section.TypeCode, section.FlagAddressable)
	sec.Content = []byte{0x7f, 0x00, 0x00, 0x01}
	out, err := Listing([]*section.Section{sec})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
