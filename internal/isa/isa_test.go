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

package isa

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupKnownDevice(t *testing.T) {
	d, ok := Lookup("tahiti")
	require.True(t, ok)
	assert.Equal(t, 1, d.Generation)
}

func TestLookupUnknownDevice(t *testing.T) {
	_, ok := Lookup("nonexistent")
	assert.False(t, ok)
}

func TestDefaultDeviceIsNewestGeneration(t *testing.T) {
	d := DefaultDevice()
	assert.Equal(t, Devices[len(Devices)-1].Name, d.Name)
}
