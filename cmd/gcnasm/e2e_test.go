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

package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefSymsDefaultsToOne(t *testing.T) {
	got, err := parseDefSyms([]string{"FOO", "BAR=42"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "FOO", got[0].Name)
	assert.Equal(t, int64(1), got[0].Value)
	assert.Equal(t, "BAR", got[1].Name)
	assert.Equal(t, int64(42), got[1].Value)
}

func TestParseDefSymsRejectsMissingName(t *testing.T) {
	_, err := parseDefSyms([]string{"=5"})
	assert.Error(t, err)
}

func TestParseFormatKindRejectsUnknown(t *testing.T) {
	_, err := parseFormatKind("elf64")
	assert.Error(t, err)
}

func TestFileOpenerFallsBackToIncludePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "included.s")
	require.NoError(t, os.WriteFile(path, []byte(".byte 1\n"), 0o644))

	opener := fileOpener([]string{dir})
	r, err := opener("included.s")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, ".byte 1\n", string(data))
}

// runCLI executes the root command against src (read as stdin) with the
// given extra flags, returning stdout and any error.
func runCLI(t *testing.T, src string, flags ...string) ([]byte, error) {
	t.Helper()

	oldStdin := os.Stdin
	stdinR, stdinW, err := os.Pipe()
	require.NoError(t, err)
	_, err = stdinW.WriteString(src)
	require.NoError(t, err)
	require.NoError(t, stdinW.Close())
	os.Stdin = stdinR
	defer func() { os.Stdin = oldStdin }()

	oldStdout := os.Stdout
	stdoutR, stdoutW, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = stdoutW
	defer func() { os.Stdout = oldStdout }()

	cmd := newCommand()
	cmd.SetArgs(flags)
	runErr := cmd.Execute()

	require.NoError(t, stdoutW.Close())
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, stdoutR)
	return buf.Bytes(), runErr
}

func TestCLIAssemblesByteDirectiveToStdout(t *testing.T) {
	out, err := runCLI(t, ".byte 1, 2, 3\n")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestCLIDefineFlagSeedsSymbol(t *testing.T) {
	out, err := runCLI(t, ".long VALUE\n", "-D", "VALUE=7")
	require.NoError(t, err)
	assert.Equal(t, []byte{7, 0, 0, 0}, out)
}

func TestCLINoOutputSkipsBinaryEmission(t *testing.T) {
	out, err := runCLI(t, ".byte 1\n", "-n")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestCLIRejectsUnknownFormat(t *testing.T) {
	_, err := runCLI(t, ".byte 1\n", "-o", "elf64")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown output format"))
}
