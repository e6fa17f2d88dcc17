// Copyright 2025 The axfor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Lifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "heads")

	code, _, stderr := runCLI(t, "-dir", dir, "-create", "add", "main", "feature/x", "main")
	require.Equal(t, 0, code, stderr)

	code, stdout, _ := runCLI(t, "-dir", dir, "list")
	require.Equal(t, 0, code)
	assert.Equal(t, "feature/x\nmain\n", stdout)

	code, stdout, _ = runCLI(t, "-dir", dir, "is-head", "main", "nope")
	assert.Equal(t, 1, code)
	assert.Equal(t, "main\ttrue\nnope\tfalse\n", stdout)

	code, _, _ = runCLI(t, "-dir", dir, "remove", "main", "never-added")
	require.Equal(t, 0, code)

	code, stdout, _ = runCLI(t, "-dir", dir, "is-head", "feature/x")
	assert.Equal(t, 0, code)
	assert.Equal(t, "feature/x\ttrue\n", stdout)

	code, stdout, _ = runCLI(t, "-dir", dir, "list")
	require.Equal(t, 0, code)
	assert.Equal(t, "feature/x\n", stdout)
}

func TestRun_Usage(t *testing.T) {
	dir := t.TempDir()

	tests := [][]string{
		{},
		{"-dir", dir},
		{"-dir", dir, "frobnicate"},
		{"-dir", dir, "add"},
		{"-dir", dir, "list", "extra"},
		{"-no-such-flag"},
	}
	for _, args := range tests {
		code, _, stderr := runCLI(t, args...)
		assert.Equal(t, 2, code, "%v", args)
		assert.Contains(t, stderr, "usage", "%v", args)
	}
}

func TestRun_OpenFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")

	code, _, stderr := runCLI(t, "-dir", missing, "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "not a directory")

	code, _, stderr = runCLI(t, "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "store.dir is required")
}

func TestRun_HashKeys(t *testing.T) {
	dir := t.TempDir()
	const a = "ff00000000000000000000000000000000000000"
	const b = "0123456789abcdef0123456789abcdef01234567"

	code, _, stderr := runCLI(t, "-dir", dir, "-hash", "add", a, strings.ToUpper(b))
	require.Equal(t, 0, code, stderr)

	code, stdout, _ := runCLI(t, "-dir", dir, "-hash", "list")
	require.Equal(t, 0, code)
	assert.Equal(t, b+"\n"+a+"\n", stdout)

	code, _, stderr = runCLI(t, "-dir", dir, "-hash", "add", "xyz")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "invalid key")
}

func TestRun_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "fileheads.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`store:
  dir: `+dir+`
  skip_undecodable: true
  serialized: true
  pool:
    workers: 2
`), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "head:%zz"), nil, 0o644))

	code, _, stderr := runCLI(t, "-config", cfgPath, "add", "good")
	require.Equal(t, 0, code, stderr)

	code, stdout, stderr := runCLI(t, "-config", cfgPath, "list")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, "good\n", stdout)

	// without skipping, the corrupt entry aborts the listing
	code, _, stderr = runCLI(t, "-dir", dir, "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "decoding")
}

func TestRun_Serve(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "fileheads.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`store:
  dir: `+dir+`
  http:
    listen_address: "127.0.0.1:0"
  monitoring:
    enable_prometheus: true
    listen_address: "127.0.0.1:0"
  reliability:
    shutdown_timeout: 5s
`), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	var stdout, stderr bytes.Buffer
	code := run(ctx, []string{"-config", cfgPath, "serve"}, &stdout, &stderr)
	assert.Equal(t, 0, code, stderr.String())
}
