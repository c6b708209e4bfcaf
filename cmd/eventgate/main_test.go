package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const currentYAML = `
name: order.created
owning_application: checkout
category: business
compatibility_mode: compatible
schema:
  type: json_schema
  version: 1.0.0
  schema:
    type: object
    properties:
      a:
        type: string
`

const additiveYAML = `
name: order.created
owning_application: checkout
category: business
compatibility_mode: compatible
schema:
  schema: '{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"integer"}}}'
`

const breakingYAML = `
name: order.created
owning_application: checkout
category: business
compatibility_mode: compatible
schema:
  schema:
    type: object
    properties:
      a:
        type: integer
`

func TestVersion(t *testing.T) {
	code, out, _ := run(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "eventgate version "+Version)
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := run(t, "frobnicate")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "unknown command")
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	oldPath := writeFile(t, dir, "old.json", `{"type":"object","title":"Order","properties":{"a":{"type":"string"}}}`)
	newPath := writeFile(t, dir, "new.json", `{"type":"object","title":"Orders","properties":{"a":{"type":"string"},"b":{"type":"integer"}}}`)

	code, out, _ := run(t, "diff", oldPath, newPath)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "PROPERTIES_ADDED")
	assert.Contains(t, out, "#/properties/b")
	assert.Contains(t, out, "TITLE_CHANGED")
	assert.Regexp(t, `bump\s+MINOR`, out)

	code, out, _ = run(t, "diff", "--json", oldPath, newPath)
	require.Equal(t, exitOK, code)
	var report struct {
		Level   string `json:"level"`
		Changes []struct {
			Kind  string `json:"kind"`
			Path  string `json:"path"`
			Level string `json:"level"`
		} `json:"changes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "MINOR", report.Level)
	require.Len(t, report.Changes, 2)

	code, out, _ = run(t, "diff", oldPath, oldPath)
	require.Equal(t, exitOK, code)
	assert.Equal(t, "no changes\n", out)

	code, _, errOut := run(t, "diff", oldPath, filepath.Join(dir, "missing.json"))
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "missing.json")
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	current := writeFile(t, dir, "current.yaml", currentYAML)
	additive := writeFile(t, dir, "additive.yaml", additiveYAML)
	breaking := writeFile(t, dir, "breaking.yaml", breakingYAML)

	t.Run("accepted", func(t *testing.T) {
		code, out, _ := run(t, "validate", "--current", current, "--proposed", additive)
		require.Equal(t, exitOK, code)
		assert.Contains(t, out, "ACCEPTED order.created 1.1.0 (MINOR)")
		assert.Contains(t, out, "MINOR PROPERTIES_ADDED #/properties/b")
	})

	t.Run("created", func(t *testing.T) {
		code, out, _ := run(t, "validate", "--proposed", additive, "--json")
		require.Equal(t, exitOK, code)
		var outcome map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &outcome))
		assert.Equal(t, "1.0.0", outcome["version"])
		assert.Equal(t, true, outcome["created"])
	})

	t.Run("rejected", func(t *testing.T) {
		code, out, errOut := run(t, "validate", "--current", current, "--proposed", breaking)
		require.Equal(t, exitRejected, code)
		assert.Contains(t, out, "REJECTED order.created")
		assert.Contains(t, out, "BREAKING_SCHEMA_CHANGE: schema types must be the same: #/properties/a/type")
		assert.Empty(t, errOut)
	})

	t.Run("missing proposed", func(t *testing.T) {
		code, _, errOut := run(t, "validate")
		assert.Equal(t, exitError, code)
		assert.Contains(t, errOut, "proposed")
	})

	t.Run("invalid schema", func(t *testing.T) {
		bad := writeFile(t, dir, "bad.yaml", "name: order.created\ncategory: business\nschema:\n  schema: '{\"type\": 5}'\n")
		code, _, errOut := run(t, "validate", "--proposed", bad)
		assert.Equal(t, exitError, code)
		assert.Contains(t, errOut, "not a valid json schema")
	})

	t.Run("unknown compatibility mode", func(t *testing.T) {
		strict := writeFile(t, dir, "strict.yaml", strings.Replace(additiveYAML, "compatibility_mode: compatible", "compatibility_mode: strict", 1))
		code, out, errOut := run(t, "validate", "--current", current, "--proposed", strict)
		assert.Equal(t, exitError, code)
		assert.Empty(t, out)
		assert.Contains(t, errOut, `unknown compatibility mode "strict"`)
	})
}

func TestRegistryCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("EVENTGATE_STORE_DRIVER", "sqlite")
	t.Setenv("EVENTGATE_STORE_DSN", filepath.Join(dir, "eventgate.db"))
	t.Setenv("EVENTGATE_ARCHIVE_DIR", filepath.Join(dir, "schemas"))
	t.Setenv("EVENTGATE_LOG_LEVEL", "error")

	created := writeFile(t, dir, "create.yaml", currentYAML)
	additive := writeFile(t, dir, "additive.yaml", additiveYAML)
	breaking := writeFile(t, dir, "breaking.yaml", breakingYAML)

	code, out, errOut := run(t, "registry", "create", created)
	require.Equal(t, exitOK, code, errOut)
	assert.Contains(t, out, "ACCEPTED order.created 1.0.0")

	code, _, _ = run(t, "registry", "create", created)
	assert.Equal(t, exitError, code)

	code, out, _ = run(t, "registry", "update", additive)
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "1.1.0 (MINOR)")

	code, out, _ = run(t, "registry", "update", breaking)
	assert.Equal(t, exitRejected, code)
	assert.Contains(t, out, "REJECTED")

	code, out, _ = run(t, "registry", "get", "order.created")
	require.Equal(t, exitOK, code)
	var et map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &et))
	assert.Equal(t, float64(2), et["revision"])
	assert.True(t, strings.HasPrefix(et["schema_fingerprint"].(string), "sha256:"))

	code, out, _ = run(t, "registry", "history", "order.created")
	require.Equal(t, exitOK, code)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "1.0.0")
	assert.Contains(t, lines[2], "1.1.0")

	code, out, _ = run(t, "registry", "list", "--json")
	require.Equal(t, exitOK, code)
	var all []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &all))
	require.Len(t, all, 1)

	code, _, errOut = run(t, "registry", "get", "order.missing")
	assert.Equal(t, exitError, code)
	assert.Contains(t, errOut, "event type not found")

	entries, err := os.ReadDir(filepath.Join(dir, "schemas"))
	require.NoError(t, err)
	assert.Len(t, entries, 2, "one archived document per distinct schema")
}
