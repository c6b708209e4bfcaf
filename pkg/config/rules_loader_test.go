package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const rulesYAML = `
rules:
  - name: owner_kept
    expression: current.owning_application == proposed.owning_application
    message: owning application cannot be changed
  - name: no_removals
    expression: '!changes.exists(c, c.kind == "PROPERTY_REMOVED")'
`

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules(writeFile(t, "rules.yaml", rulesYAML))
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, evolution.ExpressionRule{
		Name:       "owner_kept",
		Expression: "current.owning_application == proposed.owning_application",
		Message:    "owning application cannot be changed",
	}, rules[0])
	assert.Empty(t, rules[1].Message)
}

func TestLoadRulesErrors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "load rules")

	_, err = LoadRules(writeFile(t, "bad.yaml", "rules: [\n"))
	assert.ErrorContains(t, err, "parse rules")

	dup := "rules:\n  - name: a\n    expression: 'true'\n  - name: a\n    expression: 'false'\n"
	_, err = LoadRules(writeFile(t, "dup.yaml", dup))
	assert.ErrorContains(t, err, `duplicate rule "a"`)
}

func TestServiceOptions(t *testing.T) {
	cfg := Defaults()
	opts, err := cfg.ServiceOptions()
	require.NoError(t, err)
	assert.Empty(t, opts)

	cfg.RulesPath = writeFile(t, "rules.yaml", rulesYAML)
	cfg.MetaSchemaPath = writeFile(t, "meta.json", `{"type":"object","properties":{"type":{"enum":["object"]}}}`)
	opts, err = cfg.ServiceOptions()
	require.NoError(t, err)
	require.Len(t, opts, 2)

	svc := evolution.NewService(opts...)
	assert.Equal(t, []string{
		"category", "compatibility_mode", "fixed_schema", "partition_key_fields",
		"partition_strategy", "enrichment_strategies", "owner_kept", "no_removals",
	}, svc.Constraints())
}

func TestServiceOptionsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.RulesPath = writeFile(t, "rules.yaml", "rules:\n  - name: broken\n    expression: 'proposed.category =='\n")
	_, err := cfg.ServiceOptions()
	assert.Error(t, err)

	cfg = Defaults()
	cfg.MetaSchemaPath = writeFile(t, "meta.json", `{"type": 12}`)
	_, err = cfg.ServiceOptions()
	assert.ErrorContains(t, err, "compile meta-schema")
}
