package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
	"github.com/Mindburn-Labs/eventgate/pkg/metaschema"
)

// RuleFile is the YAML layout of an operator rule file.
type RuleFile struct {
	Rules []evolution.ExpressionRule `yaml:"rules" json:"rules"`
}

// LoadRules reads expression rules from a YAML file.
func LoadRules(path string) ([]evolution.ExpressionRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules %q: %w", path, err)
	}

	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules %q: %w", path, err)
	}

	seen := make(map[string]bool, len(file.Rules))
	for _, r := range file.Rules {
		if seen[r.Name] {
			return nil, fmt.Errorf("parse rules %q: duplicate rule %q", path, r.Name)
		}
		seen[r.Name] = true
	}
	return file.Rules, nil
}

// LoadMetaSchema compiles the meta-schema document at path.
func LoadMetaSchema(path string) (metaschema.Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load meta-schema %q: %w", path, err)
	}
	v, err := metaschema.New(data)
	if err != nil {
		return nil, fmt.Errorf("compile meta-schema %q: %w", path, err)
	}
	return v, nil
}

// ServiceOptions turns the engine settings of c into evolution service options.
// Rule compile errors are startup errors.
func (c *Config) ServiceOptions() ([]evolution.ServiceOption, error) {
	var opts []evolution.ServiceOption

	if c.MetaSchemaPath != "" {
		v, err := LoadMetaSchema(c.MetaSchemaPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, evolution.WithMetaSchema(v))
	}

	if c.RulesPath != "" {
		rules, err := LoadRules(c.RulesPath)
		if err != nil {
			return nil, err
		}
		compiler, err := evolution.NewRuleCompiler()
		if err != nil {
			return nil, err
		}
		constraints, err := compiler.CompileAll(rules)
		if err != nil {
			return nil, err
		}
		opts = append(opts, evolution.WithConstraints(constraints...))
	}
	return opts, nil
}
