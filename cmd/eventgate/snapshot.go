package main

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/schema"
)

// loadSnapshot reads an event type from a YAML or JSON file. The schema may be given
// inline as a mapping or as a JSON string.
func loadSnapshot(path string) (*eventtype.EventType, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parse %s: empty document", path)
	}
	if s, ok := doc["schema"].(map[string]any); ok {
		if inline, ok := s["schema"]; ok {
			if _, isString := inline.(string); !isString {
				raw, err := json.Marshal(inline)
				if err != nil {
					return nil, fmt.Errorf("parse %s: schema: %w", path, err)
				}
				s["schema"] = string(raw)
			}
		}
	}

	// Round-trip through JSON so the snapshot gets the same field names the registry stores.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var et eventtype.EventType
	if err := json.Unmarshal(raw, &et); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &et, nil
}

// loadSchema reads a bare JSON Schema document.
func loadSchema(path string) (*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := schema.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
