// Package schema holds parsed JSON Schema documents of event types.
//
// Documents are decoded once into an owned, read-only tree of map[string]any, []any,
// json.Number, string, bool and nil values. Numbers keep their literal form.
package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("schema document cannot be parsed")

// ParseError reports a document that is not JSON or whose root is not a JSON object.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrParse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
}

func (e *ParseError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrParse, e.Err}
	}
	return []error{ErrParse}
}

// Document is a parsed schema. The zero value is not usable; use Parse.
type Document struct {
	raw  []byte
	root map[string]any
}

// Parse decodes a schema document.
func Parse(data []byte) (*Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &ParseError{Reason: "empty document"}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ParseError{Reason: "invalid json", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Reason: "trailing data after document"}
	}

	root, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Reason: fmt.Sprintf("root must be a json object, got %s", TypeName(v))}
	}

	return &Document{raw: append([]byte(nil), data...), root: root}, nil
}

// ParseString is Parse for string-encoded schemas, as stored on event types.
func ParseString(s string) (*Document, error) {
	return Parse([]byte(s))
}

// Root returns the decoded root object. Callers must not mutate it.
func (d *Document) Root() map[string]any {
	return d.root
}

// Raw returns the original bytes the document was parsed from.
func (d *Document) Raw() []byte {
	return d.raw
}

// TypeName names the JSON type of a decoded value.
func TypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number, float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
