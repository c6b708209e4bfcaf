// Package metaschema checks that a proposed event schema is itself a well-formed JSON Schema.
package metaschema

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// URL is the resource location the embedded meta-schema is registered under.
const URL = "https://eventgate.schemas.local/meta/event-schema.json"

//go:embed event_schema.json
var eventSchema []byte

// ErrInvalid is wrapped by every InvalidError.
var ErrInvalid = errors.New("schema is not a valid json schema")

// InvalidError lists the meta-schema violations of a proposed schema.
type InvalidError struct {
	Violations []string
}

func (e *InvalidError) Error() string {
	if len(e.Violations) == 0 {
		return ErrInvalid.Error()
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(e.Violations, "; "))
}

func (e *InvalidError) Unwrap() error { return ErrInvalid }

// Validator confirms that a decoded schema document conforms to a meta-schema.
type Validator interface {
	Check(doc any) error
}

type compiled struct {
	schema *jsonschema.Schema
}

var (
	defaultOnce      sync.Once
	defaultValidator Validator
)

// Default returns the process-wide validator for the embedded meta-schema.
// It is compiled on first use and never mutated afterwards.
func Default() Validator {
	defaultOnce.Do(func() {
		v, err := New(eventSchema)
		if err != nil {
			// The embedded document is part of the binary.
			panic(fmt.Sprintf("metaschema: embedded meta-schema does not compile: %v", err))
		}
		defaultValidator = v
	})
	return defaultValidator
}

// New compiles a custom meta-schema. The document is interpreted with the draft-04 vocabulary
// unless it declares another one in "$schema".
func New(meta []byte) (Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft4
	if err := c.AddResource(URL, bytes.NewReader(meta)); err != nil {
		return nil, fmt.Errorf("meta-schema load failed: %w", err)
	}
	s, err := c.Compile(URL)
	if err != nil {
		return nil, fmt.Errorf("meta-schema compile failed: %w", err)
	}
	return &compiled{schema: s}, nil
}

// Check validates doc, a tree decoded from JSON (maps, slices, json.Number or float64 ...).
func (c *compiled) Check(doc any) error {
	err := c.schema.Validate(doc)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return &InvalidError{Violations: leaves(verr, nil)}
}

// leaves flattens the validation error tree to its most specific causes.
func leaves(e *jsonschema.ValidationError, out []string) []string {
	if len(e.Causes) == 0 {
		return append(out, fmt.Sprintf("#%s: %s", e.InstanceLocation, e.Message))
	}
	for _, cause := range e.Causes {
		out = leaves(cause, out)
	}
	return out
}
