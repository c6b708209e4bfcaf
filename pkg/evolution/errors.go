package evolution

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchemaParse means the proposed or stored schema is not a JSON object document.
	ErrSchemaParse = errors.New("schema cannot be parsed")
	// ErrMetaSchemaInvalid means the proposed schema parses but is not a valid JSON Schema.
	ErrMetaSchemaInvalid = errors.New("schema is not a valid json schema")
	// ErrRejected is wrapped by every RejectedError.
	ErrRejected = errors.New("schema evolution rejected")
)

// ErrorKind is a stable identifier for a class of validation failure.
// Values MUST NOT change between releases.
type ErrorKind string

const (
	KindSchemaParseFailed     ErrorKind = "SCHEMA_PARSE_FAILED"
	KindMetaSchemaInvalid     ErrorKind = "META_SCHEMA_INVALID"
	KindImmutableFieldChanged ErrorKind = "IMMUTABLE_FIELD_CHANGED"
	KindBreakingSchemaChange  ErrorKind = "BREAKING_SCHEMA_CHANGE"
	KindRuleViolated          ErrorKind = "RULE_VIOLATED" // operator expression rule
)

// Violation is one reason a proposed snapshot was rejected.
type Violation struct {
	Kind ErrorKind `json:"kind"`
	// Source is the constraint name, or the change kind for breaking changes.
	Source  string `json:"source"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return v.Message
}

// RejectedError carries every violation collected for a rejected proposal.
type RejectedError struct {
	EventType  string
	Violations []Violation
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s for event type %q: %s", ErrRejected, e.EventType, strings.Join(e.Messages(), "; "))
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// Messages returns the violation messages in report order.
func (e *RejectedError) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.Message
	}
	return out
}
