// Package eventtype defines event type snapshots: the schema and metadata a registry stores
// per event type and the evolution engine compares across versions.
package eventtype

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

var ErrInvalidEventType = errors.New("invalid event type")

// Category is the kind of events a type carries.
type Category string

const (
	CategoryUndefined Category = "undefined"
	CategoryData      Category = "data"
	CategoryBusiness  Category = "business"
)

// CompatibilityMode controls which schema changes are tolerated.
type CompatibilityMode string

const (
	ModeCompatible CompatibilityMode = "compatible"
	ModeForward    CompatibilityMode = "forward"
	ModeNone       CompatibilityMode = "none"
)

// Strictness orders modes from loosest (none) to strictest (compatible).
// Unknown modes return -1.
func (m CompatibilityMode) Strictness() int {
	switch m {
	case ModeNone:
		return 0
	case ModeForward:
		return 1
	case ModeCompatible:
		return 2
	default:
		return -1
	}
}

// PartitionStrategy decides how events are assigned to partitions.
type PartitionStrategy string

const (
	PartitionRandom      PartitionStrategy = "random"
	PartitionHash        PartitionStrategy = "hash"
	PartitionUserDefined PartitionStrategy = "user_defined"
)

// EnrichmentStrategy names a server-side enrichment applied to published events.
type EnrichmentStrategy string

const EnrichmentMetadata EnrichmentStrategy = "metadata_enrichment"

// SchemaTypeJSON is the only supported schema type.
const SchemaTypeJSON = "json_schema"

// Schema is the versioned payload schema of an event type. Schema holds the JSON document as text.
type Schema struct {
	Type      string             `json:"type" yaml:"type"`
	Schema    string             `json:"schema" yaml:"schema"`
	Version   versioning.Version `json:"version" yaml:"version"`
	CreatedAt time.Time          `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

// Options are tunables that do not take part in schema evolution.
type Options struct {
	// RetentionTime in milliseconds.
	RetentionTime *int64 `json:"retention_time,omitempty" yaml:"retention_time,omitempty"`
}

// EventType is a snapshot of an event type at one version.
type EventType struct {
	Name                 string               `json:"name" yaml:"name"`
	OwningApplication    string               `json:"owning_application,omitempty" yaml:"owning_application,omitempty"`
	Category             Category             `json:"category" yaml:"category"`
	CompatibilityMode    CompatibilityMode    `json:"compatibility_mode" yaml:"compatibility_mode"`
	PartitionStrategy    PartitionStrategy    `json:"partition_strategy" yaml:"partition_strategy"`
	PartitionKeyFields   []string             `json:"partition_key_fields,omitempty" yaml:"partition_key_fields,omitempty"`
	EnrichmentStrategies []EnrichmentStrategy `json:"enrichment_strategies,omitempty" yaml:"enrichment_strategies,omitempty"`
	FixedSchema          bool                 `json:"fixed_schema,omitempty" yaml:"fixed_schema,omitempty"`
	Schema               Schema               `json:"schema" yaml:"schema"`
	Options              Options              `json:"options,omitempty" yaml:"options,omitempty"`

	// Set by the registry. Revision advances on every stored write.
	Revision          int64     `json:"revision,omitempty" yaml:"-"`
	SchemaFingerprint string    `json:"schema_fingerprint,omitempty" yaml:"-"`
	CreatedAt         time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// Version is the schema version of the snapshot.
func (e *EventType) Version() versioning.Version {
	return e.Schema.Version
}

// ApplyDefaults fills unset metadata the way a newly submitted event type is interpreted.
func (e *EventType) ApplyDefaults() {
	if e.CompatibilityMode == "" {
		e.CompatibilityMode = ModeForward
	}
	if e.PartitionStrategy == "" {
		e.PartitionStrategy = PartitionRandom
	}
	if e.Schema.Type == "" {
		e.Schema.Type = SchemaTypeJSON
	}
}

// Validate checks that the enumerated metadata fields hold known values.
// Schema content is checked by the evolution engine.
func (e *EventType) Validate() error {
	if _, err := NormalizeName(e.Name); err != nil {
		return err
	}
	switch e.Category {
	case CategoryUndefined, CategoryData, CategoryBusiness:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrInvalidEventType, e.Category)
	}
	if e.CompatibilityMode.Strictness() < 0 {
		return fmt.Errorf("%w: unknown compatibility mode %q", ErrInvalidEventType, e.CompatibilityMode)
	}
	switch e.PartitionStrategy {
	case PartitionRandom, PartitionUserDefined:
	case PartitionHash:
		if len(e.PartitionKeyFields) == 0 {
			return fmt.Errorf("%w: partition strategy hash requires partition key fields", ErrInvalidEventType)
		}
	default:
		return fmt.Errorf("%w: unknown partition strategy %q", ErrInvalidEventType, e.PartitionStrategy)
	}
	for _, s := range e.EnrichmentStrategies {
		if s != EnrichmentMetadata {
			return fmt.Errorf("%w: unknown enrichment strategy %q", ErrInvalidEventType, s)
		}
	}
	if e.Category == CategoryUndefined && len(e.EnrichmentStrategies) > 0 {
		return fmt.Errorf("%w: enrichment is not applicable to category undefined", ErrInvalidEventType)
	}
	if e.Schema.Type != SchemaTypeJSON {
		return fmt.Errorf("%w: unsupported schema type %q", ErrInvalidEventType, e.Schema.Type)
	}
	return nil
}

// Clone returns a deep copy.
func (e *EventType) Clone() *EventType {
	if e == nil {
		return nil
	}
	c := *e
	c.PartitionKeyFields = slices.Clone(e.PartitionKeyFields)
	c.EnrichmentStrategies = slices.Clone(e.EnrichmentStrategies)
	if e.Options.RetentionTime != nil {
		rt := *e.Options.RetentionTime
		c.Options.RetentionTime = &rt
	}
	return &c
}
