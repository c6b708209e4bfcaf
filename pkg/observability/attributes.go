package observability

import (
	"go.opentelemetry.io/otel/attribute"
)

// eventgate semantic convention attributes.
var (
	AttrEventType     = attribute.Key("eventgate.event_type")
	AttrOperation     = attribute.Key("eventgate.operation")
	AttrStore         = attribute.Key("eventgate.store")
	AttrOutcome       = attribute.Key("eventgate.evolution.outcome")
	AttrBumpLevel     = attribute.Key("eventgate.evolution.level")
	AttrSchemaVersion = attribute.Key("eventgate.schema.version")
)

// RegistryOperation creates attributes for a registry call on one event type.
func RegistryOperation(eventType, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrEventType.String(eventType),
		AttrOperation.String(operation),
	}
}
