// Package notify announces event type creations and schema evolutions as CloudEvents.
package notify

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
)

// CloudEvent types emitted by the registry.
const (
	TypeCreated = "io.eventgate.event_type.created"
	TypeEvolved = "io.eventgate.event_type.evolved"
)

// DefaultSource is the CloudEvents source of registry notifications.
const DefaultSource = "/eventgate/registry"

// ExtensionSchemaVersion carries the resulting schema version on every notification.
const ExtensionSchemaVersion = "schemaversion"

// EventTypeData is the payload of a notification.
type EventTypeData struct {
	EventType         string                       `json:"event_type"`
	Version           string                       `json:"version"`
	PreviousVersion   string                       `json:"previous_version,omitempty"`
	Level             string                       `json:"level,omitempty"`
	Category          eventtype.Category           `json:"category"`
	CompatibilityMode eventtype.CompatibilityMode  `json:"compatibility_mode"`
	SchemaFingerprint string                       `json:"schema_fingerprint,omitempty"`
	Changes           []evolution.ClassifiedChange `json:"changes,omitempty"`
}

// NewCreatedEvent builds the notification for a newly registered event type.
func NewCreatedEvent(source string, et *eventtype.EventType) (cloudevents.Event, error) {
	return newEvent(TypeCreated, source, et.Name, EventTypeData{
		EventType:         et.Name,
		Version:           et.Version().String(),
		Category:          et.Category,
		CompatibilityMode: et.CompatibilityMode,
		SchemaFingerprint: et.SchemaFingerprint,
	})
}

// NewEvolvedEvent builds the notification for an accepted update of an existing event type.
func NewEvolvedEvent(source string, previous, et *eventtype.EventType, out *evolution.Outcome) (cloudevents.Event, error) {
	data := EventTypeData{
		EventType:         et.Name,
		Version:           et.Version().String(),
		PreviousVersion:   previous.Version().String(),
		Category:          et.Category,
		CompatibilityMode: et.CompatibilityMode,
		SchemaFingerprint: et.SchemaFingerprint,
	}
	if out != nil {
		data.Level = out.Level.String()
		data.Changes = out.Changes
	}
	return newEvent(TypeEvolved, source, et.Name, data)
}

func newEvent(eventType, source, subject string, data EventTypeData) (cloudevents.Event, error) {
	if source == "" {
		source = DefaultSource
	}
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(source)
	event.SetType(eventType)
	event.SetSubject(subject)
	event.SetTime(time.Now().UTC())
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetExtension(ExtensionSchemaVersion, data.Version)
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return event, fmt.Errorf("encode %s data: %w", eventType, err)
	}
	if err := event.Validate(); err != nil {
		return event, fmt.Errorf("invalid cloudevent: %w", err)
	}
	return event, nil
}

// newEventID returns a time-ordered UUIDv7, falling back to v4.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
