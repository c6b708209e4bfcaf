package evolution

import (
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

// Status is the verdict of a validation.
type Status string

const (
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// ClassifiedChange is a schema change with the level it bumps.
type ClassifiedChange struct {
	diff.Change
	Level versioning.Level `json:"level"`
}

// Outcome is the result of validating a proposed snapshot.
type Outcome struct {
	EventType string `json:"event_type"`
	Status    Status `json:"status"`
	// Version is the version the proposal is accepted at, or the current version when rejected.
	Version    versioning.Version `json:"version"`
	Level      versioning.Level   `json:"level"`
	Created    bool               `json:"created,omitempty"`
	Changes    []ClassifiedChange `json:"changes,omitempty"`
	Violations []Violation        `json:"violations,omitempty"`
}

func (o *Outcome) Accepted() bool {
	return o.Status == StatusAccepted
}

// Err returns a *RejectedError for rejected outcomes and nil otherwise.
func (o *Outcome) Err() error {
	if o.Accepted() {
		return nil
	}
	return &RejectedError{EventType: o.EventType, Violations: o.Violations}
}

// RawChanges returns the changes without their levels.
func (o *Outcome) RawChanges() []diff.Change {
	out := make([]diff.Change, len(o.Changes))
	for i, c := range o.Changes {
		out[i] = c.Change
	}
	return out
}

func classifyAll(changes []diff.Change) []ClassifiedChange {
	if len(changes) == 0 {
		return nil
	}
	out := make([]ClassifiedChange, len(changes))
	for i, c := range changes {
		out[i] = ClassifiedChange{Change: c, Level: Severity(c.Kind)}
	}
	return out
}
