package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
)

var (
	ErrNotFound        = errors.New("event type not found")
	ErrAlreadyExists   = errors.New("event type already exists")
	ErrVersionConflict = errors.New("event type was modified concurrently")
)

// Store persists event type snapshots and their history.
//
// Every write carries the snapshot's Revision: Create stores revision 1, and CompareAndSwap
// replaces the current snapshot only while its stored revision still equals expected. Each
// successful write also appends the snapshot to the event type's history.
type Store interface {
	Get(ctx context.Context, name string) (*eventtype.EventType, error)
	Create(ctx context.Context, et *eventtype.EventType) error
	CompareAndSwap(ctx context.Context, expected int64, et *eventtype.EventType) error
	// History returns every stored snapshot of name, oldest first.
	History(ctx context.Context, name string) ([]*eventtype.EventType, error)
	// List returns the current snapshot of every event type, ordered by name.
	List(ctx context.Context) ([]*eventtype.EventType, error)
}

func checkWrite(et *eventtype.EventType, expected int64) error {
	if et == nil {
		return errors.New("nil event type")
	}
	if et.Revision != expected+1 {
		return fmt.Errorf("revision %d does not follow %d", et.Revision, expected)
	}
	return nil
}

func encodeSnapshot(et *eventtype.EventType) ([]byte, error) {
	b, err := json.Marshal(et)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event type %s: %w", et.Name, err)
	}
	return b, nil
}

func decodeSnapshot(b []byte) (*eventtype.EventType, error) {
	var et eventtype.EventType
	if err := json.Unmarshal(b, &et); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event type: %w", err)
	}
	return &et, nil
}
