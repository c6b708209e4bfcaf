package eventtype

import (
	"errors"
	"fmt"
)

var ErrInvalidOptions = errors.New("invalid event type options")

// Retention bounds applied when none are configured.
const (
	DefaultMinRetentionMs int64 = 10_800_000  // 3 hours
	DefaultMaxRetentionMs int64 = 345_600_000 // 4 days
)

// ValidateOptions checks that a configured retention time lies within [minMs, maxMs].
// Unset options are always valid.
func (e *EventType) ValidateOptions(minMs, maxMs int64) error {
	rt := e.Options.RetentionTime
	if rt == nil {
		return nil
	}
	if *rt < minMs {
		return fmt.Errorf("%w: retention_time can't be lower than %d", ErrInvalidOptions, minMs)
	}
	if *rt > maxMs {
		return fmt.Errorf("%w: retention_time can't be higher than %d", ErrInvalidOptions, maxMs)
	}
	return nil
}
