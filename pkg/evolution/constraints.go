package evolution

import (
	"fmt"
	"slices"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
)

// Constraint restricts how an event type may change between two snapshots.
// Evaluate returns one message per violation and must not modify its arguments.
type Constraint interface {
	Name() string
	Evaluate(changes []diff.Change, current, proposed *eventtype.EventType) []string
}

// ConstraintFunc adapts a function to the Constraint interface.
type ConstraintFunc struct {
	ID string
	Fn func(changes []diff.Change, current, proposed *eventtype.EventType) []string
}

func (c ConstraintFunc) Name() string { return c.ID }

func (c ConstraintFunc) Evaluate(changes []diff.Change, current, proposed *eventtype.EventType) []string {
	return c.Fn(changes, current, proposed)
}

// DefaultConstraints returns the built-in metadata constraints in evaluation order.
func DefaultConstraints() []Constraint {
	return []Constraint{
		ConstraintFunc{"category", categoryUnchanged},
		ConstraintFunc{"compatibility_mode", compatibilityModeRelaxedOnly},
		ConstraintFunc{"fixed_schema", fixedSchemaUnchanged},
		ConstraintFunc{"partition_key_fields", partitionKeyFieldsUnchanged},
		ConstraintFunc{"partition_strategy", partitionStrategyUnchanged},
		ConstraintFunc{"enrichment_strategies", enrichmentOnlyGrows},
	}
}

func categoryUnchanged(_ []diff.Change, current, proposed *eventtype.EventType) []string {
	if current.Category != proposed.Category {
		return []string{"category cannot be changed"}
	}
	return nil
}

func compatibilityModeRelaxedOnly(_ []diff.Change, current, proposed *eventtype.EventType) []string {
	var unknown []string
	for _, m := range []eventtype.CompatibilityMode{current.CompatibilityMode, proposed.CompatibilityMode} {
		if m.Strictness() < 0 {
			unknown = append(unknown, fmt.Sprintf("unknown compatibility mode %q", m))
		}
	}
	if len(unknown) > 0 {
		return unknown
	}
	if proposed.CompatibilityMode.Strictness() > current.CompatibilityMode.Strictness() {
		return []string{fmt.Sprintf("compatibility mode cannot be tightened from %s to %s",
			current.CompatibilityMode, proposed.CompatibilityMode)}
	}
	return nil
}

func fixedSchemaUnchanged(changes []diff.Change, current, proposed *eventtype.EventType) []string {
	if (current.FixedSchema || proposed.FixedSchema) && len(changes) > 0 {
		return []string{"schema cannot be changed for an event type with a fixed schema"}
	}
	return nil
}

func partitionKeyFieldsUnchanged(_ []diff.Change, current, proposed *eventtype.EventType) []string {
	if !slices.Equal(current.PartitionKeyFields, proposed.PartitionKeyFields) {
		return []string{"partition key fields cannot be changed"}
	}
	return nil
}

func partitionStrategyUnchanged(_ []diff.Change, current, proposed *eventtype.EventType) []string {
	if current.PartitionStrategy != proposed.PartitionStrategy {
		return []string{"partition strategy cannot be changed"}
	}
	return nil
}

func enrichmentOnlyGrows(_ []diff.Change, current, proposed *eventtype.EventType) []string {
	var out []string
	for _, s := range current.EnrichmentStrategies {
		if !slices.Contains(proposed.EnrichmentStrategies, s) {
			out = append(out, fmt.Sprintf("enrichment strategy %s cannot be removed", s))
		}
	}
	return out
}
