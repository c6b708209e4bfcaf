package evolution

import (
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

// ComputeBump returns the highest severity among changes, or LevelNone if there are none.
func ComputeBump(changes []diff.Change) versioning.Level {
	level := versioning.LevelNone
	for _, c := range changes {
		level = versioning.Max(level, Severity(c.Kind))
	}
	return level
}

// NextVersion bumps current by the severity of changes.
func NextVersion(current versioning.Version, changes []diff.Change) versioning.Version {
	return current.Bump(ComputeBump(changes))
}
