package evolution

import (
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

// Only kinds listed here are non-breaking. Anything else, including kinds added later, is MAJOR.
var severities = map[diff.Kind]versioning.Level{
	diff.DescriptionChanged: versioning.LevelPatch,
	diff.TitleChanged:       versioning.LevelPatch,
	diff.PropertiesAdded:    versioning.LevelMinor,
}

var breakingMessages = map[diff.Kind]string{
	diff.IDChanged:                   "schema id cannot be changed",
	diff.SchemaRemoved:               "change not allowed",
	diff.TypeChanged:                 "schema types must be the same",
	diff.NumberOfItemsChanged:        "the number of schema items cannot be changed",
	diff.PropertyRemoved:             "schema properties cannot be removed",
	diff.DependencyArrayChanged:      "schema dependencies array cannot be changed",
	diff.DependencySchemaChanged:     "schema dependencies cannot be changed",
	diff.CompositionMethodChanged:    "schema composition method changed",
	diff.AttributeValueChanged:       "change to attribute value not allowed",
	diff.EnumArrayChanged:            "enum array changed",
	diff.SubSchemaChanged:            "sub schema changed",
	diff.DependencySchemaRemoved:     "dependency schema removed",
	diff.RequiredArrayChanged:        "required array changed",
	diff.AdditionalPropertiesChanged: "change not allowed",
	diff.AdditionalItemsChanged:      "change not allowed",
}

// Severity returns the version component a change of kind k bumps.
func Severity(k diff.Kind) versioning.Level {
	if l, ok := severities[k]; ok {
		return l
	}
	return versioning.LevelMajor
}

// BreakingMessage describes why a change cannot be accepted, as "<reason>: <path>".
func BreakingMessage(c diff.Change) string {
	msg, ok := breakingMessages[c.Kind]
	if !ok {
		msg = "change not allowed"
	}
	return msg + ": " + c.Path
}
