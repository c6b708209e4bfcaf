package evolution

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
	"github.com/Mindburn-Labs/eventgate/pkg/metaschema"
	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

const schemaA = `{"type":"object","properties":{"a":{"type":"string"}}}`

func snapshot(schemaJSON, version string) *eventtype.EventType {
	et := &eventtype.EventType{
		Name:              "order.created",
		Category:          eventtype.CategoryBusiness,
		CompatibilityMode: eventtype.ModeCompatible,
		PartitionStrategy: eventtype.PartitionRandom,
		Schema: eventtype.Schema{
			Type:   eventtype.SchemaTypeJSON,
			Schema: schemaJSON,
		},
	}
	if version != "" {
		et.Schema.Version = versioning.MustParse(version)
	}
	return et
}

func evolve(current *eventtype.EventType, schemaJSON string) *eventtype.EventType {
	next := current.Clone()
	next.Schema.Schema = schemaJSON
	next.Schema.Version = versioning.Version{}
	return next
}

func TestValidate_ScenarioA_PropertyAdded(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")
	proposed := evolve(current, `{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"number"}}}`)

	out, err := svc.Validate(context.Background(), current, proposed)
	require.NoError(t, err)
	require.True(t, out.Accepted())
	assert.Equal(t, []diff.Change{{Kind: diff.PropertiesAdded, Path: "#/properties/b"}}, out.RawChanges())
	assert.Equal(t, versioning.LevelMinor, out.Level)
	assert.Equal(t, "1.1.0", out.Version.String())
	assert.NoError(t, out.Err())
}

func TestValidate_ScenarioB_RequiredArray(t *testing.T) {
	svc := NewService()
	oldSchema := `{"type":"object","properties":{"a":{"type":"string"}},"required":["a"]}`
	newSchema := `{"type":"object","properties":{"a":{"type":"string"}},"required":[]}`

	for _, mode := range []eventtype.CompatibilityMode{eventtype.ModeCompatible, eventtype.ModeForward} {
		t.Run(string(mode), func(t *testing.T) {
			current := snapshot(oldSchema, "1.0.0")
			current.CompatibilityMode = mode
			out, err := svc.Validate(context.Background(), current, evolve(current, newSchema))
			require.NoError(t, err)
			require.False(t, out.Accepted())
			require.Len(t, out.Violations, 1)
			assert.Equal(t, KindBreakingSchemaChange, out.Violations[0].Kind)
			assert.Equal(t, "required array changed: #/required", out.Violations[0].Message)
			assert.Equal(t, "1.0.0", out.Version.String())

			var rerr *RejectedError
			require.ErrorAs(t, out.Err(), &rerr)
			assert.True(t, errors.Is(out.Err(), ErrRejected))
			assert.Equal(t, []string{"required array changed: #/required"}, rerr.Messages())
		})
	}

	t.Run("none", func(t *testing.T) {
		current := snapshot(oldSchema, "1.0.0")
		current.CompatibilityMode = eventtype.ModeNone
		out, err := svc.Validate(context.Background(), current, evolve(current, newSchema))
		require.NoError(t, err)
		require.True(t, out.Accepted())
		assert.Equal(t, versioning.LevelMajor, out.Level)
		assert.Equal(t, "2.0.0", out.Version.String())
	})
}

func TestValidate_ScenarioC_Description(t *testing.T) {
	svc := NewService()
	current := snapshot(`{"type":"object","description":"an order"}`, "1.1.0")
	out, err := svc.Validate(context.Background(), current, evolve(current, `{"type":"object","description":"a placed order"}`))
	require.NoError(t, err)
	require.True(t, out.Accepted())
	assert.Equal(t, []diff.Change{{Kind: diff.DescriptionChanged, Path: "#/description"}}, out.RawChanges())
	assert.Equal(t, "1.1.1", out.Version.String())
}

func TestValidate_ScenarioD_Category(t *testing.T) {
	svc := NewService()
	for _, mode := range []eventtype.CompatibilityMode{eventtype.ModeCompatible, eventtype.ModeForward, eventtype.ModeNone} {
		t.Run(string(mode), func(t *testing.T) {
			current := snapshot(schemaA, "1.0.0")
			current.CompatibilityMode = mode
			proposed := current.Clone()
			proposed.Category = eventtype.CategoryData

			out, err := svc.Validate(context.Background(), current, proposed)
			require.NoError(t, err)
			require.False(t, out.Accepted())
			require.Len(t, out.Violations, 1)
			assert.Equal(t, KindImmutableFieldChanged, out.Violations[0].Kind)
			assert.Equal(t, "category", out.Violations[0].Source)
			assert.Equal(t, "category cannot be changed", out.Violations[0].Message)
			assert.Empty(t, out.Changes)
		})
	}
}

func TestValidate_ScenarioE_CompatibilityMode(t *testing.T) {
	svc := NewService()

	t.Run("relaxing", func(t *testing.T) {
		current := snapshot(schemaA, "1.0.0")
		current.CompatibilityMode = eventtype.ModeCompatible
		proposed := current.Clone()
		proposed.CompatibilityMode = eventtype.ModeNone

		out, err := svc.Validate(context.Background(), current, proposed)
		require.NoError(t, err)
		assert.True(t, out.Accepted())
		assert.Equal(t, "1.0.0", out.Version.String())
	})

	t.Run("tightening", func(t *testing.T) {
		current := snapshot(schemaA, "1.0.0")
		current.CompatibilityMode = eventtype.ModeNone
		proposed := current.Clone()
		proposed.CompatibilityMode = eventtype.ModeCompatible

		out, err := svc.Validate(context.Background(), current, proposed)
		require.NoError(t, err)
		require.False(t, out.Accepted())
		require.Len(t, out.Violations, 1)
		assert.Equal(t, "compatibility_mode", out.Violations[0].Source)
		assert.Equal(t, "compatibility mode cannot be tightened from none to compatible", out.Violations[0].Message)
	})
}

func TestValidate_UnknownCompatibilityMode(t *testing.T) {
	svc := NewService()

	t.Run("proposed", func(t *testing.T) {
		current := snapshot(schemaA, "1.0.0")
		proposed := current.Clone()
		proposed.CompatibilityMode = "strict"

		out, err := svc.Validate(context.Background(), current, proposed)
		require.NoError(t, err)
		require.False(t, out.Accepted())
		require.Len(t, out.Violations, 1)
		assert.Equal(t, "compatibility_mode", out.Violations[0].Source)
		assert.Equal(t, `unknown compatibility mode "strict"`, out.Violations[0].Message)
		assert.Equal(t, "1.0.0", out.Version.String())
	})

	t.Run("current", func(t *testing.T) {
		current := snapshot(schemaA, "1.0.0")
		current.CompatibilityMode = ""
		proposed := current.Clone()
		proposed.CompatibilityMode = eventtype.ModeNone

		out, err := svc.Validate(context.Background(), current, proposed)
		require.NoError(t, err)
		require.False(t, out.Accepted())
		require.Len(t, out.Violations, 1)
		assert.Equal(t, `unknown compatibility mode ""`, out.Violations[0].Message)
	})
}

func TestValidate_IdempotentWithExtremeNumbers(t *testing.T) {
	svc := NewService()
	current := snapshot(`{"type":"object","properties":{"a":{"type":"number","maximum":1e400},"b":{"type":"integer","maximum":9007199254740993}}}`, "1.0.0")

	out, err := svc.Validate(context.Background(), current, current.Clone())
	require.NoError(t, err)
	require.True(t, out.Accepted())
	assert.Empty(t, out.Changes)
	assert.Equal(t, "1.0.0", out.Version.String())

	tighter := evolve(current, `{"type":"object","properties":{"a":{"type":"number","maximum":1e400},"b":{"type":"integer","maximum":9007199254740992}}}`)
	out, err = svc.Validate(context.Background(), current, tighter)
	require.NoError(t, err)
	require.False(t, out.Accepted())
	assert.Equal(t, []diff.Change{{Kind: diff.AttributeValueChanged, Path: "#/properties/b/maximum"}}, out.RawChanges())
}

func TestValidate_Idempotent(t *testing.T) {
	svc := NewService()
	current := snapshot(`{"type":"object","properties":{"a":{"type":"string","enum":["x","y"]}},"required":["a"]}`, "3.2.1")
	current.PartitionStrategy = eventtype.PartitionHash
	current.PartitionKeyFields = []string{"a"}
	current.EnrichmentStrategies = []eventtype.EnrichmentStrategy{eventtype.EnrichmentMetadata}

	out, err := svc.Validate(context.Background(), current, current.Clone())
	require.NoError(t, err)
	require.True(t, out.Accepted())
	assert.Empty(t, out.Changes)
	assert.Equal(t, versioning.LevelNone, out.Level)
	assert.Equal(t, "3.2.1", out.Version.String())
}

func TestValidate_Creation(t *testing.T) {
	svc := NewService()
	for _, s := range []string{`{}`, schemaA, `{"type":"array","items":{"type":"integer"}}`} {
		out, err := svc.Validate(context.Background(), nil, snapshot(s, ""))
		require.NoError(t, err)
		assert.True(t, out.Accepted())
		assert.True(t, out.Created)
		assert.Equal(t, versioning.Initial, out.Version)
	}
}

func TestValidate_MetaSchemaInvalid(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")
	proposed := evolve(current, `{"type":"objekt"}`)
	proposed.Category = eventtype.CategoryData // not reported: meta-schema failure short-circuits

	out, err := svc.Validate(context.Background(), current, proposed)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, ErrMetaSchemaInvalid)
	assert.ErrorIs(t, err, metaschema.ErrInvalid)
	assert.NotErrorIs(t, err, ErrSchemaParse)

	_, err = svc.Validate(context.Background(), nil, proposed)
	assert.ErrorIs(t, err, ErrMetaSchemaInvalid)
}

func TestValidate_ParseFailure(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")

	for _, s := range []string{``, `{"type":`, `["object"]`} {
		_, err := svc.Validate(context.Background(), current, evolve(current, s))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSchemaParse)
		assert.NotErrorIs(t, err, ErrMetaSchemaInvalid)
	}

	_, err := svc.Validate(context.Background(), current, nil)
	assert.Error(t, err)
}

func TestValidate_AggregatesViolationsInOrder(t *testing.T) {
	svc := NewService()
	current := snapshot(`{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"string"}}}`, "1.0.0")
	current.PartitionStrategy = eventtype.PartitionHash
	current.PartitionKeyFields = []string{"a"}
	current.EnrichmentStrategies = []eventtype.EnrichmentStrategy{eventtype.EnrichmentMetadata}

	proposed := evolve(current, `{"type":"object","properties":{"a":{"type":"number"}}}`)
	proposed.Category = eventtype.CategoryData
	proposed.PartitionStrategy = eventtype.PartitionUserDefined
	proposed.PartitionKeyFields = []string{"b"}
	proposed.EnrichmentStrategies = nil

	out, err := svc.Validate(context.Background(), current, proposed)
	require.NoError(t, err)
	require.False(t, out.Accepted())

	var got []string
	for _, v := range out.Violations {
		got = append(got, v.Message)
	}
	assert.Equal(t, []string{
		"category cannot be changed",
		"partition key fields cannot be changed",
		"partition strategy cannot be changed",
		"enrichment strategy metadata_enrichment cannot be removed",
		"schema types must be the same: #/properties/a/type",
		"schema properties cannot be removed: #/properties/b",
	}, got)
}

func TestValidate_FixedSchema(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")
	current.FixedSchema = true

	out, err := svc.Validate(context.Background(), current, evolve(current, `{"type":"object","properties":{"a":{"type":"string"}},"title":"Order"}`))
	require.NoError(t, err)
	require.False(t, out.Accepted())
	assert.Equal(t, "fixed_schema", out.Violations[0].Source)

	// metadata-only edits remain possible
	proposed := current.Clone()
	proposed.OwningApplication = "billing"
	out, err = svc.Validate(context.Background(), current, proposed)
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}

func TestValidate_EnrichmentMayGrow(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")
	proposed := current.Clone()
	proposed.EnrichmentStrategies = []eventtype.EnrichmentStrategy{eventtype.EnrichmentMetadata}

	out, err := svc.Validate(context.Background(), current, proposed)
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}

func TestValidate_NoneModeStillEnforcesConstraints(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")
	current.CompatibilityMode = eventtype.ModeNone
	proposed := evolve(current, `{"type":"object"}`)
	proposed.PartitionStrategy = eventtype.PartitionUserDefined

	out, err := svc.Validate(context.Background(), current, proposed)
	require.NoError(t, err)
	require.False(t, out.Accepted())
	require.Len(t, out.Violations, 1)
	assert.Equal(t, "partition_strategy", out.Violations[0].Source)
}

func TestValidate_ExpressionRule(t *testing.T) {
	rc, err := NewRuleCompiler()
	require.NoError(t, err)
	rule, err := rc.Compile(ExpressionRule{
		Name:       "no_minor_on_business",
		Expression: `proposed.category != "business" || changes.all(c, c.level != "MINOR")`,
		Message:    "business event types only accept cosmetic schema changes",
	})
	require.NoError(t, err)

	svc := NewService(WithConstraints(rule))
	assert.Equal(t, []string{
		"category", "compatibility_mode", "fixed_schema",
		"partition_key_fields", "partition_strategy", "enrichment_strategies",
		"no_minor_on_business",
	}, svc.Constraints())

	current := snapshot(schemaA, "1.0.0")
	out, err := svc.Validate(context.Background(), current, evolve(current, `{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"string"}}}`))
	require.NoError(t, err)
	require.False(t, out.Accepted())
	require.Len(t, out.Violations, 1)
	assert.Equal(t, KindRuleViolated, out.Violations[0].Kind)
	assert.Equal(t, "business event types only accept cosmetic schema changes", out.Violations[0].Message)

	out, err = svc.Validate(context.Background(), current, evolve(current, `{"type":"object","title":"Order","properties":{"a":{"type":"string"}}}`))
	require.NoError(t, err)
	assert.True(t, out.Accepted())
	assert.Equal(t, "1.0.1", out.Version.String())
}

func TestValidate_CustomMetaSchema(t *testing.T) {
	meta, err := metaschema.New([]byte(`{"type":"object","required":["type"]}`))
	require.NoError(t, err)
	svc := NewService(WithMetaSchema(meta))

	_, err = svc.Validate(context.Background(), nil, snapshot(`{"properties":{}}`, ""))
	assert.ErrorIs(t, err, ErrMetaSchemaInvalid)

	out, err := svc.Validate(context.Background(), nil, snapshot(`{"type":"object"}`, ""))
	require.NoError(t, err)
	assert.True(t, out.Accepted())
}

func TestValidate_ConcurrentUse(t *testing.T) {
	svc := NewService()
	current := snapshot(schemaA, "1.0.0")
	proposed := evolve(current, `{"type":"object","properties":{"a":{"type":"string"},"b":{"type":"number"}}}`)

	done := make(chan string, 16)
	for i := 0; i < cap(done); i++ {
		go func() {
			out, err := svc.Validate(context.Background(), current, proposed)
			if err != nil {
				done <- err.Error()
				return
			}
			done <- out.Version.String()
		}()
	}
	for i := 0; i < cap(done); i++ {
		assert.Equal(t, "1.1.0", <-done)
	}
}
