// Package evolution decides whether a proposed event type snapshot may replace the current one
// and which schema version it gets.
//
// Validation runs in fixed stages: the proposed schema is parsed and checked against the
// meta-schema (fatal on failure), a new event type is accepted at 1.0.0, otherwise the schemas are
// diffed, every metadata constraint is evaluated, breaking changes are rejected unless the event
// type's compatibility mode is "none", and the surviving changes decide the version bump.
package evolution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution/diff"
	"github.com/Mindburn-Labs/eventgate/pkg/metaschema"
	"github.com/Mindburn-Labs/eventgate/pkg/schema"
	"github.com/Mindburn-Labs/eventgate/pkg/versioning"
)

const tracerName = "eventgate.evolution"

// Service validates schema evolution. It holds no mutable state and is safe for concurrent use.
type Service struct {
	meta        metaschema.Validator
	constraints []Constraint
	logger      *slog.Logger
	tracer      trace.Tracer
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMetaSchema replaces the embedded meta-schema validator.
func WithMetaSchema(v metaschema.Validator) ServiceOption {
	return func(s *Service) {
		s.meta = v
	}
}

// WithConstraints appends constraints after the built-in ones.
func WithConstraints(cs ...Constraint) ServiceOption {
	return func(s *Service) {
		s.constraints = append(s.constraints, cs...)
	}
}

func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func WithTracer(t trace.Tracer) ServiceOption {
	return func(s *Service) {
		s.tracer = t
	}
}

func NewService(opts ...ServiceOption) *Service {
	s := &Service{
		constraints: DefaultConstraints(),
		logger:      slog.Default().With("component", "evolution"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.meta == nil {
		s.meta = metaschema.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}
	return s
}

// Constraints returns the names of the registered constraints in evaluation order.
func (s *Service) Constraints() []string {
	names := make([]string, len(s.constraints))
	for i, c := range s.constraints {
		names[i] = c.Name()
	}
	return names
}

// Validate checks proposed against current, which is nil for a new event type.
//
// A non-nil error means the request could not be judged: the schema does not parse
// (ErrSchemaParse) or is not a valid JSON Schema (ErrMetaSchemaInvalid). Otherwise the outcome
// is either accepted with the new version or rejected with every violation found.
func (s *Service) Validate(ctx context.Context, current, proposed *eventtype.EventType) (out *Outcome, err error) {
	if proposed == nil {
		return nil, errors.New("evolution: proposed event type is nil")
	}

	ctx, span := s.tracer.Start(ctx, "evolution.Validate",
		trace.WithAttributes(attribute.String("event_type", proposed.Name)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.String("outcome", string(out.Status)),
				attribute.String("version", out.Version.String()),
				attribute.Int("changes", len(out.Changes)),
			)
		}
		span.End()
	}()

	proposedDoc, err := schema.ParseString(proposed.Schema.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: proposed schema: %w", ErrSchemaParse, err)
	}
	if err := s.meta.Check(proposedDoc.Root()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMetaSchemaInvalid, err)
	}

	if current == nil {
		s.logger.DebugContext(ctx, "event type created", "event_type", proposed.Name)
		return &Outcome{
			EventType: proposed.Name,
			Status:    StatusAccepted,
			Version:   versioning.Initial,
			Created:   true,
		}, nil
	}

	currentDoc, err := schema.ParseString(current.Schema.Schema)
	if err != nil {
		return nil, fmt.Errorf("%w: current schema: %w", ErrSchemaParse, err)
	}

	changes := diff.Compare(currentDoc, proposedDoc)
	violations := s.evaluateConstraints(changes, current, proposed)

	if current.CompatibilityMode != eventtype.ModeNone {
		for _, c := range changes {
			if Severity(c.Kind) == versioning.LevelMajor {
				violations = append(violations, Violation{
					Kind:    KindBreakingSchemaChange,
					Source:  c.Kind.String(),
					Path:    c.Path,
					Message: BreakingMessage(c),
				})
			}
		}
	}

	out = &Outcome{
		EventType: proposed.Name,
		Changes:   classifyAll(changes),
	}
	if len(violations) > 0 {
		out.Status = StatusRejected
		out.Version = current.Version()
		out.Violations = violations
		s.logger.InfoContext(ctx, "schema evolution rejected",
			"event_type", proposed.Name,
			"version", current.Version().String(),
			"violations", len(violations),
		)
		return out, nil
	}

	out.Status = StatusAccepted
	out.Level = ComputeBump(changes)
	out.Version = current.Version().Bump(out.Level)
	s.logger.DebugContext(ctx, "schema evolution accepted",
		"event_type", proposed.Name,
		"from", current.Version().String(),
		"to", out.Version.String(),
		"level", out.Level.String(),
	)
	return out, nil
}

type violationKinder interface {
	violationKind() ErrorKind
}

func (s *Service) evaluateConstraints(changes []diff.Change, current, proposed *eventtype.EventType) []Violation {
	var out []Violation
	for _, c := range s.constraints {
		kind := KindImmutableFieldChanged
		if k, ok := c.(violationKinder); ok {
			kind = k.violationKind()
		}
		for _, msg := range c.Evaluate(changes, current, proposed) {
			out = append(out, Violation{Kind: kind, Source: c.Name(), Message: msg})
		}
	}
	return out
}
