// Package registry stores event types and admits schema changes only through the evolution engine.
//
// Updates are serialized per event type with a compare-and-set on the stored revision. When a
// concurrent writer wins, the update is re-validated against the fresh snapshot instead of
// reusing a version computed from stale state.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/Mindburn-Labs/eventgate/pkg/archive"
	"github.com/Mindburn-Labs/eventgate/pkg/canonicalize"
	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
	"github.com/Mindburn-Labs/eventgate/pkg/notify"
	"github.com/Mindburn-Labs/eventgate/pkg/observability"
	"github.com/Mindburn-Labs/eventgate/pkg/schema"
)

const DefaultMaxAttempts = 3

// Registry is the write path for event types.
type Registry struct {
	store     Store
	engine    *evolution.Service
	archive   archive.Store
	publisher notify.Publisher
	source    string
	obs       *observability.Provider
	logger    *slog.Logger

	minRetentionMs int64
	maxRetentionMs int64
	maxAttempts    int
	now            func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithArchive stores every accepted schema document in a content-addressed archive.
func WithArchive(a archive.Store) Option {
	return func(r *Registry) {
		r.archive = a
	}
}

// WithPublisher announces creations and evolutions. source is the CloudEvents source.
func WithPublisher(p notify.Publisher, source string) Option {
	return func(r *Registry) {
		r.publisher = p
		r.source = source
	}
}

func WithObservability(p *observability.Provider) Option {
	return func(r *Registry) {
		r.obs = p
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithRetentionBounds sets the accepted range for options.retention_time in milliseconds.
func WithRetentionBounds(minMs, maxMs int64) Option {
	return func(r *Registry) {
		r.minRetentionMs = minMs
		r.maxRetentionMs = maxMs
	}
}

// WithMaxAttempts bounds how often an update is re-validated after losing a race.
func WithMaxAttempts(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// New creates a registry on store. A nil engine uses evolution.NewService().
func New(store Store, engine *evolution.Service, opts ...Option) *Registry {
	if engine == nil {
		engine = evolution.NewService()
	}
	r := &Registry{
		store:          store,
		engine:         engine,
		publisher:      notify.Noop{},
		logger:         slog.Default().With("component", "registry"),
		minRetentionMs: eventtype.DefaultMinRetentionMs,
		maxRetentionMs: eventtype.DefaultMaxRetentionMs,
		maxAttempts:    DefaultMaxAttempts,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.obs == nil {
		r.obs, _ = observability.New(context.Background(), &observability.Config{Enabled: false})
	}
	return r
}

// Create registers a new event type at version 1.0.0.
//
// Creation has no previous snapshot, so it is never rejected by the engine. Errors wrap
// evolution.ErrSchemaParse, evolution.ErrMetaSchemaInvalid, eventtype.ErrInvalidEventType,
// eventtype.ErrInvalidOptions or ErrAlreadyExists.
func (r *Registry) Create(ctx context.Context, et *eventtype.EventType) (_ *eventtype.EventType, _ *evolution.Outcome, err error) {
	proposed, err := r.prepare(et)
	if err != nil {
		return nil, nil, err
	}

	ctx, done := r.obs.TrackOperation(ctx, "registry.create", observability.RegistryOperation(proposed.Name, "create")...)
	defer func() { done(err) }()

	out, err := r.engine.Validate(ctx, nil, proposed)
	if err != nil {
		return nil, nil, err
	}
	r.obs.RecordOutcome(ctx, string(out.Status), out.Level.String(), observability.AttrEventType.String(proposed.Name))

	now := r.now().UTC()
	proposed.Schema.Version = out.Version
	proposed.Schema.CreatedAt = now
	proposed.CreatedAt = now
	proposed.UpdatedAt = now
	proposed.Revision = 1
	if err := r.fingerprint(ctx, proposed); err != nil {
		return nil, nil, err
	}

	if err := r.store.Create(ctx, proposed); err != nil {
		return nil, nil, err
	}
	r.logger.InfoContext(ctx, "event type created", "event_type", proposed.Name, "version", proposed.Version().String())

	event, err := notify.NewCreatedEvent(r.source, proposed)
	r.publish(ctx, event, err)
	return proposed.Clone(), out, nil
}

// Update validates et against the stored snapshot and stores it at the computed version.
//
// A rejected proposal returns the current snapshot, the outcome, and a *evolution.RejectedError;
// the store is not touched. ErrVersionConflict is returned only after every attempt lost a race.
func (r *Registry) Update(ctx context.Context, et *eventtype.EventType) (_ *eventtype.EventType, _ *evolution.Outcome, err error) {
	proposed, err := r.prepare(et)
	if err != nil {
		return nil, nil, err
	}

	ctx, done := r.obs.TrackOperation(ctx, "registry.update", observability.RegistryOperation(proposed.Name, "update")...)
	defer func() { done(err) }()

	for attempt := 1; ; attempt++ {
		current, err := r.store.Get(ctx, proposed.Name)
		if err != nil {
			return nil, nil, err
		}

		out, err := r.engine.Validate(ctx, current, proposed)
		if err != nil {
			return nil, nil, err
		}
		r.obs.RecordOutcome(ctx, string(out.Status), out.Level.String(), observability.AttrEventType.String(proposed.Name))
		if !out.Accepted() {
			return current, out, out.Err()
		}

		next, err := r.advance(ctx, current, proposed, out)
		if err != nil {
			return nil, nil, err
		}

		err = r.store.CompareAndSwap(ctx, current.Revision, next)
		if errors.Is(err, ErrVersionConflict) && attempt < r.maxAttempts {
			r.logger.WarnContext(ctx, "concurrent update, revalidating",
				"event_type", proposed.Name,
				"revision", current.Revision,
				"attempt", attempt,
			)
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		r.logger.InfoContext(ctx, "event type updated",
			"event_type", next.Name,
			"from", current.Version().String(),
			"to", next.Version().String(),
			"level", out.Level.String(),
		)
		event, err := notify.NewEvolvedEvent(r.source, current, next, out)
		r.publish(ctx, event, err)
		return next.Clone(), out, nil
	}
}

// Get returns the current snapshot of name.
func (r *Registry) Get(ctx context.Context, name string) (_ *eventtype.EventType, err error) {
	ctx, done := r.obs.TrackOperation(ctx, "registry.get", observability.RegistryOperation(name, "get")...)
	defer func() { done(ignoreNotFound(err)) }()

	return r.store.Get(ctx, name)
}

// History returns every stored snapshot of name, oldest first.
func (r *Registry) History(ctx context.Context, name string) (_ []*eventtype.EventType, err error) {
	ctx, done := r.obs.TrackOperation(ctx, "registry.history", observability.RegistryOperation(name, "history")...)
	defer func() { done(ignoreNotFound(err)) }()

	return r.store.History(ctx, name)
}

// List returns the current snapshot of every event type, ordered by name.
func (r *Registry) List(ctx context.Context) (_ []*eventtype.EventType, err error) {
	ctx, done := r.obs.TrackOperation(ctx, "registry.list", observability.AttrOperation.String("list"))
	defer func() { done(err) }()

	return r.store.List(ctx)
}

// prepare copies et, normalizes its name and applies defaults and metadata validation.
func (r *Registry) prepare(et *eventtype.EventType) (*eventtype.EventType, error) {
	if et == nil {
		return nil, fmt.Errorf("%w: nil event type", eventtype.ErrInvalidEventType)
	}
	proposed := et.Clone()
	name, err := eventtype.NormalizeName(proposed.Name)
	if err != nil {
		return nil, err
	}
	proposed.Name = name
	proposed.ApplyDefaults()
	if err := proposed.Validate(); err != nil {
		return nil, err
	}
	if err := proposed.ValidateOptions(r.minRetentionMs, r.maxRetentionMs); err != nil {
		return nil, err
	}
	return proposed, nil
}

// advance builds the snapshot that replaces current once out was accepted.
func (r *Registry) advance(ctx context.Context, current, proposed *eventtype.EventType, out *evolution.Outcome) (*eventtype.EventType, error) {
	now := r.now().UTC()
	next := proposed.Clone()
	next.Schema.Version = out.Version
	next.Schema.CreatedAt = current.Schema.CreatedAt
	if out.Version != current.Version() {
		next.Schema.CreatedAt = now
	}
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = now
	next.Revision = current.Revision + 1
	if err := r.fingerprint(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// fingerprint records the canonical schema digest and archives the canonical document.
func (r *Registry) fingerprint(ctx context.Context, et *eventtype.EventType) error {
	doc, err := schema.ParseString(et.Schema.Schema)
	if err != nil {
		return fmt.Errorf("%w: %w", evolution.ErrSchemaParse, err)
	}
	canonical, err := canonicalize.JCS(doc.Root())
	if err != nil {
		return fmt.Errorf("failed to canonicalize schema of %s: %w", et.Name, err)
	}
	et.SchemaFingerprint = canonicalize.HashBytes(canonical)

	if r.archive == nil {
		return nil
	}
	key, err := r.archive.Put(ctx, canonical)
	if err != nil {
		return fmt.Errorf("failed to archive schema of %s: %w", et.Name, err)
	}
	if key != et.SchemaFingerprint {
		return fmt.Errorf("archive returned %s for schema fingerprint %s", key, et.SchemaFingerprint)
	}
	return nil
}

// publish sends a notification. Delivery failures are logged; the write already happened.
func (r *Registry) publish(ctx context.Context, event cloudevents.Event, buildErr error) {
	if buildErr != nil {
		r.logger.ErrorContext(ctx, "failed to build notification", "error", buildErr)
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "failed to publish notification",
			"type", event.Type(),
			"event_type", event.Subject(),
			"error", err,
		)
	}
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
