package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Mindburn-Labs/eventgate/pkg/archive"
	"github.com/Mindburn-Labs/eventgate/pkg/config"
	"github.com/Mindburn-Labs/eventgate/pkg/evolution"
	"github.com/Mindburn-Labs/eventgate/pkg/notify"
	"github.com/Mindburn-Labs/eventgate/pkg/observability"
	"github.com/Mindburn-Labs/eventgate/pkg/registry"
)

// app holds the registry and everything that must be released with it.
type app struct {
	registry *registry.Registry
	closers  []io.Closer
	obs      *observability.Provider
}

// openApp wires the registry from configuration.
func openApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	logger := slog.Default()
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.Close(ctx)
		}
	}()

	a.obs, err = observability.New(ctx, &cfg.Telemetry)
	if err != nil {
		return nil, err
	}

	store, closer, err := registry.OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closer)

	arch, err := archive.NewFromConfig(ctx, cfg.Archive)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema archive: %w", err)
	}
	if c, ok := arch.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	pub, err := notify.NewFromConfig(cfg.Notify)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, pub)

	engineOpts, err := cfg.ServiceOptions()
	if err != nil {
		return nil, err
	}
	engineOpts = append(engineOpts,
		evolution.WithLogger(logger.With("component", "evolution")),
		evolution.WithTracer(a.obs.Tracer()),
	)

	opts := []registry.Option{
		registry.WithPublisher(pub, cfg.Notify.Source),
		registry.WithObservability(a.obs),
		registry.WithLogger(logger.With("component", "registry")),
		registry.WithRetentionBounds(cfg.MinRetentionMs, cfg.MaxRetentionMs),
		registry.WithMaxAttempts(cfg.MaxUpdateAttempts),
	}
	if arch != nil {
		opts = append(opts, registry.WithArchive(arch))
	}
	a.registry = registry.New(store, evolution.NewService(engineOpts...), opts...)
	return a, nil
}

// Close releases every resource in reverse order of acquisition.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
