package registry

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// StoreConfig selects the Store backend. Field tags are read with envPrefix EVENTGATE_STORE_
// by the config package.
type StoreConfig struct {
	// Driver is one of memory, sqlite, postgres or redis.
	Driver        string `env:"DRIVER" envDefault:"sqlite" yaml:"driver"`
	DSN           string `env:"DSN" envDefault:"data/eventgate.db" yaml:"dsn"`
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379" yaml:"redis_addr"`
	RedisPassword string `env:"REDIS_PASSWORD" yaml:"-"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0" yaml:"redis_db"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"eventgate" yaml:"redis_prefix"`
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// OpenStore creates the configured Store. The returned closer releases its connections.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, io.Closer, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nopCloser{}, nil
	case "sqlite":
		if dir := filepath.Dir(cfg.DSN); dir != "." && cfg.DSN != ":memory:" {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return nil, nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		fallthrough
	case "postgres":
		s, err := OpenSQLStore(ctx, cfg.Driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		s := NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		s.prefix = cfg.RedisPrefix
		if s.prefix == "" {
			s.prefix = defaultRedisPrefix
		}
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", cfg.Driver)
	}
}
