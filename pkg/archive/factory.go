package archive

import (
	"context"
	"fmt"
)

// StoreType selects the archive backend.
type StoreType string

const (
	StoreTypeNone StoreType = "none"
	StoreTypeFS   StoreType = "fs"
	StoreTypeS3   StoreType = "s3"
	StoreTypeGCS  StoreType = "gcs"
)

// Config selects and configures an archive backend. Field tags are read with envPrefix
// EVENTGATE_ARCHIVE_ by the config package.
type Config struct {
	Type       StoreType `env:"TYPE" envDefault:"fs" yaml:"type"`
	Dir        string    `env:"DIR" envDefault:"data/schemas" yaml:"dir"`
	S3Bucket   string    `env:"S3_BUCKET" yaml:"s3_bucket"`
	S3Region   string    `env:"S3_REGION" envDefault:"us-east-1" yaml:"s3_region"`
	S3Endpoint string    `env:"S3_ENDPOINT" yaml:"s3_endpoint"`
	S3Prefix   string    `env:"S3_PREFIX" yaml:"s3_prefix"`
	GCSBucket  string    `env:"GCS_BUCKET" yaml:"gcs_bucket"`
	GCSPrefix  string    `env:"GCS_PREFIX" yaml:"gcs_prefix"`
}

// NewFromConfig creates the configured archive. StoreTypeNone returns a nil Store.
func NewFromConfig(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Type {
	case StoreTypeNone:
		return nil, nil
	case StoreTypeFS, "":
		dir := cfg.Dir
		if dir == "" {
			dir = "data/schemas"
		}
		return NewFileStore(dir)
	case StoreTypeS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("EVENTGATE_ARCHIVE_S3_BUCKET is required for S3 storage")
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:   cfg.S3Bucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
			Prefix:   cfg.S3Prefix,
		})
	case StoreTypeGCS:
		return newGCSStoreFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported archive storage type: %s", cfg.Type)
	}
}
