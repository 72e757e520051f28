package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrNotFound is returned when a key has no object
var ErrNotFound = errors.New("blob not found")

// BlobStore keeps question images by key
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader) (string, error) // returns canonical key
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Config selects and configures a blob store backend
type Config struct {
	Driver string `mapstructure:"driver"` // "fs" or "minio"
	Path   string `mapstructure:"path"`

	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioSecure   bool   `mapstructure:"minio_secure"`
}

// New opens the configured backend
func New(ctx context.Context, cfg Config) (BlobStore, error) {
	switch cfg.Driver {
	case "", "fs":
		return NewFSStore(cfg.Path)
	case "minio":
		return NewMinioStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported blob driver: %s", cfg.Driver)
	}
}
