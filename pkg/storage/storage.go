package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/isassess/isassess/pkg/config"
)

// Store keeps evidence files.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// URL returns a link the client can download the object from.
	URL(ctx context.Context, key string) (string, error)
}

func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	ttl := cfg.PresignTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	switch cfg.Driver {
	case "s3":
		return NewS3Store(ctx, cfg.Bucket, cfg.Region, ttl)
	case "local", "":
		return NewLocalStore(cfg.LocalDir, "/api/v1/evidences/file")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
