package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is the blob backend behind image uploads.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, time.Time, error)
}

var (
	_ ObjectStore = (*LocalStore)(nil)
	_ ObjectStore = (*S3Store)(nil)
)
