package cache

import (
	"context"
	"time"
)

// Cache is a string key/value store with expiry.
// Get reports found=false for a missing or expired key.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
