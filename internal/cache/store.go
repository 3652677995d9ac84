package cache

import (
	"context"
	"time"
)

// Store is the persistent mirror behind the in-memory caches. A mirror can
// be arbitrarily stale relative to the remote strategy store; it only has to
// survive a process restart.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
