package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys of requests that already ran a workflow
type IdempotencyStore interface {
	// MarkProcessed claims a key for ttl.
	// Returns true if the key was newly claimed, false if it was already taken.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been claimed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release drops a claim so a failed request can be retried with the same key
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
