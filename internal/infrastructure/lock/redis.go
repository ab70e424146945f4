package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	appinventory "github.com/erp/ledger/internal/application/inventory"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisConfig tunes the distributed locker
type RedisConfig struct {
	KeyPrefix string
	TTL       time.Duration
	// RetryInterval and MaxRetries bound how long Acquire waits for a busy product
	RetryInterval time.Duration
	MaxRetries    int
}

// RedisLocker takes one Redis lock per product so that several ledger
// instances never price the same product at once
type RedisLocker struct {
	client *redislock.Client
	cfg    RedisConfig
	logger *zap.Logger
}

// NewRedisLocker creates a RedisLocker on an existing client
func NewRedisLocker(client redis.UniversalClient, cfg RedisConfig, logger *zap.Logger) *RedisLocker {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ledger:lock:product:"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 50 * time.Millisecond
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 100
	}
	return &RedisLocker{
		client: redislock.New(client),
		cfg:    cfg,
		logger: logger,
	}
}

// Acquire obtains the product locks in ascending UUID order. A product still
// busy after the retry budget yields shared.ErrConcurrencyConflict.
func (l *RedisLocker) Acquire(ctx context.Context, productIDs []uuid.UUID) (func(), error) {
	ids := sortedUnique(productIDs)
	held := make([]*redislock.Lock, 0, len(ids))
	opts := &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.cfg.RetryInterval), l.cfg.MaxRetries),
	}

	for _, id := range ids {
		lk, err := l.client.Obtain(ctx, l.key(id), l.cfg.TTL, opts)
		if err != nil {
			l.release(held)
			if errors.Is(err, redislock.ErrNotObtained) {
				return nil, fmt.Errorf("%w: product %s is locked by another writer", shared.ErrConcurrencyConflict, id)
			}
			return nil, fmt.Errorf("obtain lock for product %s: %w", id, err)
		}
		held = append(held, lk)
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(held) }) }, nil
}

func (l *RedisLocker) key(id uuid.UUID) string {
	return l.cfg.KeyPrefix + id.String()
}

// release uses a fresh context so a cancelled request still frees its locks
func (l *RedisLocker) release(held []*redislock.Lock) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release product lock",
				zap.String("key", held[i].Key()),
				zap.Error(err))
		}
	}
}

var _ appinventory.ProductLocker = (*RedisLocker)(nil)
