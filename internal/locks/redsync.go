// Package locks provides distributed locks on the Redlock algorithm from
// go-redsync/redsync/v4.
package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v8"

	"webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/redis"
)

// RedsyncLocker hands out non-blocking named locks. A lock held by another
// process is reported as not acquired rather than as an error.
type RedsyncLocker struct {
	client  *redis.Client
	redsync *redsync.Redsync

	mu      sync.Mutex
	mutexes map[string]*redsync.Mutex
}

func NewRedsyncLocker(client *redis.Client) (*RedsyncLocker, error) {
	if client == nil {
		return nil, errors.ConfigError("redis client is required")
	}
	return &RedsyncLocker{
		client:  client,
		redsync: redsync.New(goredis.NewPool(client.Raw())),
		mutexes: make(map[string]*redsync.Mutex),
	}, nil
}

func lockName(key string) string {
	return "lock:" + key
}

// AcquireLock makes one attempt to take key for expiration
func (l *RedsyncLocker) AcquireLock(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	name := lockName(key)
	mutex := l.redsync.NewMutex(name, redsync.WithExpiry(expiration), redsync.WithTries(1))

	if err := mutex.LockContext(ctx); err != nil {
		held, existsErr := l.client.Raw().Exists(ctx, name).Result()
		if existsErr != nil {
			return false, fmt.Errorf("failed to acquire lock %s: %w", key, existsErr)
		}
		if held > 0 {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}

	l.mu.Lock()
	l.mutexes[key] = mutex
	l.mu.Unlock()
	return true, nil
}

// ReleaseLock releases key if this locker holds it
func (l *RedsyncLocker) ReleaseLock(ctx context.Context, key string) error {
	l.mu.Lock()
	mutex, ok := l.mutexes[key]
	delete(l.mutexes, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}
	if _, err := mutex.UnlockContext(ctx); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
