// Package lease guards reconciliation passes against concurrent scheduler instances.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned by Release when this instance does not own the lease.
var ErrNotHeld = errors.New("lease not held")

// Lease is a mutual-exclusion token shared by every scheduler instance.
type Lease interface {
	// Acquire reports whether this instance now owns the lease.
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Local is the single-instance lease: acquiring always succeeds.
type Local struct{}

func (Local) Acquire(context.Context) (bool, error) { return true, nil }
func (Local) Release(context.Context) error { return nil }

// releaseScript deletes the key only while it still carries our token, so an
// expired lease taken over by another instance is never released by us.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLease implements Lease with SET NX PX and a token-checked release.
type RedisLease struct {
	rdb   *goredis.Client
	key   string
	ttl   time.Duration
	mu    sync.Mutex
	token string
}

// NewRedisLease connects to addr and verifies the connection.
func NewRedisLease(addr, key string, ttl time.Duration) (*RedisLease, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLease{rdb: rdb, key: key, ttl: ttl}, nil
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis lease acquire: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

func (l *RedisLease) Release(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return ErrNotHeld
	}

	deleted, err := releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Int()
	if err != nil {
		return fmt.Errorf("redis lease release: %w", err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// Close closes the redis connection.
func (l *RedisLease) Close() error {
	return l.rdb.Close()
}
