package lock

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/semmidev/oraexport/internal/domain"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock that another host has since taken is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript renews the TTL under the same token check.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker serialises runs against one container across hosts that share
// the same database, e.g. RAC nodes each carrying the same cron entry. A held
// lock is renewed every third of its TTL, so an export may outlive the TTL;
// the TTL only bounds how long a crashed holder blocks others.
type RedisLocker struct {
	client  *redis.Client
	ttl     time.Duration
	refresh time.Duration
}

func NewRedis(addr, password string, db int, ttl time.Duration) (*RedisLocker, error) {
	if ttl < 3*time.Second {
		return nil, fmt.Errorf("redis lock ttl %s is too short", ttl)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cannot connect to Redis at %s: %w", addr, err)
	}

	return &RedisLocker{client: rdb, ttl: ttl, refresh: ttl / 3}, nil
}

// Acquire takes the lock and keeps it alive until release is called. Release
// reports an error when the lock was lost while held.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func() error, error) {
	token := uuid.NewString()
	k := lockKey(key)

	ok, err := l.client.SetNX(ctx, k, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to take redis lock %s: %w", k, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocked, k)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	var lost atomic.Bool

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.refresh)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				held, err := l.extend(k, token)
				if err != nil {
					// Transient; the next tick retries while the TTL lasts.
					continue
				}
				if !held {
					lost.Store(true)
					return
				}
			}
		}
	}()

	var once sync.Once
	var releaseErr error
	return func() error {
		once.Do(func() {
			close(stop)
			<-done

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{k}, token).Err(); err != nil {
				releaseErr = fmt.Errorf("failed to release redis lock %s: %w", k, err)
				return
			}
			if lost.Load() {
				releaseErr = fmt.Errorf("redis lock %s expired or was taken over while held", k)
			}
		})
		return releaseErr
	}, nil
}

func (l *RedisLocker) extend(key, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (l *RedisLocker) Close() error {
	return l.client.Close()
}

func lockKey(key string) string {
	return fmt.Sprintf("oraexport:lock:%s", key)
}
