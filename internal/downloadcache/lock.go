package downloadcache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes concurrent fetches of the same cache key, returning
// an unlock function once the lock is held.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// localLocker is an in-process Locker: one *sync.Mutex per key, adequate
// when a single worker process owns the cache directory outright.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLocalLocker() *localLocker {
	return &localLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		close(done)
	}()
	select {
	case <-done:
		return m.Unlock, nil
	case <-ctx.Done():
		go func() { <-done; m.Unlock() }()
		return nil, ctx.Err()
	}
}

// redisLocker backs the advisory lock with Redis SETNX plus a TTL, so a
// worker that crashes mid-download doesn't wedge the key forever. Two
// workers racing to fetch the same URI poll rather than block natively,
// since Redis has no blocking SETNX primitive.
type redisLocker struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func newRedisLocker(addr, password string, db int) (*redisLocker, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	return &redisLocker{client: client, ttl: 5 * time.Minute}, nil
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "wdlrun:downloadcache:lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis setnx: %w", err)
		}
		if ok {
			unlock := func() {
				// Only clear the key if we still own it, so a lock that
				// outlived its TTL and was reclaimed by another worker
				// isn't released out from under them.
				script := redis.NewScript(`
					if redis.call("get", KEYS[1]) == ARGV[1] then
						return redis.call("del", KEYS[1])
					end
					return 0
				`)
				script.Run(context.Background(), l.client, []string{lockKey}, token)
			}
			return unlock, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
