package customers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes work for a single (business, phone) pair.
type Locker interface {
	Lock(ctx context.Context, ownerID, phone string) (unlock func(), err error)
}

func lockKey(ownerID, phone string) string {
	return fmt.Sprintf("lock:customer:%s:%s", ownerID, phone)
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker is a lease lock shared by every API replica. A held lease is
// renewed every ttl/3 until released, so a turn may outlive ttl.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	wait       time.Duration
	backoff    time.Duration
	renewEvery time.Duration
}

// NewRedisLocker holds each lease for ttl and waits up to ttl to acquire it.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if client == nil {
		panic("customers: redis client required")
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	renew := ttl / 3
	if renew <= 0 {
		renew = ttl
	}
	return &RedisLocker{client: client, ttl: ttl, wait: ttl, backoff: 50 * time.Millisecond, renewEvery: renew}
}

func (l *RedisLocker) Lock(ctx context.Context, ownerID, phone string) (func(), error) {
	key := lockKey(ownerID, phone)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("customers: acquire lock: %w", err)
		}
		if ok {
			// release even when the request context is already done
			bg := context.WithoutCancel(ctx)
			stop := l.keepAlive(bg, key, token)
			var once sync.Once
			return func() {
				once.Do(func() {
					stop()
					_ = releaseScript.Run(bg, l.client, []string{key}, token).Err()
				})
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.backoff):
		}
	}
}

// keepAlive extends the lease while it is still ours. The returned func
// stops renewal and waits for the renewing goroutine to exit.
func (l *RedisLocker) keepAlive(ctx context.Context, key, token string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.renewEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			n, err := renewScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				// transient; the next tick retries while the lease lasts
				continue
			}
			if n == 0 {
				// lease lost to expiry or another holder
				return
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
