// Package redis provides a Redis-backed EphemeralStore. It also implements
// AtomicIncrer, so counters bump server-side in a single Lua round trip
// instead of the read/write/verify fallback.
package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/arcanahq/usagegate"
)

// incrScript bumps the counter and sets the TTL only when the key was
// created by this call, so the window keeps its original deadline.
var incrScript = goredis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// decrScript decrements with a floor of zero. The counter never goes
// negative even when a release races a window reset.
var decrScript = goredis.NewScript(`
local n = redis.call("DECR", KEYS[1])
if n < 0 then
	n = redis.call("INCR", KEYS[1])
end
return n
`)

// Store is a Redis-backed EphemeralStore and AtomicIncrer.
type Store struct {
	client goredis.Cmdable
	prefix string
}

var (
	_ usagegate.EphemeralStore = (*Store)(nil)
	_ usagegate.AtomicIncrer   = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix namespaces all keys, for shared Redis deployments.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New wraps a Redis client. Any Cmdable works, including cluster clients.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + key
}

// Get returns the value at key, or ok=false if it is absent or expired.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Result()
	if err == goredis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("usagegate/redis: get: %w", err)
	}
	return v, true, nil
}

// Put stores value at key with the given TTL.
func (s *Store) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("usagegate/redis: put: %w", err)
	}
	return nil
}

// Incr atomically increments the counter at key, setting ttl on creation,
// and returns the new value.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrScript.Run(ctx, s.client, []string{s.key(key)}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("usagegate/redis: incr: %w", err)
	}
	return n, nil
}

// Decr atomically decrements the counter at key, floored at zero, and
// returns the new value.
func (s *Store) Decr(ctx context.Context, key string) (int64, error) {
	n, err := decrScript.Run(ctx, s.client, []string{s.key(key)}).Int64()
	if err != nil {
		return 0, fmt.Errorf("usagegate/redis: decr: %w", err)
	}
	return n, nil
}
