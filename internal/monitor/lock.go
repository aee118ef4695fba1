package monitor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLock serializes sweeps across processes sharing one store.
type SweepLock interface {
	// Acquire returns a release func when the lock was taken, or ok=false if
	// another holder has it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context), ok bool, err error)
}

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
end
return 0`)

// RedisSweepLock is a SET NX PX lock released only by its holder.
type RedisSweepLock struct {
	client *redis.Client
	prefix string
}

// NewRedisSweepLock builds a lock namespaced under prefix.
func NewRedisSweepLock(client *redis.Client, prefix string) *RedisSweepLock {
	if prefix == "" {
		prefix = "ticket-sla:lock"
	}
	return &RedisSweepLock{client: client, prefix: prefix}
}

func (l *RedisSweepLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context), bool, error) {
	key := fmt.Sprintf("%s:%s", l.prefix, name)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}
	return func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, true, nil
}

// guard keeps sweeps of one monitor from overlapping inside the process.
type guard struct {
	running atomic.Bool
}

func (g *guard) enter() bool { return g.running.CompareAndSwap(false, true) }
func (g *guard) leave()      { g.running.Store(false) }
