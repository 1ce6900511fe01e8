package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"
)

// ErrBusy is returned by a Guard when the key is already held.
var ErrBusy = errors.New("operation already in progress")

// Guard serialises operations on one booking.  Acquire returns a release
// function that must be called exactly once.
type Guard interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// releaseScript deletes the key only when it still holds our token, so a
// holder whose lease expired cannot drop someone else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisGuard is a lease-based lock in Redis (SET NX PX).  The lease
// outlives a crashed holder by at most ttl.  When Redis itself fails the
// guard lets the operation through; the storage layer's conditional
// updates still protect the shared counters.
type RedisGuard struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *log.Logger
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisGuard{rdb: rdb, ttl: ttl, prefix: "guard:", log: log.New("guard")}
}

func (g *RedisGuard) Acquire(ctx context.Context, key string) (func(), error) {
	k := g.prefix + key
	token := uuid.NewString()
	ok, err := g.rdb.SetNX(ctx, k, token, g.ttl).Result()
	if err != nil {
		g.log.Warnf("redis unavailable, proceeding without guard on %s: %v", k, err)
		return func() {}, nil
	}
	if !ok {
		return nil, ErrBusy
	}
	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, g.rdb, []string{k}, token).Err(); err != nil {
			g.log.Warnf("release %s: %v", k, err)
		}
	}, nil
}

// LocalGuard is an in-process Guard for single-instance deployments and
// tests.
type LocalGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalGuard() *LocalGuard { return &LocalGuard{held: make(map[string]struct{})} }

func (g *LocalGuard) Acquire(_ context.Context, key string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.held[key]; busy {
		return nil, ErrBusy
	}
	g.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.held, key)
			g.mu.Unlock()
		})
	}, nil
}

func bookingKey(id uint64) string { return fmt.Sprintf("booking:%d", id) }
