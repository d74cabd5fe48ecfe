package auth

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"rfqgateway/internal/model"
)

// SessionCache stores resolved users keyed by a token digest.
type SessionCache interface {
	Get(ctx context.Context, key string) (*model.AuthUser, bool)
	Set(ctx context.Context, key string, user *model.AuthUser, ttl time.Duration)
	Invalidate(ctx context.Context, key string)
}

// RedisSessionCache shares sessions between gateway replicas. Redis failures are
// logged and treated as misses.
type RedisSessionCache struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisSessionCache(rdb *redis.Client, logger *zap.Logger) *RedisSessionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSessionCache{rdb: rdb, prefix: "session:", logger: logger}
}

func (c *RedisSessionCache) Get(ctx context.Context, key string) (*model.AuthUser, bool) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Session cache read failed", zap.Error(err))
		}
		return nil, false
	}
	var user model.AuthUser
	if err := json.Unmarshal(raw, &user); err != nil {
		c.logger.Warn("Session cache entry corrupt, dropping", zap.Error(err))
		c.Invalidate(ctx, key)
		return nil, false
	}
	return &user, true
}

func (c *RedisSessionCache) Set(ctx context.Context, key string, user *model.AuthUser, ttl time.Duration) {
	if user == nil || ttl <= 0 {
		return
	}
	b, err := json.Marshal(user)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, c.prefix+key, b, ttl).Err(); err != nil {
		c.logger.Warn("Session cache write failed", zap.Error(err))
	}
}

func (c *RedisSessionCache) Invalidate(ctx context.Context, key string) {
	if err := c.rdb.Del(ctx, c.prefix+key).Err(); err != nil {
		c.logger.Warn("Session cache invalidate failed", zap.Error(err))
	}
}

type memoryEntry struct {
	user      *model.AuthUser
	expiresAt time.Time
}

// MemorySessionCache is the single-process fallback when no redis is configured.
type MemorySessionCache struct {
	mu        sync.Mutex
	entries   map[string]memoryEntry
	now       func() time.Time
	lastSweep time.Time
}

// expired entries are dropped on Set at most once per interval
const memorySweepInterval = time.Minute

func NewMemorySessionCache() *MemorySessionCache {
	return &MemorySessionCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemorySessionCache) Get(_ context.Context, key string) (*model.AuthUser, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	u := *e.user
	return &u, true
}

func (c *MemorySessionCache) Set(_ context.Context, key string, user *model.AuthUser, ttl time.Duration) {
	if user == nil || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastSweep) >= memorySweepInterval {
		c.sweep(now)
	}
	u := *user
	c.entries[key] = memoryEntry{user: &u, expiresAt: now.Add(ttl)}
}

// sweep must be called with mu held.
func (c *MemorySessionCache) sweep(now time.Time) {
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.lastSweep = now
}

func (c *MemorySessionCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
