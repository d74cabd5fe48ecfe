package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper guards one-shot operations (e.g. accepting an invite token) across gateway
// replicas with a redis SETNX.
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce returns true when the caller is the first to claim (scope, key) within ttl.
// A nil deduper or an unavailable redis allows the operation.
func (d *Deduper) AcquireOnce(ctx context.Context, scope, key string) bool {
	if d == nil || d.rdb == nil {
		return true
	}
	dedupKey := fmt.Sprintf("dedup:%s:%s", scope, key)

	ok, err := d.rdb.SetNX(ctx, dedupKey, 1, d.ttl).Result()
	if err != nil {
		// redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing operation",
			zap.String("scope", scope),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Info("Skipped duplicated operation",
			zap.String("scope", scope),
			zap.String("dedup_key", dedupKey),
		)
	}
	return ok
}

// Release drops the claim so a failed operation can be attempted again.
func (d *Deduper) Release(ctx context.Context, scope, key string) {
	if d == nil || d.rdb == nil {
		return
	}
	if err := d.rdb.Del(ctx, fmt.Sprintf("dedup:%s:%s", scope, key)).Err(); err != nil {
		d.logger.Warn("Redis dedup release failed", zap.String("scope", scope), zap.Error(err))
	}
}
