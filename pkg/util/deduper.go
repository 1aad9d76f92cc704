package util

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 对同一个 key 的并发处理做互斥：Acquire 成功的调用者负责 Release
type Deduper interface {
	Acquire(ctx context.Context, key string) bool
	Release(ctx context.Context, key string)
}

// RedisDeduper 基于 SETNX 的去重锁，TTL 防止进程崩溃后锁不释放
type RedisDeduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisDeduper {
	return &RedisDeduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

// Acquire returns true if the caller now holds key.
func (d *RedisDeduper) Acquire(ctx context.Context, key string) bool {
	ok, err := d.rdb.SetNX(ctx, "dedup:"+key, 1, d.ttl).Result()
	if err != nil {
		// Redis 不可用时不阻止处理
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("dedup_key", key),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		d.logger.Info("Skipped duplicated processing", zap.String("dedup_key", key))
	}
	return ok
}

func (d *RedisDeduper) Release(ctx context.Context, key string) {
	if err := d.rdb.Del(ctx, "dedup:"+key).Err(); err != nil {
		d.logger.Warn("Failed to release dedup key",
			zap.String("dedup_key", key),
			zap.Error(err),
		)
	}
}

// LocalDeduper 进程内实现，单实例部署且未配置 Redis 时使用
type LocalDeduper struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewLocalDeduper() *LocalDeduper {
	return &LocalDeduper{held: make(map[string]struct{})}
}

func (d *LocalDeduper) Acquire(_ context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.held[key]; ok {
		return false
	}
	d.held[key] = struct{}{}
	return true
}

func (d *LocalDeduper) Release(_ context.Context, key string) {
	d.mu.Lock()
	delete(d.held, key)
	d.mu.Unlock()
}
