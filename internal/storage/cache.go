package storage

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache 简单的字符串缓存，解释接口用来避免重复抓取同一篇文章
type Cache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

// RedisCache 基于 Redis 的实现，错误一律按未命中处理
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCache(rdb *redis.Client, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if err != nil {
		return "", false
	}
	return v, true
}

func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	_ = c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

type memItem struct {
	value   string
	expires time.Time
}

// memCacheMaxItems 进程内缓存的条目上限
const memCacheMaxItems = 1000

// MemoryCache 进程内实现，未配置 Redis 时使用；写入时顺带清掉过期条目
type MemoryCache struct {
	mu    sync.Mutex
	items map[string]memItem
	now   func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]memItem), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok {
		return "", false
	}
	if !it.expires.IsZero() && c.now().After(it.expires) {
		delete(c.items, key)
		return "", false
	}
	return it.value, true
}

func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.sweep(now)
	if _, ok := c.items[key]; !ok && len(c.items) >= memCacheMaxItems {
		c.evictOldest()
	}
	it := memItem{value: value}
	if ttl > 0 {
		it.expires = now.Add(ttl)
	}
	c.items[key] = it
}

func (c *MemoryCache) sweep(now time.Time) {
	for k, it := range c.items {
		if !it.expires.IsZero() && now.After(it.expires) {
			delete(c.items, k)
		}
	}
}

// evictOldest 删掉最早过期的一条，没有过期时间的条目最后才删
func (c *MemoryCache) evictOldest() {
	var victim string
	var at time.Time
	found := false
	for k, it := range c.items {
		switch {
		case !found:
		case it.expires.IsZero():
			continue
		case at.IsZero() || it.expires.Before(at):
		default:
			continue
		}
		victim, at, found = k, it.expires, true
	}
	if found {
		delete(c.items, victim)
	}
}

// CacheFor 有 Redis 用 Redis，否则退回进程内缓存
func (s *Store) CacheFor(prefix string) Cache {
	if s != nil && s.Redis != nil {
		return NewRedisCache(s.Redis, prefix)
	}
	return NewMemoryCache()
}
