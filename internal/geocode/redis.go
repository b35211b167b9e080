package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// 文档注释：Redis 结果缓存
// 背景：多实例共享编码结果；值为 Result 的 JSON 编码，键带前缀以便与其他业务隔离。
// 约束：ttl<=0 表示不过期；客户端为 nil 时所有操作都是空操作。
type RedisCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(rdb *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "geocode:"
	}
	return &RedisCache{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Name() string { return "redis" }

func (c *RedisCache) Get(ctx context.Context, key AddressKey) (Result, bool, error) {
	if c.rdb == nil {
		return Result{}, false, nil
	}
	b, err := c.rdb.Get(ctx, c.prefix+key.CacheKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, false, nil
	}
	if err != nil {
		return Result{}, false, err
	}
	var r Result
	if err := json.Unmarshal(b, &r); err != nil {
		return Result{}, false, err
	}
	return r, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key AddressKey, r Result) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key.CacheKey(), b, c.ttl).Err()
}
