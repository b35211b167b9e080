// 包 utils：外部连接工具，统一从配置打开 Postgres 与 Redis 客户端
package utils

import (
	"geodata/internal/config"
	"geodata/internal/logger"

	"github.com/redis/go-redis/v9"
)

// OpenRedis：按配置打开 Redis 客户端
// 约束：未启用时返回 nil，调用方据此跳过 Redis 缓存层
func OpenRedis(c config.Config) *redis.Client {
	if !c.RedisEnabled {
		return nil
	}
	logger.L().Debug("redis_config", "addr", c.RedisAddr(), "db", c.RedisDB)
	return redis.NewClient(&redis.Options{Addr: c.RedisAddr(), Password: c.RedisPass, DB: c.RedisDB})
}
