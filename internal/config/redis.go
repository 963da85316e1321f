package config

import (
	"os"
	"sync"
)

// RedisConfig is optional: when URL is empty the never-analyze list is kept
// in memory instead of Redis.
type RedisConfig struct {
	URL string
}

var (
	redisConfig *RedisConfig
	redisOnce   sync.Once
)

func LoadRedisConfig() *RedisConfig {
	redisOnce.Do(func() {
		redisConfig = &RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		}
	})
	return redisConfig
}
