package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iye-ms/msec-feedback/pkg/common/config"
	"github.com/iye-ms/msec-feedback/pkg/common/logger"
	"github.com/redis/go-redis/v9"
)

var (
	redisClient *redis.Client
	redisOnce   sync.Once
)

// GetRedis returns the shared client backing the dedup natural-key cache.
// The cache is best-effort: an unreachable Redis is logged and the client is
// returned anyway, since every cache miss falls through to Postgres.
func GetRedis() *redis.Client {
	redisOnce.Do(func() {
		cfg := config.Load()
		redisClient = redis.NewClient(&redis.Options{
			Addr:        fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			DialTimeout: 2 * time.Second,
			ReadTimeout: 500 * time.Millisecond,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Log.WithError(err).Warn("Redis unreachable, dedup cache will miss through to Postgres")
		} else {
			logger.Log.Info("Connected to Redis")
		}
	})

	return redisClient
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
