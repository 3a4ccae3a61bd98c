package utils

import (
	"context"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cppla/filevault/config"
)

var (
	redisClient redis.Cmdable
	redisOnce   sync.Once
)

// GetRedis returns the shared Redis client, creating it from configuration
// on first use. Callers treat Redis as best-effort: every consumer has an
// in-memory fallback.
func GetRedis() redis.Cmdable {
	if redisClient != nil {
		return redisClient
	}
	redisOnce.Do(func() {
		cfg := config.Get()
		client := redis.NewClient(&redis.Options{
			Addr:         net.JoinHostPort(cfg.RedisHost, strconv.Itoa(cfg.RedisPort)),
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  3 * time.Second,
			ReadTimeout:  2 * time.Second,
			WriteTimeout: 2 * time.Second,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = client.Ping(ctx).Err()
		redisClient = client
	})
	return redisClient
}
