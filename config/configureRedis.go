package config

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// InitRedisServer connects the client that backs conversation state,
// webhook dedup keys and the completion once-guard.
func InitRedisServer(ctx context.Context) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     GetEnvDefault("REDIS_ADDRESS", "localhost:6379"),
		Password: GetEnv("REDIS_PASSWORD"),
		DB:       0,
	})

	_, err := client.Ping(ctx).Result()
	if err != nil {
		panic(err)
	}

	return client
}
