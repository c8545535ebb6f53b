package redis

import (
	"context"
	"fmt"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/config"

	goredis "github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis server named by cfg and verifies the
// connection with PING.
func NewClient(ctx context.Context, cfg *config.Config) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:                  cfg.RedisAddr(),
		Password:              cfg.RedisPassword,
		DB:                    cfg.RedisDB,
		ContextTimeoutEnabled: true,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.RedisAddr(), err)
	}
	return client, nil
}
