package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/runnerr0/tally/internal/config"
)

// RedisGate stores visit markers in Redis so that several processes share
// one dedup window.
type RedisGate struct {
	client *redis.Client
	prefix string
}

func NewRedisGate(client *redis.Client, prefix string) *RedisGate {
	return &RedisGate{client: client, prefix: prefix}
}

// DialRedis connects to the server named in cfg and pings it.
func DialRedis(ctx context.Context, cfg config.DedupConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func (g *RedisGate) Admit(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	key = g.prefix + key

	ok, err := g.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set marker: %w", err)
	}
	if ok {
		return true, nil
	}

	if err := g.client.PExpire(ctx, key, ttl).Err(); err != nil {
		return false, fmt.Errorf("extend marker: %w", err)
	}
	return false, nil
}

func (g *RedisGate) Forget(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, g.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete marker: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (g *RedisGate) Close() error {
	return g.client.Close()
}
