// Package publish fans trend snapshots out to external systems.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/newthinker/aitrader/internal/trend"
)

// RedisClient is the subset of *redis.Client the sink uses.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisConfig configures the Redis sink.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Key      string        `mapstructure:"key"`
	Channel  string        `mapstructure:"channel"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Redis stores the latest snapshot under a key and announces it on a
// pub/sub channel.
type Redis struct {
	client  RedisClient
	key     string
	channel string
	ttl     time.Duration
	closer  func() error
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	r := NewRedisWithClient(rdb, cfg)
	r.closer = rdb.Close
	return r, nil
}

// NewRedisWithClient builds the sink on an existing client.
func NewRedisWithClient(client RedisClient, cfg RedisConfig) *Redis {
	if cfg.Key == "" {
		cfg.Key = "aitrader:trends:latest"
	}
	if cfg.Channel == "" {
		cfg.Channel = "aitrader:trends"
	}
	return &Redis{client: client, key: cfg.Key, channel: cfg.Channel, ttl: cfg.TTL}
}

func (r *Redis) Name() string { return "redis" }

// Publish writes the snapshot then notifies subscribers with its cycle.
func (r *Redis) Publish(ctx context.Context, snap *trend.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.key, err)
	}

	msg, err := json.Marshal(map[string]any{
		"cycle":        snap.Cycle,
		"generated_at": snap.GeneratedAt,
		"key":          r.key,
		"pairs":        snap.Pairs(),
	})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.channel, err)
	}
	return nil
}

// Close releases the client when the sink created it.
func (r *Redis) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}
