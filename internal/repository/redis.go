package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/mr1hm/go-shelter-finder/internal/models"
	"github.com/mr1hm/go-shelter-finder/internal/settings"
)

// OpenRedis returns nil when addr is empty.
func OpenRedis(addr, password string, db int) *redis.Client {
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// RedisSettings stores the settings document as JSON under a single key.
type RedisSettings struct {
	client *redis.Client
	key    string
}

func NewRedisSettings(client *redis.Client) *RedisSettings {
	return &RedisSettings{client: client, key: settings.Key}
}

func (r *RedisSettings) Load(ctx context.Context) (models.Settings, error) {
	value, err := r.client.Get(ctx, r.key).Result()
	if errors.Is(err, redis.Nil) {
		return models.DefaultSettings(), nil
	}
	if err != nil {
		return models.Settings{}, fmt.Errorf("load settings: %w", err)
	}
	return decodeSettings(value)
}

func (r *RedisSettings) Save(ctx context.Context, st models.Settings) error {
	value, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("save settings: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, value, 0).Err(); err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

func (r *RedisSettings) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
