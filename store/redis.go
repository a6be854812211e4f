package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of go-redis client methods used by RedisStore.
// Keeping it as an interface enables mocking in tests.
type RedisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Close() error
}

// RedisConfig holds configuration for the Redis-backed state store.
type RedisConfig struct {
	Address  string        `yaml:"address" json:"address"`
	Password string        `yaml:"password" json:"password"`
	DB       int           `yaml:"db" json:"db"`
	Prefix   string        `yaml:"prefix" json:"prefix"`
	TTL      time.Duration `yaml:"ttl" json:"ttl"` // 0 means keep forever
}

// RedisStore persists widget state blobs in Redis, one key per instance.
type RedisStore struct {
	cfg    RedisConfig
	client RedisClient
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "sn:state:"
	}
	opts := &redis.Options{Addr: cfg.Address, DB: cfg.DB}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", cfg.Address, err)
	}
	return &RedisStore{cfg: cfg, client: client}, nil
}

// NewRedisStoreWithClient creates a RedisStore backed by a pre-built client.
// This is intended for testing only.
func NewRedisStoreWithClient(cfg RedisConfig, client RedisClient) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = "sn:state:"
	}
	return &RedisStore{cfg: cfg, client: client}
}

func (s *RedisStore) key(widgetID uuid.UUID) string {
	return s.cfg.Prefix + widgetID.String()
}

// Load returns the persisted state or an empty State if the key is absent.
func (s *RedisStore) Load(ctx context.Context, widgetID uuid.UUID) (State, error) {
	data, err := s.client.Get(ctx, s.key(widgetID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load state %s: %w", widgetID, err)
	}
	return DecodeState(data)
}

// Save encodes and overwrites the state blob.
func (s *RedisStore) Save(ctx context.Context, widgetID uuid.UUID, state State) error {
	data, err := EncodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(widgetID), data, s.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("save state %s: %w", widgetID, err)
	}
	return nil
}

// Delete discards the persisted state for the widget.
func (s *RedisStore) Delete(ctx context.Context, widgetID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(widgetID)).Err(); err != nil {
		return fmt.Errorf("delete state %s: %w", widgetID, err)
	}
	return nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
