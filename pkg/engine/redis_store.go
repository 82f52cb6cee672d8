package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisConfig holds Redis connection settings for the state store.
type RedisConfig struct {
	Address      string
	Password     string
	Database     int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TTL          time.Duration
}

// RedisStateStore keeps session state in Redis so monitoring can resume
// on another node. Session expiry rides on the key TTL, refreshed on
// every write.
type RedisStateStore struct {
	client    redis.UniversalClient
	logger    *logrus.Logger
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStateStore connects to Redis and verifies the connection.
func NewRedisStateStore(config RedisConfig, logger *logrus.Logger) (*RedisStateStore, error) {
	if config.DialTimeout == 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.TTL == 0 {
		config.TTL = 4 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address,
		Password:     config.Password,
		DB:           config.Database,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), config.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStateStore{
		client:    client,
		logger:    logger,
		keyPrefix: "realsync:session:",
		ttl:       config.TTL,
	}, nil
}

func (r *RedisStateStore) Get(sessionID string) (*State, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := r.client.Get(ctx, r.sessionKey(sessionID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session state from Redis: %w", err)
	}

	var state State
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	if state.Cooldowns == nil {
		state.Cooldowns = make(CooldownTable)
	}
	return &state, nil
}

func (r *RedisStateStore) Set(sessionID string, state *State) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}
	if err := r.client.Set(ctx, r.sessionKey(sessionID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session state in Redis: %w", err)
	}
	return nil
}

func (r *RedisStateStore) Delete(sessionID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := r.client.Del(ctx, r.sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session state from Redis: %w", err)
	}
	return nil
}

// Cleanup is a no-op for Redis; the key TTL expires idle sessions.
func (r *RedisStateStore) Cleanup(time.Time, time.Duration) ([]string, error) {
	return nil, nil
}

// Health pings the Redis server.
func (r *RedisStateStore) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close releases the underlying Redis client.
func (r *RedisStateStore) Close() error {
	return r.client.Close()
}

func (r *RedisStateStore) sessionKey(sessionID string) string {
	return r.keyPrefix + sessionID
}
