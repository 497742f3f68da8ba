package studio

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements PrivateStorage with one Redis hash per document.
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to redisURL and verifies the connection.
func NewRedisStorage(redisURL string) (*RedisStorage, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStorageWithClient(client), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client) *RedisStorage {
	return &RedisStorage{
		client: client,
		prefix: "studio:private:",
	}
}

func (s *RedisStorage) key(documentID string) string {
	return s.prefix + documentID
}

// PrivateData returns the hash for documentID; a missing hash is empty data.
func (s *RedisStorage) PrivateData(ctx context.Context, documentID string) (PrivateData, error) {
	values, err := s.client.HGetAll(ctx, s.key(documentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read private data: %w", err)
	}
	return PrivateData(values), nil
}

// SetPrivateData replaces the hash atomically.
func (s *RedisStorage) SetPrivateData(ctx context.Context, documentID string, data PrivateData) error {
	key := s.key(documentID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(data) == 0 {
			return nil
		}
		fields := make(map[string]any, len(data))
		for k, v := range data {
			fields[k] = v
		}
		pipe.HSet(ctx, key, fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write private data: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
