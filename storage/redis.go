package storage

import (
	"context"
	"fmt"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/redis/go-redis/v9"
)

// RedisStore publishes records to a stream and keeps the set of collected
// listing URLs, so it serves both as a Sink and as a SeenStore.
type RedisStore struct {
	client  *redis.Client
	stream  string
	seenKey string
}

// NewRedisStore connects to the redis:// URL and checks the connection.
func NewRedisStore(ctx context.Context, url, stream, seenKey string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisStore(client, stream, seenKey), nil
}

func newRedisStore(client *redis.Client, stream, seenKey string) *RedisStore {
	return &RedisStore{client: client, stream: stream, seenKey: seenKey}
}

func (s *RedisStore) Name() string { return "redis" }

// Write adds one stream entry per record, fields keyed by output column,
// and marks every URL as seen in the same pipeline.
func (s *RedisStore) Write(ctx context.Context, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	urls := make([]any, 0, len(records))
	for _, r := range records {
		row := r.Row()
		values := make(map[string]any, len(row))
		for i, col := range models.Columns {
			values[col] = row[i]
		}
		pipe.XAdd(ctx, &redis.XAddArgs{Stream: s.stream, Values: values})
		urls = append(urls, r.URL)
	}
	pipe.SAdd(ctx, s.seenKey, urls...)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

func (s *RedisStore) Seen(ctx context.Context, url string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.seenKey, url).Result()
	if err != nil {
		return false, fmt.Errorf("redis sismember: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Add(ctx context.Context, urls ...string) error {
	if len(urls) == 0 {
		return nil
	}
	members := make([]any, len(urls))
	for i, u := range urls {
		members[i] = u
	}
	return s.client.SAdd(ctx, s.seenKey, members...).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
