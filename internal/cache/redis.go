package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"job_harvester/internal/domain"
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// ExtractionCache stores extraction outcomes as JSON. A nil job is stored as
// JSON null and means "not a job posting".
type ExtractionCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

func NewExtractionCache(rdb *redis.Client, ttl time.Duration, prefix string) *ExtractionCache {
	return &ExtractionCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *ExtractionCache) Get(ctx context.Context, key string) (*domain.ExtractedJob, bool, error) {
	data, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}

	var job *domain.ExtractedJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}

	return job, true, nil
}

func (c *ExtractionCache) Set(ctx context.Context, key string, job *domain.ExtractedJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	if err := c.rdb.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}

	return nil
}
