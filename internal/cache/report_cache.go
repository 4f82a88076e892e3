package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/replenish/backend-go/internal/config"
	"github.com/andresuchdata/replenish/backend-go/internal/domain"
)

const (
	reportKeyPrefix     = "replenish:report"
	reportScanBatchSize = 100
)

// ReportCache stores computed reports keyed by thresholds version and
// snapshot content, so an identical upload is not reconciled twice.
type ReportCache interface {
	Get(ctx context.Context, key string) (*domain.ReplenishmentReport, bool, error)
	Set(ctx context.Context, key string, report *domain.ReplenishmentReport) error
	InvalidateAll(ctx context.Context) error
	Close() error
}

type redisReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopReportCache struct{}

// NewReportCache returns a Redis-backed cache, or a noop cache when caching
// is disabled.
func NewReportCache(ctx context.Context, cfg config.CacheConfig) (ReportCache, error) {
	if !cfg.Enabled {
		return &noopReportCache{}, nil
	}

	client, ttl, err := newRedisClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &redisReportCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopReportCache() ReportCache {
	return &noopReportCache{}
}

// ReportKey builds the cache key for a snapshot reconciled against a given
// threshold table version.
func ReportKey(thresholdsVersion string, snapshot []byte) string {
	sum := sha1.Sum(snapshot)
	return fmt.Sprintf("%s:%s:%s", reportKeyPrefix, thresholdsVersion, hex.EncodeToString(sum[:]))
}

func (c *redisReportCache) Get(ctx context.Context, key string) (*domain.ReplenishmentReport, bool, error) {
	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var report domain.ReplenishmentReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return nil, false, fmt.Errorf("decode report cache: %w", err)
	}
	return &report, true, nil
}

func (c *redisReportCache) Set(ctx context.Context, key string, report *domain.ReplenishmentReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// InvalidateAll drops every cached report, e.g. after a threshold reload.
func (c *redisReportCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, reportKeyPrefix, reportScanBatchSize)
}

func (c *redisReportCache) Close() error {
	return c.client.Close()
}

func (n *noopReportCache) Get(ctx context.Context, key string) (*domain.ReplenishmentReport, bool, error) {
	return nil, false, nil
}

func (n *noopReportCache) Set(ctx context.Context, key string, report *domain.ReplenishmentReport) error {
	return nil
}

func (n *noopReportCache) InvalidateAll(ctx context.Context) error {
	return nil
}

func (n *noopReportCache) Close() error {
	return nil
}
