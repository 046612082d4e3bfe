package store

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"schoolattend/internal/metrics"
)

const reportPrefix = "attendance:report:"

// ReportCache keeps rendered monthly report bodies in Redis.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewReportCache builds a cache whose entries expire after ttl. A zero ttl
// keeps entries until they are overwritten.
func NewReportCache(client *redis.Client, ttl time.Duration) *ReportCache {
	return &ReportCache{client: client, ttl: ttl}
}

// Get returns the cached body for key. A miss is (nil, false, nil).
func (c *ReportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	body, err := c.client.Get(ctx, reportPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.ReportCache.WithLabelValues("miss").Inc()
		return nil, false, nil
	case err != nil:
		metrics.ReportCache.WithLabelValues("error").Inc()
		return nil, false, errors.Wrapf(err, "get cached report %s", key)
	}
	metrics.ReportCache.WithLabelValues("hit").Inc()
	return body, true, nil
}

// Set stores body under key.
func (c *ReportCache) Set(ctx context.Context, key string, body []byte) error {
	return errors.Wrapf(c.client.Set(ctx, reportPrefix+key, body, c.ttl).Err(), "cache report %s", key)
}

// Delete drops key from the cache.
func (c *ReportCache) Delete(ctx context.Context, key string) error {
	return errors.Wrapf(c.client.Del(ctx, reportPrefix+key).Err(), "evict report %s", key)
}
