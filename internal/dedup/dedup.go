// Package dedup drops features already seen with the same id, time and
// position, so repeated webhook deliveries of one CAD event do not produce
// repeated features while a unit's later position updates still go through.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/metrics"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

const keyPrefix = "etl:dedup:"

// dedupKey identifies one observation of a feature: its id plus a digest of
// its time and geometry.
func dedupKey(f models.Feature) string {
	observation, _ := json.Marshal(struct {
		Time     string          `json:"time"`
		Geometry models.Geometry `json:"geometry"`
	}{f.Properties.Time, f.Geometry})
	return keyPrefix + f.ID + ":" + uuid.NewSHA1(uuid.NameSpaceOID, observation).String()
}

// Deduplicator filters a collection down to features not seen before.
type Deduplicator interface {
	Filter(ctx context.Context, fc *models.FeatureCollection) (*models.FeatureCollection, error)
	Close() error
}

// RedisDeduplicator remembers feature observations in Redis for ttl.
type RedisDeduplicator struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewRedisDeduplicator connects to redisURL and verifies the connection.
func NewRedisDeduplicator(redisURL string, ttl time.Duration, logger *logging.Logger) (*RedisDeduplicator, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return NewWithClient(client, ttl, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration, logger *logging.Logger) *RedisDeduplicator {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedisDeduplicator{client: client, ttl: ttl, logger: logger}
}

// Filter claims each feature observation with SET NX. Features whose
// observation is already claimed are dropped. If Redis is unavailable the remaining features pass
// through unfiltered; delivery stays at-least-once.
func (d *RedisDeduplicator) Filter(ctx context.Context, fc *models.FeatureCollection) (*models.FeatureCollection, error) {
	if fc.Len() == 0 {
		return fc, nil
	}

	kept := make([]models.Feature, 0, len(fc.Features))
	seen := make(map[string]bool, len(fc.Features))
	for i, f := range fc.Features {
		key := dedupKey(f)
		if seen[key] {
			metrics.DuplicatesDropped.Inc()
			continue
		}
		seen[key] = true

		fresh, err := d.client.SetNX(ctx, key, time.Now().Unix(), d.ttl).Result()
		if err != nil {
			d.logger.WarnContext(ctx, "Deduplication unavailable, passing features through", logging.Error(err))
			kept = append(kept, fc.Features[i:]...)
			return models.NewFeatureCollection(kept...), nil
		}
		if !fresh {
			metrics.DuplicatesDropped.Inc()
			d.logger.DebugContext(ctx, "Dropped duplicate feature", logging.EventID(f.ID))
			continue
		}
		kept = append(kept, f)
	}
	return models.NewFeatureCollection(kept...), nil
}

// Forget releases claimed observations so a collection that failed to submit
// can be delivered again.
func (d *RedisDeduplicator) Forget(ctx context.Context, fc *models.FeatureCollection) error {
	if fc.Len() == 0 {
		return nil
	}
	keys := make([]string, 0, fc.Len())
	for _, f := range fc.Features {
		keys = append(keys, dedupKey(f))
	}
	return d.client.Del(ctx, keys...).Err()
}

func (d *RedisDeduplicator) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

// NoOp passes every feature through.
type NoOp struct{}

func (NoOp) Filter(ctx context.Context, fc *models.FeatureCollection) (*models.FeatureCollection, error) {
	return fc, nil
}

func (NoOp) Close() error {
	return nil
}
