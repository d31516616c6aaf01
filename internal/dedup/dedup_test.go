package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/etl-central-square/internal/logging"
	"github.com/telhawk-systems/etl-central-square/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

var observed = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func collection(ids ...string) *models.FeatureCollection {
	features := make([]models.Feature, 0, len(ids))
	for _, id := range ids {
		features = append(features, models.NewFeature(id, observed, models.NewPoint(0, 0)))
	}
	return models.NewFeatureCollection(features...)
}

func TestRedisDeduplicator_DropsRepeats(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer client.Close()

	d := NewWithClient(client, time.Hour, logging.Discard())
	ctx := context.Background()

	first, err := d.Filter(ctx, collection("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, first.IDs())

	second, err := d.Filter(ctx, collection("b", "c", "c"))
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, second.IDs())

	key := dedupKey(first.Features[0])
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestRedisDeduplicator_KeepsNewObservationsOfSameID(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	d := NewWithClient(client, time.Hour, logging.Discard())
	ctx := context.Background()

	_, err := d.Filter(ctx, collection("unit-1"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		feature models.Feature
		kept    bool
	}{
		{"exact redelivery", models.NewFeature("unit-1", observed, models.NewPoint(0, 0)), false},
		{"later time", models.NewFeature("unit-1", observed.Add(5*time.Minute), models.NewPoint(0, 0)), true},
		{"new position", models.NewFeature("unit-1", observed, models.NewPoint(-77.03, 38.9)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := d.Filter(ctx, models.NewFeatureCollection(tt.feature))
			require.NoError(t, err)
			assert.Equal(t, tt.kept, out.Len() == 1)
		})
	}
}

func TestDedupKey(t *testing.T) {
	base := models.NewFeature("a", observed, models.NewPoint(1, 2))
	same := models.NewFeature("a", observed, models.NewPoint(1, 2))
	moved := models.NewFeature("a", observed, models.NewPoint(1, 3))
	other := models.NewFeature("b", observed, models.NewPoint(1, 2))

	assert.Equal(t, dedupKey(base), dedupKey(same))
	assert.NotEqual(t, dedupKey(base), dedupKey(moved))
	assert.NotEqual(t, dedupKey(base), dedupKey(other))
	assert.Contains(t, dedupKey(base), keyPrefix+"a:")
}

func TestRedisDeduplicator_ExpiresAfterTTL(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer client.Close()

	d := NewWithClient(client, time.Minute, logging.Discard())
	ctx := context.Background()

	_, err := d.Filter(ctx, collection("a"))
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	again, err := d.Filter(ctx, collection("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.IDs())
}

func TestRedisDeduplicator_Forget(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	d := NewWithClient(client, time.Hour, logging.Discard())
	ctx := context.Background()

	fc, err := d.Filter(ctx, collection("a"))
	require.NoError(t, err)
	require.NoError(t, d.Forget(ctx, fc))

	again, err := d.Filter(ctx, collection("a"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, again.IDs())
}

func TestRedisDeduplicator_FailsOpen(t *testing.T) {
	mr, client := setupTestRedis(t)
	defer client.Close()

	d := NewWithClient(client, time.Hour, logging.Discard())
	mr.Close()

	fc, err := d.Filter(context.Background(), collection("a", "b"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fc.IDs())
}

func TestRedisDeduplicator_EmptyCollection(t *testing.T) {
	_, client := setupTestRedis(t)
	defer client.Close()

	d := NewWithClient(client, 0, nil)
	assert.Equal(t, 24*time.Hour, d.ttl)

	fc, err := d.Filter(context.Background(), models.NewFeatureCollection())
	require.NoError(t, err)
	assert.Equal(t, 0, fc.Len())
}

func TestNewRedisDeduplicator_InvalidURL(t *testing.T) {
	_, err := NewRedisDeduplicator("not-a-valid-url", time.Hour, nil)
	assert.Error(t, err)
}

func TestNoOp(t *testing.T) {
	fc := collection("a", "a")
	out, err := NoOp{}.Filter(context.Background(), fc)
	require.NoError(t, err)
	assert.Same(t, fc, out)
	assert.NoError(t, NoOp{}.Close())
}
