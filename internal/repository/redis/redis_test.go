package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dom/streamgate/internal/domain"
	repoRedis "github.com/dom/streamgate/internal/repository/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := repoRedis.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestSourceCache_RoundTripAndExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := repoRedis.NewSourceCache(client)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	source := &domain.MediaSource{
		URL:             "https://media.example.com/abc.mp4",
		ContentType:     "video/mp4",
		DurationSeconds: 212,
		FormatID:        "18",
	}
	require.NoError(t, cache.Set(ctx, "abc", source, 5*time.Minute))

	got, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, source, got)

	mr.FastForward(6 * time.Minute)

	_, ok, err = cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSourceCache_CorruptValue(t *testing.T) {
	mr, client := setupTestRedis(t)
	cache := repoRedis.NewSourceCache(client)

	require.NoError(t, mr.Set("source:bad", "{not json"))

	_, ok, err := cache.Get(context.Background(), "bad")
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestRateCounter_FixedWindow(t *testing.T) {
	mr, client := setupTestRedis(t)
	counter := repoRedis.NewRateCounter(client)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		count, remaining, err := counter.Incr(ctx, "login:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, count)
		assert.True(t, remaining > 0 && remaining <= time.Minute)
	}

	other, _, err := counter.Incr(ctx, "login:10.0.0.2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "keys are counted independently")

	mr.FastForward(61 * time.Second)

	count, _, err := counter.Incr(ctx, "login:10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "window resets after expiry")
}

func TestHealthChecker_Ping(t *testing.T) {
	mr, client := setupTestRedis(t)
	health := repoRedis.NewHealthChecker(client)

	require.NoError(t, health.Ping(context.Background()))

	mr.Close()
	assert.Error(t, health.Ping(context.Background()))
}

func TestSourceCache_Delete(t *testing.T) {
	_, client := setupTestRedis(t)
	cache := repoRedis.NewSourceCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "abc", &domain.MediaSource{URL: "https://media.example.com/abc.mp4"}, time.Minute))
	require.NoError(t, cache.Delete(ctx, "abc"))

	_, ok, err := cache.Get(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
