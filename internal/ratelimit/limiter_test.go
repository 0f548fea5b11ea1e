package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "webhook-gateway/internal/common/errors"
	"webhook-gateway/internal/redis"
)

func newRedisLimiter(t *testing.T) *RedisLimiter {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := redis.NewClient(&redis.Config{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client, "test:")
}

func TestRedisLimiter_Window(t *testing.T) {
	limiter := newRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := limiter.Allow(ctx, "webhook:wh1:10.0.0.1", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, d.Allowed)
		assert.Equal(t, 2, d.Limit)
		assert.Equal(t, 1-i, d.Remaining)
	}

	d, err := limiter.Allow(ctx, "webhook:wh1:10.0.0.1", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
}

func TestRedisLimiter_ZeroLimitDisables(t *testing.T) {
	limiter := newRedisLimiter(t)
	d, err := limiter.Allow(context.Background(), "k", 0, time.Minute)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

type mockCounter struct {
	mock.Mock
}

func (m *mockCounter) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, int, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Int(1), args.Error(2)
}

func TestRedisLimiter_StoreError(t *testing.T) {
	store := &mockCounter{}
	store.On("CheckRateLimit", mock.Anything, "p:k", 5, time.Minute).Return(false, 0, errors.New("conn reset"))

	limiter := &RedisLimiter{store: store, prefix: "p:"}
	_, err := limiter.Allow(context.Background(), "k", 5, time.Minute)

	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInternal))
	store.AssertExpectations(t)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedLimiter(sweepEvery time.Duration) (*LocalLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLocalLimiter(sweepEvery)
	limiter.lastSweep = clock.t
	limiter.now = clock.now
	return limiter, clock
}

func admit(t *testing.T, l *LocalLimiter, key string, n, limit int, window time.Duration) int {
	t.Helper()
	allowed := 0
	for i := 0; i < n; i++ {
		d, err := l.Allow(context.Background(), key, limit, window)
		require.NoError(t, err)
		if d.Allowed {
			allowed++
		}
	}
	return allowed
}

func TestLocalLimiter_Burst(t *testing.T) {
	limiter, clock := newClockedLimiter(time.Hour)

	assert.Equal(t, 3, admit(t, limiter, "k", 3, 3, time.Minute))

	d, err := limiter.Allow(context.Background(), "k", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Equal(t, clock.t.Add(time.Minute), d.ResetAt)

	// nothing frees up until the oldest hit leaves the window
	clock.advance(59 * time.Second)
	assert.Zero(t, admit(t, limiter, "k", 1, 3, time.Minute))

	clock.advance(time.Second)
	assert.Equal(t, 3, admit(t, limiter, "k", 5, 3, time.Minute))
}

func TestLocalLimiter_NeverExceedsLimitInWindow(t *testing.T) {
	limiter, clock := newClockedLimiter(time.Minute)

	total := 0
	for burst := 0; burst < 4; burst++ {
		total += admit(t, limiter, "apikey:key_1", 1000, 1000, time.Hour)
		clock.advance(12 * time.Minute)
	}
	assert.Equal(t, 1000, total)

	limiter, clock = newClockedLimiter(time.Minute)
	assert.Equal(t, 10, admit(t, limiter, "k", 10, 10, time.Hour))
	clock.advance(59 * time.Minute)
	assert.Zero(t, admit(t, limiter, "k", 10, 10, time.Hour))
	clock.advance(time.Minute)
	assert.Equal(t, 10, admit(t, limiter, "k", 10, 10, time.Hour))
}

func TestLocalLimiter_SlidingRelease(t *testing.T) {
	limiter, clock := newClockedLimiter(time.Minute)

	assert.Equal(t, 1, admit(t, limiter, "k", 1, 2, time.Minute))
	clock.advance(30 * time.Second)
	assert.Equal(t, 1, admit(t, limiter, "k", 2, 2, time.Minute))

	// the first hit expires, the second still counts
	clock.advance(30 * time.Second)
	assert.Equal(t, 1, admit(t, limiter, "k", 2, 2, time.Minute))
}

func TestLocalLimiter_PolicyChangeStartsFresh(t *testing.T) {
	limiter := NewLocalLimiter(time.Hour)
	ctx := context.Background()

	d, _ := limiter.Allow(ctx, "k", 1, time.Minute)
	assert.True(t, d.Allowed)
	d, _ = limiter.Allow(ctx, "k", 1, time.Minute)
	assert.False(t, d.Allowed)

	d, _ = limiter.Allow(ctx, "k", 5, time.Minute)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, limiter.Len())
}

func TestLocalLimiter_SweepWaitsForWindow(t *testing.T) {
	limiter, clock := newClockedLimiter(time.Minute)

	assert.Equal(t, 1, admit(t, limiter, "k", 1, 1, time.Hour))

	// sweeps run, but the hour has not passed
	clock.advance(30 * time.Minute)
	admit(t, limiter, "other", 1, 1, time.Minute)
	assert.Equal(t, 2, limiter.Len())
	assert.Zero(t, admit(t, limiter, "k", 1, 1, time.Hour))

	clock.advance(31 * time.Minute)
	admit(t, limiter, "fresh", 1, 1, time.Minute)
	assert.Equal(t, 1, limiter.Len())
}

func TestLocalLimiter_InvalidWindow(t *testing.T) {
	_, err := NewLocalLimiter(0).Allow(context.Background(), "k", 1, 0)
	assert.Error(t, err)
}

func TestNoop(t *testing.T) {
	d, err := Noop{}.Allow(context.Background(), "k", 10, time.Second)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
