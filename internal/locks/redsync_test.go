package locks

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook-gateway/internal/redis"
)

func newLocker(t *testing.T, addr string) *RedsyncLocker {
	t.Helper()
	client, err := redis.NewClient(&redis.Config{Address: addr})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	locker, err := NewRedsyncLocker(client)
	require.NoError(t, err)
	return locker
}

func TestRedsyncLocker_Contention(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()

	first := newLocker(t, s.Addr())
	second := newLocker(t, s.Addr())

	ok, err := first.AcquireLock(ctx, "audit-prune", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Exists("lock:audit-prune"))

	ok, err = second.AcquireLock(ctx, "audit-prune", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.ReleaseLock(ctx, "audit-prune"))
	assert.False(t, s.Exists("lock:audit-prune"))

	ok, err = second.AcquireLock(ctx, "audit-prune", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedsyncLocker_Expiry(t *testing.T) {
	s := miniredis.RunT(t)
	ctx := context.Background()
	locker := newLocker(t, s.Addr())

	ok, err := locker.AcquireLock(ctx, "job", 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	s.FastForward(3 * time.Second)
	assert.False(t, s.Exists("lock:job"))
}

func TestRedsyncLocker_ReleaseUnheldIsNoop(t *testing.T) {
	s := miniredis.RunT(t)
	locker := newLocker(t, s.Addr())
	assert.NoError(t, locker.ReleaseLock(context.Background(), "never-taken"))
}

func TestNewRedsyncLocker_RequiresClient(t *testing.T) {
	_, err := NewRedsyncLocker(nil)
	assert.Error(t, err)
}
