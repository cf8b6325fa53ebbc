package xlimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLimiter(t *testing.T) {
	l := NewLocal(Config{Rate: 10, Burst: 2})
	ctx := context.Background()

	for range 2 {
		res, err := l.Allow(ctx, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	_, err = l.Allow(ctx, 3)
	assert.ErrorIs(t, err, ErrExceedsBurst)

	wctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, l.Wait(wctx))
}

func TestLocalUnlimited(t *testing.T) {
	l := NewLocal(Config{})
	assert.IsType(t, Unlimited{}, l)
	res, err := l.Allow(context.Background(), 1000)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestBurstDefault(t *testing.T) {
	assert.Equal(t, 1, Config{Rate: 0.5}.burst())
	assert.Equal(t, 3, Config{Rate: 2.5}.burst())
	assert.Equal(t, 7, Config{Rate: 2.5, Burst: 7}.burst())
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	l, err := NewRedis(rdb, "orders", Config{Rate: 2, Burst: 2})
	require.NoError(t, err)
	ctx := context.Background()

	for range 2 {
		res, err := l.Allow(ctx, 1)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// 另一个实例共享同一个键
	other, err := NewRedis(rdb, "orders", Config{Rate: 2, Burst: 2})
	require.NoError(t, err)
	res, err = other.Allow(ctx, 1)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}

func TestRedisLimiterValidation(t *testing.T) {
	_, err := NewRedis(nil, "k", Config{Rate: 1})
	assert.ErrorIs(t, err, ErrNilClient)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	_, err = NewRedis(rdb, "", Config{Rate: 1})
	assert.ErrorIs(t, err, ErrEmptyKey)

	l, err := NewRedis(rdb, "k", Config{})
	require.NoError(t, err)
	assert.IsType(t, Unlimited{}, l)
}

func TestToLimitSubSecond(t *testing.T) {
	lim := toLimit(Config{Rate: 0.5})
	assert.Equal(t, 1, lim.Rate)
	assert.Equal(t, 2*time.Second, lim.Period)
}
