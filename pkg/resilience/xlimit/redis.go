package xlimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	limiter *redis_rate.Limiter
	key     string
	limit   redis_rate.Limit
}

// NewRedis 创建多实例共享配额的限流器，key 为共享的限流键。
func NewRedis(rdb redis.UniversalClient, key string, cfg Config) (Limiter, error) {
	if rdb == nil {
		return nil, ErrNilClient
	}
	if key == "" {
		return nil, ErrEmptyKey
	}
	if cfg.Rate <= 0 {
		return Unlimited{}, nil
	}
	return &redisLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		key:     "xlimit:" + key,
		limit:   toLimit(cfg),
	}, nil
}

// redis_rate 只接受整数速率，小于 1/s 的速率换算成更长的周期。
func toLimit(cfg Config) redis_rate.Limit {
	if cfg.Rate >= 1 {
		return redis_rate.Limit{Rate: int(math.Round(cfg.Rate)), Burst: cfg.burst(), Period: time.Second}
	}
	period := time.Duration(float64(time.Second) / cfg.Rate)
	return redis_rate.Limit{Rate: 1, Burst: cfg.burst(), Period: period}
}

func (l *redisLimiter) Allow(ctx context.Context, n int) (Result, error) {
	res, err := l.limiter.AllowN(ctx, l.key, l.limit, n)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrBackend, err)
	}
	return Result{
		Allowed:    res.Allowed > 0,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

func (l *redisLimiter) Wait(ctx context.Context) error {
	for {
		res, err := l.Allow(ctx, 1)
		if err != nil {
			return err
		}
		if res.Allowed {
			return nil
		}
		wait := max(res.RetryAfter, time.Millisecond)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

var _ Limiter = (*redisLimiter)(nil)
